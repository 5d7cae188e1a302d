package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
)

// FileSource resolves cue keys to files under Dir, e.g. key "letters/ba"
// becomes <Dir>/letters/ba.mp3. Clips are played by running Command with
// the file path appended.
type FileSource struct {
	Dir     string
	Ext     string
	Command []string
}

// NewFileSource creates a file source
func NewFileSource(dir, ext string, command []string) *FileSource {
	return &FileSource{Dir: dir, Ext: ext, Command: command}
}

// Open checks that the cue file exists
func (f *FileSource) Open(key string) (Clip, error) {
	if len(f.Command) == 0 {
		return nil, errors.New("audio: no player command configured")
	}
	p, err := f.Path(key)
	if err != nil {
		return nil, err
	}
	return &commandClip{path: p, command: f.Command}, nil
}

// Path returns the file backing key. Keys that escape Dir and missing files
// yield ErrCueNotFound.
func (f *FileSource) Path(key string) (string, error) {
	clean := path.Clean("/" + key)[1:]
	if clean == "" || clean != key {
		return "", fmt.Errorf("%w: invalid key %q", ErrCueNotFound, key)
	}

	p := filepath.Join(f.Dir, filepath.FromSlash(clean)+f.Ext)
	info, err := os.Stat(p)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrCueNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("failed to stat cue %s: %w", key, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrCueNotFound, key)
	}
	return p, nil
}

// commandClip plays a file through an external player process
type commandClip struct {
	path    string
	command []string
}

// Rewind is a no-op: every Play starts a new process at the beginning
func (c *commandClip) Rewind() error {
	return nil
}

func (c *commandClip) Play(ctx context.Context) error {
	args := append(append([]string(nil), c.command[1:]...), c.path)
	cmd := exec.CommandContext(ctx, c.command[0], args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("player %s failed: %w (%s)", c.command[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}
