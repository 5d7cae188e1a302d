package bot

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"github.com/example/khutwa/internal/audio"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// voiceSource delivers cue files to a chat as audio messages
type voiceSource struct {
	files  *audio.FileSource
	api    telegram
	chatID int64
}

func (s *voiceSource) Open(key string) (audio.Clip, error) {
	p, err := s.files.Path(key)
	if err != nil {
		return nil, err
	}
	return &voiceClip{api: s.api, chatID: s.chatID, path: p}, nil
}

// voiceClip uploads its file once and re-sends Telegram's file id afterwards
type voiceClip struct {
	api    telegram
	chatID int64
	path   string

	mu     sync.Mutex
	fileID string
}

// Rewind is a no-op: every Play sends a fresh message
func (c *voiceClip) Rewind() error {
	return nil
}

func (c *voiceClip) Play(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var file tgbotapi.RequestFileData = tgbotapi.FilePath(c.path)
	if c.fileID != "" {
		file = tgbotapi.FileID(c.fileID)
	}

	var msg tgbotapi.Chattable
	if strings.EqualFold(filepath.Ext(c.path), ".ogg") {
		msg = tgbotapi.NewVoice(c.chatID, file)
	} else {
		msg = tgbotapi.NewAudio(c.chatID, file)
	}

	sent, err := c.api.Send(msg)
	if err != nil {
		return err
	}
	switch {
	case sent.Voice != nil:
		c.fileID = sent.Voice.FileID
	case sent.Audio != nil:
		c.fileID = sent.Audio.FileID
	}
	return nil
}

// chatSynth is the speech fallback for a text medium: it posts the words
// that would have been spoken
type chatSynth struct {
	api    telegram
	chatID int64
	lang   string
}

func (s *chatSynth) Voices() []audio.Voice {
	return []audio.Voice{{Name: "chat", Lang: s.lang}}
}

func (s *chatSynth) Speak(ctx context.Context, u audio.Utterance) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.api.Send(tgbotapi.NewMessage(s.chatID, "🔊 "+u.Text))
	return err
}
