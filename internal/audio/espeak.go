package audio

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// ESpeak synthesizes speech with an espeak-ng compatible binary
type ESpeak struct {
	Command   string
	BaseRate  int // Words per minute at Rate 1.0
	BasePitch int // espeak pitch (0-99) at Pitch 1.0

	voicesOnce sync.Once
	voices     []Voice
}

// NewESpeak creates a synthesizer using command (usually "espeak-ng")
func NewESpeak(command string) *ESpeak {
	return &ESpeak{Command: command, BaseRate: 175, BasePitch: 50}
}

// Voices lists installed voices. The list is read once.
func (e *ESpeak) Voices() []Voice {
	e.voicesOnce.Do(func() {
		out, err := exec.Command(e.Command, "--voices").Output()
		if err != nil {
			return
		}
		e.voices = parseVoices(string(out))
	})
	return e.voices
}

// Speak runs the synthesizer and waits for it to finish
func (e *ESpeak) Speak(ctx context.Context, u Utterance) error {
	voice := u.Lang
	if u.Voice != nil {
		voice = u.Voice.Lang
	}

	args := []string{
		"-s", fmt.Sprint(scale(e.BaseRate, u.Rate, 80, 450)),
		"-p", fmt.Sprint(scale(e.BasePitch, u.Pitch, 0, 99)),
	}
	if voice != "" {
		args = append(args, "-v", strings.ToLower(voice))
	}
	args = append(args, u.Text)

	if err := exec.CommandContext(ctx, e.Command, args...).Run(); err != nil {
		return fmt.Errorf("speech synthesis failed: %w", err)
	}
	return nil
}

func scale(base int, factor float64, min, max int) int {
	if factor <= 0 {
		factor = 1
	}
	v := int(float64(base)*factor + 0.5)
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// parseVoices reads the table printed by `espeak-ng --voices`:
//
//	Pty Language       Age/Gender VoiceName          File                 Other Languages
//	 5  ar              --/M      Arabic             sem/ar
func parseVoices(out string) []Voice {
	var voices []Voice
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 || fields[0] == "Pty" {
			continue
		}
		voices = append(voices, Voice{Lang: fields[1], Name: fields[3]})
	}
	return voices
}
