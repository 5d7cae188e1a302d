package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "ar-SA", cfg.Audio.Language)
	assert.Equal(t, 0.8, cfg.Audio.Rate)
	assert.Equal(t, 1.2, cfg.Audio.Pitch)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, 1500*time.Millisecond, cfg.Lesson.GetFeedbackDelay())
	assert.True(t, cfg.Lesson.IncludeSpeak)
}

func TestConfig_SaveLoad(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("DB_TYPE", "")

	path := filepath.Join(t.TempDir(), "khutwa.yaml")

	cfg := DefaultConfig()
	cfg.Storage.Driver = "file"
	cfg.Lesson.FeedbackDelay = "250ms"
	cfg.Lesson.Points = map[string]int{"choose": 3}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "file", loaded.Storage.Driver)
	assert.Equal(t, 250*time.Millisecond, loaded.Lesson.GetFeedbackDelay())
	assert.Equal(t, 3, loaded.Lesson.Points["choose"])
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Audio, cfg.Audio)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("lesson: [unclosed"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Run("storage and bot", func(t *testing.T) {
		t.Setenv("TELEGRAM_BOT_TOKEN", "tok")
		t.Setenv("DB_TYPE", "postgres")
		t.Setenv("DATABASE_URL", "postgres://localhost/khutwa")
		t.Setenv("ADMIN_USER_IDS", "1, 2,x")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "tok", cfg.Bot.Token)
		assert.Equal(t, "postgres", cfg.Storage.Driver)
		assert.Equal(t, "postgres://localhost/khutwa", cfg.Storage.DSN)
		assert.Equal(t, []int64{1, 2}, cfg.Bot.AdminUserIDs)
		assert.True(t, cfg.Bot.IsAdmin(2))
		assert.False(t, cfg.Bot.IsAdmin(3))
	})

	t.Run("notification hours are validated", func(t *testing.T) {
		t.Setenv("NOTIFICATION_START_HOUR", "6")
		t.Setenv("NOTIFICATION_END_HOUR", "42")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, 6, cfg.Reminder.StartHour)
		assert.Equal(t, 19, cfg.Reminder.EndHour)
	})

	t.Run("scheduler can be disabled", func(t *testing.T) {
		t.Setenv("ENABLE_SCHEDULER", "false")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.False(t, cfg.Reminder.Enabled)
	})
}

func TestParseDuration(t *testing.T) {
	l := LessonConfig{FeedbackDelay: "garbage", SpeakDelay: "2s"}
	assert.Equal(t, 1500*time.Millisecond, l.GetFeedbackDelay())
	assert.Equal(t, 2*time.Second, l.GetSpeakDelay())
}
