package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the configuration for the lesson engine and its front ends
type Config struct {
	Catalog  CatalogConfig  `yaml:"catalog"`
	Audio    AudioConfig    `yaml:"audio"`
	Lesson   LessonConfig   `yaml:"lesson"`
	Storage  StorageConfig  `yaml:"storage"`
	Bot      BotConfig      `yaml:"bot"`
	Reminder ReminderConfig `yaml:"reminder"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// CatalogConfig points at the lesson content
type CatalogConfig struct {
	// Path to a YAML catalog; empty means the built-in alphabet
	Path string `yaml:"path"`
}

// AudioConfig configures cue playback and the speech fallback
type AudioConfig struct {
	Dir           string   `yaml:"dir"`            // Root of the cue files
	Ext           string   `yaml:"ext"`            // Cue file extension
	PlayerCommand []string `yaml:"player_command"` // Command used to play a cue file
	SpeechCommand string   `yaml:"speech_command"` // espeak-ng compatible binary
	Language      string   `yaml:"language"`       // Target language for synthesis
	Rate          float64  `yaml:"rate"`
	Pitch         float64  `yaml:"pitch"`
}

// LessonConfig tunes the step machine
type LessonConfig struct {
	FeedbackDelay  string         `yaml:"feedback_delay"` // Pause before auto-advance after a game success
	SpeakDelay     string         `yaml:"speak_delay"`
	IncludeSpeak   bool           `yaml:"include_speak"`
	TraceIncrement int            `yaml:"trace_increment"`
	Points         map[string]int `yaml:"points"` // Points per game step name
}

// StorageConfig selects the progress backend
type StorageConfig struct {
	Driver        string `yaml:"driver"` // memory, file, sqlite, postgres, redis
	Path          string `yaml:"path"`   // Directory for file, database file for sqlite
	DSN           string `yaml:"dsn"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	KeyPrefix     string `yaml:"key_prefix"`
}

// BotConfig configures the Telegram front end
type BotConfig struct {
	Token        string  `yaml:"token"`
	AdminUserIDs []int64 `yaml:"admin_user_ids"`
}

// ReminderConfig configures the practice reminder job
type ReminderConfig struct {
	Enabled   bool `yaml:"enabled"`
	StartHour int  `yaml:"start_hour"`
	EndHour   int  `yaml:"end_hour"`
}

// LoggingConfig configures the zap logger
type LoggingConfig struct {
	Mode  string `yaml:"mode"` // dev or prod
	Debug bool   `yaml:"debug"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Audio: AudioConfig{
			Dir:           "assets/audio",
			Ext:           ".mp3",
			PlayerCommand: []string{"mpg123", "-q"},
			SpeechCommand: "espeak-ng",
			Language:      "ar-SA",
			Rate:          0.8,
			Pitch:         1.2,
		},
		Lesson: LessonConfig{
			FeedbackDelay:  "1500ms",
			SpeakDelay:     "1500ms",
			IncludeSpeak:   true,
			TraceIncrement: 25,
		},
		Storage: StorageConfig{
			Driver:    "sqlite",
			Path:      filepath.Join("data", "khutwa.db"),
			KeyPrefix: "khutwa",
		},
		Reminder: ReminderConfig{
			Enabled:   true,
			StartHour: 8,
			EndHour:   19,
		},
		Logging: LoggingConfig{
			Mode: "dev",
		},
	}
}

// Load reads the YAML file at path on top of the defaults, then applies
// .env and environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	// .env is optional
	_ = godotenv.Load()

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration as YAML
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Bot.Token = v
	}
	if v := os.Getenv("ADMIN_USER_IDS"); v != "" {
		c.Bot.AdminUserIDs = c.Bot.AdminUserIDs[:0]
		for _, idStr := range strings.Split(v, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64)
			if err != nil {
				continue
			}
			c.Bot.AdminUserIDs = append(c.Bot.AdminUserIDs, id)
		}
	}
	if v := os.Getenv("DB_TYPE"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Storage.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Storage.RedisAddr = v
	}
	if v := os.Getenv("KHUTWA_AUDIO_DIR"); v != "" {
		c.Audio.Dir = v
	}
	if v := os.Getenv("KHUTWA_CATALOG"); v != "" {
		c.Catalog.Path = v
	}
	if h, ok := envHour("NOTIFICATION_START_HOUR"); ok {
		c.Reminder.StartHour = h
	}
	if h, ok := envHour("NOTIFICATION_END_HOUR"); ok {
		c.Reminder.EndHour = h
	}
	if v := os.Getenv("ENABLE_SCHEDULER"); v == "false" {
		c.Reminder.Enabled = false
	}
}

func envHour(name string) (int, bool) {
	s := os.Getenv(name)
	if s == "" {
		return 0, false
	}
	h, err := strconv.Atoi(s)
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	return h, true
}

// GetFeedbackDelay returns the parsed feedback delay, or 1.5s when unset or invalid
func (l LessonConfig) GetFeedbackDelay() time.Duration {
	return parseDuration(l.FeedbackDelay, 1500*time.Millisecond)
}

// GetSpeakDelay returns the parsed speak delay, or 1.5s when unset or invalid
func (l LessonConfig) GetSpeakDelay() time.Duration {
	return parseDuration(l.SpeakDelay, 1500*time.Millisecond)
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return def
	}
	return d
}

// IsAdmin reports whether the Telegram user may run admin commands
func (b BotConfig) IsAdmin(userID int64) bool {
	for _, id := range b.AdminUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}
