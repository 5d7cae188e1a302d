package progress

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/example/khutwa/internal/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenBackend builds the backend selected by cfg.Driver. The returned closer
// releases connections held by the backend.
func OpenBackend(ctx context.Context, cfg config.StorageConfig) (Backend, io.Closer, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "memory":
		return NewMemoryBackend(), nopCloser{}, nil
	case "file":
		dir := cfg.Path
		if dir == "" {
			dir = filepath.Join("data", "progress")
		}
		b, err := NewFileBackend(dir)
		if err != nil {
			return nil, nil, err
		}
		return b, nopCloser{}, nil
	case "sqlite", "sqlite3":
		b, err := OpenSQLite(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return b, b, nil
	case "postgres":
		b, err := OpenPostgres(cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return b, b, nil
	case "redis":
		b, err := NewRedisBackend(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		return b, b, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
