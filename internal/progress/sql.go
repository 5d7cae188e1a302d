package progress

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SQLBackend stores records in a single key/value table on SQLite or PostgreSQL
type SQLBackend struct {
	db     *sqlx.DB
	driver string
}

// OpenSQLite opens (and creates) a SQLite database file. Use ":memory:" for
// a throwaway database.
func OpenSQLite(path string) (*SQLBackend, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite doesn't support multiple writers
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return newSQLBackend(db, "sqlite3")
}

// OpenPostgres connects to PostgreSQL using a lib/pq DSN
func OpenPostgres(dsn string) (*SQLBackend, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return newSQLBackend(db, "postgres")
}

func newSQLBackend(db *sqlx.DB, driver string) (*SQLBackend, error) {
	b := &SQLBackend{db: db, driver: driver}
	if err := b.initializeSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

// initializeSchema creates the records table if it doesn't exist
func (b *SQLBackend) initializeSchema() error {
	_, err := b.db.Exec(`
		CREATE TABLE IF NOT EXISTS progress_records (
			record_key TEXT PRIMARY KEY,
			record_value TEXT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create progress_records table: %w", err)
	}
	return nil
}

// Get returns the stored value for key
func (b *SQLBackend) Get(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := b.db.GetContext(ctx, &value,
		b.db.Rebind("SELECT record_value FROM progress_records WHERE record_key = ?"), key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return []byte(value), nil
}

// Set upserts the value in a single statement
func (b *SQLBackend) Set(ctx context.Context, key string, value []byte) error {
	query := b.db.Rebind(`
		INSERT INTO progress_records (record_key, record_value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (record_key) DO UPDATE SET
			record_value = EXCLUDED.record_value,
			updated_at = CURRENT_TIMESTAMP
	`)
	if _, err := b.db.ExecContext(ctx, query, key, string(value)); err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

// Driver returns the database driver name
func (b *SQLBackend) Driver() string {
	return b.driver
}

// Close closes the database connection
func (b *SQLBackend) Close() error {
	return b.db.Close()
}
