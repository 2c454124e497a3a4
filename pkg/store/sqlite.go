package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/forsete/atrdoc/pkg/atr"
	"github.com/forsete/atrdoc/pkg/lineseg"
)

//go:embed schema.sql
var schema string

// SQLiteConfig configures the SQLite backend
type SQLiteConfig struct {
	Path        string
	WALMode     bool
	BusyTimeout time.Duration
	Clock       func() time.Time // Source of updated_at (nil = time.Now)
}

// DefaultSQLiteConfig returns defaults for a database at path
func DefaultSQLiteConfig(path string) SQLiteConfig {
	return SQLiteConfig{
		Path:        path,
		WALMode:     true,
		BusyTimeout: 5 * time.Second,
	}
}

// SQLite stores drafts and confirmed results in a SQLite database
type SQLite struct {
	db    *sql.DB
	clock func() time.Time
}

// OpenSQLite opens or creates the database at cfg.Path and applies the schema
func OpenSQLite(ctx context.Context, cfg SQLiteConfig) (*SQLite, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// single writer
	db.SetMaxOpenConns(1)

	pragmas := []string{fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds())}
	if cfg.WALMode {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	pragmas = append(pragmas, "PRAGMA synchronous = NORMAL")
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &SQLite{db: db, clock: clock}, nil
}

func (s *SQLite) SaveDraft(ctx context.Context, key Key, segments []lineseg.LineSegment) error {
	data, err := json.Marshal(segments)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	return s.upsert(ctx, "drafts", "segments", key, data)
}

func (s *SQLite) LoadDraft(ctx context.Context, key Key) ([]lineseg.LineSegment, error) {
	data, err := s.get(ctx, "SELECT segments FROM drafts WHERE image_id = ? AND output_id = ?", key)
	if err != nil {
		return nil, fmt.Errorf("draft %s: %w", key, err)
	}
	var segments []lineseg.LineSegment
	if err := json.Unmarshal(data, &segments); err != nil {
		return nil, fmt.Errorf("decode draft %s: %w", key, err)
	}
	return segments, nil
}

func (s *SQLite) DeleteDraft(ctx context.Context, key Key) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM drafts WHERE image_id = ? AND output_id = ?", key.ImageID, key.OutputID); err != nil {
		return fmt.Errorf("delete draft %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) SaveConfirmed(ctx context.Context, key Key, confirmed atr.Confirmed) error {
	data, err := json.Marshal(confirmed)
	if err != nil {
		return fmt.Errorf("encode confirmed result: %w", err)
	}
	return s.upsert(ctx, "confirmed", "data", key, data)
}

func (s *SQLite) LoadConfirmed(ctx context.Context, key Key) (atr.Confirmed, error) {
	data, err := s.get(ctx, "SELECT data FROM confirmed WHERE image_id = ? AND output_id = ?", key)
	if err != nil {
		return atr.Confirmed{}, fmt.Errorf("confirmed result %s: %w", key, err)
	}
	var c atr.Confirmed
	if err := json.Unmarshal(data, &c); err != nil {
		return atr.Confirmed{}, fmt.Errorf("decode confirmed result %s: %w", key, err)
	}
	return c, nil
}

// Close closes the database
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) upsert(ctx context.Context, table, column string, key Key, data []byte) error {
	query := fmt.Sprintf(`INSERT INTO %[1]s (image_id, output_id, %[2]s, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(image_id, output_id) DO UPDATE SET %[2]s = excluded.%[2]s, updated_at = excluded.updated_at`, table, column)
	_, err := s.db.ExecContext(ctx, query, key.ImageID, key.OutputID, string(data), s.clock().UnixMilli())
	if err != nil {
		return fmt.Errorf("save %s %s: %w", table, key, err)
	}
	return nil
}

func (s *SQLite) get(ctx context.Context, query string, key Key) ([]byte, error) {
	var data string
	err := s.db.QueryRowContext(ctx, query, key.ImageID, key.OutputID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(data), nil
}
