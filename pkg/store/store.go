// Package store persists editing drafts and confirmed results.
//
// A draft is the full set of line segments of a document as last seen by the editor, kept so
// that an interrupted editing session can be resumed. A confirmed result is the reconciled ATR
// result in its save envelope. Both are keyed by the upstream image and output identifiers.
//
// Three backends are provided:
//
// - Memory: process-local maps, for tests and single-shot tools
// - SQLite: a single database file (modernc.org/sqlite, no cgo)
// - Redis: a shared Redis instance with an optional draft expiry
package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/forsete/atrdoc/pkg/atr"
	"github.com/forsete/atrdoc/pkg/lineseg"
)

// ErrNotFound is returned when no draft or confirmed result exists for a key
var ErrNotFound = errors.New("not found")

// Key identifies one document
type Key struct {
	ImageID  string
	OutputID string
}

// String returns the storage key of k. Both parts are escaped so that no two keys share a
// string, whatever underscores the identifiers contain.
func (k Key) String() string {
	return "document_manager_" + escapeKeyPart(k.ImageID) + "_" + escapeKeyPart(k.OutputID)
}

// escapeKeyPart percent-encodes s, including the underscore that separates the parts
func escapeKeyPart(s string) string {
	return strings.ReplaceAll(url.PathEscape(s), "_", "%5F")
}

// Store persists drafts and confirmed results
type Store interface {
	SaveDraft(ctx context.Context, key Key, segments []lineseg.LineSegment) error
	LoadDraft(ctx context.Context, key Key) ([]lineseg.LineSegment, error)
	DeleteDraft(ctx context.Context, key Key) error
	SaveConfirmed(ctx context.Context, key Key, confirmed atr.Confirmed) error
	LoadConfirmed(ctx context.Context, key Key) (atr.Confirmed, error)
	Close() error
}

// Driver names
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Config selects and configures a backend
type Config struct {
	Driver     string        // memory, sqlite or redis
	SQLitePath string        // Database file for the sqlite driver
	RedisURL   string        // redis:// URL for the redis driver
	DraftTTL   time.Duration // Redis draft expiry (0 = keep)
}

// Open returns the backend named by cfg.Driver
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverMemory:
		return NewMemory(), nil
	case DriverSQLite:
		return OpenSQLite(ctx, DefaultSQLiteConfig(cfg.SQLitePath))
	case DriverRedis:
		return OpenRedis(ctx, RedisConfig{URL: cfg.RedisURL, DraftTTL: cfg.DraftTTL})
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
