// Package store provides SQLite-backed persistence for tags and
// playlists.
package store

import (
	"database/sql"
	_ "embed"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/klangbox/klangbox/internal/app/association"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

var ErrPlaylistNotFound = errors.New("playlist not found")

var (
	_ association.TagRepository = (*Store)(nil)
	_ association.PlaylistSync  = (*Store)(nil)
)

// Store provides SQLite-backed persistence. It implements the
// association engine's TagRepository and PlaylistSync ports.
type Store struct {
	db *sql.DB
}

// Open creates a SQLite store at the given path, configures WAL mode,
// and runs schema migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrap(err, "create store directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}

	// Single writer; modernc sqlite serializes poorly across
	// connections otherwise.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, errors.Wrapf(err, "exec %q", pragma)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "apply schema")
	}

	zlog.Info().Msgf("store opened: path=%s", path)
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// formatTime serializes a timestamp for storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime deserializes a stored timestamp.
func parseTime(v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parse time %q", v)
	}
	return t, nil
}
