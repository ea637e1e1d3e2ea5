package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/cockroachdb/errors"

	"github.com/klangbox/klangbox/internal/domain/tag"
)

// scanTag scans a sql.Row (or sql.Rows via its Scan method) into a
// tag.Tag.
func scanTag(scanner interface{ Scan(dest ...any) error }) (*tag.Tag, error) {
	var (
		uid            string
		playlistID     sql.NullString
		lastDetectedAt sql.NullString
		detectionCount int
		metadata       string
	)

	if err := scanner.Scan(&uid, &playlistID, &lastDetectedAt, &detectionCount, &metadata); err != nil {
		return nil, err
	}

	id, err := tag.Parse(uid)
	if err != nil {
		return nil, errors.Wrapf(err, "stored uid %q", uid)
	}

	t := &tag.Tag{
		Identifier:     id,
		DetectionCount: detectionCount,
		Metadata:       make(map[string]any),
	}
	if playlistID.Valid {
		t.AssociatedPlaylistID = playlistID.String
	}
	if lastDetectedAt.Valid && lastDetectedAt.String != "" {
		at, err := parseTime(lastDetectedAt.String)
		if err != nil {
			return nil, err
		}
		t.LastDetectedAt = &at
	}
	if metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &t.Metadata); err != nil {
			return nil, errors.Wrapf(err, "decode metadata for tag %s", uid)
		}
	}
	return t, nil
}

// GetTag retrieves a tag record by identifier.
// Returns tag.ErrNotFound if the tag does not exist.
func (s *Store) GetTag(ctx context.Context, id tag.Identifier) (*tag.Tag, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT uid, playlist_id, last_detected_at, detection_count, metadata
		FROM tags
		WHERE uid = ?`,
		id.UID())

	t, err := scanTag(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(tag.ErrNotFound, "uid %s", id)
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// SaveTag creates or replaces a tag record.
func (s *Store) SaveTag(ctx context.Context, t *tag.Tag) error {
	var playlistID any
	if t.AssociatedPlaylistID != "" {
		playlistID = t.AssociatedPlaylistID
	}

	var lastDetectedAt any
	if t.LastDetectedAt != nil {
		lastDetectedAt = formatTime(*t.LastDetectedAt)
	}

	metadata, err := json.Marshal(t.Metadata)
	if err != nil {
		return errors.Wrapf(err, "encode metadata for tag %s", t.Identifier)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO tags (
			uid, playlist_id, last_detected_at, detection_count, metadata
		) VALUES (?, ?, ?, ?, ?)`,
		t.Identifier.UID(),
		playlistID,
		lastDetectedAt,
		t.DetectionCount,
		string(metadata),
	)
	return err
}

// ListTags retrieves all tag records, most recently detected first.
func (s *Store) ListTags(ctx context.Context) ([]*tag.Tag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT uid, playlist_id, last_detected_at, detection_count, metadata
		FROM tags
		ORDER BY last_detected_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []*tag.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// DeleteTag removes a tag record. Idempotent.
func (s *Store) DeleteTag(ctx context.Context, id tag.Identifier) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tags WHERE uid = ?`, id.UID())
	return err
}
