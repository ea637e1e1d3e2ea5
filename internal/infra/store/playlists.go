package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/klangbox/klangbox/internal/domain/playlist"
)

// scanPlaylist scans a sql.Row (or sql.Rows via its Scan method) into
// a playlist.Playlist.
func scanPlaylist(scanner interface{ Scan(dest ...any) error }) (*playlist.Playlist, error) {
	var (
		p         playlist.Playlist
		nfcTagID  sql.NullString
		updatedAt string
	)

	err := scanner.Scan(&p.ID, &p.Name, &p.Description, &nfcTagID, &p.TrackCount, &updatedAt)
	if err != nil {
		return nil, err
	}

	if nfcTagID.Valid {
		p.NfcTagID = nfcTagID.String
	}
	p.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPlaylist retrieves a playlist by id.
// Returns ErrPlaylistNotFound if the playlist does not exist.
func (s *Store) GetPlaylist(ctx context.Context, id string) (*playlist.Playlist, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, nfc_tag_id, track_count, updated_at
		FROM playlists
		WHERE id = ?`,
		id)

	p, err := scanPlaylist(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrPlaylistNotFound, "id %s", id)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// UpsertPlaylist creates or replaces a playlist record.
func (s *Store) UpsertPlaylist(ctx context.Context, p *playlist.Playlist) error {
	var nfcTagID any
	if p.NfcTagID != "" {
		nfcTagID = p.NfcTagID
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO playlists (
			id, name, description, nfc_tag_id, track_count, updated_at
		) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID,
		p.Name,
		p.Description,
		nfcTagID,
		p.TrackCount,
		formatTime(p.UpdatedAt),
	)
	return err
}

// ListPlaylists retrieves all playlists ordered by name.
func (s *Store) ListPlaylists(ctx context.Context) ([]*playlist.Playlist, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, nfc_tag_id, track_count, updated_at
		FROM playlists
		ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var playlists []*playlist.Playlist
	for rows.Next() {
		p, err := scanPlaylist(rows)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, p)
	}
	return playlists, rows.Err()
}

// UpdateNfcTagAssociation writes the denormalized tag binding on the
// playlist side. Any other playlist holding the tag loses it in the
// same transaction, so a tag never appears on two playlists.
// Returns ErrPlaylistNotFound for an unknown playlist id.
func (s *Store) UpdateNfcTagAssociation(ctx context.Context, playlistID, tagID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	now := formatTime(time.Now())

	if _, err := tx.ExecContext(ctx, `
		UPDATE playlists SET nfc_tag_id = NULL, updated_at = ?
		WHERE nfc_tag_id = ? AND id != ?`,
		now, tagID, playlistID); err != nil {
		return errors.Wrap(err, "clear previous holder")
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE playlists SET nfc_tag_id = ?, updated_at = ?
		WHERE id = ?`,
		tagID, now, playlistID)
	if err != nil {
		return errors.Wrap(err, "set association")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if affected == 0 {
		return errors.Wrapf(ErrPlaylistNotFound, "id %s", playlistID)
	}

	return tx.Commit()
}

// RemoveNfcTagAssociation clears the tag binding from whichever
// playlist holds it. Idempotent.
func (s *Store) RemoveNfcTagAssociation(ctx context.Context, tagID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE playlists SET nfc_tag_id = NULL, updated_at = ?
		WHERE nfc_tag_id = ?`,
		formatTime(time.Now()), tagID)
	return err
}

// FindByNfcTag returns the playlist bound to a tag, or
// ErrPlaylistNotFound when no playlist holds it. Used by the playback
// side to resolve a detected tag.
func (s *Store) FindByNfcTag(ctx context.Context, tagID string) (*playlist.Playlist, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, nfc_tag_id, track_count, updated_at
		FROM playlists
		WHERE nfc_tag_id = ?`,
		tagID)

	p, err := scanPlaylist(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrPlaylistNotFound, "nfc_tag_id %s", tagID)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}
