package tag

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// Tag is the durable record of a physical tag: its playlist
// association and its detection history.
type Tag struct {
	Identifier           Identifier
	AssociatedPlaylistID string // empty means unassociated
	LastDetectedAt       *time.Time
	DetectionCount       int
	Metadata             map[string]any
}

// New creates a tag record with no association and no history.
func New(id Identifier) *Tag {
	return &Tag{
		Identifier: id,
		Metadata:   make(map[string]any),
	}
}

// RecordDetection increments the detection counter and stamps the
// detection time. Called on every detection regardless of the
// association outcome.
func (t *Tag) RecordDetection(at time.Time) {
	t.DetectionCount++
	t.LastDetectedAt = &at
}

// Associate binds the tag to a playlist. The playlist id must be
// non-empty and non-whitespace.
func (t *Tag) Associate(playlistID string) error {
	if strings.TrimSpace(playlistID) == "" {
		return errors.Wrap(ErrEmptyPlaylistID, "associate tag")
	}
	t.AssociatedPlaylistID = playlistID
	return nil
}

// Dissociate clears the playlist association.
// Returns true if an association was present.
func (t *Tag) Dissociate() bool {
	if t.AssociatedPlaylistID == "" {
		return false
	}
	t.AssociatedPlaylistID = ""
	return true
}

// IsAssociated reports whether the tag is bound to any playlist.
func (t *Tag) IsAssociated() bool {
	return t.AssociatedPlaylistID != ""
}

// IsAssociatedWith reports whether the tag is bound to the given playlist.
func (t *Tag) IsAssociatedWith(playlistID string) bool {
	return playlistID != "" && t.AssociatedPlaylistID == playlistID
}
