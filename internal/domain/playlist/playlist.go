// Package playlist provides the Playlist domain entity.
package playlist

import "time"

// Playlist represents a playable playlist stored on the device.
// NfcTagID is the denormalized side of the tag binding; the tag
// record is the source of truth (see the association service).
type Playlist struct {
	ID          string
	Name        string
	Description string
	NfcTagID    string // UID of the bound NFC tag, empty if none
	TrackCount  int
	UpdatedAt   time.Time
}

// HasNfcTag reports whether the playlist holds a tag binding.
func (p *Playlist) HasNfcTag() bool {
	return p.NfcTagID != ""
}
