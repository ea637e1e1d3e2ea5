// Package tag provides the NFC tag domain entities.
package tag

import (
	"encoding/hex"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	ErrInvalidIdentifier = errors.New("invalid tag identifier")
	ErrNotFound          = errors.New("tag not found")
	ErrEmptyPlaylistID   = errors.New("playlist id must not be empty")
)

// Minimum UID length after normalization. Real NFC UIDs are at least
// 4 bytes, so anything shorter than 4 hex characters is garbage.
const minUIDLength = 4

var separatorReplacer = strings.NewReplacer(":", "", "-", "", " ", "", "\t", "")

// Identifier is the normalized identity of a physical NFC tag.
// The UID is lowercase hexadecimal with separators removed.
// Normalization happens once, at construction time, so equality is
// case- and separator-insensitive by construction.
type Identifier struct {
	uid string
}

// Parse normalizes a raw UID string into an Identifier.
// Colon, dash and whitespace separators are stripped and the result is
// lowercased. Rejects empty input, input shorter than four hex
// characters, and any non-hex character.
func Parse(raw string) (Identifier, error) {
	normalized := strings.ToLower(separatorReplacer.Replace(raw))
	if normalized == "" {
		return Identifier{}, errors.Wrap(ErrInvalidIdentifier, "empty uid")
	}
	if len(normalized) < minUIDLength {
		return Identifier{}, errors.Wrapf(ErrInvalidIdentifier, "uid too short: %q", normalized)
	}
	for _, r := range normalized {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return Identifier{}, errors.Wrapf(ErrInvalidIdentifier, "non-hex character %q in uid", r)
		}
	}
	return Identifier{uid: normalized}, nil
}

// FromBytes hex-encodes raw UID bytes and delegates to Parse.
func FromBytes(b []byte) (Identifier, error) {
	return Parse(hex.EncodeToString(b))
}

// UID returns the normalized UID string.
func (i Identifier) UID() string {
	return i.uid
}

// IsZero reports whether the identifier is the zero value.
func (i Identifier) IsZero() bool {
	return i.uid == ""
}

// String returns the normalized UID string.
func (i Identifier) String() string {
	return i.uid
}
