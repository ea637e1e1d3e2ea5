package association

import (
	"context"

	"github.com/klangbox/klangbox/internal/domain/tag"
)

// TagRepository persists tag records. GetTag returns tag.ErrNotFound
// for an unknown identifier.
type TagRepository interface {
	GetTag(ctx context.Context, id tag.Identifier) (*tag.Tag, error)
	SaveTag(ctx context.Context, t *tag.Tag) error
}

// PlaylistSync writes the denormalized tag binding on the playlist
// side. The tag repository remains the source of truth; a sync
// failure is reported, never hidden (see Service.ProcessDetection).
type PlaylistSync interface {
	UpdateNfcTagAssociation(ctx context.Context, playlistID, tagID string) error
	RemoveNfcTagAssociation(ctx context.Context, tagID string) error
}
