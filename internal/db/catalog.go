package db

import (
	"context"

	"subclipper/internal/models"
)

// Catalog exposes the package-level queries through the global connection
// so they can be handed to components that take interfaces.
type Catalog struct{}

func (Catalog) GetSourceMedia(ctx context.Context, mediaID string) (*models.SourceMedia, error) {
	return GetSourceMedia(ctx, mediaID)
}

func (Catalog) InsertSubClip(ctx context.Context, clip *models.SubClip) error {
	return InsertSubClip(ctx, clip)
}

func (Catalog) SubClipObjectReferenced(ctx context.Context, publicURL string) (bool, error) {
	return SubClipObjectReferenced(ctx, publicURL)
}
