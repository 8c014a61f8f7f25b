package db

import (
	"context"

	"subclipper/internal/models"
)

// GetSourceMedia loads a media row together with the artist that owns it.
func GetSourceMedia(ctx context.Context, mediaID string) (*models.SourceMedia, error) {
	query := `
		SELECT m.id, m.title, m.content_kind, m.storage_url,
		       a.id AS artist_id, a.slug AS artist_slug, a.user_id AS owner_user_id
		FROM media m
		JOIN artists a ON a.id = m.artist_id
		WHERE m.id = $1
	`
	media := &models.SourceMedia{}
	if err := DB.GetContext(ctx, media, query, mediaID); err != nil {
		return nil, notFound(err)
	}
	return media, nil
}
