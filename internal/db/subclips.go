package db

import (
	"context"

	"github.com/rs/zerolog/log"
	"subclipper/internal/models"
)

const subclipColumns = `id, user_id, source_media_id, clip_url, thumbnail_url, duration_seconds,
	start_seconds, end_seconds, caption, hashtags, caption_origin, overlay_kind,
	destination_url, status, created_at`

// InsertSubClip persists a finished clip. ID, Status and CreatedAt are filled from the row.
func InsertSubClip(ctx context.Context, clip *models.SubClip) error {
	query := `
		INSERT INTO subclips (user_id, source_media_id, clip_url, thumbnail_url, duration_seconds,
			start_seconds, end_seconds, caption, hashtags, caption_origin, overlay_kind,
			destination_url, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 'ready')
		RETURNING id, status, created_at
	`
	row := DB.QueryRowxContext(ctx, query,
		clip.UserID, clip.SourceMediaID, clip.ClipURL, clip.ThumbnailURL, clip.DurationSeconds,
		clip.StartSeconds, clip.EndSeconds, clip.Caption, clip.Hashtags, clip.CaptionOrigin,
		clip.OverlayKind, clip.DestinationURL,
	)
	if err := row.Scan(&clip.ID, &clip.Status, &clip.CreatedAt); err != nil {
		log.Error().Err(err).Int64("user_id", clip.UserID).Msg("error inserting subclip")
		return err
	}
	return nil
}

func GetSubClip(ctx context.Context, id int64) (*models.SubClip, error) {
	clip := &models.SubClip{}
	err := DB.GetContext(ctx, clip, "SELECT "+subclipColumns+" FROM subclips WHERE id = $1", id)
	if err != nil {
		return nil, notFound(err)
	}
	return clip, nil
}

func ListSubClipsByUser(ctx context.Context, userID int64, limit int) ([]models.SubClip, error) {
	query := "SELECT " + subclipColumns + " FROM subclips WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2"
	var clips []models.SubClip
	if err := DB.SelectContext(ctx, &clips, query, userID, limit); err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("error listing subclips")
		return nil, err
	}
	return clips, nil
}

// ListSubClipsByArtistSlug returns the ready clips cut from any media of the artist.
func ListSubClipsByArtistSlug(ctx context.Context, slug string) ([]models.SubClip, error) {
	query := `
		SELECT s.id, s.user_id, s.source_media_id, s.clip_url, s.thumbnail_url, s.duration_seconds,
		       s.start_seconds, s.end_seconds, s.caption, s.hashtags, s.caption_origin, s.overlay_kind,
		       s.destination_url, s.status, s.created_at
		FROM subclips s
		JOIN media m ON m.id = s.source_media_id
		JOIN artists a ON a.id = m.artist_id
		WHERE a.slug = $1 AND s.status = 'ready'
		ORDER BY s.created_at DESC
	`
	var clips []models.SubClip
	if err := DB.SelectContext(ctx, &clips, query, slug); err != nil {
		return nil, err
	}
	return clips, nil
}

// SubClipObjectReferenced reports whether any catalog row points at the public URL.
func SubClipObjectReferenced(ctx context.Context, publicURL string) (bool, error) {
	var exists bool
	err := DB.GetContext(ctx, &exists,
		"SELECT EXISTS (SELECT 1 FROM subclips WHERE clip_url = $1 OR thumbnail_url = $1)", publicURL)
	return exists, err
}
