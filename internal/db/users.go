package db

import (
	"context"

	"github.com/rs/zerolog/log"
	"subclipper/internal/models"
)

// UpsertUser inserts a new user or updates an existing one based on the Telegram ID.
func UpsertUser(ctx context.Context, id int64, username string) (*models.User, error) {
	query := `
		INSERT INTO users (id, telegram_username)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET
			telegram_username = EXCLUDED.telegram_username,
			updated_at = NOW()
		RETURNING id, telegram_username, created_at, updated_at
	`
	user := &models.User{}
	err := DB.GetContext(ctx, user, query, id, username)
	if err != nil {
		log.Error().Err(err).Int64("user_id", id).Msg("error upserting user")
		return nil, err
	}
	return user, nil
}
