package models

import "time"

// User represents a portal account. ID is the Telegram user ID.
type User struct {
	ID               int64     `db:"id" json:"id"`
	TelegramUsername string    `db:"telegram_username" json:"telegram_username"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}
