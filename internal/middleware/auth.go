package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/telegram-mini-apps/init-data-golang"
	"subclipper/internal/db"
	"subclipper/internal/models"
)

type contextKey string

// UserContextKey is the key for the user in the context.
const UserContextKey = contextKey("user")

var telegramBotToken string

// SetBotToken sets the token init data signatures are checked against.
func SetBotToken(token string) {
	telegramBotToken = token
}

// UserFromContext returns the authenticated caller, if any.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	return user, ok && user != nil
}

// AuthMiddleware validates the Telegram Mini App initData and upserts the user.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "tma" {
			writeError(w, "Authorization header format must be 'tma <initData>'", http.StatusUnauthorized)
			return
		}

		initData := parts[1]
		if telegramBotToken == "" {
			log.Error().Msg("TELEGRAM_BOT_TOKEN is not set")
			writeError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		if err := initdata.Validate(initData, telegramBotToken, 0); err != nil {
			log.Warn().Err(err).Msg("invalid init data")
			writeError(w, "Invalid init data", http.StatusUnauthorized)
			return
		}

		data, err := initdata.Parse(initData)
		if err != nil {
			log.Warn().Err(err).Msg("error parsing init data")
			writeError(w, "Error parsing init data", http.StatusBadRequest)
			return
		}

		user, err := db.UpsertUser(r.Context(), data.User.ID, data.User.Username)
		if err != nil {
			writeError(w, "Failed to authenticate user", http.StatusInternalServerError)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + strings.ReplaceAll(message, `"`, `'`) + `"}`))
}
