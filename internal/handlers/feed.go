package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"subclipper/internal/db"
	"subclipper/internal/feed"
)

// GetRSSFeed serves an artist's clips as a public video podcast feed.
func (h *Handlers) GetRSSFeed(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]

	clips, err := db.ListSubClipsByArtistSlug(r.Context(), slug)
	if err != nil {
		log.Error().Err(err).Str("slug", slug).Msg("error getting subclips for feed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	rss, err := feed.GenerateSubClipFeed(slug, feed.BaseURL(h.baseURL, r), h.siteURL, clips)
	if err != nil {
		log.Error().Err(err).Str("slug", slug).Msg("error generating RSS")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml")
	w.Write([]byte(rss))
}
