package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
	"subclipper/internal/db"
	"subclipper/internal/models"
	"subclipper/internal/pipeline"
)

// ClipRunner runs the subclip pipeline for one request.
type ClipRunner interface {
	Run(ctx context.Context, caller *models.User, in pipeline.Input) (*pipeline.Result, error)
}

type Handlers struct {
	runner  ClipRunner
	baseURL string
	siteURL string
}

func New(runner ClipRunner, baseURL, siteURL string) *Handlers {
	return &Handlers{
		runner:  runner,
		baseURL: baseURL,
		siteURL: siteURL,
	}
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if db.DB != nil {
		if err := db.DB.PingContext(r.Context()); err != nil {
			log.Error().Err(err).Msg("health check: database unreachable")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("error encoding response")
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
