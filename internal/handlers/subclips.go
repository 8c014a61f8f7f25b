package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"subclipper/internal/db"
	"subclipper/internal/middleware"
	"subclipper/internal/pipeline"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	maxRequestBytes  = 1 << 16
)

// PostSubClip runs the whole pipeline and holds the connection until it finishes.
func (h *Handlers) PostSubClip(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	var in pipeline.Input
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body", Kind: string(pipeline.KindInvalidWindow)})
		return
	}

	// A dropped connection must not abandon a run that may already have stored artifacts.
	result, err := h.runner.Run(context.WithoutCancel(r.Context()), user, in)
	if err != nil {
		var pErr *pipeline.Error
		if errors.As(err, &pErr) {
			writeJSON(w, pErr.HTTPStatus(), errorResponse{Error: pErr.Message(), Kind: string(pErr.Kind)})
			return
		}
		log.Error().Err(err).Msg("unexpected pipeline error")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

func (h *Handlers) GetSubClips(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = min(parsed, maxListLimit)
	}

	clips, err := db.ListSubClipsByUser(r.Context(), user.ID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, clips)
}

func (h *Handlers) GetSubClip(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid subclip ID")
		return
	}

	clip, err := db.GetSubClip(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Subclip not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Int64("subclip_id", id).Msg("error getting subclip")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if clip.UserID != user.ID {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}
	writeJSON(w, http.StatusOK, clip)
}
