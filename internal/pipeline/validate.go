package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog/log"
	"subclipper/internal/db"
	"subclipper/internal/models"
)

const (
	MinClipSeconds = 3.0
	MaxClipSeconds = 60.0
)

// Input is the inbound pipeline request.
type Input struct {
	SourceMediaID string  `json:"sourceMediaId"`
	StartSeconds  float64 `json:"startSeconds"`
	EndSeconds    float64 `json:"endSeconds"`
	OverlayKind   string  `json:"overlayKind"`
	Caption       string  `json:"caption,omitempty"`
	AutoCaption   bool    `json:"autoCaption"`
	Orientation   string  `json:"orientation"`
}

// Validate turns caller input into a ClipRequest. Payload checks run before the
// ownership lookup so malformed requests never reach the database.
func Validate(ctx context.Context, media MediaStore, caller *models.User, in Input) (models.ClipRequest, error) {
	var req models.ClipRequest
	if caller == nil {
		return req, &Error{Kind: KindUnauthenticated, Stage: StageValidate}
	}

	if strings.TrimSpace(in.SourceMediaID) == "" {
		return req, invalid("sourceMediaId is required")
	}
	kind := models.OverlayKind(strings.ToLower(strings.TrimSpace(in.OverlayKind)))
	if kind == "" {
		return req, invalid("overlayKind is required")
	}
	if !kind.Valid() {
		return req, invalid(fmt.Sprintf("unknown overlayKind %q", in.OverlayKind))
	}
	orientation := models.Orientation(strings.ToLower(strings.TrimSpace(in.Orientation)))
	switch orientation {
	case "":
		orientation = models.OrientationVertical
	case models.OrientationVertical, models.OrientationLandscape:
	default:
		return req, invalid(fmt.Sprintf("unknown orientation %q", in.Orientation))
	}
	if err := checkWindow(in.StartSeconds, in.EndSeconds); err != nil {
		return req, err
	}

	source, err := media.GetSourceMedia(ctx, in.SourceMediaID)
	if errors.Is(err, db.ErrNotFound) {
		return req, &Error{Kind: KindNotFound, Stage: StageValidate}
	}
	if err != nil {
		log.Error().Err(err).Str("source_media_id", in.SourceMediaID).Msg("source media lookup failed")
		return req, &Error{Kind: KindLookupFailed, Stage: StageValidate, Err: err}
	}
	if source.OwnerUserID != caller.ID {
		return req, &Error{Kind: KindForbidden, Stage: StageValidate}
	}

	mode := models.CaptionAuto
	if !in.AutoCaption && strings.TrimSpace(in.Caption) != "" {
		mode = models.CaptionSupplied
	}

	return models.ClipRequest{
		UserID:       caller.ID,
		Media:        *source,
		StartSeconds: in.StartSeconds,
		EndSeconds:   in.EndSeconds,
		OverlayKind:  kind,
		Orientation:  orientation,
		CaptionMode:  mode,
		Caption:      in.Caption,
	}, nil
}

func checkWindow(start, end float64) *Error {
	for _, v := range []float64{start, end} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return invalid("clip window must be finite")
		}
	}
	if start < 0 {
		return invalid("startSeconds must not be negative")
	}
	duration := end - start
	if duration < MinClipSeconds || duration > MaxClipSeconds {
		return invalid(fmt.Sprintf("clip must be between %g and %g seconds, got %g", MinClipSeconds, MaxClipSeconds, duration))
	}
	return nil
}
