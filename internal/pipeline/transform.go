package pipeline

import (
	"context"
	"errors"
	"math"

	"github.com/rs/zerolog/log"
	"subclipper/internal/models"
	"subclipper/internal/transcode"
)

const (
	// EndCardSeconds is how long the overlay stays on screen at the end of the clip.
	EndCardSeconds = 2.5
	overlayMargin  = 40
)

// EndCardOffset is when the overlay appears, relative to the trimmed clip.
func EndCardOffset(clipDuration float64) float64 {
	return math.Max(0, clipDuration-EndCardSeconds)
}

// BuildTransformation trims to the window, fills the orientation's frame and
// composites the overlay at a quarter of the frame width for the final seconds.
func BuildTransformation(req models.ClipRequest, overlayPublicID string) transcode.Transformation {
	width, height := req.Orientation.FrameSize()
	return transcode.Transformation{
		StartSeconds: req.StartSeconds,
		EndSeconds:   req.EndSeconds,
		Width:        width,
		Height:       height,
		Overlay: &transcode.OverlayLayer{
			PublicID:    overlayPublicID,
			Width:       width / 4,
			Gravity:     "south_east",
			OffsetX:     overlayMargin,
			OffsetY:     overlayMargin,
			StartOffset: EndCardOffset(req.DurationSeconds()),
		},
	}
}

func (p *Pipeline) transform(ctx context.Context, req models.ClipRequest, overlay *models.OverlayAsset, rawPublicID string) (*models.TransformJob, error) {
	asset, err := p.transcoder.Upload(ctx, transcode.UploadRequest{
		ResourceType: transcode.ResourceVideo,
		PublicID:     rawPublicID,
		RemoteURL:    req.Media.StorageURL,
	})
	if err != nil {
		return nil, &Error{Kind: KindTransformRequestFailed, Stage: StageUpload, Err: err}
	}

	t := BuildTransformation(req, overlay.PublicID)
	job := &models.TransformJob{
		SourcePublicID: asset.PublicID,
		Transformation: t.String(),
		Status:         models.TransformSubmitted,
	}

	resultURL, err := p.transcoder.RequestTransform(ctx, asset.PublicID, t)
	if err != nil {
		return job, &Error{Kind: KindTransformRequestFailed, Stage: StageTransform, Err: err}
	}
	job.ResultURL = resultURL
	job.Status = models.TransformPending

	attempts, err := p.poller.Wait(ctx, func(ctx context.Context) (bool, error) {
		return p.transcoder.CheckReady(ctx, resultURL)
	})
	if errors.Is(err, ErrPollExhausted) {
		job.Status = models.TransformTimedOut
		return job, &Error{Kind: KindTransformTimeout, Stage: StagePoll, Err: err}
	}
	if err != nil {
		log.Warn().Err(err).Str("result_url", resultURL).Int("attempts", attempts).Msg("poll interrupted")
		return job, &Error{Kind: KindCanceled, Stage: StagePoll, Err: err}
	}

	job.Status = models.TransformReady
	log.Debug().Str("result_url", resultURL).Int("attempts", attempts).Msg("transform ready")
	return job, nil
}
