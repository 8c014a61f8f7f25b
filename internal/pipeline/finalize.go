package pipeline

import (
	"context"

	"github.com/rs/zerolog/log"
	"subclipper/internal/models"
	"subclipper/internal/transcode"
	"subclipper/pkg/tasks"
)

// thumbnailOffset is how far into the clip the still frame is taken.
const thumbnailOffset = 1.0

type finalizeInput struct {
	req     models.ClipRequest
	overlay *models.OverlayAsset
	job     *models.TransformJob
	caption models.CaptionResult
	paths   runPaths
}

func (p *Pipeline) finalize(ctx context.Context, run *runState, in finalizeInput) (*models.SubClip, error) {
	p.stageStarted(ctx, run, StageDownload)
	clip, err := p.transcoder.Download(ctx, in.job.ResultURL)
	if err != nil {
		return nil, &Error{Kind: KindDownloadFailed, Stage: StageDownload, Err: err}
	}

	p.stageStarted(ctx, run, StageThumbnail)
	width, height := in.req.Orientation.ThumbnailSize()
	thumb, err := p.transcoder.ExtractStill(ctx, in.job.SourcePublicID, in.req.StartSeconds+thumbnailOffset, width, height)
	if err != nil {
		return nil, &Error{Kind: KindThumbnailFailed, Stage: StageThumbnail, Err: err}
	}

	p.stageStarted(ctx, run, StageStore)
	clipURL, err := p.objects.Put(ctx, in.paths.ClipKey, "video/mp4", clip)
	if err != nil {
		return nil, &Error{Kind: KindPersistFailed, Stage: StageStore, Err: err}
	}
	thumbnailURL, err := p.objects.Put(ctx, in.paths.ThumbnailKey, "image/jpeg", thumb)
	if err != nil {
		return nil, &Error{Kind: KindPersistFailed, Stage: StageStore, Err: err}
	}

	p.stageStarted(ctx, run, StagePersist)
	hashtags := make([]string, len(in.caption.Hashtags))
	copy(hashtags, in.caption.Hashtags)
	record := &models.SubClip{
		UserID:          in.req.UserID,
		SourceMediaID:   in.req.Media.ID,
		ClipURL:         clipURL,
		ThumbnailURL:    thumbnailURL,
		DurationSeconds: in.req.DurationSeconds(),
		StartSeconds:    in.req.StartSeconds,
		EndSeconds:      in.req.EndSeconds,
		Caption:         in.caption.Text,
		Hashtags:        hashtags,
		CaptionOrigin:   in.caption.Origin,
		OverlayKind:     in.req.OverlayKind,
		DestinationURL:  in.overlay.DestinationURL,
		Status:          models.SubClipStatusReady,
	}
	if err := p.catalog.InsertSubClip(ctx, record); err != nil {
		// The clip and thumbnail objects stay behind; the reconcile sweep removes them.
		log.Error().Err(err).Str("clip_url", clipURL).Msg("catalog insert failed after upload")
		return nil, &Error{Kind: KindPersistFailed, Stage: StagePersist, Err: err}
	}

	p.cleanup(ctx, run, in)
	p.announce(ctx, run, record)
	return record, nil
}

// cleanup removes the transient overlay image and raw upload. Deleting the raw
// upload also drops its derived transformations. Failures become retry tasks.
func (p *Pipeline) cleanup(ctx context.Context, run *runState, in finalizeInput) {
	p.stageStarted(ctx, run, StageCleanup)
	assets := []struct {
		resource transcode.ResourceType
		publicID string
	}{
		{transcode.ResourceImage, in.overlay.PublicID},
		{transcode.ResourceVideo, in.job.SourcePublicID},
	}
	for _, asset := range assets {
		if asset.publicID == "" {
			continue
		}
		err := p.transcoder.Delete(ctx, asset.resource, asset.publicID)
		if err == nil {
			continue
		}
		log.Warn().Err(err).Str("run_id", run.id).Str("public_id", asset.publicID).Msg("transient asset cleanup failed, scheduling retry")
		if p.tasks == nil {
			continue
		}
		task, err := tasks.NewCleanupAssetTask(string(asset.resource), asset.publicID)
		if err != nil {
			log.Warn().Err(err).Msg("could not build cleanup task")
			continue
		}
		if _, err := p.tasks.Enqueue(task); err != nil {
			log.Warn().Err(err).Str("public_id", asset.publicID).Msg("could not enqueue cleanup task")
		}
	}
}

// announce tells the rest of the system about a new subclip. Nothing here can fail the run.
func (p *Pipeline) announce(ctx context.Context, run *runState, record *models.SubClip) {
	p.stageStarted(ctx, run, StageNotify)
	if p.tasks != nil {
		task, err := tasks.NewNotifySubClipTask(record.ID, record.UserID)
		if err == nil {
			_, err = p.tasks.Enqueue(task)
		}
		if err != nil {
			log.Warn().Err(err).Int64("subclip_id", record.ID).Msg("could not enqueue notify task")
		}
	}
	if p.events != nil {
		if err := p.events.PublishSubClipCreated(ctx, record); err != nil {
			log.Warn().Err(err).Int64("subclip_id", record.ID).Msg("could not publish subclip.created")
		}
	}
}
