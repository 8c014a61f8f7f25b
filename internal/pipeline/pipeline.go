// Package pipeline turns a window of an uploaded video into a branded,
// captioned short clip and records it in the catalog.
package pipeline

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"subclipper/internal/caption"
	"subclipper/internal/events"
	"subclipper/internal/models"
	"subclipper/internal/render"
	"subclipper/internal/transcode"
	"subclipper/pkg/tasks"
)

type MediaStore interface {
	GetSourceMedia(ctx context.Context, mediaID string) (*models.SourceMedia, error)
}

type Catalog interface {
	InsertSubClip(ctx context.Context, clip *models.SubClip) error
}

type Renderer interface {
	Render(ctx context.Context, req render.Request) ([]byte, error)
}

// Transcoder is the remote media service that stores, edits and serves assets.
type Transcoder interface {
	Upload(ctx context.Context, req transcode.UploadRequest) (transcode.Asset, error)
	RequestTransform(ctx context.Context, publicID string, t transcode.Transformation) (string, error)
	CheckReady(ctx context.Context, resultURL string) (bool, error)
	ExtractStill(ctx context.Context, publicID string, offsetSeconds float64, width, height int) ([]byte, error)
	Download(ctx context.Context, assetURL string) ([]byte, error)
	Delete(ctx context.Context, resource transcode.ResourceType, publicID string) error
}

type Captioner interface {
	Generate(ctx context.Context, in caption.Input) models.CaptionResult
}

type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

type ProgressPublisher interface {
	Publish(ctx context.Context, n events.ProgressNotification) error
}

type EventPublisher interface {
	PublishSubClipCreated(ctx context.Context, clip *models.SubClip) error
}

// Deps are the collaborators of a Pipeline. Tasks, Progress and Events are optional.
type Deps struct {
	Media      MediaStore
	Catalog    Catalog
	Renderer   Renderer
	Transcoder Transcoder
	Captioner  Captioner
	Objects    ObjectStore
	Tasks      tasks.TaskEnqueuer
	Progress   ProgressPublisher
	Events     EventPublisher
}

type Config struct {
	// SiteURL is the public site the QR destinations point to.
	SiteURL string
	Poller  Poller
	Namer   Namer
}

type Pipeline struct {
	media      MediaStore
	catalog    Catalog
	renderer   Renderer
	transcoder Transcoder
	captioner  Captioner
	objects    ObjectStore
	tasks      tasks.TaskEnqueuer
	progress   ProgressPublisher
	events     EventPublisher

	siteURL string
	poller  Poller
	namer   Namer
}

func New(deps Deps, cfg Config) *Pipeline {
	poller := cfg.Poller
	if poller.Attempts == 0 {
		poller = DefaultPoller()
	}
	return &Pipeline{
		media:      deps.Media,
		catalog:    deps.Catalog,
		renderer:   deps.Renderer,
		transcoder: deps.Transcoder,
		captioner:  deps.Captioner,
		objects:    deps.Objects,
		tasks:      deps.Tasks,
		progress:   deps.Progress,
		events:     deps.Events,
		siteURL:    cfg.SiteURL,
		poller:     poller,
		namer:      cfg.Namer,
	}
}

// Result is the success payload returned to the caller.
type Result struct {
	RunID           string               `json:"runId"`
	SubClipID       int64                `json:"subclipId"`
	ClipURL         string               `json:"clipUrl"`
	ThumbnailURL    string               `json:"thumbnailUrl"`
	Caption         string               `json:"caption"`
	Hashtags        []string             `json:"hashtags"`
	DurationSeconds float64              `json:"durationSeconds"`
	CaptionOrigin   models.CaptionOrigin `json:"captionOrigin"`
}

type runState struct {
	id     string
	userID int64
}

// Run executes one request end to end. Every failure is a *Error.
func (p *Pipeline) Run(ctx context.Context, caller *models.User, in Input) (*Result, error) {
	req, err := Validate(ctx, p.media, caller, in)
	if err != nil {
		log.Info().Err(err).Str("source_media_id", in.SourceMediaID).Msg("subclip request rejected")
		return nil, err
	}

	run := &runState{id: uuid.NewString(), userID: req.UserID}
	paths := p.namer.paths(req.UserID)
	logger := log.With().Str("run_id", run.id).Int64("user_id", req.UserID).Str("source_media_id", req.Media.ID).Logger()
	logger.Info().Float64("start", req.StartSeconds).Float64("end", req.EndSeconds).Str("overlay", string(req.OverlayKind)).Msg("subclip run started")

	var (
		overlay *models.OverlayAsset
		job     *models.TransformJob
		result  models.CaptionResult
	)

	// Caption has no data dependency on the overlay and transform stages.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p.stageStarted(gctx, run, StageOverlay)
		asset, err := p.generateOverlay(gctx, req, paths.OverlayPublicID)
		if err != nil {
			return err
		}
		overlay = asset

		p.stageStarted(gctx, run, StageTransform)
		job, err = p.transform(gctx, req, overlay, paths.RawPublicID)
		return err
	})
	g.Go(func() error {
		p.stageStarted(gctx, run, StageCaption)
		result = p.captioner.Generate(gctx, caption.Input{
			Mode:        req.CaptionMode,
			Supplied:    req.Caption,
			Title:       req.Media.Title,
			ContentKind: req.Media.ContentKind,
		})
		return nil
	})
	if err := g.Wait(); err != nil {
		p.fail(ctx, run, err)
		return nil, err
	}

	record, err := p.finalize(ctx, run, finalizeInput{
		req:     req,
		overlay: overlay,
		job:     job,
		caption: result,
		paths:   paths,
	})
	if err != nil {
		p.fail(ctx, run, err)
		return nil, err
	}

	p.publish(ctx, run, StageNotify, events.ProgressFinished)
	logger.Info().Int64("subclip_id", record.ID).Str("caption_origin", string(record.CaptionOrigin)).Msg("subclip run finished")

	return &Result{
		RunID:           run.id,
		SubClipID:       record.ID,
		ClipURL:         record.ClipURL,
		ThumbnailURL:    record.ThumbnailURL,
		Caption:         record.Caption,
		Hashtags:        []string(record.Hashtags),
		DurationSeconds: record.DurationSeconds,
		CaptionOrigin:   record.CaptionOrigin,
	}, nil
}

func (p *Pipeline) fail(ctx context.Context, run *runState, err error) {
	stage := StageValidate
	var pErr *Error
	if errors.As(err, &pErr) {
		stage = pErr.Stage
	}
	log.Error().Err(err).Str("run_id", run.id).Str("stage", string(stage)).Str("policy", string(PolicyFor(stage))).Msg("subclip run failed")
	p.publish(ctx, run, stage, events.ProgressFailed)
}

func (p *Pipeline) stageStarted(ctx context.Context, run *runState, stage Stage) {
	p.publish(ctx, run, stage, events.ProgressStarted)
}

func (p *Pipeline) publish(ctx context.Context, run *runState, stage Stage, status events.ProgressStatus) {
	if p.progress == nil {
		return
	}
	err := p.progress.Publish(ctx, events.ProgressNotification{
		RunID:  run.id,
		UserID: run.userID,
		Stage:  string(stage),
		Status: status,
	})
	if err != nil {
		log.Debug().Err(err).Str("run_id", run.id).Str("stage", string(stage)).Msg("progress publish failed")
	}
}
