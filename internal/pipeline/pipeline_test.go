package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"subclipper/internal/caption"
	"subclipper/internal/db"
	"subclipper/internal/events"
	"subclipper/internal/models"
	"subclipper/internal/render"
	"subclipper/internal/test"
	"subclipper/internal/transcode"
	"subclipper/pkg/tasks"
)

type fakeMedia struct {
	media map[string]*models.SourceMedia
	err   error
	calls int
}

func (f *fakeMedia) GetSourceMedia(ctx context.Context, mediaID string) (*models.SourceMedia, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	m, ok := f.media[mediaID]
	if !ok {
		return nil, db.ErrNotFound
	}
	return m, nil
}

type fakeRenderer struct {
	err      error
	requests []render.Request
}

func (f *fakeRenderer) Render(ctx context.Context, req render.Request) ([]byte, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return []byte("png"), nil
}

type fakeTranscoder struct {
	mu sync.Mutex

	uploadErr    map[transcode.ResourceType]error
	transformErr error
	// readyAfter is the number of checks before the asset exists; negative means never.
	readyAfter  int
	downloadErr error
	stillErr    error
	deleteErr   error

	uploads    []transcode.UploadRequest
	transforms []transcode.Transformation
	checks     int
	stills     []float64
	downloads  int
	deleted    []string
}

func (f *fakeTranscoder) Upload(ctx context.Context, req transcode.UploadRequest) (transcode.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, req)
	if err := f.uploadErr[req.ResourceType]; err != nil {
		return transcode.Asset{}, err
	}
	return transcode.Asset{PublicID: req.PublicID, ResourceType: req.ResourceType}, nil
}

func (f *fakeTranscoder) RequestTransform(ctx context.Context, publicID string, t transcode.Transformation) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transforms = append(f.transforms, t)
	if f.transformErr != nil {
		return "", f.transformErr
	}
	return "https://cdn.example/video/upload/" + t.String() + "/" + publicID + ".mp4", nil
}

func (f *fakeTranscoder) CheckReady(ctx context.Context, resultURL string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	if f.readyAfter < 0 {
		return false, nil
	}
	if f.checks == 1 && f.readyAfter > 1 {
		return false, errors.New("connection reset")
	}
	return f.checks >= f.readyAfter, nil
}

func (f *fakeTranscoder) ExtractStill(ctx context.Context, publicID string, offsetSeconds float64, width, height int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stills = append(f.stills, offsetSeconds)
	if f.stillErr != nil {
		return nil, f.stillErr
	}
	return []byte("jpeg"), nil
}

func (f *fakeTranscoder) Download(ctx context.Context, assetURL string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloads++
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	return []byte("mp4"), nil
}

func (f *fakeTranscoder) Delete(ctx context.Context, resource transcode.ResourceType, publicID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, publicID)
	return f.deleteErr
}

func (f *fakeTranscoder) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads) + len(f.transforms) + f.checks + len(f.stills) + f.downloads + len(f.deleted)
}

type stubCompleter struct {
	mu      sync.Mutex
	content string
	err     error
	calls   int
}

func (s *stubCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.content, s.err
}

type fakeObjects struct {
	err  error
	keys []string
}

func (f *fakeObjects) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	f.keys = append(f.keys, key)
	if f.err != nil {
		return "", f.err
	}
	return "https://media.example/" + key, nil
}

type fakeCatalog struct {
	err      error
	inserted []*models.SubClip
}

func (f *fakeCatalog) InsertSubClip(ctx context.Context, clip *models.SubClip) error {
	f.inserted = append(f.inserted, clip)
	if f.err != nil {
		return f.err
	}
	clip.ID = 42
	clip.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return nil
}

type fakeProgress struct {
	mu   sync.Mutex
	sent []events.ProgressNotification
}

func (f *fakeProgress) Publish(ctx context.Context, n events.ProgressNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
	return errors.New("redis unavailable")
}

type fakeEvents struct {
	published []int64
}

func (f *fakeEvents) PublishSubClipCreated(ctx context.Context, clip *models.SubClip) error {
	f.published = append(f.published, clip.ID)
	return nil
}

type harness struct {
	media      *fakeMedia
	renderer   *fakeRenderer
	transcoder *fakeTranscoder
	ai         *stubCompleter
	objects    *fakeObjects
	catalog    *fakeCatalog
	progress   *fakeProgress
	events     *fakeEvents
	tasks      *test.MockTaskEnqueuer
	sleeps     []time.Duration
	pipeline   *Pipeline
}

const ownerID = 7

func newHarness() *harness {
	h := &harness{
		media: &fakeMedia{media: map[string]*models.SourceMedia{
			"v1": {
				ID:          "v1",
				Title:       "Live at the Roxy",
				ContentKind: "live performance",
				StorageURL:  "https://uploads.example/v1.mp4",
				ArtistID:    3,
				ArtistSlug:  "the-band",
				OwnerUserID: ownerID,
			},
		}},
		renderer:   &fakeRenderer{},
		transcoder: &fakeTranscoder{readyAfter: 3},
		ai:         &stubCompleter{content: "Roxy night was unreal\n---HASHTAGS---\n#live ##roxy music"},
		objects:    &fakeObjects{},
		catalog:    &fakeCatalog{},
		progress:   &fakeProgress{},
		events:     &fakeEvents{},
		tasks:      &test.MockTaskEnqueuer{},
	}
	poller := Poller{
		Interval: 2 * time.Second,
		Attempts: 30,
		Sleep: func(ctx context.Context, d time.Duration) error {
			h.sleeps = append(h.sleeps, d)
			return nil
		},
	}
	namer := Namer{
		Now:    func() time.Time { return time.UnixMilli(1700000000000) },
		Suffix: func() string { return "abcd1234" },
	}
	h.pipeline = New(Deps{
		Media:      h.media,
		Catalog:    h.catalog,
		Renderer:   h.renderer,
		Transcoder: h.transcoder,
		Captioner:  caption.NewGenerator(h.ai),
		Objects:    h.objects,
		Tasks:      h.tasks,
		Progress:   h.progress,
		Events:     h.events,
	}, Config{SiteURL: "https://site.example", Poller: poller, Namer: namer})
	return h
}

func validInput() Input {
	return Input{
		SourceMediaID: "v1",
		StartSeconds:  0,
		EndSeconds:    15,
		OverlayKind:   "tip",
		AutoCaption:   true,
		Orientation:   "vertical",
	}
}

func owner() *models.User {
	return &models.User{ID: ownerID, TelegramUsername: "band"}
}

func TestRunEndToEnd(t *testing.T) {
	h := newHarness()

	result, err := h.pipeline.Run(context.Background(), owner(), validInput())
	require.NoError(t, err)

	assert.Equal(t, int64(42), result.SubClipID)
	assert.Equal(t, "https://media.example/subclips/7/1700000000000-abcd1234/clip.mp4", result.ClipURL)
	assert.Equal(t, "https://media.example/subclips/7/1700000000000-abcd1234/thumbnail.jpg", result.ThumbnailURL)
	assert.Equal(t, 15.0, result.DurationSeconds)
	assert.Equal(t, "Roxy night was unreal", result.Caption)
	assert.Equal(t, []string{"#live", "#roxy", "#music"}, result.Hashtags)
	assert.Equal(t, models.OriginAIGenerated, result.CaptionOrigin)
	assert.NotEmpty(t, result.RunID)

	require.Len(t, h.renderer.requests, 1)
	assert.Equal(t, "https://site.example/the-band/tip?utm_campaign=subclip&utm_content=tip&utm_medium=qr&utm_source=social", h.renderer.requests[0].Data)
	assert.Equal(t, render.ErrorCorrectionHigh, h.renderer.requests[0].ErrorCorrection)

	require.Len(t, h.transcoder.uploads, 2)
	assert.Equal(t, transcode.ResourceImage, h.transcoder.uploads[0].ResourceType)
	assert.Equal(t, "subclips/overlays/7/1700000000000-abcd1234", h.transcoder.uploads[0].PublicID)
	assert.Equal(t, transcode.ResourceVideo, h.transcoder.uploads[1].ResourceType)
	assert.Equal(t, "https://uploads.example/v1.mp4", h.transcoder.uploads[1].RemoteURL)

	require.Len(t, h.transcoder.transforms, 1)
	assert.Equal(t,
		"so_0,eo_15/c_fill,h_1920,w_1080/l_subclips:overlays:7:1700000000000-abcd1234,w_270/fl_layer_apply,g_south_east,so_12.5,x_40,y_40",
		h.transcoder.transforms[0].String())

	assert.Equal(t, 3, h.transcoder.checks)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second, 2 * time.Second}, h.sleeps)
	assert.Equal(t, []float64{1}, h.transcoder.stills)

	require.Len(t, h.catalog.inserted, 1)
	record := h.catalog.inserted[0]
	assert.Equal(t, int64(ownerID), record.UserID)
	assert.Equal(t, "v1", record.SourceMediaID)
	assert.Equal(t, models.OverlayTip, record.OverlayKind)
	assert.Equal(t, models.SubClipStatusReady, record.Status)
	assert.Equal(t, h.renderer.requests[0].Data, record.DestinationURL)

	assert.ElementsMatch(t, []string{
		"subclips/overlays/7/1700000000000-abcd1234",
		"subclips/raw/7/1700000000000-abcd1234",
	}, h.transcoder.deleted)
	assert.Equal(t, []string{tasks.TypeNotifySubClip}, h.tasks.Types())
	assert.Equal(t, []int64{42}, h.events.published)
}

func TestRunCaptionFallbackOnRateLimit(t *testing.T) {
	h := newHarness()
	h.ai.content = ""
	h.ai.err = fmt.Errorf("caption: %w", &caption.StatusError{StatusCode: 429, Body: "slow down"})

	result, err := h.pipeline.Run(context.Background(), owner(), validInput())
	require.NoError(t, err)

	assert.Equal(t, models.OriginFallback, result.CaptionOrigin)
	assert.Equal(t, "Live at the Roxy - new clip out now 🎬", result.Caption)
	assert.Equal(t, caption.FallbackHashtags, result.Hashtags)
	assert.Equal(t, 1, h.ai.calls)
}

func TestRunSuppliedCaptionSkipsAI(t *testing.T) {
	h := newHarness()
	in := validInput()
	in.AutoCaption = false
	in.Caption = "Tonight only #live"

	result, err := h.pipeline.Run(context.Background(), owner(), in)
	require.NoError(t, err)

	assert.Equal(t, models.OriginCallerSupplied, result.CaptionOrigin)
	assert.Equal(t, "Tonight only #live", result.Caption)
	assert.Equal(t, 0, h.ai.calls)
}

func TestRunRejectsBeforeAnyExternalWork(t *testing.T) {
	tests := []struct {
		name   string
		caller *models.User
		modify func(*Input)
		kind   Kind
		status int
	}{
		{"unauthenticated", nil, func(*Input) {}, KindUnauthenticated, 401},
		{"not owner", &models.User{ID: 99}, func(*Input) {}, KindForbidden, 403},
		{"unknown media", owner(), func(in *Input) { in.SourceMediaID = "missing" }, KindNotFound, 404},
		{"too short", owner(), func(in *Input) { in.EndSeconds = 2 }, KindInvalidWindow, 400},
		{"too long", owner(), func(in *Input) { in.EndSeconds = 61 }, KindInvalidWindow, 400},
		{"reversed", owner(), func(in *Input) { in.StartSeconds, in.EndSeconds = 20, 10 }, KindInvalidWindow, 400},
		{"negative start", owner(), func(in *Input) { in.StartSeconds, in.EndSeconds = -1, 5 }, KindInvalidWindow, 400},
		{"bad overlay", owner(), func(in *Input) { in.OverlayKind = "coupon" }, KindInvalidWindow, 400},
		{"bad orientation", owner(), func(in *Input) { in.Orientation = "square" }, KindInvalidWindow, 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			in := validInput()
			tt.modify(&in)

			result, err := h.pipeline.Run(context.Background(), tt.caller, in)
			assert.Nil(t, result)
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err))

			var pErr *Error
			require.True(t, errors.As(err, &pErr))
			assert.Equal(t, tt.status, pErr.HTTPStatus())
			assert.NotEmpty(t, pErr.Message())

			assert.Empty(t, h.renderer.requests)
			assert.Equal(t, 0, h.transcoder.calls())
			assert.Equal(t, 0, h.ai.calls)
			assert.Empty(t, h.objects.keys)
			assert.Empty(t, h.catalog.inserted)
		})
	}
}

func TestRunWindowChecksSkipMediaLookup(t *testing.T) {
	h := newHarness()
	in := validInput()
	in.EndSeconds = 1

	_, err := h.pipeline.Run(context.Background(), owner(), in)
	assert.Equal(t, KindInvalidWindow, KindOf(err))
	assert.Equal(t, 0, h.media.calls)
}

func TestRunTransformTimeout(t *testing.T) {
	h := newHarness()
	h.transcoder.readyAfter = -1

	result, err := h.pipeline.Run(context.Background(), owner(), validInput())
	assert.Nil(t, result)
	assert.Equal(t, KindTransformTimeout, KindOf(err))

	assert.Equal(t, 30, h.transcoder.checks)
	require.Len(t, h.sleeps, 30)
	for _, d := range h.sleeps {
		assert.Equal(t, 2*time.Second, d)
	}
	assert.Equal(t, 0, h.transcoder.downloads)
	assert.Empty(t, h.catalog.inserted)
}

func TestRunInterruptedPollIsNotTimeout(t *testing.T) {
	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.pipeline.poller.Sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ContextSleep(ctx, d)
	}

	result, err := h.pipeline.Run(ctx, owner(), validInput())
	assert.Nil(t, result)

	var pErr *Error
	require.True(t, errors.As(err, &pErr))
	assert.Equal(t, KindCanceled, pErr.Kind)
	assert.Equal(t, StagePoll, pErr.Stage)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrPollExhausted)
	assert.Equal(t, 503, pErr.HTTPStatus())

	assert.Equal(t, 0, h.transcoder.checks)
	assert.Equal(t, 0, h.transcoder.downloads)
	assert.Empty(t, h.catalog.inserted)
}

func TestRunMediaLookupFailureIsNotNotFound(t *testing.T) {
	h := newHarness()
	h.media.err = errors.New("connection refused")

	result, err := h.pipeline.Run(context.Background(), owner(), validInput())
	assert.Nil(t, result)

	var pErr *Error
	require.True(t, errors.As(err, &pErr))
	assert.Equal(t, KindLookupFailed, pErr.Kind)
	assert.Equal(t, 503, pErr.HTTPStatus())
	assert.Equal(t, 1, h.media.calls)
	assert.Empty(t, h.renderer.requests)
	assert.Equal(t, 0, h.transcoder.calls())
}

func TestRunStageFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*harness)
		kind  Kind
		stage Stage
	}{
		{"render fails", func(h *harness) { h.renderer.err = errors.New("boom") }, KindOverlayGenerationFailed, StageOverlay},
		{"overlay upload fails", func(h *harness) {
			h.transcoder.uploadErr = map[transcode.ResourceType]error{transcode.ResourceImage: errors.New("quota")}
		}, KindOverlayGenerationFailed, StageOverlay},
		{"raw upload fails", func(h *harness) {
			h.transcoder.uploadErr = map[transcode.ResourceType]error{transcode.ResourceVideo: errors.New("too large")}
		}, KindTransformRequestFailed, StageUpload},
		{"transform rejected", func(h *harness) {
			h.transcoder.transformErr = &transcode.StatusError{Op: "explicit", StatusCode: 400, Body: "bad"}
		}, KindTransformRequestFailed, StageTransform},
		{"download fails", func(h *harness) { h.transcoder.downloadErr = transcode.ErrNotReady }, KindDownloadFailed, StageDownload},
		{"thumbnail fails", func(h *harness) { h.transcoder.stillErr = errors.New("no frame") }, KindThumbnailFailed, StageThumbnail},
		{"storage fails", func(h *harness) { h.objects.err = errors.New("access denied") }, KindPersistFailed, StageStore},
		{"catalog fails", func(h *harness) { h.catalog.err = errors.New("connection refused") }, KindPersistFailed, StagePersist},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			tt.setup(h)

			result, err := h.pipeline.Run(context.Background(), owner(), validInput())
			assert.Nil(t, result)

			var pErr *Error
			require.True(t, errors.As(err, &pErr))
			assert.Equal(t, tt.kind, pErr.Kind)
			assert.Equal(t, tt.stage, pErr.Stage)
			assert.Equal(t, PolicyFatal, PolicyFor(pErr.Stage))
			assert.Empty(t, h.tasks.EnqueuedTasks)
			assert.Empty(t, h.events.published)
		})
	}
}

func TestRunCatalogFailureLeavesStoredObjects(t *testing.T) {
	h := newHarness()
	h.catalog.err = errors.New("connection refused")

	_, err := h.pipeline.Run(context.Background(), owner(), validInput())
	assert.Equal(t, KindPersistFailed, KindOf(err))
	assert.Len(t, h.objects.keys, 2)
	assert.Empty(t, h.transcoder.deleted)
}

func TestRunCleanupFailureStillSucceeds(t *testing.T) {
	h := newHarness()
	h.transcoder.deleteErr = errors.New("service unavailable")

	result, err := h.pipeline.Run(context.Background(), owner(), validInput())
	require.NoError(t, err)
	assert.Equal(t, int64(42), result.SubClipID)

	assert.Equal(t, []string{tasks.TypeCleanupAsset, tasks.TypeCleanupAsset, tasks.TypeNotifySubClip}, h.tasks.Types())
}

func TestRunSurvivesEnqueueFailure(t *testing.T) {
	h := newHarness()
	h.tasks.Err = errors.New("redis down")

	result, err := h.pipeline.Run(context.Background(), owner(), validInput())
	require.NoError(t, err)
	assert.Equal(t, int64(42), result.SubClipID)
}

func TestRunPublishesProgress(t *testing.T) {
	h := newHarness()

	_, err := h.pipeline.Run(context.Background(), owner(), validInput())
	require.NoError(t, err)

	h.progress.mu.Lock()
	defer h.progress.mu.Unlock()
	require.NotEmpty(t, h.progress.sent)
	last := h.progress.sent[len(h.progress.sent)-1]
	assert.Equal(t, events.ProgressFinished, last.Status)
	assert.Equal(t, int64(ownerID), last.UserID)

	stages := map[string]bool{}
	for _, n := range h.progress.sent {
		stages[n.Stage] = true
	}
	for _, stage := range []Stage{StageOverlay, StageTransform, StageCaption, StageDownload, StagePersist, StageCleanup} {
		assert.True(t, stages[string(stage)], "missing stage %s", stage)
	}
}

func TestRunLandscape(t *testing.T) {
	h := newHarness()
	in := validInput()
	in.Orientation = "landscape"
	in.OverlayKind = "merch"
	in.StartSeconds, in.EndSeconds = 30, 33

	_, err := h.pipeline.Run(context.Background(), owner(), in)
	require.NoError(t, err)

	tr := h.transcoder.transforms[0]
	assert.Equal(t, 1920, tr.Width)
	assert.Equal(t, 1080, tr.Height)
	assert.Equal(t, 480, tr.Overlay.Width)
	assert.Equal(t, 0.5, tr.Overlay.StartOffset)
	assert.Equal(t, []float64{31}, h.transcoder.stills)
	assert.Contains(t, h.renderer.requests[0].Data, "https://site.example/the-band/merch?")
}
