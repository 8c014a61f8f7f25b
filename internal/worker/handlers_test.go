package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"subclipper/internal/models"
	"subclipper/internal/storage"
	"subclipper/internal/test"
	"subclipper/internal/transcode"
	"subclipper/pkg/tasks"
)

type fakeAssets struct {
	err     error
	deleted []string
}

func (f *fakeAssets) Delete(ctx context.Context, resource transcode.ResourceType, publicID string) error {
	f.deleted = append(f.deleted, string(resource)+":"+publicID)
	return f.err
}

type fakeNotifier struct {
	chatIDs []int64
	clips   []*models.SubClip
}

func (f *fakeNotifier) NotifySubClipReady(ctx context.Context, chatID int64, clip *models.SubClip) error {
	f.chatIDs = append(f.chatIDs, chatID)
	f.clips = append(f.clips, clip)
	return nil
}

type fakeObjects struct {
	objects []storage.Object
	deleted []string
}

func (f *fakeObjects) List(ctx context.Context, prefix string) ([]storage.Object, error) {
	return f.objects, nil
}

func (f *fakeObjects) Delete(ctx context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeObjects) PublicURL(key string) string {
	return "https://media.example/" + key
}

func TestHandleCleanupAssetTask(t *testing.T) {
	assets := &fakeAssets{}
	handler := NewTaskHandler(assets, nil, nil, "subclips/", time.Hour)

	task, err := tasks.NewCleanupAssetTask("image", "subclips/overlays/7/1-a")
	require.NoError(t, err)

	assert.NoError(t, handler.HandleCleanupAssetTask(context.Background(), task))
	assert.Equal(t, []string{"image:subclips/overlays/7/1-a"}, assets.deleted)
}

func TestHandleCleanupAssetTaskRetriesOnFailure(t *testing.T) {
	assets := &fakeAssets{err: errors.New("503")}
	handler := NewTaskHandler(assets, nil, nil, "subclips/", time.Hour)

	task, err := tasks.NewCleanupAssetTask("video", "subclips/raw/7/1-a")
	require.NoError(t, err)

	err = handler.HandleCleanupAssetTask(context.Background(), task)
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleCleanupAssetTaskBadPayload(t *testing.T) {
	handler := NewTaskHandler(&fakeAssets{}, nil, nil, "subclips/", time.Hour)
	err := handler.HandleCleanupAssetTask(context.Background(), asynq.NewTask(tasks.TypeCleanupAsset, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleNotifySubClipTask(t *testing.T) {
	_, mock := test.NewMockDB(t)
	rows := sqlmock.NewRows([]string{"id", "user_id", "source_media_id", "clip_url", "thumbnail_url", "duration_seconds",
		"start_seconds", "end_seconds", "caption", "hashtags", "caption_origin", "overlay_kind",
		"destination_url", "status", "created_at"}).
		AddRow(9, 42, "v1", "https://media.example/clip.mp4", "https://media.example/thumb.jpg", 15.0, 0.0, 15.0,
			"caption", "{#one}", "ai-generated", "tip", "https://site.example/band/tip", "ready", time.Now())
	mock.ExpectQuery(`FROM subclips WHERE id = \$1`).WithArgs(int64(9)).WillReturnRows(rows)

	notifier := &fakeNotifier{}
	handler := NewTaskHandler(nil, notifier, nil, "subclips/", time.Hour)

	task, err := tasks.NewNotifySubClipTask(9, 42)
	require.NoError(t, err)

	assert.NoError(t, handler.HandleNotifySubClipTask(context.Background(), task))
	assert.Equal(t, []int64{42}, notifier.chatIDs)
	assert.Equal(t, "https://media.example/clip.mp4", notifier.clips[0].ClipURL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleNotifySubClipTaskMissingClip(t *testing.T) {
	_, mock := test.NewMockDB(t)
	mock.ExpectQuery(`FROM subclips WHERE id = \$1`).WithArgs(int64(9)).WillReturnError(sql.ErrNoRows)

	handler := NewTaskHandler(nil, &fakeNotifier{}, nil, "subclips/", time.Hour)
	task, err := tasks.NewNotifySubClipTask(9, 42)
	require.NoError(t, err)

	assert.ErrorIs(t, handler.HandleNotifySubClipTask(context.Background(), task), asynq.SkipRetry)
}

func TestHandleReconcileStorageTask(t *testing.T) {
	_, mock := test.NewMockDB(t)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	objects := &fakeObjects{objects: []storage.Object{
		{Key: "subclips/7/a/clip.mp4", LastModified: now.Add(-48 * time.Hour)},
		{Key: "subclips/7/b/clip.mp4", LastModified: now.Add(-48 * time.Hour)},
		{Key: "subclips/7/c/clip.mp4", LastModified: now.Add(-time.Minute)},
	}}
	mock.ExpectQuery(`SELECT EXISTS`).WithArgs("https://media.example/subclips/7/a/clip.mp4").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`SELECT EXISTS`).WithArgs("https://media.example/subclips/7/b/clip.mp4").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	handler := NewTaskHandler(nil, nil, objects, "subclips/", 24*time.Hour)
	handler.now = func() time.Time { return now }

	task, err := tasks.NewReconcileStorageTask()
	require.NoError(t, err)

	assert.NoError(t, handler.HandleReconcileStorageTask(context.Background(), task))
	assert.Equal(t, []string{"subclips/7/b/clip.mp4"}, objects.deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskPayloads(t *testing.T) {
	task, err := tasks.NewNotifySubClipTask(9, 42)
	require.NoError(t, err)
	assert.Equal(t, tasks.TypeNotifySubClip, task.Type())

	var p tasks.NotifySubClipTaskPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &p))
	assert.Equal(t, int64(9), p.SubClipID)
	assert.Equal(t, int64(42), p.UserID)
}
