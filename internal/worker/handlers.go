package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
	"subclipper/internal/db"
	"subclipper/internal/models"
	"subclipper/internal/storage"
	"subclipper/internal/transcode"
	"subclipper/pkg/tasks"
)

// AssetDeleter removes transient assets from the transcoding service.
type AssetDeleter interface {
	Delete(ctx context.Context, resource transcode.ResourceType, publicID string) error
}

type ClipNotifier interface {
	NotifySubClipReady(ctx context.Context, chatID int64, clip *models.SubClip) error
}

// ObjectStore is the durable clip storage swept by the reconcile task.
type ObjectStore interface {
	List(ctx context.Context, prefix string) ([]storage.Object, error)
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
}

type TaskHandler struct {
	assets   AssetDeleter
	notifier ClipNotifier
	objects  ObjectStore
	prefix   string
	minAge   time.Duration
	now      func() time.Time
}

func NewTaskHandler(assets AssetDeleter, notifier ClipNotifier, objects ObjectStore, prefix string, minAge time.Duration) *TaskHandler {
	return &TaskHandler{
		assets:   assets,
		notifier: notifier,
		objects:  objects,
		prefix:   prefix,
		minAge:   minAge,
		now:      time.Now,
	}
}

func (h *TaskHandler) HandleCleanupAssetTask(ctx context.Context, t *asynq.Task) error {
	var p tasks.CleanupAssetTaskPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.PublicID == "" {
		return fmt.Errorf("cleanup task without public id: %w", asynq.SkipRetry)
	}

	if err := h.assets.Delete(ctx, transcode.ResourceType(p.ResourceType), p.PublicID); err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", p.ResourceType, p.PublicID, err)
	}
	log.Info().Str("public_id", p.PublicID).Str("resource_type", p.ResourceType).Msg("transient asset deleted")
	return nil
}

func (h *TaskHandler) HandleNotifySubClipTask(ctx context.Context, t *asynq.Task) error {
	var p tasks.NotifySubClipTaskPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %v: %w", err, asynq.SkipRetry)
	}
	if h.notifier == nil {
		log.Warn().Int64("subclip_id", p.SubClipID).Msg("no notifier configured, skipping")
		return nil
	}

	clip, err := db.GetSubClip(ctx, p.SubClipID)
	if errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("subclip %d not found: %w", p.SubClipID, asynq.SkipRetry)
	}
	if err != nil {
		return fmt.Errorf("failed to get subclip: %w", err)
	}

	if err := h.notifier.NotifySubClipReady(ctx, p.UserID, clip); err != nil {
		return fmt.Errorf("failed to notify user %d: %w", p.UserID, err)
	}
	log.Info().Int64("subclip_id", clip.ID).Int64("user_id", p.UserID).Msg("creator notified")
	return nil
}

// HandleReconcileStorageTask deletes stored clip objects that no catalog row
// points to. Objects younger than minAge are skipped so in-flight runs keep theirs.
func (h *TaskHandler) HandleReconcileStorageTask(ctx context.Context, t *asynq.Task) error {
	log.Info().Str("prefix", h.prefix).Msg("reconciling clip storage")

	objects, err := h.objects.List(ctx, h.prefix)
	if err != nil {
		return fmt.Errorf("failed to list objects: %w", err)
	}

	cutoff := h.now().Add(-h.minAge)
	var removed, failed int
	for _, obj := range objects {
		if obj.LastModified.After(cutoff) {
			continue
		}
		referenced, err := db.SubClipObjectReferenced(ctx, h.objects.PublicURL(obj.Key))
		if err != nil {
			return fmt.Errorf("failed to check object %s: %w", obj.Key, err)
		}
		if referenced {
			continue
		}
		if err := h.objects.Delete(ctx, obj.Key); err != nil {
			log.Warn().Err(err).Str("key", obj.Key).Msg("failed to delete orphaned object")
			failed++
			continue
		}
		removed++
	}

	log.Info().Int("scanned", len(objects)).Int("removed", removed).Int("failed", failed).Msg("finished reconciling clip storage")
	return nil
}
