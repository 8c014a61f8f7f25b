package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	TypeCleanupAsset     = "asset:cleanup"
	TypeNotifySubClip    = "subclip:notify"
	TypeReconcileStorage = "storage:reconcile"
)

// CleanupMaxRetry bounds how often a failed asset deletion is retried.
const CleanupMaxRetry = 5

type CleanupAssetTaskPayload struct {
	ResourceType string
	PublicID     string
}

func NewCleanupAssetTask(resourceType, publicID string) (*asynq.Task, error) {
	payload, err := json.Marshal(CleanupAssetTaskPayload{
		ResourceType: resourceType,
		PublicID:     publicID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeCleanupAsset, payload, asynq.MaxRetry(CleanupMaxRetry)), nil
}

type NotifySubClipTaskPayload struct {
	SubClipID int64
	UserID    int64
}

func NewNotifySubClipTask(subClipID, userID int64) (*asynq.Task, error) {
	payload, err := json.Marshal(NotifySubClipTaskPayload{SubClipID: subClipID, UserID: userID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeNotifySubClip, payload), nil
}

func NewReconcileStorageTask() (*asynq.Task, error) {
	return asynq.NewTask(TypeReconcileStorage, nil), nil
}
