// Package events publishes pipeline progress and catalog events to other services.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

type ProgressStatus string

const (
	ProgressStarted  ProgressStatus = "started"
	ProgressFinished ProgressStatus = "finished"
	ProgressFailed   ProgressStatus = "failed"
)

// ProgressNotification is one stage transition of a pipeline run.
type ProgressNotification struct {
	RunID  string         `json:"run_id"`
	UserID int64          `json:"user_id"`
	Stage  string         `json:"stage"`
	Status ProgressStatus `json:"status"`
	At     time.Time      `json:"at"`
}

// RedisPublisher is the part of *redis.Client used for progress fan-out.
type RedisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

type RedisProgress struct {
	client  RedisPublisher
	channel string
}

func NewRedisProgress(client RedisPublisher, channel string) *RedisProgress {
	return &RedisProgress{client: client, channel: channel}
}

func (r *RedisProgress) Publish(ctx context.Context, n ProgressNotification) error {
	if n.At.IsZero() {
		n.At = time.Now().UTC()
	}
	output, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, output).Err()
}
