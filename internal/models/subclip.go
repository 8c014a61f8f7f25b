package models

import (
	"time"

	"github.com/lib/pq"
)

const SubClipStatusReady = "ready"

// SubClip is the durable catalog row produced by a successful pipeline run.
type SubClip struct {
	ID              int64          `db:"id" json:"id"`
	UserID          int64          `db:"user_id" json:"user_id"`
	SourceMediaID   string         `db:"source_media_id" json:"source_media_id"`
	ClipURL         string         `db:"clip_url" json:"clip_url"`
	ThumbnailURL    string         `db:"thumbnail_url" json:"thumbnail_url"`
	DurationSeconds float64        `db:"duration_seconds" json:"duration_seconds"`
	StartSeconds    float64        `db:"start_seconds" json:"start_seconds"`
	EndSeconds      float64        `db:"end_seconds" json:"end_seconds"`
	Caption         string         `db:"caption" json:"caption"`
	Hashtags        pq.StringArray `db:"hashtags" json:"hashtags"`
	CaptionOrigin   CaptionOrigin  `db:"caption_origin" json:"caption_origin"`
	OverlayKind     OverlayKind    `db:"overlay_kind" json:"overlay_kind"`
	DestinationURL  string         `db:"destination_url" json:"destination_url"`
	Status          string         `db:"status" json:"status"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
}
