package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const storagePrefix = "subclips"

// Namer derives per-run asset paths from the caller, a timestamp and a random suffix.
type Namer struct {
	Now    func() time.Time
	Suffix func() string
}

func DefaultNamer() Namer {
	return Namer{
		Now:    time.Now,
		Suffix: func() string { return uuid.NewString()[:8] },
	}
}

// runPaths are the namespaced locations of one run's assets.
type runPaths struct {
	OverlayPublicID string
	RawPublicID     string
	ClipKey         string
	ThumbnailKey    string
}

func (n Namer) paths(userID int64) runPaths {
	now, suffix := time.Now, func() string { return uuid.NewString()[:8] }
	if n.Now != nil {
		now = n.Now
	}
	if n.Suffix != nil {
		suffix = n.Suffix
	}
	token := fmt.Sprintf("%d-%s", now().UnixMilli(), suffix())
	return runPaths{
		OverlayPublicID: fmt.Sprintf("%s/overlays/%d/%s", storagePrefix, userID, token),
		RawPublicID:     fmt.Sprintf("%s/raw/%d/%s", storagePrefix, userID, token),
		ClipKey:         fmt.Sprintf("%s/%d/%s/clip.mp4", storagePrefix, userID, token),
		ThumbnailKey:    fmt.Sprintf("%s/%d/%s/thumbnail.jpg", storagePrefix, userID, token),
	}
}

// StoragePrefix is where finished clips live in object storage.
func StoragePrefix() string {
	return storagePrefix + "/"
}
