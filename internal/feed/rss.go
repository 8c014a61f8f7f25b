package feed

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/eduncan911/podcast"
	"subclipper/internal/models"
)

// BaseURL prefers the configured public URL and falls back to the request host.
func BaseURL(configured string, r *http.Request) string {
	if configured != "" {
		return strings.TrimRight(configured, "/")
	}

	scheme := r.URL.Scheme
	if scheme == "" {
		scheme = "https"
		if r.Header.Get("X-Forwarded-Proto") != "" {
			scheme = r.Header.Get("X-Forwarded-Proto")
		}
	}

	return fmt.Sprintf("%s://%s", scheme, r.Host)
}

// GenerateSubClipFeed renders an artist's ready clips as a video podcast feed.
func GenerateSubClipFeed(slug, baseURL, siteURL string, clips []models.SubClip) (string, error) {
	var updated time.Time
	if len(clips) > 0 {
		updated = clips[0].CreatedAt
	}

	p := podcast.New(
		fmt.Sprintf("%s clips", slug),
		fmt.Sprintf("%s/%s", strings.TrimRight(siteURL, "/"), slug),
		fmt.Sprintf("Short clips from %s.", slug),
		&updated, &updated,
	)
	p.AddAtomLink(fmt.Sprintf("%s/rss/%s", baseURL, slug))

	for _, clip := range clips {
		pubDate := clip.CreatedAt
		item := podcast.Item{
			Title:       itemTitle(clip),
			Description: itemDescription(clip),
			Link:        clip.DestinationURL,
			PubDate:     &pubDate,
		}
		item.AddEnclosure(clip.ClipURL, podcast.MP4, 0)
		item.AddImage(clip.ThumbnailURL)
		item.AddDuration(int64(clip.DurationSeconds))
		if _, err := p.AddItem(item); err != nil {
			return "", fmt.Errorf("add subclip %d to feed: %w", clip.ID, err)
		}
	}

	return p.String(), nil
}

func itemTitle(clip models.SubClip) string {
	title, _, _ := strings.Cut(clip.Caption, "\n")
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Sprintf("Clip %d", clip.ID)
	}
	return title
}

func itemDescription(clip models.SubClip) string {
	description := strings.TrimSpace(clip.Caption)
	if len(clip.Hashtags) > 0 {
		description += "\n" + strings.Join(clip.Hashtags, " ")
	}
	if description == "" {
		description = itemTitle(clip)
	}
	return description
}
