// Package caption produces the social caption and hashtags attached to a subclip.
package caption

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"subclipper/internal/models"
)

// Delimiter separates the caption from the hashtag list in model output.
const Delimiter = "---HASHTAGS---"

const systemPrompt = "You write short-form social media captions for music and creator clips. " +
	"Reply with one caption of at most 150 characters, then a line containing exactly " + Delimiter +
	", then 5 to 8 hashtags separated by spaces."

// FallbackHashtags is the fixed set used when the model is unavailable.
var FallbackHashtags = []string{"#newmusic", "#subclip", "#shorts", "#reels", "#livemusic"}

// Completer is the AI text service.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Input is what a caption is generated from.
type Input struct {
	Mode        models.CaptionMode
	Supplied    string
	Title       string
	ContentKind string
}

type Generator struct {
	ai Completer
}

func NewGenerator(ai Completer) *Generator {
	return &Generator{ai: ai}
}

// Generate never fails: AI errors and empty answers produce the fallback template.
func (g *Generator) Generate(ctx context.Context, in Input) models.CaptionResult {
	if in.Mode == models.CaptionSupplied {
		return models.CaptionResult{
			Text:     in.Supplied,
			Hashtags: extractHashtags(in.Supplied),
			Origin:   models.OriginCallerSupplied,
		}
	}
	if g.ai == nil {
		return Fallback(in.Title)
	}

	kind := in.ContentKind
	if kind == "" {
		kind = "video"
	}
	prompt := fmt.Sprintf("Write a caption for a short clip from the %s titled %q.", kind, in.Title)
	content, err := g.ai.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		log.Warn().Err(err).Str("title", in.Title).Msg("caption generation failed, using fallback")
		return Fallback(in.Title)
	}

	result, ok := Parse(content)
	if !ok {
		log.Warn().Str("title", in.Title).Msg("caption response unusable, using fallback")
		return Fallback(in.Title)
	}
	return result
}

// Parse splits model output on Delimiter and normalizes the hashtags.
// A caption without usable hashtags gets the fallback set.
func Parse(content string) (models.CaptionResult, bool) {
	text, tags, found := strings.Cut(content, Delimiter)
	text = strings.TrimSpace(text)
	if text == "" {
		return models.CaptionResult{}, false
	}
	var hashtags []string
	if found {
		hashtags = NormalizeHashtags(strings.Fields(tags))
	}
	if len(hashtags) == 0 {
		hashtags = append([]string(nil), FallbackHashtags...)
	}
	return models.CaptionResult{Text: text, Hashtags: hashtags, Origin: models.OriginAIGenerated}, true
}

// NormalizeHashtags strips every '#' from each token and prefixes exactly one.
func NormalizeHashtags(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, token := range tokens {
		tag := strings.Trim(strings.ReplaceAll(token, "#", ""), ",.;")
		if tag == "" {
			continue
		}
		out = append(out, "#"+tag)
	}
	return out
}

// Fallback is the deterministic caption used when AI is unavailable.
func Fallback(title string) models.CaptionResult {
	title = strings.TrimSpace(title)
	text := "New clip out now 🎬"
	if title != "" {
		text = fmt.Sprintf("%s - new clip out now 🎬", title)
	}
	hashtags := make([]string, len(FallbackHashtags))
	copy(hashtags, FallbackHashtags)
	return models.CaptionResult{Text: text, Hashtags: hashtags, Origin: models.OriginFallback}
}

func extractHashtags(text string) []string {
	var tags []string
	for _, field := range strings.Fields(text) {
		if strings.HasPrefix(field, "#") {
			tags = append(tags, field)
		}
	}
	return NormalizeHashtags(tags)
}
