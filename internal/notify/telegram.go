// Package notify talks to creators over Telegram.
package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"subclipper/internal/db"
	"subclipper/internal/models"
)

const recentClipsLimit = 10

// Sender is the part of *tgbotapi.BotAPI used to deliver messages.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Telegram struct {
	bot     Sender
	baseURL string
}

func NewTelegram(bot Sender, baseURL string) *Telegram {
	return &Telegram{bot: bot, baseURL: strings.TrimRight(baseURL, "/")}
}

// NewBotAPI connects to Telegram with the bot token.
func NewBotAPI(token string) (*tgbotapi.BotAPI, error) {
	if token == "" {
		return nil, errors.New("telegram bot token is not set")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	log.Info().Str("account", bot.Self.UserName).Msg("authorized on telegram")
	return bot, nil
}

// NotifySubClipReady sends the thumbnail with the caption and clip link.
// Telegram user IDs double as private chat IDs.
func (t *Telegram) NotifySubClipReady(ctx context.Context, chatID int64, clip *models.SubClip) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(clip.ThumbnailURL))
	photo.Caption = readyCaption(clip)
	photo.ParseMode = tgbotapi.ModeHTML
	if _, err := t.bot.Send(photo); err != nil {
		return fmt.Errorf("send subclip %d to chat %d: %w", clip.ID, chatID, err)
	}
	return nil
}

func readyCaption(clip *models.SubClip) string {
	var b strings.Builder
	b.WriteString("<b>Your clip is ready</b>\n")
	b.WriteString(html.EscapeString(clip.Caption))
	if len(clip.Hashtags) > 0 {
		b.WriteString("\n")
		b.WriteString(html.EscapeString(strings.Join(clip.Hashtags, " ")))
	}
	fmt.Fprintf(&b, "\n\n<a href=\"%s\">Download (%.0fs)</a>", html.EscapeString(clip.ClipURL), clip.DurationSeconds)
	return b.String()
}

// Run answers bot commands until the updates channel closes.
func (t *Telegram) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			t.HandleUpdate(ctx, update)
		}
	}
}

// StartBot polls Telegram for updates and answers them until ctx is done.
func StartBot(ctx context.Context, bot *tgbotapi.BotAPI, baseURL string) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := bot.GetUpdatesChan(u)
	go func() {
		<-ctx.Done()
		bot.StopReceivingUpdates()
	}()
	NewTelegram(bot, baseURL).Run(ctx, updates)
}

func (t *Telegram) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	message := update.Message
	if message == nil || message.From == nil {
		return
	}
	log.Debug().Str("from", message.From.UserName).Str("text", message.Text).Msg("telegram message")

	switch message.Command() {
	case "clips":
		t.handleClipsCommand(ctx, message)
	case "start", "help":
		t.reply(message.Chat.ID, fmt.Sprintf("Open %s to cut a clip. Send /clips to see your latest ones.", t.baseURL))
	default:
		t.reply(message.Chat.ID, "I don't know that command. Try /clips.")
	}
}

func (t *Telegram) handleClipsCommand(ctx context.Context, message *tgbotapi.Message) {
	clips, err := db.ListSubClipsByUser(ctx, message.From.ID, recentClipsLimit)
	if err != nil {
		log.Error().Err(err).Int64("user_id", message.From.ID).Msg("error listing clips for bot")
		t.reply(message.Chat.ID, "Internal server error")
		return
	}
	if len(clips) == 0 {
		t.reply(message.Chat.ID, "You have no clips yet.")
		return
	}

	var b strings.Builder
	for _, clip := range clips {
		fmt.Fprintf(&b, "<b>%s</b> (%.0fs): %s\n",
			html.EscapeString(firstLine(clip.Caption)), clip.DurationSeconds, html.EscapeString(clip.ClipURL))
	}
	msg := tgbotapi.NewMessage(message.Chat.ID, b.String())
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := t.bot.Send(msg); err != nil {
		log.Warn().Err(err).Int64("chat_id", message.Chat.ID).Msg("error sending clips list")
	}
}

func (t *Telegram) reply(chatID int64, text string) {
	if _, err := t.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("error sending telegram reply")
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	const maxRunes = 60
	if r := []rune(line); len(r) > maxRunes {
		return string(r[:maxRunes]) + "…"
	}
	return line
}
