// Package notify reports moderation outcomes to a Telegram chat.
package notify

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"image-check/api/internal/imagecheck"
)

const maxMessageLen = 3900

// Sender is the part of *tgbotapi.BotAPI we use.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Telegram struct {
	bot    Sender
	chatID int64
}

func New(bot Sender, chatID int64) *Telegram {
	return &Telegram{bot: bot, chatID: chatID}
}

// NewFromToken connects to the Bot API; it fails when the token is rejected.
func NewFromToken(token string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	bot.Debug = false
	return New(bot, chatID), nil
}

// Report sends the flagged and failed images of s. Nothing is sent when there is nothing to report.
func (t *Telegram) Report(ctx context.Context, s imagecheck.Summary) error {
	text := Format(s)
	if text == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, text)); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// Format renders the report text, or "" for a clean batch.
func Format(s imagecheck.Summary) string {
	var b strings.Builder
	if !s.OK {
		fmt.Fprintf(&b, "⚠️ image check failed: code=%d msg=%s", s.Code, s.Msg)
		return b.String()
	}

	var flagged, failed []imagecheck.ImageSummary
	for _, img := range s.Images {
		switch {
		case img.Failed:
			failed = append(failed, img)
		case img.Flagged():
			flagged = append(flagged, img)
		}
	}
	if len(flagged) == 0 && len(failed) == 0 {
		return ""
	}

	fmt.Fprintf(&b, "🖼 image check: %d normal, %d suspicious, %d confirmed, %d failed\n",
		s.Counts.Normal, s.Counts.Suspicious, s.Counts.Confirmed, s.Counts.Failed)
	for _, img := range flagged {
		fmt.Fprintf(&b, "\n• [%s] %s (task %s)", img.Verdict, img.Name, img.TaskID)
		for _, l := range img.Labels {
			fmt.Fprintf(&b, "\n   label=%d level=%d rate=%.2f", l.Label, l.Level, l.Rate)
		}
	}
	for _, img := range failed {
		fmt.Fprintf(&b, "\n• [failed %d] %s (task %s): %s", img.Status, img.Name, img.TaskID, img.FailureReason)
	}

	text := b.String()
	if len(text) > maxMessageLen {
		text = truncate(text, maxMessageLen) + "…"
	}
	return text
}

// truncate cuts at a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
