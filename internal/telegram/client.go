// Package telegram sends learning milestone notifications via the Telegram
// Bot API. A message goes out when a venue's learning status improves, for
// example from "learning" to "confident", and lists the strongest patterns
// discovered so far.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/venuepulse/internal/models"
)

// maxPatterns caps the patterns listed in one message.
const maxPatterns = 3

// sender is the part of *tgbotapi.BotAPI the client uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client handles Telegram notifications
type Client struct {
	bot            sender
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	return newClient(bot, chatID, maxRetries, retryDelayBase)
}

func newClient(bot sender, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}
	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// NotifyStatusChange sends a milestone message for snap.
func (c *Client) NotifyStatusChange(ctx context.Context, snap *models.LearningSnapshot, previous models.LearningStatus) error {
	msg := tgbotapi.NewMessage(c.chatID, formatMessage(snap, previous))
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err

		if i == c.maxRetries-1 {
			break
		}
		t := time.NewTimer(c.retryDelayBase * time.Duration(i+1))
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

// formatMessage renders a milestone as a MarkdownV2 message.
func formatMessage(snap *models.LearningSnapshot, previous models.LearningStatus) string {
	var b strings.Builder

	fmt.Fprintf(&b, "🎯 *%s* is now %s\n", escapeMarkdownV2(snap.VenueID), escapeMarkdownV2(statusText(snap.Status)))
	fmt.Fprintf(&b, "was: %s\n\n", escapeMarkdownV2(statusText(previous)))

	fmt.Fprintf(&b, "📊 Progress: *%s*\n", escapeMarkdownV2(fmt.Sprintf("%d%%", snap.Progress)))
	fmt.Fprintf(&b, "📅 %s weeks, %d readings\n",
		escapeMarkdownV2(fmt.Sprintf("%.1f", snap.WeeksOfData)), snap.TotalReadings)

	if p := snap.Profile; p.PeakDay != "" {
		fmt.Fprintf(&b, "🔥 Busiest: %s around %s\n",
			escapeMarkdownV2(p.PeakDay), escapeMarkdownV2(fmt.Sprintf("%02d:00", p.PeakHour)))
	}

	if len(snap.Patterns) > 0 {
		b.WriteString("\n*Top patterns*\n")
		for i, p := range snap.Patterns {
			if i == maxPatterns {
				break
			}
			fmt.Fprintf(&b, "%d\\. %s \\(%s\\)\n", i+1,
				escapeMarkdownV2(p.Statement), escapeMarkdownV2(fmt.Sprintf("%d%% confidence", p.Confidence)))
		}
	}
	return b.String()
}

func statusText(s models.LearningStatus) string {
	return strings.ReplaceAll(string(s), "_", " ")
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
