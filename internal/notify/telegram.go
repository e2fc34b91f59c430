package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"marketplace/internal/config"
	"marketplace/pkg/log"
)

// Telegram sends messages through the Bot API. When disabled it
// degrades to logging so the notification tasks still settle.
type Telegram struct {
	bot *tgbotapi.BotAPI
}

// NewTelegram creates a sender; a nil bot means log-only mode.
func NewTelegram(cfg config.TelegramConfig) (*Telegram, error) {
	if !cfg.Enabled || cfg.Token == "" {
		log.Info("Telegram notifications disabled, messages will be logged only")
		return &Telegram{}, nil
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	log.WithField("bot", bot.Self.UserName).Info("Telegram bot connected")
	return &Telegram{bot: bot}, nil
}

// Send delivers a message to the chat.
func (t *Telegram) Send(ctx context.Context, chatID int64, message string) error {
	if t.bot == nil {
		log.WithField("chat_id", chatID).Info("Telegram message sent (log only)")
		return nil
	}

	msg := tgbotapi.NewMessage(chatID, message)
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram message to %d: %w", chatID, err)
	}
	return nil
}
