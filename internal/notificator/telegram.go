package notificator

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"

	"github.com/core-coin/vaultminter/pkg/logger"
)

// TelegramNotificator posts alerts to a single operator chat.
type TelegramNotificator struct {
	logger *logger.Logger
	bot    *bot.Bot

	chatID string
}

func NewTelegramNotificator(logger *logger.Logger, token, chatID string, opts ...bot.Option) (*TelegramNotificator, error) {
	if chatID == "" {
		return nil, fmt.Errorf("telegram alert chat id is empty")
	}
	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &TelegramNotificator{logger: logger, bot: b, chatID: chatID}, nil
}

func (t *TelegramNotificator) SendNotification(ctx context.Context, message string) error {
	params := &bot.SendMessageParams{
		ChatID: t.chatID,
		Text:   message,
	}
	if _, err := t.bot.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}
