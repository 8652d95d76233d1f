package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier sends outbound admin messages. It never receives updates; the
// interactive bot is an external collaborator reached through the bot gateway.
type Notifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

func NewNotifier(token string, chatID int64) (*Notifier, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("telegram bot token is empty")
	}

	api, err := tgbotapi.NewBotAPI(strings.TrimSpace(token))
	if err != nil {
		return nil, fmt.Errorf("create telegram bot api: %w", err)
	}

	return &Notifier{api: api, chatID: chatID}, nil
}

func (n *Notifier) SendText(ctx context.Context, text string) error {
	if n == nil || n.api == nil {
		return fmt.Errorf("telegram notifier is not initialized")
	}
	if n.chatID == 0 {
		return fmt.Errorf("admin chat id is required")
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("message text is empty")
	}

	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}

	_ = ctx
	return nil
}
