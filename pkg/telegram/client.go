package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier delivers formatted signal announcements to subscribers.
type Notifier interface {
	SendMessage(text string) error
}

// client broadcasts to a single Telegram channel.
type client struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewClient authenticates against the Bot API and returns a Notifier
// bound to the given channel.
func NewClient(botToken string, chatID int64) (Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &client{
		bot:    bot,
		chatID: chatID,
	}, nil
}

// SendMessage posts a Markdown-formatted message to the channel.
func (c *client) SendMessage(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	_, err := c.bot.Send(msg)
	return err
}
