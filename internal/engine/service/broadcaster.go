package service

import (
	"ignitex-signal-engine/internal/entity"
	"ignitex-signal-engine/pkg/telegram"
)

// TelegramBroadcaster pushes published signals to a Telegram chat.
type TelegramBroadcaster struct {
	notifier telegram.Notifier
}

// NewTelegramBroadcaster creates a new TelegramBroadcaster.
func NewTelegramBroadcaster(notifier telegram.Notifier) *TelegramBroadcaster {
	return &TelegramBroadcaster{notifier: notifier}
}

// NotifyPublished sends the formatted signal message.
func (b *TelegramBroadcaster) NotifyPublished(signal *entity.Signal) error {
	return b.notifier.SendMessage(telegram.FormatSignal(signal))
}
