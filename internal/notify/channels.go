package notify

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/nexshop/storebot/internal/store"
)

// ChannelKind is the closed set of delivery channels. Adding a kind means
// adding a constant here and a case in Dispatcher.deliver; the default
// case rejects anything else.
type ChannelKind string

const (
	ChannelWhatsApp ChannelKind = "whatsapp"
	ChannelTelegram ChannelKind = "telegram"
	ChannelEmail    ChannelKind = "email"
)

// ParseChannelKind maps a configured channel type string onto the closed
// variant; unknown strings are rejected.
func ParseChannelKind(raw string) (ChannelKind, bool) {
	switch ChannelKind(raw) {
	case ChannelWhatsApp, ChannelTelegram, ChannelEmail:
		return ChannelKind(raw), true
	}
	return "", false
}

// MessageSender delivers on the messaging channel. Implemented by the
// session manager.
type MessageSender interface {
	Send(ctx context.Context, tenantID, recipient, text string) error
}

// TelegramBot is the surface of the Telegram API the dispatcher uses.
type TelegramBot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Mailer is the external email collaborator.
type Mailer interface {
	SendMail(ctx context.Context, to, subject, body string) error
}

func (d *Dispatcher) deliver(ctx context.Context, kind ChannelKind, tenant *store.Tenant, notificationType, message string) error {
	switch kind {
	case ChannelWhatsApp:
		if d.messaging == nil {
			return fmt.Errorf("messaging channel not configured")
		}
		if tenant.Phone == "" {
			return fmt.Errorf("tenant %s has no phone number", tenant.ID)
		}
		return d.messaging.Send(ctx, tenant.ID, tenant.Phone, message)

	case ChannelTelegram:
		if d.telegram == nil {
			return fmt.Errorf("telegram channel not configured")
		}
		chatID, err := strconv.ParseInt(tenant.TelegramChatID, 10, 64)
		if err != nil {
			return fmt.Errorf("tenant %s has no telegram chat id", tenant.ID)
		}
		_, err = d.telegram.Send(tgbotapi.NewMessage(chatID, message))
		return err

	case ChannelEmail:
		if d.mailer == nil {
			return fmt.Errorf("email channel not configured")
		}
		if tenant.Email == "" {
			return fmt.Errorf("tenant %s has no email address", tenant.ID)
		}
		return d.mailer.SendMail(ctx, tenant.Email, notificationType, message)

	default:
		return fmt.Errorf("unknown channel kind %q", kind)
	}
}
