package bot

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"time"

	"divan_bot/internal/domain"
	"divan_bot/internal/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender is the sending half of tgbotapi.BotAPI.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// ChannelNotifier announces event starts and ends in the channel. Delivery is
// best effort and other notification types are ignored.
type ChannelNotifier struct {
	api       Sender
	channelID int64
	log       *slog.Logger
}

func NewChannelNotifier(api Sender, channelID int64) *ChannelNotifier {
	return &ChannelNotifier{api: api, channelID: channelID, log: logger.With("component", "channel_notifier")}
}

func (n *ChannelNotifier) Notify(_ context.Context, note domain.Notification) {
	if n.channelID == 0 {
		return
	}

	var text string
	switch note.Type {
	case domain.NotifyEventStarted:
		name, _ := note.Payload["name"].(string)
		text = fmt.Sprintf("🔥 <b>¡Evento %s!</b>\nTodos los puntos de misiones x%v", html.EscapeString(name), note.Payload["multiplier"])
		if ends, ok := note.Payload["end_time"].(time.Time); ok {
			text += "\nTermina: " + ends.Format("02.01 15:04")
		}
	case domain.NotifyEventEnded:
		name, _ := note.Payload["name"].(string)
		text = fmt.Sprintf("⌛ El evento <b>%s</b> ha terminado", html.EscapeString(name))
	default:
		return
	}

	msg := tgbotapi.NewMessage(n.channelID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := n.api.Send(msg); err != nil {
		n.log.Warn("channel notification failed", "type", note.Type, "error", err)
	}
}
