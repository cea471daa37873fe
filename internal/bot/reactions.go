package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"divan_bot/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const reactPrefix = "react"

func reactionKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❤️ Reaccionar", reactPrefix),
		),
	)
}

// handlePost publishes text to the channel with a reaction button and
// returns the channel message id so missions can be bound to it.
func (b *Bot) handlePost(args string) string {
	text := strings.TrimSpace(args)
	if text == "" {
		return "❌ Uso: /post &lt;texto&gt;"
	}
	if b.channelID == 0 {
		return "❌ CHANNEL_ID no configurado"
	}

	msg := tgbotapi.NewMessage(b.channelID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = reactionKeyboard()
	sent, err := b.api.Send(msg)
	if err != nil {
		b.log.Error("channel post failed", "channel_id", b.channelID, "error", err)
		return "❌ No se pudo publicar en el canal"
	}
	return fmt.Sprintf("📢 Publicado. Mensaje <code>%d</code>\nMisión ligada: /mission_new reaction &lt;puntos&gt; &lt;nombre&gt; msg=%d",
		sent.MessageID, sent.MessageID)
}

// reactionMessageID reads the message a reaction button belongs to. Buttons
// may carry it explicitly as "react:<id>".
func reactionMessageID(cq *tgbotapi.CallbackQuery) (int64, bool) {
	data := cq.Data
	if rest, ok := strings.CutPrefix(data, reactPrefix+":"); ok {
		id, err := strconv.ParseInt(rest, 10, 64)
		return id, err == nil
	}
	if data != reactPrefix || cq.Message == nil {
		return 0, false
	}
	return int64(cq.Message.MessageID), true
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	messageID, ok := reactionMessageID(cq)
	if !ok || cq.From == nil {
		b.answer(cq.ID, "")
		return
	}

	u, err := b.svc.Users.EnsureUser(ctx, cq.From.ID, cq.From.UserName, cq.From.FirstName)
	if err != nil {
		b.answer(cq.ID, "Error interno, inténtalo más tarde")
		return
	}

	results, err := b.svc.Missions.RecordReaction(ctx, u.ID, messageID)
	if err != nil {
		b.answer(cq.ID, reactionErrorText(err))
		return
	}

	var total int64
	for _, r := range results {
		if r.Grant != nil {
			total += r.Grant.Granted
		}
	}
	b.answer(cq.ID, fmt.Sprintf("❤️ +%d puntos", total))
}

func reactionErrorText(err error) string {
	switch service.Reason(err) {
	case service.ReasonAlreadyCompleted:
		return "Ya reaccionaste a este mensaje"
	case service.ReasonNotFound:
		return "❤️ Gracias por reaccionar"
	case service.ReasonRateLimited:
		return "Límite de puntos alcanzado por ahora"
	case service.ReasonInactive:
		return "Esta misión ya no está disponible"
	default:
		return "Error interno, inténtalo más tarde"
	}
}

func (b *Bot) answer(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.log.Warn("answer callback failed", "error", err)
	}
}
