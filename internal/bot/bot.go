// Package bot is the Telegram front end for members and admins.
package bot

import (
	"context"
	"html"
	"log/slog"
	"sync"
	"time"

	"divan_bot/internal/logger"
	"divan_bot/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// API is the part of tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Bot struct {
	api       API
	svc       *service.Services
	isAdmin   func(tgID int64) bool
	channelID int64
	timeout   time.Duration
	stopCh    chan struct{}
	wg        sync.WaitGroup
	log       *slog.Logger
}

type Options struct {
	IsAdmin   func(tgID int64) bool
	ChannelID int64
	Timeout   time.Duration
}

func New(api API, svc *service.Services, opts Options) *Bot {
	if opts.IsAdmin == nil {
		opts.IsAdmin = func(int64) bool { return false }
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Bot{
		api:       api,
		svc:       svc,
		isAdmin:   opts.IsAdmin,
		channelID: opts.ChannelID,
		timeout:   opts.Timeout,
		stopCh:    make(chan struct{}),
		log:       logger.With("component", "bot"),
	}
}

// Start runs the long-poll loop until Stop is called.
func (b *Bot) Start() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = []string{"message", "callback_query"}

	updates := b.api.GetUpdatesChan(u)
	b.log.Info("starting bot update loop")

	for {
		select {
		case <-b.stopCh:
			b.log.Info("stopping bot update loop")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.wg.Add(1)
			go func(update tgbotapi.Update) {
				defer b.wg.Done()
				ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
				defer cancel()
				b.handleUpdate(ctx, update)
			}(update)
		}
	}
}

// Stop gracefully stops the bot
func (b *Bot) Stop() {
	b.log.Info("stopping bot...")
	close(b.stopCh)
	b.api.StopReceivingUpdates()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.log.Info("bot stopped gracefully")
	case <-time.After(10 * time.Second):
		b.log.Warn("bot shutdown timeout, some handlers may not have completed")
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("panic in update handler", "panic", r, "update_id", update.UpdateID)
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand() && update.Message.From != nil:
		b.handleCommand(ctx, update.Message)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd, args := msg.Command(), msg.CommandArguments()

	response, ok := b.userCommand(ctx, msg.From, cmd, args)
	if !ok {
		if b.isAdmin(msg.From.ID) {
			response, ok = b.adminCommand(ctx, msg.From.ID, cmd, args)
		}
		if !ok {
			response = "❓ Comando desconocido. Usa /ayuda para ver los comandos."
		}
	}

	b.reply(msg.Chat.ID, msg.MessageID, response)
}

func (b *Bot) reply(chatID int64, replyTo int, text string) {
	reply := tgbotapi.NewMessage(chatID, text)
	reply.ParseMode = tgbotapi.ModeHTML
	reply.ReplyToMessageID = replyTo
	reply.DisableWebPagePreview = true

	if _, err := b.api.Send(reply); err != nil {
		b.log.Error("error sending message", "chat_id", chatID, "error", err)
	}
}

// errorText turns a service error into the message shown to the member.
func errorText(err error) string {
	switch service.Reason(err) {
	case service.ReasonNotFound:
		return "❌ No encontrado."
	case service.ReasonInactive:
		return "⏸ Ya no está disponible."
	case service.ReasonAlreadyCompleted:
		return "✅ Ya completaste esta misión. Vuelve más tarde."
	case service.ReasonInsufficientPoints:
		return "💸 No tienes suficientes puntos."
	case service.ReasonOutOfStock:
		return "📦 Agotado."
	case service.ReasonRateLimited:
		return "⏳ Has alcanzado el límite de puntos por ahora."
	case service.ReasonInvalidState:
		return "⚠️ " + html.EscapeString(err.Error())
	default:
		return "⚠️ Error interno, inténtalo más tarde."
	}
}
