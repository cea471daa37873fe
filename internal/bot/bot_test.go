package bot

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"divan_bot/internal/domain"
	"divan_bot/internal/repository/memory"
	"divan_bot/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	adminTgID = 900
	channelID = -100123
)

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	nextID   int
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	f.nextID++
	return tgbotapi.Message{MessageID: f.nextID}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (f *fakeAPI) StopReceivingUpdates() {}

func (f *fakeAPI) last() tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1].(tgbotapi.MessageConfig)
}

func (f *fakeAPI) lastAnswer() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1].(tgbotapi.CallbackConfig).Text
}

type fixture struct {
	bot *Bot
	api *fakeAPI
	svc *service.Services
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	api := &fakeAPI{}
	clock := clockwork.NewFakeClockAt(time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC))
	svc, err := service.New(service.Deps{
		Store:    store,
		Clock:    clock,
		Location: time.UTC,
		Notifier: NewChannelNotifier(api, channelID),
	}, service.DefaultLimits, store)
	require.NoError(t, err)

	b := New(api, svc, Options{
		IsAdmin:   func(id int64) bool { return id == adminTgID },
		ChannelID: channelID,
	})
	return &fixture{bot: b, api: api, svc: svc}
}

// send runs a command as the given telegram user and returns the reply text.
func (f *fixture) send(tgID int64, username, text string) string {
	cmdLen := len(text)
	if i := strings.IndexByte(text, ' '); i >= 0 {
		cmdLen = i
	}
	f.bot.handleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: tgID, UserName: username, FirstName: username},
		Chat:      &tgbotapi.Chat{ID: tgID},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}},
	}})
	return f.api.last().Text
}

func (f *fixture) react(tgID int64, messageID int) string {
	f.bot.handleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: tgID, UserName: "u" + strconv.FormatInt(tgID, 10)},
		Message: &tgbotapi.Message{MessageID: messageID, Chat: &tgbotapi.Chat{ID: channelID}},
		Data:    reactPrefix,
	}})
	return f.api.lastAnswer()
}

func TestStartAndProfile(t *testing.T) {
	f := newFixture(t)

	out := f.send(1, "ana", "/start")
	assert.Contains(t, out, "Bienvenida al Diván, ana")
	assert.NotContains(t, out, "Administración")
	assert.Contains(t, f.send(adminTgID, "diana", "/start"), "Administración")

	out = f.send(1, "ana", "/perfil")
	assert.Contains(t, out, "Puntos: <b>0</b>")
	assert.Contains(t, out, "Suscriptor Íntimo")
	assert.Equal(t, tgbotapi.ModeHTML, f.api.last().ParseMode)
}

func TestCompleteMission(t *testing.T) {
	f := newFixture(t)

	out := f.send(adminTgID, "diana", "/mission_new daily 10 Comenta hoy")
	require.Contains(t, out, "daily_comenta_hoy")

	assert.Contains(t, f.send(1, "ana", "/misiones"), "daily_comenta_hoy")
	assert.Contains(t, f.send(1, "ana", "/misiones monthly"), "Tipos")

	assert.Contains(t, f.send(1, "ana", "/completar daily_comenta_hoy"), "+10 puntos")
	assert.Contains(t, f.send(1, "ana", "/completar daily_comenta_hoy"), "Ya completaste")
	assert.Contains(t, f.send(1, "ana", "/misiones"), "No tienes misiones pendientes")
	assert.Contains(t, f.send(1, "ana", "/logros"), "1/")
}

func TestRedeem(t *testing.T) {
	f := newFixture(t)
	f.send(1, "ana", "/start")

	require.Contains(t, f.send(adminTgID, "diana", "/reward_new 30 1 Foto exclusiva"), "Recompensa #1")
	assert.Contains(t, f.send(1, "ana", "/tienda"), "Foto exclusiva")
	assert.Contains(t, f.send(1, "ana", "/canjear 1"), "No tienes suficientes puntos")

	assert.Contains(t, f.send(adminTgID, "diana", "/addpoints @ana 100 regalo"), "Nuevo saldo: 100")
	assert.Contains(t, f.send(1, "ana", "/canjear #1"), "Saldo: 70")
	assert.Contains(t, f.send(1, "ana", "/canjear 1"), "Agotado")

	assert.Contains(t, f.send(adminTgID, "diana", "/deduct @ana 20"), "Nuevo saldo: 50")
	assert.Contains(t, f.send(adminTgID, "diana", "/deduct @ana 500"), "No tienes suficientes puntos")
	assert.Contains(t, f.send(adminTgID, "diana", "/setpoints @ana 1000"), "nivel 4")
}

func TestAdminCommandsRequireAdmin(t *testing.T) {
	f := newFixture(t)

	assert.Contains(t, f.send(1, "ana", "/stats"), "Comando desconocido")
	assert.Contains(t, f.send(1, "ana", "/addpoints @ana 100"), "Comando desconocido")
	assert.Contains(t, f.send(adminTgID, "diana", "/stats"), "Estadísticas")

	assert.Contains(t, f.send(adminTgID, "diana", "/season_reset"), "confirmar")
	assert.Contains(t, f.send(adminTgID, "diana", "/season_reset confirmar"), "usuarios reiniciados")
	assert.Contains(t, f.send(adminTgID, "diana", "/audit admin"), "season_reset")
}

func TestPostAndReaction(t *testing.T) {
	f := newFixture(t)

	out := f.send(adminTgID, "diana", "/post Nuevo contenido")
	msgID := regexp.MustCompile(`msg=(\d+)`).FindStringSubmatch(out)
	require.Len(t, msgID, 2, out)

	var post tgbotapi.MessageConfig
	for _, c := range f.api.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok && m.ChatID == channelID {
			post = m
		}
	}
	assert.Equal(t, "Nuevo contenido", post.Text)
	assert.NotNil(t, post.ReplyMarkup)

	// no mission yet
	id, _ := strconv.Atoi(msgID[1])
	assert.Contains(t, f.react(1, id), "Gracias")

	require.Contains(t, f.send(adminTgID, "diana", "/mission_new reaction 5 Reacciona msg="+msgID[1]), "reaction_reacciona")
	assert.Equal(t, "❤️ +5 puntos", f.react(1, id))
	assert.Equal(t, "Ya reaccionaste a este mensaje", f.react(1, id))
	assert.Contains(t, f.react(1, id+100), "Gracias")

	u, err := f.svc.Users.GetUserByTgID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), u.Points)
}

func TestReactionMessageID(t *testing.T) {
	id, ok := reactionMessageID(&tgbotapi.CallbackQuery{Data: "react:42"})
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	_, ok = reactionMessageID(&tgbotapi.CallbackQuery{Data: "react"})
	assert.False(t, ok)
	_, ok = reactionMessageID(&tgbotapi.CallbackQuery{Data: "other"})
	assert.False(t, ok)
}

func TestChannelNotifierAnnouncesEvents(t *testing.T) {
	f := newFixture(t)

	out := f.send(adminTgID, "diana", "/event 2 24 Doble puntos")
	require.Contains(t, out, "x2")

	var notices []string
	for _, c := range f.api.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok && m.ChatID == channelID {
			notices = append(notices, m.Text)
		}
	}
	require.Len(t, notices, 1)
	assert.Contains(t, notices[0], "Doble puntos")
	assert.Contains(t, notices[0], "x2")

	assert.Contains(t, f.send(adminTgID, "diana", "/event_stop 1"), "terminado")
	last := f.api.sent[len(f.api.sent)-2].(tgbotapi.MessageConfig)
	assert.Equal(t, int64(channelID), last.ChatID)
	assert.Contains(t, last.Text, "ha terminado")

	// other notification types stay off the channel
	before := len(f.api.sent)
	NewChannelNotifier(f.api, channelID).Notify(context.Background(), domain.Notification{Type: domain.NotifyLevelUp, UserID: 1})
	assert.Len(t, f.api.sent, before)
}
