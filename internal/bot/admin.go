package bot

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"divan_bot/internal/domain"
	"divan_bot/internal/service"
)

const adminHelp = `<b>🤖 Administración</b>
/stats - Estadísticas
/user &lt;@username|tg_id&gt; - Ficha de usuario
/addpoints &lt;usuario&gt; &lt;puntos&gt; [motivo] - Sumar puntos
/deduct &lt;usuario&gt; &lt;puntos&gt; [motivo] - Restar puntos
/setpoints &lt;usuario&gt; &lt;puntos&gt; - Fijar saldo
/mission_new &lt;tipo&gt; &lt;puntos&gt; &lt;nombre&gt; [msg=id] [event=id] - Nueva misión
/mission_toggle &lt;id&gt; &lt;on|off&gt; - Activar o pausar misión
/reward_new &lt;coste&gt; &lt;stock|-&gt; &lt;nombre&gt; - Nueva recompensa
/event &lt;multiplicador&gt; &lt;horas&gt; &lt;nombre&gt; - Iniciar evento (0 horas = sin fin)
/event_stop &lt;id&gt; - Terminar evento
/post &lt;texto&gt; - Publicar en el canal con botón de reacción
/audit [categoría] - Últimas acciones
/season_reset confirmar - Nueva temporada`

// adminCommand handles admin commands. ok is false for unknown commands.
func (b *Bot) adminCommand(ctx context.Context, adminID int64, cmd, args string) (string, bool) {
	switch cmd {
	case "stats":
		return b.handleStats(ctx), true
	case "user":
		return b.handleUser(ctx, args), true
	case "addpoints":
		return b.handleAdjust(ctx, adminID, args, 1), true
	case "deduct":
		return b.handleAdjust(ctx, adminID, args, -1), true
	case "setpoints":
		return b.handleSetPoints(ctx, adminID, args), true
	case "mission_new":
		return b.handleMissionNew(ctx, adminID, args), true
	case "mission_toggle":
		return b.handleMissionToggle(ctx, adminID, args), true
	case "reward_new":
		return b.handleRewardNew(ctx, adminID, args), true
	case "event":
		return b.handleEvent(ctx, adminID, args), true
	case "event_stop":
		return b.handleEventStop(ctx, adminID, args), true
	case "post":
		return b.handlePost(args), true
	case "audit":
		return b.handleAudit(ctx, args), true
	case "season_reset":
		return b.handleSeasonReset(ctx, adminID, args), true
	default:
		return "", false
	}
}

func (b *Bot) handleStats(ctx context.Context) string {
	st, err := b.svc.Admin.GetStats(ctx)
	if err != nil {
		return errorText(err)
	}

	return fmt.Sprintf(`<b>📊 Estadísticas</b>

<b>👥 Usuarios:</b>
• Total: %d
• Activos hoy: %d
• Activos esta semana: %d

<b>💎 Puntos:</b>
• En circulación: %d
• Otorgados hoy: %d

<b>🎯 Actividad:</b>
• Misiones completadas: %d
• Completadas hoy: %d
• Canjes: %d
• Logros otorgados: %d

<b>⚙️ Catálogo:</b>
• Misiones activas: %d
• Recompensas activas: %d
• Eventos activos: %d`,
		st.TotalUsers,
		st.ActiveUsersToday,
		st.ActiveUsersWeek,
		st.TotalPoints,
		st.PointsGrantedToday,
		st.MissionsCompleted,
		st.CompletionsToday,
		st.PurchasesTotal,
		st.AchievementsGranted,
		st.ActiveMissions,
		st.ActiveRewards,
		st.ActiveEvents,
	)
}

func (b *Bot) handleUser(ctx context.Context, args string) string {
	if args == "" {
		return "❌ Uso: /user &lt;@username|tg_id&gt;"
	}

	info, err := b.svc.Admin.GetUser(ctx, strings.TrimSpace(args))
	if err != nil {
		return errorText(err)
	}
	u := info.User

	var sb strings.Builder
	fmt.Fprintf(&sb, `<b>👤 Usuario</b>

• ID: %d
• Telegram ID: %d
• Username: @%s
• Nombre: %s
• 💎 Puntos: %d
• 🏅 Nivel: %d (%s)
• 🔥 Racha: %d
• 🎯 Misiones: %d
• 🎁 Canjes: %d
• 🏆 Logros: %d
• 📅 Alta: %s`,
		u.ID, u.TgID, html.EscapeString(u.Username), html.EscapeString(u.FirstName),
		u.Points, info.Level.Number, info.Level.Name, u.WeeklyStreak,
		info.Completions, info.Purchases, info.Achievements,
		u.CreatedAt.Format("02.01.2006 15:04"))

	if len(info.RecentLogs) > 0 {
		sb.WriteString("\n\n<b>Últimos movimientos:</b>")
		for _, l := range info.RecentLogs {
			fmt.Fprintf(&sb, "\n%+d %s (%s)", l.Delta, l.ActionType, l.CreatedAt.Format("02.01 15:04"))
		}
	}
	return sb.String()
}

// splitTarget parses "<user> <amount> [rest...]".
func splitTarget(args string) (ident string, amount int64, rest string, ok bool) {
	parts := strings.Fields(args)
	if len(parts) < 2 {
		return "", 0, "", false
	}
	amount, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", 0, "", false
	}
	return parts[0], amount, strings.Join(parts[2:], " "), true
}

func (b *Bot) handleAdjust(ctx context.Context, adminID int64, args string, sign int64) string {
	ident, amount, reason, ok := splitTarget(args)
	if !ok || amount <= 0 {
		if sign > 0 {
			return "❌ Uso: /addpoints &lt;usuario&gt; &lt;puntos&gt; [motivo]"
		}
		return "❌ Uso: /deduct &lt;usuario&gt; &lt;puntos&gt; [motivo]"
	}

	balance, err := b.svc.Admin.AdjustPoints(ctx, adminID, ident, sign*amount, reason)
	if err != nil {
		return errorText(err)
	}
	return fmt.Sprintf("✅ %+d puntos a %s. Nuevo saldo: %d 💎", sign*amount, html.EscapeString(ident), balance)
}

func (b *Bot) handleSetPoints(ctx context.Context, adminID int64, args string) string {
	ident, amount, reason, ok := splitTarget(args)
	if !ok {
		return "❌ Uso: /setpoints &lt;usuario&gt; &lt;puntos&gt;"
	}

	u, err := b.svc.Admin.SetPoints(ctx, adminID, ident, amount, reason)
	if err != nil {
		return errorText(err)
	}
	return fmt.Sprintf("✅ Saldo de %s fijado en %d 💎 (nivel %d)", html.EscapeString(u.DisplayName()), u.Points, u.Level)
}

func (b *Bot) handleMissionNew(ctx context.Context, adminID int64, args string) string {
	const usage = "❌ Uso: /mission_new &lt;tipo&gt; &lt;puntos&gt; &lt;nombre&gt; [msg=id] [event=id]"
	parts := strings.Fields(args)
	if len(parts) < 3 {
		return usage
	}
	cadence, err := domain.ParseCadence(parts[0])
	if err != nil {
		return "❌ Tipos: one_time, daily, weekly, event, reaction"
	}
	points, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return usage
	}

	in := service.NewMission{Cadence: cadence, PointsReward: points}
	var name []string
	for _, p := range parts[2:] {
		key, val, found := strings.Cut(p, "=")
		if !found || (key != "msg" && key != "event") {
			name = append(name, p)
			continue
		}
		id, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return usage
		}
		if key == "msg" {
			in.TargetMessageID = &id
		} else {
			in.EventID = &id
		}
	}
	in.Name = strings.Join(name, " ")

	m, err := b.svc.Admin.CreateMission(ctx, adminID, in)
	if err != nil {
		return errorText(err)
	}
	return fmt.Sprintf("✅ Misión creada: <code>%s</code> (+%d, %s)", m.ID, m.PointsReward, cadenceLabels[m.Cadence])
}

func (b *Bot) handleMissionToggle(ctx context.Context, adminID int64, args string) string {
	parts := strings.Fields(args)
	if len(parts) != 2 || (parts[1] != "on" && parts[1] != "off") {
		return "❌ Uso: /mission_toggle &lt;id&gt; &lt;on|off&gt;"
	}

	m, err := b.svc.Admin.ToggleMission(ctx, adminID, parts[0], parts[1] == "on")
	if err != nil {
		return errorText(err)
	}
	if m.IsActive {
		return fmt.Sprintf("▶️ Misión <code>%s</code> activada", m.ID)
	}
	return fmt.Sprintf("⏸ Misión <code>%s</code> pausada", m.ID)
}

func (b *Bot) handleRewardNew(ctx context.Context, adminID int64, args string) string {
	const usage = "❌ Uso: /reward_new &lt;coste&gt; &lt;stock|-&gt; &lt;nombre&gt;"
	parts := strings.Fields(args)
	if len(parts) < 3 {
		return usage
	}
	cost, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return usage
	}
	in := service.NewReward{Name: strings.Join(parts[2:], " "), Cost: cost}
	if parts[1] != "-" {
		stock, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return usage
		}
		in.Stock = &stock
	}

	r, err := b.svc.Admin.CreateReward(ctx, adminID, in)
	if err != nil {
		return errorText(err)
	}
	return fmt.Sprintf("✅ Recompensa #%d creada: %s (%d puntos)", r.ID, html.EscapeString(r.Name), r.Cost)
}

func (b *Bot) handleEvent(ctx context.Context, adminID int64, args string) string {
	const usage = "❌ Uso: /event &lt;multiplicador&gt; &lt;horas&gt; &lt;nombre&gt;"
	parts := strings.Fields(args)
	if len(parts) < 3 {
		return usage
	}
	mult, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return usage
	}
	hours, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return usage
	}

	e, err := b.svc.Admin.ActivateEvent(ctx, adminID, strings.Join(parts[2:], " "), "", mult,
		time.Duration(hours*float64(time.Hour)))
	if err != nil {
		return errorText(err)
	}
	until := "hasta que se detenga"
	if e.EndTime != nil {
		until = "hasta " + e.EndTime.Format("02.01 15:04")
	}
	return fmt.Sprintf("🔥 Evento #%d <b>%s</b> x%d activo %s", e.ID, html.EscapeString(e.Name), e.Multiplier, until)
}

func (b *Bot) handleEventStop(ctx context.Context, adminID int64, args string) string {
	id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(args), "#"), 10, 64)
	if err != nil {
		return "❌ Uso: /event_stop &lt;id&gt;"
	}
	e, err := b.svc.Admin.StopEvent(ctx, adminID, id)
	if err != nil {
		return errorText(err)
	}
	return fmt.Sprintf("🛑 Evento #%d %s terminado", e.ID, html.EscapeString(e.Name))
}

func (b *Bot) handleAudit(ctx context.Context, args string) string {
	logs, err := b.svc.Admin.RecentAudit(ctx, strings.TrimSpace(args), 15)
	if err != nil {
		return errorText(err)
	}
	if len(logs) == 0 {
		return "📋 Sin registros."
	}
	var sb strings.Builder
	sb.WriteString("<b>📋 Auditoría</b>\n")
	for _, l := range logs {
		fmt.Fprintf(&sb, "\n%s %s/%s user=%d", l.CreatedAt.Format("02.01 15:04"), l.Category, l.Action, l.UserID)
	}
	return sb.String()
}

func (b *Bot) handleSeasonReset(ctx context.Context, adminID int64, args string) string {
	if strings.TrimSpace(args) != "confirmar" {
		return "⚠️ Esto pone a cero los puntos, niveles y logros de todos. Envía /season_reset confirmar"
	}
	n, err := b.svc.Admin.ResetSeason(ctx, adminID)
	if err != nil {
		return errorText(err)
	}
	return fmt.Sprintf("🌱 Nueva temporada: %d usuarios reiniciados", n)
}
