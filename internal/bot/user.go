package bot

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	"divan_bot/internal/domain"
	"divan_bot/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var cadenceLabels = map[domain.Cadence]string{
	domain.CadenceOneTime:  "Única",
	domain.CadenceDaily:    "Diaria",
	domain.CadenceWeekly:   "Semanal",
	domain.CadenceEvent:    "Evento",
	domain.CadenceReaction: "Reacción",
}

// userCommand handles member commands. ok is false for unknown commands.
func (b *Bot) userCommand(ctx context.Context, from *tgbotapi.User, cmd, args string) (string, bool) {
	switch cmd {
	case "start", "ayuda", "help":
	case "perfil", "misiones", "completar", "tienda", "canjear", "logros", "ranking":
	default:
		return "", false
	}

	u, err := b.svc.Users.EnsureUser(ctx, from.ID, from.UserName, from.FirstName)
	if err != nil {
		return errorText(err), true
	}

	switch cmd {
	case "start":
		return b.welcome(u, b.isAdmin(from.ID)), true
	case "ayuda", "help":
		return b.helpMessage(b.isAdmin(from.ID)), true
	case "perfil":
		return b.handleProfile(ctx, u.ID), true
	case "misiones":
		return b.handleMissions(ctx, u.ID, args), true
	case "completar":
		return b.handleComplete(ctx, u.ID, args), true
	case "tienda":
		return b.handleShop(ctx), true
	case "canjear":
		return b.handleRedeem(ctx, u.ID, args), true
	case "logros":
		return b.handleAchievements(ctx, u.ID), true
	default:
		return b.handleRanking(ctx, u.ID), true
	}
}

func (b *Bot) welcome(u *domain.User, admin bool) string {
	return fmt.Sprintf("🛋 <b>Bienvenida al Diván, %s</b>\n\n%s",
		html.EscapeString(u.DisplayName()), b.helpMessage(admin))
}

func (b *Bot) helpMessage(admin bool) string {
	msg := `<b>📖 Comandos</b>
/perfil - Tus puntos y nivel
/misiones [tipo] - Misiones disponibles
/completar &lt;id&gt; - Completar una misión
/tienda - Recompensas
/canjear &lt;id&gt; - Canjear una recompensa
/logros - Tus logros
/ranking - Clasificación`
	if admin {
		msg += "\n\n" + adminHelp
	}
	return msg
}

func (b *Bot) handleProfile(ctx context.Context, userID int64) string {
	p, err := b.svc.Users.Profile(ctx, userID)
	if err != nil {
		return errorText(err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>👤 %s</b>\n\n", html.EscapeString(p.User.DisplayName()))
	fmt.Fprintf(&sb, "💎 Puntos: <b>%d</b>\n", p.User.Points)
	fmt.Fprintf(&sb, "🏅 Nivel %d: <b>%s</b>\n", p.Progress.Current.Number, p.Progress.Current.Name)
	if p.Progress.Next != nil {
		fmt.Fprintf(&sb, "📈 %d%% hacia %s (faltan %d)\n", p.Progress.Percent, p.Progress.Next.Name, p.Progress.PointsToNext)
	} else {
		sb.WriteString("👑 Nivel máximo\n")
	}
	if p.User.WeeklyStreak > 0 {
		fmt.Fprintf(&sb, "🔥 Racha semanal: %d\n", p.User.WeeklyStreak)
	}
	fmt.Fprintf(&sb, "🏆 Logros: %d", len(p.Achievements))
	return sb.String()
}

func (b *Bot) handleMissions(ctx context.Context, userID int64, args string) string {
	var filter *domain.Cadence
	if args = strings.TrimSpace(args); args != "" {
		c, err := domain.ParseCadence(args)
		if err != nil {
			return "❌ Tipos: one_time, daily, weekly, event, reaction"
		}
		filter = &c
	}

	missions, err := b.svc.Missions.GetActiveMissions(ctx, userID, filter)
	if err != nil {
		return errorText(err)
	}
	if len(missions) == 0 {
		return "🎉 No tienes misiones pendientes."
	}

	var sb strings.Builder
	sb.WriteString("<b>🎯 Misiones disponibles</b>\n")
	for _, m := range missions {
		fmt.Fprintf(&sb, "\n• <b>%s</b> (+%d) [%s]\n  <code>%s</code>",
			html.EscapeString(m.Name), m.PointsReward, cadenceLabels[m.Cadence], m.ID)
		if m.Description != "" {
			fmt.Fprintf(&sb, "\n  %s", html.EscapeString(m.Description))
		}
	}
	sb.WriteString("\n\nUsa /completar &lt;id&gt;")
	return sb.String()
}

func (b *Bot) handleComplete(ctx context.Context, userID int64, args string) string {
	parts := strings.Fields(args)
	if len(parts) == 0 || len(parts) > 2 {
		return "❌ Uso: /completar &lt;id&gt; [mensaje]"
	}

	var target *int64
	if len(parts) == 2 {
		id, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return "❌ Mensaje no válido"
		}
		target = &id
	}

	res, err := b.svc.Missions.CompleteMission(ctx, userID, parts[0], target)
	if err != nil {
		return errorText(err)
	}
	return missionText(res)
}

func missionText(res *service.MissionResult) string {
	g := res.Grant
	if g == nil {
		g = &service.GrantResult{}
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "✅ <b>%s</b> completada: +%d puntos", html.EscapeString(res.Mission.Name), g.Granted)
	if res.Multiplier > 1 && g.Granted > 0 {
		fmt.Fprintf(&sb, " (x%d)", res.Multiplier)
	}
	if g.Clamped {
		sb.WriteString("\n⏳ Límite de puntos alcanzado, se abonó una parte.")
	}
	if g.LeveledUp {
		fmt.Fprintf(&sb, "\n🎊 ¡Subiste a %s!", g.Level.Name)
	}
	if len(g.NewAchievements) > 0 {
		fmt.Fprintf(&sb, "\n🏆 Nuevos logros: %s", strings.Join(g.NewAchievements, ", "))
	}
	return sb.String()
}

func (b *Bot) handleShop(ctx context.Context) string {
	rewards, err := b.svc.Rewards.ListRewards(ctx, true)
	if err != nil {
		return errorText(err)
	}
	if len(rewards) == 0 {
		return "🛍 La tienda está vacía por ahora."
	}

	var sb strings.Builder
	sb.WriteString("<b>🛍 Tienda</b>\n")
	for _, r := range rewards {
		stock := "∞"
		if r.Stock != nil {
			stock = strconv.FormatInt(*r.Stock, 10)
		}
		fmt.Fprintf(&sb, "\n#%d <b>%s</b> - %d puntos (quedan %s)", r.ID, html.EscapeString(r.Name), r.Cost, stock)
	}
	sb.WriteString("\n\nUsa /canjear &lt;id&gt;")
	return sb.String()
}

func (b *Bot) handleRedeem(ctx context.Context, userID int64, args string) string {
	rewardID, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(args), "#"), 10, 64)
	if err != nil {
		return "❌ Uso: /canjear &lt;id&gt;"
	}

	receipt, err := b.svc.Rewards.Purchase(ctx, userID, rewardID)
	if err != nil {
		return errorText(err)
	}
	return fmt.Sprintf("🎁 Canjeaste <b>%s</b> por %d puntos.\n💎 Saldo: %d\n🧾 <code>%s</code>",
		html.EscapeString(receipt.RewardName), receipt.Cost, receipt.Balance, receipt.PurchaseID)
}

func (b *Bot) handleAchievements(ctx context.Context, userID int64) string {
	granted, err := b.svc.Achievements.GetGranted(ctx, userID)
	if err != nil {
		return errorText(err)
	}
	have := make(map[string]bool, len(granted))
	for _, g := range granted {
		have[g.ID] = true
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>🏆 Logros (%d/%d)</b>\n", len(granted), len(b.svc.Achievements.Catalog()))
	for _, a := range b.svc.Achievements.Catalog() {
		mark := "🔒"
		if have[a.ID] {
			mark = a.Icon
		}
		fmt.Fprintf(&sb, "\n%s <b>%s</b> - %s", mark, a.Name, a.Description)
	}
	return sb.String()
}

func (b *Bot) handleRanking(ctx context.Context, userID int64) string {
	rows, err := b.svc.Users.Ranking(ctx, userID, 10)
	if err != nil {
		return errorText(err)
	}
	if len(rows) == 0 {
		return "📊 Aún no hay clasificación."
	}

	var sb strings.Builder
	sb.WriteString("<b>📊 Ranking</b>\n")
	for _, r := range rows {
		fmt.Fprintf(&sb, "\n%d. %s - %d puntos", r.Rank, html.EscapeString(r.Name), r.Points)
	}
	return sb.String()
}
