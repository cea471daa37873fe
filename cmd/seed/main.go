package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"divan_bot/internal/db"
	"divan_bot/internal/domain"
	"divan_bot/internal/logger"
	"divan_bot/internal/repository"
	"divan_bot/internal/service"

	"github.com/joho/godotenv"
)

// seed creates a test user plus a starter catalog and prints a token for it.
func main() {
	_ = godotenv.Load()
	logger.Init("info", false)

	tgID := flag.Int64("tg", 1234567890, "telegram id of the test user")
	username := flag.String("username", "testuser", "username of the test user")
	catalog := flag.Bool("catalog", true, "create sample missions and rewards")
	flag.Parse()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Fatal("DATABASE_URL not set")
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		logger.Fatal("JWT_SECRET not set")
	}

	ctx := context.Background()
	pool, err := db.Open(ctx, dsn)
	if err != nil {
		logger.Fatal("connect", "error", err)
	}
	defer pool.Close()

	svc, err := service.New(service.Deps{Store: repository.NewPgStore(pool)}, service.DefaultLimits, repository.NewAuditRepository(pool))
	if err != nil {
		logger.Fatal("services", "error", err)
	}

	u, err := svc.Users.EnsureUser(ctx, *tgID, *username, "Tester")
	if err != nil {
		logger.Fatal("ensure user", "error", err)
	}
	logger.Info("user ready", "id", u.ID, "tg_id", u.TgID, "points", u.Points)

	if *catalog {
		seedCatalog(ctx, svc, *tgID)
	}

	tokens, err := service.NewJWTIssuer(secret, 0, nil)
	if err != nil {
		logger.Fatal("jwt", "error", err)
	}
	token, err := tokens.Generate(u.ID)
	if err != nil {
		logger.Fatal("generate token", "error", err)
	}
	fmt.Println(token)
}

func seedCatalog(ctx context.Context, svc *service.Services, adminID int64) {
	missions := []service.NewMission{
		{Name: "Comenta hoy", Description: "Deja un comentario en el canal", PointsReward: 5, Cadence: domain.CadenceDaily},
		{Name: "Fiel de la semana", Description: "Participa en tres publicaciones", PointsReward: 25, Cadence: domain.CadenceWeekly},
		{Name: "Bienvenida", Description: "Completa tu perfil", PointsReward: 50, Cadence: domain.CadenceOneTime},
	}
	for _, m := range missions {
		created, err := svc.Admin.CreateMission(ctx, adminID, m)
		if err != nil {
			logger.Warn("skip mission", "name", m.Name, "error", err)
			continue
		}
		logger.Info("mission created", "id", created.ID)
	}

	stock := int64(10)
	rewards := []service.NewReward{
		{Name: "Foto exclusiva", Description: "Una foto solo para ti", Cost: 100},
		{Name: "Mensaje de voz", Description: "Audio personalizado", Cost: 250, Stock: &stock},
	}
	for _, r := range rewards {
		created, err := svc.Admin.CreateReward(ctx, adminID, r)
		if err != nil {
			logger.Warn("skip reward", "name", r.Name, "error", err)
			continue
		}
		logger.Info("reward created", "id", created.ID)
	}
}
