package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"divan_bot/internal/bot"
	"divan_bot/internal/config"
	"divan_bot/internal/db"
	httpServer "divan_bot/internal/http"
	"divan_bot/internal/http/handlers"
	"divan_bot/internal/http/middleware"
	"divan_bot/internal/logger"
	"divan_bot/internal/repository"
	"divan_bot/internal/repository/memory"
	"divan_bot/internal/scheduler"
	"divan_bot/internal/service"
	"divan_bot/internal/telegram"
	"divan_bot/internal/ws"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var version = "dev"

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)

	var (
		store repository.Store
		audit repository.AuditLogger
	)
	switch cfg.StorageAdapter {
	case config.StorageMemory:
		mem := memory.New()
		store, audit = mem, mem
		logger.Warn("using in-memory storage, data is lost on restart")
	default:
		pool := db.Connect(cfg.DatabaseURL)
		defer pool.Close()
		store, audit = repository.NewPgStore(pool), repository.NewAuditRepository(pool)
	}

	rdb := middleware.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if rdb != nil {
		defer rdb.Close()
	}

	policy, err := service.ParseCapPolicy(cfg.CapPolicy)
	if err != nil {
		logger.Fatal("invalid cap policy", "error", err)
	}
	limits := service.Limits{
		Daily:   cfg.DailyCap,
		Weekly:  cfg.WeeklyCap,
		Actions: cfg.CappedActions,
		Policy:  policy,
	}

	hub := ws.NewHub()
	notifiers := service.Notifiers{hub}

	var api *tgbotapi.BotAPI
	if cfg.BotEnabled {
		api, err = tgbotapi.NewBotAPI(cfg.BotToken)
		if err != nil {
			logger.Fatal("telegram bot authorization failed", "error", err)
		}
		logger.Info("bot authorized", "username", api.Self.UserName)
		notifiers = append(notifiers, bot.NewChannelNotifier(api, cfg.ChannelID))
	}

	svc, err := service.New(service.Deps{
		Store:    store,
		Location: cfg.Location,
		Timeout:  cfg.OpTimeout,
		Notifier: notifiers,
	}, limits, audit)
	if err != nil {
		logger.Fatal("failed to build services", "error", err)
	}

	tokens, err := service.NewJWTIssuer(cfg.JWTSecret, 0, nil)
	if err != nil {
		logger.Fatal("jwt setup failed", "error", err)
	}

	sched, err := scheduler.New(svc, scheduler.Options{
		Location:   cfg.Location,
		EventSweep: cfg.EventSweep,
		Redis:      rdb,
	})
	if err != nil {
		logger.Fatal("scheduler setup failed", "error", err)
	}
	sched.Start()

	var tgBot *bot.Bot
	if api != nil {
		tgBot = bot.New(api, svc, bot.Options{
			IsAdmin:   cfg.IsAdmin,
			ChannelID: cfg.ChannelID,
		})
		go tgBot.Start()
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	// CORS for the WebApp served from another domain
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && (cfg.AllowedOrigin == "" || origin == cfg.AllowedOrigin) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	var redisPinger handlers.Pinger
	if rdb != nil {
		redisPinger = handlers.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}

	httpServer.RegisterRoutes(r, httpServer.Deps{
		Config:   cfg,
		Services: svc,
		Tokens:   tokens,
		InitData: telegram.NewValidator(cfg.BotToken, cfg.InitDataMaxAge, nil),
		Hub:      hub,
		Limiter:  middleware.NewRateLimiter(rdb, nil),
		Store:    store,
		Redis:    redisPinger,
		Version:  version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server started", "port", cfg.AppPort, "version", version, "storage", cfg.StorageAdapter)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if tgBot != nil {
		tgBot.Stop()
	}
	if err := sched.Shutdown(); err != nil {
		logger.Error("scheduler shutdown", "error", err)
	}

	logger.Info("server exited")
}
