package http

import (
	"divan_bot/internal/config"
	"divan_bot/internal/http/handlers"
	"divan_bot/internal/http/middleware"
	"divan_bot/internal/service"
	"divan_bot/internal/telegram"
	"divan_bot/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps is everything the HTTP layer needs. Redis may be nil.
type Deps struct {
	Config   *config.Config
	Services *service.Services
	Tokens   *service.JWTIssuer
	InitData *telegram.Validator
	Hub      *ws.Hub
	Limiter  *middleware.RateLimiter
	Store    handlers.Pinger
	Redis    handlers.Pinger
	Version  string
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	h := handlers.NewHandler(d.Services, d.Tokens, d.InitData)
	healthHandler := handlers.NewHealthHandler(d.Store, d.Redis, d.Version)

	r.Use(middleware.RequestLogger())

	// Health checks (no rate limiting)
	r.GET("/health", healthHandler.Health)
	r.GET("/healthz", healthHandler.Liveness)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	v1.Use(d.Limiter.PerIP("api", d.Config.APIRateLimit, d.Config.APIRateWindow))
	registerAPIRoutes(v1, h, d)

	// Realtime notifications
	r.GET("/ws", ws.HandleWS(d.Hub, d.Tokens, d.Config.AllowedOrigin))
}

func registerAPIRoutes(api *gin.RouterGroup, h *handlers.Handler, d Deps) {
	auth := middleware.JWT(d.Tokens)
	// per user limit on point granting endpoints
	actionRL := d.Limiter.PerUser("action", d.Config.ActionRateLimit, d.Config.ActionRateWindow)

	api.POST("/auth", h.Auth)

	api.GET("/me", auth, h.Me)
	api.GET("/me/history", auth, h.History)

	api.GET("/missions", auth, h.ListMissions)
	api.POST("/missions/:id/complete", auth, actionRL, h.CompleteMission)

	api.GET("/rewards", auth, h.ListRewards)
	api.POST("/rewards/:id/purchase", auth, actionRL, h.PurchaseReward)

	api.GET("/events/active", h.ActiveEvents)
	api.GET("/leaderboard", middleware.OptionalJWT(d.Tokens), h.GetLeaderboard)

	admin := api.Group("/admin")
	admin.Use(auth, middleware.AdminOnly(d.Services.Users, d.Config.IsAdmin))
	{
		admin.GET("/stats", h.AdminStats)
		admin.GET("/audit", h.AdminAudit)

		admin.GET("/users/:id", h.AdminGetUser)
		admin.POST("/users/:id/points", h.AdminAdjustPoints)
		admin.PUT("/users/:id/points", h.AdminSetPoints)

		admin.GET("/missions", h.AdminListMissions)
		admin.POST("/missions", h.AdminCreateMission)
		admin.PATCH("/missions/:id", h.AdminToggleMission)

		admin.POST("/rewards", h.AdminCreateReward)
		admin.PATCH("/rewards/:id", h.AdminUpdateReward)

		admin.POST("/events", h.AdminActivateEvent)
		admin.DELETE("/events/:id", h.AdminStopEvent)

		admin.POST("/season/reset", h.AdminResetSeason)
	}
}
