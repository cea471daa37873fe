package http

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"divan_bot/internal/config"
	"divan_bot/internal/domain"
	"divan_bot/internal/http/middleware"
	"divan_bot/internal/repository/memory"
	"divan_bot/internal/service"
	"divan_bot/internal/telegram"
	"divan_bot/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	botToken  = "test-bot-token"
	adminTgID = 900
)

type testServer struct {
	router *gin.Engine
	svc    *service.Services
	tokens *service.JWTIssuer
	clock  *clockwork.FakeClock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clock := clockwork.NewFakeClockAt(time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC))
	store := memory.New()
	hub := ws.NewHub()
	svc, err := service.New(service.Deps{
		Store:    store,
		Clock:    clock,
		Location: time.UTC,
		Notifier: hub,
	}, service.DefaultLimits, store)
	require.NoError(t, err)

	tokens, err := service.NewJWTIssuer("secret", time.Hour, clock)
	require.NoError(t, err)

	cfg := &config.Config{
		AdminTelegramIDs: []int64{adminTgID},
		APIRateLimit:     1000,
		APIRateWindow:    time.Minute,
		ActionRateLimit:  1000,
		ActionRateWindow: time.Minute,
	}

	r := gin.New()
	RegisterRoutes(r, Deps{
		Config:   cfg,
		Services: svc,
		Tokens:   tokens,
		InitData: telegram.NewValidator(botToken, time.Hour, clock),
		Hub:      hub,
		Limiter:  middleware.NewRateLimiter(nil, clock),
		Store:    store,
		Version:  "test",
	})
	return &testServer{router: r, svc: svc, tokens: tokens, clock: clock}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func (s *testServer) initData(tgID int64, username string) string {
	vals := url.Values{}
	vals.Set("auth_date", strconv.FormatInt(s.clock.Now().Unix(), 10))
	vals.Set("user", fmt.Sprintf(`{"id":%d,"username":%q,"first_name":%q}`, tgID, username, username))
	vals.Set("hash", hex.EncodeToString(telegram.Sign(vals, botToken)))
	return vals.Encode()
}

// login authenticates through /auth and returns the session token.
func (s *testServer) login(t *testing.T, tgID int64, username string) string {
	t.Helper()
	w, out := s.do(t, http.MethodPost, "/api/v1/auth", "", gin.H{"init_data": s.initData(tgID, username)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return out["token"].(string)
}

func TestAuthAndMe(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(t, http.MethodPost, "/api/v1/auth", "", gin.H{"init_data": s.initData(1, "ana") + "&x=1"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token := s.login(t, 1, "ana")
	// second login reuses the member
	s.login(t, 1, "ana")

	w, out := s.do(t, http.MethodGet, "/api/v1/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	user := out["user"].(map[string]any)
	assert.Equal(t, "ana", user["username"])
	assert.EqualValues(t, 0, user["points"])
	progress := out["progress"].(map[string]any)
	assert.Equal(t, "Suscriptor Íntimo", progress["current_level"].(map[string]any)["name"])

	w, _ = s.do(t, http.MethodGet, "/api/v1/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	logs, err := s.svc.Audit.Recent(t.Context(), domain.AuditCategoryAuth, 10)
	require.NoError(t, err)
	assert.Len(t, logs, 2)
}

func TestMissionFlow(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, adminTgID, "diana")
	user := s.login(t, 1, "ana")

	w, out := s.do(t, http.MethodPost, "/api/v1/admin/missions", admin, gin.H{
		"name": "Comenta hoy", "points_reward": 50, "type": "daily",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	missionID := out["id"].(string)
	assert.Equal(t, "daily_comenta_hoy", missionID)

	w, out = s.do(t, http.MethodPost, "/api/v1/admin/events", admin, gin.H{"name": "Doble", "multiplier": 2, "duration_hours": 24})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, out = s.do(t, http.MethodGet, "/api/v1/missions?type=daily", user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, out["missions"], 1)

	w, _ = s.do(t, http.MethodGet, "/api/v1/missions?type=monthly", user, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, out = s.do(t, http.MethodPost, "/api/v1/missions/"+missionID+"/complete", user, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	grant := out["grant"].(map[string]any)
	assert.EqualValues(t, 100, grant["granted"])
	assert.EqualValues(t, 2, grant["multiplier"])
	assert.Equal(t, true, grant["leveled_up"])

	w, out = s.do(t, http.MethodPost, "/api/v1/missions/"+missionID+"/complete", user, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, service.ReasonAlreadyCompleted, out["reason"])

	w, out = s.do(t, http.MethodPost, "/api/v1/missions/nope/complete", user, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, service.ReasonNotFound, out["reason"])

	w, out = s.do(t, http.MethodGet, "/api/v1/events/active", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, out["multiplier"])
}

func TestPurchaseFlow(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, adminTgID, "diana")
	user := s.login(t, 1, "ana")

	w, out := s.do(t, http.MethodPost, "/api/v1/admin/rewards", admin, gin.H{"name": "Foto", "cost": 30, "stock": 1})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	rewardPath := fmt.Sprintf("/api/v1/rewards/%v/purchase", out["id"])

	w, out = s.do(t, http.MethodPost, rewardPath, user, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, service.ReasonInsufficientPoints, out["reason"])

	w, out = s.do(t, http.MethodPost, "/api/v1/admin/users/@ana/points", admin, gin.H{"amount": 100, "reason": "regalo"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 100, out["balance"])

	w, out = s.do(t, http.MethodPost, rewardPath, user, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 70, out["balance"])
	assert.EqualValues(t, 0, out["stock_left"])

	w, out = s.do(t, http.MethodPost, rewardPath, user, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, service.ReasonOutOfStock, out["reason"])

	w, out = s.do(t, http.MethodGet, "/api/v1/me/history", user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, out["history"], 2)
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, adminTgID, "diana")
	user := s.login(t, 1, "ana")

	w, _ := s.do(t, http.MethodGet, "/api/v1/admin/stats", user, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = s.do(t, http.MethodGet, "/api/v1/admin/stats", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, out := s.do(t, http.MethodPut, "/api/v1/admin/users/1/points", admin, gin.H{"points": 600})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 3, out["level"])

	w, out = s.do(t, http.MethodGet, "/api/v1/admin/stats", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, out["total_users"])
	assert.EqualValues(t, 600, out["total_points"])

	w, out = s.do(t, http.MethodPost, "/api/v1/admin/season/reset", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, out["users_reset"])

	w, out = s.do(t, http.MethodGet, "/api/v1/admin/audit?category=points", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, out["audit"], 1)

	w, _ = s.do(t, http.MethodDelete, "/api/v1/admin/events/404", admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = s.do(t, http.MethodPut, "/api/v1/admin/users/1/points", admin, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLeaderboardMasksNames(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, adminTgID, "diana")
	ana := s.login(t, 1, "ana")
	s.login(t, 2, "bea")
	_, _ = s.do(t, http.MethodPost, "/api/v1/admin/users/@bea/points", admin, gin.H{"amount": 20})

	w, out := s.do(t, http.MethodGet, "/api/v1/leaderboard", ana, nil)
	require.Equal(t, http.StatusOK, w.Code)
	rows := out["leaderboard"].([]any)
	require.NotEmpty(t, rows)
	assert.Equal(t, "b*****", rows[0].(map[string]any)["name"])

	var names []string
	for _, r := range rows {
		names = append(names, r.(map[string]any)["name"].(string))
	}
	assert.Contains(t, names, "ana")
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w, out := s.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", out["status"])

	w, _ = s.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = s.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
