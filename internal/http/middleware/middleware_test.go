package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"divan_bot/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func do(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRedisRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	rl := NewRateLimiter(client, nil)

	r := gin.New()
	r.GET("/test", rl.PerIP("api", 2, time.Minute), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	for i := 0; i < 2; i++ {
		w := do(r, http.MethodGet, "/test", "")
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := do(r, http.MethodGet, "/test", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	// the window expires with the key
	mr.FastForward(time.Minute)
	w = do(r, http.MethodGet, "/test", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRedisRateLimit_FailOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	rl := NewRateLimiter(client, nil)
	mr.Close()

	r := gin.New()
	r.GET("/test", rl.PerIP("api", 1, time.Minute), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	for i := 0; i < 3; i++ {
		w := do(r, http.MethodGet, "/test", "")
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "redis-error", w.Header().Get("X-RateLimit-Error"))
	}
}

func TestLocalRateLimit(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rl := NewRateLimiter(nil, clock)

	r := gin.New()
	r.GET("/test", rl.PerIP("api", 1, time.Minute), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	assert.Equal(t, http.StatusNoContent, do(r, http.MethodGet, "/test", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, http.MethodGet, "/test", "").Code)
	clock.Advance(time.Minute)
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodGet, "/test", "").Code)
}

type fakeTokens map[string]int64

func (f fakeTokens) Parse(token string) (int64, error) {
	if id, ok := f[token]; ok {
		return id, nil
	}
	return 0, errors.New("bad token")
}

func TestPerUserLimitIsolatesUsers(t *testing.T) {
	mr := miniredis.RunT(t)
	rl := NewRateLimiter(redis.NewClient(&redis.Options{Addr: mr.Addr()}), nil)
	tokens := fakeTokens{"a": 1, "b": 2}

	r := gin.New()
	r.POST("/act", JWT(tokens), rl.PerUser("action", 1, time.Minute), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	assert.Equal(t, http.StatusNoContent, do(r, http.MethodPost, "/act", "a").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, http.MethodPost, "/act", "a").Code)
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodPost, "/act", "b").Code)
}

func TestJWT(t *testing.T) {
	tokens := fakeTokens{"good": 42}
	r := gin.New()
	r.GET("/me", JWT(tokens), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.GetInt64(UserIDKey)})
	})
	r.GET("/public", OptionalJWT(tokens), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.GetInt64(UserIDKey)})
	})

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/me", "bad").Code)

	w := do(r, http.MethodGet, "/me", "good")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":42}`, w.Body.String())

	w = do(r, http.MethodGet, "/public", "bad")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":0}`, w.Body.String())
}

type fakeUsers map[int64]*domain.User

func (f fakeUsers) GetUser(_ context.Context, id int64) (*domain.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, errors.New("not found")
}

func TestAdminOnly(t *testing.T) {
	tokens := fakeTokens{"admin": 1, "user": 2, "ghost": 3}
	users := fakeUsers{1: {ID: 1, TgID: 900}, 2: {ID: 2, TgID: 901}}
	isAdmin := func(tgID int64) bool { return tgID == 900 }

	r := gin.New()
	r.GET("/admin", JWT(tokens), AdminOnly(users, isAdmin), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"admin": c.GetInt64(AdminIDKey)})
	})

	w := do(r, http.MethodGet, "/admin", "admin")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"admin":900}`, w.Body.String())
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/admin", "user").Code)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/admin", "ghost").Code)
}

func TestRequestLoggerSetsRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := do(r, http.MethodGet, "/x", "")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
