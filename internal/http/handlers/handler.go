package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"divan_bot/internal/http/middleware"
	"divan_bot/internal/logger"
	"divan_bot/internal/service"
	"divan_bot/internal/telegram"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	Services *service.Services
	Tokens   *service.JWTIssuer
	InitData *telegram.Validator
}

func NewHandler(svc *service.Services, tokens *service.JWTIssuer, initData *telegram.Validator) *Handler {
	return &Handler{Services: svc, Tokens: tokens, InitData: initData}
}

// getUserID reads the user id set by the JWT middleware.
func getUserID(c *gin.Context) (int64, bool) {
	uidVal, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return 0, false
	}
	switch v := uidVal.(type) {
	case int64:
		return v, true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

func statusFor(reason string) int {
	switch reason {
	case service.ReasonNotFound:
		return http.StatusNotFound
	case service.ReasonInactive, service.ReasonAlreadyCompleted,
		service.ReasonInsufficientPoints, service.ReasonOutOfStock:
		return http.StatusConflict
	case service.ReasonRateLimited:
		return http.StatusTooManyRequests
	case service.ReasonInvalidState:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// fail writes a service error as {"error", "reason"}. Internal failures
// never leak their message.
func fail(c *gin.Context, err error) {
	reason := service.Reason(err)
	status := statusFor(reason)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.WithContext(c.Request.Context()).Error("request failed", "error", err)
		msg = "internal error"
	}
	c.JSON(status, gin.H{"error": msg, "reason": reason})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "reason": service.ReasonInvalidState})
}

func unauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}

func paramInt(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid " + name)
	}
	return id, nil
}

// queryLimit parses ?limit= clamped to [1, maxLimit].
func queryLimit(c *gin.Context, def, maxLimit int) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n <= 0 {
		return def
	}
	return min(n, maxLimit)
}
