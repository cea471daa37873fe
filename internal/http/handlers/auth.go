package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const maxInitDataLen = 4096

type AuthRequest struct {
	InitData string `json:"init_data"`
}

// Auth exchanges signed Telegram WebApp init data for a session token and
// creates the member on first sight.
func (h *Handler) Auth(c *gin.Context) {
	var req AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.InitData == "" {
		badRequest(c, "bad request")
		return
	}

	if len(req.InitData) > maxInitDataLen {
		badRequest(c, "init_data too long")
		return
	}

	tgUser, err := h.InitData.ValidateUser(req.InitData)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or stale telegram data"})
		return
	}

	ctx := c.Request.Context()
	user, err := h.Services.Users.EnsureUser(ctx, tgUser.ID, tgUser.Username, tgUser.FirstName)
	if err != nil {
		fail(c, err)
		return
	}

	token, err := h.Tokens.Generate(user.ID)
	if err != nil {
		fail(c, err)
		return
	}

	h.Services.Audit.LogLogin(ctx, user.ID, c.ClientIP(), c.Request.UserAgent())

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  user,
	})
}
