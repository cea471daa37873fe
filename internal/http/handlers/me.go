package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Me returns the caller's balance, level progress and achievements.
func (h *Handler) Me(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		unauthorized(c)
		return
	}

	profile, err := h.Services.Users.Profile(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// History returns the latest point log entries of the caller.
func (h *Handler) History(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		unauthorized(c)
		return
	}

	logs, err := h.Services.Users.History(c.Request.Context(), userID, queryLimit(c, 20, 100))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": logs})
}
