package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetLeaderboard returns the top members by points. Names are masked except
// for the caller when a token is sent.
func (h *Handler) GetLeaderboard(c *gin.Context) {
	viewerID, _ := getUserID(c)
	top, err := h.Services.Users.Ranking(c.Request.Context(), viewerID, queryLimit(c, 10, 100))
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"leaderboard": top})
}
