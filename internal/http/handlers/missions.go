package handlers

import (
	"net/http"

	"divan_bot/internal/domain"

	"github.com/gin-gonic/gin"
)

// ListMissions returns the missions the caller can complete now, optionally
// filtered by ?type=.
func (h *Handler) ListMissions(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		unauthorized(c)
		return
	}

	var filter *domain.Cadence
	if t := c.Query("type"); t != "" {
		cadence, err := domain.ParseCadence(t)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		filter = &cadence
	}

	missions, err := h.Services.Missions.GetActiveMissions(c.Request.Context(), userID, filter)
	if err != nil {
		fail(c, err)
		return
	}
	if missions == nil {
		missions = []*domain.Mission{}
	}
	c.JSON(http.StatusOK, gin.H{"missions": missions})
}

type CompleteMissionRequest struct {
	TargetMessageID *int64 `json:"target_message_id"`
}

func (h *Handler) CompleteMission(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		unauthorized(c)
		return
	}

	var req CompleteMissionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "bad request")
			return
		}
	}

	res, err := h.Services.Missions.CompleteMission(c.Request.Context(), userID, c.Param("id"), req.TargetMessageID)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}
