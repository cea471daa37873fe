package handlers

import (
	"net/http"

	"divan_bot/internal/domain"

	"github.com/gin-gonic/gin"
)

// ActiveEvents lists running multiplier events and the multiplier in force.
func (h *Handler) ActiveEvents(c *gin.Context) {
	ctx := c.Request.Context()
	events, err := h.Services.Events.ActiveEvents(ctx)
	if err != nil {
		fail(c, err)
		return
	}
	mult, err := h.Services.Events.ActiveMultiplier(ctx)
	if err != nil {
		fail(c, err)
		return
	}
	if events == nil {
		events = []*domain.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "multiplier": mult})
}
