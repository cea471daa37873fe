package handlers

import (
	"net/http"

	"divan_bot/internal/domain"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListRewards(c *gin.Context) {
	rewards, err := h.Services.Rewards.ListRewards(c.Request.Context(), true)
	if err != nil {
		fail(c, err)
		return
	}
	if rewards == nil {
		rewards = []*domain.Reward{}
	}
	c.JSON(http.StatusOK, gin.H{"rewards": rewards})
}

func (h *Handler) PurchaseReward(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		unauthorized(c)
		return
	}
	rewardID, err := paramInt(c, "id")
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	receipt, err := h.Services.Rewards.Purchase(c.Request.Context(), userID, rewardID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}
