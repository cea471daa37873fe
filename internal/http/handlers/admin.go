package handlers

import (
	"net/http"
	"time"

	"divan_bot/internal/http/middleware"
	"divan_bot/internal/service"

	"github.com/gin-gonic/gin"
)

func adminID(c *gin.Context) int64 {
	return c.GetInt64(middleware.AdminIDKey)
}

// AdminGetUser resolves :id as an internal id, telegram id or @username.
func (h *Handler) AdminGetUser(c *gin.Context) {
	info, err := h.Services.Admin.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

type AdjustPointsRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

// AdminAdjustPoints adds a positive amount or deducts a negative one.
func (h *Handler) AdminAdjustPoints(c *gin.Context) {
	var req AdjustPointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "bad request")
		return
	}
	balance, err := h.Services.Admin.AdjustPoints(c.Request.Context(), adminID(c), c.Param("id"), req.Amount, req.Reason)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

type SetPointsRequest struct {
	Points *int64 `json:"points"`
	Reason string `json:"reason"`
}

func (h *Handler) AdminSetPoints(c *gin.Context) {
	var req SetPointsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Points == nil {
		badRequest(c, "points required")
		return
	}
	u, err := h.Services.Admin.SetPoints(c.Request.Context(), adminID(c), c.Param("id"), *req.Points, req.Reason)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handler) AdminCreateMission(c *gin.Context) {
	var req service.NewMission
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "bad request")
		return
	}
	m, err := h.Services.Admin.CreateMission(c.Request.Context(), adminID(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

type ToggleRequest struct {
	IsActive *bool `json:"is_active"`
}

func (h *Handler) AdminToggleMission(c *gin.Context) {
	var req ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IsActive == nil {
		badRequest(c, "is_active required")
		return
	}
	m, err := h.Services.Admin.ToggleMission(c.Request.Context(), adminID(c), c.Param("id"), *req.IsActive)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handler) AdminListMissions(c *gin.Context) {
	missions, err := h.Services.Missions.ListAllMissions(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"missions": missions})
}

func (h *Handler) AdminCreateReward(c *gin.Context) {
	var req service.NewReward
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "bad request")
		return
	}
	r, err := h.Services.Admin.CreateReward(c.Request.Context(), adminID(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (h *Handler) AdminUpdateReward(c *gin.Context) {
	id, err := paramInt(c, "id")
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	var patch service.RewardPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "bad request")
		return
	}
	r, err := h.Services.Admin.UpdateReward(c.Request.Context(), adminID(c), id, patch)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

type ActivateEventRequest struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	Multiplier    int64  `json:"multiplier"`
	DurationHours int64  `json:"duration_hours"`
}

// AdminActivateEvent starts a multiplier event. A zero duration runs until
// stopped.
func (h *Handler) AdminActivateEvent(c *gin.Context) {
	var req ActivateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "bad request")
		return
	}
	e, err := h.Services.Admin.ActivateEvent(c.Request.Context(), adminID(c), req.Name, req.Description,
		req.Multiplier, time.Duration(req.DurationHours)*time.Hour)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

func (h *Handler) AdminStopEvent(c *gin.Context) {
	id, err := paramInt(c, "id")
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	e, err := h.Services.Admin.StopEvent(c.Request.Context(), adminID(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *Handler) AdminResetSeason(c *gin.Context) {
	n, err := h.Services.Admin.ResetSeason(c.Request.Context(), adminID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users_reset": n})
}

func (h *Handler) AdminStats(c *gin.Context) {
	st, err := h.Services.Admin.GetStats(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) AdminAudit(c *gin.Context) {
	logs, err := h.Services.Admin.RecentAudit(c.Request.Context(), c.Query("category"), queryLimit(c, 50, 200))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"audit": logs})
}
