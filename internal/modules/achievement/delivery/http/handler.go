package handler

import (
	"net/http"

	achievement "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/achievement/service"
	"github.com/PhoenixSmith/seraph-v2-sub000/pkg/response"
	"github.com/gin-gonic/gin"
)

type AchievementHandler struct {
	service achievement.AchievementService
}

func NewAchievementHandler(service achievement.AchievementService) *AchievementHandler {
	return &AchievementHandler{service: service}
}

// ListAchievements returns the catalog with the caller's unlock state.
func (h *AchievementHandler) ListAchievements(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	achievements, err := h.service.ListAchievements(c.Request.Context(), userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": achievements})
}
