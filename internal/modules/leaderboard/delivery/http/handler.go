package handler

import (
	"net/http"

	leaderboardDto "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/leaderboard/dto"
	leaderboardService "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/leaderboard/service"
	"github.com/PhoenixSmith/seraph-v2-sub000/pkg/response"
	"github.com/gin-gonic/gin"
)

type LeaderboardHandler struct {
	service leaderboardService.LeaderboardService
}

func NewLeaderboardHandler(service leaderboardService.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{service: service}
}

func (h *LeaderboardHandler) GetLeaderboard(c *gin.Context) {
	var query leaderboardDto.LeaderboardQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.ResponseError(c, err)
		return
	}

	leaderboard, err := h.service.GetLeaderboard(c.Request.Context(), query)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": leaderboard})
}

func (h *LeaderboardHandler) GetGroupLeaderboard(c *gin.Context) {
	var query leaderboardDto.GroupLeaderboardQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.ResponseError(c, err)
		return
	}

	leaderboard, err := h.service.GetGroupLeaderboard(c.Request.Context(), query.Limit)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": leaderboard})
}
