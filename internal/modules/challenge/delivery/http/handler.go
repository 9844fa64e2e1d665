package handler

import (
	"context"
	"fmt"
	"net/http"

	challengeDto "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/challenge/dto"
	challenge "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/challenge/service"
	"github.com/PhoenixSmith/seraph-v2-sub000/pkg/ratelimiter"
	"github.com/PhoenixSmith/seraph-v2-sub000/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ChallengeHandler struct {
	service challenge.ChallengeService
}

func NewChallengeHandler(service challenge.ChallengeService) *ChallengeHandler {
	return &ChallengeHandler{service: service}
}

func (h *ChallengeHandler) CreateChallenge(c *gin.Context) {
	var req challengeDto.CreateChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseError(c, err)
		return
	}

	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	created, err := h.service.CreateChallenge(c.Request.Context(), userID,
		uuid.MustParse(req.ChallengerGroupID), uuid.MustParse(req.ChallengedGroupID))
	if err != nil {
		if rateLimitErr, ok := err.(*ratelimiter.RateLimitError); ok {
			c.Header("Retry-After", fmt.Sprintf("%.0f", rateLimitErr.RetryAfter.Seconds()))
		}
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": created})
}

func (h *ChallengeHandler) GetChallenge(c *gin.Context) {
	h.act(c, h.service.GetChallenge)
}

func (h *ChallengeHandler) AcceptChallenge(c *gin.Context) {
	h.act(c, h.service.AcceptChallenge)
}

func (h *ChallengeHandler) DeclineChallenge(c *gin.Context) {
	h.act(c, h.service.DeclineChallenge)
}

func (h *ChallengeHandler) CancelChallenge(c *gin.Context) {
	h.act(c, h.service.CancelChallenge)
}

// act runs a per-challenge operation on behalf of the caller.
func (h *ChallengeHandler) act(c *gin.Context, op func(ctx context.Context, actorID, challengeID uuid.UUID) (*challengeDto.ChallengeResponse, error)) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	challengeID, ok := response.ParamUUID(c, "challenge_id")
	if !ok {
		return
	}

	result, err := op(c.Request.Context(), userID, challengeID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (h *ChallengeHandler) ListGroupChallenges(c *gin.Context) {
	var query challengeDto.ListChallengesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.ResponseError(c, err)
		return
	}

	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	groupID, ok := response.ParamUUID(c, "group_id")
	if !ok {
		return
	}

	challenges, err := h.service.ListGroupChallenges(c.Request.Context(), userID, groupID, query.Status)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": challenges})
}
