package handler

import (
	"net/http"

	progressionDto "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/progression/dto"
	progression "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/progression/service"
	"github.com/PhoenixSmith/seraph-v2-sub000/pkg/response"
	"github.com/gin-gonic/gin"
)

type ProgressionHandler struct {
	service progression.ProgressionService
}

func NewProgressionHandler(service progression.ProgressionService) *ProgressionHandler {
	return &ProgressionHandler{service: service}
}

func (h *ProgressionHandler) RecordVerseRead(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	result, err := h.service.RecordVerseRead(c.Request.Context(), userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (h *ProgressionHandler) RecordQuizAnswer(c *gin.Context) {
	var req progressionDto.QuizAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseError(c, err)
		return
	}

	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	result, err := h.service.RecordQuizAnswer(c.Request.Context(), userID, *req.Correct, req.Book, req.Chapter)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (h *ProgressionHandler) CompleteChapter(c *gin.Context) {
	var req progressionDto.CompleteChapterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseError(c, err)
		return
	}

	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	result, err := h.service.CompleteChapter(c.Request.Context(), userID, req.Book, req.Chapter)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (h *ProgressionHandler) GetSummary(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	summary, err := h.service.GetProgressSummary(c.Request.Context(), userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": summary})
}

func (h *ProgressionHandler) GetBookProgress(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	books, err := h.service.GetAllBookProgress(c.Request.Context(), userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": books})
}
