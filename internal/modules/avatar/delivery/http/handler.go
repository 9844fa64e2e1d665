package handler

import (
	"net/http"
	"strconv"

	avatar "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/avatar/service"
	"github.com/PhoenixSmith/seraph-v2-sub000/pkg/response"
	"github.com/gin-gonic/gin"
)

type AvatarHandler struct {
	service avatar.AvatarService
}

func NewAvatarHandler(service avatar.AvatarService) *AvatarHandler {
	return &AvatarHandler{service: service}
}

func (h *AvatarHandler) ListItems(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	items, err := h.service.ListItems(c.Request.Context(), userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (h *AvatarHandler) PurchaseItem(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	itemID, err := strconv.ParseUint(c.Param("item_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item_id"})
		return
	}

	result, err := h.service.PurchaseItem(c.Request.Context(), userID, uint(itemID))
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}
