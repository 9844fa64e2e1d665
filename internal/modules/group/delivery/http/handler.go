package handler

import (
	"fmt"
	"net/http"
	"strings"

	groupDto "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/group/dto"
	group "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/group/service"
	"github.com/PhoenixSmith/seraph-v2-sub000/pkg/ratelimiter"
	"github.com/PhoenixSmith/seraph-v2-sub000/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxImageSize = 5 << 20

type GroupHandler struct {
	service group.GroupService
}

func NewGroupHandler(service group.GroupService) *GroupHandler {
	return &GroupHandler{service: service}
}

func (h *GroupHandler) CreateGroup(c *gin.Context) {
	var req groupDto.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseError(c, err)
		return
	}

	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	detail, err := h.service.CreateGroup(c.Request.Context(), userID, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": detail})
}

func (h *GroupHandler) ListMyGroups(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	groups, err := h.service.ListMyGroups(c.Request.Context(), userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": groups})
}

func (h *GroupHandler) BrowseGroups(c *gin.Context) {
	var query groupDto.BrowseGroupsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.ResponseError(c, err)
		return
	}

	groups, meta, err := h.service.BrowseGroups(c.Request.Context(), query)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": groups, "meta": meta})
}

func (h *GroupHandler) GetGroup(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	groupID, ok := response.ParamUUID(c, "group_id")
	if !ok {
		return
	}

	detail, err := h.service.GetGroup(c.Request.Context(), userID, groupID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": detail})
}

func (h *GroupHandler) UpdateGroup(c *gin.Context) {
	var req groupDto.UpdateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
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

	updated, err := h.service.UpdateGroup(c.Request.Context(), userID, groupID, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": updated})
}

func (h *GroupHandler) JoinGroup(c *gin.Context) {
	var req groupDto.JoinGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseError(c, err)
		return
	}

	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	result, err := h.service.JoinGroup(c.Request.Context(), userID, req.InviteCode)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (h *GroupHandler) LeaveGroup(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	groupID, ok := response.ParamUUID(c, "group_id")
	if !ok {
		return
	}

	result, err := h.service.LeaveGroup(c.Request.Context(), userID, groupID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (h *GroupHandler) RemoveMember(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	groupID, ok := response.ParamUUID(c, "group_id")
	if !ok {
		return
	}
	memberID, ok := response.ParamUUID(c, "user_id")
	if !ok {
		return
	}

	if err := h.service.RemoveMember(c.Request.Context(), userID, groupID, memberID); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "member removed"})
}

func (h *GroupHandler) TransferLeadership(c *gin.Context) {
	var req groupDto.TransferLeadershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
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

	if err := h.service.TransferLeadership(c.Request.Context(), userID, groupID, uuid.MustParse(req.NewLeaderID)); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "leadership transferred"})
}

func (h *GroupHandler) GetInviteCode(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	groupID, ok := response.ParamUUID(c, "group_id")
	if !ok {
		return
	}

	code, err := h.service.GetInviteCode(c.Request.Context(), userID, groupID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": groupDto.InviteCodeResponse{InviteCode: code}})
}

func (h *GroupHandler) RegenerateInviteCode(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	groupID, ok := response.ParamUUID(c, "group_id")
	if !ok {
		return
	}

	code, err := h.service.RegenerateInviteCode(c.Request.Context(), userID, groupID)
	if err != nil {
		if rateLimitErr, ok := err.(*ratelimiter.RateLimitError); ok {
			c.Header("Retry-After", fmt.Sprintf("%.0f", rateLimitErr.RetryAfter.Seconds()))
		}
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": groupDto.InviteCodeResponse{InviteCode: code}})
}

func (h *GroupHandler) UploadImage(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	groupID, ok := response.ParamUUID(c, "group_id")
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image is required"})
		return
	}
	if fileHeader.Size > maxImageSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image must be 5MB or smaller"})
		return
	}
	if ct := fileHeader.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file must be an image"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read image"})
		return
	}
	defer file.Close()

	updated, err := h.service.UploadImage(c.Request.Context(), userID, groupID, file, fileHeader.Filename)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": updated})
}
