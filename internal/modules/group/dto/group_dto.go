package dto

import (
	"time"

	commonDto "github.com/PhoenixSmith/seraph-v2-sub000/pkg/dto"
	"github.com/PhoenixSmith/seraph-v2-sub000/pkg/tier"
)

type CreateGroupRequest struct {
	Name              string `json:"name" binding:"required,max=80"`
	Description       string `json:"description" binding:"max=500"`
	OpenForChallenges bool   `json:"open_for_challenges"`
	MembersCanInvite  bool   `json:"members_can_invite"`
}

type UpdateGroupRequest struct {
	Name              *string `json:"name" binding:"omitempty,max=80"`
	Description       *string `json:"description" binding:"omitempty,max=500"`
	OpenForChallenges *bool   `json:"open_for_challenges"`
	MembersCanInvite  *bool   `json:"members_can_invite"`
}

type JoinGroupRequest struct {
	InviteCode string `json:"invite_code" binding:"required,alphanum,max=12"`
}

type TransferLeadershipRequest struct {
	NewLeaderID string `json:"new_leader_id" binding:"required,uuid"`
}

type BrowseGroupsQuery struct {
	commonDto.PageQuery
	Query string `form:"q" binding:"max=80"`
}

type GroupResponse struct {
	ID                string      `json:"id"`
	Name              string      `json:"name"`
	Description       string      `json:"description"`
	ImageURL          *string     `json:"image_url,omitempty"`
	LeaderID          string      `json:"leader_id"`
	MemberCount       int64       `json:"member_count"`
	WeeklyXP          int         `json:"weekly_xp"` // zero once the stored week is over
	Level             tier.Status `json:"level"`
	StoredWeeklyXP    int         `json:"stored_weekly_xp"`
	StoredLevel       string      `json:"stored_level"`
	WeekStartDate     string      `json:"week_start_date"`
	OpenForChallenges bool        `json:"open_for_challenges"`
	MembersCanInvite  bool        `json:"members_can_invite"`
	ChallengeWins     int         `json:"challenge_wins"`
	Role              string      `json:"role,omitempty"` // caller's role, empty for outsiders
	CreatedAt         time.Time   `json:"created_at"`
}

type MemberResponse struct {
	User     commonDto.AuthorResponse `json:"user"`
	Role     string                   `json:"role"`
	TotalXP  int                      `json:"total_xp"`
	JoinedAt time.Time                `json:"joined_at"`
}

type GroupDetailResponse struct {
	GroupResponse
	Members []MemberResponse `json:"members"`
}

type InviteCodeResponse struct {
	InviteCode string `json:"invite_code"`
}

type JoinGroupResult struct {
	Group         GroupResponse `json:"group"`
	AlreadyMember bool          `json:"already_member"`
}

type LeaveGroupResult struct {
	GroupDeleted bool `json:"group_deleted"`
}
