package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	GroupRoleLeader = "leader"
	GroupRoleMember = "member"
)

type Group struct {
	ID                uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	Name              string            `gorm:"size:80;not null" json:"name"`
	Description       string            `gorm:"type:text" json:"description"`
	ImageURL          *string           `gorm:"type:text" json:"image_url,omitempty"`
	LeaderID          uuid.UUID         `gorm:"type:uuid;not null;index" json:"leader_id"`
	WeeklyXP          int               `gorm:"not null;default:0" json:"weekly_xp"`
	WeekStartDate     string            `gorm:"size:10;not null" json:"week_start_date"`
	CurrentLevel      string            `gorm:"size:30;not null" json:"current_level"`
	OpenForChallenges bool              `gorm:"not null;default:false;index" json:"open_for_challenges"`
	MembersCanInvite  bool              `gorm:"not null;default:false" json:"members_can_invite"`
	InviteCode        string            `gorm:"size:12;uniqueIndex;not null" json:"-"`
	ChallengeWins     int               `gorm:"not null;default:0" json:"challenge_wins"`
	CreatedAt         time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
	Members           []GroupMembership `gorm:"constraint:OnDelete:CASCADE" json:"members,omitempty"`
}

func (g *Group) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

type GroupMembership struct {
	GroupID  uuid.UUID `gorm:"type:uuid;primaryKey" json:"group_id"`
	UserID   uuid.UUID `gorm:"type:uuid;primaryKey;index" json:"user_id"`
	User     User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user"`
	Role     string    `gorm:"size:10;not null" json:"role"`
	JoinedAt time.Time `gorm:"not null" json:"joined_at"`
}
