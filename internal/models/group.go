package models

import (
	"time"

	"gorm.io/gorm"
)

// GroupType gates whether a group is tied to a location.
type GroupType string

const (
	// GroupTypeLocation is a group anchored to a city; city and coordinates
	// are required for this type.
	GroupTypeLocation GroupType = "location"
	// GroupTypeGeneral is a free-form interest group.
	GroupTypeGeneral GroupType = "general"
)

// GroupMemberRole defines a member's role in a group.
type GroupMemberRole string

const (
	// GroupMemberRoleAdmin can manage the group and its members.
	GroupMemberRoleAdmin GroupMemberRole = "admin"
	// GroupMemberRoleMember is the default role.
	GroupMemberRoleMember GroupMemberRole = "member"
)

// Group represents a riding group or club.
type Group struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:120;not null;uniqueIndex" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Type        GroupType `gorm:"type:varchar(20);not null;default:'general'" json:"type"`
	City        string    `json:"city"`
	Lat         *float64  `json:"lat,omitempty"`
	Lng         *float64  `json:"lng,omitempty"`
	CreatedBy   uint      `gorm:"not null" json:"created_by"`
	Creator     *User     `gorm:"foreignKey:CreatedBy" json:"creator,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Members []GroupMember `gorm:"foreignKey:GroupID" json:"members,omitempty"`
	Images  []GroupImage  `gorm:"foreignKey:GroupID" json:"images,omitempty"`

	// MemberCount is not persisted; computed at query time.
	MemberCount int `gorm:"-" json:"member_count"`
}

// GroupMember maps users to groups and tracks role. Unique per (group, user).
type GroupMember struct {
	GroupID   uint            `gorm:"primaryKey;autoIncrement:false" json:"group_id"`
	UserID    uint            `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	User      *User           `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Role      GroupMemberRole `gorm:"type:varchar(20);not null;default:'member'" json:"role"`
	CreatedAt time.Time       `json:"created_at"`
}

// GroupImage is an ordered image attached to a group.
type GroupImage struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	GroupID  uint   `gorm:"not null;index;uniqueIndex:idx_group_image_position" json:"group_id"`
	URL      string `gorm:"not null" json:"url"`
	Position int    `gorm:"not null;default:0;uniqueIndex:idx_group_image_position" json:"position"`
}

// ValidGroupType reports whether the given type is a known enum member.
func ValidGroupType(t GroupType) bool {
	return t == GroupTypeLocation || t == GroupTypeGeneral
}
