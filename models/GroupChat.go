package models

import (
	"time"

	"gorm.io/gorm"
)

// MaxGroupMembers caps total membership including the owner.
const MaxGroupMembers = 8

// GroupChat is a named multi-party channel. OwnerID always references the
// member row carrying IsOwner=true while the group has members; when the last
// member leaves the group is orphaned and OwnerID dangles.
type GroupChat struct {
	gorm.Model
	Name        string `json:"name" gorm:"size:50;not null"`
	Description string `json:"description" gorm:"size:500"`
	ImageURL    string `json:"imageURL" gorm:"size:512"`

	OwnerID uint `json:"ownerID" gorm:"not null;index"`
	Owner   User `json:"owner" gorm:"foreignKey:OwnerID"`

	// Ended groups are read-only; ending is permanent.
	Ended bool `json:"ended" gorm:"not null;default:false;index"`

	Members  []GroupChatMember `json:"members" gorm:"foreignKey:GroupID"`
	Messages []GroupMessage    `json:"messages" gorm:"foreignKey:GroupID"`
}

// GroupChatMember joins a user to a group. IsOwner=true implies IsAdmin=true;
// at most one member per group is owner. CreatedAt records join order and
// drives ownership succession.
type GroupChatMember struct {
	ID      uint      `json:"id" gorm:"primaryKey"`
	GroupID uint      `json:"groupID" gorm:"not null;uniqueIndex:idx_group_member"`
	Group   GroupChat `json:"-" gorm:"foreignKey:GroupID"`

	UserID uint `json:"userID" gorm:"not null;uniqueIndex:idx_group_member"`
	User   User `json:"user" gorm:"foreignKey:UserID"`

	IsAdmin bool `json:"isAdmin" gorm:"not null;default:false"`
	IsOwner bool `json:"isOwner" gorm:"not null;default:false"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
