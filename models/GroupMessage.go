package models

import (
	"time"

	"gorm.io/datatypes"
)

// GroupMessage stores a single message in a group chat. SenderID is nil for
// system messages (membership changes, ownership transfers, metadata edits),
// so authorship is the tag, not a magic user id.
type GroupMessage struct {
	ID      uint      `json:"id" gorm:"primaryKey"`
	GroupID uint      `json:"groupID" gorm:"not null;index"`
	Group   GroupChat `json:"-" gorm:"foreignKey:GroupID"`

	SenderID *uint `json:"senderID" gorm:"index"`
	Sender   *User `json:"sender" gorm:"foreignKey:SenderID"`

	Content string `json:"content" gorm:"type:text"`

	// Optional media attachment metadata (url, mime type, dimensions)
	Attachment datatypes.JSON `json:"attachment"`

	// One level of reply nesting; deeper chains display only the immediate parent.
	ParentID *uint         `json:"parentID" gorm:"index"`
	Parent   *GroupMessage `json:"parent" gorm:"foreignKey:ParentID"`

	Reads []GroupMessageRead `json:"reads" gorm:"foreignKey:MessageID"`

	Edited   bool       `json:"edited" gorm:"not null;default:false"`
	EditedAt *time.Time `json:"editedAt"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsSystem reports whether the message was authored by the system rather
// than a human member.
func (m *GroupMessage) IsSystem() bool {
	return m.SenderID == nil
}

// GroupMessageRead records that a user has read a group message. Receipts
// are only created for messages the user did not author themselves.
type GroupMessageRead struct {
	ID        uint         `json:"id" gorm:"primaryKey"`
	MessageID uint         `json:"messageID" gorm:"not null;uniqueIndex:idx_group_message_read"`
	Message   GroupMessage `json:"-" gorm:"foreignKey:MessageID"`

	UserID uint `json:"userID" gorm:"not null;uniqueIndex:idx_group_message_read"`
	User   User `json:"-" gorm:"foreignKey:UserID"`

	ReadAt time.Time `json:"readAt"`
}
