package models

import (
	"gorm.io/gorm"
)

// Conversation is the unique direct channel between two users. The pair is
// stored in canonical order (UserAID < UserBID) so the composite unique index
// can enforce one row per pair.
type Conversation struct {
	gorm.Model
	UserAID uint `json:"userAID" gorm:"not null;uniqueIndex:idx_conversation_pair"`
	UserA   User `json:"userA" gorm:"foreignKey:UserAID"`

	UserBID uint `json:"userBID" gorm:"not null;uniqueIndex:idx_conversation_pair"`
	UserB   User `json:"userB" gorm:"foreignKey:UserBID"`

	Messages []Message `json:"messages" gorm:"foreignKey:ConversationID"`
}

// OtherSide returns the participant opposite to userID.
func (c *Conversation) OtherSide(userID uint) uint {
	if c.UserAID == userID {
		return c.UserBID
	}
	return c.UserAID
}
