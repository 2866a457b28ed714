package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Message is a direct message inside a Conversation. Content is stored only
// as the encrypted envelope (hex fields below); plaintext never touches the
// database and is recovered on read by the message codec.
type Message struct {
	gorm.Model
	ConversationID uint `json:"conversationID" gorm:"not null;index"`

	SenderID uint `json:"senderID" gorm:"not null;index"`
	Sender   User `json:"sender" gorm:"foreignKey:SenderID"`

	ReceiverID uint `json:"receiverID" gorm:"not null;index"`
	Receiver   User `json:"receiver" gorm:"foreignKey:ReceiverID"`

	// Encrypted content envelope. Empty Ciphertext means a media-only message.
	Ciphertext string `json:"-" gorm:"type:text"`
	IV         string `json:"-" gorm:"size:64"`
	Algorithm  string `json:"-" gorm:"size:32"`
	AuthTag    string `json:"-" gorm:"size:64"`
	MAC        string `json:"-" gorm:"size:128"`

	// Optional media attachment metadata (url, mime type, dimensions)
	Attachment datatypes.JSON `json:"attachment"`

	ReplyToID *uint    `json:"replyToID" gorm:"index"`
	ReplyTo   *Message `json:"replyTo" gorm:"foreignKey:ReplyToID"`

	Read   bool       `json:"read" gorm:"not null;default:false;index"`
	ReadAt *time.Time `json:"readAt"`

	Edited   bool       `json:"edited" gorm:"not null;default:false"`
	EditedAt *time.Time `json:"editedAt"`

	// Per-side soft delete: hides the message for one participant only
	DeletedForSender   bool `json:"-" gorm:"not null;default:false"`
	DeletedForReceiver bool `json:"-" gorm:"not null;default:false"`
}

// HasText reports whether the message carries encrypted text content.
func (m *Message) HasText() bool {
	return m.Ciphertext != ""
}

// VisibleTo reports whether userID's side of the message is not soft-deleted.
func (m *Message) VisibleTo(userID uint) bool {
	if userID == m.SenderID {
		return !m.DeletedForSender
	}
	if userID == m.ReceiverID {
		return !m.DeletedForReceiver
	}
	return false
}
