package routes

import (
	"log"
	"time"

	"github.com/DkshLuvsDucks/FCS-Project-Fixed-sub000/models"
	"github.com/DkshLuvsDucks/FCS-Project-Fixed-sub000/services"

	"gorm.io/datatypes"
)

// MessageView is the caller-facing shape of a message, direct or group.
// Content arrives decrypted; the envelope never leaves the server.
type MessageView struct {
	ID        uint           `json:"id"`
	Content   string         `json:"content"`
	MediaRef  datatypes.JSON `json:"mediaRef,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Edited    bool           `json:"edited"`
	EditedAt  *time.Time     `json:"editedAt,omitempty"`
	ReplyToID *uint          `json:"replyToID,omitempty"`
	ReplyTo   *MessageView   `json:"replyTo,omitempty"`
	Sender    *SenderView    `json:"sender,omitempty"`
	ReadBy    []ReadView     `json:"readBy"`
	IsSystem  bool           `json:"isSystem"`

	// Set when this message's envelope failed its integrity check; the
	// listing still succeeds with the content blanked.
	DecryptionFailed bool `json:"decryptionFailed,omitempty"`
}

type SenderView struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

type ReadView struct {
	UserID uint      `json:"userID"`
	ReadAt time.Time `json:"readAt"`
}

// directMessageView decrypts and shapes one direct message. Decryption
// failures are surfaced per message, not propagated.
func directMessageView(msg *models.Message, includeReply bool) MessageView {
	view := MessageView{
		ID:        msg.ID,
		MediaRef:  msg.Attachment,
		CreatedAt: msg.CreatedAt,
		UpdatedAt: msg.UpdatedAt,
		Edited:    msg.Edited,
		EditedAt:  msg.EditedAt,
		ReplyToID: msg.ReplyToID,
		Sender:    &SenderView{ID: msg.SenderID, Username: msg.Sender.DisplayName()},
		ReadBy:    []ReadView{},
	}

	if msg.HasText() {
		content, err := services.Codec.Decrypt(services.Envelope{
			Ciphertext: msg.Ciphertext,
			IV:         msg.IV,
			Algorithm:  msg.Algorithm,
			AuthTag:    msg.AuthTag,
			MAC:        msg.MAC,
		}, msg.SenderID, msg.ReceiverID)
		if err != nil {
			log.Printf("message %d failed decryption: %v", msg.ID, err)
			view.DecryptionFailed = true
		} else {
			view.Content = content
		}
	}

	if msg.Read && msg.ReadAt != nil {
		view.ReadBy = append(view.ReadBy, ReadView{UserID: msg.ReceiverID, ReadAt: *msg.ReadAt})
	}

	if includeReply && msg.ReplyTo != nil {
		parent := directMessageView(msg.ReplyTo, false)
		view.ReplyTo = &parent
	}

	return view
}

func groupMessageView(msg *models.GroupMessage, includeReply bool) MessageView {
	view := MessageView{
		ID:        msg.ID,
		Content:   msg.Content,
		MediaRef:  msg.Attachment,
		CreatedAt: msg.CreatedAt,
		UpdatedAt: msg.UpdatedAt,
		Edited:    msg.Edited,
		EditedAt:  msg.EditedAt,
		ReplyToID: msg.ParentID,
		ReadBy:    []ReadView{},
		IsSystem:  msg.IsSystem(),
	}

	if msg.SenderID != nil && msg.Sender != nil {
		view.Sender = &SenderView{ID: *msg.SenderID, Username: msg.Sender.DisplayName()}
	}

	for _, r := range msg.Reads {
		view.ReadBy = append(view.ReadBy, ReadView{UserID: r.UserID, ReadAt: r.ReadAt})
	}

	if includeReply && msg.Parent != nil {
		parent := groupMessageView(msg.Parent, false)
		view.ReplyTo = &parent
	}

	return view
}
