package services

import (
	"time"

	"github.com/DkshLuvsDucks/FCS-Project-Fixed-sub000/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReadTracker unifies read-receipt bookkeeping for the two message stores:
// direct messages keep a boolean flag on the row, group messages keep
// receipt rows in a join table. MarkRead is idempotent for both.
type ReadTracker interface {
	MarkRead(db *gorm.DB, userID uint, messageIDs []uint) error
	IsRead(db *gorm.DB, userID uint, messageID uint) (bool, error)
	UnreadCount(db *gorm.DB, userID uint, channelID uint) (int64, error)
}

// DirectReadTracker backs receipts with the read flag on messages. Only the
// receiving side of a message is ever unread; the sender's own copy counts
// as read from creation.
type DirectReadTracker struct{}

func (DirectReadTracker) MarkRead(db *gorm.DB, userID uint, messageIDs []uint) error {
	if len(messageIDs) == 0 {
		return nil
	}
	now := time.Now()
	return db.Model(&models.Message{}).
		Where("receiver_id = ? AND id IN ? AND read = ?", userID, messageIDs, false).
		Updates(map[string]interface{}{"read": true, "read_at": &now}).Error
}

func (DirectReadTracker) IsRead(db *gorm.DB, userID uint, messageID uint) (bool, error) {
	var msg models.Message
	if err := db.Select("id, sender_id, read").First(&msg, messageID).Error; err != nil {
		return false, err
	}
	// the author's own side is read by definition
	if msg.SenderID == userID {
		return true, nil
	}
	return msg.Read, nil
}

// UnreadCount counts unread incoming messages in a conversation, excluding
// ones the user soft-deleted on their side.
func (DirectReadTracker) UnreadCount(db *gorm.DB, userID uint, conversationID uint) (int64, error) {
	var count int64
	err := db.Model(&models.Message{}).
		Where("conversation_id = ? AND receiver_id = ? AND read = ? AND deleted_for_receiver = ?",
			conversationID, userID, false, false).
		Count(&count).Error
	return count, err
}

// GroupReadTracker backs receipts with group_message_reads rows. The unique
// (message, user) index plus an on-conflict-do-nothing insert makes marking
// idempotent under concurrent readers.
type GroupReadTracker struct{}

func (GroupReadTracker) MarkRead(db *gorm.DB, userID uint, messageIDs []uint) error {
	if len(messageIDs) == 0 {
		return nil
	}
	// receipts never attach to the user's own messages
	var eligible []uint
	if err := db.Model(&models.GroupMessage{}).
		Where("id IN ? AND (sender_id IS NULL OR sender_id <> ?)", messageIDs, userID).
		Pluck("id", &eligible).Error; err != nil {
		return err
	}
	if len(eligible) == 0 {
		return nil
	}

	now := time.Now()
	receipts := make([]models.GroupMessageRead, 0, len(eligible))
	for _, id := range eligible {
		receipts = append(receipts, models.GroupMessageRead{MessageID: id, UserID: userID, ReadAt: now})
	}
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&receipts).Error
}

func (GroupReadTracker) IsRead(db *gorm.DB, userID uint, messageID uint) (bool, error) {
	var msg models.GroupMessage
	if err := db.Select("id, sender_id").First(&msg, messageID).Error; err != nil {
		return false, err
	}
	if msg.SenderID != nil && *msg.SenderID == userID {
		return true, nil
	}
	var count int64
	err := db.Model(&models.GroupMessageRead{}).
		Where("message_id = ? AND user_id = ?", messageID, userID).
		Count(&count).Error
	return count > 0, err
}

// UnreadCount counts group messages authored by others that carry no receipt
// from the user.
func (GroupReadTracker) UnreadCount(db *gorm.DB, userID uint, groupID uint) (int64, error) {
	var count int64
	err := db.Model(&models.GroupMessage{}).
		Where("group_id = ? AND (sender_id IS NULL OR sender_id <> ?)", groupID, userID).
		Where("NOT EXISTS (SELECT 1 FROM group_message_reads r WHERE r.message_id = group_messages.id AND r.user_id = ?)", userID).
		Count(&count).Error
	return count, err
}

// MarkGroupRead stamps receipts for every message in the group the user has
// not yet read, in one batch. Exposed as its own operation so viewing a
// group's message list can trigger it explicitly.
func MarkGroupRead(db *gorm.DB, userID uint, groupID uint) error {
	var unread []uint
	if err := db.Model(&models.GroupMessage{}).
		Where("group_id = ? AND (sender_id IS NULL OR sender_id <> ?)", groupID, userID).
		Where("NOT EXISTS (SELECT 1 FROM group_message_reads r WHERE r.message_id = group_messages.id AND r.user_id = ?)", userID).
		Pluck("id", &unread).Error; err != nil {
		return err
	}
	return GroupReadTracker{}.MarkRead(db, userID, unread)
}
