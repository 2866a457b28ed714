package routes

import (
	"strings"

	"github.com/DkshLuvsDucks/FCS-Project-Fixed-sub000/models"
	"github.com/DkshLuvsDucks/FCS-Project-Fixed-sub000/services"
	"github.com/DkshLuvsDucks/FCS-Project-Fixed-sub000/storage"
	"github.com/DkshLuvsDucks/FCS-Project-Fixed-sub000/utils"

	"github.com/kataras/iris/v12"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// resolveConversation returns the unique conversation for an unordered user
// pair, creating it if absent. The pair is normalized so the composite unique
// index holds; a concurrent creator's insert is treated as our success and
// the surviving row is read back.
func resolveConversation(db *gorm.DB, userA, userB uint) (models.Conversation, error) {
	if userA == userB {
		return models.Conversation{}, utils.Validation("cannot open a conversation with yourself")
	}

	lo, hi := userA, userB
	if lo > hi {
		lo, hi = hi, lo
	}

	attempt := models.Conversation{UserAID: lo, UserBID: hi}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&attempt).Error; err != nil {
		return models.Conversation{}, err
	}

	var conversation models.Conversation
	if err := db.Where("user_a_id = ? AND user_b_id = ?", lo, hi).First(&conversation).Error; err != nil {
		return models.Conversation{}, err
	}
	return conversation, nil
}

type CreateConversationMessageInput struct {
	ReceiverID uint           `json:"receiverID" validate:"required"`
	Content    string         `json:"content" validate:"lt=5000"`
	ReplyToID  *uint          `json:"replyToID"`
	MediaRef   datatypes.JSON `json:"mediaRef"`
}

// CreateConversationMessage resolves the conversation with the receiver,
// encrypts the content and persists the message.
func CreateConversationMessage(ctx iris.Context) {
	var req CreateConversationMessageInput
	if err := ctx.ReadJSON(&req); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	senderID := utils.ActorID(ctx)

	content := strings.TrimSpace(req.Content)
	if content == "" && len(req.MediaRef) == 0 {
		utils.HandleAppError(ctx, utils.Validation("message needs text content or a media reference"))
		return
	}

	var receiver models.User
	if err := storage.DB.First(&receiver, req.ReceiverID).Error; err != nil {
		utils.HandleAppError(ctx, utils.NotFound("receiver not found"))
		return
	}

	conversation, err := resolveConversation(storage.DB, senderID, req.ReceiverID)
	if err != nil {
		utils.HandleAppError(ctx, err)
		return
	}

	if req.ReplyToID != nil {
		var parent models.Message
		if err := storage.DB.Where("id = ? AND conversation_id = ?", *req.ReplyToID, conversation.ID).
			First(&parent).Error; err != nil {
			utils.HandleAppError(ctx, utils.NotFound("reply target not found in this conversation"))
			return
		}
	}

	message := models.Message{
		ConversationID: conversation.ID,
		SenderID:       senderID,
		ReceiverID:     req.ReceiverID,
		ReplyToID:      req.ReplyToID,
		Attachment:     req.MediaRef,
	}

	if content != "" {
		envelope, err := services.Codec.Encrypt(content, senderID, req.ReceiverID)
		if err != nil {
			utils.HandleAppError(ctx, err)
			return
		}
		message.Ciphertext = envelope.Ciphertext
		message.IV = envelope.IV
		message.Algorithm = envelope.Algorithm
		message.AuthTag = envelope.AuthTag
		message.MAC = envelope.MAC
	}

	if err := storage.DB.Create(&message).Error; err != nil {
		utils.HandleAppError(ctx, err)
		return
	}
	storage.DB.Preload("Sender").First(&message, message.ID)

	var sender models.User
	if err := storage.DB.First(&sender, senderID).Error; err == nil {
		notificationService := services.NewNotificationService()
		go notificationService.SendMessageNotification(req.ReceiverID, sender.DisplayName(), conversation.ID)
	}

	ctx.JSON(directMessageView(&message, false))
}

// ListConversationMessages returns the message history with another user in
// chronological order and marks the returned incoming messages as read.
func ListConversationMessages(ctx iris.Context) {
	userID := utils.ActorID(ctx)

	otherUserID, err := ctx.Params().GetUint("otherUserID")
	if err != nil {
		ctx.StopWithStatus(iris.StatusBadRequest)
		return
	}
	includeReplies, _ := ctx.URLParamBool("includeReplies")
	limit, _ := ctx.URLParamInt("limit")
	if limit <= 0 || limit > 100 {
		limit = 30
	}
	cursor, _ := ctx.URLParamInt("cursor")

	lo, hi := userID, otherUserID
	if lo > hi {
		lo, hi = hi, lo
	}
	var conversation models.Conversation
	if err := storage.DB.Where("user_a_id = ? AND user_b_id = ?", lo, hi).First(&conversation).Error; err != nil {
		ctx.JSON(iris.Map{"messages": []MessageView{}, "nextCursor": 0})
		return
	}

	// hide what this side soft-deleted
	q := storage.DB.Where("conversation_id = ?", conversation.ID).
		Where("(sender_id = ? AND deleted_for_sender = ?) OR (receiver_id = ? AND deleted_for_receiver = ?)",
			userID, false, userID, false)
	if cursor > 0 {
		q = q.Where("id < ?", cursor)
	}
	q = q.Preload("Sender")
	if includeReplies {
		q = q.Preload("ReplyTo").Preload("ReplyTo.Sender")
	}

	var msgs []models.Message
	if err := q.Order("id DESC").Limit(limit).Find(&msgs).Error; err != nil {
		utils.HandleAppError(ctx, err)
		return
	}
	// reverse to chronological; creation order ties break on id
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	var unreadIncoming []uint
	views := make([]MessageView, 0, len(msgs))
	for i := range msgs {
		views = append(views, directMessageView(&msgs[i], includeReplies))
		if msgs[i].ReceiverID == userID && !msgs[i].Read {
			unreadIncoming = append(unreadIncoming, msgs[i].ID)
		}
	}

	// viewing the conversation reads the incoming messages on this page
	if err := (services.DirectReadTracker{}).MarkRead(storage.DB, userID, unreadIncoming); err != nil {
		utils.HandleAppError(ctx, err)
		return
	}

	nextCursor := 0
	if len(msgs) > 0 {
		nextCursor = int(msgs[0].ID)
	}
	ctx.JSON(iris.Map{"messages": views, "nextCursor": nextCursor})
}

type MarkMessagesReadInput struct {
	MessageIDs []uint `json:"messageIDs" validate:"required,min=1"`
}

// MarkMessagesRead marks the given direct messages as read for the caller.
// Re-marking an already-read message is a no-op.
func MarkMessagesRead(ctx iris.Context) {
	var req MarkMessagesReadInput
	if err := ctx.ReadJSON(&req); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	userID := utils.ActorID(ctx)
	if err := (services.DirectReadTracker{}).MarkRead(storage.DB, userID, req.MessageIDs); err != nil {
		utils.HandleAppError(ctx, err)
		return
	}
	ctx.JSON(iris.Map{"success": true})
}

// ListConversationUnread returns the caller's unread count per conversation.
func ListConversationUnread(ctx iris.Context) {
	userID := utils.ActorID(ctx)

	var conversations []models.Conversation
	if err := storage.DB.Where("user_a_id = ? OR user_b_id = ?", userID, userID).
		Find(&conversations).Error; err != nil {
		utils.HandleAppError(ctx, err)
		return
	}

	tracker := services.DirectReadTracker{}
	counts := make([]iris.Map, 0, len(conversations))
	for _, c := range conversations {
		n, err := tracker.UnreadCount(storage.DB, userID, c.ID)
		if err != nil {
			utils.HandleAppError(ctx, err)
			return
		}
		counts = append(counts, iris.Map{
			"conversationID": c.ID,
			"otherUserID":    c.OtherSide(userID),
			"unread":         n,
		})
	}
	ctx.JSON(iris.Map{"conversations": counts})
}
