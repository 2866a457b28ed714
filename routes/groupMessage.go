package routes

import (
	"fmt"
	"strings"
	"time"

	"github.com/DkshLuvsDucks/FCS-Project-Fixed-sub000/models"
	"github.com/DkshLuvsDucks/FCS-Project-Fixed-sub000/services"
	"github.com/DkshLuvsDucks/FCS-Project-Fixed-sub000/storage"
	"github.com/DkshLuvsDucks/FCS-Project-Fixed-sub000/utils"

	"github.com/kataras/iris/v12"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SendGroupMessageInput struct {
	Content  string         `json:"content" validate:"lt=5000"`
	ParentID *uint          `json:"parentID"`
	MediaRef datatypes.JSON `json:"mediaRef"`
}

// SendGroupMessage appends a message to a group's timeline. Fails when the
// group has ended; no row is written in that case.
func SendGroupMessage(ctx iris.Context) {
	var req SendGroupMessageInput
	if err := ctx.ReadJSON(&req); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	senderID := utils.ActorID(ctx)
	groupID, err := ctx.Params().GetUint("groupID")
	if err != nil {
		ctx.StopWithStatus(iris.StatusBadRequest)
		return
	}

	var group models.GroupChat
	if err := storage.DB.First(&group, groupID).Error; err != nil {
		utils.HandleAppError(ctx, utils.NotFound("group not found"))
		return
	}
	if group.Ended {
		utils.HandleAppError(ctx, utils.GroupEnded("this group has ended"))
		return
	}

	if _, err := groupMembership(storage.DB, groupID, senderID); err != nil {
		utils.HandleAppError(ctx, utils.NotAMember("you are not a member of this group"))
		return
	}

	content := strings.TrimSpace(req.Content)
	if content == "" && len(req.MediaRef) == 0 {
		utils.HandleAppError(ctx, utils.Validation("message needs text content or a media reference"))
		return
	}

	if req.ParentID != nil {
		var parent models.GroupMessage
		if err := storage.DB.Where("id = ? AND group_id = ?", *req.ParentID, groupID).
			First(&parent).Error; err != nil {
			utils.HandleAppError(ctx, utils.NotFound("reply target not found in this group"))
			return
		}
	}

	message := models.GroupMessage{
		GroupID:    groupID,
		SenderID:   &senderID,
		Content:    content,
		Attachment: req.MediaRef,
		ParentID:   req.ParentID,
	}
	if err := storage.DB.Create(&message).Error; err != nil {
		utils.HandleAppError(ctx, err)
		return
	}

	storage.DB.Preload("Sender").First(&message, message.ID)
	ctx.JSON(groupMessageView(&message, false))
}

// ListGroupMessages returns a group's timeline in chronological order.
// Member-only. Marking as read is a separate, explicit operation.
func ListGroupMessages(ctx iris.Context) {
	userID := utils.ActorID(ctx)
	groupID, err := ctx.Params().GetUint("groupID")
	if err != nil {
		ctx.StopWithStatus(iris.StatusBadRequest)
		return
	}
	includeReplies, _ := ctx.URLParamBool("includeReplies")
	limit, _ := ctx.URLParamInt("limit")
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	cursor, _ := ctx.URLParamInt("cursor")

	if _, err := groupMembership(storage.DB, groupID, userID); err != nil {
		utils.HandleAppError(ctx, utils.NotAMember("you are not a member of this group"))
		return
	}

	q := storage.DB.Where("group_id = ?", groupID).
		Preload("Sender").
		Preload("Reads")
	if includeReplies {
		q = q.Preload("Parent").Preload("Parent.Sender")
	}
	if cursor > 0 {
		q = q.Where("id < ?", cursor)
	}

	var msgs []models.GroupMessage
	if err := q.Order("id DESC").Limit(limit).Find(&msgs).Error; err != nil {
		utils.HandleAppError(ctx, err)
		return
	}
	// reverse to chronological
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	views := make([]MessageView, 0, len(msgs))
	for i := range msgs {
		views = append(views, groupMessageView(&msgs[i], includeReplies))
	}

	nextCursor := 0
	if len(msgs) > 0 {
		nextCursor = int(msgs[0].ID)
	}
	ctx.JSON(iris.Map{"messages": views, "nextCursor": nextCursor})
}

// MarkGroupRead stamps read receipts for every message in the group the
// caller has not yet read, in one batch.
func MarkGroupRead(ctx iris.Context) {
	userID := utils.ActorID(ctx)
	groupID, err := ctx.Params().GetUint("groupID")
	if err != nil {
		ctx.StopWithStatus(iris.StatusBadRequest)
		return
	}

	if _, err := groupMembership(storage.DB, groupID, userID); err != nil {
		utils.HandleAppError(ctx, utils.NotAMember("you are not a member of this group"))
		return
	}

	if err := services.MarkGroupRead(storage.DB, userID, groupID); err != nil {
		utils.HandleAppError(ctx, err)
		return
	}
	ctx.JSON(iris.Map{"success": true})
}

// GetGroupUnread returns the caller's unread message count for the group.
func GetGroupUnread(ctx iris.Context) {
	userID := utils.ActorID(ctx)
	groupID, err := ctx.Params().GetUint("groupID")
	if err != nil {
		ctx.StopWithStatus(iris.StatusBadRequest)
		return
	}

	if _, err := groupMembership(storage.DB, groupID, userID); err != nil {
		utils.HandleAppError(ctx, utils.NotAMember("you are not a member of this group"))
		return
	}

	count, err := (services.GroupReadTracker{}).UnreadCount(storage.DB, userID, groupID)
	if err != nil {
		utils.HandleAppError(ctx, err)
		return
	}
	ctx.JSON(iris.Map{"unread": count})
}

type EditGroupMessageInput struct {
	Content string `json:"content" validate:"required,lt=5000"`
}

// EditGroupMessage rewrites a group message within the edit window.
// System messages and media-only messages are not editable.
func EditGroupMessage(ctx iris.Context) {
	var req EditGroupMessageInput
	if err := ctx.ReadJSON(&req); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	actorID := utils.ActorID(ctx)
	groupID, err := ctx.Params().GetUint("groupID")
	if err != nil {
		ctx.StopWithStatus(iris.StatusBadRequest)
		return
	}
	messageID, err := ctx.Params().GetUint("messageID")
	if err != nil {
		ctx.StopWithStatus(iris.StatusBadRequest)
		return
	}

	var message models.GroupMessage
	if err := storage.DB.Preload("Sender").Where("id = ? AND group_id = ?", messageID, groupID).
		First(&message).Error; err != nil {
		utils.HandleAppError(ctx, utils.NotFound("message not found"))
		return
	}

	if message.IsSystem() {
		utils.HandleAppError(ctx, utils.PermissionDenied("system messages cannot be edited"))
		return
	}
	if *message.SenderID != actorID {
		utils.HandleAppError(ctx, utils.PermissionDenied("only the sender can edit a message"))
		return
	}
	if message.Content == "" {
		utils.HandleAppError(ctx, utils.Validation("media-only messages are not editable"))
		return
	}

	now := time.Now()
	if !services.CanEdit(message.CreatedAt, now) {
		utils.HandleAppError(ctx, utils.EditWindowExpired("the edit window for this message has closed"))
		return
	}

	newContent := strings.TrimSpace(req.Content)
	if newContent == "" {
		utils.HandleAppError(ctx, utils.Validation("message content cannot be empty"))
		return
	}
	if newContent == strings.TrimSpace(message.Content) {
		ctx.JSON(groupMessageView(&message, false))
		return
	}

	if err := storage.DB.Model(&message).Updates(map[string]interface{}{
		"content":   newContent,
		"edited":    true,
		"edited_at": &now,
	}).Error; err != nil {
		utils.HandleAppError(ctx, err)
		return
	}

	storage.DB.Preload("Sender").Preload("Reads").First(&message, message.ID)
	ctx.JSON(groupMessageView(&message, false))
}

// DeleteGroupMessage hard-removes a group message and its receipts.
// Sender-only; system messages are untouchable.
func DeleteGroupMessage(ctx iris.Context) {
	actorID := utils.ActorID(ctx)
	groupID, err := ctx.Params().GetUint("groupID")
	if err != nil {
		ctx.StopWithStatus(iris.StatusBadRequest)
		return
	}
	messageID, err := ctx.Params().GetUint("messageID")
	if err != nil {
		ctx.StopWithStatus(iris.StatusBadRequest)
		return
	}

	var message models.GroupMessage
	if err := storage.DB.Where("id = ? AND group_id = ?", messageID, groupID).
		First(&message).Error; err != nil {
		utils.HandleAppError(ctx, utils.NotFound("message not found"))
		return
	}

	if message.IsSystem() || *message.SenderID != actorID {
		utils.HandleAppError(ctx, utils.PermissionDenied("only the sender can delete a message"))
		return
	}

	err = storage.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("message_id = ?", message.ID).Delete(&models.GroupMessageRead{}).Error; err != nil {
			return err
		}
		return tx.Delete(&message).Error
	})
	if err != nil {
		utils.HandleAppError(ctx, err)
		return
	}
	ctx.JSON(iris.Map{"success": true})
}

// Typing sets a short-lived typing indicator key in Redis for 5 seconds.
func Typing(ctx iris.Context) {
	userID := utils.ActorID(ctx)
	groupID, err := ctx.Params().GetUint("groupID")
	if err != nil {
		ctx.StopWithStatus(iris.StatusBadRequest)
		return
	}

	if _, err := groupMembership(storage.DB, groupID, userID); err != nil {
		utils.HandleAppError(ctx, utils.NotAMember("you are not a member of this group"))
		return
	}

	key := typingKey(groupID, userID)
	storage.Redis.Set(ctx, key, "1", 5*time.Second)
	ctx.JSON(iris.Map{"success": true})
}

// ListTyping lists which other members currently hold a typing key.
func ListTyping(ctx iris.Context) {
	userID := utils.ActorID(ctx)
	groupID, err := ctx.Params().GetUint("groupID")
	if err != nil {
		ctx.StopWithStatus(iris.StatusBadRequest)
		return
	}

	var members []models.GroupChatMember
	if err := storage.DB.Where("group_id = ?", groupID).Preload("User").Find(&members).Error; err != nil {
		utils.HandleAppError(ctx, err)
		return
	}

	isMember := false
	typing := []iris.Map{}
	for _, m := range members {
		if m.UserID == userID {
			isMember = true
			continue
		}
		key := typingKey(groupID, m.UserID)
		if val, err := storage.Redis.Get(ctx, key).Result(); err == nil && val == "1" {
			typing = append(typing, iris.Map{
				"userID": m.UserID,
				"name":   m.User.DisplayName(),
			})
		}
	}
	if !isMember {
		utils.HandleAppError(ctx, utils.NotAMember("you are not a member of this group"))
		return
	}
	ctx.JSON(iris.Map{"success": true, "typing": typing})
}

func typingKey(groupID uint, userID uint) string {
	return fmt.Sprintf("typing:grp:%d:user:%d", groupID, userID)
}
