package routes

import (
	"strings"
	"time"

	"github.com/DkshLuvsDucks/FCS-Project-Fixed-sub000/models"
	"github.com/DkshLuvsDucks/FCS-Project-Fixed-sub000/services"
	"github.com/DkshLuvsDucks/FCS-Project-Fixed-sub000/storage"
	"github.com/DkshLuvsDucks/FCS-Project-Fixed-sub000/utils"

	"github.com/kataras/iris/v12"
)

type EditMessageInput struct {
	Content string `json:"content" validate:"required,lt=5000"`
}

// EditMessage rewrites a direct message's content within the edit window.
// Editing identical content is a no-op that returns the current state.
func EditMessage(ctx iris.Context) {
	var req EditMessageInput
	if err := ctx.ReadJSON(&req); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	actorID := utils.ActorID(ctx)
	messageID, err := ctx.Params().GetUint("id")
	if err != nil {
		ctx.StopWithStatus(iris.StatusBadRequest)
		return
	}

	var message models.Message
	if err := storage.DB.Preload("Sender").First(&message, messageID).Error; err != nil {
		utils.HandleAppError(ctx, utils.NotFound("message not found"))
		return
	}

	if message.SenderID != actorID {
		utils.HandleAppError(ctx, utils.PermissionDenied("only the sender can edit a message"))
		return
	}
	if !message.HasText() {
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

	current, err := services.Codec.Decrypt(services.Envelope{
		Ciphertext: message.Ciphertext,
		IV:         message.IV,
		Algorithm:  message.Algorithm,
		AuthTag:    message.AuthTag,
		MAC:        message.MAC,
	}, message.SenderID, message.ReceiverID)
	if err != nil {
		utils.HandleAppError(ctx, err)
		return
	}

	if newContent == strings.TrimSpace(current) {
		// nothing changed; no write, edited flag untouched
		ctx.JSON(directMessageView(&message, false))
		return
	}

	envelope, err := services.Codec.Encrypt(newContent, message.SenderID, message.ReceiverID)
	if err != nil {
		utils.HandleAppError(ctx, err)
		return
	}

	updates := map[string]interface{}{
		"ciphertext": envelope.Ciphertext,
		"iv":         envelope.IV,
		"algorithm":  envelope.Algorithm,
		"auth_tag":   envelope.AuthTag,
		"mac":        envelope.MAC,
		"edited":     true,
		"edited_at":  &now,
	}
	if err := storage.DB.Model(&message).Updates(updates).Error; err != nil {
		utils.HandleAppError(ctx, err)
		return
	}

	storage.DB.Preload("Sender").First(&message, message.ID)
	ctx.JSON(directMessageView(&message, false))
}

// DeleteMessage removes a direct message. Scope "self" hides it for the
// caller only; scope "everyone" is sender-only and removes it from both
// views.
func DeleteMessage(ctx iris.Context) {
	actorID := utils.ActorID(ctx)
	messageID, err := ctx.Params().GetUint("id")
	if err != nil {
		ctx.StopWithStatus(iris.StatusBadRequest)
		return
	}
	scope := ctx.URLParamDefault("scope", "self")
	if scope != "self" && scope != "everyone" {
		utils.HandleAppError(ctx, utils.Validation("scope must be self or everyone"))
		return
	}

	var message models.Message
	if err := storage.DB.First(&message, messageID).Error; err != nil {
		utils.HandleAppError(ctx, utils.NotFound("message not found"))
		return
	}

	// non-participants and sides that already hid the message see no message
	if !message.VisibleTo(actorID) {
		utils.HandleAppError(ctx, utils.NotFound("message not found"))
		return
	}

	if scope == "everyone" {
		if actorID != message.SenderID {
			utils.HandleAppError(ctx, utils.PermissionDenied("only the sender can delete for everyone"))
			return
		}
		if err := storage.DB.Unscoped().Delete(&message).Error; err != nil {
			utils.HandleAppError(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"success": true})
		return
	}

	column := "deleted_for_receiver"
	if actorID == message.SenderID {
		column = "deleted_for_sender"
	}
	if err := storage.DB.Model(&message).Update(column, true).Error; err != nil {
		utils.HandleAppError(ctx, err)
		return
	}
	ctx.JSON(iris.Map{"success": true})
}
