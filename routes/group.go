package routes

import (
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/DkshLuvsDucks/FCS-Project-Fixed-sub000/models"
	"github.com/DkshLuvsDucks/FCS-Project-Fixed-sub000/services"
	"github.com/DkshLuvsDucks/FCS-Project-Fixed-sub000/storage"
	"github.com/DkshLuvsDucks/FCS-Project-Fixed-sub000/utils"

	"github.com/kataras/iris/v12"
	"golang.org/x/exp/slices"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// emitSystemMessage appends a system-authored message to the group's
// timeline inside the caller's transaction.
func emitSystemMessage(tx *gorm.DB, groupID uint, content string) error {
	msg := models.GroupMessage{GroupID: groupID, Content: content}
	return tx.Create(&msg).Error
}

// lockGroup loads the group row FOR UPDATE so membership mutations and
// ownership transfers serialize per group. SQLite serializes writers on its
// own and rejects the FOR UPDATE syntax, so the clause is skipped there.
func lockGroup(tx *gorm.DB, groupID uint) (models.GroupChat, error) {
	q := tx
	if tx.Dialector.Name() != "sqlite" {
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var group models.GroupChat
	if err := q.First(&group, groupID).Error; err != nil {
		return group, utils.NotFound("group not found")
	}
	return group, nil
}

func groupMembership(tx *gorm.DB, groupID, userID uint) (models.GroupChatMember, error) {
	var membership models.GroupChatMember
	err := tx.Where("group_id = ? AND user_id = ?", groupID, userID).First(&membership).Error
	return membership, err
}

func validateGroupName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	// character bounds, not byte bounds
	if n := utf8.RuneCountInString(trimmed); n < 3 || n > 50 {
		return "", utils.Validation("group name must be between 3 and 50 characters")
	}
	return trimmed, nil
}

type CreateGroupInput struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description" validate:"lt=500"`
	MemberIDs   []uint `json:"memberIDs" validate:"required,min=1,max=7"`
}

// CreateGroup creates a group with the caller as owner and the given users
// as plain members, atomically.
func CreateGroup(ctx iris.Context) {
	var req CreateGroupInput
	if err := ctx.ReadJSON(&req); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	ownerID := utils.ActorID(ctx)

	name, err := validateGroupName(req.Name)
	if err != nil {
		utils.HandleAppError(ctx, err)
		return
	}

	// drop duplicates and the owner from the invite list
	memberIDs := make([]uint, 0, len(req.MemberIDs))
	for _, id := range req.MemberIDs {
		if id != ownerID && !slices.Contains(memberIDs, id) {
			memberIDs = append(memberIDs, id)
		}
	}
	if len(memberIDs) < 1 || len(memberIDs) > models.MaxGroupMembers-1 {
		utils.HandleAppError(ctx, utils.Validation(
			fmt.Sprintf("a group needs 1 to %d members besides the owner", models.MaxGroupMembers-1)))
		return
	}

	var userCount int64
	allIDs := append([]uint{ownerID}, memberIDs...)
	if err := storage.DB.Model(&models.User{}).Where("id IN ?", allIDs).Count(&userCount).Error; err != nil {
		utils.HandleAppError(ctx, err)
		return
	}
	if userCount != int64(len(allIDs)) {
		utils.HandleAppError(ctx, utils.NotFound("one or more invited users do not exist"))
		return
	}

	var owner models.User
	storage.DB.First(&owner, ownerID)

	group := models.GroupChat{
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		OwnerID:     ownerID,
	}
	err = storage.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&group).Error; err != nil {
			return err
		}
		members := []models.GroupChatMember{
			{GroupID: group.ID, UserID: ownerID, IsAdmin: true, IsOwner: true},
		}
		for _, id := range memberIDs {
			members = append(members, models.GroupChatMember{GroupID: group.ID, UserID: id})
		}
		if err := tx.Create(&members).Error; err != nil {
			return err
		}
		return emitSystemMessage(tx, group.ID, fmt.Sprintf("%s created the group", owner.DisplayName()))
	})
	if err != nil {
		utils.HandleAppError(ctx, err)
		return
	}

	notificationService := services.NewNotificationService()
	for _, id := range memberIDs {
		go notificationService.SendGroupNotification(id, "Added to a group",
			fmt.Sprintf("%s added you to %s", owner.DisplayName(), name), group.ID)
	}

	ctx.JSON(iris.Map{"groupID": group.ID})
}

type AddGroupMemberInput struct {
	UserID uint `json:"userID" validate:"required"`
}

// AddGroupMember inserts a plain member. Any admin may add; the group caps
// at MaxGroupMembers total.
func AddGroupMember(ctx iris.Context) {
	var req AddGroupMemberInput
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

	err = storage.DB.Transaction(func(tx *gorm.DB) error {
		group, err := lockGroup(tx, groupID)
		if err != nil {
			return err
		}
		if group.Ended {
			return utils.GroupEnded("this group has ended")
		}

		actor, err := groupMembership(tx, groupID, actorID)
		if err != nil || !actor.IsAdmin {
			return utils.PermissionDenied("only group admins can add members")
		}

		var memberCount int64
		if err := tx.Model(&models.GroupChatMember{}).Where("group_id = ?", groupID).Count(&memberCount).Error; err != nil {
			return err
		}
		if memberCount >= models.MaxGroupMembers {
			return utils.CapacityExceeded(fmt.Sprintf("group is full (%d members)", models.MaxGroupMembers))
		}

		var newMember models.User
		if err := tx.First(&newMember, req.UserID).Error; err != nil {
			return utils.NotFound("user not found")
		}

		if _, err := groupMembership(tx, groupID, req.UserID); err == nil {
			return utils.AlreadyMember("user already belongs to this group")
		}

		if err := tx.Create(&models.GroupChatMember{GroupID: groupID, UserID: req.UserID}).Error; err != nil {
			return err
		}

		var actorUser models.User
		tx.First(&actorUser, actorID)
		return emitSystemMessage(tx, groupID,
			fmt.Sprintf("%s was added by %s", newMember.DisplayName(), actorUser.DisplayName()))
	})
	if err != nil {
		utils.HandleAppError(ctx, err)
		return
	}

	ctx.JSON(iris.Map{"success": true})
}

// RemoveGroupMember deletes a membership row. Permission lattice: anyone may
// remove themselves, the owner may remove anyone, an admin may remove plain
// members. When the removed member owned the group, ownership succession
// runs inside the same transaction.
func RemoveGroupMember(ctx iris.Context) {
	actorID := utils.ActorID(ctx)
	groupID, err := ctx.Params().GetUint("groupID")
	if err != nil {
		ctx.StopWithStatus(iris.StatusBadRequest)
		return
	}
	targetID, err := ctx.Params().GetUint("userID")
	if err != nil {
		ctx.StopWithStatus(iris.StatusBadRequest)
		return
	}

	err = storage.DB.Transaction(func(tx *gorm.DB) error {
		group, err := lockGroup(tx, groupID)
		if err != nil {
			return err
		}

		actor, err := groupMembership(tx, groupID, actorID)
		if err != nil {
			return utils.NotAMember("you are not a member of this group")
		}

		target, err := groupMembership(tx, groupID, targetID)
		if err != nil {
			return utils.NotFound("member not found")
		}

		isSelf := actorID == targetID
		switch {
		case isSelf:
			// leaving is always allowed
		case actor.IsOwner:
			// the owner can remove anyone
		case actor.IsAdmin && !target.IsAdmin && !target.IsOwner:
			// admins can remove plain members
		default:
			return utils.PermissionDenied("you cannot remove this member")
		}

		// exactly one of two racing removals wins; the loser deleted nothing
		res := tx.Where("group_id = ? AND user_id = ?", groupID, targetID).Delete(&models.GroupChatMember{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.NotFound("member not found")
		}

		var targetUser models.User
		tx.First(&targetUser, targetID)
		if isSelf {
			if err := emitSystemMessage(tx, groupID, fmt.Sprintf("%s left the group", targetUser.DisplayName())); err != nil {
				return err
			}
		} else {
			var actorUser models.User
			tx.First(&actorUser, actorID)
			if err := emitSystemMessage(tx, groupID,
				fmt.Sprintf("%s was removed by %s", targetUser.DisplayName(), actorUser.DisplayName())); err != nil {
				return err
			}
		}

		if target.IsOwner && !group.Ended {
			return applySuccession(tx, &group, actorID)
		}
		return nil
	})
	if err != nil {
		utils.HandleAppError(ctx, err)
		return
	}

	ctx.JSON(iris.Map{"success": true})
}

// applySuccession promotes a successor after the owner's membership row is
// gone. An empty group stays orphaned; that is a valid terminal state.
func applySuccession(tx *gorm.DB, group *models.GroupChat, actorID uint) error {
	var remaining []models.GroupChatMember
	if err := tx.Where("group_id = ?", group.ID).Preload("User").Find(&remaining).Error; err != nil {
		return err
	}

	successor, ok := services.DecideSuccessor(remaining)
	if !ok {
		log.Printf("group %d is orphaned: no members remain after owner departure", group.ID)
		utils.Audit(tx, actorID, "group_orphaned", "group", group.ID,
			iris.Map{"ownerID": group.OwnerID}, nil)
		return nil
	}

	previousOwnerID := group.OwnerID
	if err := tx.Model(&models.GroupChatMember{}).Where("id = ?", successor.ID).
		Updates(map[string]interface{}{"is_owner": true, "is_admin": true}).Error; err != nil {
		return err
	}
	if err := tx.Model(group).Update("owner_id", successor.UserID).Error; err != nil {
		return err
	}

	utils.Audit(tx, actorID, "ownership_transferred", "group", group.ID,
		iris.Map{"ownerID": previousOwnerID}, iris.Map{"ownerID": successor.UserID})

	return emitSystemMessage(tx, group.ID,
		fmt.Sprintf("%s is now the owner of the group", successor.User.DisplayName()))
}

type SetGroupAdminInput struct {
	IsAdmin *bool `json:"isAdmin" validate:"required"`
}

// SetGroupAdmin toggles a member's admin flag. Owner-only; the owner's own
// admin status is immutable.
func SetGroupAdmin(ctx iris.Context) {
	var req SetGroupAdminInput
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
	targetID, err := ctx.Params().GetUint("userID")
	if err != nil {
		ctx.StopWithStatus(iris.StatusBadRequest)
		return
	}

	err = storage.DB.Transaction(func(tx *gorm.DB) error {
		group, err := lockGroup(tx, groupID)
		if err != nil {
			return err
		}
		if group.Ended {
			return utils.GroupEnded("this group has ended")
		}

		actor, err := groupMembership(tx, groupID, actorID)
		if err != nil || !actor.IsOwner {
			return utils.PermissionDenied("only the owner can change admin roles")
		}

		target, err := groupMembership(tx, groupID, targetID)
		if err != nil {
			return utils.NotFound("member not found")
		}
		if target.IsOwner {
			return utils.Validation("the owner's admin status is immutable")
		}

		if target.IsAdmin == *req.IsAdmin {
			return nil
		}

		if err := tx.Model(&target).Update("is_admin", *req.IsAdmin).Error; err != nil {
			return err
		}

		var targetUser models.User
		tx.First(&targetUser, targetID)
		text := fmt.Sprintf("%s is now an admin", targetUser.DisplayName())
		if !*req.IsAdmin {
			text = fmt.Sprintf("%s is no longer an admin", targetUser.DisplayName())
		}
		return emitSystemMessage(tx, groupID, text)
	})
	if err != nil {
		utils.HandleAppError(ctx, err)
		return
	}

	ctx.JSON(iris.Map{"success": true})
}

type UpdateGroupMetaInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description" validate:"omitempty,lt=500"`
}

// UpdateGroupMeta changes the group's name and description. Admin-only; a
// system message is emitted per field that actually changed.
func UpdateGroupMeta(ctx iris.Context) {
	var req UpdateGroupMetaInput
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

	err = storage.DB.Transaction(func(tx *gorm.DB) error {
		group, err := lockGroup(tx, groupID)
		if err != nil {
			return err
		}
		if group.Ended {
			return utils.GroupEnded("this group has ended")
		}

		actor, err := groupMembership(tx, groupID, actorID)
		if err != nil || !actor.IsAdmin {
			return utils.PermissionDenied("only group admins can update group details")
		}

		var actorUser models.User
		tx.First(&actorUser, actorID)

		updates := map[string]interface{}{}
		var systemMessages []string

		if req.Name != nil {
			name, err := validateGroupName(*req.Name)
			if err != nil {
				return err
			}
			if name != group.Name {
				updates["name"] = name
				systemMessages = append(systemMessages,
					fmt.Sprintf("%s changed the group name to %s", actorUser.DisplayName(), name))
			}
		}
		if req.Description != nil {
			description := strings.TrimSpace(*req.Description)
			if description != group.Description {
				updates["description"] = description
				systemMessages = append(systemMessages,
					fmt.Sprintf("%s updated the group description", actorUser.DisplayName()))
			}
		}

		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&group).Updates(updates).Error; err != nil {
			return err
		}
		for _, text := range systemMessages {
			if err := emitSystemMessage(tx, groupID, text); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		utils.HandleAppError(ctx, err)
		return
	}

	ctx.JSON(iris.Map{"success": true})
}

// EndGroup permanently closes the group. Owner-only; all subsequent sends
// fail. There is no un-end.
func EndGroup(ctx iris.Context) {
	actorID := utils.ActorID(ctx)
	groupID, err := ctx.Params().GetUint("groupID")
	if err != nil {
		ctx.StopWithStatus(iris.StatusBadRequest)
		return
	}

	err = storage.DB.Transaction(func(tx *gorm.DB) error {
		group, err := lockGroup(tx, groupID)
		if err != nil {
			return err
		}
		if group.Ended {
			return utils.GroupEnded("this group has already ended")
		}

		actor, err := groupMembership(tx, groupID, actorID)
		if err != nil || !actor.IsOwner {
			return utils.PermissionDenied("only the owner can end the group")
		}

		if err := tx.Model(&group).Update("ended", true).Error; err != nil {
			return err
		}

		var actorUser models.User
		tx.First(&actorUser, actorID)
		if err := emitSystemMessage(tx, groupID,
			fmt.Sprintf("%s ended the group", actorUser.DisplayName())); err != nil {
			return err
		}

		utils.Audit(tx, actorID, "group_ended", "group", groupID, nil, nil)
		return nil
	})
	if err != nil {
		utils.HandleAppError(ctx, err)
		return
	}

	ctx.JSON(iris.Map{"success": true})
}

// ListMyGroups returns the groups the caller belongs to, with members.
func ListMyGroups(ctx iris.Context) {
	userID := utils.ActorID(ctx)

	var groups []models.GroupChat
	if err := storage.DB.
		Joins("JOIN group_chat_members m ON m.group_id = group_chats.id").
		Where("m.user_id = ?", userID).
		Preload("Members").
		Preload("Members.User").
		Find(&groups).Error; err != nil {
		utils.HandleAppError(ctx, err)
		return
	}

	ctx.JSON(iris.Map{"groups": groups})
}

// GetGroupMembers returns the membership roster. Member-only.
func GetGroupMembers(ctx iris.Context) {
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

	var members []models.GroupChatMember
	if err := storage.DB.Where("group_id = ?", groupID).Preload("User").
		Order("created_at ASC, user_id ASC").Find(&members).Error; err != nil {
		utils.HandleAppError(ctx, err)
		return
	}
	ctx.JSON(iris.Map{"members": members})
}
