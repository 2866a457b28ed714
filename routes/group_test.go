package routes

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/DkshLuvsDucks/FCS-Project-Fixed-sub000/models"

	"github.com/kataras/iris/v12"
	"gorm.io/gorm"
)

func countSystemMessages(t *testing.T, db *gorm.DB, groupID uint, content string) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&models.GroupMessage{}).
		Where("group_id = ? AND sender_id IS NULL AND content = ?", groupID, content).
		Count(&count).Error; err != nil {
		t.Fatalf("failed to count system messages: %v", err)
	}
	return count
}

func TestCreateGroupValidation(t *testing.T) {
	db := setupTestDB(t)
	app := buildTestApp(t)
	owner := createTestUser(t, db, "owner")
	member := createTestUser(t, db, "member")

	resp := doJSON(t, app, http.MethodPost, "/api/groups", owner.ID, iris.Map{
		"name":      "ab",
		"memberIDs": []uint{member.ID},
	})
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for short name, got %d", resp.Code)
	}

	resp = doJSON(t, app, http.MethodPost, "/api/groups", owner.ID, iris.Map{
		"name":      "weekend plans",
		"memberIDs": []uint{9999},
	})
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown member, got %d", resp.Code)
	}
}

func TestCreateGroupInsertsOwnerAndMembers(t *testing.T) {
	db := setupTestDB(t)
	app := buildTestApp(t)
	owner := createTestUser(t, db, "owner")
	a := createTestUser(t, db, "alice")
	b := createTestUser(t, db, "bob")

	groupID := makeGroup(t, app, owner.ID, "weekend plans", []uint{a.ID, b.ID})

	var members []models.GroupChatMember
	if err := db.Where("group_id = ?", groupID).Find(&members).Error; err != nil {
		t.Fatalf("failed to load members: %v", err)
	}
	if len(members) != 3 {
		t.Fatalf("expected 3 members, got %d", len(members))
	}
	owners := 0
	for _, m := range members {
		if m.IsOwner {
			owners++
			if !m.IsAdmin {
				t.Fatal("owner must also be admin")
			}
			if m.UserID != owner.ID {
				t.Fatalf("wrong owner member: %d", m.UserID)
			}
		}
	}
	if owners != 1 {
		t.Fatalf("expected exactly one owner, got %d", owners)
	}
}

func TestOwnerLeavesEarliestAdminSucceeds(t *testing.T) {
	db := setupTestDB(t)
	app := buildTestApp(t)
	owner := createTestUser(t, db, "olivia")
	a := createTestUser(t, db, "alice")
	b := createTestUser(t, db, "bob")

	groupID := makeGroup(t, app, owner.ID, "weekend plans", []uint{a.ID, b.ID})

	// promote alice so an admin remains when the owner leaves
	resp := doJSON(t, app, http.MethodPatch,
		fmt.Sprintf("/api/groups/%d/members/%d/admin", groupID, a.ID), owner.ID,
		iris.Map{"isAdmin": true})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 promoting admin, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = doJSON(t, app, http.MethodDelete,
		fmt.Sprintf("/api/groups/%d/members/%d", groupID, owner.ID), owner.ID, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 when owner leaves, got %d: %s", resp.Code, resp.Body.String())
	}

	var group models.GroupChat
	if err := db.First(&group, groupID).Error; err != nil {
		t.Fatalf("failed to reload group: %v", err)
	}
	if group.OwnerID != a.ID {
		t.Fatalf("expected alice (%d) as new owner, got %d", a.ID, group.OwnerID)
	}

	var successor models.GroupChatMember
	if err := db.Where("group_id = ? AND user_id = ?", groupID, a.ID).First(&successor).Error; err != nil {
		t.Fatalf("failed to load successor membership: %v", err)
	}
	if !successor.IsOwner || !successor.IsAdmin {
		t.Fatalf("successor flags wrong: owner=%v admin=%v", successor.IsOwner, successor.IsAdmin)
	}

	if countSystemMessages(t, db, groupID, "alice is now the owner of the group") != 1 {
		t.Fatal("expected ownership system message")
	}
}

func TestOwnerLeavesPlainMemberPromoted(t *testing.T) {
	db := setupTestDB(t)
	app := buildTestApp(t)
	owner := createTestUser(t, db, "olivia")
	a := createTestUser(t, db, "alice")

	groupID := makeGroup(t, app, owner.ID, "weekend plans", []uint{a.ID})

	resp := doJSON(t, app, http.MethodDelete,
		fmt.Sprintf("/api/groups/%d/members/%d", groupID, owner.ID), owner.ID, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 when owner leaves, got %d: %s", resp.Code, resp.Body.String())
	}

	var successor models.GroupChatMember
	if err := db.Where("group_id = ? AND user_id = ?", groupID, a.ID).First(&successor).Error; err != nil {
		t.Fatalf("failed to load successor membership: %v", err)
	}
	if !successor.IsOwner || !successor.IsAdmin {
		t.Fatal("plain member should be promoted to owner and admin")
	}
}

func TestOwnerLeavesEmptyGroupOrphaned(t *testing.T) {
	db := setupTestDB(t)
	app := buildTestApp(t)
	owner := createTestUser(t, db, "olivia")
	a := createTestUser(t, db, "alice")

	groupID := makeGroup(t, app, owner.ID, "weekend plans", []uint{a.ID})

	// alice leaves first, then the owner leaves an empty group
	resp := doJSON(t, app, http.MethodDelete,
		fmt.Sprintf("/api/groups/%d/members/%d", groupID, a.ID), a.ID, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 when alice leaves, got %d", resp.Code)
	}
	resp = doJSON(t, app, http.MethodDelete,
		fmt.Sprintf("/api/groups/%d/members/%d", groupID, owner.ID), owner.ID, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 when owner leaves, got %d", resp.Code)
	}

	var group models.GroupChat
	if err := db.First(&group, groupID).Error; err != nil {
		t.Fatalf("group should survive orphaning: %v", err)
	}
	// the old owner id dangles; that is the accepted terminal state
	if group.OwnerID != owner.ID {
		t.Fatalf("orphaned group should keep old owner id, got %d", group.OwnerID)
	}

	var audits int64
	db.Model(&models.AuditLog{}).Where("action = ? AND resource_id = ?", "group_orphaned", groupID).Count(&audits)
	if audits != 1 {
		t.Fatalf("expected one group_orphaned audit row, got %d", audits)
	}
}

func TestRemoveMemberPermissionLattice(t *testing.T) {
	db := setupTestDB(t)
	app := buildTestApp(t)
	owner := createTestUser(t, db, "olivia")
	a := createTestUser(t, db, "alice")
	b := createTestUser(t, db, "bob")

	groupID := makeGroup(t, app, owner.ID, "weekend plans", []uint{a.ID, b.ID})

	// plain member removing another member is forbidden
	resp := doJSON(t, app, http.MethodDelete,
		fmt.Sprintf("/api/groups/%d/members/%d", groupID, b.ID), a.ID, nil)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}

	// the same member removing themselves succeeds
	resp = doJSON(t, app, http.MethodDelete,
		fmt.Sprintf("/api/groups/%d/members/%d", groupID, a.ID), a.ID, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for self-leave, got %d", resp.Code)
	}

	if countSystemMessages(t, db, groupID, "alice left the group") != 1 {
		t.Fatal("expected leave system message")
	}

	// removing an already-removed member reports not found
	resp = doJSON(t, app, http.MethodDelete,
		fmt.Sprintf("/api/groups/%d/members/%d", groupID, a.ID), owner.ID, nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for second removal, got %d", resp.Code)
	}
}

func TestAddMemberCapacityAndDuplicates(t *testing.T) {
	db := setupTestDB(t)
	app := buildTestApp(t)
	owner := createTestUser(t, db, "olivia")

	memberIDs := make([]uint, 0, 7)
	for i := 0; i < 7; i++ {
		u := createTestUser(t, db, fmt.Sprintf("member%d", i))
		memberIDs = append(memberIDs, u.ID)
	}
	groupID := makeGroup(t, app, owner.ID, "weekend plans", memberIDs)

	extra := createTestUser(t, db, "extra")
	resp := doJSON(t, app, http.MethodPost,
		fmt.Sprintf("/api/groups/%d/members", groupID), owner.ID, iris.Map{"userID": extra.ID})
	if resp.Code != http.StatusConflict || errorCodeOf(t, resp) != "capacity_exceeded" {
		t.Fatalf("expected capacity_exceeded, got %d %s", resp.Code, resp.Body.String())
	}

	resp = doJSON(t, app, http.MethodPost,
		fmt.Sprintf("/api/groups/%d/members", groupID), owner.ID, iris.Map{"userID": memberIDs[0]})
	if resp.Code != http.StatusConflict || errorCodeOf(t, resp) != "already_member" {
		t.Fatalf("expected already_member, got %d %s", resp.Code, resp.Body.String())
	}

	// a plain member cannot add
	outsider := createTestUser(t, db, "outsider")
	resp = doJSON(t, app, http.MethodPost,
		fmt.Sprintf("/api/groups/%d/members", groupID), memberIDs[0], iris.Map{"userID": outsider.ID})
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin add, got %d", resp.Code)
	}
}

func TestSetAdminRules(t *testing.T) {
	db := setupTestDB(t)
	app := buildTestApp(t)
	owner := createTestUser(t, db, "olivia")
	a := createTestUser(t, db, "alice")
	b := createTestUser(t, db, "bob")

	groupID := makeGroup(t, app, owner.ID, "weekend plans", []uint{a.ID, b.ID})

	// non-owner cannot change roles
	resp := doJSON(t, app, http.MethodPatch,
		fmt.Sprintf("/api/groups/%d/members/%d/admin", groupID, b.ID), a.ID, iris.Map{"isAdmin": true})
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}

	// the owner's own admin flag is immutable
	resp = doJSON(t, app, http.MethodPatch,
		fmt.Sprintf("/api/groups/%d/members/%d/admin", groupID, owner.ID), owner.ID, iris.Map{"isAdmin": false})
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for owner target, got %d", resp.Code)
	}

	resp = doJSON(t, app, http.MethodPatch,
		fmt.Sprintf("/api/groups/%d/members/%d/admin", groupID, a.ID), owner.ID, iris.Map{"isAdmin": true})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if countSystemMessages(t, db, groupID, "alice is now an admin") != 1 {
		t.Fatal("expected promotion system message")
	}

	// re-applying the same flag is a no-op with no second system message
	resp = doJSON(t, app, http.MethodPatch,
		fmt.Sprintf("/api/groups/%d/members/%d/admin", groupID, a.ID), owner.ID, iris.Map{"isAdmin": true})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if countSystemMessages(t, db, groupID, "alice is now an admin") != 1 {
		t.Fatal("no-op toggle must not emit another system message")
	}
}

func TestUpdateGroupMetaPerFieldMessages(t *testing.T) {
	db := setupTestDB(t)
	app := buildTestApp(t)
	owner := createTestUser(t, db, "olivia")
	a := createTestUser(t, db, "alice")

	groupID := makeGroup(t, app, owner.ID, "weekend plans", []uint{a.ID})

	resp := doJSON(t, app, http.MethodPatch,
		fmt.Sprintf("/api/groups/%d", groupID), owner.ID,
		iris.Map{"name": "holiday plans"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if countSystemMessages(t, db, groupID, "olivia changed the group name to holiday plans") != 1 {
		t.Fatal("expected rename system message")
	}

	// unchanged name emits nothing
	resp = doJSON(t, app, http.MethodPatch,
		fmt.Sprintf("/api/groups/%d", groupID), owner.ID,
		iris.Map{"name": "holiday plans"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if countSystemMessages(t, db, groupID, "olivia changed the group name to holiday plans") != 1 {
		t.Fatal("unchanged field must not emit another system message")
	}

	// a plain member cannot update metadata
	resp = doJSON(t, app, http.MethodPatch,
		fmt.Sprintf("/api/groups/%d", groupID), a.ID,
		iris.Map{"name": "hijacked"})
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
}

func TestEndGroupBlocksSends(t *testing.T) {
	db := setupTestDB(t)
	app := buildTestApp(t)
	owner := createTestUser(t, db, "olivia")
	a := createTestUser(t, db, "alice")

	groupID := makeGroup(t, app, owner.ID, "weekend plans", []uint{a.ID})

	// only the owner may end
	resp := doJSON(t, app, http.MethodPost,
		fmt.Sprintf("/api/groups/%d/end", groupID), a.ID, nil)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}

	resp = doJSON(t, app, http.MethodPost,
		fmt.Sprintf("/api/groups/%d/end", groupID), owner.ID, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var before int64
	db.Model(&models.GroupMessage{}).Where("group_id = ?", groupID).Count(&before)

	resp = doJSON(t, app, http.MethodPost,
		fmt.Sprintf("/api/groups/%d/messages", groupID), a.ID, iris.Map{"content": "anyone here?"})
	if resp.Code != http.StatusConflict || errorCodeOf(t, resp) != "group_ended" {
		t.Fatalf("expected group_ended, got %d %s", resp.Code, resp.Body.String())
	}

	var after int64
	db.Model(&models.GroupMessage{}).Where("group_id = ?", groupID).Count(&after)
	if before != after {
		t.Fatal("send to ended group must not write a row")
	}

	// ending twice reports group_ended
	resp = doJSON(t, app, http.MethodPost,
		fmt.Sprintf("/api/groups/%d/end", groupID), owner.ID, nil)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 for double end, got %d", resp.Code)
	}
}

func TestOwnerSuccessionPrefersEarliestJoin(t *testing.T) {
	db := setupTestDB(t)
	app := buildTestApp(t)
	owner := createTestUser(t, db, "olivia")
	a := createTestUser(t, db, "alice")
	b := createTestUser(t, db, "bob")

	groupID := makeGroup(t, app, owner.ID, "weekend plans", []uint{a.ID, b.ID})

	// stagger join times so bob is clearly the later joiner
	db.Model(&models.GroupChatMember{}).
		Where("group_id = ? AND user_id = ?", groupID, b.ID).
		Update("created_at", time.Now().Add(time.Hour))

	resp := doJSON(t, app, http.MethodDelete,
		fmt.Sprintf("/api/groups/%d/members/%d", groupID, owner.ID), owner.ID, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var group models.GroupChat
	db.First(&group, groupID)
	if group.OwnerID != a.ID {
		t.Fatalf("expected earliest joiner alice (%d) as owner, got %d", a.ID, group.OwnerID)
	}
}

func TestGroupNameBoundsCountCharacters(t *testing.T) {
	db := setupTestDB(t)
	app := buildTestApp(t)
	owner := createTestUser(t, db, "owner")
	alice := createTestUser(t, db, "alice")

	// two characters in four bytes is still too short
	resp := doJSON(t, app, http.MethodPost, "/api/groups", owner.ID, iris.Map{
		"name":      "éé",
		"memberIDs": []uint{alice.ID},
	})
	if resp.Code != http.StatusUnprocessableEntity || errorCodeOf(t, resp) != "validation_error" {
		t.Fatalf("expected validation_error for a 2-rune name, got %d %s", resp.Code, resp.Body.String())
	}

	// twenty characters in sixty bytes is within the bound
	name := strings.Repeat("あ", 20)
	groupID := makeGroup(t, app, owner.ID, name, []uint{alice.ID})

	var group models.GroupChat
	db.First(&group, groupID)
	if group.Name != name {
		t.Fatalf("expected multibyte name stored intact, got %q", group.Name)
	}
}

func TestCreateGroupInviteeBounds(t *testing.T) {
	db := setupTestDB(t)
	app := buildTestApp(t)
	owner := createTestUser(t, db, "owner")

	resp := doJSON(t, app, http.MethodPost, "/api/groups", owner.ID, iris.Map{
		"name":      "book club",
		"memberIDs": []uint{},
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero invitees, got %d", resp.Code)
	}

	var ids []uint
	for i := 0; i < 8; i++ {
		u := createTestUser(t, db, fmt.Sprintf("member%d", i))
		ids = append(ids, u.ID)
	}
	resp = doJSON(t, app, http.MethodPost, "/api/groups", owner.ID, iris.Map{
		"name":      "book club",
		"memberIDs": ids,
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for eight invitees, got %d", resp.Code)
	}

	var groups int64
	db.Model(&models.GroupChat{}).Count(&groups)
	if groups != 0 {
		t.Fatalf("expected no group rows after rejected creations, got %d", groups)
	}
}
