package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/DkshLuvsDucks/FCS-Project-Fixed-sub000/models"
	"github.com/DkshLuvsDucks/FCS-Project-Fixed-sub000/services"
	"github.com/DkshLuvsDucks/FCS-Project-Fixed-sub000/storage"
	"github.com/DkshLuvsDucks/FCS-Project-Fixed-sub000/utils"

	"github.com/go-playground/validator/v10"
	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB points storage.DB at a fresh in-memory SQLite database.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	// a single connection keeps every session on the same in-memory DB
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.User{},
		&models.Conversation{},
		&models.Message{},
		&models.GroupChat{},
		&models.GroupChatMember{},
		&models.GroupMessage{},
		&models.GroupMessageRead{},
		&models.Notification{},
		&models.AuditLog{},
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	storage.DB = db
	return db
}

// buildTestApp creates a minimal Iris app with the messaging routes and JWT verifier.
func buildTestApp(t *testing.T) *iris.Application {
	t.Helper()

	os.Setenv("ACCESS_TOKEN_SECRET", "testsecret")
	if services.Codec == nil {
		codec, err := services.NewMessageCodec(bytes.Repeat([]byte{0x42}, 32))
		if err != nil {
			t.Fatalf("failed to build test codec: %v", err)
		}
		services.Codec = codec
	}

	app := iris.New()
	app.Validator = validator.New()

	accessTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("ACCESS_TOKEN_SECRET")))
	accessTokenVerifierMiddleware := accessTokenVerifier.Verify(func() interface{} {
		return new(utils.AccessToken)
	})

	conversations := app.Party("/api/conversations", accessTokenVerifierMiddleware)
	{
		conversations.Post("/messages", CreateConversationMessage)
		conversations.Post("/messages/read", MarkMessagesRead)
		conversations.Get("/unread", ListConversationUnread)
		conversations.Get("/{otherUserID:uint}/messages", ListConversationMessages)
	}

	messages := app.Party("/api/messages", accessTokenVerifierMiddleware)
	{
		messages.Patch("/{id:uint}", EditMessage)
		messages.Delete("/{id:uint}", DeleteMessage)
	}

	groups := app.Party("/api/groups", accessTokenVerifierMiddleware)
	{
		groups.Post("/", CreateGroup)
		groups.Get("/", ListMyGroups)
		groups.Patch("/{groupID:uint}", UpdateGroupMeta)
		groups.Post("/{groupID:uint}/end", EndGroup)
		groups.Get("/{groupID:uint}/members", GetGroupMembers)
		groups.Post("/{groupID:uint}/members", AddGroupMember)
		groups.Delete("/{groupID:uint}/members/{userID:uint}", RemoveGroupMember)
		groups.Patch("/{groupID:uint}/members/{userID:uint}/admin", SetGroupAdmin)
		groups.Get("/{groupID:uint}/messages", ListGroupMessages)
		groups.Post("/{groupID:uint}/messages", SendGroupMessage)
		groups.Patch("/{groupID:uint}/messages/{messageID:uint}", EditGroupMessage)
		groups.Delete("/{groupID:uint}/messages/{messageID:uint}", DeleteGroupMessage)
		groups.Post("/{groupID:uint}/read", MarkGroupRead)
		groups.Get("/{groupID:uint}/unread", GetGroupUnread)
	}

	if err := app.Build(); err != nil {
		t.Fatalf("failed to build test app: %v", err)
	}
	return app
}

// signTestToken returns a signed JWT for the given user id.
func signTestToken(t *testing.T, userID uint) string {
	t.Helper()
	token, err := utils.CreateAccessToken(userID, "user")
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return token
}

func createTestUser(t *testing.T, db *gorm.DB, username string) models.User {
	t.Helper()
	user := models.User{Username: username}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return user
}

// doJSON performs an authenticated JSON request against the test app.
func doJSON(t *testing.T, app *iris.Application, method, path string, userID uint, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, userID))
	resp := httptest.NewRecorder()
	app.ServeHTTP(resp, req)
	return resp
}

func decodeBody(t *testing.T, resp *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(resp.Body.Bytes(), out); err != nil {
		t.Fatalf("failed to decode response %q: %v", resp.Body.String(), err)
	}
}

func errorCodeOf(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	decodeBody(t, resp, &body)
	return body.Error
}

// makeGroup creates a group through the API and returns its id.
func makeGroup(t *testing.T, app *iris.Application, ownerID uint, name string, memberIDs []uint) uint {
	t.Helper()
	resp := doJSON(t, app, http.MethodPost, "/api/groups", ownerID, iris.Map{
		"name":      name,
		"memberIDs": memberIDs,
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 creating group, got %d: %s", resp.Code, resp.Body.String())
	}
	var body struct {
		GroupID uint `json:"groupID"`
	}
	decodeBody(t, resp, &body)
	return body.GroupID
}
