package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/DkshLuvsDucks/FCS-Project-Fixed-sub000/models"
	"github.com/DkshLuvsDucks/FCS-Project-Fixed-sub000/storage"
)

const expoPushURL = "https://exp.host/--/api/v2/push/send"

// NotificationService handles push notification delivery and the persisted
// in-app notification feed.
type NotificationService struct{}

func NewNotificationService() *NotificationService {
	return &NotificationService{}
}

type expoPushMessage struct {
	To    []string          `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
	Sound string            `json:"sound"`
}

// getUserPushTokens retrieves all push tokens for a user, honoring their
// notification preferences.
func (ns *NotificationService) getUserPushTokens(userID uint) ([]string, error) {
	var user models.User
	if err := storage.DB.First(&user, userID).Error; err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	if user.AllowsNotifications == nil || !*user.AllowsNotifications || user.PushTokens == nil {
		return nil, fmt.Errorf("user %d has notifications disabled or no tokens", userID)
	}

	var tokens []string
	if err := json.Unmarshal(user.PushTokens, &tokens); err != nil {
		return nil, fmt.Errorf("failed to unmarshal push tokens: %w", err)
	}
	return tokens, nil
}

// SendNotificationToUser pushes to all of a user's devices and persists the
// in-app notification row.
func (ns *NotificationService) SendNotificationToUser(userID uint, notifType, title, body, refType string, refID uint) error {
	record := models.Notification{
		UserID:  userID,
		Type:    notifType,
		Title:   title,
		Message: body,
		RefType: refType,
		RefID:   refID,
	}
	if err := storage.DB.Create(&record).Error; err != nil {
		log.Printf("failed to persist notification for user %d: %v", userID, err)
	}

	tokens, err := ns.getUserPushTokens(userID)
	if err != nil {
		log.Printf("skipping push for user %d: %v", userID, err)
		return err
	}

	payload := expoPushMessage{
		To:    tokens,
		Title: title,
		Body:  body,
		Data:  map[string]string{"type": notifType, "refType": refType, "refID": fmt.Sprintf("%d", refID)},
		Sound: "default",
	}
	return ns.post(payload)
}

// SendMessageNotification notifies the receiver of a new direct message.
// Content is never included; the envelope stays sealed outside the
// conversation view.
func (ns *NotificationService) SendMessageNotification(receiverID uint, senderName string, conversationID uint) {
	title := "New message"
	body := fmt.Sprintf("%s sent you a message", senderName)
	if err := ns.SendNotificationToUser(receiverID, "new_message", title, body, "conversation", conversationID); err != nil {
		log.Printf("message notification to user %d failed: %v", receiverID, err)
	}
}

// SendGroupNotification notifies a user about group membership changes.
func (ns *NotificationService) SendGroupNotification(userID uint, title, body string, groupID uint) {
	if err := ns.SendNotificationToUser(userID, "group_update", title, body, "group", groupID); err != nil {
		log.Printf("group notification to user %d failed: %v", userID, err)
	}
}

func (ns *NotificationService) post(payload expoPushMessage) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(expoPushURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("expo push returned status %d", resp.StatusCode)
	}
	return nil
}
