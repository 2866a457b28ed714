package models

import (
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User is owned by the auth service; the messaging core only reads it to
// resolve display names and push tokens.
type User struct {
	gorm.Model
	Username            string         `json:"username" gorm:"size:64;uniqueIndex"`
	FirstName           string         `json:"firstName"`
	LastName            string         `json:"lastName"`
	AvatarURL           string         `json:"avatarURL"`
	PushTokens          datatypes.JSON `json:"pushTokens"`
	AllowsNotifications *bool          `json:"allowsNotifications"`
}

func (u *User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	return u.FirstName + " " + u.LastName
}

// Custom JSON marshaling so PushTokens renders as a string array
func (u *User) MarshalJSON() ([]byte, error) {
	type Alias User
	aux := &struct {
		PushTokens []string `json:"pushTokens,omitempty"`
		*Alias
	}{
		PushTokens: []string{},
		Alias:      (*Alias)(u),
	}

	if u.PushTokens != nil {
		var tokens []string
		if err := json.Unmarshal(u.PushTokens, &tokens); err == nil {
			aux.PushTokens = tokens
		}
	}

	return json.Marshal(aux)
}
