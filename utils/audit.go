package utils

import (
	"encoding/json"

	"github.com/DkshLuvsDucks/FCS-Project-Fixed-sub000/models"

	"gorm.io/gorm"
)

// Audit writes an audit row for a messaging lifecycle event. It accepts the
// transaction handle so the row commits or rolls back with the operation.
// Audit failures are deliberately not propagated.
func Audit(db *gorm.DB, actorID uint, action, resourceType string, resourceID uint, before interface{}, after interface{}) {
	var beforeStr, afterStr string
	if before != nil {
		if b, err := json.Marshal(before); err == nil {
			beforeStr = string(b)
		}
	}
	if after != nil {
		if a, err := json.Marshal(after); err == nil {
			afterStr = string(a)
		}
	}

	entry := models.AuditLog{
		ActorUserID:  actorID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		BeforeJSON:   beforeStr,
		AfterJSON:    afterStr,
	}
	db.Create(&entry)
}
