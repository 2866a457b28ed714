package models

import (
	"time"
)

// AuditLog records messaging lifecycle events that operators need to see
// after the fact: ownership transfers, orphaned groups, group ends.
type AuditLog struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	ActorUserID  uint      `json:"actorUserID" gorm:"index"`
	Action       string    `json:"action" gorm:"size:64;index"`
	ResourceType string    `json:"resourceType" gorm:"size:64;index"`
	ResourceID   uint      `json:"resourceID" gorm:"index"`
	BeforeJSON   string    `json:"beforeJSON" gorm:"type:text"`
	AfterJSON    string    `json:"afterJSON" gorm:"type:text"`
	CreatedAt    time.Time `json:"createdAt"`
}
