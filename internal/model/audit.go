package model

import (
	"time"

	"github.com/google/uuid"
)

// AuditEntry is one recorded transition. Entries are append-only and written
// asynchronously; losing one never rolls back the transition it describes.
type AuditEntry struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Action     string         `gorm:"type:varchar(40);not null;index" json:"action"`
	EntityType string         `gorm:"type:varchar(20);not null" json:"entity_type"` // order | shift
	EntityID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"entity_id"`
	ActorID    uuid.UUID      `gorm:"type:uuid;not null" json:"actor_id"`
	BranchID   uuid.UUID      `gorm:"type:uuid;not null" json:"branch_id"`
	Details    map[string]any `gorm:"serializer:json" json:"details,omitempty"`
	At         time.Time      `gorm:"not null" json:"at"`
}
