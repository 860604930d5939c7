package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/keyward/licensing-backend/pkg/enums"
)

// AuditLog is an append-only record of domain mutations. Rows are written by
// the async audit emitter; the core never reads them back.
type AuditLog struct {
	ID         uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Event      enums.AuditEvent `gorm:"column:event;not null" json:"event"`
	Action     string           `gorm:"column:action;not null" json:"action"`
	ActorType  enums.ActorType  `gorm:"column:actor_type;not null" json:"actor_type"`
	ActorID    *string          `gorm:"column:actor_id" json:"actor_id,omitempty"`
	ObjectType *string          `gorm:"column:object_type" json:"object_type,omitempty"`
	ObjectID   *string          `gorm:"column:object_id" json:"object_id,omitempty"`
	Metadata   json.RawMessage  `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}
