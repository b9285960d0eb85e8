package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	OrganizationID uuid.UUID       `json:"organization_id" db:"organization_id"`
	ActorID        uuid.UUID       `json:"actor_id" db:"actor_id"`
	Operation      string          `json:"operation" db:"operation"`
	EntityType     string          `json:"entity_type" db:"entity_type"`
	EntityID       uuid.UUID       `json:"entity_id" db:"entity_id"`
	Changes        json.RawMessage `json:"changes" db:"changes"`
	Context        json.RawMessage `json:"context" db:"context"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

const (
	// Operations
	AuditOpCreate = "create"
	AuditOpUpdate = "update"
	AuditOpMove   = "move"
	AuditOpCancel = "cancel"
	AuditOpRead   = "read"

	// Entity types
	AuditEntityAppointment = "appointments"
)
