package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fisioflow/scheduler-api/internal/model"
	"github.com/fisioflow/scheduler-api/internal/repository"
)

type Service struct {
	repo repository.AuditRepository
}

func NewService(repo repository.AuditRepository) *Service {
	return &Service{repo: repo}
}

// Record writes an audit entry for a scheduling operation. It is
// fire-and-forget: a failed write is surfaced to the operational log for
// reconciliation and never propagated to the scheduling decision.
func (s *Service) Record(ctx context.Context, orgID, actorID uuid.UUID, operation, entityType string, entityID uuid.UUID, changes, contextData interface{}) {
	entry := &model.AuditLog{
		ID:             uuid.New(),
		OrganizationID: orgID,
		ActorID:        actorID,
		Operation:      operation,
		EntityType:     entityType,
		EntityID:       entityID,
		CreatedAt:      time.Now(),
	}

	var err error
	if changes != nil {
		if entry.Changes, err = json.Marshal(changes); err != nil {
			log.Error().Err(err).Str("entity_id", entityID.String()).Msg("failed to marshal audit changes")
			return
		}
	}
	if contextData != nil {
		if entry.Context, err = json.Marshal(contextData); err != nil {
			log.Error().Err(err).Str("entity_id", entityID.String()).Msg("failed to marshal audit context")
			return
		}
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		log.Error().Err(err).
			Str("operation", operation).
			Str("entity_type", entityType).
			Str("entity_id", entityID.String()).
			Str("actor_id", actorID.String()).
			Msg("failed to record audit event")
	}
}
