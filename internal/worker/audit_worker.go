package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"restopos/internal/model"
	"restopos/internal/repository"

	"github.com/rs/zerolog/log"
)

// AuditWorker persists audit entries enqueued by the services.
type AuditWorker struct {
	repo repository.AuditRepository
}

func NewAuditWorker(repo repository.AuditRepository) *AuditWorker {
	return &AuditWorker{repo: repo}
}

// Process stores one entry. A redelivered entry that is already stored
// counts as done.
func (w *AuditWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var e model.AuditEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		// retrying cannot fix a bad payload
		log.Error().Err(err).Msg("audit_worker: invalid payload")
		return nil
	}
	err := w.repo.Create(ctx, &e)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("audit_worker: store %s: %w", e.Action, err)
	}
	return nil
}
