package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/iho/ledgerbook/internal/domain"
)

// writeEvent stores an outbox event inside tx. payload is one of the domain
// event structs and is flattened through its JSON tags.
func writeEvent(
	ctx context.Context,
	tx Transaction,
	repo OutboxRepository,
	idGen IDGenerator,
	aggregateType, aggregateID, eventType string,
	payload any,
	now time.Time,
) error {
	if repo == nil {
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", eventType, err)
	}

	fields := make(map[string]any)
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", eventType, err)
	}

	return repo.Create(ctx, tx, &domain.OutboxEvent{
		ID:            idGen.Generate(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Payload:       fields,
		CreatedAt:     now,
		Published:     false,
	})
}
