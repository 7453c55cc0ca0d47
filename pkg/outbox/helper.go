package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

var errNoRoutingKey = errors.New("outbox: routing key is required")

// Enqueue records payload for routingKey in the outbox as part of tx, so the
// event exists exactly when the business write commits.
func Enqueue(ctx context.Context, tx pgx.Tx, aggregateType, aggregateID, routingKey string, payload any) error {
	if routingKey == "" {
		return errNoRoutingKey
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("outbox: encode %s payload: %w", routingKey, err)
	}

	var id *string
	if aggregateID != "" {
		id = &aggregateID
	}
	return InsertEvent(ctx, tx, &Event{
		AggregateType: aggregateType,
		AggregateID:   id,
		RoutingKey:    routingKey,
		Payload:       raw,
		Status:        StatusPending,
	})
}
