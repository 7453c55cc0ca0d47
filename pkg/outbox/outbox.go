package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"taskdesk/pkg/otel"
)

const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

const (
	table = "outbox_events"

	// retry n waits n*retryStep before it becomes due again
	retryStep = 5 * time.Second
)

var ErrEventNotFound = errors.New("outbox event not found")

// Event is one row of the outbox. Field order matches selectEvents.
type Event struct {
	ID            int64           `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   *string         `json:"aggregate_id,omitempty"`
	RoutingKey    string          `json:"routing_key"`
	Payload       json.RawMessage `json:"payload"`
	Status        string          `json:"status"`
	RetryCount    int             `json:"retry_count"`
	NextRetryAt   *time.Time      `json:"next_retry_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

const selectEvents = `
	SELECT id, aggregate_type, aggregate_id, routing_key, payload, status,
	       retry_count, next_retry_at, created_at, updated_at
	FROM outbox_events`

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// InsertEvent writes event inside tx so it commits or rolls back together
// with the business row that produced it.
func InsertEvent(ctx context.Context, tx pgx.Tx, event *Event) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO outbox_events (aggregate_type, aggregate_id, routing_key, payload, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		event.AggregateType, event.AggregateID, event.RoutingKey, event.Payload, event.Status,
	).Scan(&event.ID, &event.CreatedAt, &event.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert outbox event %s: %w", event.RoutingKey, err)
	}
	return nil
}

// GetPendingEvents returns pending events whose backoff has elapsed, oldest first.
func (r *Repository) GetPendingEvents(ctx context.Context, limit int) ([]*Event, error) {
	return r.list(ctx, selectEvents+`
		WHERE status = 'pending' AND (next_retry_at IS NULL OR next_retry_at <= NOW())
		ORDER BY created_at ASC
		LIMIT $1`, limit)
}

// GetFailedEvents returns events that exhausted their retries, newest first.
func (r *Repository) GetFailedEvents(ctx context.Context, limit int) ([]*Event, error) {
	return r.list(ctx, selectEvents+`
		WHERE status = 'failed'
		ORDER BY created_at DESC
		LIMIT $1`, limit)
}

func (r *Repository) list(ctx context.Context, query string, limit int) ([]*Event, error) {
	var events []*Event
	err := otel.Observe(ctx, "select", table, func(ctx context.Context) error {
		rows, err := r.db.Query(ctx, query, limit)
		if err != nil {
			return err
		}
		events, err = pgx.CollectRows(rows, pgx.RowToAddrOfStructByPos[Event])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list outbox events: %w", err)
	}
	if events == nil {
		events = []*Event{}
	}
	return events, nil
}

func (r *Repository) MarkAsSent(ctx context.Context, eventID int64) error {
	_, err := r.exec(ctx, `
		UPDATE outbox_events SET status = 'sent', updated_at = NOW()
		WHERE id = $1`, eventID)
	if err != nil {
		return fmt.Errorf("mark event %d sent: %w", eventID, err)
	}
	return nil
}

// MarkAsFailed counts one more failed attempt. The event turns failed once
// the count reaches maxRetries; until then it is rescheduled with linear backoff.
func (r *Repository) MarkAsFailed(ctx context.Context, eventID int64, maxRetries int) error {
	_, err := r.exec(ctx, `
		UPDATE outbox_events
		SET retry_count = retry_count + 1,
		    status = CASE WHEN retry_count + 1 >= $2 THEN 'failed' ELSE 'pending' END,
		    next_retry_at = CASE WHEN retry_count + 1 >= $2 THEN NULL
		                         ELSE NOW() + (retry_count + 1) * $3 * INTERVAL '1 second' END,
		    updated_at = NOW()
		WHERE id = $1`, eventID, maxRetries, int(retryStep.Seconds()))
	if err != nil {
		return fmt.Errorf("mark event %d failed: %w", eventID, err)
	}
	return nil
}

// ResetForReplay moves a failed event back to pending with a fresh retry
// budget. Events that are not failed report ErrEventNotFound.
func (r *Repository) ResetForReplay(ctx context.Context, eventID int64) error {
	n, err := r.exec(ctx, `
		UPDATE outbox_events
		SET status = 'pending', retry_count = 0, next_retry_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'failed'`, eventID)
	if err != nil {
		return fmt.Errorf("reset event %d: %w", eventID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrEventNotFound, eventID)
	}
	return nil
}

func (r *Repository) exec(ctx context.Context, sql string, args ...any) (int64, error) {
	var affected int64
	err := otel.Observe(ctx, "update", table, func(ctx context.Context) error {
		tag, err := r.db.Exec(ctx, sql, args...)
		affected = tag.RowsAffected()
		return err
	})
	return affected, err
}
