package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"taskdesk/contracts/mq"
	"taskdesk/internal/model"
	"taskdesk/pkg/otel"
	"taskdesk/pkg/outbox"
	"taskdesk/pkg/trace"
)

type TaskRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewTaskRepository(db *pgxpool.Pool, logger *zap.Logger) *TaskRepository {
	return &TaskRepository{db: db, logger: logger}
}

// Create inserts t and its task.created event. A user removed since the
// caller's existence check surfaces as ErrNotFound.
func (r *TaskRepository) Create(ctx context.Context, t *model.Task) error {
	r.logger.Debug("Inserting task",
		zap.String("user_id", t.UserID),
		zap.String("title", t.Title),
		zap.String("status", string(t.Status)),
	)

	err := otel.Observe(ctx, "insert", "tasks", func(ctx context.Context) error {
		return withTx(ctx, r.db, func(tx pgx.Tx) error {
			err := tx.QueryRow(ctx, `
				INSERT INTO tasks (id, user_id, title, description, status, priority, due_date, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				RETURNING created_at
			`,
				t.ID,
				t.UserID,
				t.Title,
				t.Description,
				string(t.Status),
				string(t.Priority),
				t.DueDate,
				t.CreatedAt,
			).Scan(&t.CreatedAt)
			if err != nil {
				return err
			}
			return outbox.Enqueue(ctx, tx, mq.AggregateTask, t.ID, mq.RoutingTaskCreated, mq.TaskCreatedPayload{
				TaskID:   t.ID,
				UserID:   t.UserID,
				Title:    t.Title,
				Status:   string(t.Status),
				Priority: string(t.Priority),
				DueDate:  t.DueDate,
				TraceID:  trace.FromContext(ctx),
			})
		})
	})
	if err != nil {
		r.logger.Error("Failed to insert task",
			zap.Error(err),
			zap.String("user_id", t.UserID),
		)
		return translate(err)
	}

	r.logger.Info("Task inserted successfully",
		zap.String("task_id", t.ID),
		zap.String("user_id", t.UserID),
	)
	return nil
}

// ListByUser returns the user's tasks, most recently created first.
func (r *TaskRepository) ListByUser(ctx context.Context, userID string) ([]model.Task, error) {
	tasks := []model.Task{}
	err := otel.Observe(ctx, "select", "tasks", func(ctx context.Context) error {
		rows, err := r.db.Query(ctx, `
			SELECT id, user_id, title, description, status, priority, due_date, created_at
			FROM tasks
			WHERE user_id = $1
			ORDER BY created_at DESC
		`, userID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var t model.Task
			if err := rows.Scan(
				&t.ID,
				&t.UserID,
				&t.Title,
				&t.Description,
				&t.Status,
				&t.Priority,
				&t.DueDate,
				&t.CreatedAt,
			); err != nil {
				return err
			}
			tasks = append(tasks, t)
		}
		return rows.Err()
	})
	if err != nil {
		r.logger.Error("Failed to query tasks",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// MarkCompleted sets the status to Completed whatever it was before.
// Returns ErrNotFound when no task has taskID.
func (r *TaskRepository) MarkCompleted(ctx context.Context, taskID string) error {
	var rowsAffected int64
	err := otel.Observe(ctx, "update", "tasks", func(ctx context.Context) error {
		return withTx(ctx, r.db, func(tx pgx.Tx) error {
			tag, err := tx.Exec(ctx, `
				UPDATE tasks
				SET status = $2
				WHERE id = $1
			`, taskID, string(model.StatusCompleted))
			if err != nil {
				return err
			}
			rowsAffected = tag.RowsAffected()
			if rowsAffected == 0 {
				return nil
			}
			return outbox.Enqueue(ctx, tx, mq.AggregateTask, taskID, mq.RoutingTaskCompleted, mq.TaskCompletedPayload{
				TaskID:      taskID,
				CompletedAt: time.Now().UTC(),
				TraceID:     trace.FromContext(ctx),
			})
		})
	})
	if err != nil {
		r.logger.Error("Failed to mark task as completed",
			zap.Error(err),
			zap.String("task_id", taskID),
		)
		return fmt.Errorf("complete task: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	r.logger.Info("Task marked as completed", zap.String("task_id", taskID))
	return nil
}
