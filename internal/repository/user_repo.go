package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"taskdesk/contracts/mq"
	"taskdesk/internal/model"
	"taskdesk/pkg/otel"
	"taskdesk/pkg/outbox"
	"taskdesk/pkg/trace"
)

type UserRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewUserRepository(db *pgxpool.Pool, logger *zap.Logger) *UserRepository {
	return &UserRepository{db: db, logger: logger}
}

// Create inserts a user together with its user.created event. A taken email
// yields ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	r.logger.Debug("Inserting user", zap.String("user_id", u.ID), zap.String("email", u.Email))

	err := otel.Observe(ctx, "insert", "users", func(ctx context.Context) error {
		return withTx(ctx, r.db, func(tx pgx.Tx) error {
			err := tx.QueryRow(ctx, `
				INSERT INTO users (id, name, email, created_at)
				VALUES ($1, $2, $3, $4)
				RETURNING created_at
			`, u.ID, u.Name, u.Email, u.CreatedAt).Scan(&u.CreatedAt)
			if err != nil {
				return err
			}
			return outbox.Enqueue(ctx, tx, mq.AggregateUser, u.ID, mq.RoutingUserCreated, mq.UserCreatedPayload{
				UserID:    u.ID,
				Name:      u.Name,
				Email:     u.Email,
				CreatedAt: u.CreatedAt,
				TraceID:   trace.FromContext(ctx),
			})
		})
	})
	if err != nil {
		r.logger.Error("Failed to insert user", zap.String("email", u.Email), zap.Error(err))
		return translate(err)
	}
	return nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := otel.Observe(ctx, "select", "users", func(ctx context.Context) error {
		return r.db.QueryRow(ctx, `
			SELECT id, name, email, created_at
			FROM users
			WHERE email = $1
		`, email).Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt)
	})
	if err != nil {
		if err = translate(err); err == ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := otel.Observe(ctx, "select", "users", func(ctx context.Context) error {
		return r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists)
	})
	if err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return exists, nil
}

// List returns every user, oldest first.
func (r *UserRepository) List(ctx context.Context) ([]model.User, error) {
	users := []model.User{}
	err := otel.Observe(ctx, "select", "users", func(ctx context.Context) error {
		rows, err := r.db.Query(ctx, `
			SELECT id, name, email, created_at
			FROM users
			ORDER BY created_at ASC
		`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var u model.User
			if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt); err != nil {
				return err
			}
			users = append(users, u)
		}
		return rows.Err()
	})
	if err != nil {
		r.logger.Error("Failed to list users", zap.Error(err))
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}
