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

type AdminRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewAdminRepository(db *pgxpool.Pool, logger *zap.Logger) *AdminRepository {
	return &AdminRepository{db: db, logger: logger}
}

// Create inserts the admin and its admin.signed_up event in one transaction.
func (r *AdminRepository) Create(ctx context.Context, a *model.Admin) error {
	err := otel.Observe(ctx, "insert", "admins", func(ctx context.Context) error {
		return withTx(ctx, r.db, func(tx pgx.Tx) error {
			err := tx.QueryRow(ctx, `
				INSERT INTO admins (id, name, email, password_hash, created_at)
				VALUES ($1, $2, $3, $4, $5)
				RETURNING created_at
			`, a.ID, a.Name, a.Email, a.PasswordHash, a.CreatedAt).Scan(&a.CreatedAt)
			if err != nil {
				return err
			}
			return outbox.Enqueue(ctx, tx, mq.AggregateAdmin, a.ID, mq.RoutingAdminSignedUp, mq.AdminSignedUpPayload{
				AdminID: a.ID,
				Email:   a.Email,
				TraceID: trace.FromContext(ctx),
			})
		})
	})
	if err != nil {
		r.logger.Error("Failed to insert admin", zap.String("email", a.Email), zap.Error(err))
		return translate(err)
	}
	r.logger.Info("Admin created", zap.String("admin_id", a.ID))
	return nil
}

// FindByEmail returns ErrNotFound when no admin has email.
func (r *AdminRepository) FindByEmail(ctx context.Context, email string) (*model.Admin, error) {
	var a model.Admin
	err := otel.Observe(ctx, "select", "admins", func(ctx context.Context) error {
		return r.db.QueryRow(ctx, `
			SELECT id, name, email, password_hash, created_at
			FROM admins
			WHERE email = $1
		`, email).Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.CreatedAt)
	})
	if err != nil {
		if err = translate(err); err == ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("find admin by email: %w", err)
	}
	return &a, nil
}
