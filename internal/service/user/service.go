package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taskdesk/internal/model"
	"taskdesk/internal/repository"
	"taskdesk/pkg/logger"
	"taskdesk/pkg/metrics"
)

var (
	ErrUserExists   = errors.New("user already exists with this email")
	ErrInvalidInput = errors.New("name and email are required")
)

const guardScope = "user-create"

type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
}

// ListCache holds the full user listing. Get reports false on a miss along
// with the cache generation it saw; Set must drop the listing when an
// Invalidate happened after that generation was read.
type ListCache interface {
	Get(ctx context.Context) (users []model.User, gen int64, ok bool)
	Set(ctx context.Context, gen int64, users []model.User)
	Invalidate(ctx context.Context)
}

type Guard interface {
	AcquireOnce(ctx context.Context, scope, key string) bool
	Release(ctx context.Context, scope, key string)
}

type Service struct {
	users  UserStore
	cache  ListCache
	guard  Guard
	logger *zap.Logger
	now    func() time.Time
}

type Option func(*Service)

func WithCache(c ListCache) Option {
	return func(s *Service) { s.cache = c }
}

func WithGuard(g Guard) Option {
	return func(s *Service) { s.guard = g }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(users UserStore, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{users: users, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a user. A taken email yields ErrUserExists.
func (s *Service) Create(ctx context.Context, name, email string) (*model.User, error) {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if name == "" || email == "" {
		return nil, ErrInvalidInput
	}

	if s.guard != nil {
		if !s.guard.AcquireOnce(ctx, guardScope, email) {
			return nil, ErrUserExists
		}
		defer s.guard.Release(ctx, guardScope, email)
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	u := &model.User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		CreatedAt: s.now().UTC(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
	metrics.UsersCreated.Inc()
	logger.WithTrace(ctx, s.logger).Info("User created", zap.String("user_id", u.ID))
	return u, nil
}

// List returns every user, oldest first. Never nil.
func (s *Service) List(ctx context.Context) ([]model.User, error) {
	var gen int64 = -1
	if s.cache != nil {
		users, g, ok := s.cache.Get(ctx)
		if ok {
			return users, nil
		}
		gen = g
	}

	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []model.User{}
	}
	if s.cache != nil {
		s.cache.Set(ctx, gen, users)
	}
	return users, nil
}
