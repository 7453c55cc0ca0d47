package auth

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
	"taskdesk/internal/util"
	"taskdesk/pkg/config"
	"taskdesk/pkg/logger"
	"taskdesk/pkg/metrics"
)

var (
	ErrAdminExists     = errors.New("admin already exists with this email")
	ErrAdminNotFound   = errors.New("no admin with this email")
	ErrInvalidPassword = errors.New("invalid email or password")
	ErrTooManyAttempts = errors.New("too many failed signin attempts")
	ErrInvalidInput    = errors.New("name, email and password are required")
	ErrPasswordTooLong = errors.New("password must be at most 72 bytes")
	ErrMissingEmail    = errors.New("email is required")
)

const guardScope = "admin-signup"

type AdminStore interface {
	Create(ctx context.Context, a *model.Admin) error
	FindByEmail(ctx context.Context, email string) (*model.Admin, error)
}

// Guard serializes concurrent writes for the same email.
type Guard interface {
	AcquireOnce(ctx context.Context, scope, key string) bool
	Release(ctx context.Context, scope, key string)
}

// FailureCounter counts failed signins per email inside a window.
// FailureCounter counts signin attempts per key inside a fixed window.
type FailureCounter interface {
	IncrementAndGet(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

type Service struct {
	admins   AdminStore
	jwt      config.JWTConfig
	auth     config.AuthConfig
	logger   *zap.Logger
	guard    Guard
	failures FailureCounter
	now      func() time.Time
}

type Option func(*Service)

func WithGuard(g Guard) Option {
	return func(s *Service) { s.guard = g }
}

func WithFailureCounter(c FailureCounter) Option {
	return func(s *Service) { s.failures = c }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(admins AdminStore, jwtCfg config.JWTConfig, authCfg config.AuthConfig, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		admins: admins,
		jwt:    jwtCfg,
		auth:   authCfg,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Signup creates an admin and returns a token for it.
func (s *Service) Signup(ctx context.Context, name, email, password string) (string, error) {
	log := logger.WithTrace(ctx, s.logger)
	email = strings.TrimSpace(email)
	if strings.TrimSpace(name) == "" || email == "" || password == "" {
		return "", ErrInvalidInput
	}

	if s.guard != nil {
		if !s.guard.AcquireOnce(ctx, guardScope, email) {
			metrics.RecordAuthAttempt("signup", "duplicate")
			return "", ErrAdminExists
		}
		defer s.guard.Release(ctx, guardScope, email)
	}

	existing, err := s.admins.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return "", fmt.Errorf("lookup admin: %w", err)
	}
	if existing != nil {
		metrics.RecordAuthAttempt("signup", "duplicate")
		return "", ErrAdminExists
	}

	hash, err := util.HashPassword(password)
	if errors.Is(err, util.ErrPasswordTooLong) {
		return "", ErrPasswordTooLong
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	a := &model.Admin{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.admins.Create(ctx, a); err != nil {
		// lost the race against a concurrent signup without a guard
		if errors.Is(err, repository.ErrDuplicate) {
			metrics.RecordAuthAttempt("signup", "duplicate")
			return "", ErrAdminExists
		}
		return "", fmt.Errorf("create admin: %w", err)
	}

	token, err := util.GenerateJWT(a.ID, s.jwt.Secret, s.jwt.TTL)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}

	metrics.RecordAuthAttempt("signup", "success")
	log.Info("Admin signed up", zap.String("admin_id", a.ID))
	return token, nil
}

// Signin issues a token for the admin registered under email. The password
// is checked only when auth.verify_password is set.
func (s *Service) Signin(ctx context.Context, email, password string) (string, error) {
	log := logger.WithTrace(ctx, s.logger)
	email = strings.TrimSpace(email)
	if email == "" {
		return "", ErrMissingEmail
	}

	// every attempt takes a slot with one INCR; a success hands them back
	key := failureKey(email, clientIPFrom(ctx))
	if s.limited() {
		n, err := s.failures.IncrementAndGet(ctx, key)
		if err != nil {
			log.Warn("Signin failure counter unavailable", zap.Error(err))
		} else if n > s.auth.MaxSigninFailures {
			metrics.RecordAuthAttempt("signin", "throttled")
			return "", ErrTooManyAttempts
		}
	}

	a, err := s.admins.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.RecordAuthAttempt("signin", "unknown_email")
			return "", ErrAdminNotFound
		}
		return "", fmt.Errorf("lookup admin: %w", err)
	}

	if s.auth.VerifyPassword && !util.CheckPassword(password, a.PasswordHash) {
		metrics.RecordAuthAttempt("signin", "bad_password")
		return "", ErrInvalidPassword
	}

	token, err := util.GenerateJWT(a.ID, s.jwt.Secret, s.jwt.TTL)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}

	if s.limited() {
		if err := s.failures.Reset(ctx, key); err != nil {
			log.Warn("Failed to reset signin failures", zap.Error(err))
		}
	}
	metrics.RecordAuthAttempt("signin", "success")
	log.Info("Admin signed in", zap.String("admin_id", a.ID))
	return token, nil
}

// VerifyToken returns the admin id carried by token.
func (s *Service) VerifyToken(token string) (string, error) {
	return util.ParseJWT(token, s.jwt.Secret)
}

func (s *Service) limited() bool {
	return s.failures != nil && s.auth.MaxSigninFailures > 0
}

// failureKey scopes the limiter to one email from one client address.
func failureKey(email, clientIP string) string {
	key := "signin:" + strings.ToLower(email)
	if clientIP != "" {
		key += "|" + clientIP
	}
	return key
}

type clientIPKey struct{}

// ContextWithClientIP records the caller address used to scope the signin limiter.
func ContextWithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

func clientIPFrom(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}
