package task

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
	ErrValidation   = errors.New("validation failed")
	ErrUserNotFound = errors.New("user not found")
	ErrTaskNotFound = errors.New("task not found")
)

// ValidationError carries the message returned to the caller. It matches
// ErrValidation under errors.Is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

type TaskStore interface {
	Create(ctx context.Context, t *model.Task) error
	ListByUser(ctx context.Context, userID string) ([]model.Task, error)
	MarkCompleted(ctx context.Context, taskID string) error
}

type UserChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// CreateInput holds the add-task body. Empty optional fields take defaults.
type CreateInput struct {
	Title       string
	Description string
	DueDate     string
	Priority    string
	Status      string
}

type Service struct {
	tasks  TaskStore
	users  UserChecker
	logger *zap.Logger
	now    func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(tasks TaskStore, users UserChecker, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{tasks: tasks, users: users, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates in, checks that the owner exists and stores the task.
// Nothing is written when either check fails.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*model.Task, error) {
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Description) == "" {
		return nil, &ValidationError{Message: "Title and description are required"}
	}

	status := model.StatusPending
	if in.Status != "" {
		status = model.TaskStatus(in.Status)
		if !status.Valid() {
			return nil, &ValidationError{Message: fmt.Sprintf("Invalid status %q", in.Status)}
		}
	}
	priority := model.PriorityMedium
	if in.Priority != "" {
		priority = model.TaskPriority(in.Priority)
		if !priority.Valid() {
			return nil, &ValidationError{Message: fmt.Sprintf("Invalid priority %q", in.Priority)}
		}
	}

	exists, err := s.users.Exists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrUserNotFound
	}

	t := &model.Task{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       in.Title,
		Description: in.Description,
		Status:      status,
		Priority:    priority,
		DueDate:     in.DueDate,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.tasks.Create(ctx, t); err != nil {
		// the user vanished between the check and the insert
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	metrics.TasksCreated.WithLabelValues(string(t.Priority)).Inc()
	logger.WithTrace(ctx, s.logger).Info("Task created",
		zap.String("task_id", t.ID),
		zap.String("user_id", userID),
	)
	return t, nil
}

// ListForUser returns the user's tasks, newest first. An unknown user simply
// has no tasks.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]model.Task, error) {
	tasks, err := s.tasks.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	return tasks, nil
}

// Complete forces the task's status to Completed. Repeating the call is not
// an error.
func (s *Service) Complete(ctx context.Context, taskID string) error {
	if err := s.tasks.MarkCompleted(ctx, taskID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTaskNotFound
		}
		return err
	}
	metrics.TasksCompleted.Inc()
	return nil
}
