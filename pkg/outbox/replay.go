package outbox

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// FailedEventStore is the part of Repository the replay path needs.
type FailedEventStore interface {
	GetFailedEvents(ctx context.Context, limit int) ([]*Event, error)
	ResetForReplay(ctx context.Context, eventID int64) error
}

// ReplayService 将失败的事件重新放回待发送队列，由 Dispatcher 发布
type ReplayService struct {
	repo   FailedEventStore
	logger *zap.Logger
}

func NewReplayService(repo FailedEventStore, logger *zap.Logger) *ReplayService {
	return &ReplayService{repo: repo, logger: logger}
}

// ListFailed returns events that exhausted their retries, newest first.
func (s *ReplayService) ListFailed(ctx context.Context, limit int) ([]*Event, error) {
	return s.repo.GetFailedEvents(ctx, limit)
}

// ReplayEvent 重放指定的事件
func (s *ReplayService) ReplayEvent(ctx context.Context, eventID int64) error {
	if err := s.repo.ResetForReplay(ctx, eventID); err != nil {
		return err
	}
	s.logger.Info("Outbox event queued for replay", zap.Int64("event_id", eventID))
	return nil
}

// ReplayFailedEvents 重放所有失败的事件，返回成功重置的数量
func (s *ReplayService) ReplayFailedEvents(ctx context.Context, limit int) (int, error) {
	events, err := s.repo.GetFailedEvents(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to get failed events: %w", err)
	}

	replayed := 0
	for _, event := range events {
		if err := s.ReplayEvent(ctx, event.ID); err != nil {
			s.logger.Warn("Failed to replay event", zap.Int64("event_id", event.ID), zap.Error(err))
			continue
		}
		replayed++
	}
	return replayed, nil
}
