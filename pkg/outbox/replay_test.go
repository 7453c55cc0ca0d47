package outbox

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeFailedStore struct {
	failed []*Event
	reset  []int64
}

func (s *fakeFailedStore) GetFailedEvents(_ context.Context, limit int) ([]*Event, error) {
	if len(s.failed) > limit {
		return s.failed[:limit], nil
	}
	return s.failed, nil
}

func (s *fakeFailedStore) ResetForReplay(_ context.Context, id int64) error {
	for _, e := range s.failed {
		if e.ID == id {
			s.reset = append(s.reset, id)
			return nil
		}
	}
	return fmt.Errorf("%w: %d", ErrEventNotFound, id)
}

func TestReplayEvent_UnknownID(t *testing.T) {
	svc := NewReplayService(&fakeFailedStore{}, zap.NewNop())

	err := svc.ReplayEvent(context.Background(), 42)
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestReplayFailedEvents_RespectsLimit(t *testing.T) {
	store := &fakeFailedStore{failed: []*Event{{ID: 1}, {ID: 2}, {ID: 3}}}
	svc := NewReplayService(store, zap.NewNop())

	n, err := svc.ReplayFailedEvents(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int64{1, 2}, store.reset)
}
