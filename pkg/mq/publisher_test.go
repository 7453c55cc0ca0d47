package mq

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type ackOnly bool

func (a ackOnly) WaitContext(context.Context) (bool, error) { return bool(a), nil }

type fakeSession struct {
	mu        sync.Mutex
	published []string
	lost      chan *amqp091.Error
	closedN   int
}

func newFakeSession() *fakeSession {
	return &fakeSession{lost: make(chan *amqp091.Error, 1)}
}

func (s *fakeSession) publish(_ context.Context, key string, _ amqp091.Publishing) (confirmation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = append(s.published, key)
	return ackOnly(true), nil
}

func (s *fakeSession) closed() <-chan *amqp091.Error { return s.lost }

func (s *fakeSession) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closedN++
}

func (s *fakeSession) drop() {
	s.lost <- &amqp091.Error{Code: amqp091.ConnectionForced, Reason: "broker restart"}
}

// scriptedDialer hands out sessions in order and fails while down is set.
type scriptedDialer struct {
	mu       sync.Mutex
	sessions []*fakeSession
	down     bool
	dials    int
}

func (d *scriptedDialer) dial() (session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.down {
		return nil, errors.New("connection refused")
	}
	s := newFakeSession()
	d.sessions = append(d.sessions, s)
	return s, nil
}

func (d *scriptedDialer) setDown(v bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.down = v
}

func (d *scriptedDialer) session(i int) *fakeSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessions[i]
}

func (d *scriptedDialer) count() (sessions, dials int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions), d.dials
}

func newTestPublisher(t *testing.T, d *scriptedDialer) *Publisher {
	t.Helper()
	p, err := newPublisher(d.dial, zap.NewNop())
	require.NoError(t, err)
	p.minDelay, p.maxDelay = time.Millisecond, 5*time.Millisecond
	t.Cleanup(p.Close)
	return p
}

func TestPublisher_RedialsAfterConnectionLoss(t *testing.T) {
	d := &scriptedDialer{}
	p := newTestPublisher(t, d)
	ctx := context.Background()

	require.NoError(t, p.PublishWithContext(ctx, "user.created", map[string]string{"id": "u1"}))
	assert.True(t, p.IsConnected())

	d.setDown(true)
	d.session(0).drop()
	assert.Eventually(t, func() bool { return !p.IsConnected() }, time.Second, time.Millisecond)
	assert.ErrorIs(t, p.PublishWithContext(ctx, "task.created", nil), ErrNotConnected)

	// several redials fail before the broker is back
	assert.Eventually(t, func() bool { _, dials := d.count(); return dials >= 3 }, time.Second, time.Millisecond)
	d.setDown(false)
	assert.Eventually(t, p.IsConnected, time.Second, time.Millisecond)

	require.NoError(t, p.PublishWithContext(ctx, "task.completed", nil))
	sessions, _ := d.count()
	require.Equal(t, 2, sessions)
	assert.Equal(t, []string{"task.completed"}, d.session(1).published)
	assert.Equal(t, 1, d.session(0).closedN)
}

func TestPublisher_CloseStopsRedialing(t *testing.T) {
	d := &scriptedDialer{}
	p := newTestPublisher(t, d)

	d.setDown(true)
	d.session(0).drop()
	assert.Eventually(t, func() bool { _, dials := d.count(); return dials >= 2 }, time.Second, time.Millisecond)

	p.Close()
	_, dials := d.count()
	time.Sleep(20 * time.Millisecond)
	_, after := d.count()
	assert.Equal(t, dials, after)
	assert.False(t, p.IsConnected())
	assert.NotPanics(t, p.Close)
}

func TestPublisher_NackIsAnError(t *testing.T) {
	sess := &nackSession{fakeSession: newFakeSession()}
	p, err := newPublisher(func() (session, error) { return sess, nil }, zap.NewNop())
	require.NoError(t, err)
	defer p.Close()

	assert.ErrorIs(t, p.PublishWithContext(context.Background(), "user.created", nil), ErrNotAcked)
}

type nackSession struct{ *fakeSession }

func (s *nackSession) publish(context.Context, string, amqp091.Publishing) (confirmation, error) {
	return ackOnly(false), nil
}
