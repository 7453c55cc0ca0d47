package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"taskdesk/pkg/otel"
	"taskdesk/pkg/trace"
)

var (
	// ErrNotAcked is returned when the broker nacks a confirmed publish.
	ErrNotAcked = errors.New("broker did not acknowledge message")
	// ErrNotConnected is returned while the publisher is redialing.
	ErrNotConnected = errors.New("publisher is not connected")
)

const (
	minRedialDelay = 500 * time.Millisecond
	maxRedialDelay = 30 * time.Second
)

// Publisher sends domain events to ExchangeName on one channel in confirm
// mode; a publish returns only after the broker has acked the message.
// When the connection or channel drops it redials in the background with
// exponential backoff until Close is called.
type Publisher struct {
	dial   func() (session, error)
	logger *zap.Logger

	mu        sync.Mutex // guards sess and serializes publishes
	sess      session
	connected atomic.Bool

	minDelay, maxDelay time.Duration

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func NewPublisher(url, connectionName string, logger *zap.Logger) (*Publisher, error) {
	return newPublisher(func() (session, error) {
		return dialSession(url, connectionName)
	}, logger)
}

func newPublisher(dial func() (session, error), logger *zap.Logger) (*Publisher, error) {
	sess, err := dial()
	if err != nil {
		return nil, err
	}
	p := &Publisher{
		dial:     dial,
		logger:   logger,
		sess:     sess,
		minDelay: minRedialDelay,
		maxDelay: maxRedialDelay,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	p.connected.Store(true)
	go p.supervise()
	return p, nil
}

// supervise waits for the current session to drop and replaces it.
func (p *Publisher) supervise() {
	defer close(p.done)
	for {
		p.mu.Lock()
		sess := p.sess
		p.mu.Unlock()

		select {
		case <-p.stop:
			return
		case reason := <-sess.closed():
			p.connected.Store(false)
			fields := []zap.Field{}
			if reason != nil {
				fields = append(fields, zap.Error(reason))
			}
			p.logger.Warn("Broker connection lost, redialing", fields...)
		}

		sess.close()
		if !p.redial() {
			return
		}
	}
}

func (p *Publisher) redial() bool {
	delay := p.minDelay
	for attempt := 1; ; attempt++ {
		sess, err := p.dial()
		if err == nil {
			p.mu.Lock()
			p.sess = sess
			p.mu.Unlock()
			p.connected.Store(true)
			p.logger.Info("Broker connection restored", zap.Int("attempts", attempt))
			return true
		}
		p.logger.Warn("Broker redial failed",
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", delay),
			zap.Error(err),
		)

		select {
		case <-p.stop:
			return false
		case <-time.After(delay):
		}
		delay = min(delay*2, p.maxDelay)
	}
}

// Close stops redialing and closes the current session.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		close(p.stop)
		<-p.done
		p.connected.Store(false)

		p.mu.Lock()
		defer p.mu.Unlock()
		p.sess.close()
	})
}

// IsConnected reports whether a live session is in place.
func (p *Publisher) IsConnected() bool {
	return p.connected.Load()
}

// PublishWithContext publishes payload as persistent JSON under routingKey
// and waits for the broker confirm. The request trace id and the span
// context of ctx travel in the message headers.
func (p *Publisher) PublishWithContext(ctx context.Context, routingKey string, payload any) (err error) {
	if !p.IsConnected() {
		return ErrNotConnected
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", routingKey, err)
	}

	ctx, span := otel.StartPublishSpan(ctx, ExchangeName, routingKey)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	headers := amqp091.Table{}
	if id := trace.FromContext(ctx); id != "" {
		headers["trace_id"] = id
	}
	otel.InjectHeaders(ctx, headers)

	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now().UTC(),
		Headers:      headers,
		Body:         body,
	}

	// confirm sequence numbers are per channel, so publishes are serialized
	p.mu.Lock()
	confirm, err := p.sess.publish(ctx, routingKey, msg)
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("await confirm for %s: %w", routingKey, err)
	}
	if !acked {
		return fmt.Errorf("publish %s: %w", routingKey, ErrNotAcked)
	}
	return nil
}
