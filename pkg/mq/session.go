package mq

import (
	"context"
	"fmt"

	"github.com/rabbitmq/amqp091-go"
)

type confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

// session is one connection plus its confirm-mode channel.
type session interface {
	publish(ctx context.Context, routingKey string, msg amqp091.Publishing) (confirmation, error)
	// closed yields once when either the connection or the channel goes away.
	closed() <-chan *amqp091.Error
	close()
}

type amqpSession struct {
	conn *amqp091.Connection
	ch   *amqp091.Channel
	lost chan *amqp091.Error
}

func dialSession(url, name string) (session, error) {
	conn, err := NewConnection(url, name)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := DeclareExchange(ch); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", ExchangeName, err)
	}
	if err := ch.Confirm(false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable publisher confirms: %w", err)
	}

	s := &amqpSession{conn: conn, ch: ch, lost: make(chan *amqp091.Error, 1)}
	connClosed := conn.NotifyClose(make(chan *amqp091.Error, 1))
	chClosed := ch.NotifyClose(make(chan *amqp091.Error, 1))
	go func() {
		var reason *amqp091.Error
		select {
		case reason = <-connClosed:
		case reason = <-chClosed:
		}
		s.lost <- reason
	}()
	return s, nil
}

func (s *amqpSession) publish(ctx context.Context, routingKey string, msg amqp091.Publishing) (confirmation, error) {
	return s.ch.PublishWithDeferredConfirmWithContext(ctx, ExchangeName, routingKey, false, false, msg)
}

func (s *amqpSession) closed() <-chan *amqp091.Error { return s.lost }

func (s *amqpSession) close() {
	_ = s.ch.Close()
	_ = s.conn.Close()
}
