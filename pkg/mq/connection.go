package mq

import (
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const (
	// ExchangeName is the topic exchange every domain event is published to.
	ExchangeName = "taskdesk.events"
	exchangeKind = "topic"

	heartbeat = 10 * time.Second
)

// NewConnection dials the broker and labels the connection with name so it
// can be told apart in the management UI.
func NewConnection(url, name string) (*amqp091.Connection, error) {
	props := amqp091.NewConnectionProperties()
	props.SetClientConnectionName(name)

	conn, err := amqp091.DialConfig(url, amqp091.Config{
		Heartbeat:  heartbeat,
		Properties: props,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

// DeclareExchange declares the durable events exchange. Consumers bind their
// own queues by routing key.
func DeclareExchange(ch *amqp091.Channel) error {
	const (
		durable    = true
		autoDelete = false
		internal   = false
		noWait     = false
	)
	return ch.ExchangeDeclare(ExchangeName, exchangeKind, durable, autoDelete, internal, noWait, nil)
}
