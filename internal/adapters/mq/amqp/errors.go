package amqp

import "errors"

var (
	// ErrDeliveriesClosed is returned when the broker stops the consumer.
	ErrDeliveriesClosed = errors.New("amqp deliveries channel closed")
	// ErrConnectionClosed is returned when the broker drops the connection.
	ErrConnectionClosed = errors.New("amqp connection closed")
)
