package amqp

import (
	"time"

	"github.com/okian/nutriagenda/pkg/logger"
)

// Option applies a configuration option to the Consumer.
type Option func(*Consumer)

// WithPrefetch bounds unacknowledged deliveries per consumer.
func WithPrefetch(n int) Option {
	return func(c *Consumer) {
		if n > 0 {
			c.prefetch = n
		}
	}
}

// WithReconnectDelay sets the pause between reconnection attempts.
func WithReconnectDelay(d time.Duration) Option {
	return func(c *Consumer) {
		if d > 0 {
			c.reconnectDelay = d
		}
	}
}

// WithRequeueDelay sets how long a delivery is held before it is returned
// to the broker on backpressure.
func WithRequeueDelay(d time.Duration) Option {
	return func(c *Consumer) {
		if d >= 0 {
			c.requeueDelay = d
		}
	}
}

// WithConsumerTag names the consumer on the broker.
func WithConsumerTag(tag string) Option {
	return func(c *Consumer) {
		if tag != "" {
			c.tag = tag
		}
	}
}

// WithLogger sets a custom logger for the consumer.
func WithLogger(l logger.Logger) Option {
	return func(c *Consumer) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithPermanentErrors lists submit errors that requeueing cannot fix.
// Deliveries failing with one of them are rejected.
func WithPermanentErrors(errs ...error) Option {
	return func(c *Consumer) {
		c.permanent = append(c.permanent, errs...)
	}
}
