// Package amqp feeds measurement messages from a RabbitMQ queue into the
// import pipeline.
package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/okian/nutriagenda/internal/domain/model"
	"github.com/okian/nutriagenda/pkg/logger"
	"github.com/okian/nutriagenda/pkg/metrics"
)

const (
	defaultPrefetch       = 32
	defaultReconnectDelay = 5 * time.Second
	defaultRequeueDelay   = 250 * time.Millisecond

	// Source is the import source recorded for broker deliveries.
	Source = "amqp"
)

// Outcome is what happened to one delivery.
type Outcome string

// Delivery outcomes.
const (
	Accepted  Outcome = "accepted"
	Duplicate Outcome = "duplicate"
	Requeued  Outcome = "requeued"
	Rejected  Outcome = "rejected"
)

// Submitter queues one measurement for import.
type Submitter interface {
	Submit(ctx context.Context, source, batchID string, in *model.MeasurementInput) (duplicate bool, err error)
}

// Consumer reads JSON MeasurementInput messages from one queue.
type Consumer struct {
	url   string
	queue string
	tag   string

	submitter Submitter

	prefetch       int
	reconnectDelay time.Duration
	requeueDelay   time.Duration

	// permanent errors are rejected instead of requeued.
	permanent []error

	logger logger.Logger
}

// New creates a consumer for queue on the broker at url.
func New(url, queue string, submitter Submitter, opts ...Option) *Consumer {
	c := &Consumer{
		url:            url,
		queue:          queue,
		tag:            "nutriagenda-import",
		submitter:      submitter,
		prefetch:       defaultPrefetch,
		reconnectDelay: defaultReconnectDelay,
		requeueDelay:   defaultRequeueDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Get().Named("amqp")
	}
	return c
}

// Run consumes until ctx is canceled, reconnecting after broker failures.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		err := c.consume(ctx)
		if ctx.Err() != nil {
			return nil
		}
		c.logger.Warn(ctx, "amqp consumer disconnected, reconnecting",
			logger.String("queue", c.queue),
			logger.Duration("delay", c.reconnectDelay),
			logger.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.reconnectDelay):
		}
	}
}

func (c *Consumer) consume(ctx context.Context) error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", c.queue, err)
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := ch.Consume(c.queue, c.tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	connClosed := conn.NotifyClose(make(chan *amqp.Error, 1))
	c.logger.Info(ctx, "amqp consumer connected", logger.String("queue", c.queue))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case aerr, ok := <-connClosed:
			if ok && aerr != nil {
				return fmt.Errorf("%w: %s", ErrConnectionClosed, aerr.Error())
			}
			return ErrConnectionClosed
		case d, ok := <-deliveries:
			if !ok {
				return ErrDeliveriesClosed
			}
			c.Handle(ctx, &d)
		}
	}
}

// Handle decodes one delivery, submits it and settles it with the broker.
func (c *Consumer) Handle(ctx context.Context, d *amqp.Delivery) Outcome {
	outcome := c.handle(ctx, d)
	metrics.RecordAMQPDelivery(string(outcome))

	var err error
	switch outcome {
	case Accepted, Duplicate:
		err = d.Ack(false)
	case Requeued:
		err = d.Nack(false, true)
	case Rejected:
		err = d.Reject(false)
	}
	if err != nil {
		c.logger.Error(ctx, "failed to settle delivery",
			logger.String("outcome", string(outcome)),
			logger.Error(err),
		)
	}
	return outcome
}

func (c *Consumer) handle(ctx context.Context, d *amqp.Delivery) Outcome {
	var in model.MeasurementInput
	if err := json.Unmarshal(d.Body, &in); err != nil {
		c.logger.Warn(ctx, "dropping undecodable message",
			logger.String("message_id", d.MessageId),
			logger.Error(err),
		)
		return Rejected
	}

	batchID := d.MessageId
	if batchID == "" {
		batchID = d.CorrelationId
	}

	dup, err := c.submitter.Submit(ctx, Source, batchID, &in)
	switch {
	case err == nil && dup:
		return Duplicate
	case err == nil:
		return Accepted
	case c.isPermanent(err):
		c.logger.Warn(ctx, "rejecting message",
			logger.String("message_id", d.MessageId),
			logger.Error(err),
		)
		return Rejected
	default:
		c.logger.Debug(ctx, "requeueing message", logger.Error(err))
		c.pause(ctx)
		return Requeued
	}
}

// pause slows redelivery while the import queue is saturated.
func (c *Consumer) pause(ctx context.Context) {
	if c.requeueDelay <= 0 {
		return
	}
	t := time.NewTimer(c.requeueDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (c *Consumer) isPermanent(err error) bool {
	for _, target := range c.permanent {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
