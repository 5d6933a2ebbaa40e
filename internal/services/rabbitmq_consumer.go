package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/hacknation/odnalezione-zguby/service-m-matcher/internal/metrics"
	"github.com/hacknation/odnalezione-zguby/service-m-matcher/internal/models"
)

const (
	// DefaultMatchQueue is the durable queue bound to report.created
	DefaultMatchQueue = "q.matcher.report_created"

	consumerTag = "service-m-matcher"
)

// TriggerProcessor runs one match search to completion
type TriggerProcessor interface {
	Process(ctx context.Context, reportID string)
}

// RabbitMQConsumer feeds report.created deliveries to a fixed pool of workers
type RabbitMQConsumer struct {
	conn         *amqp.Connection
	channel      *amqp.Channel
	processor    TriggerProcessor
	exchangeName string
	queueName    string
	workers      int

	wg sync.WaitGroup
}

// NewRabbitMQConsumer creates a new RabbitMQ consumer
func NewRabbitMQConsumer(url, exchangeName, queueName string, workers int, processor TriggerProcessor) (*RabbitMQConsumer, error) {
	if queueName == "" {
		queueName = DefaultMatchQueue
	}
	if workers <= 0 {
		workers = 1
	}

	conn, channel, err := dialExchange(url, exchangeName)
	if err != nil {
		return nil, err
	}

	// One unacked delivery per worker
	if err := channel.Qos(workers, 0, false); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	log.Info().
		Str("exchange", exchangeName).
		Str("queue", queueName).
		Int("workers", workers).
		Msg("RabbitMQ consumer initialized")

	return &RabbitMQConsumer{
		conn:         conn,
		channel:      channel,
		processor:    processor,
		exchangeName: exchangeName,
		queueName:    queueName,
		workers:      workers,
	}, nil
}

// Start declares and binds the queue, then starts the workers
func (c *RabbitMQConsumer) Start(ctx context.Context) error {
	q, err := c.channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	err = c.channel.QueueBind(
		q.Name,
		RoutingKeyReportCreated,
		c.exchangeName,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to bind queue to %s: %w", RoutingKeyReportCreated, err)
	}

	msgs, err := c.channel.Consume(
		q.Name,      // queue
		consumerTag, // consumer tag
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.run(ctx, msgs)

	log.Info().
		Str("queue", q.Name).
		Msg("Matcher RabbitMQ consumer started")
	return nil
}

// run starts the worker pool over a delivery channel
func (c *RabbitMQConsumer) run(ctx context.Context, msgs <-chan amqp.Delivery) {
	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go func(worker int) {
			defer c.wg.Done()
			for d := range msgs {
				c.handleDelivery(ctx, worker, d)
			}
			log.Debug().Int("worker", worker).Msg("Consumer worker stopped")
		}(i)
	}
}

// handleDelivery runs one trigger. Matching is best-effort, so every parsed
// delivery is acked whatever the outcome; malformed ones are dropped.
func (c *RabbitMQConsumer) handleDelivery(ctx context.Context, worker int, d amqp.Delivery) {
	var event models.ReportCreatedEvent
	if err := json.Unmarshal(d.Body, &event); err != nil {
		metrics.TriggersConsumedTotal.WithLabelValues("malformed").Inc()
		log.Error().Err(err).Str("message_id", d.MessageId).Msg("Failed to unmarshal report.created message")
		if err := d.Nack(false, false); err != nil {
			log.Error().Err(err).Msg("Failed to nack message")
		}
		return
	}

	if event.ReportID == "" {
		metrics.TriggersConsumedTotal.WithLabelValues("missing_id").Inc()
		log.Warn().Str("message_id", d.MessageId).Msg("report.created message missing report_id")
		if err := d.Ack(false); err != nil {
			log.Error().Err(err).Msg("Failed to ack message")
		}
		return
	}

	start := time.Now()
	c.processor.Process(ctx, event.ReportID)
	metrics.TriggersConsumedTotal.WithLabelValues("processed").Inc()

	log.Debug().
		Int("worker", worker).
		Str("report_id", event.ReportID).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("Processed match trigger")

	if err := d.Ack(false); err != nil {
		log.Error().Err(err).Str("report_id", event.ReportID).Msg("Failed to ack message")
	}
}

// Close stops consuming and waits for in-flight deliveries to finish
func (c *RabbitMQConsumer) Close() {
	if c.channel != nil {
		if err := c.channel.Cancel(consumerTag, false); err != nil {
			log.Warn().Err(err).Msg("Failed to cancel RabbitMQ consumer")
		}
	}
	c.wg.Wait()
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
	log.Info().Msg("RabbitMQ consumer closed")
}

// HealthCheck verifies the RabbitMQ connection
func (c *RabbitMQConsumer) HealthCheck() error {
	if c.conn == nil || c.conn.IsClosed() {
		return fmt.Errorf("RabbitMQ consumer connection is closed")
	}
	return nil
}
