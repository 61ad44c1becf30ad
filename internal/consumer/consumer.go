package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	repo "github.com/salonkit/appointment-notifier/internal/domain/repository"
	"github.com/salonkit/appointment-notifier/internal/storage/rabbitmq"
)

const (
	// defaultWorkerCount is the number of worker goroutines in the pool.
	defaultWorkerCount = 3
	// handleTimeout bounds the ledger write for one event.
	handleTimeout = 30 * time.Second
)

// appointmentEvent is the payload the booking subsystem publishes on
// appointment lifecycle changes.
type appointmentEvent struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Consumer listens for appointment.cancelled events and closes every
// outstanding ledger record for the cancelled appointment, so the
// dispatcher never messages a customer about a booking that no longer
// exists.
type Consumer struct {
	logger      zerolog.Logger
	conn        *amqp.Connection // Raw connection to create channels for each worker.
	ledger      repo.LedgerRepository
	workerCount int
}

// New creates a new instance of Consumer.
func New(
	logger *zerolog.Logger,
	conn *amqp.Connection,
	ledger repo.LedgerRepository,
) *Consumer {
	return &Consumer{
		logger:      logger.With().Str("component", "event_consumer").Logger(),
		conn:        conn,
		ledger:      ledger,
		workerCount: defaultWorkerCount,
	}
}

// Start launches the worker pool to process events from the queue.
// This is a blocking method that will run until the context is cancelled.
func (c *Consumer) Start(ctx context.Context) {
	c.logger.Info().Int("count", c.workerCount).Msg("Starting worker pool")
	var wg sync.WaitGroup

	for i := 0; i < c.workerCount; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			c.runWorker(ctx, workerID)
		}(i + 1)
	}

	wg.Wait()
	c.logger.Info().Msg("Consumer stopped")
}

// runWorker contains the main logic for a single worker goroutine.
func (c *Consumer) runWorker(ctx context.Context, workerID int) {
	logger := c.logger.With().Int("worker_id", workerID).Logger()
	logger.Info().Msg("Worker started")

	ch, err := c.conn.Channel()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to open channel for worker")
		return
	}
	defer ch.Close()

	if err := rabbitmq.DeclareTopology(ch); err != nil {
		logger.Error().Err(err).Msg("Failed to declare topology")
		return
	}

	if err := ch.Qos(1, 0, false); err != nil {
		logger.Error().Err(err).Msg("Failed to set QoS")
		return
	}

	msgs, err := ch.Consume(
		rabbitmq.CancelledQueue,
		fmt.Sprintf("worker-%d", workerID), // A unique consumer tag.
		false,                              // autoAck: false. We will manually acknowledge messages.
		false,                              // exclusive
		false,                              // noLocal
		false,                              // noWait
		nil,                                // args
	)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to register a consumer")
		return
	}

	logger.Info().Msg("Worker is waiting for events")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Worker stopping due to context cancellation")
			return
		case msg, ok := <-msgs:
			if !ok {
				logger.Warn().Msg("Message channel closed by RabbitMQ, worker stopping")
				return
			}
			c.handleMessage(ctx, msg, logger)
		}
	}
}

// handleMessage processes a single cancellation event.
func (c *Consumer) handleMessage(ctx context.Context, msg amqp.Delivery, logger zerolog.Logger) {
	var event appointmentEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		logger.Error().Err(err).Msg("Failed to unmarshal event, rejecting")
		_ = msg.Nack(false, false)
		return
	}

	log := logger.With().Stringer("appointment_id", event.AppointmentID).Logger()

	hctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	closed, err := c.ledger.CancelForAppointment(hctx, event.AppointmentID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to cancel notifications for appointment, requeueing")
		_ = msg.Nack(false, true)
		return
	}

	if closed > 0 {
		log.Info().Int64("closed", closed).Msg("Closed open notifications for cancelled appointment")
	}
	_ = msg.Ack(false)
}
