package rabbitmq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Constants for the appointment event topology. The booking subsystem
// publishes lifecycle events to the exchange; this engine only consumes
// cancellations to close outstanding ledger rows.
const (
	AppointmentEventsExchange = "appointments.events"

	CancelledQueue      = "appointments.queue.cancelled"
	CancelledRoutingKey = "appointment.cancelled"

	Direct = "direct"
)

// DeclareTopology declares the exchange, queue and binding this engine
// consumes from. Declarations are idempotent, so both the booking
// subsystem and this consumer can declare the same topology safely.
func DeclareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(AppointmentEventsExchange, Direct, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", AppointmentEventsExchange, err)
	}

	if _, err := ch.QueueDeclare(CancelledQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", CancelledQueue, err)
	}

	if err := ch.QueueBind(CancelledQueue, CancelledRoutingKey, AppointmentEventsExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s to exchange %s: %w", CancelledQueue, AppointmentEventsExchange, err)
	}

	return nil
}
