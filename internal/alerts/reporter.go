package alerts

import (
	"context"

	"github.com/salonkit/appointment-notifier/internal/domain/model"
)

// Reporter defines the interface for surfacing engine faults to a
// human operator. Dispatch failures are terminal by design (no
// auto-retry against a conversational channel), so someone has to see
// them.
type Reporter interface {
	// DispatchFailure reports a notification that could not be sent.
	DispatchFailure(ctx context.Context, rec *model.NotificationRecord, reason string)

	// IntegrityFault reports a data-integrity violation the engine
	// resolved deterministically but should never have seen.
	IntegrityFault(ctx context.Context, detail string)
}
