package policies

import "context"

// EventPublisher fans booking lifecycle events out to downstream consumers.
// Publishing is best-effort after persistence; failures are logged, never
// propagated to the caller.
type EventPublisher interface {
	Publish(ctx context.Context, eventName, aggregateID string, payload any) error
}
