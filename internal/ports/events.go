package ports

import "context"

// EventPublisher emits domain events to the platform bus. Publishing is
// best effort from the orchestrator's point of view: a failed publish is
// logged, never converted into a refund failure.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error
}
