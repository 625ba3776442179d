// Package events holds the outgoing event bus adapters. The logging
// publisher is the default when no brokers are configured.
package events

import (
	"context"
	"log/slog"
	"sync"
)

type LoggingPublisher struct {
	logger *slog.Logger
}

func NewLoggingPublisher(logger *slog.Logger) *LoggingPublisher {
	return &LoggingPublisher{logger: logger}
}

func (p *LoggingPublisher) Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error {
	p.logger.InfoContext(ctx, "event published",
		"module", "events.publisher",
		"layer", "adapter",
		"operation", "publish",
		"outcome", "success",
		"event_type", eventType,
		"partition_key", partitionKey,
		"payload_bytes", len(payload),
	)
	return nil
}

// Published is a captured event, used by the recording publisher.
type Published struct {
	EventType    string
	Payload      []byte
	PartitionKey string
}

// RecordingPublisher keeps published events in memory. Test helper.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []Published
}

func NewRecordingPublisher() *RecordingPublisher {
	return &RecordingPublisher{}
}

func (p *RecordingPublisher) Publish(_ context.Context, eventType string, payload []byte, partitionKey string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, Published{
		EventType:    eventType,
		Payload:      append([]byte(nil), payload...),
		PartitionKey: partitionKey,
	})
	return nil
}

func (p *RecordingPublisher) Events() []Published {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Published, len(p.events))
	copy(out, p.events)
	return out
}
