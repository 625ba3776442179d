package contracts

import (
	"encoding/json"
	"time"
)

const (
	EventRefundApproved = "refund.approved"

	eventClassDomain = "domain"
	schemaVersion    = "1.0"
)

// EventEnvelope is the platform bus envelope shared by all emitted events.
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventClass    string          `json:"event_class"`
	OccurredAt    time.Time       `json:"occurred_at"`
	PartitionKey  string          `json:"partition_key"`
	SourceService string          `json:"source_service"`
	TraceID       string          `json:"trace_id"`
	SchemaVersion string          `json:"schema_version"`
	Data          json.RawMessage `json:"data"`
}

// RefundApprovedPayload is the data carried by refund.approved events.
// Amounts travel as strings to preserve fixed-point exactness.
type RefundApprovedPayload struct {
	RefundID      string `json:"refund_id"`
	TransactionID string `json:"transaction_id"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	OperatorID    string `json:"operator_id"`
	Scenario      string `json:"scenario"`
	ApprovedAt    string `json:"approved_at"`
}

// NewEnvelope wraps a payload in the standard envelope.
func NewEnvelope(eventID, eventType, partitionKey, sourceService, traceID string, occurredAt time.Time, data []byte) EventEnvelope {
	return EventEnvelope{
		EventID:       eventID,
		EventType:     eventType,
		EventClass:    eventClassDomain,
		OccurredAt:    occurredAt,
		PartitionKey:  partitionKey,
		SourceService: sourceService,
		TraceID:       traceID,
		SchemaVersion: schemaVersion,
		Data:          data,
	}
}
