package contracts

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// RefundRequest is the only mutating request body. The schema admits
// exactly the documented fields; the handler decodes it with unknown
// fields disallowed, so an idempotency key smuggled into the payload is
// rejected instead of silently ignored (the key travels in the
// Idempotency-Key header).
type RefundRequest struct {
	TransactionID string   `json:"transaction_id"`
	ItemIDs       []string `json:"item_ids,omitempty"`
	OperatorID    string   `json:"operator_id"`
	Reason        string   `json:"reason"`
}

var (
	transactionIDPattern = regexp.MustCompile(`^[A-Z0-9_-]+$`)
	operatorIDPattern    = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

const (
	maxItemIDs          = 100
	maxReasonLength     = 500
	maxIdentifierLength = 50
	maxIdempotencyKey   = 100
)

// Validate applies the bounds and pattern checks that run before the
// request reaches business validation.
func (r RefundRequest) Validate() error {
	if r.TransactionID == "" || len(r.TransactionID) > maxIdentifierLength {
		return fmt.Errorf("transaction_id must be 1-%d characters", maxIdentifierLength)
	}
	if !transactionIDPattern.MatchString(r.TransactionID) {
		return fmt.Errorf("transaction_id must match %s", transactionIDPattern.String())
	}
	if r.OperatorID == "" || len(r.OperatorID) > maxIdentifierLength {
		return fmt.Errorf("operator_id must be 1-%d characters", maxIdentifierLength)
	}
	if !operatorIDPattern.MatchString(r.OperatorID) {
		return fmt.Errorf("operator_id must match %s", operatorIDPattern.String())
	}
	if strings.TrimSpace(r.Reason) == "" || len(r.Reason) > maxReasonLength {
		return fmt.Errorf("reason must be 1-%d characters", maxReasonLength)
	}
	if r.ItemIDs != nil {
		if len(r.ItemIDs) == 0 {
			return fmt.Errorf("item_ids must not be empty when present; omit it for a full refund")
		}
		if len(r.ItemIDs) > maxItemIDs {
			return fmt.Errorf("item_ids must contain at most %d entries", maxItemIDs)
		}
		for _, id := range r.ItemIDs {
			if id == "" || len(id) > maxIdentifierLength {
				return fmt.Errorf("item_ids entries must be 1-%d characters", maxIdentifierLength)
			}
		}
	}
	return nil
}

// ValidateIdempotencyKey bounds-checks the out-of-band key. An empty key
// means the caller opted out of idempotency.
func ValidateIdempotencyKey(key string) error {
	if key == "" {
		return nil
	}
	if len(key) > maxIdempotencyKey {
		return fmt.Errorf("idempotency key must be 1-%d characters", maxIdempotencyKey)
	}
	return nil
}

// Meta accompanies every successful response.
type Meta struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Envelope is the success wire shape: {"data": ..., "meta": {...}}.
type Envelope struct {
	Data any  `json:"data"`
	Meta Meta `json:"meta"`
}

// ErrorPayload is the error wire shape nested under "error".
type ErrorPayload struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error ErrorPayload `json:"error"`
}
