package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type AuditAction string

const (
	AuditRefundRequested AuditAction = "REFUND_REQUESTED"
	AuditRefundApproved  AuditAction = "REFUND_APPROVED"
	AuditRefundRejected  AuditAction = "REFUND_REJECTED"
)

// AuditEntry is an append-only record of one refund processing step.
// Entries are never mutated or removed through any public interface.
type AuditEntry struct {
	ID                string           `json:"id"`
	Timestamp         time.Time        `json:"timestamp"`
	RefundID          string           `json:"refund_id,omitempty"`
	TransactionID     string           `json:"transaction_id"`
	OperatorID        string           `json:"operator_id"`
	Action            AuditAction      `json:"action"`
	OperationType     string           `json:"operation_type"`
	Reasoning         string           `json:"reasoning"`
	CalculationDetail map[string]any   `json:"calculation_detail"`
	Amount            *decimal.Decimal `json:"amount,omitempty"`
	Currency          string           `json:"currency,omitempty"`
	RequestID         string           `json:"request_id"`
}
