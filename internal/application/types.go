// Package application contains the refund orchestrator and its business
// rule validator. It depends only on the ports and the calculation engine;
// transports and stores plug in from the outside.
package application

import (
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jmrebull/refund-service/internal/domain"
	"github.com/jmrebull/refund-service/internal/ports"
)

type Config struct {
	ServiceName string
}

// Dependencies carries everything the service needs. All repositories are
// required; Events and Logger fall back to no-op and slog.Default.
type Dependencies struct {
	Transactions ports.TransactionRepository
	Refunds      ports.RefundRepository
	Idempotency  ports.IdempotencyRepository
	Audit        ports.AuditRepository
	Events       ports.EventPublisher
	Logger       *slog.Logger
}

type Service struct {
	cfg          Config
	transactions ports.TransactionRepository
	refunds      ports.RefundRepository
	idempotency  ports.IdempotencyRepository
	audit        ports.AuditRepository
	events       ports.EventPublisher
	logger       *slog.Logger

	nowFn       func() time.Time
	newRefundID func() string
	newEntryID  func() string
}

func NewService(cfg Config, deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:          cfg,
		transactions: deps.Transactions,
		refunds:      deps.Refunds,
		idempotency:  deps.Idempotency,
		audit:        deps.Audit,
		events:       deps.Events,
		logger:       logger,
		nowFn:        func() time.Time { return time.Now().UTC() },
		newRefundID:  NewRefundID,
		newEntryID:   uuid.NewString,
	}
}

// NewRefundID generates an identifier of the form RF-XXXXXXXX.
func NewRefundID() string {
	return "RF-" + strings.ToUpper(uuid.NewString()[:8])
}

// ProcessRefundInput is a contract-validated refund request. ItemIDs nil
// means full-refund intent; a non-nil slice is always non-empty.
type ProcessRefundInput struct {
	TransactionID  string
	ItemIDs        []string
	OperatorID     string
	Reason         string
	IdempotencyKey string
	RequestID      string
}

type ProcessRefundOutput struct {
	Result domain.RefundResult
	// Replayed is true when the result was served from a previously bound
	// idempotency key instead of a new mutation.
	Replayed bool
}
