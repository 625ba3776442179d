package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jmrebull/refund-service/internal/contracts"
	"github.com/jmrebull/refund-service/internal/domain"
	"github.com/jmrebull/refund-service/internal/engine"
)

// ProcessRefund runs a refund request end to end:
//
//  1. Idempotency short-circuit: a bound key replays the existing result.
//  2. Record REFUND_REQUESTED before anything can fail.
//  3. Business rule validation.
//  4. Scenario selection and calculation.
//  5. Authoritative balance re-check against the calculated amount.
//  6. Persist the RefundResult (the store re-checks and binds the key
//     atomically under its lock).
//  7. Record REFUND_APPROVED and publish the approval event.
//
// Failures surface as *domain.Rejection for business outcomes; anything
// else is a server fault.
func (s *Service) ProcessRefund(ctx context.Context, in ProcessRefundInput) (ProcessRefundOutput, error) {
	if in.IdempotencyKey != "" {
		existing, found, err := s.replayByKey(ctx, in.IdempotencyKey)
		if err != nil {
			return ProcessRefundOutput{}, err
		}
		if found {
			s.logger.InfoContext(ctx, "idempotent replay",
				"transaction_id", in.TransactionID, "refund_id", existing.RefundID)
			return ProcessRefundOutput{Result: existing, Replayed: true}, nil
		}
	}

	s.recordRequested(ctx, in)

	txn, err := s.validateRefund(ctx, in)
	if err != nil {
		if rej, ok := domain.AsRejection(err); ok {
			s.recordRejected(ctx, in, rej.Code, rej.Message)
		}
		return ProcessRefundOutput{}, err
	}

	alreadyRefunded, err := s.refunds.TotalRefunded(ctx, txn.ID)
	if err != nil {
		return ProcessRefundOutput{}, err
	}

	breakdown, err := selectCalculation(txn, in.ItemIDs, alreadyRefunded)
	if err != nil {
		rej := domain.Reject(domain.CodeCalculationError, err.Error(), nil)
		s.recordRejected(ctx, in, rej.Code, rej.Message)
		return ProcessRefundOutput{}, rej
	}

	// Authoritative balance check; the validator's rule is only an estimate.
	remaining := txn.Total.Sub(alreadyRefunded)
	if breakdown.TotalRefund.GreaterThan(remaining) {
		rej := domain.Reject(domain.CodeRefundAmountExceeded,
			fmt.Sprintf("Calculated refund %s %s exceeds remaining refundable balance %s %s",
				breakdown.TotalRefund, txn.Currency, remaining, txn.Currency),
			map[string]any{
				"calculated_refund": breakdown.TotalRefund.String(),
				"remaining_balance": remaining.String(),
			})
		s.recordRejected(ctx, in, rej.Code, rej.Message)
		return ProcessRefundOutput{}, rej
	}

	result := domain.RefundResult{
		RefundID:          s.newRefundID(),
		OperationType:     domain.OperationTypeRefund,
		TransactionID:     txn.ID,
		Status:            domain.RefundStatusApproved,
		TotalRefundAmount: breakdown.TotalRefund,
		Currency:          txn.Currency,
		OperatorID:        in.OperatorID,
		Reason:            in.Reason,
		Breakdown:         breakdown,
		CreatedAt:         s.nowFn(),
		IdempotencyKey:    in.IdempotencyKey,
	}

	if err := s.refunds.Create(ctx, result); err != nil {
		return s.handleCreateFailure(ctx, in, txn, err)
	}

	s.recordApproved(ctx, result, in.RequestID)
	s.publishApproved(ctx, result, in.RequestID)

	s.logger.InfoContext(ctx, "refund approved",
		"refund_id", result.RefundID,
		"transaction_id", result.TransactionID,
		"amount", result.TotalRefundAmount.String(),
		"currency", result.Currency,
		"scenario", breakdown.Scenario)
	return ProcessRefundOutput{Result: result}, nil
}

func (s *Service) replayByKey(ctx context.Context, key string) (domain.RefundResult, bool, error) {
	existingID, err := s.idempotency.Lookup(ctx, key)
	if err != nil || existingID == "" {
		return domain.RefundResult{}, false, err
	}
	existing, err := s.refunds.Get(ctx, existingID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.RefundResult{}, false, nil
	}
	if err != nil {
		return domain.RefundResult{}, false, err
	}
	return existing, true, nil
}

// handleCreateFailure translates the store's atomic re-check sentinels into
// business outcomes. Losing a same-key race is not a failure at all: the
// winner's result is replayed.
func (s *Service) handleCreateFailure(ctx context.Context, in ProcessRefundInput, txn domain.Transaction, err error) (ProcessRefundOutput, error) {
	switch {
	case errors.Is(err, domain.ErrDuplicateRefund):
		if in.IdempotencyKey != "" {
			if existing, found, lookupErr := s.replayByKey(ctx, in.IdempotencyKey); lookupErr == nil && found {
				return ProcessRefundOutput{Result: existing, Replayed: true}, nil
			}
		}
		rej := domain.NewRejection(domain.CodeDuplicateRefund,
			fmt.Sprintf("A full refund already exists for transaction %s", txn.ID),
			http.StatusConflict, nil)
		s.recordRejected(ctx, in, rej.Code, rej.Message)
		return ProcessRefundOutput{}, rej
	case errors.Is(err, domain.ErrRefundAmountExceeded):
		rej := domain.Reject(domain.CodeRefundAmountExceeded,
			fmt.Sprintf("Refund no longer fits the remaining refundable balance of transaction %s", txn.ID), nil)
		s.recordRejected(ctx, in, rej.Code, rej.Message)
		return ProcessRefundOutput{}, rej
	default:
		return ProcessRefundOutput{}, err
	}
}

// selectCalculation routes to the engine scenario. Cross-border wins over
// everything; an installment transaction with no item subset routes to the
// installment path; an item subset routes to partial; otherwise full.
func selectCalculation(txn domain.Transaction, itemIDs []string, alreadyRefunded decimal.Decimal) (domain.CalculationBreakdown, error) {
	switch {
	case txn.IsCrossBorder:
		return engine.CrossBorderRefund(txn, itemIDs, alreadyRefunded)
	case txn.HasInstallments() && itemIDs == nil:
		return engine.InstallmentRefund(txn, alreadyRefunded)
	case itemIDs != nil:
		return engine.PartialRefund(txn, itemIDs, alreadyRefunded)
	default:
		return engine.FullRefund(txn)
	}
}

func (s *Service) publishApproved(ctx context.Context, result domain.RefundResult, traceID string) {
	if s.events == nil {
		return
	}
	payload, err := json.Marshal(contracts.RefundApprovedPayload{
		RefundID:      result.RefundID,
		TransactionID: result.TransactionID,
		Amount:        result.TotalRefundAmount.String(),
		Currency:      result.Currency,
		OperatorID:    result.OperatorID,
		Scenario:      result.Breakdown.Scenario,
		ApprovedAt:    result.CreatedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "event payload marshal failed", "refund_id", result.RefundID, "error", err)
		return
	}
	envelope := contracts.NewEnvelope(uuid.NewString(), contracts.EventRefundApproved,
		result.TransactionID, s.cfg.ServiceName, traceID, s.nowFn(), payload)
	raw, err := json.Marshal(envelope)
	if err != nil {
		s.logger.ErrorContext(ctx, "event envelope marshal failed", "refund_id", result.RefundID, "error", err)
		return
	}
	if err := s.events.Publish(ctx, contracts.EventRefundApproved, raw, result.TransactionID); err != nil {
		// Best effort: a broken bus must not fail an approved refund.
		s.logger.WarnContext(ctx, "event publish failed",
			"event_type", contracts.EventRefundApproved, "refund_id", result.RefundID, "error", err)
	}
}

// GetRefund retrieves a single refund by id.
func (s *Service) GetRefund(ctx context.Context, refundID string) (domain.RefundResult, error) {
	return s.refunds.Get(ctx, refundID)
}

// ListRefunds lists refunds, optionally filtered by transaction.
func (s *Service) ListRefunds(ctx context.Context, transactionID string) ([]domain.RefundResult, error) {
	if transactionID != "" {
		return s.refunds.ListByTransaction(ctx, transactionID)
	}
	return s.refunds.List(ctx)
}

// GetTransaction retrieves a transaction snapshot by id.
func (s *Service) GetTransaction(ctx context.Context, transactionID string) (domain.Transaction, error) {
	return s.transactions.Get(ctx, transactionID)
}

// ListTransactions lists all transaction snapshots.
func (s *Service) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	return s.transactions.List(ctx)
}

// AuditEntries returns audit log entries, optionally filtered.
func (s *Service) AuditEntries(ctx context.Context, transactionID, refundID string) ([]domain.AuditEntry, error) {
	return s.audit.List(ctx, transactionID, refundID)
}
