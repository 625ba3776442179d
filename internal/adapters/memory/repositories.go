package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jmrebull/refund-service/internal/domain"
)

// TransactionRepository implements ports.TransactionRepository.
type TransactionRepository struct {
	store *Store
}

func NewTransactionRepository(store *Store) *TransactionRepository {
	return &TransactionRepository{store: store}
}

func (r *TransactionRepository) Get(_ context.Context, transactionID string) (domain.Transaction, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	txn, ok := s.transactions[transactionID]
	if !ok {
		return domain.Transaction{}, fmt.Errorf("transaction %s: %w", transactionID, domain.ErrNotFound)
	}
	return txn, nil
}

func (r *TransactionRepository) List(_ context.Context) ([]domain.Transaction, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Transaction, 0, len(s.transactions))
	for _, txn := range s.transactions {
		out = append(out, txn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *TransactionRepository) Save(_ context.Context, txn domain.Transaction) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[txn.ID] = txn
	return nil
}

// RefundRepository implements ports.RefundRepository.
type RefundRepository struct {
	store *Store
}

func NewRefundRepository(store *Store) *RefundRepository {
	return &RefundRepository{store: store}
}

// Create inserts an approved refund. The duplicate and balance re-checks
// run under the same lock as the insert and the idempotency-key binding,
// so of N racing identical requests exactly one can succeed; the rest
// observe the winner and fail with the matching sentinel.
func (r *RefundRepository) Create(_ context.Context, refund domain.RefundResult) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.refunds[refund.RefundID]; exists {
		return fmt.Errorf("refund id %s already exists: %w", refund.RefundID, domain.ErrConflict)
	}
	if refund.IdempotencyKey != "" {
		if bound, exists := s.idempotencyKeys[refund.IdempotencyKey]; exists {
			return fmt.Errorf("idempotency key already bound to refund %s: %w", bound, domain.ErrDuplicateRefund)
		}
	}

	txn, ok := s.transactions[refund.TransactionID]
	if !ok {
		return fmt.Errorf("transaction %s: %w", refund.TransactionID, domain.ErrNotFound)
	}

	if refund.Breakdown.IsFull() {
		if existing := s.fullRefundLocked(refund.TransactionID); existing != "" {
			return fmt.Errorf("full refund %s already exists for transaction %s: %w",
				existing, refund.TransactionID, domain.ErrDuplicateRefund)
		}
	}

	remaining := txn.Total.Sub(s.totalRefundedLocked(refund.TransactionID))
	if refund.TotalRefundAmount.GreaterThan(remaining) {
		return fmt.Errorf("refund %s exceeds remaining balance %s: %w",
			refund.TotalRefundAmount, remaining, domain.ErrRefundAmountExceeded)
	}

	s.refunds[refund.RefundID] = refund
	s.refundsByTxn[refund.TransactionID] = append(s.refundsByTxn[refund.TransactionID], refund.RefundID)
	s.refundOrder = append(s.refundOrder, refund.RefundID)
	if refund.IdempotencyKey != "" {
		s.idempotencyKeys[refund.IdempotencyKey] = refund.RefundID
	}
	return nil
}

func (r *RefundRepository) Get(_ context.Context, refundID string) (domain.RefundResult, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	refund, ok := s.refunds[refundID]
	if !ok {
		return domain.RefundResult{}, fmt.Errorf("refund %s: %w", refundID, domain.ErrNotFound)
	}
	return refund, nil
}

func (r *RefundRepository) List(_ context.Context) ([]domain.RefundResult, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.RefundResult, 0, len(s.refundOrder))
	for _, id := range s.refundOrder {
		out = append(out, s.refunds[id])
	}
	return out, nil
}

func (r *RefundRepository) ListByTransaction(_ context.Context, transactionID string) ([]domain.RefundResult, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.refundsByTxn[transactionID]
	out := make([]domain.RefundResult, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.refunds[id])
	}
	return out, nil
}

func (r *RefundRepository) TotalRefunded(_ context.Context, transactionID string) (decimal.Decimal, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalRefundedLocked(transactionID), nil
}

func (r *RefundRepository) ExistingFullRefund(_ context.Context, transactionID string) (string, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fullRefundLocked(transactionID), nil
}

// IdempotencyRepository implements ports.IdempotencyRepository.
type IdempotencyRepository struct {
	store *Store
}

func NewIdempotencyRepository(store *Store) *IdempotencyRepository {
	return &IdempotencyRepository{store: store}
}

func (r *IdempotencyRepository) Lookup(_ context.Context, key string) (string, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idempotencyKeys[key], nil
}

// AuditRepository implements ports.AuditRepository.
type AuditRepository struct {
	store *Store
}

func NewAuditRepository(store *Store) *AuditRepository {
	return &AuditRepository{store: store}
}

func (r *AuditRepository) Append(_ context.Context, entry domain.AuditEntry) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditLog = append(s.auditLog, entry)
	return nil
}

func (r *AuditRepository) List(_ context.Context, transactionID, refundID string) ([]domain.AuditEntry, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AuditEntry, 0, len(s.auditLog))
	for _, entry := range s.auditLog {
		if transactionID != "" && entry.TransactionID != transactionID {
			continue
		}
		if refundID != "" && entry.RefundID != refundID {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}
