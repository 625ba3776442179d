// Package memory is the reference store: every persisted entity lives in
// process memory behind one mutex. The single critical section serializes
// refund processing across all transactions, which is acceptable because
// validation and calculation are cheap and correctness outranks throughput
// here.
package memory

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/jmrebull/refund-service/internal/domain"
)

// Store is the shared state behind the per-port repositories. One Store
// instance is one mutual-exclusion domain.
type Store struct {
	mu sync.Mutex

	transactions map[string]domain.Transaction
	refunds      map[string]domain.RefundResult
	// refundsByTxn preserves insertion order per transaction.
	refundsByTxn    map[string][]string
	refundOrder     []string
	idempotencyKeys map[string]string
	auditLog        []domain.AuditEntry
}

func NewStore() *Store {
	return &Store{
		transactions:    make(map[string]domain.Transaction),
		refunds:         make(map[string]domain.RefundResult),
		refundsByTxn:    make(map[string][]string),
		idempotencyKeys: make(map[string]string),
	}
}

func (s *Store) totalRefundedLocked(transactionID string) decimal.Decimal {
	total := decimal.Zero
	for _, id := range s.refundsByTxn[transactionID] {
		total = total.Add(s.refunds[id].TotalRefundAmount)
	}
	return total
}

func (s *Store) fullRefundLocked(transactionID string) string {
	txn, ok := s.transactions[transactionID]
	if !ok {
		return ""
	}
	for _, id := range s.refundsByTxn[transactionID] {
		refund := s.refunds[id]
		if refund.Breakdown.IsFull() && refund.TotalRefundAmount.GreaterThanOrEqual(txn.Total) {
			return id
		}
	}
	return ""
}
