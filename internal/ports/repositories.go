package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jmrebull/refund-service/internal/domain"
)

// TransactionRepository stores transaction snapshots. Save is an upsert by
// id; transactions are otherwise immutable.
type TransactionRepository interface {
	Get(ctx context.Context, transactionID string) (domain.Transaction, error)
	List(ctx context.Context) ([]domain.Transaction, error)
	Save(ctx context.Context, txn domain.Transaction) error
}

// RefundRepository stores approved refunds. Create is insert-only and must
// execute its duplicate and balance re-checks atomically with the insert:
// under concurrent identical requests at most one Create may succeed for a
// given full-refund intent or idempotency key. When the refund carries an
// idempotency key, Create binds it in the same critical section; a bound
// key is never remapped.
//
// Create reports failures through the domain sentinels: ErrDuplicateRefund
// for an already-bound key or a second full refund, ErrRefundAmountExceeded
// when the amount no longer fits the remaining balance, ErrNotFound when
// the transaction is gone, ErrConflict for a refund id collision.
type RefundRepository interface {
	Create(ctx context.Context, refund domain.RefundResult) error
	Get(ctx context.Context, refundID string) (domain.RefundResult, error)
	List(ctx context.Context) ([]domain.RefundResult, error)
	ListByTransaction(ctx context.Context, transactionID string) ([]domain.RefundResult, error)
	// TotalRefunded sums all persisted refund amounts for the transaction.
	TotalRefunded(ctx context.Context, transactionID string) (decimal.Decimal, error)
	// ExistingFullRefund returns the id of a prior full refund covering the
	// whole transaction total, or "" when none exists.
	ExistingFullRefund(ctx context.Context, transactionID string) (string, error)
}

// IdempotencyRepository resolves idempotency keys to refund ids. Binding
// happens inside RefundRepository.Create; this port only reads.
type IdempotencyRepository interface {
	// Lookup returns the bound refund id, or "" when the key is unknown.
	Lookup(ctx context.Context, key string) (string, error)
}

// AuditRepository is the append-only audit log. Append is the only write;
// List returns entries in chronological order, optionally filtered.
type AuditRepository interface {
	Append(ctx context.Context, entry domain.AuditEntry) error
	List(ctx context.Context, transactionID, refundID string) ([]domain.AuditEntry, error)
}

// LockoutState tracks authentication failures for one client key.
type LockoutState struct {
	FailedCount  int
	BlockedUntil *time.Time
}

// LockoutStore backs the per-IP auth-failure rate limit at the transport
// edge.
type LockoutStore interface {
	Get(ctx context.Context, key string) (LockoutState, error)
	RecordFailure(ctx context.Context, key string, now time.Time, threshold int, window time.Duration) (LockoutState, error)
	Clear(ctx context.Context, key string) error
}
