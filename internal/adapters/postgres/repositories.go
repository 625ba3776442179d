package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jmrebull/refund-service/internal/domain"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Get(ctx context.Context, transactionID string) (domain.Transaction, error) {
	var row transactionModel
	if err := r.db.WithContext(ctx).Take(&row, "id = ?", transactionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Transaction{}, fmt.Errorf("transaction %s: %w", transactionID, domain.ErrNotFound)
		}
		return domain.Transaction{}, err
	}
	return fromTransactionModel(row)
}

func (r *TransactionRepository) List(ctx context.Context) ([]domain.Transaction, error) {
	var rows []transactionModel
	if err := r.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Transaction, 0, len(rows))
	for _, row := range rows {
		txn, err := fromTransactionModel(row)
		if err != nil {
			return nil, err
		}
		out = append(out, txn)
	}
	return out, nil
}

func (r *TransactionRepository) Save(ctx context.Context, txn domain.Transaction) error {
	row, err := toTransactionModel(txn)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, UpdateAll: true}).
		Create(&row).Error
}

type RefundRepository struct {
	db *gorm.DB
}

func NewRefundRepository(db *gorm.DB) *RefundRepository {
	return &RefundRepository{db: db}
}

// Create inserts an approved refund inside one database transaction. The
// parent transaction row is taken FOR UPDATE first, which serializes the
// duplicate and balance re-checks with the insert the same way the memory
// store's mutex does.
func (r *RefundRepository) Create(ctx context.Context, refund domain.RefundResult) error {
	row, err := toRefundModel(refund)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txnRow transactionModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Take(&txnRow, "id = ?", refund.TransactionID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("transaction %s: %w", refund.TransactionID, domain.ErrNotFound)
		}
		if err != nil {
			return err
		}

		if row.IsFull {
			var existing refundModel
			err := tx.Where("transaction_id = ? AND is_full AND total_refund_amount >= ?",
				refund.TransactionID, txnRow.Total).Take(&existing).Error
			if err == nil {
				return fmt.Errorf("full refund %s already exists for transaction %s: %w",
					existing.RefundID, refund.TransactionID, domain.ErrDuplicateRefund)
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		var refunded decimal.NullDecimal
		if err := tx.Model(&refundModel{}).
			Where("transaction_id = ?", refund.TransactionID).
			Select("SUM(total_refund_amount)").Scan(&refunded).Error; err != nil {
			return err
		}
		remaining := txnRow.Total.Sub(refunded.Decimal)
		if refund.TotalRefundAmount.GreaterThan(remaining) {
			return fmt.Errorf("refund %s exceeds remaining balance %s: %w",
				refund.TotalRefundAmount, remaining, domain.ErrRefundAmountExceeded)
		}

		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) || errors.Is(err, gorm.ErrDuplicatedKey) {
				if row.IdempotencyKey != nil {
					return fmt.Errorf("idempotency key already bound: %w", domain.ErrDuplicateRefund)
				}
				return fmt.Errorf("refund id %s already exists: %w", refund.RefundID, domain.ErrConflict)
			}
			return err
		}
		return nil
	})
}

func (r *RefundRepository) Get(ctx context.Context, refundID string) (domain.RefundResult, error) {
	var row refundModel
	if err := r.db.WithContext(ctx).Take(&row, "refund_id = ?", refundID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.RefundResult{}, fmt.Errorf("refund %s: %w", refundID, domain.ErrNotFound)
		}
		return domain.RefundResult{}, err
	}
	return fromRefundModel(row)
}

func (r *RefundRepository) List(ctx context.Context) ([]domain.RefundResult, error) {
	return r.listWhere(ctx, "")
}

func (r *RefundRepository) ListByTransaction(ctx context.Context, transactionID string) ([]domain.RefundResult, error) {
	return r.listWhere(ctx, transactionID)
}

func (r *RefundRepository) listWhere(ctx context.Context, transactionID string) ([]domain.RefundResult, error) {
	q := r.db.WithContext(ctx).Order("created_at, refund_id")
	if transactionID != "" {
		q = q.Where("transaction_id = ?", transactionID)
	}
	var rows []refundModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.RefundResult, 0, len(rows))
	for _, row := range rows {
		refund, err := fromRefundModel(row)
		if err != nil {
			return nil, err
		}
		out = append(out, refund)
	}
	return out, nil
}

func (r *RefundRepository) TotalRefunded(ctx context.Context, transactionID string) (decimal.Decimal, error) {
	var refunded decimal.NullDecimal
	err := r.db.WithContext(ctx).Model(&refundModel{}).
		Where("transaction_id = ?", transactionID).
		Select("SUM(total_refund_amount)").Scan(&refunded).Error
	if err != nil {
		return decimal.Zero, err
	}
	return refunded.Decimal, nil
}

func (r *RefundRepository) ExistingFullRefund(ctx context.Context, transactionID string) (string, error) {
	var txnRow transactionModel
	err := r.db.WithContext(ctx).Take(&txnRow, "id = ?", transactionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	var existing refundModel
	err = r.db.WithContext(ctx).
		Where("transaction_id = ? AND is_full AND total_refund_amount >= ?", transactionID, txnRow.Total).
		Take(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return existing.RefundID, nil
}

type IdempotencyRepository struct {
	db *gorm.DB
}

func NewIdempotencyRepository(db *gorm.DB) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

func (r *IdempotencyRepository) Lookup(ctx context.Context, key string) (string, error) {
	var row refundModel
	err := r.db.WithContext(ctx).Select("refund_id").
		Take(&row, "idempotency_key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return row.RefundID, nil
}

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Append(ctx context.Context, entry domain.AuditEntry) error {
	row, err := toAuditModel(entry)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *AuditRepository) List(ctx context.Context, transactionID, refundID string) ([]domain.AuditEntry, error) {
	q := r.db.WithContext(ctx).Order("seq")
	if transactionID != "" {
		q = q.Where("transaction_id = ?", transactionID)
	}
	if refundID != "" {
		q = q.Where("refund_id = ?", refundID)
	}
	var rows []auditModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.AuditEntry, 0, len(rows))
	for _, row := range rows {
		entry, err := fromAuditModel(row)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}
