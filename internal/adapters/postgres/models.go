package postgres

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jmrebull/refund-service/internal/domain"
)

type transactionModel struct {
	ID                string           `gorm:"column:id;primaryKey"`
	Status            string           `gorm:"column:status"`
	Currency          string           `gorm:"column:currency"`
	Subtotal          decimal.Decimal  `gorm:"column:subtotal;type:numeric(18,2)"`
	Tax               decimal.Decimal  `gorm:"column:tax;type:numeric(18,2)"`
	Shipping          decimal.Decimal  `gorm:"column:shipping;type:numeric(18,2)"`
	Total             decimal.Decimal  `gorm:"column:total;type:numeric(18,2)"`
	Items             []byte           `gorm:"column:items;type:jsonb"`
	Payments          []byte           `gorm:"column:payments;type:jsonb"`
	ExchangeRateToUSD *decimal.Decimal `gorm:"column:exchange_rate_to_usd;type:numeric(18,6)"`
	IsCrossBorder     bool             `gorm:"column:is_cross_border"`
	MerchantID        string           `gorm:"column:merchant_id"`
	UpdatedAt         time.Time        `gorm:"column:updated_at"`
}

func (transactionModel) TableName() string { return "transactions" }

type refundModel struct {
	RefundID          string          `gorm:"column:refund_id;primaryKey"`
	OperationType     string          `gorm:"column:operation_type"`
	TransactionID     string          `gorm:"column:transaction_id;index"`
	Status            string          `gorm:"column:status"`
	TotalRefundAmount decimal.Decimal `gorm:"column:total_refund_amount;type:numeric(18,2)"`
	Currency          string          `gorm:"column:currency"`
	OperatorID        string          `gorm:"column:operator_id"`
	Reason            string          `gorm:"column:reason"`
	Breakdown         []byte          `gorm:"column:breakdown;type:jsonb"`
	// IsFull marks breakdowns with neither item-ratio nor installment
	// fields; it backs the existing-full-refund query without unpacking
	// JSONB.
	IsFull         bool      `gorm:"column:is_full"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	IdempotencyKey *string   `gorm:"column:idempotency_key;uniqueIndex:uq_refunds_idem_key"`
}

func (refundModel) TableName() string { return "refunds" }

type auditModel struct {
	ID                string           `gorm:"column:id;primaryKey"`
	Timestamp         time.Time        `gorm:"column:ts;index"`
	RefundID          *string          `gorm:"column:refund_id;index"`
	TransactionID     string           `gorm:"column:transaction_id;index"`
	OperatorID        string           `gorm:"column:operator_id"`
	Action            string           `gorm:"column:action"`
	OperationType     string           `gorm:"column:operation_type"`
	Reasoning         string           `gorm:"column:reasoning"`
	CalculationDetail []byte           `gorm:"column:calculation_detail;type:jsonb"`
	Amount            *decimal.Decimal `gorm:"column:amount;type:numeric(18,2)"`
	Currency          *string          `gorm:"column:currency"`
	RequestID         string           `gorm:"column:request_id"`
	// Seq is database-assigned and gives a total append order even when
	// timestamps collide.
	Seq int64 `gorm:"column:seq;->"`
}

func (auditModel) TableName() string { return "audit_log" }

func toTransactionModel(txn domain.Transaction) (transactionModel, error) {
	items, err := json.Marshal(txn.Items)
	if err != nil {
		return transactionModel{}, err
	}
	payments, err := json.Marshal(txn.Payments)
	if err != nil {
		return transactionModel{}, err
	}
	return transactionModel{
		ID:                txn.ID,
		Status:            string(txn.Status),
		Currency:          txn.Currency,
		Subtotal:          txn.Subtotal,
		Tax:               txn.Tax,
		Shipping:          txn.Shipping,
		Total:             txn.Total,
		Items:             items,
		Payments:          payments,
		ExchangeRateToUSD: txn.ExchangeRateToUSD,
		IsCrossBorder:     txn.IsCrossBorder,
		MerchantID:        txn.MerchantID,
		UpdatedAt:         time.Now().UTC(),
	}, nil
}

func fromTransactionModel(row transactionModel) (domain.Transaction, error) {
	var items []domain.Item
	if len(row.Items) > 0 {
		if err := json.Unmarshal(row.Items, &items); err != nil {
			return domain.Transaction{}, err
		}
	}
	var payments []domain.PaymentMethod
	if len(row.Payments) > 0 {
		if err := json.Unmarshal(row.Payments, &payments); err != nil {
			return domain.Transaction{}, err
		}
	}
	return domain.Transaction{
		ID:                row.ID,
		Status:            domain.TransactionStatus(row.Status),
		Currency:          row.Currency,
		Subtotal:          row.Subtotal,
		Tax:               row.Tax,
		Shipping:          row.Shipping,
		Total:             row.Total,
		Items:             items,
		Payments:          payments,
		ExchangeRateToUSD: row.ExchangeRateToUSD,
		IsCrossBorder:     row.IsCrossBorder,
		MerchantID:        row.MerchantID,
	}, nil
}

func toRefundModel(refund domain.RefundResult) (refundModel, error) {
	breakdown, err := json.Marshal(refund.Breakdown)
	if err != nil {
		return refundModel{}, err
	}
	row := refundModel{
		RefundID:          refund.RefundID,
		OperationType:     refund.OperationType,
		TransactionID:     refund.TransactionID,
		Status:            refund.Status,
		TotalRefundAmount: refund.TotalRefundAmount,
		Currency:          refund.Currency,
		OperatorID:        refund.OperatorID,
		Reason:            refund.Reason,
		Breakdown:         breakdown,
		IsFull:            refund.Breakdown.IsFull(),
		CreatedAt:         refund.CreatedAt,
	}
	if refund.IdempotencyKey != "" {
		key := refund.IdempotencyKey
		row.IdempotencyKey = &key
	}
	return row, nil
}

func fromRefundModel(row refundModel) (domain.RefundResult, error) {
	var breakdown domain.CalculationBreakdown
	if len(row.Breakdown) > 0 {
		if err := json.Unmarshal(row.Breakdown, &breakdown); err != nil {
			return domain.RefundResult{}, err
		}
	}
	out := domain.RefundResult{
		RefundID:          row.RefundID,
		OperationType:     row.OperationType,
		TransactionID:     row.TransactionID,
		Status:            row.Status,
		TotalRefundAmount: row.TotalRefundAmount,
		Currency:          row.Currency,
		OperatorID:        row.OperatorID,
		Reason:            row.Reason,
		Breakdown:         breakdown,
		CreatedAt:         row.CreatedAt,
	}
	if row.IdempotencyKey != nil {
		out.IdempotencyKey = *row.IdempotencyKey
	}
	return out, nil
}

func toAuditModel(entry domain.AuditEntry) (auditModel, error) {
	detail, err := json.Marshal(entry.CalculationDetail)
	if err != nil {
		return auditModel{}, err
	}
	row := auditModel{
		ID:                entry.ID,
		Timestamp:         entry.Timestamp,
		TransactionID:     entry.TransactionID,
		OperatorID:        entry.OperatorID,
		Action:            string(entry.Action),
		OperationType:     entry.OperationType,
		Reasoning:         entry.Reasoning,
		CalculationDetail: detail,
		Amount:            entry.Amount,
		RequestID:         entry.RequestID,
	}
	if entry.RefundID != "" {
		id := entry.RefundID
		row.RefundID = &id
	}
	if entry.Currency != "" {
		cur := entry.Currency
		row.Currency = &cur
	}
	return row, nil
}

func fromAuditModel(row auditModel) (domain.AuditEntry, error) {
	var detail map[string]any
	if len(row.CalculationDetail) > 0 {
		if err := json.Unmarshal(row.CalculationDetail, &detail); err != nil {
			return domain.AuditEntry{}, err
		}
	}
	out := domain.AuditEntry{
		ID:                row.ID,
		Timestamp:         row.Timestamp,
		TransactionID:     row.TransactionID,
		OperatorID:        row.OperatorID,
		Action:            domain.AuditAction(row.Action),
		OperationType:     row.OperationType,
		Reasoning:         row.Reasoning,
		CalculationDetail: detail,
		Amount:            row.Amount,
		RequestID:         row.RequestID,
	}
	if row.RefundID != nil {
		out.RefundID = *row.RefundID
	}
	if row.Currency != nil {
		out.Currency = *row.Currency
	}
	return out, nil
}
