package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jmrebull/refund-service/internal/domain"
)

// validateRefund runs the business rules in fixed order against current
// store state and returns the transaction on success. The first failing
// rule produces a *domain.Rejection; later rules assume earlier ones held.
// Validation only reads, it never writes.
func (s *Service) validateRefund(ctx context.Context, in ProcessRefundInput) (domain.Transaction, error) {
	txn, err := s.ruleTransactionExists(ctx, in.TransactionID)
	if err != nil {
		return domain.Transaction{}, err
	}
	if err := ruleTransactionStatus(txn); err != nil {
		return domain.Transaction{}, err
	}
	if err := s.ruleNoDuplicateRefund(ctx, in, txn); err != nil {
		return domain.Transaction{}, err
	}
	if in.ItemIDs != nil {
		if err := ruleItemIDs(in.ItemIDs, txn); err != nil {
			return domain.Transaction{}, err
		}
	}
	if err := s.ruleRefundableBalance(ctx, in, txn); err != nil {
		return domain.Transaction{}, err
	}
	if in.ItemIDs == nil {
		if err := ruleInstallmentCharged(txn); err != nil {
			return domain.Transaction{}, err
		}
	}
	return txn, nil
}

func (s *Service) ruleTransactionExists(ctx context.Context, transactionID string) (domain.Transaction, error) {
	txn, err := s.transactions.Get(ctx, transactionID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Transaction{}, domain.NewRejection(
			domain.CodeTransactionNotFound,
			fmt.Sprintf("Transaction %s not found", transactionID),
			http.StatusNotFound, nil)
	}
	if err != nil {
		return domain.Transaction{}, err
	}
	return txn, nil
}

func ruleTransactionStatus(txn domain.Transaction) error {
	details := map[string]any{"status": string(txn.Status)}
	switch txn.Status {
	case domain.TransactionStatusChargebacked:
		return domain.Reject(domain.CodeInvalidTransactionStatus,
			fmt.Sprintf("Transaction %s cannot be refunded: status is CHARGEBACKED. " +
				"Chargebacks are handled by the disputes process, not this service.", txn.ID),
			details)
	case domain.TransactionStatusVoided:
		return domain.Reject(domain.CodeInvalidTransactionStatus,
			fmt.Sprintf("Transaction %s cannot be refunded: status is VOIDED. " +
				"Use void/cancel operations for pre-capture reversals.", txn.ID),
			details)
	case domain.TransactionStatusAuthorized:
		return domain.Reject(domain.CodeInvalidTransactionStatus,
			fmt.Sprintf("Transaction %s is authorized but not yet captured. Use void/cancel instead.", txn.ID),
			details)
	case domain.TransactionStatusCaptured, domain.TransactionStatusSettled:
		return nil
	default:
		return domain.Reject(domain.CodeInvalidTransactionStatus,
			fmt.Sprintf("Transaction %s has status %s, which does not allow refunds.", txn.ID, txn.Status),
			details)
	}
}

// ruleNoDuplicateRefund fires even though the orchestrator's idempotency
// short-circuit would normally have served the cached result; the store's
// Create re-checks the same conditions under its lock, so this rule is the
// early, friendly half of the guarantee.
func (s *Service) ruleNoDuplicateRefund(ctx context.Context, in ProcessRefundInput, txn domain.Transaction) error {
	if in.IdempotencyKey != "" {
		existingID, err := s.idempotency.Lookup(ctx, in.IdempotencyKey)
		if err != nil {
			return err
		}
		if existingID != "" {
			existing, err := s.refunds.Get(ctx, existingID)
			if err == nil {
				return domain.NewRejection(domain.CodeDuplicateRefund,
					fmt.Sprintf("A refund with this idempotency key already exists for transaction %s", txn.ID),
					http.StatusConflict,
					map[string]any{
						"existing_refund_id": existingID,
						"refunded_at":        existing.CreatedAt.Format(time.RFC3339Nano),
					})
			}
			if !errors.Is(err, domain.ErrNotFound) {
				return err
			}
		}
	}

	if in.ItemIDs == nil {
		existingID, err := s.refunds.ExistingFullRefund(ctx, txn.ID)
		if err != nil {
			return err
		}
		if existingID != "" {
			details := map[string]any{"existing_refund_id": existingID}
			if existing, err := s.refunds.Get(ctx, existingID); err == nil {
				details["refunded_at"] = existing.CreatedAt.Format(time.RFC3339Nano)
			}
			return domain.NewRejection(domain.CodeDuplicateRefund,
				fmt.Sprintf("A full refund already exists for transaction %s", txn.ID),
				http.StatusConflict, details)
		}
	}
	return nil
}

func ruleItemIDs(itemIDs []string, txn domain.Transaction) error {
	known := make(map[string]struct{}, len(txn.Items))
	for _, item := range txn.Items {
		known[item.ID] = struct{}{}
	}
	var unknown []string
	for _, id := range itemIDs {
		if _, ok := known[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		return domain.Reject(domain.CodeInvalidItemIDs,
			fmt.Sprintf("The following item IDs were not found in transaction %s: %v", txn.ID, unknown),
			map[string]any{
				"unknown_item_ids": unknown,
				"valid_item_ids":   txn.ItemIDs(),
			})
	}
	return nil
}

func (s *Service) ruleRefundableBalance(ctx context.Context, in ProcessRefundInput, txn domain.Transaction) error {
	alreadyRefunded, err := s.refunds.TotalRefunded(ctx, txn.ID)
	if err != nil {
		return err
	}
	remaining := txn.Total.Sub(alreadyRefunded)
	if remaining.LessThanOrEqual(decimal.Zero) {
		return domain.Reject(domain.CodeRefundAmountExceeded,
			fmt.Sprintf("Transaction %s has already been fully refunded", txn.ID),
			map[string]any{
				"transaction_total":    txn.Total.String(),
				"already_refunded":     alreadyRefunded.String(),
				"remaining_refundable": "0.00",
			})
	}

	// Fast-fail estimate for partials. The orchestrator's post-calculation
	// check remains the authoritative one.
	if in.ItemIDs != nil && txn.Subtotal.IsPositive() {
		estimate := estimatePartialRefund(txn, in.ItemIDs)
		if estimate.GreaterThan(remaining) {
			return domain.Reject(domain.CodeRefundAmountExceeded,
				fmt.Sprintf("Estimated refund %s %s exceeds remaining refundable balance %s %s",
					estimate, txn.Currency, remaining, txn.Currency),
				map[string]any{
					"estimated_refund":  estimate.String(),
					"remaining_balance": remaining.String(),
				})
		}
	}
	return nil
}

func estimatePartialRefund(txn domain.Transaction, itemIDs []string) decimal.Decimal {
	requested := make(map[string]struct{}, len(itemIDs))
	for _, id := range itemIDs {
		requested[id] = struct{}{}
	}
	itemsSubtotal := decimal.Zero
	for _, item := range txn.Items {
		if _, ok := requested[item.ID]; ok {
			itemsSubtotal = itemsSubtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
	}
	ratio := itemsSubtotal.Div(txn.Subtotal)
	tax := txn.Tax.Mul(ratio).Round(2)
	shipping := txn.Shipping.Mul(ratio).Round(2)
	return itemsSubtotal.Add(tax).Add(shipping).Round(2)
}

func ruleInstallmentCharged(txn domain.Transaction) error {
	payment := txn.InstallmentPayment()
	if payment == nil {
		return nil
	}
	charged, total := 0, 0
	if payment.InstallmentsCharged != nil {
		charged = *payment.InstallmentsCharged
	}
	if payment.InstallmentsTotal != nil {
		total = *payment.InstallmentsTotal
	}
	if charged == 0 {
		return domain.Reject(domain.CodeInstallmentNotCharged,
			fmt.Sprintf("No installments have been charged yet for transaction %s. " +
				"Cannot refund uncharged installments.", txn.ID),
			map[string]any{
				"installments_total":   total,
				"installments_charged": charged,
			})
	}
	return nil
}
