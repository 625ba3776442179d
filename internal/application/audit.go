package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmrebull/refund-service/internal/domain"
)

// Audit recording never fails the refund. Append errors are logged and
// swallowed so a broken audit sink cannot block money movement; the
// structured log line preserves the evidence.

func (s *Service) recordRequested(ctx context.Context, in ProcessRefundInput) {
	reasoning := fmt.Sprintf("Refund requested by operator '%s' for transaction %s.", in.OperatorID, in.TransactionID)
	detail := map[string]any{}
	if len(in.ItemIDs) > 0 {
		reasoning += fmt.Sprintf(" Partial refund for items: %v.", in.ItemIDs)
		detail["item_ids"] = in.ItemIDs
	}
	s.appendAudit(ctx, domain.AuditEntry{
		ID:                s.newEntryID(),
		Timestamp:         s.nowFn(),
		TransactionID:     in.TransactionID,
		OperatorID:        in.OperatorID,
		Action:            domain.AuditRefundRequested,
		OperationType:     domain.OperationTypeRefund,
		Reasoning:         reasoning,
		CalculationDetail: detail,
		RequestID:         in.RequestID,
	})
}

func (s *Service) recordRejected(ctx context.Context, in ProcessRefundInput, code, message string) {
	s.appendAudit(ctx, domain.AuditEntry{
		ID:                s.newEntryID(),
		Timestamp:         s.nowFn(),
		TransactionID:     in.TransactionID,
		OperatorID:        in.OperatorID,
		Action:            domain.AuditRefundRejected,
		OperationType:     domain.OperationTypeRefund,
		Reasoning:         fmt.Sprintf("Refund rejected. Code: %s. Reason: %s", code, message),
		CalculationDetail: map[string]any{"error_code": code},
		RequestID:         in.RequestID,
	})
}

func (s *Service) recordApproved(ctx context.Context, result domain.RefundResult, requestID string) {
	amount := result.TotalRefundAmount
	s.appendAudit(ctx, domain.AuditEntry{
		ID:                s.newEntryID(),
		Timestamp:         s.nowFn(),
		RefundID:          result.RefundID,
		TransactionID:     result.TransactionID,
		OperatorID:        result.OperatorID,
		Action:            domain.AuditRefundApproved,
		OperationType:     domain.OperationTypeRefund,
		Reasoning:         approvalReasoning(result),
		CalculationDetail: breakdownSnapshot(result.Breakdown),
		Amount:            &amount,
		Currency:          result.Currency,
		RequestID:         requestID,
	})
}

func (s *Service) appendAudit(ctx context.Context, entry domain.AuditEntry) {
	if err := s.audit.Append(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "audit append failed",
			"action", string(entry.Action),
			"transaction_id", entry.TransactionID,
			"refund_id", entry.RefundID,
			"error", err)
	}
}

// approvalReasoning builds the human-readable explanation stored alongside
// an approved refund.
func approvalReasoning(result domain.RefundResult) string {
	bd := result.Breakdown
	var lines []string

	switch {
	case bd.Partial != nil:
		lines = append(lines, fmt.Sprintf(
			"Partial refund approved for items totalling %s %s. Item ratio: %s (%s / subtotal).",
			bd.Partial.ItemsSubtotal, result.Currency,
			bd.Partial.ItemRatio.StringFixed(4), bd.Partial.ItemsSubtotal))
		lines = append(lines, fmt.Sprintf("Proportional tax: %s (%s).", bd.Partial.ProportionalTax, result.Currency))
		lines = append(lines, fmt.Sprintf("Proportional shipping: %s (%s).", bd.Partial.ProportionalShipping, result.Currency))
	case bd.Installment != nil:
		lines = append(lines, fmt.Sprintf(
			"Installment refund approved. %d of %d installments charged. Installment value: %s %s. Charged amount: %s %s.",
			bd.Installment.InstallmentsCharged, bd.Installment.InstallmentsTotal,
			bd.Installment.InstallmentValue, result.Currency,
			bd.Installment.ChargedAmount, result.Currency))
	default:
		lines = append(lines, fmt.Sprintf("Full refund approved for transaction %s.", result.TransactionID))
	}

	lines = append(lines, fmt.Sprintf("Total refund: %s %s.", result.TotalRefundAmount, result.Currency))

	if len(bd.Payments) > 0 {
		parts := make([]string, 0, len(bd.Payments))
		for _, pr := range bd.Payments {
			parts = append(parts, fmt.Sprintf("%s %s %s", pr.PaymentType, pr.RefundAmount, pr.Currency))
		}
		lines = append(lines, fmt.Sprintf("Distribution: %s.", strings.Join(parts, ", ")))
	}

	if bd.CrossBorder != nil {
		lines = append(lines, fmt.Sprintf("USD equivalent: %s USD (exchange rate: %s).",
			bd.CrossBorder.USDEquivalent, bd.CrossBorder.ExchangeRateUsed))
	}

	return strings.Join(lines, " ")
}

// breakdownSnapshot flattens a breakdown into the audit log's plain-map
// form with decimals rendered as strings.
func breakdownSnapshot(bd domain.CalculationBreakdown) map[string]any {
	payments := make([]map[string]any, 0, len(bd.Payments))
	for _, pr := range bd.Payments {
		payments = append(payments, map[string]any{
			"payment_id":      pr.PaymentID,
			"payment_type":    pr.PaymentType,
			"original_amount": pr.OriginalAmount.String(),
			"refund_amount":   pr.RefundAmount.String(),
			"currency":        pr.Currency,
		})
	}

	snapshot := map[string]any{
		"scenario":              bd.Scenario,
		"items_subtotal":        nil,
		"item_ratio":            nil,
		"proportional_tax":      nil,
		"proportional_shipping": nil,
		"total_refund":          bd.TotalRefund.String(),
		"payment_breakdown":     payments,
		"usd_equivalent":        nil,
		"exchange_rate_used":    nil,
		"installments_charged":  nil,
		"installments_total":    nil,
		"installment_value":     nil,
		"charged_amount":        nil,
	}
	if bd.Partial != nil {
		snapshot["items_subtotal"] = bd.Partial.ItemsSubtotal.String()
		snapshot["item_ratio"] = bd.Partial.ItemRatio.String()
		snapshot["proportional_tax"] = bd.Partial.ProportionalTax.String()
		snapshot["proportional_shipping"] = bd.Partial.ProportionalShipping.String()
	}
	if bd.Installment != nil {
		snapshot["installments_charged"] = bd.Installment.InstallmentsCharged
		snapshot["installments_total"] = bd.Installment.InstallmentsTotal
		snapshot["installment_value"] = bd.Installment.InstallmentValue.String()
		snapshot["charged_amount"] = bd.Installment.ChargedAmount.String()
	}
	if bd.CrossBorder != nil {
		snapshot["usd_equivalent"] = bd.CrossBorder.USDEquivalent.String()
		snapshot["exchange_rate_used"] = bd.CrossBorder.ExchangeRateUsed.String()
	}
	return snapshot
}
