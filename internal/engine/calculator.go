// Package engine computes refund amounts for the five supported
// transaction shapes. All functions are pure: they read a transaction
// snapshot and return a breakdown, with no I/O and no shared state.
//
// Monetary math uses fixed-point decimals. Division keeps full working
// precision; rounding to 2 places happens once, at the point a value
// becomes ledger-facing.
package engine

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/jmrebull/refund-service/internal/domain"
)

// Guard errors. Each is a recoverable condition the orchestrator converts
// to a CALCULATION_ERROR rejection; none of them may surface as a fault.
var (
	ErrZeroTotal            = errors.New("cannot distribute refund: transaction total is zero")
	ErrZeroSubtotal         = errors.New("cannot calculate item ratio: transaction subtotal is zero")
	ErrNoInstallmentMethod  = errors.New("no installment payment method found on transaction")
	ErrZeroInstallmentCount = errors.New("installment total count cannot be zero")
	ErrMissingExchangeRate  = errors.New("cross-border transaction missing exchange_rate_to_usd")
	ErrZeroExchangeRate     = errors.New("cannot convert currency: exchange rate is zero")
)

// quantize rounds to 2 decimal places. Amounts are non-negative, so
// rounding half away from zero is round-half-up.
func quantize(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}

// distribute splits totalRefund across payment methods by each method's
// weight payment.amount / transactionTotal, rounding each share
// independently. The shares therefore sum to totalRefund only within one
// rounding unit.
func distribute(payments []domain.PaymentMethod, totalRefund, transactionTotal decimal.Decimal) ([]domain.PaymentRefund, error) {
	if transactionTotal.IsZero() {
		return nil, ErrZeroTotal
	}
	refunds := make([]domain.PaymentRefund, 0, len(payments))
	for _, payment := range payments {
		weight := payment.Amount.Div(transactionTotal)
		refunds = append(refunds, domain.PaymentRefund{
			PaymentID:      payment.ID,
			PaymentType:    string(payment.Type),
			OriginalAmount: payment.Amount,
			RefundAmount:   quantize(totalRefund.Mul(weight)),
			Currency:       payment.Currency,
		})
	}
	return refunds, nil
}

// usdEquivalent converts a local-currency amount using the exchange rate
// captured at purchase time. Live rates are never consulted.
func usdEquivalent(localAmount, exchangeRateToUSD decimal.Decimal) (decimal.Decimal, error) {
	if exchangeRateToUSD.IsZero() {
		return decimal.Zero, ErrZeroExchangeRate
	}
	return quantize(localAmount.Div(exchangeRateToUSD)), nil
}

func applyCrossBorder(breakdown *domain.CalculationBreakdown, txn domain.Transaction) error {
	if !txn.IsCrossBorder || txn.ExchangeRateToUSD == nil {
		return nil
	}
	usd, err := usdEquivalent(breakdown.TotalRefund, *txn.ExchangeRateToUSD)
	if err != nil {
		return err
	}
	breakdown.CrossBorder = &domain.CrossBorderDetail{
		USDEquivalent:    usd,
		ExchangeRateUsed: *txn.ExchangeRateToUSD,
	}
	return nil
}

// FullRefund returns the full transaction amount. A single payment method
// is refunded exactly; split payments are each refunded their original
// amount, so no rounding is introduced.
func FullRefund(txn domain.Transaction) (domain.CalculationBreakdown, error) {
	if txn.Total.IsZero() {
		return domain.CalculationBreakdown{}, ErrZeroTotal
	}

	scenario := domain.ScenarioFullSingle
	if len(txn.Payments) > 1 {
		scenario = domain.ScenarioFullSplit
	}
	payments := make([]domain.PaymentRefund, 0, len(txn.Payments))
	for _, payment := range txn.Payments {
		payments = append(payments, domain.PaymentRefund{
			PaymentID:      payment.ID,
			PaymentType:    string(payment.Type),
			OriginalAmount: payment.Amount,
			RefundAmount:   payment.Amount,
			Currency:       payment.Currency,
		})
	}

	breakdown := domain.CalculationBreakdown{
		Scenario:    scenario,
		TotalRefund: txn.Total,
		Payments:    payments,
	}
	if err := applyCrossBorder(&breakdown, txn); err != nil {
		return domain.CalculationBreakdown{}, err
	}
	return breakdown, nil
}

// PartialRefund refunds the item subset named by itemIDs plus tax and
// shipping in proportion to the subset's share of the subtotal. Item ids
// that do not exist on the transaction are silently excluded; callers are
// expected to have validated membership beforehand.
func PartialRefund(txn domain.Transaction, itemIDs []string, alreadyRefunded decimal.Decimal) (domain.CalculationBreakdown, error) {
	_ = alreadyRefunded // balance enforcement happens at the orchestrator

	if txn.Subtotal.IsZero() {
		return domain.CalculationBreakdown{}, ErrZeroSubtotal
	}
	if txn.Total.IsZero() {
		return domain.CalculationBreakdown{}, ErrZeroTotal
	}

	requested := make(map[string]bool, len(itemIDs))
	for _, id := range itemIDs {
		requested[id] = true
	}
	itemsSubtotal := decimal.Zero
	for _, item := range txn.Items {
		if requested[item.ID] {
			itemsSubtotal = itemsSubtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
	}

	ratio := itemsSubtotal.Div(txn.Subtotal)
	refundTax := quantize(txn.Tax.Mul(ratio))
	refundShipping := quantize(txn.Shipping.Mul(ratio))
	totalRefund := quantize(itemsSubtotal.Add(refundTax).Add(refundShipping))

	payments, err := distribute(txn.Payments, totalRefund, txn.Total)
	if err != nil {
		return domain.CalculationBreakdown{}, err
	}

	breakdown := domain.CalculationBreakdown{
		Scenario:    domain.ScenarioPartial,
		TotalRefund: totalRefund,
		Payments:    payments,
		Partial: &domain.PartialDetail{
			ItemsSubtotal:        quantize(itemsSubtotal),
			ItemRatio:            quantize(ratio),
			ProportionalTax:      refundTax,
			ProportionalShipping: refundShipping,
		},
	}
	if err := applyCrossBorder(&breakdown, txn); err != nil {
		return domain.CalculationBreakdown{}, err
	}
	return breakdown, nil
}

// InstallmentRefund refunds only the installments charged so far, minus
// anything already refunded. The result never goes negative.
func InstallmentRefund(txn domain.Transaction, alreadyRefunded decimal.Decimal) (domain.CalculationBreakdown, error) {
	payment := txn.InstallmentPayment()
	if payment == nil {
		return domain.CalculationBreakdown{}, ErrNoInstallmentMethod
	}
	if *payment.InstallmentsTotal == 0 {
		return domain.CalculationBreakdown{}, ErrZeroInstallmentCount
	}
	if txn.Total.IsZero() {
		return domain.CalculationBreakdown{}, ErrZeroTotal
	}

	// Full precision here; the per-installment value is only quantized for
	// the breakdown detail, not for the charged-amount product.
	installmentValue := payment.Amount.Div(decimal.NewFromInt(int64(*payment.InstallmentsTotal)))
	charged := 0
	if payment.InstallmentsCharged != nil {
		charged = *payment.InstallmentsCharged
	}
	chargedAmount := quantize(installmentValue.Mul(decimal.NewFromInt(int64(charged))))
	refundable := chargedAmount.Sub(alreadyRefunded)
	if refundable.IsNegative() {
		refundable = decimal.Zero
	}
	totalRefund := quantize(refundable)

	payments, err := distribute(txn.Payments, totalRefund, txn.Total)
	if err != nil {
		return domain.CalculationBreakdown{}, err
	}

	return domain.CalculationBreakdown{
		Scenario:    domain.ScenarioInstallment,
		TotalRefund: totalRefund,
		Payments:    payments,
		Installment: &domain.InstallmentDetail{
			InstallmentsCharged: charged,
			InstallmentsTotal:   *payment.InstallmentsTotal,
			InstallmentValue:    quantize(installmentValue),
			ChargedAmount:       chargedAmount,
		},
	}, nil
}

// CrossBorderRefund delegates to PartialRefund when itemIDs is non-empty
// and FullRefund otherwise, then stamps the USD conversion onto the
// result using the purchase-time rate.
func CrossBorderRefund(txn domain.Transaction, itemIDs []string, alreadyRefunded decimal.Decimal) (domain.CalculationBreakdown, error) {
	if txn.ExchangeRateToUSD == nil {
		return domain.CalculationBreakdown{}, ErrMissingExchangeRate
	}
	if txn.ExchangeRateToUSD.IsZero() {
		return domain.CalculationBreakdown{}, ErrZeroExchangeRate
	}

	var breakdown domain.CalculationBreakdown
	var err error
	if len(itemIDs) > 0 {
		breakdown, err = PartialRefund(txn, itemIDs, alreadyRefunded)
		if err != nil {
			return domain.CalculationBreakdown{}, err
		}
		breakdown.Scenario = domain.ScenarioCrossBorderPartial
	} else {
		breakdown, err = FullRefund(txn)
		if err != nil {
			return domain.CalculationBreakdown{}, err
		}
		breakdown.Scenario = domain.ScenarioCrossBorderFull
	}

	usd, err := usdEquivalent(breakdown.TotalRefund, *txn.ExchangeRateToUSD)
	if err != nil {
		return domain.CalculationBreakdown{}, err
	}
	breakdown.CrossBorder = &domain.CrossBorderDetail{
		USDEquivalent:    usd,
		ExchangeRateUsed: *txn.ExchangeRateToUSD,
	}
	return breakdown, nil
}
