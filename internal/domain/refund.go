package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Scenario labels carried on every breakdown. The letter prefixes are part
// of the wire contract consumed by downstream reconciliation tooling.
const (
	ScenarioFullSingle        = "A: Full refund, single payment method"
	ScenarioFullSplit         = "B: Full refund, split payment"
	ScenarioPartial           = "C: Partial refund, item subset"
	ScenarioInstallment       = "D: Installment refund"
	ScenarioCrossBorderFull   = "E: Cross-border full refund"
	ScenarioCrossBorderPartial = "E: Cross-border partial refund"
)

// PaymentRefund is one payment method's share of a refund.
type PaymentRefund struct {
	PaymentID      string          `json:"payment_id"`
	PaymentType    string          `json:"payment_type"`
	OriginalAmount decimal.Decimal `json:"original_amount"`
	RefundAmount   decimal.Decimal `json:"refund_amount"`
	Currency       string          `json:"currency"`
}

// PartialDetail carries the item-subset figures of a partial refund.
type PartialDetail struct {
	ItemsSubtotal        decimal.Decimal
	ItemRatio            decimal.Decimal
	ProportionalTax      decimal.Decimal
	ProportionalShipping decimal.Decimal
}

// InstallmentDetail carries the installment figures of an installment refund.
type InstallmentDetail struct {
	InstallmentsCharged int
	InstallmentsTotal   int
	InstallmentValue    decimal.Decimal
	ChargedAmount       decimal.Decimal
}

// CrossBorderDetail carries the USD conversion applied to a cross-border
// refund. The rate is always the one captured at purchase time.
type CrossBorderDetail struct {
	USDEquivalent    decimal.Decimal
	ExchangeRateUsed decimal.Decimal
}

// CalculationBreakdown is the engine's output: a scenario tag, the total,
// the per-payment distribution, and at most one of the optional detail
// groups. The JSON shape stays flat with absent groups rendered as nulls,
// so consumers of the original wire contract keep working.
type CalculationBreakdown struct {
	Scenario    string
	TotalRefund decimal.Decimal
	Payments    []PaymentRefund
	Partial     *PartialDetail
	Installment *InstallmentDetail
	CrossBorder *CrossBorderDetail
}

// IsFull reports whether the breakdown represents a full refund, i.e. it
// carries neither item-subset nor installment detail. Cross-border full
// refunds count as full.
func (b CalculationBreakdown) IsFull() bool {
	return b.Partial == nil && b.Installment == nil
}

type breakdownWire struct {
	Scenario             string           `json:"scenario"`
	ItemsSubtotal        *decimal.Decimal `json:"items_subtotal"`
	ItemRatio            *decimal.Decimal `json:"item_ratio"`
	ProportionalTax      *decimal.Decimal `json:"proportional_tax"`
	ProportionalShipping *decimal.Decimal `json:"proportional_shipping"`
	TotalRefund          decimal.Decimal  `json:"total_refund"`
	PaymentBreakdown     []PaymentRefund  `json:"payment_breakdown"`
	USDEquivalent        *decimal.Decimal `json:"usd_equivalent"`
	ExchangeRateUsed     *decimal.Decimal `json:"exchange_rate_used"`
	InstallmentsCharged  *int             `json:"installments_charged"`
	InstallmentsTotal    *int             `json:"installments_total"`
	InstallmentValue     *decimal.Decimal `json:"installment_value"`
	ChargedAmount        *decimal.Decimal `json:"charged_amount"`
}

func (b CalculationBreakdown) MarshalJSON() ([]byte, error) {
	wire := breakdownWire{
		Scenario:         b.Scenario,
		TotalRefund:      b.TotalRefund,
		PaymentBreakdown: b.Payments,
	}
	if b.Partial != nil {
		wire.ItemsSubtotal = &b.Partial.ItemsSubtotal
		wire.ItemRatio = &b.Partial.ItemRatio
		wire.ProportionalTax = &b.Partial.ProportionalTax
		wire.ProportionalShipping = &b.Partial.ProportionalShipping
	}
	if b.Installment != nil {
		wire.InstallmentsCharged = &b.Installment.InstallmentsCharged
		wire.InstallmentsTotal = &b.Installment.InstallmentsTotal
		wire.InstallmentValue = &b.Installment.InstallmentValue
		wire.ChargedAmount = &b.Installment.ChargedAmount
	}
	if b.CrossBorder != nil {
		wire.USDEquivalent = &b.CrossBorder.USDEquivalent
		wire.ExchangeRateUsed = &b.CrossBorder.ExchangeRateUsed
	}
	return json.Marshal(wire)
}

func (b *CalculationBreakdown) UnmarshalJSON(data []byte) error {
	var wire breakdownWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	out := CalculationBreakdown{
		Scenario:    wire.Scenario,
		TotalRefund: wire.TotalRefund,
		Payments:    wire.PaymentBreakdown,
	}
	if wire.ItemRatio != nil {
		out.Partial = &PartialDetail{
			ItemRatio: *wire.ItemRatio,
		}
		if wire.ItemsSubtotal != nil {
			out.Partial.ItemsSubtotal = *wire.ItemsSubtotal
		}
		if wire.ProportionalTax != nil {
			out.Partial.ProportionalTax = *wire.ProportionalTax
		}
		if wire.ProportionalShipping != nil {
			out.Partial.ProportionalShipping = *wire.ProportionalShipping
		}
	}
	if wire.InstallmentsTotal != nil {
		out.Installment = &InstallmentDetail{
			InstallmentsTotal: *wire.InstallmentsTotal,
		}
		if wire.InstallmentsCharged != nil {
			out.Installment.InstallmentsCharged = *wire.InstallmentsCharged
		}
		if wire.InstallmentValue != nil {
			out.Installment.InstallmentValue = *wire.InstallmentValue
		}
		if wire.ChargedAmount != nil {
			out.Installment.ChargedAmount = *wire.ChargedAmount
		}
	}
	if wire.ExchangeRateUsed != nil {
		out.CrossBorder = &CrossBorderDetail{
			ExchangeRateUsed: *wire.ExchangeRateUsed,
		}
		if wire.USDEquivalent != nil {
			out.CrossBorder.USDEquivalent = *wire.USDEquivalent
		}
	}
	*b = out
	return nil
}

// RefundResult is a persisted, approved refund. Rejections are never
// persisted as results; they only leave audit entries.
type RefundResult struct {
	RefundID          string               `json:"refund_id"`
	OperationType     string               `json:"operation_type"`
	TransactionID     string               `json:"transaction_id"`
	Status            string               `json:"status"`
	TotalRefundAmount decimal.Decimal      `json:"total_refund_amount"`
	Currency          string               `json:"currency"`
	OperatorID        string               `json:"operator_id"`
	Reason            string               `json:"reason"`
	Breakdown         CalculationBreakdown `json:"calculation_breakdown"`
	CreatedAt         time.Time            `json:"created_at"`
	IdempotencyKey    string               `json:"idempotency_key,omitempty"`
}

const (
	OperationTypeRefund = "REFUND"
	RefundStatusApproved = "APPROVED"
)
