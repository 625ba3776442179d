package domain

import (
	"github.com/shopspring/decimal"
)

type TransactionStatus string

type PaymentMethodType string

const (
	TransactionStatusAuthorized   TransactionStatus = "AUTHORIZED"
	TransactionStatusCaptured     TransactionStatus = "CAPTURED"
	TransactionStatusSettled      TransactionStatus = "SETTLED"
	TransactionStatusVoided       TransactionStatus = "VOIDED"
	TransactionStatusChargebacked TransactionStatus = "CHARGEBACKED"

	PaymentMethodCard         PaymentMethodType = "CARD"
	PaymentMethodWallet       PaymentMethodType = "WALLET"
	PaymentMethodBankTransfer PaymentMethodType = "BANK_TRANSFER"
	PaymentMethodCash         PaymentMethodType = "CASH"
)

// Item is a purchased line item. Items only feed the item-subset subtotal
// used by partial refunds; they carry no state of their own.
type Item struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// PaymentMethod is one leg of how a transaction was paid. Split payments
// carry several legs whose amounts sum to the transaction total.
type PaymentMethod struct {
	ID                  string            `json:"id"`
	Type                PaymentMethodType `json:"type"`
	Amount              decimal.Decimal   `json:"amount"`
	Currency            string            `json:"currency"`
	InstallmentsTotal   *int              `json:"installments_total,omitempty"`
	InstallmentsCharged *int              `json:"installments_charged,omitempty"`
	CardLast4           string            `json:"card_last4,omitempty"`
}

// Transaction is an immutable snapshot of a recorded retail sale.
// total equals subtotal+tax+shipping at creation time; the engine trusts
// that invariant and never re-verifies it.
type Transaction struct {
	ID                string            `json:"id"`
	Status            TransactionStatus `json:"status"`
	Currency          string            `json:"currency"`
	Subtotal          decimal.Decimal   `json:"subtotal"`
	Tax               decimal.Decimal   `json:"tax"`
	Shipping          decimal.Decimal   `json:"shipping"`
	Total             decimal.Decimal   `json:"total"`
	Items             []Item            `json:"items"`
	Payments          []PaymentMethod   `json:"payments"`
	ExchangeRateToUSD *decimal.Decimal  `json:"exchange_rate_to_usd,omitempty"`
	IsCrossBorder     bool              `json:"is_cross_border"`
	MerchantID        string            `json:"merchant_id"`
}

// InstallmentPayment returns the payment method carrying installment
// fields, or nil when the transaction has none.
func (t Transaction) InstallmentPayment() *PaymentMethod {
	for i := range t.Payments {
		if t.Payments[i].InstallmentsTotal != nil {
			return &t.Payments[i]
		}
	}
	return nil
}

// HasInstallments reports whether any payment method uses installments.
func (t Transaction) HasInstallments() bool {
	return t.InstallmentPayment() != nil
}

// ItemIDs returns the ids of all items on the transaction.
func (t Transaction) ItemIDs() []string {
	ids := make([]string, 0, len(t.Items))
	for _, item := range t.Items {
		ids = append(ids, item.ID)
	}
	return ids
}

// RefundPermitted reports whether the transaction status allows refunds.
func (t Transaction) RefundPermitted() bool {
	return t.Status == TransactionStatusCaptured || t.Status == TransactionStatusSettled
}
