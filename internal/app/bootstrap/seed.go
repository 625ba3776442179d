package bootstrap

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jmrebull/refund-service/internal/domain"
	"github.com/jmrebull/refund-service/internal/ports"
)

// SeedTransactions writes the fixture catalog into the transaction store.
// Save is an upsert, so re-seeding an existing store is harmless.
func SeedTransactions(ctx context.Context, repo ports.TransactionRepository) (int, error) {
	txns := buildSeedTransactions()
	for _, txn := range txns {
		if err := repo.Save(ctx, txn); err != nil {
			return 0, fmt.Errorf("seed transaction %s: %w", txn.ID, err)
		}
	}
	return len(txns), nil
}

const seedMerchantID = "MERCHANT-SOLARA"

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func intPtr(v int) *int { return &v }

func buildSeedTransactions() []domain.Transaction {
	var txns []domain.Transaction

	// Regular single-method transactions, TXN-REG-001..040.
	currencies := []string{"BRL", "MXN", "COP", "USD"}
	statuses := []domain.TransactionStatus{domain.TransactionStatusCaptured, domain.TransactionStatusSettled}
	for i := 1; i <= 40; i++ {
		currency := currencies[(i-1)%4]
		status := statuses[(i-1)%2]
		base := decimal.NewFromInt(int64(10 + i*2))
		tax := base.Mul(dec("0.15")).Round(2)
		shipping := dec("5.00")
		total := base.Add(tax).Add(shipping)

		txns = append(txns, domain.Transaction{
			ID:       fmt.Sprintf("TXN-REG-%03d", i),
			Status:   status,
			Currency: currency,
			Subtotal: base,
			Tax:      tax,
			Shipping: shipping,
			Total:    total,
			Items: []domain.Item{
				{ID: fmt.Sprintf("ITEM-REG-%03d-A", i), Name: fmt.Sprintf("Product A-%d", i), UnitPrice: base.Mul(dec("0.6")), Quantity: 1},
				{ID: fmt.Sprintf("ITEM-REG-%03d-B", i), Name: fmt.Sprintf("Product B-%d", i), UnitPrice: base.Mul(dec("0.4")), Quantity: 1},
			},
			Payments: []domain.PaymentMethod{
				{ID: fmt.Sprintf("PAY-REG-%03d", i), Type: domain.PaymentMethodCard, Amount: total, Currency: currency, CardLast4: "4242"},
			},
			MerchantID: seedMerchantID,
		})
	}

	// Split payment transactions, TXN-SPLIT-001..005.
	for i := 1; i <= 5; i++ {
		subtotal := decimal.NewFromInt(int64(50 + i*10))
		tax := subtotal.Mul(dec("0.10")).Round(2)
		shipping := dec("8.00")
		total := subtotal.Add(tax).Add(shipping)
		cardAmount := total.Mul(dec("0.6")).Round(2)
		walletAmount := total.Sub(cardAmount)

		txns = append(txns, domain.Transaction{
			ID:       fmt.Sprintf("TXN-SPLIT-%03d", i),
			Status:   domain.TransactionStatusCaptured,
			Currency: "BRL",
			Subtotal: subtotal,
			Tax:      tax,
			Shipping: shipping,
			Total:    total,
			Items: []domain.Item{
				{ID: fmt.Sprintf("ITEM-SPLIT-%03d-A", i), Name: fmt.Sprintf("Split Item A-%d", i), UnitPrice: subtotal.Mul(dec("0.5")), Quantity: 1},
				{ID: fmt.Sprintf("ITEM-SPLIT-%03d-B", i), Name: fmt.Sprintf("Split Item B-%d", i), UnitPrice: subtotal.Mul(dec("0.3")), Quantity: 1},
				{ID: fmt.Sprintf("ITEM-SPLIT-%03d-C", i), Name: fmt.Sprintf("Split Item C-%d", i), UnitPrice: subtotal.Mul(dec("0.2")), Quantity: 1},
			},
			Payments: []domain.PaymentMethod{
				{ID: fmt.Sprintf("PAY-SPLIT-%03d-CARD", i), Type: domain.PaymentMethodCard, Amount: cardAmount, Currency: "BRL", CardLast4: "1111"},
				{ID: fmt.Sprintf("PAY-SPLIT-%03d-WALLET", i), Type: domain.PaymentMethodWallet, Amount: walletAmount, Currency: "BRL"},
			},
			MerchantID: seedMerchantID,
		})
	}

	// Installment transactions, TXN-INSTALL-001..005.
	installmentConfigs := []struct{ total, charged int }{
		{3, 2}, {6, 3}, {6, 6}, {12, 5}, {12, 12},
	}
	for i, conf := range installmentConfigs {
		n := i + 1
		subtotal := decimal.NewFromInt(int64(120 + n*20))
		tax := subtotal.Mul(dec("0.12")).Round(2)
		shipping := dec("10.00")
		total := subtotal.Add(tax).Add(shipping)

		txns = append(txns, domain.Transaction{
			ID:       fmt.Sprintf("TXN-INSTALL-%03d", n),
			Status:   domain.TransactionStatusCaptured,
			Currency: "MXN",
			Subtotal: subtotal,
			Tax:      tax,
			Shipping: shipping,
			Total:    total,
			Items: []domain.Item{
				{ID: fmt.Sprintf("ITEM-INSTALL-%03d-A", n), Name: fmt.Sprintf("Installment Product A-%d", n), UnitPrice: subtotal, Quantity: 1},
			},
			Payments: []domain.PaymentMethod{
				{
					ID: fmt.Sprintf("PAY-INSTALL-%03d", n), Type: domain.PaymentMethodCard,
					Amount: total, Currency: "MXN",
					InstallmentsTotal: intPtr(conf.total), InstallmentsCharged: intPtr(conf.charged),
					CardLast4: "5678",
				},
			},
			MerchantID: seedMerchantID,
		})
	}

	// Cross-border transactions, TXN-CROSS-001..005. Rates are captured at
	// purchase time, never refreshed.
	crossConfigs := []struct {
		currency string
		rate     string
	}{
		{"BRL", "5.20"}, {"MXN", "17.15"}, {"COP", "4100.00"}, {"ARS", "900.00"}, {"CLP", "950.00"},
	}
	for i, conf := range crossConfigs {
		n := i + 1
		subtotal := decimal.NewFromInt(int64(200 + n*50))
		tax := subtotal.Mul(dec("0.18")).Round(2)
		shipping := dec("15.00")
		total := subtotal.Add(tax).Add(shipping)
		rate := dec(conf.rate)

		txns = append(txns, domain.Transaction{
			ID:       fmt.Sprintf("TXN-CROSS-%03d", n),
			Status:   domain.TransactionStatusSettled,
			Currency: conf.currency,
			Subtotal: subtotal,
			Tax:      tax,
			Shipping: shipping,
			Total:    total,
			Items: []domain.Item{
				{ID: fmt.Sprintf("ITEM-CROSS-%03d-A", n), Name: fmt.Sprintf("Cross-border Item A-%d", n), UnitPrice: subtotal.Mul(dec("0.6")), Quantity: 1},
				{ID: fmt.Sprintf("ITEM-CROSS-%03d-B", n), Name: fmt.Sprintf("Cross-border Item B-%d", n), UnitPrice: subtotal.Mul(dec("0.4")), Quantity: 1},
			},
			Payments: []domain.PaymentMethod{
				{ID: fmt.Sprintf("PAY-CROSS-%03d", n), Type: domain.PaymentMethodCard, Amount: total, Currency: conf.currency, CardLast4: "9999"},
			},
			ExchangeRateToUSD: &rate,
			IsCrossBorder:     true,
			MerchantID:        seedMerchantID,
		})
	}

	// High-value transactions, TXN-HIGH-001..003.
	for i := 1; i <= 3; i++ {
		subtotal := decimal.NewFromInt(int64(500 + i*100))
		tax := subtotal.Mul(dec("0.20")).Round(2)
		shipping := dec("25.00")
		total := subtotal.Add(tax).Add(shipping)

		txns = append(txns, domain.Transaction{
			ID:       fmt.Sprintf("TXN-HIGH-%03d", i),
			Status:   domain.TransactionStatusSettled,
			Currency: "USD",
			Subtotal: subtotal,
			Tax:      tax,
			Shipping: shipping,
			Total:    total,
			Items: []domain.Item{
				{ID: fmt.Sprintf("ITEM-HIGH-%03d-A", i), Name: fmt.Sprintf("High-value Item A-%d", i), UnitPrice: subtotal.Mul(dec("0.7")), Quantity: 1},
				{ID: fmt.Sprintf("ITEM-HIGH-%03d-B", i), Name: fmt.Sprintf("High-value Item B-%d", i), UnitPrice: subtotal.Mul(dec("0.3")), Quantity: 1},
			},
			Payments: []domain.PaymentMethod{
				{ID: fmt.Sprintf("PAY-HIGH-%03d", i), Type: domain.PaymentMethodCard, Amount: total, Currency: "USD", CardLast4: "0000"},
			},
			MerchantID: seedMerchantID,
		})
	}

	// Rejection-path fixtures: voided, chargebacked, authorized.
	for i := 1; i <= 3; i++ {
		txns = append(txns, rejectionFixture(fmt.Sprintf("TXN-VOID-%03d", i), domain.TransactionStatusVoided,
			dec("50.00"), dec("7.50"), fmt.Sprintf("ITEM-VOID-%03d-A", i), fmt.Sprintf("Voided Item %d", i),
			fmt.Sprintf("PAY-VOID-%03d", i), "1234"))
	}
	for i := 1; i <= 3; i++ {
		txns = append(txns, rejectionFixture(fmt.Sprintf("TXN-CB-%03d", i), domain.TransactionStatusChargebacked,
			dec("75.00"), dec("11.25"), fmt.Sprintf("ITEM-CB-%03d-A", i), fmt.Sprintf("Chargebacked Item %d", i),
			fmt.Sprintf("PAY-CB-%03d", i), "5678"))
	}
	for i := 1; i <= 2; i++ {
		txns = append(txns, rejectionFixture(fmt.Sprintf("TXN-AUTH-%03d", i), domain.TransactionStatusAuthorized,
			dec("30.00"), dec("4.50"), fmt.Sprintf("ITEM-AUTH-%03d-A", i), fmt.Sprintf("Authorized Item %d", i),
			fmt.Sprintf("PAY-AUTH-%03d", i), "9012"))
	}

	return txns
}

func rejectionFixture(id string, status domain.TransactionStatus, subtotal, tax decimal.Decimal, itemID, itemName, paymentID, last4 string) domain.Transaction {
	shipping := dec("5.00")
	total := subtotal.Add(tax).Add(shipping)
	return domain.Transaction{
		ID:       id,
		Status:   status,
		Currency: "USD",
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Total:    total,
		Items: []domain.Item{
			{ID: itemID, Name: itemName, UnitPrice: subtotal, Quantity: 1},
		},
		Payments: []domain.PaymentMethod{
			{ID: paymentID, Type: domain.PaymentMethodCard, Amount: total, Currency: "USD", CardLast4: last4},
		},
		MerchantID: seedMerchantID,
	}
}
