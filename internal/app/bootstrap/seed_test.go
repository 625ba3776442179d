package bootstrap

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/jmrebull/refund-service/internal/adapters/memory"
)

func TestSeedTransactionsCatalog(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	repo := memory.NewTransactionRepository(store)
	count, err := SeedTransactions(context.Background(), repo)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if count != 66 {
		t.Fatalf("expected 66 fixtures, got %d", count)
	}

	list, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != count {
		t.Fatalf("store holds %d transactions, seeded %d", len(list), count)
	}

	groups := map[string]int{}
	for _, txn := range list {
		switch {
		case strings.HasPrefix(txn.ID, "TXN-REG-"):
			groups["regular"]++
		case strings.HasPrefix(txn.ID, "TXN-SPLIT-"):
			groups["split"]++
			if len(txn.Payments) < 2 {
				t.Fatalf("%s must carry a split payment", txn.ID)
			}
		case strings.HasPrefix(txn.ID, "TXN-INSTALL-"):
			groups["installment"]++
			if !txn.HasInstallments() {
				t.Fatalf("%s must carry installment fields", txn.ID)
			}
		case strings.HasPrefix(txn.ID, "TXN-CROSS-"):
			groups["cross"]++
			if !txn.IsCrossBorder || txn.ExchangeRateToUSD == nil {
				t.Fatalf("%s must be cross-border with a captured rate", txn.ID)
			}
		case strings.HasPrefix(txn.ID, "TXN-HIGH-"):
			groups["high"]++
		case strings.HasPrefix(txn.ID, "TXN-VOID-"), strings.HasPrefix(txn.ID, "TXN-CB-"), strings.HasPrefix(txn.ID, "TXN-AUTH-"):
			groups["rejection"]++
			if txn.RefundPermitted() {
				t.Fatalf("%s is a rejection fixture but permits refunds", txn.ID)
			}
		default:
			t.Fatalf("unexpected fixture id %s", txn.ID)
		}
	}
	want := map[string]int{"regular": 40, "split": 5, "installment": 5, "cross": 5, "high": 3, "rejection": 8}
	for group, n := range want {
		if groups[group] != n {
			t.Fatalf("group %s: got %d, want %d", group, groups[group], n)
		}
	}

	// Every refundable fixture must satisfy the total invariant the engine
	// relies on.
	for _, txn := range list {
		if !txn.Subtotal.Add(txn.Tax).Add(txn.Shipping).Equal(txn.Total) {
			t.Fatalf("%s: subtotal+tax+shipping != total", txn.ID)
		}
		paid := decimal.Zero
		for _, p := range txn.Payments {
			paid = paid.Add(p.Amount)
		}
		if !paid.Equal(txn.Total) {
			t.Fatalf("%s: payment legs sum to %s, total is %s", txn.ID, paid, txn.Total)
		}
	}
}

func TestSeedTransactionsIsIdempotent(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	repo := memory.NewTransactionRepository(store)
	if _, err := SeedTransactions(context.Background(), repo); err != nil {
		t.Fatalf("first seed: %v", err)
	}
	if _, err := SeedTransactions(context.Background(), repo); err != nil {
		t.Fatalf("re-seed: %v", err)
	}
	list, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 66 {
		t.Fatalf("re-seeding must not duplicate fixtures, got %d", len(list))
	}
}
