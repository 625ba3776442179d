package application_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/jmrebull/refund-service/internal/adapters/events"
	"github.com/jmrebull/refund-service/internal/adapters/memory"
	"github.com/jmrebull/refund-service/internal/application"
	"github.com/jmrebull/refund-service/internal/contracts"
	"github.com/jmrebull/refund-service/internal/domain"
)

type testEnv struct {
	svc          *application.Service
	transactions *memory.TransactionRepository
	audit        *memory.AuditRepository
	publisher    *events.RecordingPublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore()
	transactions := memory.NewTransactionRepository(store)
	publisher := events.NewRecordingPublisher()
	svc := application.NewService(application.Config{ServiceName: "refund-service"}, application.Dependencies{
		Transactions: transactions,
		Refunds:      memory.NewRefundRepository(store),
		Idempotency:  memory.NewIdempotencyRepository(store),
		Audit:        memory.NewAuditRepository(store),
		Events:       publisher,
	})
	return &testEnv{
		svc:          svc,
		transactions: transactions,
		audit:        memory.NewAuditRepository(store),
		publisher:    publisher,
	}
}

func mustDec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	v, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", s, err)
	}
	return v
}

func capturedTransaction(t *testing.T, id string) domain.Transaction {
	t.Helper()
	return domain.Transaction{
		ID:       id,
		Status:   domain.TransactionStatusCaptured,
		Currency: "BRL",
		Subtotal: mustDec(t, "50.00"),
		Tax:      mustDec(t, "9.00"),
		Shipping: mustDec(t, "5.00"),
		Total:    mustDec(t, "64.00"),
		Items: []domain.Item{
			{ID: "ITEM-A", Name: "Item A", UnitPrice: mustDec(t, "30.00"), Quantity: 1},
			{ID: "ITEM-B", Name: "Item B", UnitPrice: mustDec(t, "20.00"), Quantity: 1},
		},
		Payments: []domain.PaymentMethod{
			{ID: "PAY-1", Type: domain.PaymentMethodCard, Amount: mustDec(t, "64.00"), Currency: "BRL", CardLast4: "4242"},
		},
		MerchantID: "MERCHANT-SOLARA",
	}
}

func (e *testEnv) seed(t *testing.T, txn domain.Transaction) {
	t.Helper()
	if err := e.transactions.Save(context.Background(), txn); err != nil {
		t.Fatalf("seed transaction: %v", err)
	}
}

func (e *testEnv) process(t *testing.T, in application.ProcessRefundInput) (application.ProcessRefundOutput, error) {
	t.Helper()
	return e.svc.ProcessRefund(context.Background(), in)
}

func requireRejection(t *testing.T, err error, code string) *domain.Rejection {
	t.Helper()
	rej, ok := domain.AsRejection(err)
	if !ok {
		t.Fatalf("expected rejection %s, got %v", code, err)
	}
	if rej.Code != code {
		t.Fatalf("expected code %s, got %s (%s)", code, rej.Code, rej.Message)
	}
	return rej
}

func TestProcessRefundFullHappyPath(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seed(t, capturedTransaction(t, "TXN-001"))

	out, err := env.process(t, application.ProcessRefundInput{
		TransactionID: "TXN-001",
		OperatorID:    "OP-42",
		Reason:        "customer request",
		RequestID:     "req-1",
	})
	if err != nil {
		t.Fatalf("process refund: %v", err)
	}
	if out.Replayed {
		t.Fatalf("first refund must not be a replay")
	}
	result := out.Result
	if result.Status != domain.RefundStatusApproved || result.OperationType != domain.OperationTypeRefund {
		t.Fatalf("unexpected result status: %+v", result)
	}
	if result.TotalRefundAmount.String() != "64" {
		t.Fatalf("unexpected amount: %s", result.TotalRefundAmount)
	}
	if result.Breakdown.Scenario != domain.ScenarioFullSingle {
		t.Fatalf("unexpected scenario: %s", result.Breakdown.Scenario)
	}

	entries, err := env.audit.List(context.Background(), "TXN-001", "")
	if err != nil {
		t.Fatalf("audit list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected REQUESTED and APPROVED entries, got %d", len(entries))
	}
	if entries[0].Action != domain.AuditRefundRequested || entries[1].Action != domain.AuditRefundApproved {
		t.Fatalf("unexpected audit actions: %s, %s", entries[0].Action, entries[1].Action)
	}
	if entries[1].RefundID != result.RefundID {
		t.Fatalf("approved entry must reference the refund")
	}

	published := env.publisher.Events()
	if len(published) != 1 {
		t.Fatalf("expected one published event, got %d", len(published))
	}
	if published[0].EventType != contracts.EventRefundApproved {
		t.Fatalf("unexpected event type: %s", published[0].EventType)
	}
	if published[0].PartitionKey != "TXN-001" {
		t.Fatalf("events must partition by transaction id, got %s", published[0].PartitionKey)
	}
	var envelope contracts.EventEnvelope
	if err := json.Unmarshal(published[0].Payload, &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	var payload contracts.RefundApprovedPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.RefundID != result.RefundID || payload.Amount != "64" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestProcessRefundIdempotentReplay(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seed(t, capturedTransaction(t, "TXN-001"))

	in := application.ProcessRefundInput{
		TransactionID:  "TXN-001",
		OperatorID:     "OP-42",
		Reason:         "customer request",
		IdempotencyKey: "key-1",
	}
	first, err := env.process(t, in)
	if err != nil {
		t.Fatalf("first refund: %v", err)
	}
	second, err := env.process(t, in)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !second.Replayed {
		t.Fatalf("second call with the same key must replay")
	}
	if second.Result.RefundID != first.Result.RefundID {
		t.Fatalf("replay must return the original refund, got %s vs %s",
			second.Result.RefundID, first.Result.RefundID)
	}

	// Replays are observational: no new audit entries, no new events.
	entries, _ := env.audit.List(context.Background(), "TXN-001", "")
	if len(entries) != 2 {
		t.Fatalf("replay must not append audit entries, got %d", len(entries))
	}
	if got := len(env.publisher.Events()); got != 1 {
		t.Fatalf("replay must not publish, got %d events", got)
	}
}

func TestProcessRefundKeylessDuplicateFullRefund(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seed(t, capturedTransaction(t, "TXN-001"))

	if _, err := env.process(t, application.ProcessRefundInput{
		TransactionID: "TXN-001", OperatorID: "OP-1", Reason: "first",
	}); err != nil {
		t.Fatalf("first refund: %v", err)
	}

	_, err := env.process(t, application.ProcessRefundInput{
		TransactionID: "TXN-001", OperatorID: "OP-2", Reason: "second",
	})
	rej := requireRejection(t, err, domain.CodeDuplicateRefund)
	if rej.Status != 409 {
		t.Fatalf("duplicate refund must map to 409, got %d", rej.Status)
	}
}

func TestProcessRefundTransactionNotFound(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	_, err := env.process(t, application.ProcessRefundInput{
		TransactionID: "TXN-MISSING", OperatorID: "OP-1", Reason: "test",
	})
	rej := requireRejection(t, err, domain.CodeTransactionNotFound)
	if rej.Status != 404 {
		t.Fatalf("not found must map to 404, got %d", rej.Status)
	}
}

func TestProcessRefundStatusRules(t *testing.T) {
	t.Parallel()

	for _, status := range []domain.TransactionStatus{
		domain.TransactionStatusVoided,
		domain.TransactionStatusChargebacked,
		domain.TransactionStatusAuthorized,
	} {
		env := newTestEnv(t)
		txn := capturedTransaction(t, "TXN-001")
		txn.Status = status
		env.seed(t, txn)

		_, err := env.process(t, application.ProcessRefundInput{
			TransactionID: "TXN-001", OperatorID: "OP-1", Reason: "test",
		})
		rej := requireRejection(t, err, domain.CodeInvalidTransactionStatus)
		if rej.Details["status"] != string(status) {
			t.Fatalf("rejection must carry the offending status, got %v", rej.Details)
		}

		// Rejections still leave an audit trail.
		entries, _ := env.audit.List(context.Background(), "TXN-001", "")
		if len(entries) != 2 ||
			entries[0].Action != domain.AuditRefundRequested ||
			entries[1].Action != domain.AuditRefundRejected {
			t.Fatalf("expected REQUESTED then REJECTED entries for %s, got %d", status, len(entries))
		}
		if got := len(env.publisher.Events()); got != 0 {
			t.Fatalf("rejections must not publish events, got %d", got)
		}
	}
}

func TestProcessRefundInvalidItemIDs(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seed(t, capturedTransaction(t, "TXN-001"))

	_, err := env.process(t, application.ProcessRefundInput{
		TransactionID: "TXN-001",
		ItemIDs:       []string{"ITEM-A", "ITEM-X"},
		OperatorID:    "OP-1",
		Reason:        "test",
	})
	rej := requireRejection(t, err, domain.CodeInvalidItemIDs)
	unknown, ok := rej.Details["unknown_item_ids"].([]string)
	if !ok || len(unknown) != 1 || unknown[0] != "ITEM-X" {
		t.Fatalf("unexpected unknown_item_ids detail: %v", rej.Details)
	}
}

func TestProcessRefundBalanceExhausted(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seed(t, capturedTransaction(t, "TXN-001"))

	// Consume the whole balance via both item subsets, then ask for more.
	if _, err := env.process(t, application.ProcessRefundInput{
		TransactionID: "TXN-001", ItemIDs: []string{"ITEM-A"}, OperatorID: "OP-1", Reason: "a",
	}); err != nil {
		t.Fatalf("first partial: %v", err)
	}
	if _, err := env.process(t, application.ProcessRefundInput{
		TransactionID: "TXN-001", ItemIDs: []string{"ITEM-B"}, OperatorID: "OP-1", Reason: "b",
	}); err != nil {
		t.Fatalf("second partial: %v", err)
	}

	_, err := env.process(t, application.ProcessRefundInput{
		TransactionID: "TXN-001", ItemIDs: []string{"ITEM-A"}, OperatorID: "OP-1", Reason: "again",
	})
	requireRejection(t, err, domain.CodeRefundAmountExceeded)
}

func TestProcessRefundPartialExceedsRemaining(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seed(t, capturedTransaction(t, "TXN-001"))

	// ITEM-A twice: the first consumes 38.40, leaving 25.60, and the second
	// estimate of 38.40 no longer fits.
	if _, err := env.process(t, application.ProcessRefundInput{
		TransactionID: "TXN-001", ItemIDs: []string{"ITEM-A"}, OperatorID: "OP-1", Reason: "a",
	}); err != nil {
		t.Fatalf("first partial: %v", err)
	}
	_, err := env.process(t, application.ProcessRefundInput{
		TransactionID: "TXN-001", ItemIDs: []string{"ITEM-A"}, OperatorID: "OP-1", Reason: "again",
	})
	requireRejection(t, err, domain.CodeRefundAmountExceeded)
}

func TestProcessRefundInstallmentNotCharged(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	txn := capturedTransaction(t, "TXN-001")
	zero := 0
	six := 6
	txn.Payments[0].InstallmentsTotal = &six
	txn.Payments[0].InstallmentsCharged = &zero
	env.seed(t, txn)

	_, err := env.process(t, application.ProcessRefundInput{
		TransactionID: "TXN-001", OperatorID: "OP-1", Reason: "test",
	})
	rej := requireRejection(t, err, domain.CodeInstallmentNotCharged)
	if rej.Details["installments_total"] != 6 {
		t.Fatalf("unexpected details: %v", rej.Details)
	}
}

func TestProcessRefundInstallmentScenario(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	txn := capturedTransaction(t, "TXN-001")
	three := 3
	six := 6
	txn.Payments[0].InstallmentsTotal = &six
	txn.Payments[0].InstallmentsCharged = &three
	env.seed(t, txn)

	out, err := env.process(t, application.ProcessRefundInput{
		TransactionID: "TXN-001", OperatorID: "OP-1", Reason: "test",
	})
	if err != nil {
		t.Fatalf("process refund: %v", err)
	}
	if out.Result.Breakdown.Scenario != domain.ScenarioInstallment {
		t.Fatalf("unexpected scenario: %s", out.Result.Breakdown.Scenario)
	}
	if out.Result.TotalRefundAmount.String() != "32" {
		t.Fatalf("unexpected amount: %s", out.Result.TotalRefundAmount)
	}
}

func TestProcessRefundInstallmentWithItemsRoutesToPartial(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	txn := capturedTransaction(t, "TXN-001")
	three := 3
	six := 6
	txn.Payments[0].InstallmentsTotal = &six
	txn.Payments[0].InstallmentsCharged = &three
	env.seed(t, txn)

	out, err := env.process(t, application.ProcessRefundInput{
		TransactionID: "TXN-001", ItemIDs: []string{"ITEM-A"}, OperatorID: "OP-1", Reason: "test",
	})
	if err != nil {
		t.Fatalf("process refund: %v", err)
	}
	if out.Result.Breakdown.Scenario != domain.ScenarioPartial {
		t.Fatalf("item subset must win over installments, got %s", out.Result.Breakdown.Scenario)
	}
}

func TestProcessRefundCrossBorderWinsSelection(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	txn := capturedTransaction(t, "TXN-001")
	rate := mustDec(t, "5.20")
	txn.IsCrossBorder = true
	txn.ExchangeRateToUSD = &rate
	env.seed(t, txn)

	out, err := env.process(t, application.ProcessRefundInput{
		TransactionID: "TXN-001", OperatorID: "OP-1", Reason: "test",
	})
	if err != nil {
		t.Fatalf("process refund: %v", err)
	}
	if out.Result.Breakdown.Scenario != domain.ScenarioCrossBorderFull {
		t.Fatalf("unexpected scenario: %s", out.Result.Breakdown.Scenario)
	}
	if out.Result.Breakdown.CrossBorder == nil ||
		out.Result.Breakdown.CrossBorder.USDEquivalent.String() != "12.31" {
		t.Fatalf("unexpected cross-border detail: %+v", out.Result.Breakdown.CrossBorder)
	}
}

func TestProcessRefundCalculationError(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	txn := capturedTransaction(t, "TXN-001")
	txn.IsCrossBorder = true // no exchange rate on record
	env.seed(t, txn)

	_, err := env.process(t, application.ProcessRefundInput{
		TransactionID: "TXN-001", OperatorID: "OP-1", Reason: "test",
	})
	rej := requireRejection(t, err, domain.CodeCalculationError)
	if rej.Status != 422 {
		t.Fatalf("calculation errors must map to 422, got %d", rej.Status)
	}
}

func TestProcessRefundConcurrentKeylessFullRefunds(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seed(t, capturedTransaction(t, "TXN-001"))

	const workers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	approved := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := env.svc.ProcessRefund(context.Background(), application.ProcessRefundInput{
				TransactionID: "TXN-001", OperatorID: "OP-1", Reason: "race",
			})
			if err != nil {
				if _, ok := domain.AsRejection(err); !ok {
					t.Errorf("unexpected non-rejection error: %v", err)
				}
				return
			}
			if !out.Replayed {
				mu.Lock()
				approved++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if approved != 1 {
		t.Fatalf("exactly one keyless full refund may win, got %d", approved)
	}
}

func TestProcessRefundConcurrentSameKey(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seed(t, capturedTransaction(t, "TXN-001"))

	const workers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	ids := map[string]bool{}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := env.svc.ProcessRefund(context.Background(), application.ProcessRefundInput{
				TransactionID:  "TXN-001",
				OperatorID:     "OP-1",
				Reason:         "race",
				IdempotencyKey: "key-race",
			})
			if err != nil {
				// A loser can observe the winner mid-flight as a duplicate.
				if _, ok := domain.AsRejection(err); !ok {
					t.Errorf("unexpected non-rejection error: %v", err)
				}
				return
			}
			mu.Lock()
			ids[out.Result.RefundID] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	if len(ids) != 1 {
		t.Fatalf("all same-key winners must share one refund id, got %d", len(ids))
	}
}
