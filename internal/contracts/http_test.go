package contracts_test

import (
	"strings"
	"testing"

	"github.com/jmrebull/refund-service/internal/contracts"
)

func validRequest() contracts.RefundRequest {
	return contracts.RefundRequest{
		TransactionID: "TXN-001",
		OperatorID:    "OP-42",
		Reason:        "customer request",
	}
}

func TestRefundRequestValidate(t *testing.T) {
	t.Parallel()

	if err := validRequest().Validate(); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*contracts.RefundRequest)
	}{
		{"missing transaction id", func(r *contracts.RefundRequest) { r.TransactionID = "" }},
		{"lowercase transaction id", func(r *contracts.RefundRequest) { r.TransactionID = "txn-001" }},
		{"transaction id too long", func(r *contracts.RefundRequest) { r.TransactionID = strings.Repeat("A", 51) }},
		{"missing operator id", func(r *contracts.RefundRequest) { r.OperatorID = "" }},
		{"operator id bad chars", func(r *contracts.RefundRequest) { r.OperatorID = "op 42!" }},
		{"blank reason", func(r *contracts.RefundRequest) { r.Reason = "   " }},
		{"reason too long", func(r *contracts.RefundRequest) { r.Reason = strings.Repeat("x", 501) }},
		{"empty item list", func(r *contracts.RefundRequest) { r.ItemIDs = []string{} }},
		{"too many items", func(r *contracts.RefundRequest) {
			r.ItemIDs = make([]string, 101)
			for i := range r.ItemIDs {
				r.ItemIDs[i] = "ITEM"
			}
		}},
		{"empty item id", func(r *contracts.RefundRequest) { r.ItemIDs = []string{""} }},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			req := validRequest()
			tc.mutate(&req)
			if err := req.Validate(); err == nil {
				t.Fatalf("expected validation failure")
			}
		})
	}
}

func TestRefundRequestNilItemsMeansFullRefund(t *testing.T) {
	t.Parallel()

	req := validRequest()
	req.ItemIDs = nil
	if err := req.Validate(); err != nil {
		t.Fatalf("nil item_ids is the full-refund shape: %v", err)
	}
	req.ItemIDs = []string{"ITEM-A"}
	if err := req.Validate(); err != nil {
		t.Fatalf("non-empty item_ids must validate: %v", err)
	}
}

func TestValidateIdempotencyKey(t *testing.T) {
	t.Parallel()

	if err := contracts.ValidateIdempotencyKey(""); err != nil {
		t.Fatalf("empty key opts out of idempotency: %v", err)
	}
	if err := contracts.ValidateIdempotencyKey("key-1"); err != nil {
		t.Fatalf("plain key rejected: %v", err)
	}
	if err := contracts.ValidateIdempotencyKey(strings.Repeat("k", 101)); err == nil {
		t.Fatalf("oversized key must be rejected")
	}
}
