package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jmrebull/refund-service/internal/application"
	"github.com/jmrebull/refund-service/internal/contracts"
	"github.com/jmrebull/refund-service/internal/domain"
)

type Handler struct {
	service *application.Service
}

func NewHandler(service *application.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) createRefund(w http.ResponseWriter, r *http.Request) {
	var req contracts.RefundRequest
	dec := json.NewDecoder(r.Body)
	// The idempotency key travels in its own header; a body smuggling it
	// (or any other unknown field) is rejected outright.
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	idempotencyKey := r.Header.Get("Idempotency-Key")
	if err := contracts.ValidateIdempotencyKey(idempotencyKey); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	out, err := h.service.ProcessRefund(r.Context(), application.ProcessRefundInput{
		TransactionID:  req.TransactionID,
		ItemIDs:        req.ItemIDs,
		OperatorID:     req.OperatorID,
		Reason:         req.Reason,
		IdempotencyKey: idempotencyKey,
		RequestID:      requestIDFromContext(r.Context()),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if out.Replayed {
		w.Header().Set("X-Replayed", "true")
		writeSuccess(w, r, http.StatusOK, out.Result)
		return
	}
	writeSuccess(w, r, http.StatusCreated, out.Result)
}

func (h *Handler) getRefund(w http.ResponseWriter, r *http.Request) {
	refundID := chi.URLParam(r, "refund_id")
	result, err := h.service.GetRefund(r.Context(), refundID)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "REFUND_NOT_FOUND",
			fmt.Sprintf("Refund %s not found", refundID), nil)
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, r, http.StatusOK, result)
}

func (h *Handler) listRefunds(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.ListRefunds(r.Context(), r.URL.Query().Get("transaction_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, r, http.StatusOK, results)
}

func (h *Handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	transactionID := chi.URLParam(r, "transaction_id")
	txn, err := h.service.GetTransaction(r.Context(), transactionID)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "TRANSACTION_NOT_FOUND",
			fmt.Sprintf("Transaction %s not found", transactionID), nil)
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, r, http.StatusOK, txn)
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	txns, err := h.service.ListTransactions(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, r, http.StatusOK, txns)
}

func (h *Handler) getAudit(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	entries, err := h.service.AuditEntries(r.Context(), query.Get("transaction_id"), query.Get("refund_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, r, http.StatusOK, entries)
}
