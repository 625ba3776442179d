// Package http is the transport adapter: routing, middleware, and the
// request/response envelope. It never touches the store directly.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jmrebull/refund-service/internal/ports"
)

type RouterConfig struct {
	APIKey           string
	Production       bool
	MaxRequestBytes  int64
	LockoutThreshold int
	LockoutWindow    time.Duration
	Lockout          ports.LockoutStore
	Logger           *slog.Logger
}

func NewRouter(handler *Handler, cfg RouterConfig) http.Handler {
	gate := newAuthGate(cfg.APIKey, cfg.Lockout, cfg.LockoutThreshold, cfg.LockoutWindow)

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(accessLogMiddleware(cfg.Logger))
	r.Use(securityHeadersMiddleware(cfg.Production))
	r.Use(requestSizeMiddleware(cfg.MaxRequestBytes))
	r.Use(gate.blockedMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeSuccess(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Transaction reads are public; everything that can move or reveal
		// money sits behind the API key.
		r.Get("/transactions", handler.listTransactions)
		r.Get("/transactions/{transaction_id}", handler.getTransaction)

		r.Group(func(r chi.Router) {
			r.Use(gate.authMiddleware)
			r.Post("/refunds", handler.createRefund)
			r.Get("/refunds", handler.listRefunds)
			r.Get("/refunds/{refund_id}", handler.getRefund)
			r.Get("/audit", handler.getAudit)
		})
	})
	return r
}
