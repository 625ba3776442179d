package http

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jmrebull/refund-service/internal/ports"
)

type contextKey string

const requestIDKey contextKey = "request_id"

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIDFromContext(ctx context.Context) string {
	if value := ctx.Value(requestIDKey); value != nil {
		if requestID, ok := value.(string); ok {
			return requestID
		}
	}
	return "unknown"
}

func securityHeadersMiddleware(production bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-XSS-Protection", "1; mode=block")
			h.Set("Cache-Control", "no-store")
			h.Set("Content-Security-Policy", "default-src 'none'")
			if production {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestSizeMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				writeError(w, http.StatusRequestEntityTooLarge, "REQUEST_TOO_LARGE",
					fmt.Sprintf("Request body exceeds the %d byte limit", maxBytes), nil)
				return
			}
			// Content-Length can lie; cap the actual read too.
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// authGate is the API-key check plus the per-IP failure lockout. The block
// check applies to every route it wraps; failures are only counted on
// mutating methods, matching how a credential-stuffing run looks in
// practice.
type authGate struct {
	apiKey    string
	lockout   ports.LockoutStore
	threshold int
	window    time.Duration
	nowFn     func() time.Time
}

func newAuthGate(apiKey string, lockout ports.LockoutStore, threshold int, window time.Duration) *authGate {
	return &authGate{
		apiKey:    apiKey,
		lockout:   lockout,
		threshold: threshold,
		window:    window,
		nowFn:     func() time.Time { return time.Now().UTC() },
	}
}

// blockedMiddleware rejects requests from blocked clients before anything
// else runs. Applied globally so a blocked client cannot probe public
// routes either.
func (g *authGate) blockedMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		state, err := g.lockout.Get(r.Context(), ip)
		if err == nil && state.BlockedUntil != nil && state.BlockedUntil.After(g.nowFn()) {
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED",
				"Too many failed authentication attempts. Try again later.", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (g *authGate) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		provided := r.Header.Get("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(g.apiKey)) != 1 {
			if isMutatingMethod(r.Method) {
				_, _ = g.lockout.RecordFailure(r.Context(), clientIP(r), g.nowFn(), g.threshold, g.window)
			}
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or missing API key", nil)
			return
		}
		if isMutatingMethod(r.Method) {
			_ = g.lockout.Clear(r.Context(), clientIP(r))
		}
		next.ServeHTTP(w, r)
	})
}

func isMutatingMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

// accessLogMiddleware emits one structured line per request. The API key
// value itself is never logged.
func accessLogMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			hasAPIKey := r.Header.Get("X-API-Key") != ""
			next.ServeHTTP(rec, r)

			auth := "missing"
			switch {
			case rec.status == http.StatusUnauthorized:
				auth = "failed"
			case hasAPIKey && rec.status < 400:
				auth = "ok"
			case hasAPIKey:
				auth = "present"
			}

			logger.InfoContext(r.Context(), "request",
				"request_id", requestIDFromContext(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status_code", rec.status,
				"ip", clientIP(r),
				"duration_ms", time.Since(start).Milliseconds(),
				"auth", auth,
			)
		})
	}
}
