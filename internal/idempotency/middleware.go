package idempotency

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/doctor-booking/internal/apperr"
	"github.com/wolfman30/doctor-booking/pkg/logging"
)

// HeaderKey is the request header clients set; HeaderReplayed marks replays.
const (
	HeaderKey      = "Idempotency-Key"
	HeaderReplayed = "Idempotent-Replayed"
	maxKeyLength   = 255
	maxBodyBytes   = 1 << 20
)

var (
	errKeyTooLong  = apperr.Validation("Idempotency-Key must be at most %d characters", maxKeyLength)
	errInFlight    = apperr.Conflict("A request with this Idempotency-Key is still in progress")
	errKeyMismatch = apperr.Conflict("Idempotency-Key was already used with a different request")
)

// Middleware replays stored responses for repeated keys within scope. A nil
// store disables it. Redis failures let the request through unprotected.
func Middleware(s *Store, scope string, logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return func(next http.Handler) http.Handler {
		if s == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(HeaderKey))
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > maxKeyLength {
				apperr.WriteJSON(w, errKeyTooLong)
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
			if err != nil {
				apperr.WriteJSON(w, apperr.Validation("could not read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			fingerprint := fingerprintOf(r, body)

			existing, claimed, err := s.Reserve(r.Context(), scope, key, fingerprint)
			if err != nil {
				logger.Warn("idempotency store unavailable", "error", err, "key", key)
				next.ServeHTTP(w, r)
				return
			}
			if !claimed {
				replay(w, existing, fingerprint)
				return
			}

			release := func() {
				ctx, cancel := detached(r)
				defer cancel()
				if err := s.Release(ctx, scope, key); err != nil {
					logger.Warn("idempotency release failed", "error", err, "key", key)
				}
			}

			var buf bytes.Buffer
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&buf)
			returned := false
			defer func() {
				// A panicking handler must not leave the key in flight.
				if !returned {
					release()
				}
			}()
			next.ServeHTTP(ww, r)
			returned = true

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if status >= http.StatusInternalServerError {
				release()
				return
			}
			ctx, cancel := detached(r)
			defer cancel()
			rec := Record{
				Fingerprint: fingerprint,
				Status:      status,
				ContentType: ww.Header().Get("Content-Type"),
				Body:        buf.Bytes(),
			}
			if err := s.Complete(ctx, scope, key, rec); err != nil {
				logger.Warn("idempotency save failed", "error", err, "key", key)
			}
		})
	}
}

// detached outlives the request context, which is canceled once the client hangs up.
func detached(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(r.Context()), 2*time.Second)
}

func replay(w http.ResponseWriter, rec *Record, fingerprint string) {
	if rec.Fingerprint != fingerprint {
		apperr.WriteJSON(w, errKeyMismatch)
		return
	}
	if rec.State != StateCompleted {
		apperr.WriteJSON(w, errInFlight)
		return
	}
	if rec.ContentType != "" {
		w.Header().Set("Content-Type", rec.ContentType)
	}
	w.Header().Set(HeaderReplayed, "true")
	w.WriteHeader(rec.Status)
	_, _ = w.Write(rec.Body)
}

func fingerprintOf(r *http.Request, body []byte) string {
	h := sha256.New()
	h.Write([]byte(r.Method))
	h.Write([]byte{0})
	h.Write([]byte(r.URL.Path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
