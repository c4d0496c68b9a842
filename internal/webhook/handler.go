// Package webhook receives Tripay payment callbacks and exposes the
// operational HTTP surface: the callback endpoint, health and
// Prometheus metrics.
package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"github.com/riky-24/bot-medsos-sub000/core/logger"
	coremetrics "github.com/riky-24/bot-medsos-sub000/core/metrics"
	"github.com/riky-24/bot-medsos-sub000/internal/recon"
	"github.com/riky-24/bot-medsos-sub000/internal/tripay"
)

const paymentStatusEvent = "payment_status"

// Processor reconciles the transaction named by a callback.
type Processor interface {
	HandleCallback(ctx context.Context, merchantRef string) (recon.Outcome, error)
}

// callbackPayload is the part of the gateway callback body we act on.
// The authoritative state comes from the reconciler's own status
// check, not from the pushed body.
type callbackPayload struct {
	Reference   string `json:"reference"`
	MerchantRef string `json:"merchant_ref"`
	Status      string `json:"status"`
}

// Handler verifies and processes gateway payment callbacks. The
// signature gate runs before anything else; after it passes, the
// handler always acks with 200 so the gateway stops retrying, even
// when reconciling fails internally.
type Handler struct {
	privateKey string
	processor  Processor
	metrics    *coremetrics.Metrics
	maxBody    int64
}

func NewHandler(privateKey string, processor Processor, m *coremetrics.Metrics) *Handler {
	return &Handler{
		privateKey: privateKey,
		processor:  processor,
		metrics:    m,
		maxBody:    1 << 20,
	}
}

// ServeHTTP satisfies http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxBody))
	if err != nil {
		h.count("read_failed")
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	signature := strings.TrimSpace(r.Header.Get("X-Callback-Signature"))
	if !tripay.VerifyCallback(h.privateKey, body, signature) {
		h.count("bad_signature")
		logger.Warn(r.Context(), "webhook", "callback.bad_signature",
			slog.String("remote", r.RemoteAddr),
		)
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	if event := r.Header.Get("X-Callback-Event"); event != "" && event != paymentStatusEvent {
		h.count("ignored_event")
		logger.Debug(r.Context(), "webhook", "callback.ignored_event",
			slog.String("callback_event", event),
		)
		h.ack(w)
		return
	}

	var payload callbackPayload
	if err := json.Unmarshal(body, &payload); err != nil || payload.MerchantRef == "" {
		h.count("bad_payload")
		logger.Warn(r.Context(), "webhook", "callback.bad_payload",
			slog.Int("body_len", len(body)),
		)
		h.ack(w)
		return
	}

	start := time.Now()
	outcome, err := h.processor.HandleCallback(r.Context(), payload.MerchantRef)
	if err != nil {
		h.count("error")
		logger.Error(r.Context(), "webhook", "callback.process_failed",
			slog.String("merchant_ref", payload.MerchantRef),
			slog.String("error", logger.SanitizeLimit(err.Error(), 256)),
		)
		h.ack(w)
		return
	}

	h.count("ok")
	logger.Info(r.Context(), "webhook", "callback.handled",
		slog.String("merchant_ref", payload.MerchantRef),
		slog.Bool("status_changed", outcome.StatusChanged),
		slog.String("status", outcome.New),
		slog.Int64("duration_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
	)
	h.ack(w)
}

func (h *Handler) ack(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"success":true}`))
}

func (h *Handler) count(outcome string) {
	if h.metrics != nil {
		h.metrics.CallbacksTotal.WithLabelValues(outcome).Inc()
	}
}
