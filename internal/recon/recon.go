// Package recon reconciles local transactions against the payment
// gateway: status sync with terminal-state protection, exactly-once
// fulfillment dispatch on payment, and user notification on terminal
// transitions.
package recon

import (
	"context"
	"fmt"
	"time"

	"log/slog"

	"github.com/riky-24/bot-medsos-sub000/core/logger"
	coremetrics "github.com/riky-24/bot-medsos-sub000/core/metrics"
	"github.com/riky-24/bot-medsos-sub000/internal/catalog"
	"github.com/riky-24/bot-medsos-sub000/internal/repo"
	"github.com/riky-24/bot-medsos-sub000/internal/tripay"
)

// Store is the transaction persistence the reconciler needs.
type Store interface {
	ByReference(ctx context.Context, ref string) (*repo.Transaction, error)
	ByMerchantRef(ctx context.Context, merchantRef string) (*repo.Transaction, error)
	UpdateFields(ctx context.Context, merchantRef string, fields map[string]any) error
}

// Gateway checks payment state at the gateway.
type Gateway interface {
	TransactionDetail(ctx context.Context, reference string) (*tripay.Detail, error)
}

// Fulfiller places the top-up order once payment is confirmed.
type Fulfiller interface {
	CreateOrder(ctx context.Context, serviceCode, target, zone string) (*catalog.OrderResult, error)
}

// Notifier tells the user about a terminal status change.
type Notifier interface {
	NotifyStatus(ctx context.Context, trx *repo.Transaction)
}

// Spawner runs detached work. The telegram sender dispatcher satisfies
// this.
type Spawner interface {
	Enqueue(ctx context.Context, action, endpoint string, run func() error) error
}

// Outcome reports what a callback-driven sync changed.
type Outcome struct {
	StatusChanged bool
	Old           string
	New           string
	Trx           *repo.Transaction
}

// Reconciler keeps local transaction state consistent with the
// gateway and the top-up provider.
type Reconciler struct {
	store   Store
	gateway Gateway
	fulfill Fulfiller
	notify  Notifier
	spawn   Spawner
	metrics *coremetrics.Metrics
}

func New(store Store, gateway Gateway, fulfill Fulfiller, notify Notifier, spawn Spawner, m *coremetrics.Metrics) *Reconciler {
	return &Reconciler{
		store:   store,
		gateway: gateway,
		fulfill: fulfill,
		notify:  notify,
		spawn:   spawn,
		metrics: m,
	}
}

// Sync refreshes one transaction from the gateway and persists only
// the fields that changed. ref may be a merchant ref or a gateway
// reference.
func (r *Reconciler) Sync(ctx context.Context, ref string) (*repo.Transaction, error) {
	trx, err := r.store.ByReference(ctx, ref)
	if err != nil {
		return nil, err
	}
	if err := r.syncLoaded(ctx, trx); err != nil {
		return nil, err
	}
	return trx, nil
}

// HandleCallback reconciles the transaction named by a gateway
// callback. A transition into PAID dispatches fulfillment exactly
// once; terminal transitions notify the user. Both run detached and
// never fail the callback.
func (r *Reconciler) HandleCallback(ctx context.Context, merchantRef string) (Outcome, error) {
	trx, err := r.store.ByMerchantRef(ctx, merchantRef)
	if err != nil {
		return Outcome{}, err
	}

	old := trx.Status
	if err := r.syncLoaded(ctx, trx); err != nil {
		return Outcome{}, err
	}

	outcome := Outcome{
		StatusChanged: trx.Status != old,
		Old:           old,
		New:           trx.Status,
		Trx:           trx,
	}
	if !outcome.StatusChanged {
		return outcome, nil
	}

	logger.Info(ctx, "recon", "trx.status_changed",
		slog.String("merchant_ref", trx.MerchantRef),
		slog.String("old", outcome.Old),
		slog.String("new", outcome.New),
	)
	if r.metrics != nil {
		r.metrics.OrdersTotal.WithLabelValues(trx.Status).Inc()
	}

	detached := context.WithoutCancel(ctx)
	if trx.Status == tripay.StatusPaid && r.fulfill != nil {
		r.detach(detached, "fulfill", trx.MerchantRef, func() {
			r.runFulfillment(detached, trx)
		})
	}
	if tripay.IsTerminal(trx.Status) && r.notify != nil {
		r.detach(detached, "notify", trx.MerchantRef, func() {
			r.notify.NotifyStatus(detached, trx)
		})
	}
	return outcome, nil
}

// syncLoaded diffs the loaded transaction against the gateway and
// persists changed fields. The struct is updated in place to match
// what was written.
func (r *Reconciler) syncLoaded(ctx context.Context, trx *repo.Transaction) error {
	detail, err := r.gateway.TransactionDetail(ctx, trx.GatewayRef())
	if err != nil {
		return fmt.Errorf("gateway detail %s: %w", trx.MerchantRef, err)
	}

	fields := make(map[string]any, 6)

	// Terminal states only move on an explicit non-UNPAID mapping; an
	// UNPAID readback never downgrades them.
	next := trx.Status
	if detail.Status != tripay.StatusUnpaid {
		next = detail.Status
	} else if !tripay.IsTerminal(trx.Status) {
		next = tripay.StatusUnpaid
	}
	if next != trx.Status {
		fields["status"] = next
	}

	if (trx.TrxID == nil || *trx.TrxID == "") && detail.Reference != "" && detail.Reference != trx.MerchantRef {
		fields["trx_id"] = detail.Reference
	}
	if payURL := firstNonEmpty(detail.CheckoutURL, detail.PayURL); payURL != "" && (trx.PayURL == nil || *trx.PayURL == "") {
		fields["pay_url"] = payURL
	}
	if detail.PayCode != "" && (trx.PayCode == nil || *trx.PayCode == "") {
		fields["pay_code"] = detail.PayCode
	}
	if detail.QRString != "" && (trx.QRString == nil || *trx.QRString == "") {
		fields["qr_string"] = detail.QRString
	}
	if next == tripay.StatusPaid && trx.PaidAt == nil {
		paidAt := time.Now().UTC()
		if detail.PaidAt > 0 {
			paidAt = time.Unix(detail.PaidAt, 0).UTC()
		}
		fields["paid_at"] = paidAt
	}
	if trx.ExpiredAt == nil && detail.ExpiredTime > 0 {
		fields["expired_at"] = time.Unix(detail.ExpiredTime, 0).UTC()
	}

	if len(fields) == 0 {
		return nil
	}
	if err := r.store.UpdateFields(ctx, trx.MerchantRef, fields); err != nil {
		return fmt.Errorf("persist sync %s: %w", trx.MerchantRef, err)
	}
	applyFields(trx, fields)

	logger.Debug(ctx, "recon", "trx.synced",
		slog.String("merchant_ref", trx.MerchantRef),
		slog.Int("fields", len(fields)),
		slog.String("status", trx.Status),
	)
	return nil
}

// runFulfillment places the provider order for a paid transaction and
// records the provider trx id and serial number. It never returns an
// error upward; fulfillment failure is logged and counted, and must
// not fail or retry the callback path.
func (r *Reconciler) runFulfillment(ctx context.Context, trx *repo.Transaction) {
	zone := ""
	if trx.ZoneID != nil {
		zone = *trx.ZoneID
	}

	result, err := r.fulfill.CreateOrder(ctx, trx.ServiceCode, trx.PlayerID, zone)
	if err != nil {
		if r.metrics != nil {
			r.metrics.FulfillmentsTotal.WithLabelValues("failed").Inc()
		}
		logger.Error(ctx, "recon", "fulfill.failed",
			slog.String("merchant_ref", trx.MerchantRef),
			slog.String("service", trx.ServiceCode),
			slog.String("error", logger.SanitizeLimit(err.Error(), 256)),
		)
		return
	}

	fields := map[string]any{"provider_trx_id": result.TrxID}
	if result.SN != "" {
		fields["serial_number"] = result.SN
	}
	if err := r.store.UpdateFields(ctx, trx.MerchantRef, fields); err != nil {
		logger.Error(ctx, "recon", "fulfill.persist_failed",
			slog.String("merchant_ref", trx.MerchantRef),
			slog.String("error", logger.SanitizeLimit(err.Error(), 256)),
		)
	}
	applyFields(trx, fields)

	if r.metrics != nil {
		r.metrics.FulfillmentsTotal.WithLabelValues("ok").Inc()
	}
	logger.Info(ctx, "recon", "fulfill.done",
		slog.String("merchant_ref", trx.MerchantRef),
		slog.String("provider_trx_id", result.TrxID),
		slog.String("provider_status", result.Status),
	)
}

// detach hands fn to the spawner; with no spawner wired it runs
// inline.
func (r *Reconciler) detach(ctx context.Context, action, ref string, fn func()) {
	run := func() error {
		fn()
		return nil
	}
	if r.spawn == nil {
		_ = run()
		return
	}
	if err := r.spawn.Enqueue(ctx, action, ref, run); err != nil {
		logger.Error(ctx, "recon", "detach.enqueue_failed",
			slog.String("action", action),
			slog.String("merchant_ref", ref),
			slog.String("error", err.Error()),
		)
	}
}

func applyFields(trx *repo.Transaction, fields map[string]any) {
	for col, val := range fields {
		switch col {
		case "status":
			if s, ok := val.(string); ok {
				trx.Status = s
			}
		case "trx_id":
			if s, ok := val.(string); ok {
				trx.TrxID = &s
			}
		case "pay_url":
			if s, ok := val.(string); ok {
				trx.PayURL = &s
			}
		case "pay_code":
			if s, ok := val.(string); ok {
				trx.PayCode = &s
			}
		case "qr_string":
			if s, ok := val.(string); ok {
				trx.QRString = &s
			}
		case "provider_trx_id":
			if s, ok := val.(string); ok {
				trx.ProviderTrxID = &s
			}
		case "serial_number":
			if s, ok := val.(string); ok {
				trx.SerialNumber = &s
			}
		case "paid_at":
			if t, ok := val.(time.Time); ok {
				trx.PaidAt = &t
			}
		case "expired_at":
			if t, ok := val.(time.Time); ok {
				trx.ExpiredAt = &t
			}
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
