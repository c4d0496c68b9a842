// Package metrics registers the Prometheus collectors shared by the bot,
// the payment webhook and the reconciler. Collectors are registered once;
// Registry returns the same instance on every call.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics stores Prometheus collectors used across the service.
type Metrics struct {
	UpdatesTotal      *prometheus.CounterVec
	UpdateDuration    *prometheus.HistogramVec
	ProviderRequests  *prometheus.CounterVec
	ProviderLatency   *prometheus.HistogramVec
	GatewayRequests   *prometheus.CounterVec
	GatewayLatency    *prometheus.HistogramVec
	OrdersTotal       *prometheus.CounterVec
	FulfillmentsTotal *prometheus.CounterVec
	CallbacksTotal    *prometheus.CounterVec
	SessionsActive    prometheus.Gauge
	Errors            *prometheus.CounterVec
}

var (
	regOnce         sync.Once
	metricsInstance *Metrics
)

// Registry builds and registers the metrics singleton with optional namespace.
func Registry(namespace string) *Metrics {
	regOnce.Do(func() {
		metricsInstance = &Metrics{
			UpdatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "telegram_updates_total",
				Help:      "Total Telegram updates processed by type.",
			}, []string{"type"}),
			UpdateDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "telegram_update_duration_seconds",
				Help:      "Latency distribution for handling Telegram updates.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"type"}),
			ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_requests_total",
				Help:      "Total top-up provider API requests by endpoint and status.",
			}, []string{"endpoint", "status"}),
			ProviderLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_request_duration_seconds",
				Help:      "Latency distribution for top-up provider API requests.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"endpoint", "status"}),
			GatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gateway_requests_total",
				Help:      "Total payment gateway API requests by endpoint and status.",
			}, []string{"endpoint", "status"}),
			GatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "gateway_request_duration_seconds",
				Help:      "Latency distribution for payment gateway API requests.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"endpoint", "status"}),
			OrdersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orders_total",
				Help:      "Order transitions by payment status.",
			}, []string{"status"}),
			FulfillmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fulfillments_total",
				Help:      "Provider fulfillment attempts by outcome.",
			}, []string{"status"}),
			CallbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payment_callbacks_total",
				Help:      "Payment gateway callbacks by verification outcome.",
			}, []string{"outcome"}),
			SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sessions_active",
				Help:      "Chat sessions currently held in memory.",
			}),
			Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total errors grouped by component.",
			}, []string{"component"}),
		}

		prometheus.MustRegister(
			metricsInstance.UpdatesTotal,
			metricsInstance.UpdateDuration,
			metricsInstance.ProviderRequests,
			metricsInstance.ProviderLatency,
			metricsInstance.GatewayRequests,
			metricsInstance.GatewayLatency,
			metricsInstance.OrdersTotal,
			metricsInstance.FulfillmentsTotal,
			metricsInstance.CallbacksTotal,
			metricsInstance.SessionsActive,
			metricsInstance.Errors,
		)
	})
	return metricsInstance
}
