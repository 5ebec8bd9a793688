// AngelaMos | 2026
// metrics.go

package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "entitlement",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	RedemptionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "entitlement",
		Name:      "redemptions_total",
		Help:      "Redemption attempts by kind and outcome.",
	}, []string{"kind", "outcome"})

	PaymentActivationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "entitlement",
		Name:      "payment_activations_total",
		Help:      "Payment activation attempts by gateway and outcome.",
	}, []string{"gateway", "outcome"})

	WebhookRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "entitlement",
		Name:      "webhook_requests_total",
		Help:      "Push gateway webhook requests by event type and status.",
	}, []string{"event_type", "status"})

	WebhookDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "entitlement",
		Name:      "webhook_duration_seconds",
		Help:      "Push gateway webhook handling latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"event_type"})

	VerifyOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "entitlement",
		Name:      "payment_verify_total",
		Help:      "Poll gateway verify results by status.",
	}, []string{"gateway", "status"})

	GeoLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "entitlement",
		Name:      "geo_lookups_total",
		Help:      "Geolocation lookups by source.",
	}, []string{"source"})

	PreviewDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "entitlement",
		Name:      "preview_decisions_total",
		Help:      "Free preview quota decisions.",
	}, []string{"decision"})

	MergesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "entitlement",
		Name:      "identity_merges_total",
		Help:      "Identity merge runs by outcome.",
	}, []string{"outcome"})

	MergedRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "entitlement",
		Name:      "identity_merged_records_total",
		Help:      "Records moved during identity merges by step.",
	}, []string{"step"})

	SweepRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "entitlement",
		Name:      "sweep_runs_total",
		Help:      "Background sweep runs by job and outcome.",
	}, []string{"job", "outcome"})
)
