// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline metrics
var (
	// MessagesProcessed counts chat messages run through the resolver by platform
	MessagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emoterain_messages_processed_total",
			Help: "Chat messages run through the emote resolver",
		},
		[]string{"platform"},
	)

	// BatchesDispatched counts appearance batches handed to the dispatcher
	BatchesDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emoterain_batches_dispatched_total",
			Help: "Emote appearance batches dispatched",
		},
		[]string{"platform"},
	)

	// EmotesDispatched counts descriptors across all dispatched batches
	EmotesDispatched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "emoterain_emotes_dispatched_total",
			Help: "Emote descriptors dispatched across all batches",
		},
	)

	// ListenerFailures counts listener invocations that returned an error or panicked
	ListenerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emoterain_listener_failures_total",
			Help: "Listener invocations that failed, by kind (error/panic)",
		},
		[]string{"kind"},
	)

	// AssetsCached tracks the size of the asset handle cache
	AssetsCached = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "emoterain_assets_cached",
			Help: "Distinct emote assets loaded",
		},
	)
)

// Catalog metrics
var (
	// CatalogFetches counts catalog fetch attempts by result (ok/not_found/error)
	CatalogFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emoterain_catalog_fetches_total",
			Help: "Community emote catalog fetches by result",
		},
		[]string{"result"},
	)

	// CatalogEntries tracks catalog size per channel
	CatalogEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "emoterain_catalog_entries",
			Help: "Community emotes known per channel",
		},
		[]string{"channel"},
	)
)

// Overlay metrics
var (
	// OverlayClients tracks connected overlay websocket clients
	OverlayClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "emoterain_overlay_clients",
			Help: "Connected overlay websocket clients",
		},
	)

	// OverlayDropped counts frames not delivered, by reason (rate_limited/slow_client)
	OverlayDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emoterain_overlay_dropped_total",
			Help: "Overlay frames dropped by reason",
		},
		[]string{"reason"},
	)
)
