package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "santral_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "santral_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Relay metrics
	MessagesProduced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "santral_messages_produced_total",
			Help: "Agent messages accepted into a mailbox",
		},
		[]string{"type"},
	)

	MessagesDrained = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "santral_messages_drained_total",
			Help: "Messages handed to consumers by mailbox drains",
		},
	)

	Drains = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "santral_mailbox_drains_total",
			Help: "Mailbox drain calls",
		},
		[]string{"result"}, // "empty" or "delivered"
	)

	MailboxDepth = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "santral_mailbox_depth",
			Help:    "Messages queued in a room's mailbox after an append",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
		},
	)

	AudioBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "santral_message_audio_bytes",
			Help:    "Size of base64 audio payloads accepted",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		},
	)

	// Realtime data channel metrics
	RealtimeSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "santral_realtime_subscribers",
			Help: "Open realtime data channel subscriptions",
		},
	)

	FramesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "santral_realtime_frames_published_total",
			Help: "Frames published on realtime data channels",
		},
		[]string{"topic"},
	)

	FramesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "santral_realtime_frames_dropped_total",
			Help: "Frames dropped because a subscriber queue was full",
		},
	)

	// Session provisioning
	SessionsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "santral_sessions_started_total",
			Help: "Chat sessions provisioned",
		},
		[]string{"result"},
	)

	SIPDispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "santral_sip_dispatches_total",
			Help: "Agent dispatches into phone call rooms",
		},
		[]string{"result"},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "santral_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	// Infrastructure metrics
	RedisLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "santral_redis_latency_seconds",
			Help:    "Redis operation latency",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05},
		},
	)

	UpstreamLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "santral_upstream_latency_seconds",
			Help:    "Latency of calls to the media server and TTS service",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"service", "operation"},
	)
)
