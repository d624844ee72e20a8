package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	messagesRouted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_messages_routed_total",
			Help: "Inbound messages processed, per platform and routing outcome.",
		},
		[]string{"platform", "route"},
	)

	dialogsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_dialogs_started_total",
			Help: "Dialog frames pushed, per dialog name.",
		},
		[]string{"dialog"},
	)

	dialogsEnded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_dialogs_ended_total",
			Help: "Dialog frames popped, per dialog name and outcome.",
		},
		[]string{"dialog", "outcome"},
	)

	publishRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "micropub_requests_total",
			Help: "Micropub calls, per operation and outcome.",
		},
		[]string{"op", "outcome"},
	)

	publishLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "micropub_request_duration_ms",
			Help:    "Micropub call latency distribution in milliseconds.",
			Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000},
		},
		[]string{"op"},
	)

	discoveryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indieauth_discovery_total",
			Help: "Endpoint discovery attempts, per outcome.",
		},
		[]string{"outcome"},
	)

	tokenExchangeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indieauth_token_exchange_total",
			Help: "Authorization-code exchanges, per outcome.",
		},
		[]string{"outcome"},
	)

	sessionOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_store_ops_total",
			Help: "Session repository operations, per op and outcome.",
		},
		[]string{"op", "outcome"},
	)
)

func MessageRouted(platform, route string) {
	messagesRouted.WithLabelValues(platform, route).Inc()
}

func DialogStarted(dialog string) {
	dialogsStarted.WithLabelValues(dialog).Inc()
}

func DialogEnded(dialog, outcome string) {
	dialogsEnded.WithLabelValues(dialog, outcome).Inc()
}

func Publish(op string, err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	publishRequests.WithLabelValues(op, outcome).Inc()
	publishLatency.WithLabelValues(op).Observe(float64(elapsed.Milliseconds()))
}

func Discovery(outcome string) {
	discoveryTotal.WithLabelValues(outcome).Inc()
}

func TokenExchange(outcome string) {
	tokenExchangeTotal.WithLabelValues(outcome).Inc()
}

func SessionOp(op, outcome string) {
	sessionOps.WithLabelValues(op, outcome).Inc()
}
