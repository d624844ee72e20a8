package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var once sync.Once

// MustRegister registers all collectors with Prometheus exactly once.
func MustRegister() {
	once.Do(func() {
		prometheus.MustRegister(
			messagesRouted,
			dialogsStarted,
			dialogsEnded,
			publishRequests,
			publishLatency,
			discoveryTotal,
			tokenExchangeTotal,
			sessionOps,
		)
	})
}

// Handler exposes the default registry for the web server.
func Handler() http.Handler {
	return promhttp.Handler()
}
