// Package metrics exposes the server's prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/LeJamon/goOfferd/internal/core/event"
	"github.com/LeJamon/goOfferd/internal/core/result"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "offerd_operations_total",
		Help: "Market operations by operation and result code.",
	}, []string{"op", "result"})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "offerd_operation_duration_seconds",
		Help:    "Time spent executing market operations, including collaborator calls.",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
	}, []string{"op"})

	activeOffers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "offerd_active_offers",
		Help: "Number of live offers in the ledger.",
	})

	eventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "offerd_events_dropped_total",
		Help: "Notifications a slow subscriber did not receive.",
	}, []string{"event"})

	rpcRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "offerd_rpc_requests_total",
		Help: "JSON-RPC requests by method and status.",
	}, []string{"method", "status"})

	websocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "offerd_websocket_connections",
		Help: "Open event stream connections.",
	})
)

// Market records engine outcomes. It implements market.Observer.
type Market struct{}

func (Market) OperationDone(op string, code result.Result, elapsed time.Duration) {
	operationsTotal.With(prometheus.Labels{"op": op, "result": code.String()}).Inc()
	operationDuration.With(prometheus.Labels{"op": op}).Observe(elapsed.Seconds())
}

func (Market) OffersChanged(live int) {
	activeOffers.Set(float64(live))
}

// EventDropped counts a notification lost by a subscriber
func EventDropped(name event.Name) {
	eventsDropped.With(prometheus.Labels{"event": name.String()}).Inc()
}

// RPCRequest counts one handled JSON-RPC request
func RPCRequest(method, status string) {
	rpcRequests.With(prometheus.Labels{"method": method, "status": status}).Inc()
}

// WebsocketOpened and WebsocketClosed track the event stream connections
func WebsocketOpened() { websocketConnections.Inc() }
func WebsocketClosed() { websocketConnections.Dec() }

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
