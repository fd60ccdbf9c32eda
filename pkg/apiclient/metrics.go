package apiclient

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Refresh results recorded by Metrics.
const (
	refreshSuccess      = "success"
	refreshFailure      = "failure"
	refreshMissingToken = "missing_token"
	refreshStaleToken   = "stale_token"
)

// Metrics are the prometheus collectors of a Client. A nil *Metrics records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	refresh  *prometheus.CounterVec
	queued   prometheus.Counter
}

// NewMetrics creates the collectors and registers them on reg when reg is not nil.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "apiclient",
			Name:      "requests_total",
			Help:      "HTTP requests sent to the backend, by method and status code (0 for transport errors).",
		}, []string{"method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "apiclient",
			Name:      "request_duration_seconds",
			Help:      "Latency of backend HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		refresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "apiclient",
			Name:      "token_refresh_total",
			Help:      "Access token refresh attempts, by result.",
		}, []string{"result"}),
		queued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "apiclient",
			Name:      "queued_requests_total",
			Help:      "Requests that waited for a refresh already in flight.",
		}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.requests, m.duration, m.refresh, m.queued} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) observeRequest(method string, code int, seconds float64) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	m.duration.WithLabelValues(method).Observe(seconds)
}

func (m *Metrics) observeRefresh(result string) {
	if m == nil {
		return
	}
	m.refresh.WithLabelValues(result).Inc()
}

func (m *Metrics) observeQueued() {
	if m == nil {
		return
	}
	m.queued.Inc()
}
