package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder receives the service's operational events.
type Recorder interface {
	// Settlement counts a settle call by network and outcome code.
	Settlement(network, outcome string)
	// OracleLookup counts a chain lookup and records how long it took.
	OracleLookup(network, state string, duration time.Duration)
	// HTTPRequest counts a served request.
	HTTPRequest(route, method string, status int, duration time.Duration)
}

type PrometheusRecorder struct {
	settlements   *prometheus.CounterVec
	lookups       *prometheus.CounterVec
	lookupLatency *prometheus.HistogramVec
	requests      *prometheus.CounterVec
	reqLatency    *prometheus.HistogramVec
}

// NewPrometheusRecorder registers the collectors on reg. A nil reg builds
// unregistered collectors.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		settlements: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "paywall",
				Name:      "settlements_total",
				Help:      "Settle calls by network and outcome",
			},
			[]string{"network", "outcome"},
		),
		lookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "paywall",
				Name:      "oracle_lookups_total",
				Help:      "Chain oracle lookups by network and observed state",
			},
			[]string{"network", "state"},
		),
		lookupLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "paywall",
				Name:      "oracle_latency_seconds",
				Help:      "Chain oracle lookup latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"network"},
		),
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "paywall",
				Name:      "http_requests_total",
				Help:      "HTTP requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),
		reqLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "paywall",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
	}
}

func (p *PrometheusRecorder) Settlement(network, outcome string) {
	p.settlements.WithLabelValues(network, outcome).Inc()
}

func (p *PrometheusRecorder) OracleLookup(network, state string, duration time.Duration) {
	p.lookups.WithLabelValues(network, state).Inc()
	p.lookupLatency.WithLabelValues(network).Observe(duration.Seconds())
}

func (p *PrometheusRecorder) HTTPRequest(route, method string, status int, duration time.Duration) {
	p.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	p.reqLatency.WithLabelValues(route, method).Observe(duration.Seconds())
}

type NoopRecorder struct{}

func (NoopRecorder) Settlement(string, string)                      {}
func (NoopRecorder) OracleLookup(string, string, time.Duration)     {}
func (NoopRecorder) HTTPRequest(string, string, int, time.Duration) {}
