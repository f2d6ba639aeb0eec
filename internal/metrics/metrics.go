package metrics

import (
	"reflect"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds prometheus collectors for the gateway. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Requests         *prometheus.CounterVec
	RPCLatency       *prometheus.HistogramVec
	ResourceFetches  *prometheus.CounterVec
	ResourceBytes    prometheus.Histogram
	ResolveHops      prometheus.Histogram
	InlinedResources *prometheus.CounterVec
}

type Labels = prometheus.Labels

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	metrics := Metrics{}

	metrics.Requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nftgw_requests",
			Help: "Total number of gateway requests by route and status",
		},
		[]string{"route", "status"},
	)
	metrics.RPCLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nftgw_rpc_latency",
			Help:    "Latency of eth_call requests by chain and status (in milliseconds)",
			Buckets: []float64{10, 50, 100, 250, 500, 1_000, 2_500, 5_000, 10_000},
		},
		[]string{"chain", "status"},
	)
	metrics.ResourceFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nftgw_resource_fetches",
			Help: "Total number of linked resource fetches by status",
		},
		[]string{"status"},
	)
	metrics.ResourceBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nftgw_resource_bytes",
			Help:    "Size of successfully fetched linked resources",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		},
	)
	metrics.ResolveHops = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nftgw_resolve_hops",
			Help:    "Number of protocol hops needed to resolve a token asset",
			Buckets: []float64{1, 2, 3, 4, 6, 8, 16},
		},
	)
	metrics.InlinedResources = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nftgw_inlined_resources",
			Help: "Total number of SVG resource references by outcome",
		},
		[]string{"outcome"},
	)

	v := reflect.ValueOf(metrics)
	for i := 0; i < v.NumField(); i++ {
		c := v.Field(i).Interface().(prometheus.Collector)
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return &metrics, nil
}

func (m *Metrics) ObserveRequest(route, status string) {
	if m == nil {
		return
	}
	m.Requests.With(Labels{"route": route, "status": status}).Inc()
}

func (m *Metrics) ObserveRPC(chain, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RPCLatency.With(Labels{"chain": chain, "status": status}).Observe(float64(d.Milliseconds()))
}

func (m *Metrics) ObserveFetch(status string, size int) {
	if m == nil {
		return
	}
	m.ResourceFetches.With(Labels{"status": status}).Inc()
	if status == "ok" {
		m.ResourceBytes.Observe(float64(size))
	}
}

func (m *Metrics) ObserveHops(hops int) {
	if m == nil {
		return
	}
	m.ResolveHops.Observe(float64(hops))
}

func (m *Metrics) ObserveInlined(outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.InlinedResources.With(Labels{"outcome": outcome}).Add(float64(n))
}
