package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	preimage "github.com/mantlenetworkio/op-celestia-host/op-preimage"
	opmetrics "github.com/mantlenetworkio/op-celestia-host/op-service/metrics"
)

const Namespace = "op_celestia_host"

type Metrics struct {
	ns       string
	registry *prometheus.Registry
	factory  opmetrics.Factory

	info prometheus.GaugeVec
	up   prometheus.Gauge

	hints         *prometheus.CounterVec
	hintDuration  *prometheus.HistogramVec
	preimages     *prometheus.CounterVec
	fallbacks     *prometheus.CounterVec
	fetches       *prometheus.CounterVec
	fetchAttempts *prometheus.HistogramVec
}

var _ Metricer = (*Metrics)(nil)

func NewMetrics() *Metrics {
	return newMetrics(opmetrics.NewRegistry())
}

func newMetrics(registry *prometheus.Registry) *Metrics {
	ns := Namespace
	factory := opmetrics.With(registry)
	return &Metrics{
		ns:       ns,
		registry: registry,
		factory:  factory,

		info: *factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "info",
			Help:      "Pseudo-metric tracking version and config info",
		}, []string{
			"version",
		}),
		up: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "up",
			Help:      "1 if the host has finished starting up",
		}),

		hints: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "hints_total",
			Help:      "Count of hints routed, by hint name and outcome",
		}, []string{"hint", "status"}),
		hintDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "hint_duration_seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			Help:      "Duration of fetching and verifying the preimages of a hint",
		}, []string{"hint"}),
		preimages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "preimage_requests_total",
			Help:      "Count of preimage requests, by key kind and response status",
		}, []string{"kind", "status"}),
		fallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "preimage_fallbacks_total",
			Help:      "Count of preimage requests that missed the cache and were fetched without a completed hint",
		}, []string{"kind"}),
		fetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "fetches_total",
			Help:      "Count of backend requests, by source, operation and outcome",
		}, []string{"source", "op", "status"}),
		fetchAttempts: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "fetch_attempts",
			Buckets:   []float64{1, 2, 3, 5, 8, 13},
			Help:      "Attempts made per backend request",
		}, []string{"source", "op"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordInfo sets a pseudo-metric that contains versioning and config info.
func (m *Metrics) RecordInfo(version string) {
	m.info.WithLabelValues(version).Set(1)
}

// RecordUp sets the up metric to 1.
func (m *Metrics) RecordUp() {
	m.up.Set(1)
}

func (m *Metrics) RecordHint(name string) (onDone func(err error)) {
	timer := prometheus.NewTimer(m.hintDuration.WithLabelValues(name))
	return func(err error) {
		timer.ObserveDuration()
		m.hints.WithLabelValues(name, statusLabel(err)).Inc()
	}
}

func (m *Metrics) RecordPreimageRequest(kind string, err error) {
	m.preimages.WithLabelValues(kind, statusLabel(err)).Inc()
}

func (m *Metrics) RecordFallback(kind string) {
	m.fallbacks.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordFetch(source string, op string, attempts int, err error) {
	m.fetches.WithLabelValues(source, op, statusLabel(err)).Inc()
	m.fetchAttempts.WithLabelValues(source, op).Observe(float64(attempts))
}

// statusLabel names the response status err maps to.
func statusLabel(err error) string {
	return preimage.StatusForError(err).String()
}
