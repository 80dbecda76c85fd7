// Package metrics exposes ledger and catalog activity as Prometheus metrics
// on a private registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xtding233/wish-ledger/internal/gacha"
	"github.com/xtding233/wish-ledger/internal/ledger"
)

const namespace = "wish"

// Attempt buckets run to a few hundred; hard pity keeps a healthy pool well below that.
var attemptBuckets = []float64{1, 2, 5, 10, 20, 50, 100, 200, 500, 1000}

type Options struct {
	GoCollector      bool
	ProcessCollector bool
}

// Metrics implements ledger.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	items          *prometheus.CounterVec
	rateUps        *prometheus.CounterVec
	attempts       *prometheus.HistogramVec
	txDuration     *prometheus.HistogramVec
	insufficient   *prometheus.CounterVec
	catalogReloads *prometheus.CounterVec
}

var _ ledger.Recorder = (*Metrics)(nil)

func New(opts Options) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_drawn_total",
			Help:      "Items produced by draw sessions, by banner and tier.",
		}, []string{"banner", "tier"}),
		rateUps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_up_total",
			Help:      "Rare hits by banner and how the rate-up question was decided.",
		}, []string{"banner", "result"}),
		attempts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_attempts",
			Help:      "Iterations, retries included, per draw session.",
			Buckets:   attemptBuckets,
		}, []string{"banner"}),
		txDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ledger_tx_duration_seconds",
			Help:      "Ledger transaction latency by operation and result.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "result"}),
		insufficient: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "insufficient_funds_total",
			Help:      "Draw requests skipped for lack of tickets.",
		}, []string{"banner"}),
		catalogReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_reloads_total",
			Help:      "Catalog reload attempts by result.",
		}, []string{"result"}),
	}
	m.registry.MustRegister(m.items, m.rateUps, m.attempts, m.txDuration, m.insufficient, m.catalogReloads)
	if opts.GoCollector {
		m.registry.MustRegister(collectors.NewGoCollector())
	}
	if opts.ProcessCollector {
		m.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (m *Metrics) ObserveDraw(bannerID int64, sum gacha.Summary) {
	b := strconv.FormatInt(bannerID, 10)
	m.items.WithLabelValues(b, "rare").Add(float64(sum.RareHits))
	m.items.WithLabelValues(b, "common").Add(float64(sum.Produced - sum.RareHits))
	m.rateUps.WithLabelValues(b, "won").Add(float64(sum.RateUpHits - sum.ForcedRateUp))
	m.rateUps.WithLabelValues(b, "forced").Add(float64(sum.ForcedRateUp))
	m.rateUps.WithLabelValues(b, "lost").Add(float64(sum.LostRateUp))
	m.attempts.WithLabelValues(b).Observe(float64(sum.Attempts))
}

func (m *Metrics) ObserveTx(op string, err error, d time.Duration) {
	m.txDuration.WithLabelValues(op, result(err)).Observe(d.Seconds())
}

func (m *Metrics) InsufficientFunds(bannerID int64) {
	m.insufficient.WithLabelValues(strconv.FormatInt(bannerID, 10)).Inc()
}

// CatalogReload counts one reload attempt; pass it to catalog.OnReload.
func (m *Metrics) CatalogReload(err error) {
	m.catalogReloads.WithLabelValues(result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
