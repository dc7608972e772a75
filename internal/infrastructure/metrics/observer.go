package metrics

import (
	"net/http"

	"github.com/btcvault/por/internal/core/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "por"

// Observer exports the outcome of every audit as Prometheus metrics.
type Observer struct {
	registry *prometheus.Registry

	reserveBTC    prometheus.Gauge
	reserveSats   prometheus.Gauge
	vaults        *prometheus.GaugeVec
	auditDuration prometheus.Histogram
	auditFailures prometheus.Counter
	lastAudit     prometheus.Gauge
}

func NewObserver() *Observer {
	o := &Observer{
		registry: prometheus.NewRegistry(),
		reserveBTC: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reserve_btc",
			Help:      "Total BTC locked in verified vaults as of the last audit.",
		}),
		reserveSats: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reserve_sats",
			Help:      "Total satoshis locked in verified vaults as of the last audit.",
		}),
		vaults: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "vaults",
			Help:      "Number of funded vaults per verification outcome in the last audit.",
		}, []string{"outcome"}),
		auditDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "audit_duration_seconds",
			Help:      "Duration of completed audits.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		auditFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_failures_total",
			Help:      "Number of audits aborted by a ledger or attestor key failure.",
		}),
		lastAudit: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_audit_timestamp_seconds",
			Help:      "Start time of the last completed audit.",
		}),
	}

	o.registry.MustRegister(
		o.reserveBTC, o.reserveSats, o.vaults, o.auditDuration,
		o.auditFailures, o.lastAudit,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return o
}

func (o *Observer) AuditCompleted(report *domain.ReserveReport) {
	o.reserveBTC.Set(report.Total.InexactFloat64())
	o.reserveSats.Set(float64(report.TotalSats))
	o.vaults.WithLabelValues(string(domain.OutcomeVerified)).Set(float64(report.Verified))
	o.vaults.WithLabelValues(string(domain.OutcomeRejected)).Set(float64(report.Rejected))
	o.vaults.WithLabelValues(string(domain.OutcomeExcluded)).Set(float64(report.Excluded))
	o.auditDuration.Observe(report.Duration.Seconds())
	o.lastAudit.Set(float64(report.StartedAt.Unix()))
}

func (o *Observer) AuditFailed(err error) {
	o.auditFailures.Inc()
}

func (o *Observer) Handler() http.Handler {
	return promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{Registry: o.registry})
}
