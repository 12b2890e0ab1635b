package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// EOD job metrics
	JobRuns           *prometheus.CounterVec
	JobFailures       *prometheus.CounterVec
	JobDuration       *prometheus.HistogramVec
	EntitiesProcessed *prometheus.CounterVec
	SnapshotRetries   *prometheus.CounterVec
	BooksImbalance    prometheus.Gauge
	BusinessDate      prometheus.Gauge

	// FX metrics
	SettlementsPosted *prometheus.CounterVec
	RevaluationsMade  *prometheus.CounterVec

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Database metrics
	DBErrors *prometheus.CounterVec

	// Redis metrics
	RedisErrors *prometheus.CounterVec

	// Outbox metrics
	EventsPublished *prometheus.CounterVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// New creates and registers all Prometheus metrics against registerer.
// A nil registerer uses the default registry once per process.
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = build(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return build(registerer)
}

func build(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	return &Metrics{
		// EOD job metrics
		JobRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eodledger_jobs_total",
				Help: "Total EOD job executions by job and status",
			},
			[]string{"job", "status"},
		),
		JobFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eodledger_jobs_failures_total",
				Help: "Total EOD job failures",
			},
			[]string{"job"},
		),
		JobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "eodledger_job_duration_seconds",
				Help:    "Duration of EOD job executions",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
			},
			[]string{"job"},
		),
		EntitiesProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eodledger_entities_processed_total",
				Help: "Per-entity outcomes inside EOD jobs",
			},
			[]string{"job", "result"},
		),
		SnapshotRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eodledger_snapshot_write_retries_total",
				Help: "Duplicate-key cleanup retries on balance snapshot writes",
			},
			[]string{"ledger"},
		),
		BooksImbalance: factory.NewGauge(prometheus.GaugeOpts{
			Name: "eodledger_books_imbalance",
			Help: "Sum of GL closing balances after the last GL balance update",
		}),
		BusinessDate: factory.NewGauge(prometheus.GaugeOpts{
			Name: "eodledger_business_date_unix",
			Help: "Current business date as a unix timestamp",
		}),

		// FX metrics
		SettlementsPosted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eodledger_fx_settlements_total",
				Help: "FX deals settled against the WAE position",
			},
			[]string{"currency", "side"},
		),
		RevaluationsMade: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eodledger_fx_revaluations_total",
				Help: "Mark-to-market revaluations by currency",
			},
			[]string{"currency"},
		),

		// API metrics
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eodledger_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "eodledger_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		// Database metrics
		DBErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eodledger_db_errors_total",
				Help: "Total database errors",
			},
			[]string{"operation"},
		),

		// Redis metrics
		RedisErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eodledger_redis_errors_total",
				Help: "Total Redis errors",
			},
			[]string{"operation"},
		),

		// Outbox metrics
		EventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eodledger_outbox_events_total",
				Help: "Total outbox events handed to the publisher",
			},
			[]string{"event_type", "result"},
		),
	}
}

// Tracker records the lifecycle of a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track starts a tracker for the given job name.
func (m *Metrics) Track(job string) *Tracker {
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End records duration and outcome and returns err untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.JobFailures.WithLabelValues(t.job).Inc()
	}
	t.metrics.JobRuns.WithLabelValues(t.job, status).Inc()
	t.metrics.JobDuration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// EntityResult counts one processed entity.
func (m *Metrics) EntityResult(job string, ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.EntitiesProcessed.WithLabelValues(job, result).Inc()
}

// SnapshotRetry counts one duplicate-key retry.
func (m *Metrics) SnapshotRetry(ledger string) {
	if m == nil {
		return
	}
	m.SnapshotRetries.WithLabelValues(ledger).Inc()
}

// SetBooksImbalance publishes the last books check result.
func (m *Metrics) SetBooksImbalance(v float64) {
	if m == nil {
		return
	}
	m.BooksImbalance.Set(v)
}

// SetBusinessDate publishes the current business date.
func (m *Metrics) SetBusinessDate(d time.Time) {
	if m == nil {
		return
	}
	m.BusinessDate.Set(float64(d.Unix()))
}

// SettlementPosted counts one FX settlement.
func (m *Metrics) SettlementPosted(currency, side string) {
	if m == nil {
		return
	}
	m.SettlementsPosted.WithLabelValues(currency, side).Inc()
}

// RevaluationPosted counts one revaluation record.
func (m *Metrics) RevaluationPosted(currency string) {
	if m == nil {
		return
	}
	m.RevaluationsMade.WithLabelValues(currency).Inc()
}

// HTTPRequest records one served request.
func (m *Metrics) HTTPRequest(method, path string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// DBError counts one failed database operation.
func (m *Metrics) DBError(operation string) {
	if m == nil {
		return
	}
	m.DBErrors.WithLabelValues(operation).Inc()
}

// RedisError counts one failed redis operation.
func (m *Metrics) RedisError(operation string) {
	if m == nil {
		return
	}
	m.RedisErrors.WithLabelValues(operation).Inc()
}

// EventPublished counts one outbox publish attempt.
func (m *Metrics) EventPublished(eventType string, ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.EventsPublished.WithLabelValues(eventType, result).Inc()
}
