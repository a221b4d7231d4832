package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// CronJobMetrics records housekeeping runs. The last-success gauge is the one
// to alert on: a job that silently stops running never increments a failure.
type CronJobMetrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	purged      *prometheus.CounterVec
	lastSuccess *prometheus.GaugeVec
}

func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return nil
	}
	m := &CronJobMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "housekeeping_job_runs_total",
			Help: "Housekeeping job runs by outcome.",
		}, []string{"job", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "housekeeping_job_duration_seconds",
			Help:    "Wall time of housekeeping job runs.",
			Buckets: []float64{.05, .25, 1, 5, 30, 120, 600},
		}, []string{"job"}),
		purged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "housekeeping_rows_purged_total",
			Help: "Rows removed by housekeeping jobs.",
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "housekeeping_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run per job.",
		}, []string{"job"}),
	}
	reg.MustRegister(m.runs, m.duration, m.purged, m.lastSuccess)
	return m
}

// Observe records one finished run. A nil err counts as success.
func (c *CronJobMetrics) Observe(job string, took time.Duration, err error) {
	if c == nil {
		return
	}
	job = normalizeLabel(job)
	c.duration.WithLabelValues(job).Observe(took.Seconds())
	if err != nil {
		c.runs.WithLabelValues(job, outcomeFailure).Inc()
		return
	}
	c.runs.WithLabelValues(job, outcomeSuccess).Inc()
	c.lastSuccess.WithLabelValues(job).SetToCurrentTime()
}

func (c *CronJobMetrics) AddPurged(job string, rows int64) {
	if c == nil || rows <= 0 {
		return
	}
	c.purged.WithLabelValues(normalizeLabel(job)).Add(float64(rows))
}
