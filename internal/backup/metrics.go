package backup

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "results_backup"

// Metrics is a prometheus.Collector for backup activity. All methods are
// safe to call on a nil *Metrics, which records nothing.
type Metrics struct {
	backupsTotal     *prometheus.CounterVec
	backupDuration   prometheus.Histogram
	retentionDeleted *prometheus.CounterVec
	restoresTotal    *prometheus.CounterVec
	lastSuccess      prometheus.Gauge
	lastSize         prometheus.Gauge
	retained         prometheus.Gauge
}

// NewMetrics creates the collector and registers it when reg is not nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		backupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "backups_total",
				Help:      "The number of backup attempts by trigger and result.",
			}, []string{"trigger", "result"},
		),
		backupDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "backup_duration_seconds",
				Help:      "The time taken to write one backup file.",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		),
		retentionDeleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "retention_deleted_total",
				Help:      "The number of backups removed by retention, by result.",
			}, []string{"result"},
		),
		restoresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "restores_total",
				Help:      "The number of restore attempts by result.",
			}, []string{"result"},
		),
		lastSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last successful backup.",
			},
		),
		lastSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "last_size_bytes",
				Help:      "Size of the last successful backup.",
			},
		),
		retained: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "retained_backups",
				Help:      "The number of backups left after the last retention pass.",
			},
		),
	}

	if reg != nil {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Describe is part of the prometheus.Collector interface.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.backupsTotal.Describe(ch)
	m.backupDuration.Describe(ch)
	m.retentionDeleted.Describe(ch)
	m.restoresTotal.Describe(ch)
	m.lastSuccess.Describe(ch)
	m.lastSize.Describe(ch)
	m.retained.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.backupsTotal.Collect(ch)
	m.backupDuration.Collect(ch)
	m.retentionDeleted.Collect(ch)
	m.restoresTotal.Collect(ch)
	m.lastSuccess.Collect(ch)
	m.lastSize.Collect(ch)
	m.retained.Collect(ch)
}

// BackupWritten records a successful backup.
func (m *Metrics) BackupWritten(trigger Trigger, record *BackupRecord, took time.Duration, at time.Time) {
	if m == nil {
		return
	}
	m.backupsTotal.WithLabelValues(string(trigger), "success").Inc()
	m.backupDuration.Observe(took.Seconds())
	m.lastSuccess.Set(float64(at.Unix()))
	if record != nil {
		m.lastSize.Set(float64(record.Size))
	}
}

// BackupSkipped records a backup attempt with nothing stored.
func (m *Metrics) BackupSkipped(trigger Trigger) {
	if m == nil {
		return
	}
	m.backupsTotal.WithLabelValues(string(trigger), "skipped").Inc()
}

// BackupFailed records a failed backup attempt.
func (m *Metrics) BackupFailed(trigger Trigger) {
	if m == nil {
		return
	}
	m.backupsTotal.WithLabelValues(string(trigger), "failure").Inc()
}

// RetentionDeleted counts one retention delete attempt.
func (m *Metrics) RetentionDeleted(ok bool) {
	if m == nil {
		return
	}
	m.retentionDeleted.WithLabelValues(resultLabel(ok)).Inc()
}

// SetRetained sets the number of backups left on disk.
func (m *Metrics) SetRetained(n int) {
	if m == nil {
		return
	}
	m.retained.Set(float64(n))
}

// Restore counts one restore attempt.
func (m *Metrics) Restore(ok bool) {
	if m == nil {
		return
	}
	m.restoresTotal.WithLabelValues(resultLabel(ok)).Inc()
}

func resultLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
