// Package metrics 定义备份服务的 Prometheus 指标
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dbbackup"

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	backupRuns       *prometheus.CounterVec
	backupDuration   *prometheus.HistogramVec
	backupSize       *prometheus.HistogramVec
	running          prometheus.Gauge
	restores         *prometheus.CounterVec
	verifications    *prometheus.CounterVec
	retentionDeleted *prometheus.CounterVec
	scheduledJobs    prometheus.Gauge
}

// New 创建并注册全部指标
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		backupRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backup_runs_total",
			Help:      "Backup executions by engine and final status.",
		}, []string{"engine", "status"}),
		backupDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backup_duration_seconds",
			Help:      "Wall clock duration of backup executions.",
			Buckets:   []float64{1, 5, 15, 30, 60, 300, 900, 1800, 3600, 7200},
		}, []string{"engine"}),
		backupSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backup_artifact_bytes",
			Help:      "Size of the final backup artifact.",
			Buckets:   prometheus.ExponentialBuckets(1024, 8, 10),
		}, []string{"engine"}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backups_running",
			Help:      "Backup executions currently in flight.",
		}),
		restores: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "restore_runs_total",
			Help:      "Restore executions by status.",
		}, []string{"status"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verifications_total",
			Help:      "Backup verifications by level and result.",
		}, []string{"level", "status"}),
		retentionDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retention_deletions_total",
			Help:      "Expired backups processed by retention cleanup.",
		}, []string{"result"}),
		scheduledJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduled_jobs",
			Help:      "Jobs with a live scheduler entry.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.backupRuns, m.backupDuration, m.backupSize, m.running,
			m.restores, m.verifications, m.retentionDeleted, m.scheduledJobs)
	}
	return m
}

// BackupStarted 记录开始，返回的函数在结束时调用
func (m *Metrics) BackupStarted() func() {
	if m == nil {
		return func() {}
	}
	m.running.Inc()
	return m.running.Dec
}

func (m *Metrics) ObserveBackup(engine, status string, d time.Duration, size int64) {
	if m == nil {
		return
	}
	m.backupRuns.WithLabelValues(engine, status).Inc()
	m.backupDuration.WithLabelValues(engine).Observe(d.Seconds())
	if size > 0 {
		m.backupSize.WithLabelValues(engine).Observe(float64(size))
	}
}

func (m *Metrics) ObserveRestore(status string) {
	if m == nil {
		return
	}
	m.restores.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveVerification(level, status string) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(level, status).Inc()
}

func (m *Metrics) ObserveRetention(result string) {
	if m == nil {
		return
	}
	m.retentionDeleted.WithLabelValues(result).Inc()
}

func (m *Metrics) SetScheduledJobs(n int) {
	if m == nil {
		return
	}
	m.scheduledJobs.Set(float64(n))
}
