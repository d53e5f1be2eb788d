package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveBackup(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	done := m.BackupStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.running))
	done()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.running))

	m.ObserveBackup("postgresql", "success", 3*time.Second, 2048)
	m.ObserveBackup("postgresql", "failed", time.Second, 0)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.backupRuns.WithLabelValues("postgresql", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.backupRuns.WithLabelValues("postgresql", "failed")))

	m.ObserveVerification("FULL", "PASSED")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.verifications.WithLabelValues("FULL", "PASSED")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.BackupStarted()()
	m.ObserveBackup("mysql", "success", time.Second, 1)
	m.ObserveRestore("success")
	m.ObserveRetention("deleted")
	m.SetScheduledJobs(3)
}
