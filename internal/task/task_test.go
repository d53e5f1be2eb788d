package task

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/haierkeys/fast-db-backup-service/pkg/safe_close"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingTask struct {
	runs     atomic.Int32
	interval time.Duration
	startup  bool
	panics   bool
}

func (t *countingTask) Name() string                { return "counting" }
func (t *countingTask) LoopInterval() time.Duration { return t.interval }
func (t *countingTask) IsStartupRun() bool          { return t.startup }
func (t *countingTask) Run(ctx context.Context) error {
	t.runs.Add(1)
	if t.panics {
		panic("boom")
	}
	return nil
}

func TestSchedulerRunsAndStops(t *testing.T) {
	sc := safe_close.NewSafeClose()
	s := NewScheduler(zap.NewNop(), sc)
	loop := &countingTask{interval: 10 * time.Millisecond, startup: true}
	once := &countingTask{startup: true, panics: true}
	s.AddTask(loop)
	s.AddTask(once)
	s.Start()

	assert.Eventually(t, func() bool { return loop.runs.Load() >= 3 }, time.Second, 5*time.Millisecond)

	sc.SendCloseSignal(nil)
	require.NoError(t, sc.WaitClosedTimeout(time.Second))
	assert.Equal(t, int32(1), once.runs.Load(), "a panicking startup task runs once and does not stop the scheduler")

	stopped := loop.runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, loop.runs.Load())
}

func TestTempCleanupRemovesOnlyOldEntries(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	oldFile := filepath.Join(dir, "old_dump.sql")
	oldDir := filepath.Join(dir, "old_extract")
	fresh := filepath.Join(dir, "fresh_dump.sql")
	require.NoError(t, os.WriteFile(oldFile, []byte("x"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(oldDir, "nested"), 0o750))
	require.NoError(t, os.WriteFile(fresh, []byte("y"), 0o600))
	past := now.Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(oldFile, past, past))
	require.NoError(t, os.Chtimes(oldDir, past, past))

	task := &TempCleanupTask{dir: dir, maxAge: 24 * time.Hour, logger: zap.NewNop(), now: func() time.Time { return now }}
	require.NoError(t, task.Run(context.Background()))

	_, err := os.Stat(oldFile)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(oldDir)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	assert.NoError(t, err)

	missing := &TempCleanupTask{dir: filepath.Join(dir, "absent"), maxAge: time.Hour, logger: zap.NewNop(), now: time.Now}
	assert.NoError(t, missing.Run(context.Background()))
}
