package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/haierkeys/fast-db-backup-service/internal/dao"
	"github.com/haierkeys/fast-db-backup-service/internal/domain"
	"github.com/haierkeys/fast-db-backup-service/pkg/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseConfigDefaults(t *testing.T) {
	t.Setenv(EnvBackupDir, "")
	c, err := ParseConfig([]byte("log:\n  level: debug\n"))
	require.NoError(t, err)

	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, "storage/backups", c.Backup.RootDir)
	assert.Equal(t, "Europe/Istanbul", c.Backup.Timezone)
	assert.Equal(t, "sqlite", c.Database.Type)
	assert.Equal(t, 587, c.Mail.Port)
	assert.Equal(t, 4, c.WorkerPool.MaxWorkers)

	sc, err := c.ServiceConfig()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, sc.Backup.CommandTimeout)
	assert.Equal(t, int64(10<<20), sc.Backup.MaxOutputSize)
	assert.Equal(t, int64(1<<30), sc.Backup.MinFreeSpace)
	assert.Equal(t, int64(0), sc.Backup.UploadRateLimit)
	assert.Equal(t, 12*time.Hour, c.StaleRunningAfter())
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv(EnvBackupDir, "/var/backups/db")
	c, err := ParseConfig([]byte(`
backup:
  root-dir: /data
  command-timeout: 5m
  upload-rate-limit: 2MB
`))
	require.NoError(t, err)
	assert.Equal(t, "/var/backups/db", c.Backup.RootDir)

	sc, err := c.ServiceConfig()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, sc.Backup.CommandTimeout, "command timeout has a 30 minute floor")
	assert.Equal(t, int64(2<<20), sc.Backup.UploadRateLimit)
}

func TestParseConfigRejectsInvalid(t *testing.T) {
	_, err := ParseConfig([]byte("backup:\n  timezone: Mars/Olympus\n"))
	assert.Error(t, err)

	_, err = ParseConfig([]byte("backup:\n  lock-ttl: soon\n"))
	assert.Error(t, err)
}

func TestNewAppSchedulesActiveJobs(t *testing.T) {
	ctx := context.Background()
	t.Setenv(EnvBackupDir, filepath.Join(t.TempDir(), "backups"))
	cfg, err := ParseConfig([]byte("security:\n  credential-key: app-test-key\n"))
	require.NoError(t, err)

	db, err := dao.NewDBEngine(dao.DatabaseConfig{Type: "sqlite", Path: ":memory:"}, false)
	require.NoError(t, err)
	require.NoError(t, dao.New(db).Migrate())

	a, err := NewApp(cfg, zap.NewNop(), db)
	require.NoError(t, err)

	p, err := a.DatabaseService.Create(ctx, &domain.DatabaseProfile{
		UserID: 1, Name: "app", Type: "postgresql", Host: "localhost", Port: 5432, Database: "app", Username: "u", Password: "pw",
	})
	require.NoError(t, err)

	daily, err := a.JobService.Create(ctx, &domain.BackupJob{
		UserID: 1, DatabaseID: p.ID, Name: "daily", ScheduleType: schedule.TypeDaily, StorageType: "local", IsActive: true,
	})
	require.NoError(t, err)
	manual, err := a.JobService.Create(ctx, &domain.BackupJob{
		UserID: 1, DatabaseID: p.ID, Name: "adhoc", ScheduleType: schedule.TypeManual, StorageType: "local", IsActive: true,
	})
	require.NoError(t, err)

	require.NoError(t, a.StartScheduler(ctx))
	assert.True(t, a.SchedulerService.IsScheduled(daily.ID))
	assert.False(t, a.SchedulerService.IsScheduled(manual.ID))

	stored, err := a.JobRepo.GetByID(ctx, daily.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.NextRunAt)
	assert.True(t, stored.NextRunAt.After(time.Now()))

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, a.Shutdown(shutdownCtx))
	assert.True(t, a.IsShuttingDown())
	assert.NoError(t, a.Shutdown(shutdownCtx), "second shutdown is a no-op")
}
