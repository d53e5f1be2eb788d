package dao

import (
	"context"
	"testing"
	"time"

	"github.com/haierkeys/fast-db-backup-service/internal/domain"
	"github.com/haierkeys/fast-db-backup-service/pkg/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDao(t *testing.T) *Dao {
	t.Helper()
	db, err := NewDBEngine(DatabaseConfig{Type: "sqlite", Path: ":memory:", TablePrefix: "t_"}, false)
	require.NoError(t, err)
	d := New(db)
	require.NoError(t, d.Migrate())
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return d
}

func TestBackupJobRepository(t *testing.T) {
	ctx := context.Background()
	d := newTestDao(t)
	repo := NewBackupJobRepository(d)

	adv := &schedule.AdvancedConfig{
		Interval:     2,
		IntervalUnit: schedule.UnitHour,
		StartTime:    "02:00",
		WeekDays:     []int{1, 3, 5},
		MonthDays:    []schedule.MonthDay{{Day: 1}, {Last: true}},
	}
	created, err := repo.Create(ctx, &domain.BackupJob{
		UserID:                 1,
		DatabaseID:             9,
		Name:                   "nightly",
		ScheduleType:           schedule.TypeAdvanced,
		AdvancedScheduleConfig: adv,
		StorageType:            "local",
		RetentionDays:          7,
		Compression:            false,
		BackupType:             domain.BackupTypeFull,
		IsActive:               false,
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "nightly", got.Name)
	assert.False(t, got.IsActive, "false booleans must survive insert")
	assert.False(t, got.Compression)
	require.NotNil(t, got.AdvancedScheduleConfig)
	assert.Equal(t, adv.WeekDays, got.AdvancedScheduleConfig.WeekDays)
	assert.True(t, got.AdvancedScheduleConfig.MonthDays[1].Last)

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	got.IsActive = true
	_, err = repo.Update(ctx, got)
	require.NoError(t, err)
	active, err = repo.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	next := time.Date(2025, 3, 12, 23, 0, 0, 0, time.UTC)
	last := next.Add(-time.Hour)
	require.NoError(t, repo.UpdateRunTimes(ctx, created.ID, &last, &next))
	got, err = repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got.NextRunAt)
	assert.True(t, next.Equal(*got.NextRunAt))
	assert.True(t, last.Equal(*got.LastRunAt))

	yes := true
	byUser, err := repo.ListByUserID(ctx, 1, domain.JobFilter{IsActive: &yes, Keyword: "night"})
	require.NoError(t, err)
	assert.Len(t, byUser, 1)

	missing, err := repo.GetByID(ctx, 999)
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestBackupHistoryRepository(t *testing.T) {
	ctx := context.Background()
	d := newTestDao(t)
	jobs := NewBackupJobRepository(d)
	repo := NewBackupHistoryRepository(d)

	job, err := jobs.Create(ctx, &domain.BackupJob{UserID: 1, DatabaseID: 2, Name: "j", ScheduleType: "manual", StorageType: "local", RetentionDays: 1, BackupType: "full"})
	require.NoError(t, err)

	old := time.Now().Add(-48 * time.Hour)
	h, err := repo.Create(ctx, &domain.BackupHistory{BackupJobID: job.ID, DatabaseID: 2, UserID: 1, Status: domain.BackupStatusRunning, StartedAt: old})
	require.NoError(t, err)

	require.NoError(t, repo.UpdateStatus(ctx, h.ID, &domain.HistoryResult{
		Status:      domain.BackupStatusSuccess,
		FileName:    "db.sql.gz",
		FilePath:    "/backups/job_1/db.sql.gz",
		FileSize:    128,
		Duration:    3,
		CompletedAt: time.Now(),
	}))
	err = repo.UpdateStatus(ctx, h.ID, &domain.HistoryResult{Status: domain.BackupStatusFailed})
	assert.ErrorIs(t, err, ErrHistoryNotRunning, "terminal rows are immutable")

	failed, err := repo.Create(ctx, &domain.BackupHistory{BackupJobID: job.ID, DatabaseID: 2, UserID: 1, Status: domain.BackupStatusRunning, StartedAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, repo.UpdateStatus(ctx, failed.ID, &domain.HistoryResult{Status: domain.BackupStatusFailed, ErrorMessage: "boom", CompletedAt: time.Now()}))

	expired, err := repo.ListExpired(ctx, job.ID, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, h.ID, expired[0].ID)

	recent, err := repo.ListByJobID(ctx, job.ID, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, failed.ID, recent[0].ID)

	stats, err := repo.GetStats(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.Total)
	assert.EqualValues(t, 1, stats.Success)
	assert.EqualValues(t, 1, stats.Failed)
	assert.EqualValues(t, 128, stats.TotalSize)
	require.NotNil(t, stats.LastBackupAt)

	now := time.Now()
	require.NoError(t, repo.UpdateVerification(ctx, h.ID, domain.VerificationPassed, "CHECKSUM", now))
	got, err := repo.GetByID(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationPassed, got.VerificationStatus)
	assert.Equal(t, "CHECKSUM", got.VerificationMethod)

	// deleting the job keeps its history, detached
	require.NoError(t, jobs.Delete(ctx, job.ID))
	got, err = repo.GetByID(ctx, h.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Zero(t, got.BackupJobID)
}

func TestCloudStorageSetDefault(t *testing.T) {
	ctx := context.Background()
	repo := NewCloudStorageRepository(newTestDao(t))

	a, err := repo.Create(ctx, &domain.CloudStorageConfig{UserID: 1, Name: "a", StorageType: "s3", IsActive: true, IsDefault: true})
	require.NoError(t, err)
	b, err := repo.Create(ctx, &domain.CloudStorageConfig{UserID: 1, Name: "b", StorageType: "s3", IsActive: true})
	require.NoError(t, err)
	other, err := repo.Create(ctx, &domain.CloudStorageConfig{UserID: 1, Name: "drive", StorageType: "google_drive", IsActive: true, IsDefault: true})
	require.NoError(t, err)

	require.NoError(t, repo.SetDefault(ctx, 1, b.ID))

	def, err := repo.GetDefault(ctx, 1, "s3")
	require.NoError(t, err)
	assert.Equal(t, b.ID, def.ID)

	gotA, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, gotA.IsDefault)

	gotOther, err := repo.GetByID(ctx, other.ID)
	require.NoError(t, err)
	assert.True(t, gotOther.IsDefault, "other storage types are untouched")

	assert.Error(t, repo.SetDefault(ctx, 2, b.ID), "foreign user")
}

func TestDatabaseRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewDatabaseRepository(newTestDao(t))

	p, err := repo.Create(ctx, &domain.DatabaseProfile{UserID: 3, Name: "main", Type: "postgresql", Host: "db", Port: 5432, Database: "app", Username: "u", Password: "enc:v1:xx", IsActive: true})
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "app", got.Database)
	assert.Equal(t, "enc:v1:xx", got.Password)

	list, err := repo.ListByUserID(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, repo.Delete(ctx, p.ID))
	got, err = repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}
