package service

import (
	"context"
	"errors"
	"testing"

	"github.com/haierkeys/fast-db-backup-service/internal/domain"
	"github.com/haierkeys/fast-db-backup-service/pkg/code"
	"github.com/haierkeys/fast-db-backup-service/pkg/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockDatabaseRepo struct {
	domain.DatabaseRepository
	profiles map[int64]*domain.DatabaseProfile
	nextID   int64
}

func (m *mockDatabaseRepo) GetByID(ctx context.Context, id int64) (*domain.DatabaseProfile, error) {
	p, ok := m.profiles[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *mockDatabaseRepo) Create(ctx context.Context, p *domain.DatabaseProfile) (*domain.DatabaseProfile, error) {
	m.nextID++
	cp := *p
	cp.ID = m.nextID
	m.profiles[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *mockDatabaseRepo) Update(ctx context.Context, p *domain.DatabaseProfile) (*domain.DatabaseProfile, error) {
	cp := *p
	m.profiles[p.ID] = &cp
	out := cp
	return &out, nil
}

type mockCloudStorageRepo struct {
	domain.CloudStorageRepository
	configs map[int64]*domain.CloudStorageConfig
	nextID  int64
	setDef  []int64
}

func (m *mockCloudStorageRepo) GetByID(ctx context.Context, id int64) (*domain.CloudStorageConfig, error) {
	c, ok := m.configs[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *mockCloudStorageRepo) GetDefault(ctx context.Context, userID int64, storageType string) (*domain.CloudStorageConfig, error) {
	for _, c := range m.configs {
		if c.UserID == userID && c.StorageType == storageType && c.IsDefault {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockCloudStorageRepo) Create(ctx context.Context, c *domain.CloudStorageConfig) (*domain.CloudStorageConfig, error) {
	m.nextID++
	cp := *c
	cp.ID = m.nextID
	m.configs[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *mockCloudStorageRepo) Update(ctx context.Context, c *domain.CloudStorageConfig) (*domain.CloudStorageConfig, error) {
	cp := *c
	m.configs[c.ID] = &cp
	out := cp
	return &out, nil
}

func (m *mockCloudStorageRepo) SetDefault(ctx context.Context, userID, id int64) error {
	m.setDef = append(m.setDef, id)
	return nil
}

type mockScheduler struct {
	started []int64
	stopped []int64
}

func (m *mockScheduler) StartScheduledJob(ctx context.Context, job *domain.BackupJob) error {
	m.started = append(m.started, job.ID)
	return nil
}

func (m *mockScheduler) StopScheduledJob(jobID int64) {
	m.stopped = append(m.stopped, jobID)
}

type jobFixture struct {
	jobs     *mockJobRepo
	storages *mockCloudStorageRepo
	sched    *mockScheduler
	svc      JobService
}

func newJobFixture() *jobFixture {
	f := &jobFixture{
		jobs: newMockJobRepo(),
		storages: &mockCloudStorageRepo{configs: map[int64]*domain.CloudStorageConfig{
			5: {ID: 5, UserID: 7, StorageType: "s3", IsDefault: true},
			6: {ID: 6, UserID: 8, StorageType: "s3"},
			9: {ID: 9, UserID: 7, StorageType: "ftp"},
		}},
		sched: &mockScheduler{},
	}
	dbs := &mockDatabaseRepo{profiles: map[int64]*domain.DatabaseProfile{
		3: {ID: 3, UserID: 7, Type: "postgresql"},
		4: {ID: 4, UserID: 8, Type: "mysql"},
	}}
	f.svc = NewJobService(f.jobs, dbs, f.storages, f.sched, zap.NewNop())
	return f
}

func TestJobCreateAppliesDefaultsAndSchedules(t *testing.T) {
	f := newJobFixture()
	job, err := f.svc.Create(context.Background(), &domain.BackupJob{
		UserID:       7,
		DatabaseID:   3,
		Name:         "  nightly ",
		ScheduleType: schedule.TypeDaily,
		StorageType:  "s3",
		IsActive:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, "nightly", job.Name)
	assert.Equal(t, int64(5), job.CloudStorageID, "user's default s3 config is used")
	assert.Equal(t, DefaultRetentionDays, job.RetentionDays)
	assert.Equal(t, domain.BackupTypeFull, job.BackupType)
	assert.Equal(t, []int64{job.ID}, f.sched.started)
}

func TestJobValidation(t *testing.T) {
	base := func() *domain.BackupJob {
		return &domain.BackupJob{UserID: 7, DatabaseID: 3, Name: "j", ScheduleType: schedule.TypeManual, StorageType: "local"}
	}
	tests := []struct {
		name   string
		mutate func(j *domain.BackupJob)
		want   *code.Code
	}{
		{"missing name", func(j *domain.BackupJob) { j.Name = "" }, code.ErrorInvalidParams},
		{"unknown database", func(j *domain.BackupJob) { j.DatabaseID = 99 }, code.ErrorDatabaseNotFound},
		{"foreign database", func(j *domain.BackupJob) { j.DatabaseID = 4 }, code.ErrorAccessDenied},
		{"bad schedule type", func(j *domain.BackupJob) { j.ScheduleType = "yearly" }, code.ErrorInvalidScheduleConfig},
		{"custom without cron", func(j *domain.BackupJob) { j.ScheduleType = schedule.TypeCustom }, code.ErrorInvalidCronExpression},
		{"advanced without config", func(j *domain.BackupJob) { j.ScheduleType = schedule.TypeAdvanced }, code.ErrorInvalidScheduleConfig},
		{"bad storage type", func(j *domain.BackupJob) { j.StorageType = "dropbox" }, code.ErrorInvalidStorageType},
		{"cloud without config", func(j *domain.BackupJob) { j.StorageType = "webdav" }, code.ErrorCloudStorageNotFound},
		{"foreign cloud config", func(j *domain.BackupJob) { j.StorageType = "s3"; j.CloudStorageID = 6 }, code.ErrorAccessDenied},
		{"cloud type mismatch", func(j *domain.BackupJob) { j.StorageType = "s3"; j.CloudStorageID = 9 }, code.ErrorInvalidParams},
		{"negative retention", func(j *domain.BackupJob) { j.RetentionDays = -1 }, code.ErrorInvalidParams},
		{"encrypted without password", func(j *domain.BackupJob) { j.IsEncrypted = true }, code.ErrorInvalidParams},
		{"unknown backup type", func(j *domain.BackupJob) { j.BackupType = "snapshot" }, code.ErrorInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newJobFixture()
			j := base()
			tt.mutate(j)
			_, err := f.svc.Create(context.Background(), j)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Empty(t, f.sched.started)
		})
	}
}

func TestJobSetActiveAndDelete(t *testing.T) {
	ctx := context.Background()
	f := newJobFixture()
	job, err := f.svc.Create(ctx, &domain.BackupJob{UserID: 7, DatabaseID: 3, Name: "j", ScheduleType: schedule.TypeHourly, StorageType: "local", IsActive: true})
	require.NoError(t, err)

	off, err := f.svc.SetActive(ctx, 7, job.ID, false)
	require.NoError(t, err)
	assert.False(t, off.IsActive)
	assert.Nil(t, off.NextRunAt)
	assert.Equal(t, []int64{job.ID}, f.sched.stopped)

	_, err = f.svc.SetActive(ctx, 7, job.ID, true)
	require.NoError(t, err)
	assert.Equal(t, []int64{job.ID, job.ID}, f.sched.started)

	assert.Equal(t, code.KindAccessDenied, code.KindOf(f.svc.Delete(ctx, 8, job.ID)))
	require.NoError(t, f.svc.Delete(ctx, 7, job.ID))
	assert.Equal(t, []int64{job.ID, job.ID}, f.sched.stopped)

	_, err = f.svc.Get(ctx, 7, job.ID)
	assert.True(t, errors.Is(err, code.ErrorBackupJobNotFound))
}

func TestJobUpdateKeepsEncryptionSecret(t *testing.T) {
	ctx := context.Background()
	f := newJobFixture()
	job, err := f.svc.Create(ctx, &domain.BackupJob{UserID: 7, DatabaseID: 3, Name: "j", ScheduleType: schedule.TypeManual, StorageType: "local", IsEncrypted: true, EncryptionPasswordHash: "h1"})
	require.NoError(t, err)

	job.EncryptionPasswordHash = ""
	job.Name = "renamed"
	updated, err := f.svc.Update(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
	assert.Equal(t, "h1", updated.EncryptionPasswordHash)
}
