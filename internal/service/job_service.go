package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/haierkeys/fast-db-backup-service/internal/domain"
	"github.com/haierkeys/fast-db-backup-service/pkg/code"
	"github.com/haierkeys/fast-db-backup-service/pkg/schedule"
	"github.com/haierkeys/fast-db-backup-service/pkg/storage"
	"go.uber.org/zap"
)

// DefaultRetentionDays applies when a job is created without a retention period.
const DefaultRetentionDays = 30

// JobScheduler is the part of the scheduling engine job lifecycle hooks need.
type JobScheduler interface {
	StartScheduledJob(ctx context.Context, job *domain.BackupJob) error
	StopScheduledJob(jobID int64)
}

// JobService 备份任务业务服务接口
type JobService interface {
	Create(ctx context.Context, job *domain.BackupJob) (*domain.BackupJob, error)
	Update(ctx context.Context, job *domain.BackupJob) (*domain.BackupJob, error)
	Get(ctx context.Context, userID, id int64) (*domain.BackupJob, error)
	List(ctx context.Context, userID int64, filter domain.JobFilter) ([]*domain.BackupJob, error)
	SetActive(ctx context.Context, userID, id int64, active bool) (*domain.BackupJob, error)
	Delete(ctx context.Context, userID, id int64) error
}

type jobService struct {
	jobRepo     domain.BackupJobRepository
	dbRepo      domain.DatabaseRepository
	storageRepo domain.CloudStorageRepository
	scheduler   JobScheduler
	logger      *zap.Logger
}

// NewJobService 创建 JobService 实例
func NewJobService(jobRepo domain.BackupJobRepository, dbRepo domain.DatabaseRepository, storageRepo domain.CloudStorageRepository, scheduler JobScheduler, logger *zap.Logger) JobService {
	return &jobService{
		jobRepo:     jobRepo,
		dbRepo:      dbRepo,
		storageRepo: storageRepo,
		scheduler:   scheduler,
		logger:      logger,
	}
}

// validate checks the job and fills defaults: retention, backup type and the user's
// default cloud storage when none is selected.
func (s *jobService) validate(ctx context.Context, job *domain.BackupJob) error {
	job.Name = strings.TrimSpace(job.Name)
	if job.Name == "" {
		return code.ErrorInvalidParams.WithDetails("name is required")
	}

	db, err := s.dbRepo.GetByID(ctx, job.DatabaseID)
	if err != nil {
		return code.ErrorDBQuery.WithDetails(err.Error())
	}
	if db == nil {
		return code.ErrorDatabaseNotFound.WithDetails("id " + strconv.FormatInt(job.DatabaseID, 10))
	}
	if db.UserID != job.UserID {
		return code.ErrorAccessDenied
	}

	if !schedule.IsValidType(job.ScheduleType) {
		return code.ErrorInvalidScheduleConfig.WithDetails("unknown schedule type " + job.ScheduleType)
	}
	switch job.ScheduleType {
	case schedule.TypeCustom:
		if err := schedule.ValidateCron(job.CronExpression); err != nil {
			return err
		}
	case schedule.TypeAdvanced:
		if err := schedule.ValidateAdvancedConfig(job.AdvancedScheduleConfig); err != nil {
			return err
		}
	}
	if job.ScheduleType != schedule.TypeCustom {
		job.CronExpression = ""
	}
	if job.ScheduleType != schedule.TypeAdvanced {
		job.AdvancedScheduleConfig = nil
	}

	if job.StorageType == "" {
		job.StorageType = storage.LOCAL
	}
	if !storage.StorageTypeMap[job.StorageType] {
		return code.ErrorInvalidStorageType.WithDetails(job.StorageType)
	}
	if storage.IsCloud(job.StorageType) {
		if err := s.resolveCloudStorage(ctx, job); err != nil {
			return err
		}
	} else {
		job.CloudStorageID = 0
	}

	if job.RetentionDays == 0 {
		job.RetentionDays = DefaultRetentionDays
	}
	if job.RetentionDays < 1 {
		return code.ErrorInvalidParams.WithDetails("retentionDays must be at least 1")
	}

	if job.BackupType == "" {
		job.BackupType = domain.BackupTypeFull
	}
	if !domain.BackupTypeMap[job.BackupType] {
		return code.ErrorInvalidParams.WithDetails("unknown backup type " + job.BackupType)
	}

	if job.IsEncrypted && job.EncryptionPasswordHash == "" {
		return code.ErrorInvalidParams.WithDetails("encryption password is required when encryption is enabled")
	}
	if !job.IsEncrypted {
		job.EncryptionPasswordHash = ""
	}
	return nil
}

func (s *jobService) resolveCloudStorage(ctx context.Context, job *domain.BackupJob) error {
	var (
		c   *domain.CloudStorageConfig
		err error
	)
	if job.CloudStorageID == 0 {
		c, err = s.storageRepo.GetDefault(ctx, job.UserID, job.StorageType)
	} else {
		c, err = s.storageRepo.GetByID(ctx, job.CloudStorageID)
	}
	if err != nil {
		return code.ErrorDBQuery.WithDetails(err.Error())
	}
	if c == nil {
		return code.ErrorCloudStorageNotFound.WithDetails("a cloud storage config is required for " + job.StorageType)
	}
	if c.UserID != job.UserID {
		return code.ErrorAccessDenied
	}
	if c.StorageType != job.StorageType {
		return code.ErrorInvalidParams.WithDetails("cloud storage config type " + c.StorageType + " does not match " + job.StorageType)
	}
	job.CloudStorageID = c.ID
	return nil
}

func (s *jobService) Create(ctx context.Context, job *domain.BackupJob) (*domain.BackupJob, error) {
	if err := s.validate(ctx, job); err != nil {
		return nil, err
	}
	job.LastRunAt, job.NextRunAt = nil, nil
	created, err := s.jobRepo.Create(ctx, job)
	if err != nil {
		return nil, code.ErrorDBQuery.WithDetails(err.Error())
	}
	if err := s.scheduler.StartScheduledJob(ctx, created); err != nil {
		return nil, err
	}
	return created, nil
}

// Update 更新任务并重新注册定时器
func (s *jobService) Update(ctx context.Context, job *domain.BackupJob) (*domain.BackupJob, error) {
	old, err := s.Get(ctx, job.UserID, job.ID)
	if err != nil {
		return nil, err
	}
	if job.IsEncrypted && job.EncryptionPasswordHash == "" {
		job.EncryptionPasswordHash = old.EncryptionPasswordHash
	}
	if err := s.validate(ctx, job); err != nil {
		return nil, err
	}
	job.LastRunAt = old.LastRunAt
	job.NextRunAt = old.NextRunAt
	job.CreatedAt = old.CreatedAt

	updated, err := s.jobRepo.Update(ctx, job)
	if err != nil {
		return nil, code.ErrorDBQuery.WithDetails(err.Error())
	}
	if err := s.restart(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *jobService) Get(ctx context.Context, userID, id int64) (*domain.BackupJob, error) {
	job, err := s.jobRepo.GetByID(ctx, id)
	if err != nil {
		return nil, code.ErrorDBQuery.WithDetails(err.Error())
	}
	if job == nil {
		return nil, code.ErrorBackupJobNotFound.WithDetails("id " + strconv.FormatInt(id, 10))
	}
	if job.UserID != userID {
		return nil, code.ErrorAccessDenied
	}
	return job, nil
}

func (s *jobService) List(ctx context.Context, userID int64, filter domain.JobFilter) ([]*domain.BackupJob, error) {
	list, err := s.jobRepo.ListByUserID(ctx, userID, filter)
	if err != nil {
		return nil, code.ErrorDBQuery.WithDetails(err.Error())
	}
	return list, nil
}

// SetActive 启用或停用任务
func (s *jobService) SetActive(ctx context.Context, userID, id int64, active bool) (*domain.BackupJob, error) {
	job, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if job.IsActive == active {
		return job, nil
	}
	job.IsActive = active
	updated, err := s.jobRepo.Update(ctx, job)
	if err != nil {
		return nil, code.ErrorDBQuery.WithDetails(err.Error())
	}
	if err := s.restart(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *jobService) Delete(ctx context.Context, userID, id int64) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	s.scheduler.StopScheduledJob(id)
	if err := s.jobRepo.Delete(ctx, id); err != nil {
		return code.ErrorDBQuery.WithDetails(err.Error())
	}
	s.logger.Info("backup job deleted", zap.Int64("jobId", id))
	return nil
}

// restart re-registers the timer. Jobs that end up unscheduled get NextRunAt cleared.
func (s *jobService) restart(ctx context.Context, job *domain.BackupJob) error {
	if !job.IsActive || job.ScheduleType == schedule.TypeManual {
		s.scheduler.StopScheduledJob(job.ID)
		job.NextRunAt = nil
		if err := s.jobRepo.UpdateRunTimes(ctx, job.ID, nil, nil); err != nil {
			return code.ErrorDBQuery.WithDetails(err.Error())
		}
		return nil
	}
	return s.scheduler.StartScheduledJob(ctx, job)
}
