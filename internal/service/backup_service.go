package service

import (
	"context"
	"fmt"
	"html"
	"os"
	"strconv"
	"time"

	"github.com/haierkeys/fast-db-backup-service/internal/domain"
	"github.com/haierkeys/fast-db-backup-service/internal/metrics"
	"github.com/haierkeys/fast-db-backup-service/pkg/archive"
	"github.com/haierkeys/fast-db-backup-service/pkg/code"
	"github.com/haierkeys/fast-db-backup-service/pkg/database"
	"github.com/haierkeys/fast-db-backup-service/pkg/database/dbcore"
	apperrors "github.com/haierkeys/fast-db-backup-service/pkg/errors"
	"github.com/haierkeys/fast-db-backup-service/pkg/filecrypt"
	"github.com/haierkeys/fast-db-backup-service/pkg/logger"
	"github.com/haierkeys/fast-db-backup-service/pkg/storage"
	"github.com/haierkeys/fast-db-backup-service/pkg/util"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v4/disk"
	"go.uber.org/zap"
)

// StorageClientProvider builds storage connectors from stored cloud storage configs.
type StorageClientProvider interface {
	Client(ctx context.Context, id int64) (storage.Storager, error)
}

// NextRunUpdater persists LastRunAt/NextRunAt after a completed run.
type NextRunUpdater interface {
	UpdateNextRunTime(ctx context.Context, job *domain.BackupJob) error
}

// BackupService defines the backup execution pipeline and history queries
// 备份执行流水线与备份记录查询
type BackupService interface {
	ExecuteBackup(ctx context.Context, jobID int64) (*domain.BackupHistory, error)
	CleanupExpiredBackups(ctx context.Context, job *domain.BackupJob) (int, error)
	CleanupAllExpired(ctx context.Context) (int, error)
	FailStaleRuns(ctx context.Context, olderThan time.Duration) (int, error)
	GetHistory(ctx context.Context, userID, id int64) (*domain.BackupHistory, error)
	ListHistory(ctx context.Context, userID int64, filter domain.HistoryFilter) ([]*domain.BackupHistory, error)
	DeleteHistory(ctx context.Context, userID, id int64) error
	GetStats(ctx context.Context, userID int64) (*domain.BackupStats, error)
	RunningJobs() []int64
}

type backupService struct {
	jobRepo     domain.BackupJobRepository
	historyRepo domain.BackupHistoryRepository
	credentials CredentialResolver
	storages    StorageClientProvider
	connector   database.Factory
	scheduler   NextRunUpdater
	guard       *ExecutionGuard
	notifier    Notifier
	metrics     *metrics.Metrics
	config      *BackupServiceConfig
	logger      *zap.Logger

	now func() time.Time
}

// NewBackupService creates BackupService instance
// 创建 BackupService 实例
func NewBackupService(
	jobRepo domain.BackupJobRepository,
	historyRepo domain.BackupHistoryRepository,
	credentials CredentialResolver,
	storages StorageClientProvider,
	connector database.Factory,
	scheduler NextRunUpdater,
	guard *ExecutionGuard,
	notifier Notifier,
	m *metrics.Metrics,
	config *BackupServiceConfig,
	logger *zap.Logger,
) BackupService {
	if connector == nil {
		connector = database.NewConnector
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &backupService{
		jobRepo:     jobRepo,
		historyRepo: historyRepo,
		credentials: credentials,
		storages:    storages,
		connector:   connector,
		scheduler:   scheduler,
		guard:       guard,
		notifier:    notifier,
		metrics:     m,
		config:      config,
		logger:      logger,
		now:         time.Now,
	}
}

// artifact is the final file produced by one run.
type artifact struct {
	name     string
	path     string // local path or storage reference after upload
	size     int64
	checksum string
}

// ExecuteBackup runs the whole pipeline for one job: dump, compress, encrypt, upload,
// retention. A job already in flight fails immediately with ErrorBackupAlreadyRunning
// and leaves no history. Any later failure is recorded on the history row and returned
// as ErrorBackupFailed.
// ExecuteBackup 执行一次备份
func (s *backupService) ExecuteBackup(ctx context.Context, jobID int64) (*domain.BackupHistory, error) {
	release, err := s.guard.Acquire(ctx, jobID)
	if err != nil {
		return nil, err
	}
	defer release()

	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, code.ErrorDBQuery.WithDetails(err.Error())
	}
	if job == nil {
		return nil, code.ErrorBackupJobNotFound.WithDetails("id " + strconv.FormatInt(jobID, 10))
	}

	dbCfg, err := s.credentials.GetDatabaseConfig(ctx, job.DatabaseID)
	if err != nil {
		return nil, err
	}

	start := s.now().UTC()
	h, err := s.historyRepo.Create(ctx, &domain.BackupHistory{
		BackupJobID:    job.ID,
		DatabaseID:     job.DatabaseID,
		UserID:         job.UserID,
		Status:         domain.BackupStatusRunning,
		BackupType:     job.BackupType,
		IsEncrypted:    job.IsEncrypted,
		Compressed:     job.Compression,
		StorageType:    job.StorageType,
		CloudStorageID: job.CloudStorageID,
		StartedAt:      start,
	})
	if err != nil {
		return nil, code.ErrorDBQuery.WithDetails(err.Error())
	}

	log := s.logger.With(
		zap.Int64(logger.FieldJobID, job.ID),
		zap.Int64(logger.FieldHistoryID, h.ID),
		zap.String(logger.FieldEngine, dbCfg.Type),
	)
	log.Info("backup started", zap.String("storageType", job.StorageType))

	done := s.metrics.BackupStarted()
	defer done()

	art, runErr := s.run(ctx, job, dbCfg, log)

	// Outcome bookkeeping must survive a cancelled caller.
	saveCtx := context.WithoutCancel(ctx)
	end := s.now().UTC()
	if runErr != nil {
		return s.fail(saveCtx, job, dbCfg.Type, h, start, end, runErr, log)
	}
	return s.succeed(saveCtx, job, dbCfg.Type, h, art, start, end, log)
}

func (s *backupService) outputDir(job *domain.BackupJob) string {
	if job.StorageType == storage.LOCAL && job.StoragePath != "" {
		return job.StoragePath
	}
	return s.config.JobDir(job.ID)
}

func (s *backupService) run(ctx context.Context, job *domain.BackupJob, dbCfg *dbcore.Config, log *zap.Logger) (*artifact, error) {
	dir := s.outputDir(job)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, code.ErrorFileSystem.WithDetails(err.Error())
	}
	s.checkFreeSpace(ctx, dir, log)

	conn, err := s.connector(dbCfg, log)
	if err != nil {
		return nil, err
	}
	res, err := conn.CreateBackup(ctx, dir)
	if err != nil {
		return nil, err
	}
	log.Info("database dump created", zap.String("file", res.FileName), zap.Int64("size", res.FileSize), zap.Int64("duration", res.Duration))

	art := &artifact{name: res.FileName, path: res.FilePath, size: res.FileSize}

	if job.Compression && !database.CompressesItself(dbCfg.Type) {
		gz := art.path + archive.Ext
		n, err := archive.GzipFile(ctx, art.path, gz)
		if err != nil {
			return nil, apperrors.NewAppError(code.ErrorCompression, err)
		}
		_ = os.Remove(art.path)
		art.name, art.path, art.size = art.name+archive.Ext, gz, n
	}

	if job.IsEncrypted {
		enc := art.path + filecrypt.Ext
		if err := filecrypt.EncryptFile(art.path, enc, job.EncryptionPasswordHash); err != nil {
			return nil, apperrors.NewAppError(code.ErrorEncryption, err)
		}
		_ = os.Remove(art.path)
		art.name, art.path = art.name+filecrypt.Ext, enc
	}

	fi, err := os.Stat(art.path)
	if err != nil {
		return nil, code.ErrorFileSystem.WithDetails(err.Error())
	}
	art.size = fi.Size()
	if art.checksum, err = archive.SHA256File(art.path); err != nil {
		return nil, code.ErrorFileSystem.WithDetails(err.Error())
	}

	if storage.IsCloud(job.StorageType) {
		client, err := s.storages.Client(ctx, job.CloudStorageID)
		if err != nil {
			return nil, err
		}
		up, err := client.Upload(ctx, art.path, art.name)
		if err != nil {
			// the local artifact stays for a manual retry
			return nil, apperrors.NewAppError(code.ErrorStorageUploadFailed, err)
		}
		log.Info("artifact uploaded", zap.String("key", up.Key), zap.Int64("duration", up.Duration))
		_ = os.Remove(art.path)
		art.path = up.Key
	}
	return art, nil
}

func (s *backupService) succeed(ctx context.Context, job *domain.BackupJob, engine string, h *domain.BackupHistory, art *artifact, start, end time.Time, log *zap.Logger) (*domain.BackupHistory, error) {
	result := &domain.HistoryResult{
		Status:      domain.BackupStatusSuccess,
		FileName:    art.name,
		FilePath:    art.path,
		FileSize:    art.size,
		Checksum:    art.checksum,
		Duration:    dbcore.DurationSeconds(start, end),
		CompletedAt: end,
	}
	if err := s.historyRepo.UpdateStatus(ctx, h.ID, result); err != nil {
		log.Error("record backup success failed", zap.Error(err))
	}
	applyResult(h, result)

	s.afterRun(ctx, job, start, log)
	if n, err := s.CleanupExpiredBackups(ctx, job); err != nil {
		log.Warn("retention cleanup failed", zap.Error(err))
	} else if n > 0 {
		log.Info("expired backups removed", zap.Int("count", n))
	}

	s.metrics.ObserveBackup(engine, domain.BackupStatusSuccess, end.Sub(start), art.size)
	log.Info("backup completed", zap.String("file", art.name), zap.Int64("size", art.size), zap.Int64("duration", result.Duration))

	s.notify(ctx, job, h, nil)
	return h, nil
}

func (s *backupService) fail(ctx context.Context, job *domain.BackupJob, engine string, h *domain.BackupHistory, start, end time.Time, cause error, log *zap.Logger) (*domain.BackupHistory, error) {
	result := &domain.HistoryResult{
		Status:       domain.BackupStatusFailed,
		ErrorMessage: cause.Error(),
		Duration:     dbcore.DurationSeconds(start, end),
		CompletedAt:  end,
	}
	if err := s.historyRepo.UpdateStatus(ctx, h.ID, result); err != nil {
		log.Error("record backup failure failed", zap.Error(err))
	}
	applyResult(h, result)

	s.afterRun(ctx, job, start, log)
	s.metrics.ObserveBackup(engine, domain.BackupStatusFailed, end.Sub(start), 0)
	log.Error("backup failed", zap.Error(cause))

	s.notify(ctx, job, h, cause)
	return h, apperrors.NewAppError(code.ErrorBackupFailed, cause)
}

// afterRun records LastRunAt and recomputes NextRunAt from the job as stored now, so a
// schedule edited or deactivated while the run was in flight is not overwritten.
func (s *backupService) afterRun(ctx context.Context, job *domain.BackupJob, start time.Time, log *zap.Logger) {
	current, err := s.jobRepo.GetByID(ctx, job.ID)
	if err != nil {
		log.Warn("reload job failed", zap.Error(err))
		return
	}
	if current == nil {
		log.Info("job deleted during run, run times not updated")
		return
	}
	job = current
	job.LastRunAt = &start
	if s.scheduler == nil {
		if err := s.jobRepo.UpdateRunTimes(ctx, job.ID, job.LastRunAt, job.NextRunAt); err != nil {
			log.Warn("update job run times failed", zap.Error(err))
		}
		return
	}
	if err := s.scheduler.UpdateNextRunTime(ctx, job); err != nil {
		log.Warn("update next run time failed", zap.Error(err))
	}
}

func applyResult(h *domain.BackupHistory, r *domain.HistoryResult) {
	completed := r.CompletedAt
	h.Status = r.Status
	h.FileName = r.FileName
	h.FilePath = r.FilePath
	h.FileSize = r.FileSize
	h.Checksum = r.Checksum
	h.Duration = r.Duration
	h.ErrorMessage = r.ErrorMessage
	h.CompletedAt = &completed
}

func (s *backupService) checkFreeSpace(ctx context.Context, dir string, log *zap.Logger) {
	if s.config.MinFreeSpace <= 0 {
		return
	}
	usage, err := disk.UsageWithContext(ctx, dir)
	if err != nil {
		log.Debug("disk usage unavailable", zap.String("dir", dir), zap.Error(err))
		return
	}
	if usage.Free < uint64(s.config.MinFreeSpace) {
		log.Warn("low disk space for backup",
			zap.String("dir", dir),
			zap.String("free", util.FormatSize(int64(usage.Free))),
			zap.String("threshold", util.FormatSize(s.config.MinFreeSpace)))
	}
}

// notify is best-effort; its result never changes the backup outcome.
func (s *backupService) notify(ctx context.Context, job *domain.BackupJob, h *domain.BackupHistory, cause error) {
	var subject, text string
	if cause == nil {
		subject = fmt.Sprintf("Backup succeeded: %s", job.Name)
		text = fmt.Sprintf("Backup job %q completed.\nFile: %s\nSize: %s\nDuration: %ds\nStarted: %s",
			job.Name, h.FileName, util.FormatSize(h.FileSize), h.Duration, h.StartedAt.Format(time.RFC3339))
	} else {
		subject = fmt.Sprintf("Backup failed: %s", job.Name)
		text = fmt.Sprintf("Backup job %q failed.\nError: %s\nStarted: %s",
			job.Name, cause.Error(), h.StartedAt.Format(time.RFC3339))
	}
	body := "<pre>" + html.EscapeString(text) + "</pre>"

	if r := s.notifier.SendBackupNotification(ctx, job.UserID, subject, text, body); r != nil && !r.Success {
		s.logger.Warn("backup notification not delivered", zap.Int64(logger.FieldJobID, job.ID), zap.String("error", r.Error))
	}
}

// CleanupExpiredBackups deletes successful backups older than the job's retention period.
// A history row is removed only after its artifact was deleted; a missing local file
// counts as deleted.
// CleanupExpiredBackups 清理过期备份，产物删除成功后才删除记录
func (s *backupService) CleanupExpiredBackups(ctx context.Context, job *domain.BackupJob) (int, error) {
	if job.RetentionDays < 1 {
		return 0, nil
	}
	cutoff := s.now().UTC().AddDate(0, 0, -job.RetentionDays)
	expired, err := s.historyRepo.ListExpired(ctx, job.ID, cutoff)
	if err != nil {
		return 0, code.ErrorDBQuery.WithDetails(err.Error())
	}

	clients := map[int64]storage.Storager{}
	deleted := 0
	for _, h := range expired {
		if err := s.deleteArtifact(ctx, h, clients); err != nil {
			s.metrics.ObserveRetention("failed")
			s.logger.Warn("delete expired artifact failed, history kept",
				zap.Int64(logger.FieldHistoryID, h.ID),
				zap.String("file", h.FilePath),
				zap.Error(err))
			continue
		}
		if err := s.historyRepo.Delete(ctx, h.ID); err != nil {
			s.metrics.ObserveRetention("failed")
			s.logger.Warn("delete expired history failed", zap.Int64(logger.FieldHistoryID, h.ID), zap.Error(err))
			continue
		}
		s.metrics.ObserveRetention("deleted")
		deleted++
	}
	return deleted, nil
}

func (s *backupService) deleteArtifact(ctx context.Context, h *domain.BackupHistory, clients map[int64]storage.Storager) error {
	if h.FilePath == "" {
		return nil
	}
	if !storage.IsCloud(h.StorageType) {
		if err := os.Remove(h.FilePath); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, "remove local artifact")
		}
		return nil
	}

	client, ok := clients[h.CloudStorageID]
	if !ok {
		c, err := s.storages.Client(ctx, h.CloudStorageID)
		if err != nil {
			return err
		}
		clients[h.CloudStorageID] = c
		client = c
	}
	if err := client.Delete(ctx, h.FilePath); err != nil {
		return apperrors.NewAppError(code.ErrorStorageDelete, err)
	}
	return nil
}

func (s *backupService) GetHistory(ctx context.Context, userID, id int64) (*domain.BackupHistory, error) {
	h, err := s.historyRepo.GetByID(ctx, id)
	if err != nil {
		return nil, code.ErrorDBQuery.WithDetails(err.Error())
	}
	if h == nil {
		return nil, code.ErrorBackupHistoryNotFound.WithDetails("id " + strconv.FormatInt(id, 10))
	}
	if h.UserID != userID {
		return nil, code.ErrorAccessDenied
	}
	return h, nil
}

func (s *backupService) ListHistory(ctx context.Context, userID int64, filter domain.HistoryFilter) ([]*domain.BackupHistory, error) {
	list, err := s.historyRepo.ListByUserID(ctx, userID, filter)
	if err != nil {
		return nil, code.ErrorDBQuery.WithDetails(err.Error())
	}
	return list, nil
}

// DeleteHistory removes a finished backup together with its artifact.
func (s *backupService) DeleteHistory(ctx context.Context, userID, id int64) error {
	h, err := s.GetHistory(ctx, userID, id)
	if err != nil {
		return err
	}
	if h.Status == domain.BackupStatusRunning {
		return code.ErrorInvalidParams.WithDetails("backup is still running")
	}
	if err := s.deleteArtifact(ctx, h, map[int64]storage.Storager{}); err != nil {
		return err
	}
	if err := s.historyRepo.Delete(ctx, id); err != nil {
		return code.ErrorDBQuery.WithDetails(err.Error())
	}
	return nil
}

func (s *backupService) GetStats(ctx context.Context, userID int64) (*domain.BackupStats, error) {
	stats, err := s.historyRepo.GetStats(ctx, userID)
	if err != nil {
		return nil, code.ErrorDBQuery.WithDetails(err.Error())
	}
	return stats, nil
}

// RunningJobs 返回正在执行的任务 ID
func (s *backupService) RunningJobs() []int64 {
	return s.guard.Running()
}

// CleanupAllExpired applies retention to every active job. Per-job failures are logged.
func (s *backupService) CleanupAllExpired(ctx context.Context) (int, error) {
	jobs, err := s.jobRepo.ListActive(ctx)
	if err != nil {
		return 0, code.ErrorDBQuery.WithDetails(err.Error())
	}
	total := 0
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := s.CleanupExpiredBackups(ctx, job)
		if err != nil {
			s.logger.Warn("retention cleanup failed", zap.Int64(logger.FieldJobID, job.ID), zap.Error(err))
			continue
		}
		total += n
	}
	return total, nil
}

// FailStaleRuns marks running histories older than olderThan as failed, unless their
// job is still executing in this process. A crash mid-run leaves such rows behind.
func (s *backupService) FailStaleRuns(ctx context.Context, olderThan time.Duration) (int, error) {
	now := s.now().UTC()
	stale, err := s.historyRepo.ListStaleRunning(ctx, now.Add(-olderThan))
	if err != nil {
		return 0, code.ErrorDBQuery.WithDetails(err.Error())
	}
	marked := 0
	for _, h := range stale {
		if h.BackupJobID != 0 && s.guard.IsRunning(h.BackupJobID) {
			continue
		}
		err := s.historyRepo.UpdateStatus(ctx, h.ID, &domain.HistoryResult{
			Status:       domain.BackupStatusFailed,
			ErrorMessage: "backup did not finish, the service stopped while it was running",
			Duration:     dbcore.DurationSeconds(h.StartedAt, now),
			CompletedAt:  now,
		})
		if err != nil {
			s.logger.Warn("mark stale backup failed", zap.Int64(logger.FieldHistoryID, h.ID), zap.Error(err))
			continue
		}
		marked++
	}
	return marked, nil
}
