package service

import (
	"context"
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
	"go.uber.org/zap"
)

// RestoreService 备份恢复服务接口
type RestoreService interface {
	RestoreBackup(ctx context.Context, historyID int64) (*dbcore.RestoreResult, error)
}

type restoreService struct {
	jobRepo     domain.BackupJobRepository
	historyRepo domain.BackupHistoryRepository
	credentials CredentialResolver
	storages    StorageClientProvider
	connector   database.Factory
	metrics     *metrics.Metrics
	config      *BackupServiceConfig
	logger      *zap.Logger
}

// NewRestoreService 创建 RestoreService 实例
func NewRestoreService(
	jobRepo domain.BackupJobRepository,
	historyRepo domain.BackupHistoryRepository,
	credentials CredentialResolver,
	storages StorageClientProvider,
	connector database.Factory,
	m *metrics.Metrics,
	config *BackupServiceConfig,
	logger *zap.Logger,
) RestoreService {
	if connector == nil {
		connector = database.NewConnector
	}
	return &restoreService{
		jobRepo:     jobRepo,
		historyRepo: historyRepo,
		credentials: credentials,
		storages:    storages,
		connector:   connector,
		metrics:     m,
		config:      config,
		logger:      logger,
	}
}

// RestoreBackup downloads, decrypts and decompresses the artifact as needed and restores
// it into the history's database. Temporary files are removed on every route.
// RestoreBackup 恢复备份，临时文件按创建的逆序清理
func (s *restoreService) RestoreBackup(ctx context.Context, historyID int64) (res *dbcore.RestoreResult, err error) {
	h, err := s.historyRepo.GetByID(ctx, historyID)
	if err != nil {
		return nil, code.ErrorDBQuery.WithDetails(err.Error())
	}
	if h == nil {
		return nil, code.ErrorBackupHistoryNotFound.WithDetails("id " + strconv.FormatInt(historyID, 10))
	}
	if h.Status != domain.BackupStatusSuccess {
		return nil, code.ErrorBackupNotRestorable.WithDetails("status " + h.Status)
	}

	dbCfg, err := s.credentials.GetDatabaseConfig(ctx, h.DatabaseID)
	if err != nil {
		return nil, err
	}

	log := s.logger.With(zap.Int64(logger.FieldHistoryID, h.ID), zap.String(logger.FieldEngine, dbCfg.Type))
	start := time.Now()
	defer func() {
		status := domain.BackupStatusSuccess
		if err != nil {
			status = domain.BackupStatusFailed
			log.Error("restore failed", zap.Error(err))
		} else {
			log.Info("restore completed", zap.Duration("elapsed", time.Since(start)))
		}
		s.metrics.ObserveRestore(status)
	}()

	var temps tempFiles
	defer temps.cleanup()

	tempDir := s.config.TempDir()
	path, err := localArtifact(ctx, s.storages, tempDir, h, &temps)
	if err != nil {
		return nil, err
	}
	name := h.FileName

	if h.IsEncrypted {
		password, err := s.encryptionSecret(ctx, h)
		if err != nil {
			return nil, err
		}
		name = trimExt(name, filecrypt.Ext)
		plain := temps.add(tempPath(tempDir, name))
		if err := filecrypt.DecryptFile(path, plain, password); err != nil {
			return nil, err
		}
		path = plain
	}

	if archive.IsGzip(name) {
		name = trimExt(name, archive.Ext)
		out := temps.add(tempPath(tempDir, name))
		if err := archive.GunzipFile(ctx, path, out); err != nil {
			return nil, apperrors.NewAppError(code.ErrorCompression, err)
		}
		path = out
	}

	conn, err := s.connector(dbCfg, log)
	if err != nil {
		return nil, err
	}
	res, err = conn.RestoreBackup(ctx, path)
	if err != nil {
		return nil, apperrors.NewAppError(code.ErrorRestoreFailed, err)
	}
	return res, nil
}

// encryptionSecret returns the owning job's secret. Once the job is deleted the key is gone.
func (s *restoreService) encryptionSecret(ctx context.Context, h *domain.BackupHistory) (string, error) {
	unavailable := code.ErrorEncryptionKeyUnavailable.WithDetails("history " + strconv.FormatInt(h.ID, 10))
	if h.BackupJobID == 0 {
		return "", unavailable
	}
	job, err := s.jobRepo.GetByID(ctx, h.BackupJobID)
	if err != nil {
		return "", code.ErrorDBQuery.WithDetails(err.Error())
	}
	if job == nil || job.EncryptionPasswordHash == "" {
		return "", unavailable
	}
	return job.EncryptionPasswordHash, nil
}
