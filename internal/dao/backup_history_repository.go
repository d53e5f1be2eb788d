package dao

import (
	"context"
	"time"

	"github.com/haierkeys/fast-db-backup-service/internal/domain"
	"github.com/haierkeys/fast-db-backup-service/internal/model"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// ErrHistoryNotRunning 记录已是终态
var ErrHistoryNotRunning = errors.New("backup history is not running")

type backupHistoryRepository struct {
	dao *Dao
}

// NewBackupHistoryRepository 创建 BackupHistoryRepository 实例
func NewBackupHistoryRepository(dao *Dao) domain.BackupHistoryRepository {
	return &backupHistoryRepository{dao: dao}
}

func (r *backupHistoryRepository) toDomain(m *model.BackupHistory) *domain.BackupHistory {
	if m == nil {
		return nil
	}
	var jobID int64
	if m.BackupJobID != nil {
		jobID = *m.BackupJobID
	}
	return &domain.BackupHistory{
		ID:                 m.ID,
		BackupJobID:        jobID,
		DatabaseID:         m.DatabaseID,
		UserID:             m.UserID,
		Status:             m.Status,
		FileName:           m.FileName,
		FilePath:           m.FilePath,
		FileSize:           m.FileSize,
		BackupType:         m.BackupType,
		IsEncrypted:        m.IsEncrypted,
		Compressed:         m.Compressed,
		StorageType:        m.StorageType,
		CloudStorageID:     m.CloudStorageID,
		Checksum:           m.Checksum,
		Duration:           m.Duration,
		ErrorMessage:       m.ErrorMessage,
		VerificationStatus: m.VerificationStatus,
		VerificationMethod: m.VerificationMethod,
		VerifiedAt:         m.VerifiedAt,
		StartedAt:          m.StartedAt,
		CompletedAt:        m.CompletedAt,
	}
}

func (r *backupHistoryRepository) toModel(d *domain.BackupHistory) *model.BackupHistory {
	var jobID *int64
	if d.BackupJobID > 0 {
		id := d.BackupJobID
		jobID = &id
	}
	return &model.BackupHistory{
		ID:                 d.ID,
		BackupJobID:        jobID,
		DatabaseID:         d.DatabaseID,
		UserID:             d.UserID,
		Status:             d.Status,
		FileName:           d.FileName,
		FilePath:           d.FilePath,
		FileSize:           d.FileSize,
		BackupType:         d.BackupType,
		IsEncrypted:        d.IsEncrypted,
		Compressed:         d.Compressed,
		StorageType:        d.StorageType,
		CloudStorageID:     d.CloudStorageID,
		Checksum:           d.Checksum,
		Duration:           d.Duration,
		ErrorMessage:       d.ErrorMessage,
		VerificationStatus: d.VerificationStatus,
		VerificationMethod: d.VerificationMethod,
		VerifiedAt:         d.VerifiedAt,
		StartedAt:          d.StartedAt,
		CompletedAt:        d.CompletedAt,
	}
}

func (r *backupHistoryRepository) list(db *gorm.DB) ([]*domain.BackupHistory, error) {
	var ms []*model.BackupHistory
	if err := db.Find(&ms).Error; err != nil {
		return nil, err
	}
	result := make([]*domain.BackupHistory, 0, len(ms))
	for _, m := range ms {
		result = append(result, r.toDomain(m))
	}
	return result, nil
}

func (r *backupHistoryRepository) GetByID(ctx context.Context, id int64) (*domain.BackupHistory, error) {
	var m model.BackupHistory
	if err := r.dao.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, notFoundNil(err)
	}
	return r.toDomain(&m), nil
}

func (r *backupHistoryRepository) ListByJobID(ctx context.Context, jobID int64, limit int) ([]*domain.BackupHistory, error) {
	db := r.dao.WithContext(ctx).Where("backup_job_id = ?", jobID).Order("started_at DESC, id DESC")
	if limit > 0 {
		db = db.Limit(limit)
	}
	return r.list(db)
}

func (r *backupHistoryRepository) ListByUserID(ctx context.Context, userID int64, filter domain.HistoryFilter) ([]*domain.BackupHistory, error) {
	db := r.dao.WithContext(ctx).Where("user_id = ?", userID)
	if filter.JobID > 0 {
		db = db.Where("backup_job_id = ?", filter.JobID)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.PageSize > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		db = db.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}
	return r.list(db.Order("started_at DESC, id DESC"))
}

func (r *backupHistoryRepository) Create(ctx context.Context, h *domain.BackupHistory) (*domain.BackupHistory, error) {
	m := r.toModel(h)
	m.ID = 0
	if err := r.dao.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return r.toDomain(m), nil
}

func (r *backupHistoryRepository) UpdateStatus(ctx context.Context, id int64, result *domain.HistoryResult) error {
	res := r.dao.WithContext(ctx).Model(&model.BackupHistory{}).
		Where("id = ? AND status = ?", id, domain.BackupStatusRunning).
		Updates(map[string]any{
			"status":        result.Status,
			"file_name":     result.FileName,
			"file_path":     result.FilePath,
			"file_size":     result.FileSize,
			"checksum":      result.Checksum,
			"duration":      result.Duration,
			"error_message": result.ErrorMessage,
			"completed_at":  result.CompletedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(ErrHistoryNotRunning, "id %d", id)
	}
	return nil
}

func (r *backupHistoryRepository) UpdateVerification(ctx context.Context, id int64, status, method string, verifiedAt time.Time) error {
	return r.dao.WithContext(ctx).Model(&model.BackupHistory{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"verification_status": status,
			"verification_method": method,
			"verified_at":         verifiedAt,
		}).Error
}

func (r *backupHistoryRepository) ListExpired(ctx context.Context, jobID int64, before time.Time) ([]*domain.BackupHistory, error) {
	return r.list(r.dao.WithContext(ctx).
		Where("backup_job_id = ? AND status = ? AND started_at < ?", jobID, domain.BackupStatusSuccess, before).
		Order("started_at ASC"))
}

func (r *backupHistoryRepository) ListStaleRunning(ctx context.Context, before time.Time) ([]*domain.BackupHistory, error) {
	return r.list(r.dao.WithContext(ctx).
		Where("status = ? AND started_at < ?", domain.BackupStatusRunning, before))
}

func (r *backupHistoryRepository) Delete(ctx context.Context, id int64) error {
	return r.dao.WithContext(ctx).Where("id = ?", id).Delete(&model.BackupHistory{}).Error
}

func (r *backupHistoryRepository) GetStats(ctx context.Context, userID int64) (*domain.BackupStats, error) {
	var rows []struct {
		Status string
		Count  int64
		Size   int64
	}
	err := r.dao.WithContext(ctx).Model(&model.BackupHistory{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(file_size), 0) AS size").
		Where("user_id = ?", userID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := &domain.BackupStats{}
	for _, row := range rows {
		stats.Total += row.Count
		switch row.Status {
		case domain.BackupStatusSuccess:
			stats.Success = row.Count
			stats.TotalSize = row.Size
		case domain.BackupStatusFailed:
			stats.Failed = row.Count
		case domain.BackupStatusRunning:
			stats.Running = row.Count
		}
	}

	var last model.BackupHistory
	err = r.dao.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, domain.BackupStatusSuccess).
		Order("started_at DESC").
		First(&last).Error
	if err == nil {
		t := last.StartedAt
		stats.LastBackupAt = &t
	} else if err = notFoundNil(err); err != nil {
		return nil, err
	}
	return stats, nil
}
