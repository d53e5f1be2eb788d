package dao

import (
	"context"
	"time"

	"github.com/haierkeys/fast-db-backup-service/internal/domain"
	"github.com/haierkeys/fast-db-backup-service/internal/model"
	"github.com/jinzhu/copier"
	"gorm.io/gorm"
)

type backupJobRepository struct {
	dao *Dao
}

// NewBackupJobRepository 创建 BackupJobRepository 实例
func NewBackupJobRepository(dao *Dao) domain.BackupJobRepository {
	return &backupJobRepository{dao: dao}
}

func (r *backupJobRepository) toDomain(m *model.BackupJob) *domain.BackupJob {
	if m == nil {
		return nil
	}
	d := &domain.BackupJob{}
	_ = copier.Copy(d, m)
	d.AdvancedScheduleConfig = m.AdvancedSchedule.Config
	return d
}

func (r *backupJobRepository) toModel(d *domain.BackupJob) *model.BackupJob {
	m := &model.BackupJob{}
	_ = copier.Copy(m, d)
	m.AdvancedSchedule = model.AdvancedSchedule{Config: d.AdvancedScheduleConfig}
	return m
}

func (r *backupJobRepository) list(db *gorm.DB) ([]*domain.BackupJob, error) {
	var ms []*model.BackupJob
	if err := db.Order("id DESC").Find(&ms).Error; err != nil {
		return nil, err
	}
	result := make([]*domain.BackupJob, 0, len(ms))
	for _, m := range ms {
		result = append(result, r.toDomain(m))
	}
	return result, nil
}

func (r *backupJobRepository) GetByID(ctx context.Context, id int64) (*domain.BackupJob, error) {
	var m model.BackupJob
	if err := r.dao.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, notFoundNil(err)
	}
	return r.toDomain(&m), nil
}

func (r *backupJobRepository) ListByUserID(ctx context.Context, userID int64, filter domain.JobFilter) ([]*domain.BackupJob, error) {
	db := r.dao.WithContext(ctx).Where("user_id = ?", userID)
	if filter.DatabaseID > 0 {
		db = db.Where("database_id = ?", filter.DatabaseID)
	}
	if filter.IsActive != nil {
		db = db.Where("is_active = ?", *filter.IsActive)
	}
	if filter.Keyword != "" {
		db = db.Where("name LIKE ?", "%"+filter.Keyword+"%")
	}
	return r.list(db)
}

func (r *backupJobRepository) ListActive(ctx context.Context) ([]*domain.BackupJob, error) {
	return r.list(r.dao.WithContext(ctx).Where("is_active = ?", true))
}

func (r *backupJobRepository) Create(ctx context.Context, job *domain.BackupJob) (*domain.BackupJob, error) {
	m := r.toModel(job)
	m.ID = 0
	if err := r.dao.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return r.toDomain(m), nil
}

func (r *backupJobRepository) Update(ctx context.Context, job *domain.BackupJob) (*domain.BackupJob, error) {
	m := r.toModel(job)
	if err := r.dao.WithContext(ctx).Save(m).Error; err != nil {
		return nil, err
	}
	return r.toDomain(m), nil
}

func (r *backupJobRepository) UpdateRunTimes(ctx context.Context, id int64, lastRunAt, nextRunAt *time.Time) error {
	values := map[string]any{
		"next_run_at": nextRunAt,
		"updated_at":  time.Now(),
	}
	if lastRunAt != nil {
		values["last_run_at"] = lastRunAt
	}
	return r.dao.WithContext(ctx).Model(&model.BackupJob{}).Where("id = ?", id).Updates(values).Error
}

func (r *backupJobRepository) Delete(ctx context.Context, id int64) error {
	return r.dao.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.BackupHistory{}).
			Where("backup_job_id = ?", id).
			Update("backup_job_id", nil).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&model.BackupJob{}).Error
	})
}
