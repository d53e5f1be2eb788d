package dao

import (
	"context"

	"github.com/haierkeys/fast-db-backup-service/internal/domain"
	"github.com/haierkeys/fast-db-backup-service/internal/model"
	"github.com/jinzhu/copier"
	"gorm.io/gorm"
)

type cloudStorageRepository struct {
	dao *Dao
}

// NewCloudStorageRepository 创建 CloudStorageRepository 实例
func NewCloudStorageRepository(dao *Dao) domain.CloudStorageRepository {
	return &cloudStorageRepository{dao: dao}
}

func (r *cloudStorageRepository) toDomain(m *model.CloudStorageConfig) *domain.CloudStorageConfig {
	if m == nil {
		return nil
	}
	d := &domain.CloudStorageConfig{}
	_ = copier.Copy(d, m)
	return d
}

func (r *cloudStorageRepository) toModel(d *domain.CloudStorageConfig) *model.CloudStorageConfig {
	m := &model.CloudStorageConfig{}
	_ = copier.Copy(m, d)
	return m
}

func (r *cloudStorageRepository) GetByID(ctx context.Context, id int64) (*domain.CloudStorageConfig, error) {
	var m model.CloudStorageConfig
	if err := r.dao.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, notFoundNil(err)
	}
	return r.toDomain(&m), nil
}

func (r *cloudStorageRepository) ListByUserID(ctx context.Context, userID int64) ([]*domain.CloudStorageConfig, error) {
	var ms []*model.CloudStorageConfig
	if err := r.dao.WithContext(ctx).Where("user_id = ?", userID).Order("id DESC").Find(&ms).Error; err != nil {
		return nil, err
	}
	result := make([]*domain.CloudStorageConfig, 0, len(ms))
	for _, m := range ms {
		result = append(result, r.toDomain(m))
	}
	return result, nil
}

func (r *cloudStorageRepository) GetDefault(ctx context.Context, userID int64, storageType string) (*domain.CloudStorageConfig, error) {
	var m model.CloudStorageConfig
	err := r.dao.WithContext(ctx).
		Where("user_id = ? AND storage_type = ? AND is_default = ? AND is_active = ?", userID, storageType, true, true).
		First(&m).Error
	if err != nil {
		return nil, notFoundNil(err)
	}
	return r.toDomain(&m), nil
}

func (r *cloudStorageRepository) Create(ctx context.Context, c *domain.CloudStorageConfig) (*domain.CloudStorageConfig, error) {
	m := r.toModel(c)
	m.ID = 0
	if err := r.dao.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return r.toDomain(m), nil
}

func (r *cloudStorageRepository) Update(ctx context.Context, c *domain.CloudStorageConfig) (*domain.CloudStorageConfig, error) {
	m := r.toModel(c)
	if err := r.dao.WithContext(ctx).Save(m).Error; err != nil {
		return nil, err
	}
	return r.toDomain(m), nil
}

func (r *cloudStorageRepository) SetDefault(ctx context.Context, userID, id int64) error {
	return r.dao.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m model.CloudStorageConfig
		if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&m).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.CloudStorageConfig{}).
			Where("user_id = ? AND storage_type = ? AND id <> ?", userID, m.StorageType, id).
			Update("is_default", false).Error; err != nil {
			return err
		}
		return tx.Model(&model.CloudStorageConfig{}).Where("id = ?", id).Update("is_default", true).Error
	})
}

func (r *cloudStorageRepository) Delete(ctx context.Context, id int64) error {
	return r.dao.WithContext(ctx).Where("id = ?", id).Delete(&model.CloudStorageConfig{}).Error
}
