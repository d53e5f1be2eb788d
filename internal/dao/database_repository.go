package dao

import (
	"context"

	"github.com/haierkeys/fast-db-backup-service/internal/domain"
	"github.com/haierkeys/fast-db-backup-service/internal/model"
	"github.com/jinzhu/copier"
)

type databaseRepository struct {
	dao *Dao
}

// NewDatabaseRepository 创建 DatabaseRepository 实例
func NewDatabaseRepository(dao *Dao) domain.DatabaseRepository {
	return &databaseRepository{dao: dao}
}

func (r *databaseRepository) toDomain(m *model.DatabaseProfile) *domain.DatabaseProfile {
	if m == nil {
		return nil
	}
	d := &domain.DatabaseProfile{}
	_ = copier.Copy(d, m)
	return d
}

func (r *databaseRepository) toModel(d *domain.DatabaseProfile) *model.DatabaseProfile {
	m := &model.DatabaseProfile{}
	_ = copier.Copy(m, d)
	return m
}

func (r *databaseRepository) GetByID(ctx context.Context, id int64) (*domain.DatabaseProfile, error) {
	var m model.DatabaseProfile
	if err := r.dao.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, notFoundNil(err)
	}
	return r.toDomain(&m), nil
}

func (r *databaseRepository) ListByUserID(ctx context.Context, userID int64) ([]*domain.DatabaseProfile, error) {
	var ms []*model.DatabaseProfile
	if err := r.dao.WithContext(ctx).Where("user_id = ?", userID).Order("id DESC").Find(&ms).Error; err != nil {
		return nil, err
	}
	result := make([]*domain.DatabaseProfile, 0, len(ms))
	for _, m := range ms {
		result = append(result, r.toDomain(m))
	}
	return result, nil
}

func (r *databaseRepository) Create(ctx context.Context, p *domain.DatabaseProfile) (*domain.DatabaseProfile, error) {
	m := r.toModel(p)
	m.ID = 0
	if err := r.dao.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return r.toDomain(m), nil
}

func (r *databaseRepository) Update(ctx context.Context, p *domain.DatabaseProfile) (*domain.DatabaseProfile, error) {
	m := r.toModel(p)
	if err := r.dao.WithContext(ctx).Save(m).Error; err != nil {
		return nil, err
	}
	return r.toDomain(m), nil
}

func (r *databaseRepository) Delete(ctx context.Context, id int64) error {
	return r.dao.WithContext(ctx).Where("id = ?", id).Delete(&model.DatabaseProfile{}).Error
}
