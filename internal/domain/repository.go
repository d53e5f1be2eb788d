package domain

import (
	"context"
	"time"
)

// JobFilter 任务列表过滤条件，零值表示不过滤
type JobFilter struct {
	DatabaseID int64
	IsActive   *bool
	Keyword    string
}

// HistoryFilter 历史列表过滤条件
type HistoryFilter struct {
	JobID    int64
	Status   string
	Page     int
	PageSize int
}

// DatabaseRepository 数据库配置仓储接口。未找到时返回 nil, nil
type DatabaseRepository interface {
	// GetByID 根据ID获取数据库配置
	GetByID(ctx context.Context, id int64) (*DatabaseProfile, error)

	// ListByUserID 获取用户的全部数据库配置
	ListByUserID(ctx context.Context, userID int64) ([]*DatabaseProfile, error)

	Create(ctx context.Context, p *DatabaseProfile) (*DatabaseProfile, error)

	Update(ctx context.Context, p *DatabaseProfile) (*DatabaseProfile, error)

	Delete(ctx context.Context, id int64) error
}

// BackupJobRepository 备份任务仓储接口
type BackupJobRepository interface {
	// GetByID 根据ID获取任务
	GetByID(ctx context.Context, id int64) (*BackupJob, error)

	// ListByUserID 按条件获取用户的任务
	ListByUserID(ctx context.Context, userID int64, filter JobFilter) ([]*BackupJob, error)

	// ListActive 获取所有启用的任务
	ListActive(ctx context.Context) ([]*BackupJob, error)

	Create(ctx context.Context, job *BackupJob) (*BackupJob, error)

	Update(ctx context.Context, job *BackupJob) (*BackupJob, error)

	// UpdateRunTimes 更新上次与下次运行时间，lastRunAt 为 nil 时保持不变
	UpdateRunTimes(ctx context.Context, id int64, lastRunAt, nextRunAt *time.Time) error

	// Delete 删除任务，历史记录保留并解除关联
	Delete(ctx context.Context, id int64) error
}

// BackupHistoryRepository 备份历史仓储接口
type BackupHistoryRepository interface {
	GetByID(ctx context.Context, id int64) (*BackupHistory, error)

	// ListByJobID 按开始时间倒序获取任务的最近 limit 条记录，limit<=0 表示全部
	ListByJobID(ctx context.Context, jobID int64, limit int) ([]*BackupHistory, error)

	ListByUserID(ctx context.Context, userID int64, filter HistoryFilter) ([]*BackupHistory, error)

	// Create 创建历史记录
	Create(ctx context.Context, h *BackupHistory) (*BackupHistory, error)

	// UpdateStatus 将 running 记录更新为终态，已是终态的记录返回错误
	UpdateStatus(ctx context.Context, id int64, result *HistoryResult) error

	// UpdateVerification 更新校验结果
	UpdateVerification(ctx context.Context, id int64, status, method string, verifiedAt time.Time) error

	// ListExpired 获取任务在 before 之前开始的成功记录
	ListExpired(ctx context.Context, jobID int64, before time.Time) ([]*BackupHistory, error)

	// ListStaleRunning 获取 before 之前开始且仍为 running 的记录
	ListStaleRunning(ctx context.Context, before time.Time) ([]*BackupHistory, error)

	Delete(ctx context.Context, id int64) error

	// GetStats 获取用户备份统计
	GetStats(ctx context.Context, userID int64) (*BackupStats, error)
}

// CloudStorageRepository 云存储配置仓储接口
type CloudStorageRepository interface {
	GetByID(ctx context.Context, id int64) (*CloudStorageConfig, error)

	ListByUserID(ctx context.Context, userID int64) ([]*CloudStorageConfig, error)

	// GetDefault 获取用户某存储类型的默认配置
	GetDefault(ctx context.Context, userID int64, storageType string) (*CloudStorageConfig, error)

	Create(ctx context.Context, c *CloudStorageConfig) (*CloudStorageConfig, error)

	Update(ctx context.Context, c *CloudStorageConfig) (*CloudStorageConfig, error)

	// SetDefault 设为默认，同用户同类型的其他配置取消默认
	SetDefault(ctx context.Context, userID, id int64) error

	Delete(ctx context.Context, id int64) error
}
