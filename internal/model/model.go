// Package model 定义数据模型
package model

import (
	"database/sql/driver"

	"github.com/bytedance/sonic"
	"github.com/haierkeys/fast-db-backup-service/pkg/schedule"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// AdvancedSchedule 以 JSON 文本存储的高级调度配置，空值对应 NULL
type AdvancedSchedule struct {
	Config *schedule.AdvancedConfig
}

func (a AdvancedSchedule) Value() (driver.Value, error) {
	if a.Config == nil {
		return nil, nil
	}
	return sonic.MarshalString(a.Config)
}

func (a *AdvancedSchedule) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		a.Config = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return errors.Errorf("advanced schedule: unsupported column type %T", value)
	}
	if len(raw) == 0 {
		a.Config = nil
		return nil
	}
	cfg := new(schedule.AdvancedConfig)
	if err := sonic.Unmarshal(raw, cfg); err != nil {
		return errors.Wrap(err, "advanced schedule")
	}
	a.Config = cfg
	return nil
}

// All 返回全部需要迁移的模型
func All() []any {
	return []any{
		&DatabaseProfile{},
		&BackupJob{},
		&BackupHistory{},
		&CloudStorageConfig{},
	}
}

// AutoMigrate 自动迁移表结构
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(All()...)
}
