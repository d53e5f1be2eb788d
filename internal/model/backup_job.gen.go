package model

import "time"

const TableNameBackupJob = "backup_job"

// BackupJob mapped from table <backup_job>
type BackupJob struct {
	ID                     int64            `gorm:"column:id;primaryKey" json:"id" form:"id"`
	UserID                 int64            `gorm:"column:user_id;not null;index:idx_backup_job_user" json:"userId" form:"userId"`
	DatabaseID             int64            `gorm:"column:database_id;not null;index:idx_backup_job_database" json:"databaseId" form:"databaseId"`
	Name                   string           `gorm:"column:name;not null" json:"name" form:"name"`
	ScheduleType           string           `gorm:"column:schedule_type;not null;default:manual" json:"scheduleType" form:"scheduleType"`
	CronExpression         string           `gorm:"column:cron_expression" json:"cronExpression" form:"cronExpression"`
	AdvancedSchedule       AdvancedSchedule `gorm:"column:advanced_schedule_config;type:text" json:"advancedScheduleConfig" form:"advancedScheduleConfig"`
	StorageType            string           `gorm:"column:storage_type;not null;default:local" json:"storageType" form:"storageType"`
	StoragePath            string           `gorm:"column:storage_path" json:"storagePath" form:"storagePath"`
	CloudStorageID         int64            `gorm:"column:cloud_storage_id;default:0" json:"cloudStorageId" form:"cloudStorageId"`
	RetentionDays          int              `gorm:"column:retention_days;not null;default:30" json:"retentionDays" form:"retentionDays"`
	Compression            bool             `gorm:"column:compression" json:"compression" form:"compression"`
	IsEncrypted            bool             `gorm:"column:is_encrypted;default:false" json:"isEncrypted" form:"isEncrypted"`
	EncryptionPasswordHash string           `gorm:"column:encryption_password_hash" json:"-" form:"encryptionPasswordHash"`
	BackupType             string           `gorm:"column:backup_type;not null;default:full" json:"backupType" form:"backupType"`
	IsActive               bool             `gorm:"column:is_active;index:idx_backup_job_active" json:"isActive" form:"isActive"`
	LastRunAt              *time.Time       `gorm:"column:last_run_at" json:"lastRunAt" form:"lastRunAt"`
	NextRunAt              *time.Time       `gorm:"column:next_run_at" json:"nextRunAt" form:"nextRunAt"`
	CreatedAt              time.Time        `gorm:"column:created_at" json:"createdAt" form:"createdAt"`
	UpdatedAt              time.Time        `gorm:"column:updated_at" json:"updatedAt" form:"updatedAt"`
}

// TableName BackupJob's table name
func (*BackupJob) TableName() string {
	return TableNameBackupJob
}
