package model

import "time"

const TableNameBackupHistory = "backup_history"

// BackupHistory mapped from table <backup_history>
type BackupHistory struct {
	ID                 int64      `gorm:"column:id;primaryKey" json:"id" form:"id"`
	BackupJobID        *int64     `gorm:"column:backup_job_id;index:idx_backup_history_job,priority:1" json:"backupJobId" form:"backupJobId"`
	DatabaseID         int64      `gorm:"column:database_id;not null" json:"databaseId" form:"databaseId"`
	UserID             int64      `gorm:"column:user_id;not null;index:idx_backup_history_user" json:"userId" form:"userId"`
	Status             string     `gorm:"column:status;not null;index:idx_backup_history_status" json:"status" form:"status"`
	FileName           string     `gorm:"column:file_name" json:"fileName" form:"fileName"`
	FilePath           string     `gorm:"column:file_path" json:"filePath" form:"filePath"`
	FileSize           int64      `gorm:"column:file_size;default:0" json:"fileSize" form:"fileSize"`
	BackupType         string     `gorm:"column:backup_type" json:"backupType" form:"backupType"`
	IsEncrypted        bool       `gorm:"column:is_encrypted;default:false" json:"isEncrypted" form:"isEncrypted"`
	Compressed         bool       `gorm:"column:compressed;default:false" json:"compressed" form:"compressed"`
	StorageType        string     `gorm:"column:storage_type" json:"storageType" form:"storageType"`
	CloudStorageID     int64      `gorm:"column:cloud_storage_id;default:0" json:"cloudStorageId" form:"cloudStorageId"`
	Checksum           string     `gorm:"column:checksum" json:"checksum" form:"checksum"`
	Duration           int64      `gorm:"column:duration;default:0" json:"duration" form:"duration"`
	ErrorMessage       string     `gorm:"column:error_message;type:text" json:"errorMessage" form:"errorMessage"`
	VerificationStatus string     `gorm:"column:verification_status" json:"verificationStatus" form:"verificationStatus"`
	VerificationMethod string     `gorm:"column:verification_method" json:"verificationMethod" form:"verificationMethod"`
	VerifiedAt         *time.Time `gorm:"column:verified_at" json:"verifiedAt" form:"verifiedAt"`
	StartedAt          time.Time  `gorm:"column:started_at;not null;index:idx_backup_history_job,priority:2" json:"startedAt" form:"startedAt"`
	CompletedAt        *time.Time `gorm:"column:completed_at" json:"completedAt" form:"completedAt"`
}

// TableName BackupHistory's table name
func (*BackupHistory) TableName() string {
	return TableNameBackupHistory
}
