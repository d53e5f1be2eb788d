// Package domain 定义领域模型和接口
package domain

import (
	"time"

	"github.com/haierkeys/fast-db-backup-service/pkg/schedule"
)

const (
	BackupStatusRunning = "running"
	BackupStatusSuccess = "success"
	BackupStatusFailed  = "failed"
)

const (
	BackupTypeFull         = "full"
	BackupTypeIncremental  = "incremental"
	BackupTypeDifferential = "differential"
)

// BackupTypeMap 支持的备份类型。incremental 与 differential 目前按完整备份执行
var BackupTypeMap = map[string]bool{
	BackupTypeFull:         true,
	BackupTypeIncremental:  true,
	BackupTypeDifferential: true,
}

const (
	VerificationPassed = "PASSED"
	VerificationFailed = "FAILED"
)

// DatabaseProfile 数据库连接配置
type DatabaseProfile struct {
	ID               int64
	UserID           int64
	Name             string
	Type             string // postgresql, mysql, mariadb, mongodb, mssql
	Host             string
	Port             int
	ConnectionString string // MongoDB URI，可选
	Database         string
	Username         string
	Password         string // 存储时加密
	SSL              bool
	IsActive         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// BackupJob 备份任务
type BackupJob struct {
	ID                     int64
	UserID                 int64
	DatabaseID             int64
	Name                   string
	ScheduleType           string // manual, hourly, daily, weekly, monthly, custom, advanced
	CronExpression         string
	AdvancedScheduleConfig *schedule.AdvancedConfig
	StorageType            string // local, s3, google_drive, webdav, oss, ftp
	StoragePath            string
	CloudStorageID         int64 // 0 表示未关联
	RetentionDays          int
	Compression            bool
	IsEncrypted            bool
	EncryptionPasswordHash string
	BackupType             string
	IsActive               bool
	LastRunAt              *time.Time
	NextRunAt              *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// BackupHistory 一次备份执行记录
type BackupHistory struct {
	ID                 int64
	BackupJobID        int64 // 任务删除后为 0
	DatabaseID         int64
	UserID             int64
	Status             string
	FileName           string
	FilePath           string // 本地路径、对象键或 Drive 文件 ID
	FileSize           int64
	BackupType         string
	IsEncrypted        bool
	Compressed         bool
	StorageType        string
	CloudStorageID     int64
	Checksum           string
	Duration           int64 // 秒
	ErrorMessage       string
	VerificationStatus string
	VerificationMethod string
	VerifiedAt         *time.Time
	StartedAt          time.Time
	CompletedAt        *time.Time
}

// HistoryResult 终态更新字段
type HistoryResult struct {
	Status       string
	FileName     string
	FilePath     string
	FileSize     int64
	Checksum     string
	Duration     int64
	ErrorMessage string
	CompletedAt  time.Time
}

// BackupStats 用户备份统计
type BackupStats struct {
	Total        int64
	Success      int64
	Failed       int64
	Running      int64
	TotalSize    int64
	LastBackupAt *time.Time
}

// CloudStorageConfig 云存储配置，敏感字段存储时加密
type CloudStorageConfig struct {
	ID              int64
	UserID          int64
	Name            string
	StorageType     string
	Region          string
	Bucket          string
	Endpoint        string
	PathPrefix      string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	RefreshToken    string // Google Drive
	FolderID        string // Google Drive
	Host            string // WebDAV / FTP
	Port            int
	Username        string
	Password        string
	IsActive        bool
	IsDefault       bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
