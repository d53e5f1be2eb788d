// Package service implements the business logic layer
// Package service 实现业务逻辑层
package service

import (
	"path/filepath"
	"strconv"
	"time"
)

// ServiceConfig service layer configuration
// ServiceConfig 服务层配置
type ServiceConfig struct {
	Backup      BackupServiceConfig
	GoogleDrive GoogleDriveConfig
}

// BackupServiceConfig backup pipeline configuration
// BackupServiceConfig 备份流水线配置
type BackupServiceConfig struct {
	RootDir         string        // Root of job directories and temp/ // 备份根目录
	CommandTimeout  time.Duration // Native tool timeout, at least 30m // 外部命令超时
	MaxOutputSize   int64         // Captured tool output cap // 外部命令输出上限
	MinFreeSpace    int64         // Warn below this many free bytes // 磁盘剩余空间告警阈值
	UploadRateLimit int64         // Upload bytes per second, 0 = unlimited // 上传限速
	Timezone        string        // Schedule timezone // 调度时区
	LockTTL         time.Duration // Distributed lock lease // 分布式锁租期
	ShutdownTimeout time.Duration // Wait for running backups on shutdown // 关闭时等待运行中任务的时间
}

// GoogleDriveConfig OAuth client shared by all Drive storage configs
// GoogleDriveConfig 所有 Drive 存储共用的 OAuth 客户端
type GoogleDriveConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// JobDir 任务备份目录 <root>/job_<id>
func (c BackupServiceConfig) JobDir(jobID int64) string {
	return filepath.Join(c.RootDir, "job_"+strconv.FormatInt(jobID, 10))
}

// TempDir 下载、解密与解压使用的临时目录
func (c BackupServiceConfig) TempDir() string {
	return filepath.Join(c.RootDir, "temp")
}

func (c BackupServiceConfig) lockTTL() time.Duration {
	if c.LockTTL > 0 {
		return c.LockTTL
	}
	return 6 * time.Hour
}
