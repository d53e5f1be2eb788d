// Package dbcore holds the types and helpers shared by the database connectors.
package dbcore

import (
	"strings"
	"time"
)

// Config is a database profile with its password already decrypted.
// Config 数据库连接配置（密码已解密）
type Config struct {
	Type             string
	Host             string
	Port             int
	ConnectionString string
	Database         string
	Username         string
	Password         string
	SSL              bool

	// CommandTimeout bounds each dump/restore call. Values below MinCommandTimeout are raised.
	CommandTimeout time.Duration
	// MaxOutputSize caps captured stdout/stderr of native tools.
	MaxOutputSize int64
}

// ConnectionResult 连接测试结果
type ConnectionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Version string `json:"version,omitempty"`
}

// BackupResult 备份结果
type BackupResult struct {
	FileName string `json:"fileName"`
	FilePath string `json:"filePath"`
	FileSize int64  `json:"fileSize"`
	// Duration in whole seconds
	Duration int64 `json:"duration"`
}

// RestoreResult 恢复结果
type RestoreResult struct {
	Duration int64  `json:"duration"`
	Message  string `json:"message"`
}

const (
	MinCommandTimeout    = 30 * time.Minute
	DefaultMaxOutputSize = 512 * 1024 * 1024
	minMaxOutputSize     = 500 * 1024 * 1024
)

// EffectiveTimeout 返回不低于下限的命令超时
func (c *Config) EffectiveTimeout() time.Duration {
	if c.CommandTimeout < MinCommandTimeout {
		return MinCommandTimeout
	}
	return c.CommandTimeout
}

// EffectiveMaxOutput 返回不低于下限的输出缓冲上限
func (c *Config) EffectiveMaxOutput() int64 {
	if c.MaxOutputSize <= 0 {
		return DefaultMaxOutputSize
	}
	if c.MaxOutputSize < minMaxOutputSize {
		return minMaxOutputSize
	}
	return c.MaxOutputSize
}

// ArtifactName builds "<database>_<ISO8601 UTC with ':' and '.' replaced by '-'>.<ext>".
// ArtifactName 生成确定性的备份文件名
func ArtifactName(database, ext string, at time.Time) string {
	stamp := at.UTC().Format("2006-01-02T15:04:05.000Z")
	stamp = strings.NewReplacer(":", "-", ".", "-").Replace(stamp)
	return database + "_" + stamp + "." + ext
}

// DurationSeconds floors the elapsed wall clock time to whole seconds.
func DurationSeconds(start, end time.Time) int64 {
	return int64(end.Sub(start) / time.Second)
}
