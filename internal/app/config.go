// Package app 提供应用容器，封装所有依赖和服务
package app

import (
	"os"
	"path/filepath"
	"time"

	"github.com/haierkeys/fast-db-backup-service/internal/dao"
	"github.com/haierkeys/fast-db-backup-service/internal/service"
	"github.com/haierkeys/fast-db-backup-service/pkg/logger"
	"github.com/haierkeys/fast-db-backup-service/pkg/schedule"
	"github.com/haierkeys/fast-db-backup-service/pkg/util"
	"github.com/haierkeys/fast-db-backup-service/pkg/workerpool"

	"github.com/creasty/defaults"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// EnvBackupDir overrides backup.root-dir when set.
const EnvBackupDir = "BACKUP_DIR"

// AppConfig 应用配置
type AppConfig struct {
	File        string             `yaml:"-"` // 配置文件路径，不序列化
	Server      ServerConfig       `yaml:"server"`
	Log         LogConfig          `yaml:"log"`
	Database    dao.DatabaseConfig `yaml:"database"`
	Backup      BackupConfig       `yaml:"backup"`
	Security    SecurityConfig     `yaml:"security"`
	GoogleDrive GoogleDriveConfig  `yaml:"google-drive"`
	Mail        service.MailConfig `yaml:"mail"`
	Redis       RedisConfig        `yaml:"redis"`
	WorkerPool  workerpool.Config  `yaml:"worker-pool"`
}

// LogConfig 日志配置
type LogConfig struct {
	// Level 日志级别，参见 zapcore.ParseLevel
	Level string `yaml:"level" default:"info"`
	// File 日志文件路径
	File string `yaml:"file" default:"storage/logs/log.log"`
	// Production 是否启用 JSON 输出
	Production bool `yaml:"production"`
	// MaxSize 单个日志文件大小 (MB)
	MaxSize int `yaml:"max-size" default:"100"`
	// MaxBackups 保留的旧日志数量
	MaxBackups int `yaml:"max-backups" default:"10"`
	// MaxAge 旧日志保留天数
	MaxAge int `yaml:"max-age" default:"30"`
	// Compress 压缩旧日志
	Compress bool `yaml:"compress"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// RunMode 运行模式 debug|release
	RunMode string `yaml:"run-mode" default:"release"`
	// PrivateHttpListen 指标与调试接口监听地址，为空时不启动
	PrivateHttpListen string `yaml:"private-http-listen" default:"127.0.0.1:9001"`
	// ReadTimeout 读取超时（秒）
	ReadTimeout int `yaml:"read-timeout" default:"60"`
	// WriteTimeout 写入超时（秒）
	WriteTimeout int `yaml:"write-timeout" default:"60"`
}

// BackupConfig 备份流水线配置，时长支持 30m、6h、7d，大小支持 10MB、1GB
type BackupConfig struct {
	// RootDir 备份根目录，环境变量 BACKUP_DIR 优先
	RootDir string `yaml:"root-dir" default:"storage/backups"`
	// CommandTimeout 外部备份工具超时，不低于 30m
	CommandTimeout string `yaml:"command-timeout" default:"30m"`
	// MaxOutputSize 外部命令输出捕获上限
	MaxOutputSize string `yaml:"max-output-size" default:"10MB"`
	// MinFreeSpace 剩余空间低于该值时告警
	MinFreeSpace string `yaml:"min-free-space" default:"1GB"`
	// UploadRateLimit 上传限速（每秒），0 表示不限速
	UploadRateLimit string `yaml:"upload-rate-limit" default:"0"`
	// Timezone 调度时区
	Timezone string `yaml:"timezone" default:"Europe/Istanbul"`
	// LockTTL 单任务执行锁租期
	LockTTL string `yaml:"lock-ttl" default:"6h"`
	// ShutdownTimeout 关闭时等待运行中备份的时间
	ShutdownTimeout string `yaml:"shutdown-timeout" default:"30m"`
	// StaleRunningAfter 超过该时长仍为 running 的历史记录在启动巡检时标记为失败
	StaleRunningAfter string `yaml:"stale-running-after" default:"12h"`
	// TempMaxAge 临时目录中超过该时长的文件会被清理
	TempMaxAge string `yaml:"temp-max-age" default:"1d"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	// CredentialKey 加密存储数据库密码与云存储密钥
	CredentialKey string `yaml:"credential-key" default:"fast-db-backup-Credential-Key"`
}

// GoogleDriveConfig Google Drive OAuth 客户端
type GoogleDriveConfig struct {
	ClientID     string `yaml:"client-id"`
	ClientSecret string `yaml:"client-secret"`
	RedirectURL  string `yaml:"redirect-url"`
}

// RedisConfig 多实例部署时的分布式执行锁
type RedisConfig struct {
	IsEnable bool   `yaml:"is-enable"`
	Addr     string `yaml:"addr" default:"127.0.0.1:6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix" default:"dbbackup:lock:"`
}

// LoadConfig 从文件加载配置
// 返回配置实例和配置文件的绝对路径
func LoadConfig(f string) (*AppConfig, string, error) {
	realpath, err := filepath.Abs(f)
	if err != nil {
		return nil, "", err
	}
	realpath = filepath.Clean(realpath)

	file, err := os.ReadFile(realpath)
	if err != nil {
		return nil, realpath, errors.Wrap(err, "read config file failed")
	}

	c, err := ParseConfig(file)
	if err != nil {
		return nil, realpath, err
	}
	c.File = realpath
	return c, realpath, nil
}

// ParseConfig 解析 YAML 配置并填充默认值
func ParseConfig(data []byte) (*AppConfig, error) {
	c := new(AppConfig)

	// 设置默认值
	if err := defaults.Set(c); err != nil {
		return nil, errors.Wrap(err, "set default config failed")
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, errors.Wrap(err, "parse config file failed")
	}

	// 再次设置默认值，以填充 YAML 中存在但值为空的字段
	// defaults.Set 只有在字段为该类型的零值时才会填充
	if err := defaults.Set(c); err != nil {
		return nil, errors.Wrap(err, "re-set default config failed")
	}

	if dir := os.Getenv(EnvBackupDir); dir != "" {
		c.Backup.RootDir = dir
	}

	if _, err := c.ServiceConfig(); err != nil {
		return nil, err
	}
	return c, nil
}

// Save 保存配置到文件
func (c *AppConfig) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "marshal config failed")
	}

	err = os.WriteFile(c.File, data, 0644)
	if err != nil {
		return errors.Wrap(err, "write config file failed")
	}

	return nil
}

// minCommandTimeout 外部命令超时下限
const minCommandTimeout = 30 * time.Minute

// ServiceConfig 提取 Service 层需要的配置，并校验时长与时区
func (c *AppConfig) ServiceConfig() (*service.ServiceConfig, error) {
	b := c.Backup

	commandTimeout, err := parseDuration("backup.command-timeout", b.CommandTimeout)
	if err != nil {
		return nil, err
	}
	lockTTL, err := parseDuration("backup.lock-ttl", b.LockTTL)
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := parseDuration("backup.shutdown-timeout", b.ShutdownTimeout)
	if err != nil {
		return nil, err
	}
	if commandTimeout < minCommandTimeout {
		commandTimeout = minCommandTimeout
	}

	if _, err := schedule.NewCalculator(b.Timezone); err != nil {
		return nil, errors.Wrap(err, "backup.timezone")
	}

	return &service.ServiceConfig{
		Backup: service.BackupServiceConfig{
			RootDir:         b.RootDir,
			CommandTimeout:  commandTimeout,
			MaxOutputSize:   util.ParseSize(b.MaxOutputSize, 10<<20),
			MinFreeSpace:    util.ParseSize(b.MinFreeSpace, 1<<30),
			UploadRateLimit: util.ParseSize(b.UploadRateLimit, 0),
			Timezone:        b.Timezone,
			LockTTL:         lockTTL,
			ShutdownTimeout: shutdownTimeout,
		},
		GoogleDrive: service.GoogleDriveConfig{
			ClientID:     c.GoogleDrive.ClientID,
			ClientSecret: c.GoogleDrive.ClientSecret,
			RedirectURL:  c.GoogleDrive.RedirectURL,
		},
	}, nil
}

func parseDuration(key, v string) (time.Duration, error) {
	d, err := util.ParseDuration(v)
	if err != nil {
		return 0, errors.Wrap(err, key)
	}
	return d, nil
}

// LoggerConfig 日志器配置
func (c *AppConfig) LoggerConfig() logger.Config {
	return logger.Config{
		Level:      c.Log.Level,
		File:       c.Log.File,
		Production: c.Log.Production,
		MaxSize:    c.Log.MaxSize,
		MaxBackups: c.Log.MaxBackups,
		MaxAge:     c.Log.MaxAge,
		Compress:   c.Log.Compress,
	}
}

// StaleRunningAfter running 历史记录的失效时长
func (c *AppConfig) StaleRunningAfter() time.Duration {
	return util.DurationOr(c.Backup.StaleRunningAfter, 12*time.Hour)
}

// TempMaxAge 临时文件最长保留时间
func (c *AppConfig) TempMaxAge() time.Duration {
	return util.DurationOr(c.Backup.TempMaxAge, 24*time.Hour)
}
