package storage

import (
	"context"
	"time"

	"github.com/haierkeys/fast-db-backup-service/pkg/code"
	"github.com/haierkeys/fast-db-backup-service/pkg/storage/aliyun_oss"
	"github.com/haierkeys/fast-db-backup-service/pkg/storage/aws_s3"
	"github.com/haierkeys/fast-db-backup-service/pkg/storage/ftp"
	"github.com/haierkeys/fast-db-backup-service/pkg/storage/google_drive"
	"github.com/haierkeys/fast-db-backup-service/pkg/storage/remote"
	"github.com/haierkeys/fast-db-backup-service/pkg/storage/webdav"
	"go.uber.org/zap"
)

type Type = string

// LOCAL keeps the artifact on the backup host and has no connector.
const LOCAL Type = "local"

const S3 Type = "s3"
const GoogleDrive Type = "google_drive"
const WebDAV Type = "webdav"
const OSS Type = "oss"
const FTP Type = "ftp"

var StorageTypeMap = map[Type]bool{
	LOCAL:       true,
	S3:          true,
	GoogleDrive: true,
	WebDAV:      true,
	OSS:         true,
	FTP:         true,
}

// CloudStorageTypeMap lists the types served by a connector.
var CloudStorageTypeMap = map[Type]bool{
	S3:          true,
	GoogleDrive: true,
	WebDAV:      true,
	OSS:         true,
	FTP:         true,
}

// IsCloud 是否为远程存储类型
func IsCloud(t Type) bool {
	return CloudStorageTypeMap[t]
}

// Config Unified storage configuration. Secrets arrive already decrypted.
type Config struct {
	Type Type `yaml:"type"`

	CustomPath string `yaml:"custom-path"`

	// S3 / OSS
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	BucketName      string `yaml:"bucket-name"`
	AccessKeyID     string `yaml:"access-key-id"`
	AccessKeySecret string `yaml:"access-key-secret"`
	UsePathStyle    bool   `yaml:"use-path-style"`

	// Google Drive
	ClientID     string `yaml:"client-id"`
	ClientSecret string `yaml:"client-secret"`
	RefreshToken string `yaml:"refresh-token"`
	FolderID     string `yaml:"folder-id"`

	// WebDAV / FTP
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	ExplicitTLS bool   `yaml:"explicit-tls"`

	Timeout time.Duration `yaml:"timeout"`
	// UploadRateLimit bytes per second, 0 = unlimited
	UploadRateLimit int64 `yaml:"upload-rate-limit"`
}

type Storager interface {
	TestConnection(ctx context.Context) error
	Upload(ctx context.Context, localPath, remoteName string) (*remote.UploadResult, error)
	Download(ctx context.Context, ref, localPath string) (*remote.DownloadResult, error)
	Delete(ctx context.Context, ref string) error
	List(ctx context.Context) ([]remote.Object, error)
}

var (
	_ Storager = (*aws_s3.S3)(nil)
	_ Storager = (*google_drive.GoogleDrive)(nil)
	_ Storager = (*webdav.WebDAV)(nil)
	_ Storager = (*aliyun_oss.OSS)(nil)
	_ Storager = (*ftp.FTP)(nil)
)

// Factory builds a Storager; services take one so tests can inject fakes.
type Factory func(ctx context.Context, config *Config, logger *zap.Logger) (Storager, error)

// NewClient 根据存储类型创建存储客户端，未知类型返回 ErrorInvalidStorageType
func NewClient(ctx context.Context, config *Config, logger *zap.Logger) (Storager, error) {
	if config == nil {
		return nil, code.ErrorInvalidStorageType
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	switch config.Type {
	case S3:
		cfg := &aws_s3.Config{
			Region:          config.Region,
			BucketName:      config.BucketName,
			Endpoint:        config.Endpoint,
			AccessKeyID:     config.AccessKeyID,
			AccessKeySecret: config.AccessKeySecret,
			CustomPath:      config.CustomPath,
			UsePathStyle:    config.UsePathStyle,
			UploadRateLimit: config.UploadRateLimit,
		}
		return aws_s3.NewClient(cfg, aws_s3.WithLogger(logger))
	case GoogleDrive:
		cfg := &google_drive.Config{
			ClientID:        config.ClientID,
			ClientSecret:    config.ClientSecret,
			RefreshToken:    config.RefreshToken,
			FolderID:        config.FolderID,
			UploadRateLimit: config.UploadRateLimit,
		}
		return google_drive.NewClient(ctx, cfg, logger)
	case WebDAV:
		cfg := &webdav.Config{
			Endpoint:        config.Endpoint,
			User:            config.User,
			Password:        config.Password,
			CustomPath:      config.CustomPath,
			Timeout:         config.Timeout,
			UploadRateLimit: config.UploadRateLimit,
		}
		return webdav.NewClient(cfg, logger)
	case OSS:
		cfg := &aliyun_oss.Config{
			Endpoint:        config.Endpoint,
			BucketName:      config.BucketName,
			AccessKeyID:     config.AccessKeyID,
			AccessKeySecret: config.AccessKeySecret,
			CustomPath:      config.CustomPath,
			UploadRateLimit: config.UploadRateLimit,
		}
		return aliyun_oss.NewClient(cfg, logger)
	case FTP:
		cfg := &ftp.Config{
			Host:            config.Host,
			Port:            config.Port,
			User:            config.User,
			Password:        config.Password,
			CustomPath:      config.CustomPath,
			ExplicitTLS:     config.ExplicitTLS,
			Timeout:         config.Timeout,
			UploadRateLimit: config.UploadRateLimit,
		}
		return ftp.NewClient(cfg, logger)
	}
	return nil, code.ErrorInvalidStorageType.WithDetails(config.Type)
}

// Check runs TestConnection and reports the outcome without returning an error.
// Check 测试连接并返回结果，不返回错误
func Check(ctx context.Context, s Storager) *remote.ConnectionResult {
	if err := s.TestConnection(ctx); err != nil {
		return &remote.ConnectionResult{Success: false, Message: err.Error()}
	}
	return &remote.ConnectionResult{Success: true, Message: "connection successful"}
}
