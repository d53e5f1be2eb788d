// Package aws_s3 stores backups in S3 or an S3-compatible service (MinIO, Cloudflare R2).
package aws_s3

import (
	"context"
	"os"
	"path"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/haierkeys/fast-db-backup-service/pkg/storage/remote"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Config struct {
	Region          string
	BucketName      string
	Endpoint        string
	AccessKeyID     string
	AccessKeySecret string
	CustomPath      string
	UsePathStyle    bool
	// UploadRateLimit in bytes per second, 0 disables throttling
	UploadRateLimit int64
}

type S3 struct {
	S3Client   *s3.Client
	Uploader   *manager.Uploader
	Downloader *manager.Downloader
	Config     *Config
	logger     *zap.Logger
}

// Option 配置选项函数类型
type Option func(*S3)

// WithLogger 设置日志器
func WithLogger(logger *zap.Logger) Option {
	return func(s *S3) {
		s.logger = logger
	}
}

var (
	clientsMu sync.Mutex
	clients   = make(map[Config]*S3)
)

// NewClient 创建 S3 存储实例，相同配置复用同一客户端
func NewClient(conf *Config, opts ...Option) (*S3, error) {
	if conf.BucketName == "" {
		return nil, errors.New("aws_s3: bucket name is required")
	}

	clientsMu.Lock()
	defer clientsMu.Unlock()

	if c, ok := clients[*conf]; ok {
		// the cached instance may be in use; options apply to a copy sharing the SDK clients
		cp := *c
		for _, opt := range opts {
			opt(&cp)
		}
		return &cp, nil
	}

	region := conf.Region
	if region == "" {
		region = "us-east-1"
	}
	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(conf.AccessKeyID, conf.AccessKeySecret, "")),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, errors.Wrap(err, "aws_s3")
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if conf.Endpoint != "" {
			o.BaseEndpoint = aws.String(conf.Endpoint)
		}
		o.UsePathStyle = conf.UsePathStyle
	})

	c := &S3{
		S3Client:   client,
		Uploader:   manager.NewUploader(client),
		Downloader: manager.NewDownloader(client),
		Config:     conf,
		logger:     zap.NewNop(), // 默认空日志器
	}
	for _, opt := range opts {
		opt(c)
	}
	clients[*conf] = c
	return c, nil
}

func (p *S3) key(name string) string {
	return remote.JoinKey(p.Config.CustomPath, name)
}

// TestConnection checks the bucket is reachable with the configured credentials.
func (p *S3) TestConnection(ctx context.Context) error {
	_, err := p.S3Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(p.Config.BucketName)})
	return errors.Wrap(err, "aws_s3")
}

// Upload 以流的方式上传本地文件
func (p *S3) Upload(ctx context.Context, localPath, remoteName string) (*remote.UploadResult, error) {
	start := time.Now()
	src, err := remote.Open(localPath, p.Config.UploadRateLimit)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	fileKey := p.key(remoteName)
	_, err = p.Uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.Config.BucketName),
		Key:           aws.String(fileKey),
		Body:          src,
		ContentLength: aws.Int64(src.Size),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		return nil, errors.Wrap(err, "aws_s3")
	}

	p.logger.Info("s3 upload done", zap.String("bucket", p.Config.BucketName), zap.String("fileKey", fileKey), zap.Int64("size", src.Size))
	return &remote.UploadResult{Key: fileKey, FileSize: src.Size, Duration: remote.Seconds(start)}, nil
}

// Download writes the object to localPath using ranged parallel GETs.
func (p *S3) Download(ctx context.Context, ref, localPath string) (*remote.DownloadResult, error) {
	start := time.Now()
	if err := os.MkdirAll(path.Dir(localPath), 0o755); err != nil {
		return nil, errors.Wrap(err, "aws_s3")
	}
	f, err := os.Create(localPath)
	if err != nil {
		return nil, errors.Wrap(err, "aws_s3")
	}

	n, err := p.Downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(p.Config.BucketName),
		Key:    aws.String(ref),
	})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(localPath)
		return nil, errors.Wrap(err, "aws_s3")
	}
	return &remote.DownloadResult{FilePath: localPath, FileSize: n, Duration: remote.Seconds(start)}, nil
}

// Delete 删除对象，ref 为完整对象键
func (p *S3) Delete(ctx context.Context, ref string) error {
	_, err := p.S3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.Config.BucketName),
		Key:    aws.String(ref),
	})
	return errors.Wrap(err, "aws_s3")
}

// List 列出路径前缀下的所有对象
func (p *S3) List(ctx context.Context) ([]remote.Object, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(p.Config.BucketName)}
	if prefix := remote.JoinKey(p.Config.CustomPath, ""); prefix != "" {
		input.Prefix = aws.String(prefix + "/")
	}

	var objects []remote.Object
	paginator := s3.NewListObjectsV2Paginator(p.S3Client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "aws_s3")
		}
		for _, o := range page.Contents {
			key := aws.ToString(o.Key)
			objects = append(objects, remote.Object{
				Key:          key,
				Name:         path.Base(key),
				Size:         aws.ToInt64(o.Size),
				LastModified: aws.ToTime(o.LastModified),
			})
		}
	}
	return objects, nil
}
