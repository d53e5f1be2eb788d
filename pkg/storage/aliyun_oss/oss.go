package aliyun_oss

import (
	"context"
	"path"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/haierkeys/fast-db-backup-service/pkg/storage/remote"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Config struct {
	Endpoint        string
	BucketName      string
	AccessKeyID     string
	AccessKeySecret string
	CustomPath      string
	UploadRateLimit int64
}

type OSS struct {
	Client *oss.Client
	Bucket *oss.Bucket
	Config *Config
	logger *zap.Logger
}

// NewClient 创建阿里云 OSS 客户端并绑定存储桶
func NewClient(conf *Config, logger *zap.Logger) (*OSS, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := oss.New(conf.Endpoint, conf.AccessKeyID, conf.AccessKeySecret)
	if err != nil {
		return nil, errors.Wrap(err, "aliyun_oss")
	}
	bucket, err := client.Bucket(conf.BucketName)
	if err != nil {
		return nil, errors.Wrap(err, "aliyun_oss")
	}
	return &OSS{Client: client, Bucket: bucket, Config: conf, logger: logger}, nil
}

func (p *OSS) TestConnection(ctx context.Context) error {
	_, err := p.Client.GetBucketInfo(p.Config.BucketName, oss.WithContext(ctx))
	return errors.Wrap(err, "aliyun_oss")
}

func (p *OSS) Upload(ctx context.Context, localPath, remoteName string) (*remote.UploadResult, error) {
	start := time.Now()
	src, err := remote.Open(localPath, p.Config.UploadRateLimit)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	fileKey := remote.JoinKey(p.Config.CustomPath, remoteName)
	if err := p.Bucket.PutObject(fileKey, src, oss.WithContext(ctx), oss.ContentLength(src.Size)); err != nil {
		return nil, errors.Wrap(err, "aliyun_oss")
	}
	p.logger.Info("oss upload done", zap.String("bucket", p.Config.BucketName), zap.String("fileKey", fileKey), zap.Int64("size", src.Size))
	return &remote.UploadResult{Key: fileKey, FileSize: src.Size, Duration: remote.Seconds(start)}, nil
}

func (p *OSS) Download(ctx context.Context, ref, localPath string) (*remote.DownloadResult, error) {
	start := time.Now()
	body, err := p.Bucket.GetObject(ref, oss.WithContext(ctx))
	if err != nil {
		return nil, errors.Wrap(err, "aliyun_oss")
	}
	defer body.Close()

	n, err := remote.WriteFile(localPath, body)
	if err != nil {
		return nil, errors.Wrap(err, "aliyun_oss")
	}
	return &remote.DownloadResult{FilePath: localPath, FileSize: n, Duration: remote.Seconds(start)}, nil
}

func (p *OSS) Delete(ctx context.Context, ref string) error {
	return errors.Wrap(p.Bucket.DeleteObject(ref, oss.WithContext(ctx)), "aliyun_oss")
}

// List 分页列出路径前缀下的对象
func (p *OSS) List(ctx context.Context) ([]remote.Object, error) {
	opts := []oss.Option{oss.WithContext(ctx), oss.MaxKeys(1000)}
	if prefix := remote.JoinKey(p.Config.CustomPath, ""); prefix != "" {
		opts = append(opts, oss.Prefix(prefix+"/"))
	}

	var objects []remote.Object
	token := ""
	for {
		page, err := p.Bucket.ListObjectsV2(append(opts, oss.ContinuationToken(token))...)
		if err != nil {
			return nil, errors.Wrap(err, "aliyun_oss")
		}
		for _, o := range page.Objects {
			objects = append(objects, remote.Object{
				Key:          o.Key,
				Name:         path.Base(o.Key),
				Size:         o.Size,
				LastModified: o.LastModified,
			})
		}
		if !page.IsTruncated {
			return objects, nil
		}
		token = page.NextContinuationToken
	}
}
