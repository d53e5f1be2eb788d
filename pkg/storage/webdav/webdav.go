package webdav

import (
	"context"
	"os"
	"path"
	"time"

	"github.com/haierkeys/fast-db-backup-service/pkg/storage/remote"
	"github.com/pkg/errors"
	"github.com/studio-b12/gowebdav"
	"go.uber.org/zap"
)

// Config 结构体用于存储 WebDAV 连接信息。
type Config struct {
	Endpoint        string
	User            string
	Password        string
	CustomPath      string
	Timeout         time.Duration
	UploadRateLimit int64
}

type WebDAV struct {
	Client *gowebdav.Client
	Config *Config
	logger *zap.Logger
}

// NewClient 创建 WebDAV 客户端
func NewClient(conf *Config, logger *zap.Logger) (*WebDAV, error) {
	if conf.Endpoint == "" {
		return nil, errors.New("webdav: endpoint is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := gowebdav.NewClient(conf.Endpoint, conf.User, conf.Password)
	if conf.Timeout > 0 {
		c.SetTimeout(conf.Timeout)
	}
	return &WebDAV{Client: c, Config: conf, logger: logger}, nil
}

func (w *WebDAV) dir() string {
	return "/" + remote.JoinKey(w.Config.CustomPath, "")
}

func (w *WebDAV) TestConnection(ctx context.Context) error {
	return errors.Wrap(w.Client.Connect(), "webdav")
}

// Upload 将本地文件以流的方式写入 WebDAV 服务器
func (w *WebDAV) Upload(ctx context.Context, localPath, remoteName string) (*remote.UploadResult, error) {
	start := time.Now()
	src, err := remote.Open(localPath, w.Config.UploadRateLimit)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	if err := w.Client.MkdirAll(w.dir(), 0o755); err != nil {
		return nil, errors.Wrap(err, "webdav")
	}
	fileKey := path.Join(w.dir(), remoteName)
	if err := w.Client.WriteStream(fileKey, src, os.ModePerm); err != nil {
		return nil, errors.Wrap(err, "webdav")
	}

	w.logger.Info("webdav upload done", zap.String("fileKey", fileKey), zap.Int64("size", src.Size))
	return &remote.UploadResult{Key: fileKey, FileSize: src.Size, Duration: remote.Seconds(start)}, nil
}

func (w *WebDAV) Download(ctx context.Context, ref, localPath string) (*remote.DownloadResult, error) {
	start := time.Now()
	rc, err := w.Client.ReadStream(ref)
	if err != nil {
		return nil, errors.Wrap(err, "webdav")
	}
	defer rc.Close()

	n, err := remote.WriteFile(localPath, rc)
	if err != nil {
		return nil, errors.Wrap(err, "webdav")
	}
	return &remote.DownloadResult{FilePath: localPath, FileSize: n, Duration: remote.Seconds(start)}, nil
}

func (w *WebDAV) Delete(ctx context.Context, ref string) error {
	return errors.Wrap(w.Client.Remove(ref), "webdav")
}

// List 列出备份目录中的文件（不递归）
func (w *WebDAV) List(ctx context.Context) ([]remote.Object, error) {
	infos, err := w.Client.ReadDir(w.dir())
	if err != nil {
		if gowebdav.IsErrNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "webdav")
	}
	objects := make([]remote.Object, 0, len(infos))
	for _, fi := range infos {
		if fi.IsDir() {
			continue
		}
		objects = append(objects, remote.Object{
			Key:          path.Join(w.dir(), fi.Name()),
			Name:         fi.Name(),
			Size:         fi.Size(),
			LastModified: fi.ModTime(),
		})
	}
	return objects, nil
}
