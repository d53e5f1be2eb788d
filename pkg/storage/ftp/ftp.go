// Package ftp stores backups on an FTP or explicit-TLS FTP server.
package ftp

import (
	"context"
	"crypto/tls"
	"net"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/haierkeys/fast-db-backup-service/pkg/storage/remote"
	"github.com/jlaffaye/ftp"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Config struct {
	Host            string
	Port            int
	User            string
	Password        string
	CustomPath      string
	ExplicitTLS     bool
	Timeout         time.Duration
	UploadRateLimit int64
}

type FTP struct {
	Config *Config
	logger *zap.Logger
}

func NewClient(conf *Config, logger *zap.Logger) (*FTP, error) {
	if conf.Host == "" {
		return nil, errors.New("ftp: host is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FTP{Config: conf, logger: logger}, nil
}

// dial opens a logged-in control connection. Each operation uses its own
// connection since *ftp.ServerConn is not safe for concurrent use.
func (f *FTP) dial(ctx context.Context) (*ftp.ServerConn, error) {
	port := f.Config.Port
	if port == 0 {
		port = 21
	}
	timeout := f.Config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	opts := []ftp.DialOption{ftp.DialWithContext(ctx), ftp.DialWithTimeout(timeout)}
	if f.Config.ExplicitTLS {
		opts = append(opts, ftp.DialWithExplicitTLS(&tls.Config{ServerName: f.Config.Host}))
	}

	conn, err := ftp.Dial(net.JoinHostPort(f.Config.Host, strconv.Itoa(port)), opts...)
	if err != nil {
		return nil, errors.Wrap(err, "ftp dial")
	}
	if err := conn.Login(f.Config.User, f.Config.Password); err != nil {
		_ = conn.Quit()
		return nil, errors.Wrap(err, "ftp login")
	}
	return conn, nil
}

func (f *FTP) dir() string {
	return "/" + remote.JoinKey(f.Config.CustomPath, "")
}

// mkdirAll 逐级创建目录，已存在的目录忽略错误
func mkdirAll(conn *ftp.ServerConn, dir string) {
	cur := ""
	for _, part := range strings.Split(strings.Trim(dir, "/"), "/") {
		if part == "" {
			continue
		}
		cur += "/" + part
		_ = conn.MakeDir(cur)
	}
}

func (f *FTP) TestConnection(ctx context.Context) error {
	conn, err := f.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Quit()
	_, err = conn.CurrentDir()
	return errors.Wrap(err, "ftp")
}

func (f *FTP) Upload(ctx context.Context, localPath, remoteName string) (*remote.UploadResult, error) {
	start := time.Now()
	src, err := remote.Open(localPath, f.Config.UploadRateLimit)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	conn, err := f.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Quit()

	mkdirAll(conn, f.dir())
	fileKey := path.Join(f.dir(), remoteName)
	if err := conn.Stor(fileKey, src); err != nil {
		return nil, errors.Wrap(err, "ftp stor")
	}
	f.logger.Info("ftp upload done", zap.String("fileKey", fileKey), zap.Int64("size", src.Size))
	return &remote.UploadResult{Key: fileKey, FileSize: src.Size, Duration: remote.Seconds(start)}, nil
}

func (f *FTP) Download(ctx context.Context, ref, localPath string) (*remote.DownloadResult, error) {
	start := time.Now()
	conn, err := f.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Quit()

	resp, err := conn.Retr(ref)
	if err != nil {
		return nil, errors.Wrap(err, "ftp retr")
	}
	n, err := remote.WriteFile(localPath, resp)
	if cerr := resp.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		return nil, errors.Wrap(err, "ftp")
	}
	return &remote.DownloadResult{FilePath: localPath, FileSize: n, Duration: remote.Seconds(start)}, nil
}

func (f *FTP) Delete(ctx context.Context, ref string) error {
	conn, err := f.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Quit()
	return errors.Wrap(conn.Delete(ref), "ftp delete")
}

func (f *FTP) List(ctx context.Context) ([]remote.Object, error) {
	conn, err := f.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Quit()

	entries, err := conn.List(f.dir())
	if err != nil {
		return nil, errors.Wrap(err, "ftp list")
	}
	objects := make([]remote.Object, 0, len(entries))
	for _, e := range entries {
		if e.Type != ftp.EntryTypeFile {
			continue
		}
		objects = append(objects, remote.Object{
			Key:          path.Join(f.dir(), e.Name),
			Name:         e.Name,
			Size:         int64(e.Size),
			LastModified: e.Time,
		})
	}
	return objects, nil
}
