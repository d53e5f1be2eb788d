// Package remote holds the result types and helpers shared by storage backends.
package remote

import (
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/juju/ratelimit"
	"github.com/pkg/errors"
)

// Object is one stored backup.
type Object struct {
	Key          string    `json:"key"`
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

// UploadResult 上传结果，Key 为对象键或 Drive 文件 ID
type UploadResult struct {
	Key      string `json:"key"`
	FileSize int64  `json:"fileSize"`
	Duration int64  `json:"duration"`
}

// DownloadResult 下载结果
type DownloadResult struct {
	FilePath string `json:"filePath"`
	FileSize int64  `json:"fileSize"`
	Duration int64  `json:"duration"`
}

// ConnectionResult 连接测试结果
type ConnectionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// JoinKey prefixes name with the configured path prefix.
// JoinKey 拼接路径前缀与文件名
func JoinKey(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// Source is an opened local file ready for upload.
type Source struct {
	io.Reader
	file *os.File
	Size int64
	Name string
}

func (s *Source) Close() error {
	return s.file.Close()
}

// Open opens localPath for upload. bytesPerSecond > 0 throttles reads.
// Open 打开待上传文件，bytesPerSecond 大于 0 时限速
func Open(localPath string, bytesPerSecond int64) (*Source, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, errors.Wrap(err, "open upload source")
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, "stat upload source")
	}
	var r io.Reader = f
	if bytesPerSecond > 0 {
		r = ratelimit.Reader(f, ratelimit.NewBucketWithRate(float64(bytesPerSecond), bytesPerSecond))
	}
	return &Source{Reader: r, file: f, Size: fi.Size(), Name: filepath.Base(localPath)}, nil
}

// WriteFile streams r into localPath, creating parent directories.
// A partial file is removed on failure.
// WriteFile 将流写入本地文件，失败时删除不完整的文件
func WriteFile(localPath string, r io.Reader) (n int64, err error) {
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return 0, errors.Wrap(err, "create download dir")
	}
	f, err := os.Create(localPath)
	if err != nil {
		return 0, errors.Wrap(err, "create download file")
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(localPath)
		}
	}()
	n, err = io.Copy(f, r)
	if err != nil {
		return n, errors.Wrap(err, "write download file")
	}
	return n, nil
}

// Seconds floors elapsed time since start to whole seconds.
func Seconds(start time.Time) int64 {
	return int64(time.Since(start) / time.Second)
}
