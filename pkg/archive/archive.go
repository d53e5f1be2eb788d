// Package archive compresses, decompresses and fingerprints backup artifacts.
package archive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Ext is appended to gzip-compressed artifacts.
const Ext = ".gz"

// GzipFile compresses src into dst at the best compression level. The reading side
// and the compressing side run as two errgroup stages joined by an io.Pipe; the first
// failure aborts both and dst is removed.
// GzipFile 以最高压缩级别压缩文件，失败时删除输出文件
func GzipFile(ctx context.Context, src, dst string) (n int64, err error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, errors.Wrap(err, "archive")
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, errors.Wrap(err, "archive")
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = errors.Wrap(cerr, "archive")
		}
		if err != nil {
			_ = os.Remove(dst)
		}
	}()

	pr, pw := io.Pipe()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		_, err := io.Copy(pw, &ctxReader{ctx: gctx, r: in})
		pw.CloseWithError(err)
		return err
	})

	g.Go(func() error {
		zw, err := gzip.NewWriterLevel(out, gzip.BestCompression)
		if err != nil {
			pr.CloseWithError(err)
			return err
		}
		if _, err := io.Copy(zw, pr); err != nil {
			pr.CloseWithError(err)
			return err
		}
		return zw.Close()
	})

	if err := g.Wait(); err != nil {
		return 0, errors.Wrap(err, "archive: gzip")
	}
	fi, err := out.Stat()
	if err != nil {
		return 0, errors.Wrap(err, "archive")
	}
	return fi.Size(), nil
}

// GunzipFile decompresses src into dst; dst is removed on failure.
func GunzipFile(ctx context.Context, src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrap(err, "archive")
	}
	defer in.Close()

	zr, err := gzip.NewReader(in)
	if err != nil {
		return errors.Wrap(err, "archive: gunzip")
	}
	defer zr.Close()

	out, err := os.Create(dst)
	if err != nil {
		return errors.Wrap(err, "archive")
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = errors.Wrap(cerr, "archive")
		}
		if err != nil {
			_ = os.Remove(dst)
		}
	}()

	if _, err := io.Copy(out, &ctxReader{ctx: ctx, r: zr}); err != nil {
		return errors.Wrap(err, "archive: gunzip")
	}
	return nil
}

// CheckGzip reads the whole gzip stream, validating every member's CRC and length.
// CheckGzip 校验 gzip 流完整性
func CheckGzip(ctx context.Context, path string) error {
	in, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "archive")
	}
	defer in.Close()

	zr, err := gzip.NewReader(in)
	if err != nil {
		return errors.Wrap(err, "archive: gzip header")
	}
	defer zr.Close()

	if _, err := io.Copy(io.Discard, &ctxReader{ctx: ctx, r: zr}); err != nil {
		return errors.Wrap(err, "archive: gzip stream")
	}
	return nil
}

// SHA256File 计算文件的 sha256（十六进制）
func SHA256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, "archive")
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.Wrap(err, "archive")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// IsGzip reports whether name carries the gzip extension.
func IsGzip(name string) bool {
	return strings.HasSuffix(name, Ext)
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
