// Package filecrypt encrypts backup artifacts with AES-256-GCM.
//
// File layout: [salt 64][iv 16][ciphertext ...][tag 16]. The key is
// PBKDF2-HMAC-SHA256(password, salt, 100000 iterations, 32 bytes).
package filecrypt

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"io"
	"os"

	"github.com/haierkeys/fast-db-backup-service/pkg/code"
	"github.com/pkg/errors"
	"golang.org/x/crypto/pbkdf2"
)

const (
	SaltSize   = 64
	IVSize     = 16
	TagSize    = 16
	KeySize    = 32
	Iterations = 100000

	headerSize = SaltSize + IVSize
	chunkSize  = 64 * 1024
)

// Ext is appended to encrypted artifact names.
const Ext = ".enc"

// DeriveKey 通过 PBKDF2 派生 AES-256 密钥
func DeriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, Iterations, KeySize, sha256.New)
}

// Encrypt streams src into dst in the encrypted file layout.
// Encrypt 以流的方式加密 src 并写入 dst
func Encrypt(dst io.Writer, src io.Reader, password string) error {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(rand.Reader, header); err != nil {
		return errors.Wrap(err, "filecrypt")
	}
	salt, iv := header[:SaltSize], header[SaltSize:]

	g, err := newGCMStream(DeriveKey(password, salt), iv)
	if err != nil {
		return errors.Wrap(err, "filecrypt")
	}

	if _, err := dst.Write(header); err != nil {
		return errors.Wrap(err, "filecrypt")
	}

	buf := make([]byte, chunkSize)
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			g.xorKeyStream(chunk, chunk)
			g.absorb(chunk)
			if _, err := dst.Write(chunk); err != nil {
				return errors.Wrap(err, "filecrypt")
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return errors.Wrap(rerr, "filecrypt")
		}
	}

	if _, err := dst.Write(g.tag()); err != nil {
		return errors.Wrap(err, "filecrypt")
	}
	return nil
}

// EncryptFile encrypts srcPath into dstPath. dstPath is removed on failure.
// EncryptFile 加密文件，失败时删除输出文件
func EncryptFile(srcPath, dstPath, password string) (err error) {
	in, err := os.Open(srcPath)
	if err != nil {
		return errors.Wrap(err, "filecrypt")
	}
	defer in.Close()

	out, err := os.Create(dstPath)
	if err != nil {
		return errors.Wrap(err, "filecrypt")
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = errors.Wrap(cerr, "filecrypt")
		}
		if err != nil {
			_ = os.Remove(dstPath)
		}
	}()

	return Encrypt(out, in, password)
}

// DecryptFile authenticates srcPath before writing any plaintext to dstPath.
// A wrong password or any tampering yields code.ErrorDecryptionFailed.
// DecryptFile 先校验认证标签再输出明文，密码错误或文件损坏返回统一的解密失败错误
func DecryptFile(srcPath, dstPath, password string) (err error) {
	in, err := os.Open(srcPath)
	if err != nil {
		return errors.Wrap(err, "filecrypt")
	}
	defer in.Close()

	fi, err := in.Stat()
	if err != nil {
		return errors.Wrap(err, "filecrypt")
	}
	if fi.Size() < headerSize+TagSize {
		return code.ErrorDecryptionFailed
	}

	header := make([]byte, headerSize)
	if _, err := in.ReadAt(header, 0); err != nil {
		return code.ErrorDecryptionFailed
	}
	tag := make([]byte, TagSize)
	if _, err := in.ReadAt(tag, fi.Size()-TagSize); err != nil {
		return code.ErrorDecryptionFailed
	}

	key := DeriveKey(password, header[:SaltSize])
	iv := header[SaltSize:]
	ctLen := fi.Size() - headerSize - TagSize

	auth, err := newGCMStream(key, iv)
	if err != nil {
		return code.ErrorDecryptionFailed
	}
	buf := make([]byte, chunkSize)
	if err := eachChunk(io.NewSectionReader(in, headerSize, ctLen), buf, auth.absorb); err != nil {
		return errors.Wrap(err, "filecrypt")
	}
	if subtle.ConstantTimeCompare(auth.tag(), tag) != 1 {
		return code.ErrorDecryptionFailed
	}

	out, err := os.Create(dstPath)
	if err != nil {
		return errors.Wrap(err, "filecrypt")
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = errors.Wrap(cerr, "filecrypt")
		}
		if err != nil {
			_ = os.Remove(dstPath)
		}
	}()

	dec, err := newGCMStream(key, iv)
	if err != nil {
		return code.ErrorDecryptionFailed
	}
	var werr error
	err = eachChunk(io.NewSectionReader(in, headerSize, ctLen), buf, func(chunk []byte) {
		if werr != nil {
			return
		}
		dec.xorKeyStream(chunk, chunk)
		_, werr = out.Write(chunk)
	})
	if err == nil {
		err = werr
	}
	if err != nil {
		return errors.Wrap(err, "filecrypt")
	}
	return nil
}

func eachChunk(r io.Reader, buf []byte, fn func([]byte)) error {
	for {
		n, err := r.Read(buf)
		if n > 0 {
			fn(buf[:n])
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
