// Package secret encrypts stored credentials (database passwords, cloud keys).
package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Prefix marks values produced by Encrypt. Values without it are treated as plaintext.
const Prefix = "enc:v1:"

// Cipher 凭据加解密器
type Cipher struct {
	aead cipher.AEAD
}

// New derives an AES-256-GCM key from the configured credential key.
// New 根据配置的凭据密钥创建加解密器
func New(key string) (*Cipher, error) {
	if key == "" {
		return nil, errors.New("secret: credential key is empty")
	}
	sum := sha256.Sum256([]byte(key))
	block, err := aes.NewCipher(sum[:])
	if err != nil {
		return nil, errors.Wrap(err, "secret")
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "secret")
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt returns Prefix + base64(nonce || ciphertext). Empty input stays empty.
func (c *Cipher) Encrypt(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.Wrap(err, "secret")
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plain), nil)
	return Prefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Values without Prefix are returned unchanged.
func (c *Cipher) Decrypt(value string) (string, error) {
	if !IsEncrypted(value) {
		return value, nil
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, Prefix))
	if err != nil {
		return "", errors.Wrap(err, "secret")
	}
	ns := c.aead.NonceSize()
	if len(raw) < ns {
		return "", errors.New("secret: ciphertext too short")
	}
	plain, err := c.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", errors.New("secret: unable to decrypt credential")
	}
	return string(plain), nil
}

// IsEncrypted 判断值是否为密文
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, Prefix)
}
