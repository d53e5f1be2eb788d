package filecrypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/haierkeys/fast-db-backup-service/pkg/code"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, data, 0o600))
	return p
}

// The streamed layout must equal salt || iv || GCM.Seal(plaintext).
func TestEncryptMatchesStandardGCM(t *testing.T) {
	for _, size := range []int{0, 1, 15, 16, 17, 1000, chunkSize + 33} {
		plain := bytes.Repeat([]byte{0xA5, 0x01, 0x7F}, size/3+1)[:size]

		var out bytes.Buffer
		require.NoError(t, Encrypt(&out, bytes.NewReader(plain), "secret"))
		enc := out.Bytes()
		require.Len(t, enc, headerSize+size+TagSize)

		salt, iv := enc[:SaltSize], enc[SaltSize:headerSize]
		block, err := aes.NewCipher(DeriveKey("secret", salt))
		require.NoError(t, err)
		aead, err := cipher.NewGCMWithNonceSize(block, IVSize)
		require.NoError(t, err)

		want := aead.Seal(nil, iv, plain, nil)
		assert.Equal(t, want, enc[headerSize:], "size %d", size)
	}
}

func TestEncryptDecryptFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	plain := bytes.Repeat([]byte("CREATE TABLE t (id int);\n"), 10000)
	src := writeTemp(t, dir, "dump.sql", plain)
	enc := filepath.Join(dir, "dump.sql"+Ext)
	dec := filepath.Join(dir, "restored.sql")

	require.NoError(t, EncryptFile(src, enc, "correct horse"))
	require.NoError(t, DecryptFile(enc, dec, "correct horse"))

	got, err := os.ReadFile(dec)
	require.NoError(t, err)
	assert.Equal(t, plain, got)
}

func TestDecryptWrongPassword(t *testing.T) {
	dir := t.TempDir()
	src := writeTemp(t, dir, "dump.sql", []byte("select 1;"))
	enc := filepath.Join(dir, "dump.sql.enc")
	dec := filepath.Join(dir, "out.sql")

	require.NoError(t, EncryptFile(src, enc, "right"))

	err := DecryptFile(enc, dec, "wrong")
	assert.True(t, errors.Is(err, code.ErrorDecryptionFailed))
	assert.Equal(t, code.KindDecryption, code.KindOf(err))
	_, statErr := os.Stat(dec)
	assert.True(t, os.IsNotExist(statErr), "no plaintext may be produced")
}

func TestDecryptTamperedAndTruncated(t *testing.T) {
	dir := t.TempDir()
	src := writeTemp(t, dir, "dump.sql", bytes.Repeat([]byte("x"), 500))
	enc := filepath.Join(dir, "dump.sql.enc")
	require.NoError(t, EncryptFile(src, enc, "pw"))

	data, err := os.ReadFile(enc)
	require.NoError(t, err)
	data[headerSize+10] ^= 0xFF
	tampered := writeTemp(t, dir, "tampered.enc", data)
	assert.True(t, errors.Is(DecryptFile(tampered, filepath.Join(dir, "a"), "pw"), code.ErrorDecryptionFailed))

	short := writeTemp(t, dir, "short.enc", data[:headerSize+TagSize-1])
	assert.True(t, errors.Is(DecryptFile(short, filepath.Join(dir, "b"), "pw"), code.ErrorDecryptionFailed))
}

func TestRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 15
	properties := gopter.NewProperties(parameters)
	dir := t.TempDir()

	properties.Property("decrypt(encrypt(x, p), p) == x", prop.ForAll(
		func(plain []byte, password string) bool {
			src := filepath.Join(dir, "p.bin")
			enc := filepath.Join(dir, "p.enc")
			dec := filepath.Join(dir, "p.dec")
			if err := os.WriteFile(src, plain, 0o600); err != nil {
				return false
			}
			if err := EncryptFile(src, enc, password); err != nil {
				return false
			}
			if err := DecryptFile(enc, dec, password); err != nil {
				return false
			}
			got, err := os.ReadFile(dec)
			return err == nil && bytes.Equal(got, plain)
		},
		gen.SliceOf(gen.UInt8()),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
