package archive

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGzipRoundTrip(t *testing.T) {
	dir := t.TempDir()
	plain := bytes.Repeat([]byte("INSERT INTO t VALUES (1, 'abc');\n"), 5000)
	src := filepath.Join(dir, "dump.sql")
	require.NoError(t, os.WriteFile(src, plain, 0o600))

	gz := src + Ext
	n, err := GzipFile(context.Background(), src, gz)
	require.NoError(t, err)
	assert.Greater(t, n, int64(0))
	assert.Less(t, n, int64(len(plain)))
	assert.True(t, IsGzip(gz))

	require.NoError(t, CheckGzip(context.Background(), gz))

	out := filepath.Join(dir, "restored.sql")
	require.NoError(t, GunzipFile(context.Background(), gz, out))
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, plain, got)
}

func TestCheckGzipDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "dump.sql")
	require.NoError(t, os.WriteFile(src, bytes.Repeat([]byte("abcdef"), 1000), 0o600))
	gz := src + Ext
	_, err := GzipFile(context.Background(), src, gz)
	require.NoError(t, err)

	data, err := os.ReadFile(gz)
	require.NoError(t, err)
	// trailer holds CRC32 and size
	data[len(data)-5] ^= 0xFF
	require.NoError(t, os.WriteFile(gz, data, 0o600))
	assert.Error(t, CheckGzip(context.Background(), gz))

	notGzip := filepath.Join(dir, "plain.gz")
	require.NoError(t, os.WriteFile(notGzip, []byte("not gzip"), 0o600))
	assert.Error(t, CheckGzip(context.Background(), notGzip))
}

func TestGzipFileCancelled(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "dump.sql")
	require.NoError(t, os.WriteFile(src, []byte("select 1;"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dst := src + Ext
	_, err := GzipFile(ctx, src, dst)
	assert.Error(t, err)
	_, statErr := os.Stat(dst)
	assert.True(t, os.IsNotExist(statErr))
}

func TestSHA256File(t *testing.T) {
	p := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(p, []byte("hello"), 0o600))
	sum := sha256.Sum256([]byte("hello"))

	got, err := SHA256File(p)
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(sum[:]), got)
}
