package remote

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinKey(t *testing.T) {
	assert.Equal(t, "a.sql", JoinKey("", "a.sql"))
	assert.Equal(t, "backups/db/a.sql", JoinKey("/backups/db/", "a.sql"))
}

func TestOpenAndWriteFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.bin")
	data := bytes.Repeat([]byte{1, 2, 3}, 1000)
	require.NoError(t, os.WriteFile(src, data, 0o600))

	s, err := Open(src, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), s.Size)
	assert.Equal(t, "in.bin", s.Name)

	dst := filepath.Join(dir, "nested", "out.bin")
	n, err := WriteFile(dst, s)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.Equal(t, int64(len(data)), n)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestOpenThrottled(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.bin")
	require.NoError(t, os.WriteFile(src, make([]byte, 4096), 0o600))

	s, err := Open(src, 1<<20)
	require.NoError(t, err)
	defer s.Close()

	start := time.Now()
	n, err := io.Copy(io.Discard, s)
	require.NoError(t, err)
	assert.Equal(t, int64(4096), n)
	assert.Less(t, time.Since(start), 2*time.Second)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func TestWriteFileRemovesPartial(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "out.bin")
	_, err := WriteFile(dst, failingReader{})
	assert.Error(t, err)
	_, statErr := os.Stat(dst)
	assert.True(t, os.IsNotExist(statErr))
}
