package webdav

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	xwebdav "golang.org/x/net/webdav"
)

func newTestServer(t *testing.T) *WebDAV {
	t.Helper()
	srv := httptest.NewServer(&xwebdav.Handler{
		FileSystem: xwebdav.NewMemFS(),
		LockSystem: xwebdav.NewMemLS(),
	})
	t.Cleanup(srv.Close)

	client, err := NewClient(&Config{Endpoint: srv.URL, CustomPath: "db/backups"}, nil)
	require.NoError(t, err)
	return client
}

func TestWebDAVUploadListDownloadDelete(t *testing.T) {
	ctx := context.Background()
	w := newTestServer(t)
	require.NoError(t, w.TestConnection(ctx))

	dir := t.TempDir()
	content := []byte("CREATE TABLE t (id int);\n")
	src := filepath.Join(dir, "app_20260310.sql.gz")
	require.NoError(t, os.WriteFile(src, content, 0o600))

	up, err := w.Upload(ctx, src, "app_20260310.sql.gz")
	require.NoError(t, err)
	assert.Equal(t, "/db/backups/app_20260310.sql.gz", up.Key)
	assert.Equal(t, int64(len(content)), up.FileSize)

	objects, err := w.List(ctx)
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, "app_20260310.sql.gz", objects[0].Name)
	assert.Equal(t, up.Key, objects[0].Key)
	assert.Equal(t, int64(len(content)), objects[0].Size)

	dst := filepath.Join(dir, "restore", "download.sql.gz")
	down, err := w.Download(ctx, up.Key, dst)
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), down.FileSize)
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	require.NoError(t, w.Delete(ctx, up.Key))
	objects, err = w.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, objects)
}

func TestWebDAVListMissingDirIsEmpty(t *testing.T) {
	w := newTestServer(t)

	objects, err := w.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, objects)
}

func TestWebDAVDownloadMissing(t *testing.T) {
	w := newTestServer(t)

	_, err := w.Download(context.Background(), "/db/backups/nope.sql", filepath.Join(t.TempDir(), "out"))
	assert.Error(t, err)
}

func TestNewClientRequiresEndpoint(t *testing.T) {
	_, err := NewClient(&Config{}, nil)
	assert.Error(t, err)
}
