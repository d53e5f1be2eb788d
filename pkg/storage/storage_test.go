package storage_test

import (
	"context"
	"errors"
	"testing"

	"github.com/haierkeys/fast-db-backup-service/pkg/code"
	"github.com/haierkeys/fast-db-backup-service/pkg/storage"
	"github.com/haierkeys/fast-db-backup-service/pkg/storage/aws_s3"
	"github.com/haierkeys/fast-db-backup-service/pkg/storage/ftp"
	"github.com/haierkeys/fast-db-backup-service/pkg/storage/remote"
	"github.com/haierkeys/fast-db-backup-service/pkg/storage/webdav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_S3(t *testing.T) {
	cfg := &storage.Config{
		Type:            storage.S3,
		Region:          "eu-central-1",
		BucketName:      "backups",
		Endpoint:        "http://127.0.0.1:9000",
		AccessKeyID:     "minio",
		AccessKeySecret: "minio123",
		UsePathStyle:    true,
	}

	client, err := storage.NewClient(context.Background(), cfg, nil)
	require.NoError(t, err)
	s3c, ok := client.(*aws_s3.S3)
	require.True(t, ok, "client is not *aws_s3.S3")
	assert.Equal(t, "backups", s3c.Config.BucketName)

	again, err := storage.NewClient(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Same(t, s3c, again, "identical configs share a client")
}

func TestNewClient_WebDAVAndFTP(t *testing.T) {
	c, err := storage.NewClient(context.Background(), &storage.Config{Type: storage.WebDAV, Endpoint: "http://dav.local/remote.php"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &webdav.WebDAV{}, c)

	c, err = storage.NewClient(context.Background(), &storage.Config{Type: storage.FTP, Host: "ftp.local"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &ftp.FTP{}, c)
}

func TestNewClient_GoogleDriveRequiresToken(t *testing.T) {
	_, err := storage.NewClient(context.Background(), &storage.Config{Type: storage.GoogleDrive, ClientID: "id"}, nil)
	assert.Error(t, err)
}

func TestNewClient_Invalid(t *testing.T) {
	_, err := storage.NewClient(context.Background(), &storage.Config{Type: "invalid"}, nil)
	assert.True(t, errors.Is(err, code.ErrorInvalidStorageType))
	assert.Equal(t, code.KindValidation, code.KindOf(err))

	_, err = storage.NewClient(context.Background(), nil, nil)
	assert.Error(t, err)

	_, err = storage.NewClient(context.Background(), &storage.Config{Type: storage.LOCAL}, nil)
	assert.Error(t, err, "local storage has no connector")
}

type failingStorage struct {
	storage.Storager
	err error
}

func (f failingStorage) TestConnection(context.Context) error { return f.err }

func TestCheck(t *testing.T) {
	res := storage.Check(context.Background(), failingStorage{err: errors.New("403 forbidden")})
	assert.Equal(t, &remote.ConnectionResult{Success: false, Message: "403 forbidden"}, res)

	res = storage.Check(context.Background(), failingStorage{})
	assert.True(t, res.Success)
}

func TestIsCloud(t *testing.T) {
	assert.False(t, storage.IsCloud(storage.LOCAL))
	for _, typ := range []string{storage.S3, storage.GoogleDrive, storage.WebDAV, storage.OSS, storage.FTP} {
		assert.True(t, storage.IsCloud(typ), typ)
		assert.True(t, storage.StorageTypeMap[typ], typ)
	}
}
