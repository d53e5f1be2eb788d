package service

import (
	"context"
	"errors"
	"testing"

	"github.com/haierkeys/fast-db-backup-service/internal/domain"
	"github.com/haierkeys/fast-db-backup-service/pkg/code"
	"github.com/haierkeys/fast-db-backup-service/pkg/secret"
	"github.com/haierkeys/fast-db-backup-service/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCipher(t *testing.T) *secret.Cipher {
	t.Helper()
	c, err := secret.New("test-credential-key")
	require.NoError(t, err)
	return c
}

func TestCloudStorageSecretsEncryptedAndMapped(t *testing.T) {
	ctx := context.Background()
	repo := &mockCloudStorageRepo{configs: map[int64]*domain.CloudStorageConfig{}}
	var got *storage.Config
	factory := func(ctx context.Context, cfg *storage.Config, logger *zap.Logger) (storage.Storager, error) {
		got = cfg
		return newMockStorage(), nil
	}
	sc := &ServiceConfig{
		Backup:      BackupServiceConfig{UploadRateLimit: 1024},
		GoogleDrive: GoogleDriveConfig{ClientID: "cid", ClientSecret: "csecret"},
	}
	svc := NewCloudStorageService(repo, newTestCipher(t), factory, sc, zap.NewNop())

	created, err := svc.Create(ctx, &domain.CloudStorageConfig{
		UserID:          7,
		Name:            "primary",
		StorageType:     storage.S3,
		Bucket:          "backups",
		Region:          "eu-central-1",
		PathPrefix:      "prod",
		AccessKeyID:     "AKIA",
		SecretAccessKey: "s3cr3t",
		IsDefault:       true,
	})
	require.NoError(t, err)
	assert.Empty(t, created.SecretAccessKey, "secrets are never returned")
	assert.Equal(t, []int64{created.ID}, repo.setDef)

	stored := repo.configs[created.ID]
	assert.True(t, secret.IsEncrypted(stored.SecretAccessKey))
	assert.NotContains(t, stored.SecretAccessKey, "s3cr3t")

	_, err = svc.Client(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "s3cr3t", got.AccessKeySecret)
	assert.Equal(t, "backups", got.BucketName)
	assert.Equal(t, "prod", got.CustomPath)
	assert.Equal(t, "cid", got.ClientID)
	assert.Equal(t, int64(1024), got.UploadRateLimit)

	res, err := svc.Test(ctx, 7, created.ID)
	require.NoError(t, err)
	assert.True(t, res.Success)

	_, err = svc.Test(ctx, 8, created.ID)
	assert.True(t, errors.Is(err, code.ErrorAccessDenied))
}

func TestCloudStorageUpdateKeepsSecret(t *testing.T) {
	ctx := context.Background()
	repo := &mockCloudStorageRepo{configs: map[int64]*domain.CloudStorageConfig{}}
	svc := NewCloudStorageService(repo, newTestCipher(t), nil, &ServiceConfig{}, zap.NewNop())

	created, err := svc.Create(ctx, &domain.CloudStorageConfig{UserID: 7, Name: "ftp", StorageType: storage.FTP, Host: "ftp.local", Username: "u", Password: "pw"})
	require.NoError(t, err)
	before := repo.configs[created.ID].Password

	created.Name = "ftp2"
	_, err = svc.Update(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, "ftp2", repo.configs[created.ID].Name)
	assert.Equal(t, before, repo.configs[created.ID].Password)
}

func TestCloudStorageValidation(t *testing.T) {
	svc := NewCloudStorageService(&mockCloudStorageRepo{configs: map[int64]*domain.CloudStorageConfig{}}, newTestCipher(t), nil, &ServiceConfig{}, zap.NewNop())
	ctx := context.Background()

	_, err := svc.Create(ctx, &domain.CloudStorageConfig{Name: "x", StorageType: storage.LOCAL})
	assert.True(t, errors.Is(err, code.ErrorInvalidStorageType))

	_, err = svc.Create(ctx, &domain.CloudStorageConfig{Name: "x", StorageType: storage.S3, AccessKeyID: "a"})
	assert.True(t, errors.Is(err, code.ErrorInvalidParams))

	_, err = svc.Create(ctx, &domain.CloudStorageConfig{Name: "x", StorageType: storage.GoogleDrive})
	assert.True(t, errors.Is(err, code.ErrorInvalidParams))

	_, err = svc.Client(ctx, 404)
	assert.True(t, errors.Is(err, code.ErrorCloudStorageNotFound))
}
