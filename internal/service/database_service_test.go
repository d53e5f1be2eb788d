package service

import (
	"context"
	"errors"
	"testing"

	"github.com/haierkeys/fast-db-backup-service/internal/domain"
	"github.com/haierkeys/fast-db-backup-service/pkg/code"
	"github.com/haierkeys/fast-db-backup-service/pkg/database/dbcore"
	"github.com/haierkeys/fast-db-backup-service/pkg/secret"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDatabaseServicePasswordLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := &mockDatabaseRepo{profiles: map[int64]*domain.DatabaseProfile{}}
	conn := &mockConnector{dump: []byte("12345")}
	cfg := &BackupServiceConfig{}
	svc := NewDatabaseService(repo, newTestCipher(t), conn.factory(), cfg, zap.NewNop())

	created, err := svc.Create(ctx, &domain.DatabaseProfile{
		UserID:   7,
		Name:     "app",
		Type:     "postgresql",
		Host:     "db.internal",
		Port:     5432,
		Database: "app",
		Username: "backup",
		Password: "hunter2",
	})
	require.NoError(t, err)
	assert.Empty(t, created.Password)
	assert.True(t, secret.IsEncrypted(repo.profiles[created.ID].Password))

	resolved, err := svc.GetDatabaseConfig(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", resolved.Password)
	assert.Equal(t, "db.internal", resolved.Host)

	created.Password = ""
	created.Name = "renamed"
	_, err = svc.Update(ctx, created)
	require.NoError(t, err)
	resolved, err = svc.GetDatabaseConfig(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", resolved.Password, "empty password on update keeps the stored one")

	size, err := svc.GetSize(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)

	res, err := svc.TestConnection(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestDatabaseServiceValidation(t *testing.T) {
	ctx := context.Background()
	repo := &mockDatabaseRepo{profiles: map[int64]*domain.DatabaseProfile{
		1: {ID: 1, UserID: 7, Type: "mysql"},
	}}
	svc := NewDatabaseService(repo, newTestCipher(t), nil, &BackupServiceConfig{}, zap.NewNop())

	_, err := svc.Create(ctx, &domain.DatabaseProfile{Type: "oracle", Host: "h", Username: "u", Database: "d"})
	assert.True(t, errors.Is(err, code.ErrorInvalidDatabaseType))

	_, err = svc.Create(ctx, &domain.DatabaseProfile{Type: "mysql", Host: "h; rm -rf /", Username: "u", Database: "d"})
	var invalid *dbcore.InvalidInputError
	assert.True(t, errors.As(err, &invalid))
	assert.Equal(t, code.KindValidation, code.KindOf(err))

	_, err = svc.Get(ctx, 8, 1)
	assert.True(t, errors.Is(err, code.ErrorAccessDenied))

	_, err = svc.GetDatabaseConfig(ctx, 99)
	assert.True(t, errors.Is(err, code.ErrorDatabaseNotFound))
}
