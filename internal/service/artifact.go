package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/haierkeys/fast-db-backup-service/internal/domain"
	"github.com/haierkeys/fast-db-backup-service/pkg/code"
	apperrors "github.com/haierkeys/fast-db-backup-service/pkg/errors"
	"github.com/haierkeys/fast-db-backup-service/pkg/storage"
)

// tempFiles removes its files in reverse creation order.
type tempFiles []string

func (t *tempFiles) add(path string) string {
	*t = append(*t, path)
	return path
}

func (t tempFiles) cleanup() {
	for i := len(t) - 1; i >= 0; i-- {
		_ = os.Remove(t[i])
	}
}

// tempPath returns <temp>/<uuid>_<name> so concurrent restores never collide.
func tempPath(dir, name string) string {
	return filepath.Join(dir, uuid.NewString()+"_"+filepath.Base(name))
}

// localArtifact makes the history's artifact available on local disk. Cloud artifacts
// are downloaded into dir and registered in temps.
func localArtifact(ctx context.Context, storages StorageClientProvider, dir string, h *domain.BackupHistory, temps *tempFiles) (string, error) {
	if h.FilePath == "" {
		return "", code.ErrorBackupFileNotFound.WithDetails("history has no artifact")
	}
	if !storage.IsCloud(h.StorageType) {
		if _, err := os.Stat(h.FilePath); err != nil {
			if os.IsNotExist(err) {
				return "", code.ErrorBackupFileNotFound.WithDetails(h.FilePath)
			}
			return "", code.ErrorFileSystem.WithDetails(err.Error())
		}
		return h.FilePath, nil
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", code.ErrorFileSystem.WithDetails(err.Error())
	}
	client, err := storages.Client(ctx, h.CloudStorageID)
	if err != nil {
		return "", err
	}
	dst := temps.add(tempPath(dir, h.FileName))
	if _, err := client.Download(ctx, h.FilePath, dst); err != nil {
		return "", apperrors.NewAppError(code.ErrorStorageDownload, err)
	}
	return dst, nil
}

func trimExt(name, ext string) string {
	return strings.TrimSuffix(name, ext)
}
