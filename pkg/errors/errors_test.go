package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/haierkeys/fast-db-backup-service/pkg/code"
	"github.com/stretchr/testify/assert"
)

func TestAppErrorChain(t *testing.T) {
	cause := fmt.Errorf("upload: %w", code.ErrorStorageUploadFailed)
	err := NewAppError(code.ErrorBackupFailed, cause)

	assert.True(t, errors.Is(err, code.ErrorBackupFailed))
	assert.True(t, errors.Is(err, code.ErrorStorageUploadFailed))
	assert.Equal(t, code.KindConnector, code.KindOf(err))
	assert.Contains(t, err.Error(), "Backup failed")

	got := GetAppError(fmt.Errorf("outer: %w", err))
	if assert.NotNil(t, got) {
		assert.Equal(t, code.ErrorBackupFailed.Code(), got.Code)
	}
}

func TestIsAppError(t *testing.T) {
	assert.False(t, IsAppError(errors.New("plain")))
	assert.True(t, IsAppError(NewAppError(code.ErrorServerInternal, nil)))
}
