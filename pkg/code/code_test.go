package code

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithDetailsDoesNotMutateRegisteredCode(t *testing.T) {
	c := ErrorInvalidInput.WithDetails("host contains illegal characters")

	assert.True(t, c.HaveDetails())
	assert.False(t, ErrorInvalidInput.HaveDetails())
	assert.Equal(t, ErrorInvalidInput.Code(), c.Code())
	assert.Contains(t, c.Error(), "host contains illegal characters")
}

func TestIsMatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("run job: %w", ErrorBackupAlreadyRunning.WithDetails("job 7"))

	assert.True(t, errors.Is(wrapped, ErrorBackupAlreadyRunning))
	assert.False(t, errors.Is(wrapped, ErrorBackupFailed))
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindInternal},
		{"plain", errors.New("boom"), KindInternal},
		{"not found", ErrorBackupJobNotFound, KindNotFound},
		{"wrapped decryption", fmt.Errorf("restore: %w", ErrorDecryptionFailed), KindDecryption},
		{"validation", ErrorInvalidStorageType, KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestDecryptionMessageIsGeneric(t *testing.T) {
	assert.Equal(t, "decryption failed - wrong password or corrupted file", ErrorDecryptionFailed.Error())
}

func TestSetGlobalDefaultLang(t *testing.T) {
	defer func() { _ = SetGlobalDefaultLang("en") }()

	assert.NoError(t, SetGlobalDefaultLang("zh_cn"))
	assert.Equal(t, "备份失败", ErrorBackupFailed.Msg())

	assert.Error(t, SetGlobalDefaultLang("fr"))
	assert.Equal(t, "en", GetGlobalDefaultLang())
}
