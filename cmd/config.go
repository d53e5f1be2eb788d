package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// credentialKeyPlaceholder is replaced with a random key when the default config is written.
const credentialKeyPlaceholder = "fast-db-backup-Credential-Key"

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// resolveConfig returns the config file to use. When none exists the embedded default
// is written to config/config.yaml with a freshly generated credential key.
// resolveConfig 查找配置文件，不存在时写入内置默认配置
func resolveConfig(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	for _, p := range []string{"config/config-dev.yaml", "config.yaml", "config/config.yaml"} {
		if fileExists(p) {
			return p, nil
		}
	}

	bootstrapLogger.Warn("config file not found, creating default config")
	path = "config/config.yaml"
	content := strings.Replace(configDefault, credentialKeyPlaceholder, strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", ""), 1)

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", errors.Wrap(err, "config file auto create")
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return "", errors.Wrap(err, "config file auto create")
	}
	bootstrapLogger.Info("config file auto create successfully", zap.String("path", path))
	return path, nil
}
