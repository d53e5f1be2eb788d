package task

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/haierkeys/fast-db-backup-service/internal/app"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// TempCleanupTask 清理备份临时目录中残留的下载、解密与解压文件
type TempCleanupTask struct {
	dir    string
	maxAge time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// Name 任务名称
func (t *TempCleanupTask) Name() string {
	return "BackupTempCleanup"
}

// LoopInterval 执行间隔
func (t *TempCleanupTask) LoopInterval() time.Duration {
	return time.Hour
}

// IsStartupRun 是否立即执行一次
func (t *TempCleanupTask) IsStartupRun() bool {
	return true
}

// Run removes entries whose modification time is older than maxAge.
// Younger entries may belong to a restore or verification in progress.
func (t *TempCleanupTask) Run(ctx context.Context) error {
	entries, err := os.ReadDir(t.dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "read temp dir")
	}

	cutoff := t.now().Add(-t.maxAge)
	removed := 0
	for _, e := range entries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		p := filepath.Join(t.dir, e.Name())
		if err := os.RemoveAll(p); err != nil {
			t.logger.Warn("remove temp file failed", zap.String("path", p), zap.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		t.logger.Info("task log",
			zap.String("task", t.Name()),
			zap.String("path", t.dir),
			zap.Int("removed", removed))
	}
	return nil
}

// NewTempCleanupTask 创建临时文件清理任务
func NewTempCleanupTask(appContainer *app.App) (Task, error) {
	return &TempCleanupTask{
		dir:    appContainer.ServiceConfig().Backup.TempDir(),
		maxAge: appContainer.Config().TempMaxAge(),
		logger: appContainer.Logger(),
		now:    time.Now,
	}, nil
}

func init() {
	Register(NewTempCleanupTask)
}
