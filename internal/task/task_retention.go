package task

import (
	"context"
	"time"

	"github.com/haierkeys/fast-db-backup-service/internal/app"
	"github.com/haierkeys/fast-db-backup-service/internal/service"
	"go.uber.org/zap"
)

// RetentionTask applies retention to every active job. Retention also runs after each
// successful backup; this sweep covers jobs that have not run for a while.
type RetentionTask struct {
	backups service.BackupService
	logger  *zap.Logger
}

// Name 任务名称
func (t *RetentionTask) Name() string {
	return "BackupRetention"
}

// LoopInterval 执行间隔
func (t *RetentionTask) LoopInterval() time.Duration {
	return 6 * time.Hour
}

// IsStartupRun 是否立即执行一次
func (t *RetentionTask) IsStartupRun() bool {
	return false
}

// Run 执行保留策略清理
func (t *RetentionTask) Run(ctx context.Context) error {
	n, err := t.backups.CleanupAllExpired(ctx)
	if err != nil {
		return err
	}
	t.logger.Info("task log",
		zap.String("task", t.Name()),
		zap.Int("deleted", n))
	return nil
}

// NewRetentionTask 创建保留策略任务
func NewRetentionTask(appContainer *app.App) (Task, error) {
	return &RetentionTask{
		backups: appContainer.BackupService,
		logger:  appContainer.Logger(),
	}, nil
}

func init() {
	Register(NewRetentionTask)
}
