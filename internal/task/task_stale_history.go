package task

import (
	"context"
	"time"

	"github.com/haierkeys/fast-db-backup-service/internal/app"
	"github.com/haierkeys/fast-db-backup-service/internal/service"
	"go.uber.org/zap"
)

// StaleHistoryTask 将进程异常退出遗留的 running 记录标记为失败
type StaleHistoryTask struct {
	backups   service.BackupService
	olderThan time.Duration
	logger    *zap.Logger
}

// Name 任务名称
func (t *StaleHistoryTask) Name() string {
	return "StaleBackupHistory"
}

// LoopInterval 执行间隔
func (t *StaleHistoryTask) LoopInterval() time.Duration {
	return 30 * time.Minute
}

// IsStartupRun 是否立即执行一次
func (t *StaleHistoryTask) IsStartupRun() bool {
	return true
}

// Run 执行巡检
func (t *StaleHistoryTask) Run(ctx context.Context) error {
	n, err := t.backups.FailStaleRuns(ctx, t.olderThan)
	if err != nil {
		return err
	}
	if n > 0 {
		t.logger.Warn("task log",
			zap.String("task", t.Name()),
			zap.Int("markedFailed", n))
	}
	return nil
}

// NewStaleHistoryTask 创建巡检任务
func NewStaleHistoryTask(appContainer *app.App) (Task, error) {
	return &StaleHistoryTask{
		backups:   appContainer.BackupService,
		olderThan: appContainer.Config().StaleRunningAfter(),
		logger:    appContainer.Logger(),
	}, nil
}

func init() {
	Register(NewStaleHistoryTask)
}
