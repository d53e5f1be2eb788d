package service

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/haierkeys/fast-db-backup-service/internal/domain"
	"github.com/haierkeys/fast-db-backup-service/internal/metrics"
	"github.com/haierkeys/fast-db-backup-service/pkg/code"
	"github.com/haierkeys/fast-db-backup-service/pkg/logger"
	"github.com/haierkeys/fast-db-backup-service/pkg/schedule"
	"github.com/haierkeys/fast-db-backup-service/pkg/workerpool"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// BackupExecutor runs one backup for a job. Implemented by BackupService.
type BackupExecutor interface {
	ExecuteBackup(ctx context.Context, jobID int64) (*domain.BackupHistory, error)
}

// SchedulerService owns the live timers of every active, non-manual job.
// Fixed schedules are cron entries; advanced schedules are a once-per-minute
// checker that compares now with the persisted NextRunAt.
// SchedulerService 调度引擎，持有所有启用任务的定时器
type SchedulerService struct {
	cron     *cron.Cron
	calc     *schedule.Calculator
	jobRepo  domain.BackupJobRepository
	pool     *workerpool.Pool
	executor BackupExecutor
	metrics  *metrics.Metrics
	logger   *zap.Logger

	mu      sync.Mutex
	entries map[int64]cron.EntryID

	now func() time.Time
}

// NewSchedulerService pool runs triggered backups; the executor is attached later
// through SetExecutor because the backup pipeline depends on the scheduler.
func NewSchedulerService(calc *schedule.Calculator, jobRepo domain.BackupJobRepository, pool *workerpool.Pool, m *metrics.Metrics, log *zap.Logger) *SchedulerService {
	return &SchedulerService{
		cron: cron.New(
			cron.WithLocation(calc.Location()),
			cron.WithParser(schedule.Parser()),
			cron.WithLogger(cronLogger{log.Sugar()}),
		),
		calc:    calc,
		jobRepo: jobRepo,
		pool:    pool,
		metrics: m,
		logger:  log,
		entries: make(map[int64]cron.EntryID),
		now:     time.Now,
	}
}

// SetExecutor 设置备份执行器
func (s *SchedulerService) SetExecutor(e BackupExecutor) {
	s.executor = e
}

// Calculator 返回调度计算器
func (s *SchedulerService) Calculator() *schedule.Calculator {
	return s.calc
}

// GetNextRunTime returns the next run strictly after from, or nil for manual jobs
// and schedules that cannot be computed. Failures are logged, never returned.
// GetNextRunTime 计算下次运行时间，失败时返回 nil
func (s *SchedulerService) GetNextRunTime(job *domain.BackupJob, from time.Time) *time.Time {
	next, err := s.calc.Next(job.ScheduleType, job.CronExpression, job.AdvancedScheduleConfig, job.LastRunAt, from)
	if err != nil {
		if !errors.Is(err, schedule.ErrManual) {
			s.logger.Warn("compute next run time failed",
				zap.Int64(logger.FieldJobID, job.ID),
				zap.String("scheduleType", job.ScheduleType),
				zap.Error(err))
		}
		return nil
	}
	return &next
}

// StartScheduledJob registers (or re-registers) the timer for job and persists its NextRunAt.
// Manual and inactive jobs are only unregistered.
func (s *SchedulerService) StartScheduledJob(ctx context.Context, job *domain.BackupJob) error {
	s.StopScheduledJob(job.ID)
	if !job.IsActive || job.ScheduleType == schedule.TypeManual {
		return nil
	}

	var sched cron.Schedule
	switch {
	case job.ScheduleType == schedule.TypeAdvanced:
		if err := schedule.ValidateAdvancedConfig(job.AdvancedScheduleConfig); err != nil {
			return err
		}
		sched = cron.Every(time.Minute)
	case schedule.IsFixed(job.ScheduleType):
		expr, err := schedule.ResolveCronExpression(job.ScheduleType, job.CronExpression)
		if err != nil {
			return err
		}
		sched, err = schedule.Parser().Parse(expr)
		if err != nil {
			return code.ErrorInvalidCronExpression.WithDetails(err.Error())
		}
	default:
		return code.ErrorInvalidScheduleConfig.WithDetails("unknown schedule type " + job.ScheduleType)
	}

	jobID := job.ID
	var fn func()
	if job.ScheduleType == schedule.TypeAdvanced {
		fn = func() { s.checkAdvanced(jobID) }
	} else {
		fn = func() { s.trigger(jobID) }
	}

	s.mu.Lock()
	s.entries[jobID] = s.cron.Schedule(sched, cron.FuncJob(fn))
	n := len(s.entries)
	s.mu.Unlock()
	s.metrics.SetScheduledJobs(n)

	job.NextRunAt = s.GetNextRunTime(job, s.now())
	if err := s.jobRepo.UpdateRunTimes(ctx, jobID, nil, job.NextRunAt); err != nil {
		return code.ErrorDBQuery.WithDetails(err.Error())
	}
	s.logger.Info("backup job scheduled",
		zap.Int64(logger.FieldJobID, jobID),
		zap.String("scheduleType", job.ScheduleType),
		zap.Timep("nextRunAt", job.NextRunAt))
	return nil
}

// StopScheduledJob 停止任务定时器，任务未注册时无操作
func (s *SchedulerService) StopScheduledJob(jobID int64) {
	s.mu.Lock()
	id, ok := s.entries[jobID]
	if ok {
		delete(s.entries, jobID)
	}
	n := len(s.entries)
	s.mu.Unlock()

	if ok {
		s.cron.Remove(id)
		s.metrics.SetScheduledJobs(n)
	}
}

// RestartScheduledJob reloads the job and re-registers its timer. A deleted job is unregistered.
func (s *SchedulerService) RestartScheduledJob(ctx context.Context, jobID int64) error {
	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return code.ErrorDBQuery.WithDetails(err.Error())
	}
	if job == nil {
		s.StopScheduledJob(jobID)
		return nil
	}
	return s.StartScheduledJob(ctx, job)
}

// InitializeScheduledJobs registers every active job. A job that fails to register is
// logged and skipped.
// InitializeScheduledJobs 启动时注册所有启用的任务
func (s *SchedulerService) InitializeScheduledJobs(ctx context.Context) (int, error) {
	jobs, err := s.jobRepo.ListActive(ctx)
	if err != nil {
		return 0, code.ErrorDBQuery.WithDetails(err.Error())
	}
	started := 0
	for _, job := range jobs {
		if err := s.StartScheduledJob(ctx, job); err != nil {
			s.logger.Error("schedule backup job failed", zap.Int64(logger.FieldJobID, job.ID), zap.Error(err))
			continue
		}
		if job.ScheduleType != schedule.TypeManual {
			started++
		}
	}
	s.logger.Info("scheduled jobs initialized", zap.Int("total", len(jobs)), zap.Int("scheduled", started))
	return started, nil
}

// UpdateNextRunTime persists LastRunAt and a freshly computed NextRunAt after a completed run.
func (s *SchedulerService) UpdateNextRunTime(ctx context.Context, job *domain.BackupJob) error {
	job.NextRunAt = nil
	if job.IsActive {
		job.NextRunAt = s.GetNextRunTime(job, s.now())
	}
	return s.jobRepo.UpdateRunTimes(ctx, job.ID, job.LastRunAt, job.NextRunAt)
}

// IsScheduled 任务是否已注册定时器
func (s *SchedulerService) IsScheduled(jobID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[jobID]
	return ok
}

// Start 启动调度
func (s *SchedulerService) Start() {
	s.cron.Start()
}

// Shutdown stops the timers, then waits for triggered backups until ctx is done.
func (s *SchedulerService) Shutdown(ctx context.Context) error {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if s.pool != nil {
		return s.pool.Shutdown(ctx)
	}
	return nil
}

// checkAdvanced is the per-minute tick of an advanced job. The following NextRunAt is
// persisted before the backup is triggered so a slow run cannot fire twice.
func (s *SchedulerService) checkAdvanced(jobID int64) {
	ctx := context.Background()
	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		s.logger.Warn("load scheduled job failed", zap.Int64(logger.FieldJobID, jobID), zap.Error(err))
		return
	}
	if job == nil || !job.IsActive || job.ScheduleType != schedule.TypeAdvanced {
		s.StopScheduledJob(jobID)
		return
	}

	now := s.now()
	if job.NextRunAt == nil {
		next := s.GetNextRunTime(job, now)
		if next != nil {
			if err := s.jobRepo.UpdateRunTimes(ctx, jobID, nil, next); err != nil {
				s.logger.Warn("persist next run time failed", zap.Int64(logger.FieldJobID, jobID), zap.Error(err))
			}
		}
		return
	}
	if now.Before(*job.NextRunAt) {
		return
	}

	job.LastRunAt = &now
	next := s.GetNextRunTime(job, now)
	if err := s.jobRepo.UpdateRunTimes(ctx, jobID, nil, next); err != nil {
		s.logger.Warn("persist next run time failed", zap.Int64(logger.FieldJobID, jobID), zap.Error(err))
		return
	}
	s.trigger(jobID)
}

func (s *SchedulerService) trigger(jobID int64) {
	if s.executor == nil {
		s.logger.Error("backup executor not set", zap.Int64(logger.FieldJobID, jobID))
		return
	}
	run := func(ctx context.Context) error {
		_, err := s.executor.ExecuteBackup(ctx, jobID)
		if errors.Is(err, code.ErrorBackupAlreadyRunning) {
			s.logger.Info("scheduled backup skipped, previous run still in progress", zap.Int64(logger.FieldJobID, jobID))
			return nil
		}
		return err
	}

	if s.pool == nil {
		go func() { _ = run(context.Background()) }()
		return
	}
	err := s.pool.Submit(workerpool.Task{Name: "backup job_" + strconv.FormatInt(jobID, 10), Run: run})
	if err != nil {
		s.logger.Warn("scheduled backup dropped", zap.Int64(logger.FieldJobID, jobID), zap.Error(err))
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
