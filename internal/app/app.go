// Package app 提供应用容器，封装所有依赖和服务
package app

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/haierkeys/fast-db-backup-service/internal/dao"
	"github.com/haierkeys/fast-db-backup-service/internal/domain"
	"github.com/haierkeys/fast-db-backup-service/internal/metrics"
	"github.com/haierkeys/fast-db-backup-service/internal/service"
	"github.com/haierkeys/fast-db-backup-service/pkg/lock"
	"github.com/haierkeys/fast-db-backup-service/pkg/schedule"
	"github.com/haierkeys/fast-db-backup-service/pkg/secret"
	"github.com/haierkeys/fast-db-backup-service/pkg/workerpool"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultShutdownTimeout 默认关闭超时时间
const DefaultShutdownTimeout = 30 * time.Second

// App 应用容器，封装所有依赖和服务
type App struct {
	// 基础设施（注入的依赖）
	config    *AppConfig
	svcConfig *service.ServiceConfig
	logger    *zap.Logger
	DB        *gorm.DB
	Dao       *dao.Dao
	redis     *redis.Client

	registry   *prometheus.Registry
	metrics    *metrics.Metrics
	workerPool *workerpool.Pool
	guard      *service.ExecutionGuard

	// Repository 层
	DatabaseRepo     domain.DatabaseRepository
	JobRepo          domain.BackupJobRepository
	HistoryRepo      domain.BackupHistoryRepository
	CloudStorageRepo domain.CloudStorageRepository

	// Service 层
	DatabaseService     service.DatabaseService
	CloudStorageService service.CloudStorageService
	SchedulerService    *service.SchedulerService
	JobService          service.JobService
	BackupService       service.BackupService
	RestoreService      service.RestoreService
	VerifyService       service.VerifyService

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

// NewApp 创建应用容器实例
// 初始化所有依赖并进行依赖注入
// cfg: 应用配置（必须）
// logger: zap 日志器（必须）
// db: 元数据库连接（必须）
func NewApp(cfg *AppConfig, logger *zap.Logger, db *gorm.DB) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}

	svcConfig, err := cfg.ServiceConfig()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(svcConfig.Backup.TempDir(), 0o750); err != nil {
		return nil, fmt.Errorf("create backup temp dir: %w", err)
	}

	cipher, err := secret.New(cfg.Security.CredentialKey)
	if err != nil {
		return nil, fmt.Errorf("credential key: %w", err)
	}
	calc, err := schedule.NewCalculator(svcConfig.Backup.Timezone)
	if err != nil {
		return nil, err
	}

	a := &App{
		config:     cfg,
		svcConfig:  svcConfig,
		logger:     logger,
		DB:         db,
		Dao:        dao.New(db),
		shutdownCh: make(chan struct{}),
	}

	// 每个容器独立的指标注册表，配置热重载时不会重复注册
	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.registry)

	// 多实例部署时启用 Redis 分布式锁，连接失败则退化为进程内互斥
	var locker lock.Locker
	if cfg.Redis.IsEnable {
		client, err := lock.NewRedisClient(context.Background(), lock.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.Warn("redis unavailable, backup exclusion is process local", zap.Error(err))
		} else {
			a.redis = client
			locker = lock.NewRedisLocker(client, cfg.Redis.Prefix)
		}
	}
	a.guard = service.NewExecutionGuard(locker, svcConfig.Backup.LockTTL, logger)

	// 初始化 Worker Pool
	a.workerPool = workerpool.New(cfg.WorkerPool, logger)

	// 初始化 Repository 层
	a.DatabaseRepo = dao.NewDatabaseRepository(a.Dao)
	a.JobRepo = dao.NewBackupJobRepository(a.Dao)
	a.HistoryRepo = dao.NewBackupHistoryRepository(a.Dao)
	a.CloudStorageRepo = dao.NewCloudStorageRepository(a.Dao)

	// 初始化 Service 层（依赖注入）
	a.DatabaseService = service.NewDatabaseService(a.DatabaseRepo, cipher, nil, &svcConfig.Backup, logger)
	a.CloudStorageService = service.NewCloudStorageService(a.CloudStorageRepo, cipher, nil, svcConfig, logger)
	a.SchedulerService = service.NewSchedulerService(calc, a.JobRepo, a.workerPool, a.metrics, logger)
	a.JobService = service.NewJobService(a.JobRepo, a.DatabaseRepo, a.CloudStorageRepo, a.SchedulerService, logger)
	a.BackupService = service.NewBackupService(
		a.JobRepo,
		a.HistoryRepo,
		a.DatabaseService,
		a.CloudStorageService,
		nil,
		a.SchedulerService,
		a.guard,
		service.NewNotifier(cfg.Mail, logger),
		a.metrics,
		&svcConfig.Backup,
		logger,
	)
	a.SchedulerService.SetExecutor(a.BackupService)
	a.RestoreService = service.NewRestoreService(a.JobRepo, a.HistoryRepo, a.DatabaseService, a.CloudStorageService, nil, a.metrics, &svcConfig.Backup, logger)
	a.VerifyService = service.NewVerifyService(a.HistoryRepo, a.CloudStorageService, a.metrics, &svcConfig.Backup, logger)

	logger.Info("App container initialized successfully",
		zap.String("backupRoot", svcConfig.Backup.RootDir),
		zap.String("timezone", calc.Location().String()),
		zap.Int("workerPoolMaxWorkers", cfg.WorkerPool.MaxWorkers),
		zap.Bool("distributedLock", locker != nil))

	return a, nil
}

// StartScheduler 加载启用的任务并启动调度
func (a *App) StartScheduler(ctx context.Context) error {
	n, err := a.SchedulerService.InitializeScheduledJobs(ctx)
	if err != nil {
		return err
	}
	a.SchedulerService.Start()
	a.logger.Info("backup scheduler started", zap.Int("jobs", n))
	return nil
}

// Config 获取应用配置
func (a *App) Config() *AppConfig {
	return a.config
}

// ServiceConfig 获取服务层配置
func (a *App) ServiceConfig() *service.ServiceConfig {
	return a.svcConfig
}

// Logger 获取日志器
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Registry 获取 Prometheus 指标注册表
func (a *App) Registry() *prometheus.Registry {
	return a.registry
}

// WorkerPool 获取 Worker Pool
func (a *App) WorkerPool() *workerpool.Pool {
	return a.workerPool
}

// Close 释放应用容器持有的资源
func (a *App) Close() error {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis failed", zap.Error(err))
		}
	}
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err != nil {
			return fmt.Errorf("failed to get sql.DB: %w", err)
		}
		if err := sqlDB.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
		a.logger.Info("Database connection closed")
	}
	return nil
}

// Shutdown 优雅关闭应用容器
// 按顺序关闭：调度器与 Worker Pool -> 等待手动触发的备份 -> 数据库
// ctx 用于控制关闭超时，如果为 nil 则使用 backup.shutdown-timeout
func (a *App) Shutdown(ctx context.Context) error {
	var first bool
	a.shutdownOnce.Do(func() {
		first = true
		close(a.shutdownCh)
	})
	if !first {
		return nil
	}

	a.logger.Info("App container shutting down...", zap.Int64s("runningJobs", a.guard.Running()))

	if ctx == nil {
		timeout := a.svcConfig.Backup.ShutdownTimeout
		if timeout <= 0 {
			timeout = DefaultShutdownTimeout
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), timeout)
		defer cancel()
	}

	var errs []error

	// 1. 停止定时器并等待 Worker Pool 中的备份
	if err := a.SchedulerService.Shutdown(ctx); err != nil {
		a.logger.Warn("scheduler shutdown error", zap.Error(err))
		errs = append(errs, fmt.Errorf("scheduler shutdown: %w", err))
	}

	// 2. 等待命令行等途径直接触发的备份
	if err := a.guard.Wait(ctx); err != nil {
		a.logger.Warn("Shutdown timeout waiting for running backups", zap.Int64s("runningJobs", a.guard.Running()))
		errs = append(errs, fmt.Errorf("running backups: %w", err))
	}

	// 3. 关闭连接
	if err := a.Close(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		a.logger.Warn("App container shutdown completed with errors", zap.Int("errorCount", len(errs)))
		return fmt.Errorf("shutdown completed with %d errors: %v", len(errs), errs)
	}

	a.logger.Info("App container shutdown completed successfully")
	return nil
}

// IsShuttingDown 检查应用是否正在关闭
func (a *App) IsShuttingDown() bool {
	select {
	case <-a.shutdownCh:
		return true
	default:
		return false
	}
}

// ShutdownCh 返回关闭信号通道（用于监听关闭事件）
func (a *App) ShutdownCh() <-chan struct{} {
	return a.shutdownCh
}

// RunningJobs 正在执行的备份任务 ID
func (a *App) RunningJobs() []int64 {
	return a.guard.Running()
}

// WorkerPoolStats 后台备份执行池状态
func (a *App) WorkerPoolStats() workerpool.Stats {
	return a.workerPool.Stats()
}

// Ping 检查元数据库连接
func (a *App) Ping(ctx context.Context) error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
