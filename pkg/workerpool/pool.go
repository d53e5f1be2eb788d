// Package workerpool bounds how many background backup executions run at once.
// Package workerpool 限制后台备份任务的并发数量
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

var (
	// ErrPoolFull 任务队列已满
	ErrPoolFull = errors.New("worker pool queue is full")
	// ErrPoolClosed 已关闭
	ErrPoolClosed = errors.New("worker pool is closed")
)

// Config 并发配置
type Config struct {
	// MaxWorkers 同时执行的任务数，默认 4
	MaxWorkers int `yaml:"max-workers" default:"4"`
	// QueueSize 等待队列长度，默认 64
	QueueSize int `yaml:"queue-size" default:"64"`
}

// Task is one unit of background work. Name is used only for logging.
type Task struct {
	Name string
	Run  func(context.Context) error
}

// Pool runs submitted tasks on a fixed set of workers. Task errors and panics are
// logged; nothing is retried.
type Pool struct {
	config Config
	logger *zap.Logger

	tasks chan Task
	wg    sync.WaitGroup

	active    atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

// New starts the workers. A nil logger disables logging.
func New(cfg Config, logger *zap.Logger) *Pool {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		config: cfg,
		logger: logger,
		tasks:  make(chan Task, cfg.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
	for i := 0; i < cfg.MaxWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.run(task)
	}
}

func (p *Pool) run(task Task) {
	p.active.Add(1)
	defer p.active.Add(-1)

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
				p.logger.Error("worker pool task panicked",
					zap.String("task", task.Name),
					zap.ByteString("stack", debug.Stack()))
			}
		}()
		return task.Run(p.ctx)
	}()

	if err != nil {
		p.failed.Add(1)
		p.logger.Warn("worker pool task failed", zap.String("task", task.Name), zap.Error(err))
		return
	}
	p.completed.Add(1)
}

// Submit queues a task without waiting for it. It fails fast when the queue is full.
// Submit 提交任务，队列已满时立即返回 ErrPoolFull
func (p *Pool) Submit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrPoolFull
	}
}

// Shutdown stops accepting tasks and waits for queued ones. When ctx expires the
// context handed to running tasks is cancelled.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		p.logger.Warn("worker pool shutdown timed out, cancelling running tasks",
			zap.Int64("active", p.active.Load()))
		return ctx.Err()
	}
}

// Stats 运行统计
type Stats struct {
	MaxWorkers int   `json:"maxWorkers"`
	Active     int64 `json:"active"`
	Queued     int   `json:"queued"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
}

func (p *Pool) Stats() Stats {
	return Stats{
		MaxWorkers: p.config.MaxWorkers,
		Active:     p.active.Load(),
		Queued:     len(p.tasks),
		Completed:  p.completed.Load(),
		Failed:     p.failed.Load(),
	}
}
