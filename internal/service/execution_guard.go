package service

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/haierkeys/fast-db-backup-service/pkg/code"
	"github.com/haierkeys/fast-db-backup-service/pkg/lock"
	"github.com/haierkeys/fast-db-backup-service/pkg/logger"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ExecutionGuard is the registry of in-flight backup jobs. At most one execution
// per job runs in this process; with a distributed locker the guarantee extends
// to every process sharing it.
// ExecutionGuard 运行中任务登记表，保证同一任务同一时刻只执行一次
type ExecutionGuard struct {
	mu      sync.Mutex
	running map[int64]time.Time
	wg      sync.WaitGroup

	locker lock.Locker
	ttl    time.Duration
	logger *zap.Logger
}

// NewExecutionGuard locker may be nil for process-local exclusion only.
func NewExecutionGuard(locker lock.Locker, ttl time.Duration, log *zap.Logger) *ExecutionGuard {
	if log == nil {
		log = zap.NewNop()
	}
	return &ExecutionGuard{
		running: make(map[int64]time.Time),
		locker:  locker,
		ttl:     ttl,
		logger:  log,
	}
}

// Acquire marks jobID as running. It fails immediately with ErrorBackupAlreadyRunning
// when the job is in flight. The returned release is idempotent.
func (g *ExecutionGuard) Acquire(ctx context.Context, jobID int64) (func(), error) {
	g.mu.Lock()
	if _, ok := g.running[jobID]; ok {
		g.mu.Unlock()
		return nil, code.ErrorBackupAlreadyRunning.WithDetails("job " + strconv.FormatInt(jobID, 10))
	}
	g.running[jobID] = time.Now()
	g.wg.Add(1)
	g.mu.Unlock()

	releaseRemote := func() {}
	if g.locker != nil {
		r, err := g.locker.Acquire(ctx, "job:"+strconv.FormatInt(jobID, 10), g.ttl)
		switch {
		case err == nil:
			releaseRemote = r
		case errors.Is(err, lock.ErrNotAcquired):
			g.remove(jobID)
			return nil, code.ErrorBackupAlreadyRunning.WithDetails("job " + strconv.FormatInt(jobID, 10) + " is running on another instance")
		default:
			// lock backend unavailable, continue with local exclusion only
			g.logger.Warn("distributed lock unavailable", zap.Int64(logger.FieldJobID, jobID), zap.Error(err))
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseRemote()
			g.remove(jobID)
		})
	}, nil
}

func (g *ExecutionGuard) remove(jobID int64) {
	g.mu.Lock()
	delete(g.running, jobID)
	g.mu.Unlock()
	g.wg.Done()
}

// IsRunning 任务是否正在执行
func (g *ExecutionGuard) IsRunning(jobID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.running[jobID]
	return ok
}

// Running 返回正在执行的任务 ID（升序）
func (g *ExecutionGuard) Running() []int64 {
	g.mu.Lock()
	ids := make([]int64, 0, len(g.running))
	for id := range g.running {
		ids = append(ids, id)
	}
	g.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Wait blocks until no job is running or ctx is done.
func (g *ExecutionGuard) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
