package safe_close

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// SafeClose coordinates shutdown of long running goroutines.
// Each attached worker receives a close signal channel and must call done when it exits.
// SafeClose 协调长期运行协程的关闭，每个协程收到关闭信号后需调用 done
type SafeClose struct {
	closeCh chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
	mu      sync.Mutex
	err     error
}

// NewSafeClose 创建 SafeClose
func NewSafeClose() *SafeClose {
	return &SafeClose{closeCh: make(chan struct{})}
}

// Attach starts fn in a goroutine tracked by WaitClosed.
// Attach 以受跟踪的协程运行 fn
func (s *SafeClose) Attach(fn func(done func(), closeSignal <-chan struct{})) {
	s.wg.Add(1)
	go fn(sync.OnceFunc(s.wg.Done), s.closeCh)
}

// SendCloseSignal closes the signal channel once. The first non-nil err is kept.
// SendCloseSignal 发送关闭信号，仅第一次生效
func (s *SafeClose) SendCloseSignal(err error) {
	s.mu.Lock()
	if s.err == nil && err != nil {
		s.err = err
	}
	s.mu.Unlock()
	s.once.Do(func() { close(s.closeCh) })
}

// Done returns the close signal channel.
func (s *SafeClose) Done() <-chan struct{} {
	return s.closeCh
}

// WaitClosed blocks until every attached worker called done.
// WaitClosed 等待所有协程结束
func (s *SafeClose) WaitClosed() error {
	s.wg.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// WaitClosedTimeout is WaitClosed bounded by d.
func (s *SafeClose) WaitClosedTimeout(d time.Duration) error {
	ch := make(chan error, 1)
	go func() { ch <- s.WaitClosed() }()
	select {
	case err := <-ch:
		return err
	case <-time.After(d):
		return errors.Errorf("safe_close: workers did not exit within %s", d)
	}
}
