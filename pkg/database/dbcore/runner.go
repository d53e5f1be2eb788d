package dbcore

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/haierkeys/fast-db-backup-service/pkg/code"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Command is one native tool invocation. Secrets go through Env, never Args.
type Command struct {
	Name  string
	Args  []string
	Env   []string
	Stdin io.Reader
	// Stdout receives standard output when set; otherwise it is captured with stderr.
	Stdout io.Writer
}

// Runner executes native tools with a timeout and a capped output buffer.
// Runner 以超时和输出上限执行外部命令
type Runner struct {
	Timeout   time.Duration
	MaxOutput int64
	logger    *zap.Logger
}

// NewRunner 创建命令执行器
func NewRunner(cfg *Config, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{Timeout: cfg.EffectiveTimeout(), MaxOutput: cfg.EffectiveMaxOutput(), logger: logger}
}

// Run executes cmd and returns its captured output.
func (r *Runner) Run(ctx context.Context, cmd Command) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Env = append(os.Environ(), cmd.Env...)
	c.Stdin = cmd.Stdin
	c.WaitDelay = 10 * time.Second

	out := &cappedBuffer{max: r.MaxOutput}
	if cmd.Stdout != nil {
		c.Stdout = cmd.Stdout
	} else {
		c.Stdout = out
	}
	c.Stderr = out

	start := time.Now()
	r.logger.Debug("exec command", zap.String("name", cmd.Name), zap.Strings("args", cmd.Args))
	err := c.Run()
	output := out.String()

	if ctx.Err() == context.DeadlineExceeded {
		r.logger.Warn("exec command timeout", zap.String("name", cmd.Name), zap.Duration("timeout", r.Timeout))
		return output, code.ErrorCommandTimeout.WithDetails(cmd.Name + " exceeded " + r.Timeout.String())
	}
	if err != nil {
		r.logger.Warn("exec command failed", zap.String("name", cmd.Name), zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return output, errors.Wrap(code.ErrorCommandFailed.WithDetails(tail(output, 2048)), cmd.Name+": "+err.Error())
	}
	return output, nil
}

// cappedBuffer keeps at most max bytes and silently drops the rest.
type cappedBuffer struct {
	buf       bytes.Buffer
	max       int64
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	remain := b.max - int64(b.buf.Len())
	if remain <= 0 {
		b.truncated = true
		return len(p), nil
	}
	if int64(len(p)) > remain {
		b.buf.Write(p[:remain])
		b.truncated = true
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *cappedBuffer) String() string {
	return b.buf.String()
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
