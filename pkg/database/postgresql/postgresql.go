// Package postgresql backs up PostgreSQL with pg_dump and restores with psql.
package postgresql

import (
	"context"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/haierkeys/fast-db-backup-service/pkg/code"
	"github.com/haierkeys/fast-db-backup-service/pkg/database/dbcore"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	DefaultPort = 5432
	Ext         = "sql"
)

// Connector PostgreSQL 连接器
type Connector struct {
	cfg    *dbcore.Config
	runner *dbcore.Runner
	logger *zap.Logger
}

// New 创建 PostgreSQL 连接器
func New(cfg *dbcore.Config, logger *zap.Logger) *Connector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Connector{cfg: cfg, runner: dbcore.NewRunner(cfg, logger), logger: logger}
}

func (c *Connector) port() int {
	if c.cfg.Port > 0 {
		return c.cfg.Port
	}
	return DefaultPort
}

func (c *Connector) connString() string {
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.cfg.Username, c.cfg.Password),
		Host:   net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.port())),
		Path:   "/" + c.cfg.Database,
	}
	q := url.Values{}
	q.Set("connect_timeout", "10")
	if c.cfg.SSL {
		q.Set("sslmode", "require")
	} else {
		q.Set("sslmode", "prefer")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Connector) env() []string {
	env := []string{"PGPASSWORD=" + c.cfg.Password}
	if c.cfg.SSL {
		env = append(env, "PGSSLMODE=require")
	}
	return env
}

func (c *Connector) connect(ctx context.Context) (*pgx.Conn, error) {
	if err := dbcore.ValidateIdentifiers(c.cfg); err != nil {
		return nil, err
	}
	conn, err := pgx.Connect(ctx, c.connString())
	if err != nil {
		return nil, errors.Wrap(code.ErrorDatabaseConnect.WithDetails(err.Error()), "postgresql")
	}
	return conn, nil
}

// TestConnection 测试连接，错误体现在结果中
func (c *Connector) TestConnection(ctx context.Context) *dbcore.ConnectionResult {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	conn, err := c.connect(ctx)
	if err != nil {
		return &dbcore.ConnectionResult{Success: false, Message: err.Error()}
	}
	defer conn.Close(context.Background())

	var version string
	if err := conn.QueryRow(ctx, "SELECT version()").Scan(&version); err != nil {
		return &dbcore.ConnectionResult{Success: false, Message: err.Error()}
	}
	return &dbcore.ConnectionResult{Success: true, Message: "Connection successful", Version: version}
}

func (c *Connector) dumpArgs(file string) []string {
	return []string{
		"-h", c.cfg.Host,
		"-p", strconv.Itoa(c.port()),
		"-U", c.cfg.Username,
		"-d", c.cfg.Database,
		"-F", "p",
		"--no-owner",
		"--no-privileges",
		"-f", file,
	}
}

func (c *Connector) restoreArgs(file string) []string {
	return []string{
		"-h", c.cfg.Host,
		"-p", strconv.Itoa(c.port()),
		"-U", c.cfg.Username,
		"-d", c.cfg.Database,
		"-v", "ON_ERROR_STOP=1",
		"-f", file,
	}
}

// CreateBackup 使用 pg_dump 导出数据库
func (c *Connector) CreateBackup(ctx context.Context, outputDir string) (*dbcore.BackupResult, error) {
	if err := dbcore.ValidateIdentifiers(c.cfg); err != nil {
		return nil, err
	}

	start := time.Now()
	name := dbcore.ArtifactName(c.cfg.Database, Ext, start)
	file := filepath.Join(outputDir, name)

	if _, err := c.runner.Run(ctx, dbcore.Command{Name: "pg_dump", Args: c.dumpArgs(file), Env: c.env()}); err != nil {
		_ = os.Remove(file)
		return nil, err
	}

	fi, err := os.Stat(file)
	if err != nil {
		return nil, errors.Wrap(err, "postgresql: dump file missing")
	}

	c.logger.Info("postgresql dump created", zap.String("database", c.cfg.Database), zap.Int64("size", fi.Size()))
	return &dbcore.BackupResult{
		FileName: name,
		FilePath: file,
		FileSize: fi.Size(),
		Duration: dbcore.DurationSeconds(start, time.Now()),
	}, nil
}

// RestoreBackup 使用 psql 恢复
func (c *Connector) RestoreBackup(ctx context.Context, artifactPath string) (*dbcore.RestoreResult, error) {
	if err := dbcore.ValidateIdentifiers(c.cfg); err != nil {
		return nil, err
	}
	start := time.Now()
	if _, err := c.runner.Run(ctx, dbcore.Command{Name: "psql", Args: c.restoreArgs(artifactPath), Env: c.env()}); err != nil {
		return nil, err
	}
	return &dbcore.RestoreResult{
		Duration: dbcore.DurationSeconds(start, time.Now()),
		Message:  "Database " + c.cfg.Database + " restored",
	}, nil
}

// GetDatabaseSize 返回数据库大小（字节）
func (c *Connector) GetDatabaseSize(ctx context.Context) (int64, error) {
	conn, err := c.connect(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Close(context.Background())

	var size int64
	if err := conn.QueryRow(ctx, "SELECT pg_database_size($1)", c.cfg.Database).Scan(&size); err != nil {
		return 0, errors.Wrap(err, "postgresql")
	}
	return size, nil
}
