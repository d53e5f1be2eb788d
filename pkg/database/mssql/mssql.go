// Package mssql backs up SQL Server with T-SQL BACKUP DATABASE / RESTORE DATABASE.
// The artifact path is written by the SQL Server process, so the backup directory must be
// shared between this service and the server.
package mssql

import (
	"context"
	"database/sql"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/haierkeys/fast-db-backup-service/pkg/code"
	"github.com/haierkeys/fast-db-backup-service/pkg/database/dbcore"
	_ "github.com/microsoft/go-mssqldb"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	DefaultPort = 1433
	Ext         = "bak"
)

// Connector SQL Server 连接器
type Connector struct {
	cfg    *dbcore.Config
	logger *zap.Logger
}

// New 创建 SQL Server 连接器
func New(cfg *dbcore.Config, logger *zap.Logger) *Connector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Connector{cfg: cfg, logger: logger}
}

// dsn connects to master; statements name the target database explicitly.
func (c *Connector) dsn() string {
	port := c.cfg.Port
	if port <= 0 {
		port = DefaultPort
	}
	q := url.Values{}
	q.Set("database", "master")
	q.Set("dial timeout", "10")
	if c.cfg.SSL {
		q.Set("encrypt", "true")
		q.Set("TrustServerCertificate", "true")
	} else {
		q.Set("encrypt", "disable")
	}
	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(c.cfg.Username, c.cfg.Password),
		Host:     net.JoinHostPort(c.cfg.Host, strconv.Itoa(port)),
		RawQuery: q.Encode(),
	}
	return u.String()
}

func (c *Connector) open(ctx context.Context) (*sql.DB, error) {
	if err := dbcore.ValidateIdentifiers(c.cfg); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlserver", c.dsn())
	if err != nil {
		return nil, errors.Wrap(err, "mssql")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(code.ErrorDatabaseConnect.WithDetails(err.Error()), "mssql")
	}
	return db, nil
}

// quoteIdent brackets an identifier for T-SQL.
func quoteIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// quoteLiteral renders a unicode string literal.
func quoteLiteral(s string) string {
	return "N'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func backupStatement(database, file string) string {
	return "BACKUP DATABASE " + quoteIdent(database) +
		" TO DISK = " + quoteLiteral(file) +
		" WITH FORMAT, INIT, NAME = " + quoteLiteral(database+" full backup")
}

func restoreStatement(database, file string) string {
	return "RESTORE DATABASE " + quoteIdent(database) + " FROM DISK = " + quoteLiteral(file) + " WITH REPLACE"
}

func singleUserStatement(database string) string {
	return "ALTER DATABASE " + quoteIdent(database) + " SET SINGLE_USER WITH ROLLBACK IMMEDIATE"
}

func multiUserStatement(database string) string {
	return "ALTER DATABASE " + quoteIdent(database) + " SET MULTI_USER"
}

// TestConnection 测试连接
func (c *Connector) TestConnection(ctx context.Context) *dbcore.ConnectionResult {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	db, err := c.open(ctx)
	if err != nil {
		return &dbcore.ConnectionResult{Success: false, Message: err.Error()}
	}
	defer db.Close()

	var version string
	if err := db.QueryRowContext(ctx, "SELECT @@VERSION").Scan(&version); err != nil {
		return &dbcore.ConnectionResult{Success: false, Message: err.Error()}
	}
	return &dbcore.ConnectionResult{Success: true, Message: "Connection successful", Version: version}
}

// CreateBackup 执行 BACKUP DATABASE
func (c *Connector) CreateBackup(ctx context.Context, outputDir string) (*dbcore.BackupResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.EffectiveTimeout())
	defer cancel()

	db, err := c.open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	start := time.Now()
	name := dbcore.ArtifactName(c.cfg.Database, Ext, start)
	file, err := filepath.Abs(filepath.Join(outputDir, name))
	if err != nil {
		return nil, errors.Wrap(err, "mssql")
	}

	if _, err := db.ExecContext(ctx, backupStatement(c.cfg.Database, file)); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, code.ErrorCommandTimeout.WithDetails("BACKUP DATABASE exceeded " + c.cfg.EffectiveTimeout().String())
		}
		return nil, errors.Wrap(code.ErrorCommandFailed.WithDetails(err.Error()), "mssql: backup")
	}

	fi, err := os.Stat(file)
	if err != nil {
		return nil, errors.Wrap(err, "mssql: backup file is not visible on this host")
	}

	c.logger.Info("mssql backup created", zap.String("database", c.cfg.Database), zap.Int64("size", fi.Size()))
	return &dbcore.BackupResult{
		FileName: name,
		FilePath: file,
		FileSize: fi.Size(),
		Duration: dbcore.DurationSeconds(start, time.Now()),
	}, nil
}

// RestoreBackup switches the database to single user mode, restores, and always
// tries to switch it back to multi user mode.
// RestoreBackup 恢复前切换单用户模式，结束后无论成功与否都尝试恢复多用户模式
func (c *Connector) RestoreBackup(ctx context.Context, artifactPath string) (result *dbcore.RestoreResult, err error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.EffectiveTimeout())
	defer cancel()

	db, err := c.open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	// single user mode admits only this session, so every statement shares one connection
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "mssql")
	}
	defer conn.Close()

	start := time.Now()
	if _, err := conn.ExecContext(ctx, singleUserStatement(c.cfg.Database)); err != nil {
		return nil, errors.Wrap(code.ErrorCommandFailed.WithDetails(err.Error()), "mssql: single user")
	}
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, merr := conn.ExecContext(cleanupCtx, multiUserStatement(c.cfg.Database)); merr != nil {
			c.logger.Warn("mssql restore: set multi user failed", zap.String("database", c.cfg.Database), zap.Error(merr))
		}
	}()

	abs, err := filepath.Abs(artifactPath)
	if err != nil {
		return nil, errors.Wrap(err, "mssql")
	}
	if _, err := conn.ExecContext(ctx, restoreStatement(c.cfg.Database, abs)); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, code.ErrorCommandTimeout.WithDetails("RESTORE DATABASE exceeded " + c.cfg.EffectiveTimeout().String())
		}
		return nil, errors.Wrap(code.ErrorCommandFailed.WithDetails(err.Error()), "mssql: restore")
	}

	return &dbcore.RestoreResult{
		Duration: dbcore.DurationSeconds(start, time.Now()),
		Message:  "Database " + c.cfg.Database + " restored",
	}, nil
}

// GetDatabaseSize 返回数据文件和日志文件总大小（字节）
func (c *Connector) GetDatabaseSize(ctx context.Context) (int64, error) {
	db, err := c.open(ctx)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	var pages sql.NullInt64
	err = db.QueryRowContext(ctx,
		"SELECT SUM(CAST(size AS BIGINT)) FROM sys.master_files WHERE database_id = DB_ID(@p1)",
		c.cfg.Database,
	).Scan(&pages)
	if err != nil {
		return 0, errors.Wrap(err, "mssql")
	}
	return pages.Int64 * 8 * 1024, nil
}
