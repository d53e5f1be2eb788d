// Package mysql backs up MySQL and MariaDB with mysqldump and restores with the mysql client.
package mysql

import (
	"context"
	"database/sql"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/haierkeys/fast-db-backup-service/pkg/code"
	"github.com/haierkeys/fast-db-backup-service/pkg/database/dbcore"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	DefaultPort = 3306
	Ext         = "sql"

	TypeMariaDB = "mariadb"
)

// Connector MySQL / MariaDB 连接器
type Connector struct {
	cfg    *dbcore.Config
	runner *dbcore.Runner
	logger *zap.Logger
}

// New 创建 MySQL 连接器，MariaDB 共用该实现
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

func (c *Connector) dsn() string {
	mc := mysql.NewConfig()
	mc.User = c.cfg.Username
	mc.Passwd = c.cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.port()))
	mc.DBName = c.cfg.Database
	mc.Timeout = 10 * time.Second
	if c.cfg.SSL {
		mc.TLSConfig = "skip-verify"
	}
	return mc.FormatDSN()
}

func (c *Connector) open(ctx context.Context) (*sql.DB, error) {
	if err := dbcore.ValidateIdentifiers(c.cfg); err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", c.dsn())
	if err != nil {
		return nil, errors.Wrap(err, "mysql")
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(code.ErrorDatabaseConnect.WithDetails(err.Error()), "mysql")
	}
	return db, nil
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
	if err := db.QueryRowContext(ctx, "SELECT VERSION()").Scan(&version); err != nil {
		return &dbcore.ConnectionResult{Success: false, Message: err.Error()}
	}
	return &dbcore.ConnectionResult{Success: true, Message: "Connection successful", Version: version}
}

func (c *Connector) sslArgs() []string {
	if !c.cfg.SSL {
		return nil
	}
	if c.cfg.Type == TypeMariaDB {
		return []string{"--ssl"}
	}
	return []string{"--ssl-mode=REQUIRED"}
}

func (c *Connector) baseArgs() []string {
	args := []string{
		"-h", c.cfg.Host,
		"-P", strconv.Itoa(c.port()),
		"-u", c.cfg.Username,
	}
	return append(args, c.sslArgs()...)
}

func (c *Connector) dumpArgs(file string) []string {
	args := c.baseArgs()
	args = append(args,
		"--single-transaction",
		"--routines",
		"--triggers",
		"--result-file="+file,
		c.cfg.Database,
	)
	return args
}

func (c *Connector) env() []string {
	return []string{"MYSQL_PWD=" + c.cfg.Password}
}

// CreateBackup 使用 mysqldump 导出数据库
func (c *Connector) CreateBackup(ctx context.Context, outputDir string) (*dbcore.BackupResult, error) {
	if err := dbcore.ValidateIdentifiers(c.cfg); err != nil {
		return nil, err
	}

	start := time.Now()
	name := dbcore.ArtifactName(c.cfg.Database, Ext, start)
	file := filepath.Join(outputDir, name)

	if _, err := c.runner.Run(ctx, dbcore.Command{Name: "mysqldump", Args: c.dumpArgs(file), Env: c.env()}); err != nil {
		_ = os.Remove(file)
		return nil, err
	}

	fi, err := os.Stat(file)
	if err != nil {
		return nil, errors.Wrap(err, "mysql: dump file missing")
	}

	c.logger.Info("mysql dump created", zap.String("database", c.cfg.Database), zap.Int64("size", fi.Size()))
	return &dbcore.BackupResult{
		FileName: name,
		FilePath: file,
		FileSize: fi.Size(),
		Duration: dbcore.DurationSeconds(start, time.Now()),
	}, nil
}

// RestoreBackup streams the dump into the mysql client.
// RestoreBackup 将备份文件通过 stdin 导入 mysql
func (c *Connector) RestoreBackup(ctx context.Context, artifactPath string) (*dbcore.RestoreResult, error) {
	if err := dbcore.ValidateIdentifiers(c.cfg); err != nil {
		return nil, err
	}
	f, err := os.Open(artifactPath)
	if err != nil {
		return nil, errors.Wrap(err, "mysql")
	}
	defer f.Close()

	start := time.Now()
	args := append(c.baseArgs(), c.cfg.Database)
	if _, err := c.runner.Run(ctx, dbcore.Command{Name: "mysql", Args: args, Env: c.env(), Stdin: f}); err != nil {
		return nil, err
	}
	return &dbcore.RestoreResult{
		Duration: dbcore.DurationSeconds(start, time.Now()),
		Message:  "Database " + c.cfg.Database + " restored",
	}, nil
}

// GetDatabaseSize 返回数据和索引的总大小
func (c *Connector) GetDatabaseSize(ctx context.Context) (int64, error) {
	db, err := c.open(ctx)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	var size int64
	err = db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(data_length + index_length), 0) FROM information_schema.tables WHERE table_schema = ?",
		c.cfg.Database,
	).Scan(&size)
	if err != nil {
		return 0, errors.Wrap(err, "mysql")
	}
	return size, nil
}
