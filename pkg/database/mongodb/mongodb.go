// Package mongodb backs up MongoDB with mongodump --archive --gzip.
// The archive is already compressed, so the pipeline does not gzip it again.
package mongodb

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
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort = 27017
	Ext         = "archive"
)

// Connector MongoDB 连接器
type Connector struct {
	cfg    *dbcore.Config
	runner *dbcore.Runner
	logger *zap.Logger
}

// New 创建 MongoDB 连接器
func New(cfg *dbcore.Config, logger *zap.Logger) *Connector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Connector{cfg: cfg, runner: dbcore.NewRunner(cfg, logger), logger: logger}
}

// uri returns the configured connection string or one built from the profile fields.
func (c *Connector) uri() string {
	if c.cfg.ConnectionString != "" {
		return c.cfg.ConnectionString
	}
	port := c.cfg.Port
	if port <= 0 {
		port = DefaultPort
	}
	u := &url.URL{
		Scheme: "mongodb",
		Host:   net.JoinHostPort(c.cfg.Host, strconv.Itoa(port)),
		Path:   "/",
	}
	if c.cfg.Username != "" {
		u.User = url.UserPassword(c.cfg.Username, c.cfg.Password)
	}
	q := url.Values{}
	if c.cfg.Username != "" {
		q.Set("authSource", "admin")
	}
	if c.cfg.SSL {
		q.Set("tls", "true")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Connector) connect(ctx context.Context) (*mongo.Client, error) {
	if err := dbcore.ValidateIdentifiers(c.cfg); err != nil {
		return nil, err
	}
	client, err := mongo.Connect(options.Client().ApplyURI(c.uri()).SetServerSelectionTimeout(10 * time.Second))
	if err != nil {
		return nil, errors.Wrap(code.ErrorDatabaseConnect.WithDetails(err.Error()), "mongodb")
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(code.ErrorDatabaseConnect.WithDetails(err.Error()), "mongodb")
	}
	return client, nil
}

// TestConnection 测试连接
func (c *Connector) TestConnection(ctx context.Context) *dbcore.ConnectionResult {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := c.connect(ctx)
	if err != nil {
		return &dbcore.ConnectionResult{Success: false, Message: err.Error()}
	}
	defer client.Disconnect(context.Background())

	var info bson.M
	if err := client.Database("admin").RunCommand(ctx, bson.D{{Key: "buildInfo", Value: 1}}).Decode(&info); err != nil {
		return &dbcore.ConnectionResult{Success: true, Message: "Connection successful"}
	}
	version, _ := info["version"].(string)
	return &dbcore.ConnectionResult{Success: true, Message: "Connection successful", Version: version}
}

type toolConfig struct {
	URI string `yaml:"uri"`
}

// writeToolConfig keeps the connection string (and its password) off the process list.
func (c *Connector) writeToolConfig() (string, error) {
	data, err := yaml.Marshal(toolConfig{URI: c.uri()})
	if err != nil {
		return "", errors.Wrap(err, "mongodb")
	}
	f, err := os.CreateTemp("", "mongotool-*.yaml")
	if err != nil {
		return "", errors.Wrap(err, "mongodb")
	}
	defer f.Close()
	if err := f.Chmod(0o600); err != nil {
		_ = os.Remove(f.Name())
		return "", errors.Wrap(err, "mongodb")
	}
	if _, err := f.Write(data); err != nil {
		_ = os.Remove(f.Name())
		return "", errors.Wrap(err, "mongodb")
	}
	return f.Name(), nil
}

func (c *Connector) dumpArgs(configFile, file string) []string {
	return []string{
		"--config=" + configFile,
		"--db=" + c.cfg.Database,
		"--archive=" + file,
		"--gzip",
	}
}

func (c *Connector) restoreArgs(configFile, file string) []string {
	return []string{
		"--config=" + configFile,
		"--archive=" + file,
		"--gzip",
		"--drop",
		"--nsInclude=" + c.cfg.Database + ".*",
	}
}

// CreateBackup 使用 mongodump 导出为单个压缩归档
func (c *Connector) CreateBackup(ctx context.Context, outputDir string) (*dbcore.BackupResult, error) {
	if err := dbcore.ValidateIdentifiers(c.cfg); err != nil {
		return nil, err
	}
	configFile, err := c.writeToolConfig()
	if err != nil {
		return nil, err
	}
	defer os.Remove(configFile)

	start := time.Now()
	name := dbcore.ArtifactName(c.cfg.Database, Ext, start)
	file := filepath.Join(outputDir, name)

	if _, err := c.runner.Run(ctx, dbcore.Command{Name: "mongodump", Args: c.dumpArgs(configFile, file)}); err != nil {
		_ = os.Remove(file)
		return nil, err
	}

	fi, err := os.Stat(file)
	if err != nil {
		return nil, errors.Wrap(err, "mongodb: archive missing")
	}

	c.logger.Info("mongodb archive created", zap.String("database", c.cfg.Database), zap.Int64("size", fi.Size()))
	return &dbcore.BackupResult{
		FileName: name,
		FilePath: file,
		FileSize: fi.Size(),
		Duration: dbcore.DurationSeconds(start, time.Now()),
	}, nil
}

// RestoreBackup 使用 mongorestore 恢复并替换已有集合
func (c *Connector) RestoreBackup(ctx context.Context, artifactPath string) (*dbcore.RestoreResult, error) {
	if err := dbcore.ValidateIdentifiers(c.cfg); err != nil {
		return nil, err
	}
	configFile, err := c.writeToolConfig()
	if err != nil {
		return nil, err
	}
	defer os.Remove(configFile)

	start := time.Now()
	if _, err := c.runner.Run(ctx, dbcore.Command{Name: "mongorestore", Args: c.restoreArgs(configFile, artifactPath)}); err != nil {
		return nil, err
	}
	return &dbcore.RestoreResult{
		Duration: dbcore.DurationSeconds(start, time.Now()),
		Message:  "Database " + c.cfg.Database + " restored",
	}, nil
}

// GetDatabaseSize 返回 dbStats.dataSize
func (c *Connector) GetDatabaseSize(ctx context.Context) (int64, error) {
	client, err := c.connect(ctx)
	if err != nil {
		return 0, err
	}
	defer client.Disconnect(context.Background())

	var stats bson.M
	if err := client.Database(c.cfg.Database).RunCommand(ctx, bson.D{{Key: "dbStats", Value: 1}}).Decode(&stats); err != nil {
		return 0, errors.Wrap(err, "mongodb")
	}
	return toInt64(stats["dataSize"]), nil
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int32:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return 0
}
