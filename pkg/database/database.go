// Package database is the closed set of database connectors.
package database

import (
	"context"

	"github.com/haierkeys/fast-db-backup-service/pkg/code"
	"github.com/haierkeys/fast-db-backup-service/pkg/database/dbcore"
	"github.com/haierkeys/fast-db-backup-service/pkg/database/mongodb"
	"github.com/haierkeys/fast-db-backup-service/pkg/database/mssql"
	"github.com/haierkeys/fast-db-backup-service/pkg/database/mysql"
	"github.com/haierkeys/fast-db-backup-service/pkg/database/postgresql"
	"go.uber.org/zap"
)

type Type = string

const (
	PostgreSQL Type = "postgresql"
	MySQL      Type = "mysql"
	MariaDB    Type = "mariadb"
	MongoDB    Type = "mongodb"
	MSSQL      Type = "mssql"
)

var TypeMap = map[Type]bool{
	PostgreSQL: true,
	MySQL:      true,
	MariaDB:    true,
	MongoDB:    true,
	MSSQL:      true,
}

// Connector is the capability contract every engine implements.
// Connector 数据库连接器统一接口
type Connector interface {
	// TestConnection never returns an error; failures are reported in the result.
	TestConnection(ctx context.Context) *dbcore.ConnectionResult
	CreateBackup(ctx context.Context, outputDir string) (*dbcore.BackupResult, error)
	RestoreBackup(ctx context.Context, artifactPath string) (*dbcore.RestoreResult, error)
	GetDatabaseSize(ctx context.Context) (int64, error)
}

var (
	_ Connector = (*postgresql.Connector)(nil)
	_ Connector = (*mysql.Connector)(nil)
	_ Connector = (*mongodb.Connector)(nil)
	_ Connector = (*mssql.Connector)(nil)
)

// IsValidType 判断数据库类型是否受支持
func IsValidType(t string) bool {
	return TypeMap[t]
}

// CompressesItself reports engines whose native dump is already compressed.
func CompressesItself(t string) bool {
	return t == MongoDB
}

// NewConnector 根据数据库类型创建连接器，未知类型返回校验错误
func NewConnector(cfg *dbcore.Config, logger *zap.Logger) (Connector, error) {
	if cfg == nil {
		return nil, code.ErrorInvalidDatabaseType.WithDetails("missing database config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("engine", cfg.Type))

	switch cfg.Type {
	case PostgreSQL:
		return postgresql.New(cfg, logger), nil
	case MySQL, MariaDB:
		return mysql.New(cfg, logger), nil
	case MongoDB:
		return mongodb.New(cfg, logger), nil
	case MSSQL:
		return mssql.New(cfg, logger), nil
	}
	return nil, code.ErrorInvalidDatabaseType.WithDetails(cfg.Type)
}

// Factory builds connectors; services depend on it so tests can substitute fakes.
type Factory func(cfg *dbcore.Config, logger *zap.Logger) (Connector, error)
