package dao

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/haierkeys/fast-db-backup-service/internal/model"
	"github.com/haierkeys/gormTracing"
	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// DatabaseConfig 元数据库配置
type DatabaseConfig struct {
	// Type sqlite, mysql, postgres
	Type         string `yaml:"type" default:"sqlite"`
	Path         string `yaml:"path" default:"storage/database/db.sqlite3"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	UserName     string `yaml:"username"`
	Password     string `yaml:"password"`
	Name         string `yaml:"name"`
	TablePrefix  string `yaml:"table-prefix" default:"dbb_"`
	Charset      string `yaml:"charset" default:"utf8mb4"`
	SSLMode      string `yaml:"ssl-mode" default:"disable"`
	MaxIdleConns int    `yaml:"max-idle-conns" default:"10"`
	MaxOpenConns int    `yaml:"max-open-conns" default:"30"`
}

// Dao 持有数据库连接
type Dao struct {
	Db *gorm.DB
}

func New(db *gorm.DB) *Dao {
	return &Dao{Db: db}
}

// WithContext 返回绑定上下文的会话
func (d *Dao) WithContext(ctx context.Context) *gorm.DB {
	return d.Db.WithContext(ctx)
}

// Migrate 自动迁移全部表
func (d *Dao) Migrate() error {
	return model.AutoMigrate(d.Db)
}

// NewDBEngine 创建数据库引擎，debug 为 true 时输出 SQL 日志
func NewDBEngine(c DatabaseConfig, debug bool) (*gorm.DB, error) {
	dialector, err := useDialector(c)
	if err != nil {
		return nil, err
	}

	level := logger.Silent
	if debug {
		level = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(level),
		NamingStrategy: schema.NamingStrategy{
			TablePrefix:   c.TablePrefix, // 表名前缀，`BackupJob` 的表名应该是 `dbb_backup_job`
			SingularTable: true,          // 使用单数表名
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	// 获取通用数据库对象 sql.DB ，然后使用其提供的功能
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	if c.Type == "sqlite" {
		// SQLite 只允许单写者
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(c.MaxIdleConns)
		sqlDB.SetMaxOpenConns(c.MaxOpenConns)
	}
	sqlDB.SetConnMaxLifetime(time.Minute * 10)

	_ = db.Use(&gormTracing.OpentracingPlugin{})

	return db, nil
}

func useDialector(c DatabaseConfig) (gorm.Dialector, error) {
	switch c.Type {
	case "mysql":
		return mysql.Open(fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=true&loc=UTC",
			c.UserName,
			c.Password,
			c.Host,
			portOr(c.Port, 3306),
			c.Name,
			c.Charset,
		)), nil
	case "postgres":
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(c.UserName, c.Password),
			Host:   fmt.Sprintf("%s:%d", c.Host, portOr(c.Port, 5432)),
			Path:   "/" + c.Name,
		}
		q := u.Query()
		q.Set("sslmode", c.SSLMode)
		q.Set("TimeZone", "UTC")
		u.RawQuery = q.Encode()
		return postgres.Open(u.String()), nil
	case "sqlite", "":
		if c.Path != ":memory:" && c.Path != "" {
			if err := os.MkdirAll(filepath.Dir(c.Path), os.ModePerm); err != nil {
				return nil, errors.Wrap(err, "create sqlite dir")
			}
		}
		return sqlite.Open(c.Path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"), nil
	}
	return nil, errors.Errorf("unsupported metadata database type %q", c.Type)
}

func portOr(p, d int) int {
	if p == 0 {
		return d
	}
	return p
}

func notFoundNil(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}
