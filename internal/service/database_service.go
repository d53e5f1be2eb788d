package service

import (
	"context"

	"github.com/haierkeys/fast-db-backup-service/internal/domain"
	"github.com/haierkeys/fast-db-backup-service/pkg/code"
	"github.com/haierkeys/fast-db-backup-service/pkg/database"
	"github.com/haierkeys/fast-db-backup-service/pkg/database/dbcore"
	"github.com/haierkeys/fast-db-backup-service/pkg/logger"
	"github.com/haierkeys/fast-db-backup-service/pkg/secret"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// CredentialResolver yields a connector config with the password decrypted.
// The plaintext lives only in the returned value.
// CredentialResolver 获取解密后的数据库连接配置
type CredentialResolver interface {
	GetDatabaseConfig(ctx context.Context, databaseID int64) (*dbcore.Config, error)
}

// DatabaseService 数据库配置业务服务接口
type DatabaseService interface {
	CredentialResolver
	Create(ctx context.Context, p *domain.DatabaseProfile) (*domain.DatabaseProfile, error)
	Update(ctx context.Context, p *domain.DatabaseProfile) (*domain.DatabaseProfile, error)
	Get(ctx context.Context, userID, id int64) (*domain.DatabaseProfile, error)
	List(ctx context.Context, userID int64) ([]*domain.DatabaseProfile, error)
	Delete(ctx context.Context, userID, id int64) error
	TestConnection(ctx context.Context, id int64) (*dbcore.ConnectionResult, error)
	GetSize(ctx context.Context, id int64) (int64, error)
}

type databaseService struct {
	repo      domain.DatabaseRepository
	cipher    *secret.Cipher
	connector database.Factory
	config    *BackupServiceConfig
	logger    *zap.Logger
}

// NewDatabaseService 创建 DatabaseService 实例
func NewDatabaseService(repo domain.DatabaseRepository, cipher *secret.Cipher, connector database.Factory, config *BackupServiceConfig, logger *zap.Logger) DatabaseService {
	if connector == nil {
		connector = database.NewConnector
	}
	return &databaseService{repo: repo, cipher: cipher, connector: connector, config: config, logger: logger}
}

func (s *databaseService) toConfig(p *domain.DatabaseProfile, password string) *dbcore.Config {
	return &dbcore.Config{
		Type:             p.Type,
		Host:             p.Host,
		Port:             p.Port,
		ConnectionString: p.ConnectionString,
		Database:         p.Database,
		Username:         p.Username,
		Password:         password,
		SSL:              p.SSL,
		CommandTimeout:   s.config.CommandTimeout,
		MaxOutputSize:    s.config.MaxOutputSize,
	}
}

// validate 校验类型与标识符，并加密密码
func (s *databaseService) prepare(p *domain.DatabaseProfile) error {
	if !database.IsValidType(p.Type) {
		return code.ErrorInvalidDatabaseType.WithDetails(p.Type)
	}
	if err := dbcore.ValidateIdentifiers(s.toConfig(p, "")); err != nil {
		return err
	}
	if p.Password != "" && !secret.IsEncrypted(p.Password) {
		enc, err := s.cipher.Encrypt(p.Password)
		if err != nil {
			return errors.Wrap(err, "encrypt database password")
		}
		p.Password = enc
	}
	return nil
}

func (s *databaseService) Create(ctx context.Context, p *domain.DatabaseProfile) (*domain.DatabaseProfile, error) {
	if err := s.prepare(p); err != nil {
		return nil, err
	}
	created, err := s.repo.Create(ctx, p)
	if err != nil {
		return nil, code.ErrorDBQuery.WithDetails(err.Error())
	}
	return redactProfile(created), nil
}

func (s *databaseService) Update(ctx context.Context, p *domain.DatabaseProfile) (*domain.DatabaseProfile, error) {
	old, err := s.Get(ctx, p.UserID, p.ID)
	if err != nil {
		return nil, err
	}
	if p.Password == "" {
		// keep the stored password when none is supplied
		stored, _ := s.repo.GetByID(ctx, old.ID)
		if stored != nil {
			p.Password = stored.Password
		}
	}
	if err := s.prepare(p); err != nil {
		return nil, err
	}
	p.CreatedAt = old.CreatedAt
	updated, err := s.repo.Update(ctx, p)
	if err != nil {
		return nil, code.ErrorDBQuery.WithDetails(err.Error())
	}
	return redactProfile(updated), nil
}

// Get 获取数据库配置，密码不返回
func (s *databaseService) Get(ctx context.Context, userID, id int64) (*domain.DatabaseProfile, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, code.ErrorDBQuery.WithDetails(err.Error())
	}
	if p == nil {
		return nil, code.ErrorDatabaseNotFound
	}
	if p.UserID != userID {
		return nil, code.ErrorAccessDenied
	}
	return redactProfile(p), nil
}

func (s *databaseService) List(ctx context.Context, userID int64) ([]*domain.DatabaseProfile, error) {
	list, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, code.ErrorDBQuery.WithDetails(err.Error())
	}
	for i := range list {
		list[i] = redactProfile(list[i])
	}
	return list, nil
}

func (s *databaseService) Delete(ctx context.Context, userID, id int64) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// GetDatabaseConfig 获取解密后的连接配置，仅供流水线内部使用
func (s *databaseService) GetDatabaseConfig(ctx context.Context, databaseID int64) (*dbcore.Config, error) {
	p, err := s.repo.GetByID(ctx, databaseID)
	if err != nil {
		return nil, code.ErrorDBQuery.WithDetails(err.Error())
	}
	if p == nil {
		return nil, code.ErrorDatabaseNotFound
	}
	password, err := s.cipher.Decrypt(p.Password)
	if err != nil {
		s.logger.Error("decrypt database password failed", zap.Int64(logger.FieldDatabaseID, databaseID), zap.Error(err))
		return nil, code.ErrorDecryptionFailed.WithDetails("stored database password")
	}
	return s.toConfig(p, password), nil
}

func (s *databaseService) connectorFor(ctx context.Context, id int64) (database.Connector, error) {
	cfg, err := s.GetDatabaseConfig(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.connector(cfg, s.logger)
}

func (s *databaseService) TestConnection(ctx context.Context, id int64) (*dbcore.ConnectionResult, error) {
	conn, err := s.connectorFor(ctx, id)
	if err != nil {
		return nil, err
	}
	return conn.TestConnection(ctx), nil
}

func (s *databaseService) GetSize(ctx context.Context, id int64) (int64, error) {
	conn, err := s.connectorFor(ctx, id)
	if err != nil {
		return 0, err
	}
	return conn.GetDatabaseSize(ctx)
}

func redactProfile(p *domain.DatabaseProfile) *domain.DatabaseProfile {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Password = ""
	return &cp
}
