package service

import (
	"context"
	"strconv"

	"github.com/haierkeys/fast-db-backup-service/internal/domain"
	"github.com/haierkeys/fast-db-backup-service/pkg/code"
	"github.com/haierkeys/fast-db-backup-service/pkg/secret"
	"github.com/haierkeys/fast-db-backup-service/pkg/storage"
	"github.com/haierkeys/fast-db-backup-service/pkg/storage/remote"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// CloudStorageService 云存储配置业务服务接口
type CloudStorageService interface {
	Create(ctx context.Context, c *domain.CloudStorageConfig) (*domain.CloudStorageConfig, error)
	Update(ctx context.Context, c *domain.CloudStorageConfig) (*domain.CloudStorageConfig, error)
	Get(ctx context.Context, userID, id int64) (*domain.CloudStorageConfig, error)
	List(ctx context.Context, userID int64) ([]*domain.CloudStorageConfig, error)
	Delete(ctx context.Context, userID, id int64) error
	SetDefault(ctx context.Context, userID, id int64) error
	Test(ctx context.Context, userID, id int64) (*remote.ConnectionResult, error)
	ListObjects(ctx context.Context, userID, id int64) ([]remote.Object, error)
	// Client builds a connector with decrypted credentials. Internal callers only.
	Client(ctx context.Context, id int64) (storage.Storager, error)
}

type cloudStorageService struct {
	repo    domain.CloudStorageRepository
	cipher  *secret.Cipher
	factory storage.Factory
	drive   GoogleDriveConfig
	backup  *BackupServiceConfig
	logger  *zap.Logger
}

// NewCloudStorageService factory may be nil to use storage.NewClient.
func NewCloudStorageService(repo domain.CloudStorageRepository, cipher *secret.Cipher, factory storage.Factory, sc *ServiceConfig, logger *zap.Logger) CloudStorageService {
	if factory == nil {
		factory = storage.NewClient
	}
	return &cloudStorageService{
		repo:    repo,
		cipher:  cipher,
		factory: factory,
		drive:   sc.GoogleDrive,
		backup:  &sc.Backup,
		logger:  logger,
	}
}

func validateCloudStorage(c *domain.CloudStorageConfig) error {
	if !storage.IsCloud(c.StorageType) {
		return code.ErrorInvalidStorageType.WithDetails(c.StorageType)
	}
	if c.Name == "" {
		return code.ErrorInvalidParams.WithDetails("name is required")
	}
	var missing string
	switch c.StorageType {
	case storage.S3, storage.OSS:
		switch {
		case c.Bucket == "":
			missing = "bucket"
		case c.AccessKeyID == "":
			missing = "accessKeyId"
		case c.StorageType == storage.OSS && c.Endpoint == "":
			missing = "endpoint"
		}
	case storage.GoogleDrive:
		if c.RefreshToken == "" {
			missing = "refreshToken"
		}
	case storage.WebDAV:
		if c.Endpoint == "" && c.Host == "" {
			missing = "endpoint"
		}
	case storage.FTP:
		if c.Host == "" {
			missing = "host"
		}
	}
	if missing != "" {
		return code.ErrorInvalidParams.WithDetails(missing + " is required for " + c.StorageType)
	}
	return nil
}

// sealSecrets encrypts credential fields that are still plaintext.
func (s *cloudStorageService) sealSecrets(c *domain.CloudStorageConfig) error {
	for _, f := range []*string{&c.SecretAccessKey, &c.RefreshToken, &c.Password} {
		if *f == "" || secret.IsEncrypted(*f) {
			continue
		}
		enc, err := s.cipher.Encrypt(*f)
		if err != nil {
			return errors.Wrap(err, "encrypt storage credential")
		}
		*f = enc
	}
	return nil
}

func (s *cloudStorageService) Create(ctx context.Context, c *domain.CloudStorageConfig) (*domain.CloudStorageConfig, error) {
	if err := validateCloudStorage(c); err != nil {
		return nil, err
	}
	if err := s.sealSecrets(c); err != nil {
		return nil, err
	}
	created, err := s.repo.Create(ctx, c)
	if err != nil {
		return nil, code.ErrorDBQuery.WithDetails(err.Error())
	}
	if created.IsDefault {
		if err := s.repo.SetDefault(ctx, created.UserID, created.ID); err != nil {
			return nil, code.ErrorDBQuery.WithDetails(err.Error())
		}
	}
	return redactStorage(created), nil
}

// Update 更新配置，敏感字段为空时保留原值
func (s *cloudStorageService) Update(ctx context.Context, c *domain.CloudStorageConfig) (*domain.CloudStorageConfig, error) {
	old, err := s.load(ctx, c.UserID, c.ID)
	if err != nil {
		return nil, err
	}
	if c.SecretAccessKey == "" {
		c.SecretAccessKey = old.SecretAccessKey
	}
	if c.RefreshToken == "" {
		c.RefreshToken = old.RefreshToken
	}
	if c.Password == "" {
		c.Password = old.Password
	}
	if err := validateCloudStorage(c); err != nil {
		return nil, err
	}
	if err := s.sealSecrets(c); err != nil {
		return nil, err
	}
	c.CreatedAt = old.CreatedAt
	updated, err := s.repo.Update(ctx, c)
	if err != nil {
		return nil, code.ErrorDBQuery.WithDetails(err.Error())
	}
	if updated.IsDefault && !old.IsDefault {
		if err := s.repo.SetDefault(ctx, updated.UserID, updated.ID); err != nil {
			return nil, code.ErrorDBQuery.WithDetails(err.Error())
		}
	}
	return redactStorage(updated), nil
}

func (s *cloudStorageService) load(ctx context.Context, userID, id int64) (*domain.CloudStorageConfig, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, code.ErrorDBQuery.WithDetails(err.Error())
	}
	if c == nil {
		return nil, code.ErrorCloudStorageNotFound.WithDetails("id " + strconv.FormatInt(id, 10))
	}
	if c.UserID != userID {
		return nil, code.ErrorAccessDenied
	}
	return c, nil
}

func (s *cloudStorageService) Get(ctx context.Context, userID, id int64) (*domain.CloudStorageConfig, error) {
	c, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return redactStorage(c), nil
}

func (s *cloudStorageService) List(ctx context.Context, userID int64) ([]*domain.CloudStorageConfig, error) {
	list, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, code.ErrorDBQuery.WithDetails(err.Error())
	}
	for i := range list {
		list[i] = redactStorage(list[i])
	}
	return list, nil
}

func (s *cloudStorageService) Delete(ctx context.Context, userID, id int64) error {
	if _, err := s.load(ctx, userID, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *cloudStorageService) SetDefault(ctx context.Context, userID, id int64) error {
	if _, err := s.load(ctx, userID, id); err != nil {
		return err
	}
	return s.repo.SetDefault(ctx, userID, id)
}

func (s *cloudStorageService) Test(ctx context.Context, userID, id int64) (*remote.ConnectionResult, error) {
	if _, err := s.load(ctx, userID, id); err != nil {
		return nil, err
	}
	client, err := s.Client(ctx, id)
	if err != nil {
		return &remote.ConnectionResult{Success: false, Message: err.Error()}, nil
	}
	return storage.Check(ctx, client), nil
}

func (s *cloudStorageService) ListObjects(ctx context.Context, userID, id int64) ([]remote.Object, error) {
	if _, err := s.load(ctx, userID, id); err != nil {
		return nil, err
	}
	client, err := s.Client(ctx, id)
	if err != nil {
		return nil, err
	}
	return client.List(ctx)
}

func (s *cloudStorageService) Client(ctx context.Context, id int64) (storage.Storager, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, code.ErrorDBQuery.WithDetails(err.Error())
	}
	if c == nil {
		return nil, code.ErrorCloudStorageNotFound.WithDetails("id " + strconv.FormatInt(id, 10))
	}
	cfg, err := s.storageConfig(c)
	if err != nil {
		return nil, err
	}
	return s.factory(ctx, cfg, s.logger)
}

// storageConfig maps a stored config onto the connector config, decrypting secrets.
func (s *cloudStorageService) storageConfig(c *domain.CloudStorageConfig) (*storage.Config, error) {
	var plain [3]string
	for i, v := range []string{c.SecretAccessKey, c.RefreshToken, c.Password} {
		p, err := s.cipher.Decrypt(v)
		if err != nil {
			return nil, code.ErrorDecryptionFailed.WithDetails("stored storage credential")
		}
		plain[i] = p
	}
	cfg := &storage.Config{
		Type:            c.StorageType,
		CustomPath:      c.PathPrefix,
		Endpoint:        c.Endpoint,
		Region:          c.Region,
		BucketName:      c.Bucket,
		AccessKeyID:     c.AccessKeyID,
		AccessKeySecret: plain[0],
		UsePathStyle:    c.UsePathStyle,
		ClientID:        s.drive.ClientID,
		ClientSecret:    s.drive.ClientSecret,
		RefreshToken:    plain[1],
		FolderID:        c.FolderID,
		Host:            c.Host,
		Port:            c.Port,
		User:            c.Username,
		Password:        plain[2],
		UploadRateLimit: s.backup.UploadRateLimit,
	}
	if c.StorageType == storage.WebDAV && cfg.Endpoint == "" {
		cfg.Endpoint = c.Host
	}
	return cfg, nil
}

func redactStorage(c *domain.CloudStorageConfig) *domain.CloudStorageConfig {
	if c == nil {
		return nil
	}
	cp := *c
	cp.SecretAccessKey = ""
	cp.RefreshToken = ""
	cp.Password = ""
	return &cp
}
