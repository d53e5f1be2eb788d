package service

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/haierkeys/fast-db-backup-service/internal/domain"
	"github.com/haierkeys/fast-db-backup-service/internal/metrics"
	"github.com/haierkeys/fast-db-backup-service/pkg/archive"
	"github.com/haierkeys/fast-db-backup-service/pkg/code"
	"github.com/haierkeys/fast-db-backup-service/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Verification levels
const (
	VerifyBasic    = "BASIC"
	VerifyChecksum = "CHECKSUM"
	VerifyFull     = "FULL"
)

// Check names reported in a verification report.
const (
	CheckFileExists    = "file_exists"
	CheckFileSize      = "file_size"
	CheckChecksum      = "checksum"
	CheckGzipIntegrity = "gzip_integrity"
)

// CheckResult 单项校验结果
type CheckResult struct {
	Check   string `json:"check"`
	Passed  bool   `json:"passed"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// VerificationReport 校验报告
type VerificationReport struct {
	HistoryID  int64         `json:"historyId"`
	Level      string        `json:"level"`
	Status     string        `json:"status"`
	Checks     []CheckResult `json:"checks"`
	VerifiedAt time.Time     `json:"verifiedAt"`
}

func (r *VerificationReport) add(c CheckResult) {
	r.Checks = append(r.Checks, c)
}

func (r *VerificationReport) failed() []string {
	var names []string
	for _, c := range r.Checks {
		if !c.Passed {
			names = append(names, c.Check)
		}
	}
	return names
}

// VerifyService 备份校验服务接口
type VerifyService interface {
	VerifyBackup(ctx context.Context, historyID int64, level string) (*VerificationReport, error)
}

type verifyService struct {
	historyRepo domain.BackupHistoryRepository
	storages    StorageClientProvider
	metrics     *metrics.Metrics
	config      *BackupServiceConfig
	logger      *zap.Logger
	sf          *singleflight.Group

	now func() time.Time
}

// NewVerifyService 创建 VerifyService 实例
func NewVerifyService(historyRepo domain.BackupHistoryRepository, storages StorageClientProvider, m *metrics.Metrics, config *BackupServiceConfig, logger *zap.Logger) VerifyService {
	return &verifyService{
		historyRepo: historyRepo,
		storages:    storages,
		metrics:     m,
		config:      config,
		logger:      logger,
		sf:          &singleflight.Group{},
		now:         time.Now,
	}
}

// NormalizeVerifyLevel 规范化校验级别，空值视为 BASIC
func NormalizeVerifyLevel(level string) (string, error) {
	level = strings.ToUpper(strings.TrimSpace(level))
	switch level {
	case "":
		return VerifyBasic, nil
	case VerifyBasic, VerifyChecksum, VerifyFull:
		return level, nil
	}
	return "", code.ErrorInvalidVerifyLevel.WithDetails(level)
}

// VerifyBackup checks the artifact of a history at the given level and persists the
// outcome. A report that is not PASSED is returned together with ErrorVerificationFailed.
// Concurrent calls for the same history and level share one run.
func (s *verifyService) VerifyBackup(ctx context.Context, historyID int64, level string) (*VerificationReport, error) {
	level, err := NormalizeVerifyLevel(level)
	if err != nil {
		return nil, err
	}

	key := strconv.FormatInt(historyID, 10) + ":" + level
	v, err, _ := s.sf.Do(key, func() (any, error) {
		return s.verify(ctx, historyID, level)
	})
	report, _ := v.(*VerificationReport)
	return report, err
}

func (s *verifyService) verify(ctx context.Context, historyID int64, level string) (*VerificationReport, error) {
	h, err := s.historyRepo.GetByID(ctx, historyID)
	if err != nil {
		return nil, code.ErrorDBQuery.WithDetails(err.Error())
	}
	if h == nil {
		return nil, code.ErrorBackupHistoryNotFound.WithDetails("id " + strconv.FormatInt(historyID, 10))
	}
	if h.Status != domain.BackupStatusSuccess {
		return nil, code.ErrorInvalidParams.WithDetails("only successful backups can be verified")
	}

	report := &VerificationReport{HistoryID: h.ID, Level: level}

	var temps tempFiles
	defer temps.cleanup()

	s.runChecks(ctx, h, level, report, &temps)

	report.Status = domain.VerificationPassed
	if len(report.failed()) > 0 {
		report.Status = domain.VerificationFailed
	}
	report.VerifiedAt = s.now().UTC()

	saveCtx := context.WithoutCancel(ctx)
	if err := s.historyRepo.UpdateVerification(saveCtx, h.ID, report.Status, level, report.VerifiedAt); err != nil {
		s.logger.Error("persist verification result failed", zap.Int64(logger.FieldHistoryID, h.ID), zap.Error(err))
	}
	s.metrics.ObserveVerification(level, report.Status)

	if report.Status != domain.VerificationPassed {
		s.logger.Warn("backup verification failed",
			zap.Int64(logger.FieldHistoryID, h.ID),
			zap.String("level", level),
			zap.Strings("failed", report.failed()))
		return report, code.ErrorVerificationFailed.WithDetails(strings.Join(report.failed(), ", "))
	}
	return report, nil
}

func (s *verifyService) runChecks(ctx context.Context, h *domain.BackupHistory, level string, report *VerificationReport, temps *tempFiles) {
	path, err := localArtifact(ctx, s.storages, s.config.TempDir(), h, temps)
	if err != nil {
		report.add(CheckResult{Check: CheckFileExists, Passed: false, Message: "artifact not accessible", Error: err.Error()})
		return
	}
	report.add(CheckResult{Check: CheckFileExists, Passed: true, Message: "artifact found"})

	fi, err := os.Stat(path)
	if err != nil {
		report.add(CheckResult{Check: CheckFileSize, Passed: false, Error: err.Error()})
		return
	}
	if fi.Size() == h.FileSize {
		report.add(CheckResult{Check: CheckFileSize, Passed: true, Message: "size matches: " + strconv.FormatInt(fi.Size(), 10)})
	} else {
		report.add(CheckResult{
			Check:   CheckFileSize,
			Passed:  false,
			Message: "expected " + strconv.FormatInt(h.FileSize, 10) + " bytes, found " + strconv.FormatInt(fi.Size(), 10),
		})
	}

	if level == VerifyBasic {
		return
	}

	switch sum, err := archive.SHA256File(path); {
	case err != nil:
		report.add(CheckResult{Check: CheckChecksum, Passed: false, Error: err.Error()})
	case h.Checksum == "":
		report.add(CheckResult{Check: CheckChecksum, Passed: false, Message: "no checksum recorded for this backup"})
	case !strings.EqualFold(sum, h.Checksum):
		report.add(CheckResult{Check: CheckChecksum, Passed: false, Message: "checksum mismatch"})
	default:
		report.add(CheckResult{Check: CheckChecksum, Passed: true, Message: "sha256 matches"})
	}

	if level == VerifyFull && !h.IsEncrypted && archive.IsGzip(h.FileName) {
		if err := archive.CheckGzip(ctx, path); err != nil {
			report.add(CheckResult{Check: CheckGzipIntegrity, Passed: false, Error: err.Error()})
		} else {
			report.add(CheckResult{Check: CheckGzipIntegrity, Passed: true, Message: "gzip stream is intact"})
		}
	}
}
