package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/haierkeys/fast-db-backup-service/internal/domain"
	"github.com/haierkeys/fast-db-backup-service/pkg/database"
	"github.com/haierkeys/fast-db-backup-service/pkg/database/dbcore"
	"github.com/haierkeys/fast-db-backup-service/pkg/storage"
	"github.com/haierkeys/fast-db-backup-service/pkg/storage/remote"
	"go.uber.org/zap"
)

type mockJobRepo struct {
	domain.BackupJobRepository
	mu     sync.Mutex
	jobs   map[int64]*domain.BackupJob
	nextID int64
}

func newMockJobRepo(jobs ...*domain.BackupJob) *mockJobRepo {
	r := &mockJobRepo{jobs: map[int64]*domain.BackupJob{}}
	for _, j := range jobs {
		r.jobs[j.ID] = j
		if j.ID > r.nextID {
			r.nextID = j.ID
		}
	}
	return r
}

func (m *mockJobRepo) GetByID(ctx context.Context, id int64) (*domain.BackupJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, nil
	}
	cp := *j
	return &cp, nil
}

func (m *mockJobRepo) ListActive(ctx context.Context) ([]*domain.BackupJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.BackupJob
	for _, j := range m.jobs {
		if j.IsActive {
			cp := *j
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out, nil
}

func (m *mockJobRepo) ListByUserID(ctx context.Context, userID int64, filter domain.JobFilter) ([]*domain.BackupJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.BackupJob
	for _, j := range m.jobs {
		if j.UserID == userID {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockJobRepo) Create(ctx context.Context, job *domain.BackupJob) (*domain.BackupJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	cp := *job
	cp.ID = m.nextID
	m.jobs[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *mockJobRepo) Update(ctx context.Context, job *domain.BackupJob) (*domain.BackupJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.jobs[job.ID] = &cp
	out := cp
	return &out, nil
}

func (m *mockJobRepo) UpdateRunTimes(ctx context.Context, id int64, lastRunAt, nextRunAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil
	}
	if lastRunAt != nil {
		t := *lastRunAt
		j.LastRunAt = &t
	}
	j.NextRunAt = nil
	if nextRunAt != nil {
		t := *nextRunAt
		j.NextRunAt = &t
	}
	return nil
}

func (m *mockJobRepo) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
	return nil
}

type mockHistoryRepo struct {
	domain.BackupHistoryRepository
	mu     sync.Mutex
	rows   map[int64]*domain.BackupHistory
	nextID int64
}

func newMockHistoryRepo(rows ...*domain.BackupHistory) *mockHistoryRepo {
	r := &mockHistoryRepo{rows: map[int64]*domain.BackupHistory{}}
	for _, h := range rows {
		r.rows[h.ID] = h
		if h.ID > r.nextID {
			r.nextID = h.ID
		}
	}
	return r
}

func (m *mockHistoryRepo) GetByID(ctx context.Context, id int64) (*domain.BackupHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *h
	return &cp, nil
}

func (m *mockHistoryRepo) Create(ctx context.Context, h *domain.BackupHistory) (*domain.BackupHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	cp := *h
	cp.ID = m.nextID
	m.rows[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *mockHistoryRepo) UpdateStatus(ctx context.Context, id int64, r *domain.HistoryResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.rows[id]
	if !ok || h.Status != domain.BackupStatusRunning {
		return errors.New("history is not running")
	}
	applyResult(h, r)
	return nil
}

func (m *mockHistoryRepo) UpdateVerification(ctx context.Context, id int64, status, method string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.rows[id]
	h.VerificationStatus = status
	h.VerificationMethod = method
	h.VerifiedAt = &at
	return nil
}

func (m *mockHistoryRepo) ListExpired(ctx context.Context, jobID int64, before time.Time) ([]*domain.BackupHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.BackupHistory
	for _, h := range m.rows {
		if h.BackupJobID == jobID && h.Status == domain.BackupStatusSuccess && h.StartedAt.Before(before) {
			cp := *h
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out, nil
}

func (m *mockHistoryRepo) ListStaleRunning(ctx context.Context, before time.Time) ([]*domain.BackupHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.BackupHistory
	for _, h := range m.rows {
		if h.Status == domain.BackupStatusRunning && h.StartedAt.Before(before) {
			cp := *h
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out, nil
}

func (m *mockHistoryRepo) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

func (m *mockHistoryRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func (m *mockHistoryRepo) has(id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[id]
	return ok
}

type mockCredentials struct {
	cfg *dbcore.Config
}

func (m *mockCredentials) GetDatabaseConfig(ctx context.Context, databaseID int64) (*dbcore.Config, error) {
	cp := *m.cfg
	return &cp, nil
}

// mockConnector writes a fixed dump and records restores.
type mockConnector struct {
	ext     string
	dump    []byte
	err     error
	started chan struct{}
	block   chan struct{}

	mu       sync.Mutex
	restored []byte
}

func (c *mockConnector) factory() database.Factory {
	return func(cfg *dbcore.Config, logger *zap.Logger) (database.Connector, error) {
		return c, nil
	}
}

func (c *mockConnector) TestConnection(ctx context.Context) *dbcore.ConnectionResult {
	return &dbcore.ConnectionResult{Success: true, Message: "ok"}
}

func (c *mockConnector) CreateBackup(ctx context.Context, outputDir string) (*dbcore.BackupResult, error) {
	if c.started != nil {
		close(c.started)
	}
	if c.block != nil {
		<-c.block
	}
	if c.err != nil {
		return nil, c.err
	}
	name := dbcore.ArtifactName("app", c.ext, time.Now())
	p := filepath.Join(outputDir, name)
	if err := os.WriteFile(p, c.dump, 0o600); err != nil {
		return nil, err
	}
	return &dbcore.BackupResult{FileName: name, FilePath: p, FileSize: int64(len(c.dump))}, nil
}

func (c *mockConnector) RestoreBackup(ctx context.Context, artifactPath string) (*dbcore.RestoreResult, error) {
	data, err := os.ReadFile(artifactPath)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.restored = data
	c.mu.Unlock()
	return &dbcore.RestoreResult{Message: "restored"}, nil
}

func (c *mockConnector) GetDatabaseSize(ctx context.Context) (int64, error) {
	return int64(len(c.dump)), nil
}

// mockStorage keeps uploaded objects in memory.
type mockStorage struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
	deleteErr map[string]error
	deleted   []string
}

func newMockStorage() *mockStorage {
	return &mockStorage{objects: map[string][]byte{}, deleteErr: map[string]error{}}
}

func (s *mockStorage) TestConnection(ctx context.Context) error { return nil }

func (s *mockStorage) Upload(ctx context.Context, localPath, remoteName string) (*remote.UploadResult, error) {
	if s.uploadErr != nil {
		return nil, s.uploadErr
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return nil, err
	}
	key := "backups/" + remoteName
	s.mu.Lock()
	s.objects[key] = data
	s.mu.Unlock()
	return &remote.UploadResult{Key: key, FileSize: int64(len(data))}, nil
}

func (s *mockStorage) Download(ctx context.Context, ref, localPath string) (*remote.DownloadResult, error) {
	s.mu.Lock()
	data, ok := s.objects[ref]
	s.mu.Unlock()
	if !ok {
		return nil, os.ErrNotExist
	}
	if err := os.WriteFile(localPath, data, 0o600); err != nil {
		return nil, err
	}
	return &remote.DownloadResult{FilePath: localPath, FileSize: int64(len(data))}, nil
}

func (s *mockStorage) Delete(ctx context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.deleteErr[ref]; err != nil {
		return err
	}
	delete(s.objects, ref)
	s.deleted = append(s.deleted, ref)
	return nil
}

func (s *mockStorage) List(ctx context.Context) ([]remote.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []remote.Object
	for k, v := range s.objects {
		out = append(out, remote.Object{Key: k, Name: filepath.Base(k), Size: int64(len(v))})
	}
	return out, nil
}

type mockStorageProvider struct {
	client storage.Storager
}

func (p *mockStorageProvider) Client(ctx context.Context, id int64) (storage.Storager, error) {
	return p.client, nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	subjects []string
}

func (n *recordingNotifier) SendBackupNotification(ctx context.Context, userID int64, subject, text, html string) *NotificationResult {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subjects = append(n.subjects, subject)
	return &NotificationResult{Success: true}
}

func dirEntries(dir string) []string {
	entries, _ := os.ReadDir(dir)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

