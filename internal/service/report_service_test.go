package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/printlab/printlab-api/internal/models"
	"github.com/printlab/printlab-api/internal/repository"
	appErrors "github.com/printlab/printlab-api/pkg/errors"
	"github.com/printlab/printlab-api/pkg/export"
	"github.com/printlab/printlab-api/pkg/jobs"
)

type mockReportStore struct {
	reports map[string]*models.ReportJob
}

func newMockReportStore() *mockReportStore {
	return &mockReportStore{reports: make(map[string]*models.ReportJob)}
}

func (m *mockReportStore) Create(ctx context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = fmt.Sprintf("report-%d", len(m.reports)+1)
	}
	cp := *job
	m.reports[job.ID] = &cp
	return nil
}

func (m *mockReportStore) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	job, ok := m.reports[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *job
	return &cp, nil
}

func (m *mockReportStore) Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error {
	job, ok := m.reports[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.ResultPath != nil {
		job.ResultPath = params.ResultPath
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (m *mockReportStore) ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error) {
	var queued []models.ReportJob
	for _, job := range m.reports {
		if job.Status == models.ReportStatusQueued {
			queued = append(queued, *job)
		}
	}
	return queued, nil
}

func (m *mockReportStore) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error) {
	var finished []models.ReportJob
	for _, job := range m.reports {
		if job.Status == models.ReportStatusFinished && job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			finished = append(finished, *job)
		}
	}
	return finished, nil
}

type mockUsage struct {
	rows []models.UsageRow
	err  error
}

func (m *mockUsage) UsageBetween(ctx context.Context, from, to time.Time) ([]models.UsageRow, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.rows, nil
}

type mockDispatcher struct {
	enqueued []jobs.Task
	err      error
}

func (m *mockDispatcher) Enqueue(task jobs.Task) error {
	if m.err != nil {
		return m.err
	}
	m.enqueued = append(m.enqueued, task)
	return nil
}

type mockReportFiles struct {
	files map[string][]byte
}

func newMockReportFiles() *mockReportFiles {
	return &mockReportFiles{files: make(map[string][]byte)}
}

func (m *mockReportFiles) SaveStream(relPath string, r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	m.files[relPath] = data
	return int64(len(data)), nil
}

func (m *mockReportFiles) Open(relPath string) (*os.File, error) {
	data, ok := m.files[relPath]
	if !ok {
		return nil, os.ErrNotExist
	}
	f, err := os.CreateTemp(os.TempDir(), "report-test-*")
	if err != nil {
		return nil, err
	}
	if _, err := f.Write(data); err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return f, nil
}

func (m *mockReportFiles) Delete(relPath string) error {
	delete(m.files, relPath)
	return nil
}

type mockReportSigner struct{}

func (m *mockReportSigner) Generate(jobID, relPath string) (string, time.Time, error) {
	return jobID + "|" + relPath, time.Now().Add(time.Hour), nil
}

func (m *mockReportSigner) Parse(token string) (string, string, time.Time, error) {
	parts := strings.SplitN(token, "|", 2)
	if len(parts) != 2 {
		return "", "", time.Time{}, errors.New("bad token")
	}
	return parts[0], parts[1], time.Now().Add(time.Hour), nil
}

func newReportService(store *mockReportStore, queue *mockDispatcher, files *mockReportFiles) *ReportService {
	return NewReportService(store, queue, files, &mockReportSigner{}, zap.NewNop(), ReportServiceConfig{
		ResultTTL: 24 * time.Hour,
	})
}

func TestReportCreateQueues(t *testing.T) {
	store := newMockReportStore()
	queue := &mockDispatcher{}
	svc := newReportService(store, queue, newMockReportFiles())

	view, err := svc.Create(context.Background(), CreateReportRequest{From: "2026-08-01", To: "2026-08-31"}, staffActor)
	require.NoError(t, err)

	assert.Equal(t, models.ReportStatusQueued, view.Status)
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, view.ID, queue.enqueued[0].ID)

	stored := store.reports[view.ID]
	require.NotNil(t, stored)
	assert.Equal(t, staffActor.ID, stored.CreatedBy)
	// The window upper bound includes the whole final day.
	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), stored.Params.To)
}

func TestReportCreateRejectsBadWindow(t *testing.T) {
	store := newMockReportStore()
	queue := &mockDispatcher{}
	svc := newReportService(store, queue, newMockReportFiles())

	_, err := svc.Create(context.Background(), CreateReportRequest{From: "August 1st", To: "2026-08-31"}, staffActor)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.Create(context.Background(), CreateReportRequest{From: "2026-08-31", To: "2026-08-01"}, staffActor)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	assert.Empty(t, queue.enqueued)
	assert.Empty(t, store.reports)
}

func TestReportCreateEnqueueFailureMarksFailed(t *testing.T) {
	store := newMockReportStore()
	queue := &mockDispatcher{err: errors.New("queue stopped")}
	svc := newReportService(store, queue, newMockReportFiles())

	_, err := svc.Create(context.Background(), CreateReportRequest{From: "2026-08-01", To: "2026-08-31"}, staffActor)
	require.Error(t, err)

	require.Len(t, store.reports, 1)
	for _, job := range store.reports {
		assert.Equal(t, models.ReportStatusFailed, job.Status)
		require.NotNil(t, job.ErrorMessage)
	}
}

func seedReport(store *mockReportStore, id string, status models.ReportStatus) *models.ReportJob {
	job := &models.ReportJob{
		ID: id,
		Params: models.ReportParams{
			From: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
			To:   time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		},
		Status:    status,
		CreatedBy: "tech-1",
		CreatedAt: time.Now().UTC(),
	}
	store.reports[id] = job
	return job
}

func TestReportWorkerGeneratesPDF(t *testing.T) {
	store := newMockReportStore()
	files := newMockReportFiles()
	seedReport(store, "report-1", models.ReportStatusQueued)
	usage := &mockUsage{rows: []models.UsageRow{
		{UserID: "student-1", FullName: "Student One", Email: "student1@school.edu", JobsTotal: 4, JobsCompleted: 3, TotalHours: 6.5, TotalSpent: 21.0},
	}}
	worker := NewReportWorker(store, usage, export.NewUsageRenderer("PrintLab"), files, 3, zap.NewNop())

	require.NoError(t, worker.Handle(context.Background(), jobs.Task{ID: "report-1", Kind: "usage-report"}))

	job := store.reports["report-1"]
	assert.Equal(t, models.ReportStatusFinished, job.Status)
	assert.Equal(t, 100, job.Progress)
	require.NotNil(t, job.FinishedAt)
	require.NotNil(t, job.ResultPath)

	pdf := files.files[*job.ResultPath]
	require.NotEmpty(t, pdf)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
}

func TestReportWorkerRequeuesBeforeGivingUp(t *testing.T) {
	store := newMockReportStore()
	files := newMockReportFiles()
	seedReport(store, "report-1", models.ReportStatusQueued)
	usage := &mockUsage{err: errors.New("db gone")}
	worker := NewReportWorker(store, usage, export.NewUsageRenderer("PrintLab"), files, 3, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Task{ID: "report-1", Attempt: 1})
	require.Error(t, err)
	assert.Equal(t, models.ReportStatusQueued, store.reports["report-1"].Status)

	err = worker.Handle(context.Background(), jobs.Task{ID: "report-1", Attempt: 3})
	require.Error(t, err)
	job := store.reports["report-1"]
	assert.Equal(t, models.ReportStatusFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
	assert.Contains(t, *job.ErrorMessage, "db gone")
}

func TestReportStatusVisibility(t *testing.T) {
	store := newMockReportStore()
	svc := newReportService(store, &mockDispatcher{}, newMockReportFiles())

	job := seedReport(store, "report-1", models.ReportStatusFinished)
	path := "reports/report-1.pdf"
	job.ResultPath = &path

	view, err := svc.Status(context.Background(), "report-1", staffActor)
	require.NoError(t, err)
	assert.Equal(t, "report-1|reports/report-1.pdf", view.DownloadToken)

	view, err = svc.Status(context.Background(), "report-1", adminActor)
	require.NoError(t, err)
	assert.NotEmpty(t, view.DownloadToken)

	otherTech := Actor{ID: "tech-2", Role: models.RoleTechnician}
	_, err = svc.Status(context.Background(), "report-1", otherTech)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = svc.Status(context.Background(), "ghost", staffActor)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestReportDownloadRoundTrip(t *testing.T) {
	store := newMockReportStore()
	files := newMockReportFiles()
	svc := newReportService(store, &mockDispatcher{}, files)

	job := seedReport(store, "report-1", models.ReportStatusFinished)
	path := "reports/report-1.pdf"
	job.ResultPath = &path
	files.files[path] = []byte("%PDF-1.4 usage")

	download, err := svc.ResolveDownload(context.Background(), "report-1|reports/report-1.pdf")
	require.NoError(t, err)
	defer download.File.Close()

	data, err := io.ReadAll(download.File)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 usage", string(data))
	assert.Equal(t, "report-1.pdf", download.Filename)

	// A token pointing at a different file never resolves.
	_, err = svc.ResolveDownload(context.Background(), "report-1|reports/other.pdf")
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))

	// Unfinished reports are not downloadable either.
	seedReport(store, "report-2", models.ReportStatusProcessing)
	_, err = svc.ResolveDownload(context.Background(), "report-2|reports/report-2.pdf")
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestReportRecoverPendingRequeues(t *testing.T) {
	store := newMockReportStore()
	queue := &mockDispatcher{}
	svc := newReportService(store, queue, newMockReportFiles())

	seedReport(store, "report-1", models.ReportStatusQueued)
	seedReport(store, "report-2", models.ReportStatusFinished)

	svc.RecoverPending(context.Background())
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, "report-1", queue.enqueued[0].ID)
}

func TestReportCleanupDeletesExpired(t *testing.T) {
	store := newMockReportStore()
	files := newMockReportFiles()
	svc := newReportService(store, &mockDispatcher{}, files)

	job := seedReport(store, "report-1", models.ReportStatusFinished)
	path := "reports/report-1.pdf"
	job.ResultPath = &path
	old := time.Now().UTC().Add(-48 * time.Hour)
	job.FinishedAt = &old
	files.files[path] = []byte("%PDF stale")

	svc.cleanupExpired(context.Background())

	assert.Empty(t, files.files)
	require.NotNil(t, store.reports["report-1"].ResultPath)
	assert.Empty(t, *store.reports["report-1"].ResultPath)
}
