package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/printlab/printlab-api/internal/models"
	"github.com/printlab/printlab-api/internal/repository"
	appErrors "github.com/printlab/printlab-api/pkg/errors"
	"github.com/printlab/printlab-api/pkg/jobs"
)

type reportStore interface {
	Create(ctx context.Context, job *models.ReportJob) error
	GetByID(ctx context.Context, id string) (*models.ReportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error)
}

type usageSource interface {
	UsageBetween(ctx context.Context, from, to time.Time) ([]models.UsageRow, error)
}

type jobDispatcher interface {
	Enqueue(task jobs.Task) error
}

type usageRenderer interface {
	Render(from, to time.Time, rows []models.UsageRow) ([]byte, error)
}

type reportStorage interface {
	SaveStream(relPath string, r io.Reader) (int64, error)
	Open(relPath string) (*os.File, error)
	Delete(relPath string) error
}

type reportSigner interface {
	Generate(jobID, relPath string) (string, time.Time, error)
	Parse(token string) (jobID, relPath string, expiresAt time.Time, err error)
}

// CreateReportRequest is the payload for requesting a usage report.
type CreateReportRequest struct {
	From string `json:"from" binding:"required"`
	To   string `json:"to" binding:"required"`
}

// ReportStatusView exposes report progress to clients. DownloadToken is only
// set once the PDF is ready.
type ReportStatusView struct {
	ID            string              `json:"id"`
	Status        models.ReportStatus `json:"status"`
	Progress      int                 `json:"progress"`
	DownloadToken string              `json:"download_token,omitempty"`
	Error         string              `json:"error,omitempty"`
}

// ReportDownload aggregates resolved download data.
type ReportDownload struct {
	File      *os.File
	Filename  string
	ExpiresAt time.Time
}

// ReportServiceConfig governs queue recovery and cleanup.
type ReportServiceConfig struct {
	ResultTTL       time.Duration
	CleanupInterval time.Duration
}

// ReportService orchestrates asynchronous usage report generation. Reports
// are rendered by a queue worker; clients poll status and download the PDF
// through a signed token.
type ReportService struct {
	repo    reportStore
	queue   jobDispatcher
	storage reportStorage
	signer  reportSigner
	logger  *zap.Logger
	cfg     ReportServiceConfig
}

// NewReportService constructs the report service.
func NewReportService(repo reportStore, queue jobDispatcher, storage reportStorage, signer reportSigner, logger *zap.Logger, cfg ReportServiceConfig) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ReportService{
		repo:    repo,
		queue:   queue,
		storage: storage,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
	}
}

// Create validates the window, persists the job, and enqueues processing.
func (s *ReportService) Create(ctx context.Context, req CreateReportRequest, actor Actor) (*ReportStatusView, error) {
	from, err := time.Parse("2006-01-02", req.From)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "from must be a YYYY-MM-DD date")
	}
	to, err := time.Parse("2006-01-02", req.To)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "to must be a YYYY-MM-DD date")
	}
	// The upper bound is exclusive, so push it past the named day.
	to = to.AddDate(0, 0, 1)
	if !to.After(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "to must not precede from")
	}

	job := &models.ReportJob{
		Params:    models.ReportParams{From: from, To: to},
		Status:    models.ReportStatusQueued,
		CreatedBy: actor.ID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, mapStoreErr(err, "report job")
	}
	if err := s.queue.Enqueue(jobs.Task{ID: job.ID, Kind: "usage-report"}); err != nil {
		status := models.ReportStatusFailed
		msg := "failed to enqueue report"
		progress := 100
		now := time.Now().UTC()
		_ = s.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{
			Status:       &status,
			Progress:     &progress,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		})
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue report job")
	}

	s.logger.Info("usage report queued",
		zap.String("report_id", job.ID),
		zap.String("created_by", actor.ID))
	return &ReportStatusView{ID: job.ID, Status: job.Status, Progress: job.Progress}, nil
}

// Status returns progress metadata. Technicians only see their own reports;
// admins see everything.
func (s *ReportService) Status(ctx context.Context, id string, actor Actor) (*ReportStatusView, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err, "report job not found")
	}
	if actor.Role != models.RoleAdmin && job.CreatedBy != actor.ID {
		return nil, appErrors.ErrForbidden
	}

	view := &ReportStatusView{ID: job.ID, Status: job.Status, Progress: job.Progress}
	if job.ErrorMessage != nil {
		view.Error = *job.ErrorMessage
	}
	if job.Status == models.ReportStatusFinished && job.ResultPath != nil {
		token, _, err := s.signer.Generate(job.ID, *job.ResultPath)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign report download")
		}
		view.DownloadToken = token
	}
	return view, nil
}

// ResolveDownload validates the token and opens the stored PDF.
func (s *ReportService) ResolveDownload(ctx context.Context, token string) (*ReportDownload, error) {
	reportID, relPath, expiresAt, err := s.signer.Parse(token)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}
	job, err := s.repo.GetByID(ctx, reportID)
	if err != nil {
		return nil, mapStoreErr(err, "report job not found")
	}
	if job.Status != models.ReportStatusFinished || job.ResultPath == nil || *job.ResultPath != relPath {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "download token does not match the report")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open report file")
	}
	return &ReportDownload{
		File:      file,
		Filename:  filepath.Base(relPath),
		ExpiresAt: expiresAt,
	}, nil
}

// RecoverPending replays queued jobs after a process restart.
func (s *ReportService) RecoverPending(ctx context.Context) {
	pending, err := s.repo.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Warn("failed to recover queued reports", zap.Error(err))
		return
	}
	for _, job := range pending {
		if err := s.queue.Enqueue(jobs.Task{ID: job.ID, Kind: "usage-report"}); err != nil {
			s.logger.Warn("failed to requeue report", zap.String("report_id", job.ID), zap.Error(err))
		}
	}
}

// StartCleanup boots a goroutine that purges expired report files.
func (s *ReportService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupExpired(ctx)
			}
		}
	}()
}

func (s *ReportService) cleanupExpired(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.cfg.ResultTTL)
	expired, err := s.repo.ListFinishedBefore(ctx, cutoff, 100)
	if err != nil {
		s.logger.Warn("report cleanup list failed", zap.Error(err))
		return
	}
	for _, job := range expired {
		if job.ResultPath == nil {
			continue
		}
		if err := s.storage.Delete(*job.ResultPath); err != nil {
			s.logger.Warn("report cleanup delete failed", zap.String("report_id", job.ID), zap.Error(err))
			continue
		}
		cleared := ""
		_ = s.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{ResultPath: &cleared})
	}
}

// ReportWorker bridges queue jobs to the renderer.
type ReportWorker struct {
	repo       reportStore
	usage      usageSource
	renderer   usageRenderer
	storage    reportStorage
	logger     *zap.Logger
	maxRetries int
}

// NewReportWorker constructs a worker.
func NewReportWorker(repo reportStore, usage usageSource, renderer usageRenderer, storage reportStorage, maxRetries int, logger *zap.Logger) *ReportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &ReportWorker{
		repo:       repo,
		usage:      usage,
		renderer:   renderer,
		storage:    storage,
		logger:     logger,
		maxRetries: maxRetries,
	}
}

// Handle processes one queued report.
func (w *ReportWorker) Handle(ctx context.Context, task jobs.Task) error {
	record, err := w.repo.GetByID(ctx, task.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			w.logger.Warn("queued report vanished", zap.String("report_id", task.ID))
			return nil
		}
		return err
	}

	processing := models.ReportStatusProcessing
	progress := 10
	if err := w.repo.Update(ctx, task.ID, repository.UpdateReportJobParams{
		Status:   &processing,
		Progress: &progress,
	}); err != nil {
		return err
	}

	relPath, err := w.generate(ctx, record)
	if err != nil {
		w.recordFailure(ctx, task, err)
		return err
	}

	finished := models.ReportStatusFinished
	progress = 100
	now := time.Now().UTC()
	cleared := ""
	if err := w.repo.Update(ctx, task.ID, repository.UpdateReportJobParams{
		Status:       &finished,
		Progress:     &progress,
		ResultPath:   &relPath,
		ErrorMessage: &cleared,
		FinishedAt:   &now,
	}); err != nil {
		w.logger.Warn("failed to mark report finished", zap.String("report_id", task.ID), zap.Error(err))
		return err
	}
	return nil
}

func (w *ReportWorker) generate(ctx context.Context, record *models.ReportJob) (string, error) {
	rows, err := w.usage.UsageBetween(ctx, record.Params.From, record.Params.To)
	if err != nil {
		return "", fmt.Errorf("aggregate usage: %w", err)
	}
	pdf, err := w.renderer.Render(record.Params.From, record.Params.To, rows)
	if err != nil {
		return "", err
	}
	relPath := fmt.Sprintf("reports/%s.pdf", record.ID)
	if _, err := w.storage.SaveStream(relPath, bytes.NewReader(pdf)); err != nil {
		return "", fmt.Errorf("store report: %w", err)
	}
	return relPath, nil
}

func (w *ReportWorker) recordFailure(ctx context.Context, task jobs.Task, cause error) {
	msg := cause.Error()
	if task.Attempt >= w.maxRetries {
		failed := models.ReportStatusFailed
		progress := 100
		now := time.Now().UTC()
		if err := w.repo.Update(ctx, task.ID, repository.UpdateReportJobParams{
			Status:       &failed,
			Progress:     &progress,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		}); err != nil {
			w.logger.Warn("failed to mark report failed", zap.String("report_id", task.ID), zap.Error(err))
		}
		return
	}
	queued := models.ReportStatusQueued
	reset := 0
	if err := w.repo.Update(ctx, task.ID, repository.UpdateReportJobParams{
		Status:       &queued,
		Progress:     &reset,
		ErrorMessage: &msg,
	}); err != nil {
		w.logger.Warn("failed to requeue report", zap.String("report_id", task.ID), zap.Error(err))
	}
}
