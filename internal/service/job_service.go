package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/printlab/printlab-api/internal/models"
	"github.com/printlab/printlab-api/pkg/config"
	appErrors "github.com/printlab/printlab-api/pkg/errors"
)

type jobRepository interface {
	Create(ctx context.Context, job *models.PrintJob) error
	FindByID(ctx context.Context, id string) (*models.PrintJob, error)
	FindDetailByID(ctx context.Context, id string) (*models.JobDetail, error)
	List(ctx context.Context, filter models.JobFilter) ([]models.JobDetail, int, error)
	ListEvents(ctx context.Context, jobID string) ([]models.JobEvent, error)
}

type uploadStore interface {
	SaveStream(relPath string, r io.Reader) (int64, error)
	Open(relPath string) (*os.File, error)
	Delete(relPath string) error
}

type downloadSigner interface {
	Generate(jobID, relPath string) (string, time.Time, error)
	Parse(token string) (jobID, relPath string, expiresAt time.Time, err error)
}

type receiptRenderer interface {
	Render(job *models.JobDetail) ([]byte, error)
}

// CreateJobRequest carries the metadata accompanying a model upload.
type CreateJobRequest struct {
	Material        string  `form:"material" json:"material" validate:"required"`
	MaterialWeightG float64 `form:"material_weight_g" json:"material_weight_g" validate:"required,gt=0"`
	EstimatedHours  float64 `form:"estimated_hours" json:"estimated_hours" validate:"required,gt=0"`
	LayerHeightMM   float64 `form:"layer_height_mm" json:"layer_height_mm" validate:"gte=0"`
	InfillPercent   int     `form:"infill_percent" json:"infill_percent" validate:"gte=0,lte=100"`
	Supports        bool    `form:"supports" json:"supports"`
	Priority        int     `form:"priority" json:"priority" validate:"gte=0,lte=10"`
	Notes           string  `form:"notes" json:"notes"`
}

// JobService handles job creation, reads and file access. All status changes
// go through the LifecycleService; nothing here mutates a stored job.
type JobService struct {
	repo      jobRepository
	uploads   uploadStore
	signer    downloadSigner
	receipts  receiptRenderer
	cfg       config.UploadsConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewJobService constructs JobService.
func NewJobService(repo jobRepository, uploads uploadStore, signer downloadSigner, receipts receiptRenderer, cfg config.UploadsConfig, validate *validator.Validate, logger *zap.Logger) *JobService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobService{repo: repo, uploads: uploads, signer: signer, receipts: receipts, cfg: cfg, validator: validate, logger: logger}
}

// Create stores the uploaded model file and registers a PENDING job.
func (s *JobService) Create(ctx context.Context, userID string, req CreateJobRequest, fileName string, fileSize int64, file io.Reader) (*models.PrintJob, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid job payload")
	}
	material := models.Material(strings.ToUpper(req.Material))
	if !material.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown material %q", req.Material))
	}
	if err := s.checkFile(fileName, fileSize); err != nil {
		return nil, err
	}

	priority := req.Priority
	if priority == 0 {
		priority = 5
	}

	job := &models.PrintJob{
		UserID:          userID,
		FileName:        filepath.Base(fileName),
		Material:        material,
		MaterialWeightG: req.MaterialWeightG,
		EstimatedHours:  req.EstimatedHours,
		LayerHeightMM:   req.LayerHeightMM,
		InfillPercent:   req.InfillPercent,
		Supports:        req.Supports,
		Priority:        priority,
		Notes:           req.Notes,
	}

	// Stored under a generated name; two uploads of "model.stl" in the same
	// month must never share a path. The original name survives in FileName.
	storedName := uuid.NewString() + strings.ToLower(filepath.Ext(job.FileName))
	relPath := filepath.Join("jobs", time.Now().UTC().Format("2006/01"), storedName)
	written, err := s.uploads.SaveStream(relPath, file)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store upload")
	}
	job.FilePath = relPath
	job.FileSize = written

	if err := s.repo.Create(ctx, job); err != nil {
		if delErr := s.uploads.Delete(relPath); delErr != nil {
			s.logger.Warn("orphaned upload cleanup failed", zap.String("path", relPath), zap.Error(delErr))
		}
		return nil, mapStoreErr(err, "")
	}

	s.logger.Info("job created", zap.String("job_id", job.ID), zap.String("user_id", userID))
	return job, nil
}

// Get returns a job with its owner, printer and event context. Non-staff
// callers may only read their own jobs.
func (s *JobService) Get(ctx context.Context, id string, actor Actor) (*models.JobDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err, "print job not found")
	}
	if !actor.Role.Staff() && detail.UserID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not your job")
	}
	events, err := s.repo.ListEvents(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err, "")
	}
	detail.Events = events
	return detail, nil
}

// List returns jobs matching the filter. Non-staff callers are always scoped
// to their own jobs regardless of the requested filter.
func (s *JobService) List(ctx context.Context, actor Actor, filter models.JobFilter) ([]models.JobDetail, *models.Pagination, error) {
	if !actor.Role.Staff() {
		filter.UserID = actor.ID
	}
	jobs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, mapStoreErr(err, "")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return jobs, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Receipt renders the PDF receipt for a completed job.
func (s *JobService) Receipt(ctx context.Context, id string, actor Actor) ([]byte, error) {
	detail, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if detail.Status != models.JobStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrConflict, "receipt requires a completed job")
	}
	data, err := s.receipts.Render(detail)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render receipt")
	}
	return data, nil
}

// DownloadURL issues a signed token for the job's model file.
func (s *JobService) DownloadURL(ctx context.Context, id string, actor Actor) (string, time.Time, error) {
	detail, err := s.Get(ctx, id, actor)
	if err != nil {
		return "", time.Time{}, err
	}
	token, expiresAt, err := s.signer.Generate(detail.ID, detail.FilePath)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download")
	}
	return token, expiresAt, nil
}

// ResolveDownload validates a signed token and opens the referenced file.
func (s *JobService) ResolveDownload(ctx context.Context, token string) (*os.File, string, error) {
	jobID, relPath, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return nil, "", mapStoreErr(err, "print job not found")
	}
	if job.FilePath != relPath {
		return nil, "", appErrors.Clone(appErrors.ErrUnauthorized, "download token does not match job file")
	}
	file, err := s.uploads.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open job file")
	}
	return file, job.FileName, nil
}

func (s *JobService) checkFile(fileName string, fileSize int64) error {
	if fileName == "" {
		return appErrors.Clone(appErrors.ErrValidation, "model file is required")
	}
	if s.cfg.MaxFileSizeBytes > 0 && fileSize > s.cfg.MaxFileSizeBytes {
		return appErrors.Clone(appErrors.ErrValidation, "model file exceeds the size limit")
	}
	if len(s.cfg.AllowedExtensions) == 0 {
		return nil
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	for _, allowed := range s.cfg.AllowedExtensions {
		if ext == strings.ToLower(allowed) {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file type %s is not allowed", ext))
}
