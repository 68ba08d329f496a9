package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/printlab/printlab-api/internal/models"
	"github.com/printlab/printlab-api/pkg/config"
	appErrors "github.com/printlab/printlab-api/pkg/errors"
)

type printerRepository interface {
	Create(ctx context.Context, printer *models.Printer) error
	FindByID(ctx context.Context, id string) (*models.Printer, error)
	List(ctx context.Context, filter models.PrinterFilter) ([]models.Printer, int, error)
	SetStatus(ctx context.Context, id string, status models.PrinterStatus) error
	MarkMaintenanceDone(ctx context.Context, id string) error
}

type printerCache interface {
	GetPrinters(ctx context.Context, dest interface{}) bool
	SetPrinters(ctx context.Context, value interface{})
	InvalidatePrinters(ctx context.Context)
}

// RegisterPrinterRequest is the payload for adding a printer to the fleet.
type RegisterPrinterRequest struct {
	Name               string   `json:"name" validate:"required"`
	Serial             string   `json:"serial" validate:"required"`
	Brand              string   `json:"brand"`
	Model              string   `json:"model"`
	Type               string   `json:"type" validate:"required"`
	SupportedMaterials []string `json:"supported_materials" validate:"required,min=1"`
	BuildVolumeXMM     float64  `json:"build_volume_x_mm" validate:"gte=0"`
	BuildVolumeYMM     float64  `json:"build_volume_y_mm" validate:"gte=0"`
	BuildVolumeZMM     float64  `json:"build_volume_z_mm" validate:"gte=0"`
	MaxTempC           float64  `json:"max_temp_c" validate:"gte=0"`
	MaxJobs            int      `json:"max_jobs" validate:"gte=0"`
	HourlyCost         float64  `json:"hourly_cost" validate:"gte=0"`
}

// SetPrinterStatusRequest changes a printer's operational state by hand.
type SetPrinterStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// PrinterService manages the printer fleet. Slot counters are never touched
// here; reservation and release belong to the lifecycle transaction.
type PrinterService struct {
	repo      printerRepository
	cache     printerCache
	cfg       config.MaintenanceConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPrinterService constructs PrinterService.
func NewPrinterService(repo printerRepository, cache printerCache, cfg config.MaintenanceConfig, validate *validator.Validate, logger *zap.Logger) *PrinterService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PrinterService{repo: repo, cache: cache, cfg: cfg, validator: validate, logger: logger}
}

// Register adds a new printer to the fleet.
func (s *PrinterService) Register(ctx context.Context, req RegisterPrinterRequest) (*models.PrinterView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid printer payload")
	}
	printerType := models.PrinterType(strings.ToUpper(req.Type))
	if !printerType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown printer type %q", req.Type))
	}
	materials := make([]string, 0, len(req.SupportedMaterials))
	for _, raw := range req.SupportedMaterials {
		m := models.Material(strings.ToUpper(raw))
		if !m.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown material %q", raw))
		}
		materials = append(materials, string(m))
	}

	printer := &models.Printer{
		Name:               req.Name,
		Serial:             req.Serial,
		Brand:              req.Brand,
		Model:              req.Model,
		Type:               printerType,
		SupportedMaterials: materials,
		BuildVolumeXMM:     req.BuildVolumeXMM,
		BuildVolumeYMM:     req.BuildVolumeYMM,
		BuildVolumeZMM:     req.BuildVolumeZMM,
		MaxTempC:           req.MaxTempC,
		MaxJobs:            req.MaxJobs,
		HourlyCost:         req.HourlyCost,
	}
	if err := s.repo.Create(ctx, printer); err != nil {
		return nil, mapStoreErr(err, "")
	}
	if s.cache != nil {
		s.cache.InvalidatePrinters(ctx)
	}

	s.logger.Info("printer registered", zap.String("printer_id", printer.ID), zap.String("serial", printer.Serial))
	return s.view(printer), nil
}

// Get returns a single printer with its maintenance flag.
func (s *PrinterService) Get(ctx context.Context, id string) (*models.PrinterView, error) {
	printer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err, "printer not found")
	}
	return s.view(printer), nil
}

// List returns printers matching the filter. The unfiltered listing is cached;
// filtered queries always hit the database.
func (s *PrinterService) List(ctx context.Context, filter models.PrinterFilter) ([]models.PrinterView, *models.Pagination, error) {
	unfiltered := filter.Status == "" && filter.Material == "" && filter.Page <= 1 && filter.PageSize <= 0

	if unfiltered && s.cache != nil {
		var cached []models.PrinterView
		if s.cache.GetPrinters(ctx, &cached) {
			return cached, &models.Pagination{Page: 1, PageSize: len(cached), TotalCount: len(cached)}, nil
		}
	}

	printers, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, mapStoreErr(err, "")
	}
	views := make([]models.PrinterView, 0, len(printers))
	for i := range printers {
		views = append(views, *s.view(&printers[i]))
	}

	if unfiltered && s.cache != nil {
		s.cache.SetPrinters(ctx, views)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = len(views)
	}
	return views, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// SetStatus moves a printer between operational states. Only idle printers may
// go to MAINTENANCE or OUT_OF_SERVICE; PRINTING and RESERVED are owned by the
// lifecycle and cannot be set by hand.
func (s *PrinterService) SetStatus(ctx context.Context, id string, req SetPrinterStatusRequest) (*models.PrinterView, error) {
	status := models.PrinterStatus(strings.ToUpper(req.Status))
	switch status {
	case models.PrinterStatusAvailable, models.PrinterStatusMaintenance, models.PrinterStatusOutOfService:
	case models.PrinterStatusPrinting, models.PrinterStatusReserved:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("status %s is managed by job assignment", status))
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown printer status %q", req.Status))
	}

	printer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err, "printer not found")
	}
	if status != models.PrinterStatusAvailable && printer.CurrentJobCount > 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, "printer has active jobs")
	}

	if err := s.repo.SetStatus(ctx, id, status); err != nil {
		return nil, mapStoreErr(err, "printer not found or busy")
	}
	if s.cache != nil {
		s.cache.InvalidatePrinters(ctx)
	}

	s.logger.Info("printer status changed", zap.String("printer_id", id), zap.String("status", string(status)))
	return s.Get(ctx, id)
}

// CompleteMaintenance records a finished service and returns the printer to
// the AVAILABLE pool.
func (s *PrinterService) CompleteMaintenance(ctx context.Context, id string) (*models.PrinterView, error) {
	if err := s.repo.MarkMaintenanceDone(ctx, id); err != nil {
		return nil, mapStoreErr(err, "printer not found or has active jobs")
	}
	if s.cache != nil {
		s.cache.InvalidatePrinters(ctx)
	}

	s.logger.Info("printer maintenance completed", zap.String("printer_id", id))
	return s.Get(ctx, id)
}

func (s *PrinterService) view(p *models.Printer) *models.PrinterView {
	needs := s.cfg.IntervalHours > 0 && p.HoursSinceMaintenance() >= s.cfg.IntervalHours
	return &models.PrinterView{Printer: *p, NeedsMaintenance: needs}
}
