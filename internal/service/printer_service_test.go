package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/printlab/printlab-api/internal/models"
	"github.com/printlab/printlab-api/pkg/config"
	appErrors "github.com/printlab/printlab-api/pkg/errors"
)

type mockPrinterRepo struct {
	printers        map[string]*models.Printer
	statusSet       map[string]models.PrinterStatus
	maintenanceDone []string
}

func (m *mockPrinterRepo) Create(ctx context.Context, printer *models.Printer) error {
	if m.printers == nil {
		m.printers = make(map[string]*models.Printer)
	}
	printer.ID = "printer-1"
	if printer.Status == "" {
		printer.Status = models.PrinterStatusAvailable
	}
	if printer.MaxJobs <= 0 {
		printer.MaxJobs = 1
	}
	cp := *printer
	m.printers[printer.ID] = &cp
	return nil
}

func (m *mockPrinterRepo) FindByID(ctx context.Context, id string) (*models.Printer, error) {
	printer, ok := m.printers[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *printer
	return &cp, nil
}

func (m *mockPrinterRepo) List(ctx context.Context, filter models.PrinterFilter) ([]models.Printer, int, error) {
	var out []models.Printer
	for _, p := range m.printers {
		out = append(out, *p)
	}
	return out, len(out), nil
}

func (m *mockPrinterRepo) SetStatus(ctx context.Context, id string, status models.PrinterStatus) error {
	printer, ok := m.printers[id]
	if !ok {
		return sql.ErrNoRows
	}
	printer.Status = status
	if m.statusSet == nil {
		m.statusSet = make(map[string]models.PrinterStatus)
	}
	m.statusSet[id] = status
	return nil
}

func (m *mockPrinterRepo) MarkMaintenanceDone(ctx context.Context, id string) error {
	printer, ok := m.printers[id]
	if !ok || printer.CurrentJobCount > 0 {
		return sql.ErrNoRows
	}
	printer.Status = models.PrinterStatusAvailable
	printer.HoursAtMaintenance = printer.TotalPrintHours
	m.maintenanceDone = append(m.maintenanceDone, id)
	return nil
}

func newTestPrinterService(repo *mockPrinterRepo) *PrinterService {
	return NewPrinterService(repo, nil, config.MaintenanceConfig{IntervalHours: 250}, validator.New(), zap.NewNop())
}

func validPrinterRequest() RegisterPrinterRequest {
	return RegisterPrinterRequest{
		Name:               "Prusa MK4 #1",
		Serial:             "PRUSA-001",
		Type:               "fdm",
		SupportedMaterials: []string{"pla", "petg"},
		MaxJobs:            1,
	}
}

func TestPrinterRegister(t *testing.T) {
	repo := &mockPrinterRepo{}
	svc := newTestPrinterService(repo)

	printer, err := svc.Register(context.Background(), validPrinterRequest())
	require.NoError(t, err)

	assert.Equal(t, models.PrinterTypeFDM, printer.Type)
	assert.Equal(t, models.PrinterStatusAvailable, printer.Status)
	assert.ElementsMatch(t, []string{"PLA", "PETG"}, []string(printer.SupportedMaterials))
	assert.False(t, printer.NeedsMaintenance)
}

func TestPrinterRegisterUnknownMaterial(t *testing.T) {
	svc := newTestPrinterService(&mockPrinterRepo{})

	req := validPrinterRequest()
	req.SupportedMaterials = []string{"CHEESE"}
	_, err := svc.Register(context.Background(), req)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestPrinterNeedsMaintenanceAfterInterval(t *testing.T) {
	repo := &mockPrinterRepo{printers: map[string]*models.Printer{
		"p1": {ID: "p1", Status: models.PrinterStatusAvailable, TotalPrintHours: 300, HoursAtMaintenance: 0},
	}}
	svc := newTestPrinterService(repo)

	printer, err := svc.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.True(t, printer.NeedsMaintenance)

	_, err = svc.CompleteMaintenance(context.Background(), "p1")
	require.NoError(t, err)

	printer, err = svc.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.False(t, printer.NeedsMaintenance, "service resets the interval")
}

func TestPrinterSetStatusGuards(t *testing.T) {
	repo := &mockPrinterRepo{printers: map[string]*models.Printer{
		"idle": {ID: "idle", Status: models.PrinterStatusAvailable},
		"busy": {ID: "busy", Status: models.PrinterStatusAvailable, CurrentJobCount: 1, MaxJobs: 2},
	}}
	svc := newTestPrinterService(repo)

	_, err := svc.SetStatus(context.Background(), "idle", SetPrinterStatusRequest{Status: "MAINTENANCE"})
	require.NoError(t, err)
	assert.Equal(t, models.PrinterStatusMaintenance, repo.printers["idle"].Status)

	_, err = svc.SetStatus(context.Background(), "busy", SetPrinterStatusRequest{Status: "OUT_OF_SERVICE"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))

	_, err = svc.SetStatus(context.Background(), "idle", SetPrinterStatusRequest{Status: "RESERVED"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestPrinterMaintenanceRequiresIdle(t *testing.T) {
	repo := &mockPrinterRepo{printers: map[string]*models.Printer{
		"busy": {ID: "busy", Status: models.PrinterStatusPrinting, CurrentJobCount: 1, MaxJobs: 2},
	}}
	svc := newTestPrinterService(repo)

	_, err := svc.CompleteMaintenance(context.Background(), "busy")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
