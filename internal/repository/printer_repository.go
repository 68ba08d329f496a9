package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/printlab/printlab-api/internal/models"
)

const printerColumns = `id, name, serial, brand, model, type, supported_materials, build_volume_x_mm, build_volume_y_mm, build_volume_z_mm,
 max_temp_c, status, current_job_count, max_jobs, total_print_hours, hours_at_maintenance, hourly_cost, last_maintenance_at, created_at, updated_at`

// PrinterRepository handles persistence of the printer registry.
type PrinterRepository struct {
	db *sqlx.DB
}

// NewPrinterRepository constructs the repository.
func NewPrinterRepository(db *sqlx.DB) *PrinterRepository {
	return &PrinterRepository{db: db}
}

// Create registers a new printer.
func (r *PrinterRepository) Create(ctx context.Context, printer *models.Printer) error {
	if printer.ID == "" {
		printer.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	printer.CreatedAt = now
	printer.UpdatedAt = now
	if printer.Status == "" {
		printer.Status = models.PrinterStatusAvailable
	}
	if printer.MaxJobs <= 0 {
		printer.MaxJobs = 1
	}

	const query = `INSERT INTO printers (id, name, serial, brand, model, type, supported_materials, build_volume_x_mm, build_volume_y_mm, build_volume_z_mm,
        max_temp_c, status, current_job_count, max_jobs, total_print_hours, hours_at_maintenance, hourly_cost, created_at, updated_at)
        VALUES (:id, :name, :serial, :brand, :model, :type, :supported_materials, :build_volume_x_mm, :build_volume_y_mm, :build_volume_z_mm,
        :max_temp_c, :status, :current_job_count, :max_jobs, :total_print_hours, :hours_at_maintenance, :hourly_cost, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, printer); err != nil {
		return fmt.Errorf("create printer: %w", err)
	}
	return nil
}

// FindByID returns a printer by identifier.
func (r *PrinterRepository) FindByID(ctx context.Context, id string) (*models.Printer, error) {
	query := fmt.Sprintf(`SELECT %s FROM printers WHERE id = $1 LIMIT 1`, printerColumns)
	var printer models.Printer
	if err := r.db.GetContext(ctx, &printer, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find printer: %w", err)
	}
	return &printer, nil
}

// List returns printers matching the filter with total count.
func (r *PrinterRepository) List(ctx context.Context, filter models.PrinterFilter) ([]models.Printer, int, error) {
	base := `FROM printers WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Material != "" {
		conditions = append(conditions, fmt.Sprintf("$%d = ANY(supported_materials)", len(args)+1))
		args = append(args, filter.Material)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY name ASC LIMIT %d OFFSET %d", printerColumns, base+clause, size, offset)

	var printers []models.Printer
	if err := r.db.SelectContext(ctx, &printers, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list printers: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count printers: %w", err)
	}
	return printers, total, nil
}

// SetStatus updates the operational status, for maintenance toggling.
func (r *PrinterRepository) SetStatus(ctx context.Context, id string, status models.PrinterStatus) error {
	const query = `UPDATE printers SET status = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set printer status: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkMaintenanceDone records a completed service and resets the hour counter.
func (r *PrinterRepository) MarkMaintenanceDone(ctx context.Context, id string) error {
	now := time.Now().UTC()
	const query = `UPDATE printers SET hours_at_maintenance = total_print_hours, last_maintenance_at = $2, status = 'AVAILABLE', updated_at = $2
        WHERE id = $1 AND current_job_count = 0`
	res, err := r.db.ExecContext(ctx, query, id, now)
	if err != nil {
		return fmt.Errorf("mark maintenance done: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
