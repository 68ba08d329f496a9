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

const jobColumns = `id, user_id, file_name, file_size, file_path, material, material_weight_g, estimated_hours, actual_hours,
 layer_height_mm, infill_percent, supports, priority, status, estimated_cost, actual_cost, printer_id,
 notes, admin_notes, rejection_reason, error_message, paid,
 created_at, updated_at, approved_at, assigned_at, started_at, completed_at, cancelled_at`

// terminalStatusList renders models.TerminalJobStatuses for NOT IN filters so
// the active-job SQL stays in step with JobStatus.Terminal.
var terminalStatusList = func() string {
	quoted := make([]string, len(models.TerminalJobStatuses))
	for i, status := range models.TerminalJobStatuses {
		quoted[i] = "'" + string(status) + "'"
	}
	return strings.Join(quoted, ", ")
}()

// JobRepository handles persistence of print jobs and their event trail.
type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository constructs the repository.
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create persists a new print job. Status is forced to PENDING; timestamps,
// costs and printer reference start out empty regardless of the draft.
func (r *JobRepository) Create(ctx context.Context, job *models.PrintJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	job.Status = models.JobStatusPending
	job.PrinterID = nil
	job.EstimatedCost = nil
	job.ActualCost = nil
	job.CreatedAt = now
	job.UpdatedAt = now

	const query = `INSERT INTO print_jobs (id, user_id, file_name, file_size, file_path, material, material_weight_g, estimated_hours,
        layer_height_mm, infill_percent, supports, priority, status, notes, paid, created_at, updated_at)
        VALUES (:id, :user_id, :file_name, :file_size, :file_path, :material, :material_weight_g, :estimated_hours,
        :layer_height_mm, :infill_percent, :supports, :priority, :status, :notes, :paid, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create print job: %w", err)
	}
	return nil
}

// FindByID returns a print job by identifier.
func (r *JobRepository) FindByID(ctx context.Context, id string) (*models.PrintJob, error) {
	query := fmt.Sprintf(`SELECT %s FROM print_jobs WHERE id = $1 LIMIT 1`, jobColumns)
	var job models.PrintJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find print job: %w", err)
	}
	return &job, nil
}

// FindDetailByID returns a print job enriched with owner and printer context.
func (r *JobRepository) FindDetailByID(ctx context.Context, id string) (*models.JobDetail, error) {
	const query = `SELECT j.*, u.full_name AS user_name, u.email AS user_email, p.name AS printer_name
        FROM print_jobs j
        JOIN users u ON u.id = j.user_id
        LEFT JOIN printers p ON p.id = j.printer_id
        WHERE j.id = $1`
	var detail models.JobDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find print job detail: %w", err)
	}
	return &detail, nil
}

// List returns print jobs matching the filter, newest first, with total count.
func (r *JobRepository) List(ctx context.Context, filter models.JobFilter) ([]models.JobDetail, int, error) {
	base := `FROM print_jobs j
JOIN users u ON u.id = j.user_id
LEFT JOIN printers p ON p.id = j.printer_id`
	var conditions []string
	var args []interface{}

	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("j.user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.PrinterID != "" {
		conditions = append(conditions, fmt.Sprintf("j.printer_id = $%d", len(args)+1))
		args = append(args, filter.PrinterID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("j.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT j.*, u.full_name AS user_name, u.email AS user_email, p.name AS printer_name
        %s ORDER BY j.created_at DESC LIMIT %d OFFSET %d`, base+clause, size, offset)

	var jobs []models.JobDetail
	if err := r.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list print jobs: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count print jobs: %w", err)
	}
	return jobs, total, nil
}

// CountActiveByUser counts the user's jobs that still occupy a concurrency slot.
func (r *JobRepository) CountActiveByUser(ctx context.Context, userID string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM print_jobs WHERE user_id = $1 AND status NOT IN (%s)`, terminalStatusList)
	var count int
	if err := r.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, fmt.Errorf("count active jobs: %w", err)
	}
	return count, nil
}

// UserJobStats aggregates completed-job statistics for the balance detail view.
type UserJobStats struct {
	TotalJobs       int     `db:"total_jobs"`
	CompletedJobs   int     `db:"completed_jobs"`
	TotalPrintHours float64 `db:"total_print_hours"`
}

// StatsByUser returns job counters for a user.
func (r *JobRepository) StatsByUser(ctx context.Context, userID string) (*UserJobStats, error) {
	const query = `SELECT COUNT(*) AS total_jobs,
        COUNT(*) FILTER (WHERE status = 'COMPLETED') AS completed_jobs,
        COALESCE(SUM(COALESCE(actual_hours, estimated_hours)) FILTER (WHERE status = 'COMPLETED'), 0) AS total_print_hours
        FROM print_jobs WHERE user_id = $1`
	var stats UserJobStats
	if err := r.db.GetContext(ctx, &stats, query, userID); err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	return &stats, nil
}

// UsageBetween aggregates per-user print activity for jobs created inside
// the half-open window [from, to).
func (r *JobRepository) UsageBetween(ctx context.Context, from, to time.Time) ([]models.UsageRow, error) {
	const query = `SELECT u.id AS user_id, u.full_name, u.email,
        COUNT(*) AS jobs_total,
        COUNT(*) FILTER (WHERE j.status = 'COMPLETED') AS jobs_completed,
        COALESCE(SUM(COALESCE(j.actual_hours, j.estimated_hours)) FILTER (WHERE j.status = 'COMPLETED'), 0) AS total_hours,
        COALESCE(SUM(j.actual_cost) FILTER (WHERE j.status = 'COMPLETED' AND j.paid), 0) AS total_spent
        FROM print_jobs j
        JOIN users u ON u.id = j.user_id
        WHERE j.created_at >= $1 AND j.created_at < $2
        GROUP BY u.id, u.full_name, u.email
        ORDER BY total_spent DESC, u.full_name ASC`
	var rows []models.UsageRow
	if err := r.db.SelectContext(ctx, &rows, query, from, to); err != nil {
		return nil, fmt.Errorf("aggregate usage: %w", err)
	}
	return rows, nil
}

// ListEvents returns the transition trail for a job, oldest first.
func (r *JobRepository) ListEvents(ctx context.Context, jobID string) ([]models.JobEvent, error) {
	const query = `SELECT id, job_id, actor_id, from_status, to_status, note, created_at FROM job_events WHERE job_id = $1 ORDER BY created_at ASC`
	var events []models.JobEvent
	if err := r.db.SelectContext(ctx, &events, query, jobID); err != nil {
		return nil, fmt.Errorf("list job events: %w", err)
	}
	return events, nil
}
