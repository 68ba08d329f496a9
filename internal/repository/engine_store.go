package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/printlab/printlab-api/internal/models"
)

// TransitionTx is the transactional view the lifecycle engine operates on.
// Every method runs inside the same database transaction; the job row is
// locked for the duration, so no two callers can transition one job
// concurrently. Printer slot moves are single-row compare-and-swap updates,
// which keeps concurrent assignments to the same printer safe.
type TransitionTx interface {
	// Job returns the locked job snapshot loaded at transaction start.
	Job() *models.PrintJob
	// SaveJob writes the mutated job back.
	SaveJob(ctx context.Context, job *models.PrintJob) error
	// User loads the job owner (or any user) inside the transaction.
	User(ctx context.Context, id string) (*models.User, error)
	// CountActiveJobs counts jobs of the user still holding a concurrency slot.
	CountActiveJobs(ctx context.Context, userID string) (int, error)
	// EligiblePrinters lists AVAILABLE printers with free capacity that
	// support the job's material, ranked for wear balancing.
	EligiblePrinters(ctx context.Context, material models.Material) ([]models.Printer, error)
	// Printer loads one printer.
	Printer(ctx context.Context, id string) (*models.Printer, error)
	// ReserveSlot increments the printer job count if a slot is free and the
	// printer is accepting work. Returns false when the CAS loses.
	ReserveSlot(ctx context.Context, printerID string) (bool, error)
	// ReleaseSlot decrements the printer job count and restores AVAILABLE as
	// soon as the printer drops below capacity.
	ReleaseSlot(ctx context.Context, printerID string) error
	// MarkPrinterPrinting shows the printer as PRINTING once no slot remains
	// free. A printer with spare capacity keeps advertising AVAILABLE even
	// while a job runs on it.
	MarkPrinterPrinting(ctx context.Context, printerID string) error
	// AddPrintHours accumulates completed print time on the printer.
	AddPrintHours(ctx context.Context, printerID string, hours float64) error
	// Debit appends a DEBIT ledger entry and subtracts from the user balance.
	Debit(ctx context.Context, userID string, amount float64, jobID, actorID, reason string) error
	// AppendEvent records the transition in the job audit trail.
	AppendEvent(ctx context.Context, event *models.JobEvent) error
}

// EngineStore runs lifecycle transitions as single database transactions.
type EngineStore struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewEngineStore constructs the store. The timeout bounds every transition
// transaction so storage stalls surface as errors instead of hanging callers.
func NewEngineStore(db *sqlx.DB, timeout time.Duration) *EngineStore {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &EngineStore{db: db, timeout: timeout}
}

// InTransition loads and locks the job, runs fn inside the transaction, and
// commits on success. Any error rolls back every side effect.
func (s *EngineStore) InTransition(ctx context.Context, jobID string, fn func(tx TransitionTx) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transition tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	query := fmt.Sprintf(`SELECT %s FROM print_jobs WHERE id = $1 FOR UPDATE`, jobColumns)
	var job models.PrintJob
	if err := tx.GetContext(ctx, &job, query, jobID); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("lock print job: %w", err)
	}

	if err := fn(&engineTx{tx: tx, job: &job}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transition tx: %w", err)
	}
	return nil
}

type engineTx struct {
	tx  *sqlx.Tx
	job *models.PrintJob
}

func (e *engineTx) Job() *models.PrintJob {
	return e.job
}

func (e *engineTx) SaveJob(ctx context.Context, job *models.PrintJob) error {
	job.UpdatedAt = time.Now().UTC()
	const query = `UPDATE print_jobs SET status = :status, estimated_cost = :estimated_cost, actual_cost = :actual_cost,
        actual_hours = :actual_hours, printer_id = :printer_id, admin_notes = :admin_notes, rejection_reason = :rejection_reason,
        error_message = :error_message, paid = :paid, updated_at = :updated_at, approved_at = :approved_at,
        assigned_at = :assigned_at, started_at = :started_at, completed_at = :completed_at, cancelled_at = :cancelled_at
        WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, e.tx, query, job); err != nil {
		return fmt.Errorf("save print job: %w", err)
	}
	return nil
}

func (e *engineTx) User(ctx context.Context, id string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1 LIMIT 1`, userColumns)
	var user models.User
	if err := e.tx.GetContext(ctx, &user, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &user, nil
}

func (e *engineTx) CountActiveJobs(ctx context.Context, userID string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM print_jobs WHERE user_id = $1 AND status NOT IN (%s)`, terminalStatusList)
	var count int
	if err := e.tx.GetContext(ctx, &count, query, userID); err != nil {
		return 0, fmt.Errorf("count active jobs: %w", err)
	}
	return count, nil
}

func (e *engineTx) EligiblePrinters(ctx context.Context, material models.Material) ([]models.Printer, error) {
	query := fmt.Sprintf(`SELECT %s FROM printers
        WHERE status = 'AVAILABLE' AND current_job_count < max_jobs AND $1 = ANY(supported_materials)
        ORDER BY current_job_count ASC, total_print_hours ASC`, printerColumns)
	var printers []models.Printer
	if err := e.tx.SelectContext(ctx, &printers, query, material); err != nil {
		return nil, fmt.Errorf("list eligible printers: %w", err)
	}
	return printers, nil
}

func (e *engineTx) Printer(ctx context.Context, id string) (*models.Printer, error) {
	query := fmt.Sprintf(`SELECT %s FROM printers WHERE id = $1 LIMIT 1`, printerColumns)
	var printer models.Printer
	if err := e.tx.GetContext(ctx, &printer, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("load printer: %w", err)
	}
	return &printer, nil
}

func (e *engineTx) ReserveSlot(ctx context.Context, printerID string) (bool, error) {
	// Guarded increment: two racers for the last slot cannot both pass the
	// current_job_count < max_jobs predicate.
	const query = `UPDATE printers SET current_job_count = current_job_count + 1,
        status = CASE WHEN current_job_count + 1 >= max_jobs THEN 'RESERVED' ELSE status END,
        updated_at = $2
        WHERE id = $1 AND status = 'AVAILABLE' AND current_job_count < max_jobs`
	res, err := e.tx.ExecContext(ctx, query, printerID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("reserve printer slot: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reserve printer slot: %w", err)
	}
	return affected == 1, nil
}

func (e *engineTx) ReleaseSlot(ctx context.Context, printerID string) error {
	const query = `UPDATE printers SET current_job_count = GREATEST(current_job_count - 1, 0),
        status = CASE WHEN current_job_count - 1 < max_jobs AND status IN ('PRINTING', 'RESERVED') THEN 'AVAILABLE' ELSE status END,
        updated_at = $2
        WHERE id = $1`
	if _, err := e.tx.ExecContext(ctx, query, printerID, time.Now().UTC()); err != nil {
		return fmt.Errorf("release printer slot: %w", err)
	}
	return nil
}

func (e *engineTx) MarkPrinterPrinting(ctx context.Context, printerID string) error {
	// Guarded so a printer with a free slot keeps showing AVAILABLE and stays
	// in the assignment pool.
	const query = `UPDATE printers SET status = 'PRINTING', updated_at = $2
        WHERE id = $1 AND current_job_count >= max_jobs AND status IN ('RESERVED', 'PRINTING')`
	if _, err := e.tx.ExecContext(ctx, query, printerID, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark printer printing: %w", err)
	}
	return nil
}

func (e *engineTx) AddPrintHours(ctx context.Context, printerID string, hours float64) error {
	const query = `UPDATE printers SET total_print_hours = total_print_hours + $2, updated_at = $3 WHERE id = $1`
	if _, err := e.tx.ExecContext(ctx, query, printerID, hours, time.Now().UTC()); err != nil {
		return fmt.Errorf("add print hours: %w", err)
	}
	return nil
}

func (e *engineTx) Debit(ctx context.Context, userID string, amount float64, jobID, actorID, reason string) error {
	now := time.Now().UTC()
	var balance float64
	const updateQuery = `UPDATE users SET balance = balance - $2, updated_at = $3 WHERE id = $1 RETURNING balance`
	if err := e.tx.GetContext(ctx, &balance, updateQuery, userID, amount, now); err != nil {
		return fmt.Errorf("debit balance: %w", err)
	}

	entry := &models.LedgerEntry{
		ID:           uuid.NewString(),
		UserID:       userID,
		JobID:        &jobID,
		Type:         models.LedgerDebit,
		Amount:       amount,
		BalanceAfter: balance,
		Reason:       reason,
		CreatedBy:    actorID,
		CreatedAt:    now,
	}
	const insertQuery = `INSERT INTO ledger_entries (id, user_id, job_id, type, amount, balance_after, reason, created_by, created_at)
        VALUES (:id, :user_id, :job_id, :type, :amount, :balance_after, :reason, :created_by, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, e.tx, insertQuery, entry); err != nil {
		return fmt.Errorf("append debit entry: %w", err)
	}
	return nil
}

func (e *engineTx) AppendEvent(ctx context.Context, event *models.JobEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO job_events (id, job_id, actor_id, from_status, to_status, note, created_at)
        VALUES (:id, :job_id, :actor_id, :from_status, :to_status, :note, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, e.tx, query, event); err != nil {
		return fmt.Errorf("append job event: %w", err)
	}
	return nil
}
