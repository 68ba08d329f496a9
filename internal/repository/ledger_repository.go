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

// LedgerRepository handles the append-only balance ledger.
type LedgerRepository struct {
	db *sqlx.DB
}

// NewLedgerRepository constructs the repository.
func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Apply atomically appends a ledger entry and moves the user's balance.
// Debits subtract the amount, credits and refunds add it. The entry's
// BalanceAfter is filled from the updated row.
func (r *LedgerRepository) Apply(ctx context.Context, entry *models.LedgerEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	delta := entry.Amount
	if entry.Type == models.LedgerDebit {
		delta = -delta
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var balance float64
	const updateQuery = `UPDATE users SET balance = balance + $2, updated_at = $3 WHERE id = $1 RETURNING balance`
	if err := tx.GetContext(ctx, &balance, updateQuery, entry.UserID, delta, entry.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("apply balance delta: %w", err)
	}
	entry.BalanceAfter = balance

	const insertQuery = `INSERT INTO ledger_entries (id, user_id, job_id, type, amount, balance_after, reason, created_by, created_at)
        VALUES (:id, :user_id, :job_id, :type, :amount, :balance_after, :reason, :created_by, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, tx, insertQuery, entry); err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}
	return nil
}

// ListByUser returns the most recent ledger entries for a user.
func (r *LedgerRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.LedgerEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query := fmt.Sprintf(`SELECT id, user_id, job_id, type, amount, balance_after, reason, created_by, created_at
        FROM ledger_entries WHERE user_id = $1 ORDER BY created_at DESC LIMIT %d`, limit)
	var entries []models.LedgerEntry
	if err := r.db.SelectContext(ctx, &entries, query, userID); err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	return entries, nil
}

// TotalSpent sums all debits for a user.
func (r *LedgerRepository) TotalSpent(ctx context.Context, userID string) (float64, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE user_id = $1 AND type = 'DEBIT'`
	var total float64
	if err := r.db.GetContext(ctx, &total, query, userID); err != nil {
		return 0, fmt.Errorf("sum ledger debits: %w", err)
	}
	return total, nil
}
