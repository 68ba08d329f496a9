package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printlab/printlab-api/internal/models"
)

func TestLedgerRepositoryApplyDebit(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)

	mock.ExpectBegin()
	// Debits flip the sign before the balance moves.
	mock.ExpectQuery("UPDATE users SET balance = balance").
		WithArgs("student-1", -7.0, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(13.0))
	mock.ExpectExec("INSERT INTO ledger_entries").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	jobID := "job-1"
	entry := &models.LedgerEntry{
		UserID:    "student-1",
		JobID:     &jobID,
		Type:      models.LedgerDebit,
		Amount:    7.0,
		Reason:    "print job completed",
		CreatedBy: "tech-1",
	}
	require.NoError(t, repo.Apply(context.Background(), entry))

	assert.NotEmpty(t, entry.ID)
	assert.InDelta(t, 13.0, entry.BalanceAfter, 1e-9)
	assert.False(t, entry.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepositoryApplyCreditAddsAmount(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE users SET balance = balance").
		WithArgs("student-1", 25.0, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(45.0))
	mock.ExpectExec("INSERT INTO ledger_entries").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	entry := &models.LedgerEntry{
		UserID:    "student-1",
		Type:      models.LedgerCredit,
		Amount:    25.0,
		Reason:    "semester recharge",
		CreatedBy: "admin-1",
	}
	require.NoError(t, repo.Apply(context.Background(), entry))
	assert.InDelta(t, 45.0, entry.BalanceAfter, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepositoryApplyUnknownUserRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE users SET balance = balance").
		WithArgs("ghost", 10.0, sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	entry := &models.LedgerEntry{UserID: "ghost", Type: models.LedgerCredit, Amount: 10.0, Reason: "recharge", CreatedBy: "admin-1"}
	err := repo.Apply(context.Background(), entry)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepositoryListByUser(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "user_id", "job_id", "type", "amount", "balance_after", "reason", "created_by", "created_at"}).
		AddRow("le-2", "student-1", "job-1", "DEBIT", 7.0, 13.0, "print job completed", "tech-1", now).
		AddRow("le-1", "student-1", nil, "CREDIT", 20.0, 20.0, "initial credit", "admin-1", now.Add(-time.Hour))
	mock.ExpectQuery("FROM ledger_entries WHERE user_id = ").
		WithArgs("student-1").
		WillReturnRows(rows)

	entries, err := repo.ListByUser(context.Background(), "student-1", 20)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.LedgerDebit, entries[0].Type)
	assert.Nil(t, entries[1].JobID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepositoryTotalSpent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)

	mock.ExpectQuery(`SELECT COALESCE\(SUM\(amount\), 0\) FROM ledger_entries`).
		WithArgs("student-1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(42.5))

	total, err := repo.TotalSpent(context.Background(), "student-1")
	require.NoError(t, err)
	assert.InDelta(t, 42.5, total, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}
