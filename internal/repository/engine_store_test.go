package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printlab/printlab-api/internal/models"
)

func TestEngineStoreCommitsOnSuccess(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	store := NewEngineStore(db, 5*time.Second)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM print_jobs WHERE id = (.+) FOR UPDATE").
		WithArgs("job-1").
		WillReturnRows(jobRow("job-1", models.JobStatusApproved))
	mock.ExpectExec("UPDATE printers SET current_job_count = current_job_count \\+ 1").
		WithArgs("prusa-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE print_jobs SET status = ").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO job_events").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := store.InTransition(context.Background(), "job-1", func(tx TransitionTx) error {
		job := tx.Job()
		require.Equal(t, models.JobStatusApproved, job.Status)

		ok, err := tx.ReserveSlot(context.Background(), "prusa-1")
		require.NoError(t, err)
		require.True(t, ok)

		job.Status = models.JobStatusAssigned
		printerID := "prusa-1"
		job.PrinterID = &printerID
		if err := tx.SaveJob(context.Background(), job); err != nil {
			return err
		}
		return tx.AppendEvent(context.Background(), &models.JobEvent{
			JobID:      job.ID,
			ActorID:    "tech-1",
			FromStatus: models.JobStatusApproved,
			ToStatus:   models.JobStatusAssigned,
		})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngineStoreRollsBackOnError(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	store := NewEngineStore(db, 5*time.Second)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM print_jobs WHERE id = (.+) FOR UPDATE").
		WithArgs("job-1").
		WillReturnRows(jobRow("job-1", models.JobStatusPending))
	mock.ExpectRollback()

	boom := errors.New("guard refused")
	err := store.InTransition(context.Background(), "job-1", func(tx TransitionTx) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngineStoreUnknownJob(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	store := NewEngineStore(db, 5*time.Second)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM print_jobs WHERE id = (.+) FOR UPDATE").
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := store.InTransition(context.Background(), "ghost", func(tx TransitionTx) error {
		t.Fatal("callback must not run without a locked job")
		return nil
	})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngineStoreMarkPrintingOnlyAtCapacity(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	store := NewEngineStore(db, 5*time.Second)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM print_jobs WHERE id = (.+) FOR UPDATE").
		WithArgs("job-1").
		WillReturnRows(jobRow("job-1", models.JobStatusAssigned))
	// The status flip carries the capacity predicate so a half-full printer
	// keeps advertising AVAILABLE.
	mock.ExpectExec(`UPDATE printers SET status = 'PRINTING'(.+)current_job_count >= max_jobs`).
		WithArgs("farm-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`UPDATE printers SET current_job_count = GREATEST(.+)current_job_count - 1 < max_jobs`).
		WithArgs("farm-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.InTransition(context.Background(), "job-1", func(tx TransitionTx) error {
		if err := tx.MarkPrinterPrinting(context.Background(), "farm-1"); err != nil {
			return err
		}
		return tx.ReleaseSlot(context.Background(), "farm-1")
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngineStoreReserveSlotLosesRace(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	store := NewEngineStore(db, 5*time.Second)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM print_jobs WHERE id = (.+) FOR UPDATE").
		WithArgs("job-1").
		WillReturnRows(jobRow("job-1", models.JobStatusApproved))
	// Zero rows matched: another transaction took the last slot first.
	mock.ExpectExec("UPDATE printers SET current_job_count = current_job_count \\+ 1").
		WithArgs("prusa-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	slotLost := errors.New("slot lost")
	err := store.InTransition(context.Background(), "job-1", func(tx TransitionTx) error {
		ok, err := tx.ReserveSlot(context.Background(), "prusa-1")
		require.NoError(t, err)
		if !ok {
			return slotLost
		}
		return nil
	})
	assert.ErrorIs(t, err, slotLost)
	assert.NoError(t, mock.ExpectationsWereMet())
}
