package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/printlab/printlab-api/internal/models"
	"github.com/printlab/printlab-api/internal/repository"
	appErrors "github.com/printlab/printlab-api/pkg/errors"
)

type mockLedgerRepo struct {
	applied []*models.LedgerEntry
	entries []models.LedgerEntry
	spent   float64
}

func (m *mockLedgerRepo) Apply(ctx context.Context, entry *models.LedgerEntry) error {
	entry.ID = "entry-1"
	m.applied = append(m.applied, entry)
	return nil
}

func (m *mockLedgerRepo) ListByUser(ctx context.Context, userID string, limit int) ([]models.LedgerEntry, error) {
	if limit < len(m.entries) {
		return m.entries[:limit], nil
	}
	return m.entries, nil
}

func (m *mockLedgerRepo) TotalSpent(ctx context.Context, userID string) (float64, error) {
	return m.spent, nil
}

type mockBalanceUsers struct {
	user *models.User
}

func (m *mockBalanceUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.user == nil || m.user.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.user, nil
}

type mockBalanceJobs struct {
	active int
	stats  repository.UserJobStats
}

func (m *mockBalanceJobs) CountActiveByUser(ctx context.Context, userID string) (int, error) {
	return m.active, nil
}

func (m *mockBalanceJobs) StatsByUser(ctx context.Context, userID string) (*repository.UserJobStats, error) {
	stats := m.stats
	return &stats, nil
}

func newTestBalanceService(users *mockBalanceUsers, jobs *mockBalanceJobs, ledger *mockLedgerRepo) *BalanceService {
	return NewBalanceService(ledger, users, jobs, nil, testPricing, zap.NewNop())
}

func TestBalanceSummary(t *testing.T) {
	users := &mockBalanceUsers{user: &models.User{
		ID: "u1", Balance: 12.5, CreditLimit: 5, MaxConcurrentJobs: 3,
	}}
	jobs := &mockBalanceJobs{active: 2}
	svc := newTestBalanceService(users, jobs, &mockLedgerRepo{})

	summary, err := svc.Summary(context.Background(), "u1")
	require.NoError(t, err)

	assert.InDelta(t, 12.5, summary.Balance, 0.001)
	assert.InDelta(t, 17.5, summary.AvailableCredit, 0.001)
	assert.False(t, summary.HasNegativeBalance)
	assert.Equal(t, 2, summary.ActiveJobs)
	assert.True(t, summary.CanPrint)
}

func TestBalanceSummaryBelowFloorBlocksPrinting(t *testing.T) {
	users := &mockBalanceUsers{user: &models.User{ID: "u1", Balance: -30}}
	svc := newTestBalanceService(users, &mockBalanceJobs{}, &mockLedgerRepo{})

	summary, err := svc.Summary(context.Background(), "u1")
	require.NoError(t, err)

	assert.True(t, summary.HasNegativeBalance)
	assert.False(t, summary.CanPrint)
}

func TestBalanceSummaryJobCapBlocksPrinting(t *testing.T) {
	users := &mockBalanceUsers{user: &models.User{ID: "u1", Balance: 50, MaxConcurrentJobs: 2}}
	jobs := &mockBalanceJobs{active: 2}
	svc := newTestBalanceService(users, jobs, &mockLedgerRepo{})

	summary, err := svc.Summary(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, summary.CanPrint)
}

func TestBalanceDetail(t *testing.T) {
	users := &mockBalanceUsers{user: &models.User{ID: "u1", Balance: 10, CreditLimit: 5}}
	jobs := &mockBalanceJobs{
		active: 1,
		stats:  repository.UserJobStats{TotalJobs: 7, CompletedJobs: 5, TotalPrintHours: 14.5},
	}
	ledger := &mockLedgerRepo{
		spent: 42.75,
		entries: []models.LedgerEntry{
			{ID: "e1", Type: models.LedgerDebit, Amount: 7},
		},
	}
	svc := newTestBalanceService(users, jobs, ledger)

	detail, err := svc.Detail(context.Background(), "u1")
	require.NoError(t, err)

	assert.InDelta(t, 42.75, detail.TotalSpent, 0.001)
	assert.Equal(t, 7, detail.TotalJobs)
	assert.Equal(t, 5, detail.CompletedJobs)
	assert.InDelta(t, 14.5, detail.TotalPrintHours, 0.001)
	require.Len(t, detail.RecentEntries, 1)
}

func TestRechargeAppendsCreditEntry(t *testing.T) {
	users := &mockBalanceUsers{user: &models.User{ID: "u1"}}
	ledger := &mockLedgerRepo{}
	svc := newTestBalanceService(users, &mockBalanceJobs{}, ledger)

	entry, err := svc.Recharge(context.Background(), "u1",
		AdjustmentRequest{Amount: 25, Reason: "semester top-up"},
		Actor{ID: "admin-1", Role: models.RoleAdmin})
	require.NoError(t, err)

	assert.Equal(t, models.LedgerCredit, entry.Type)
	assert.InDelta(t, 25, entry.Amount, 0.001)
	assert.Equal(t, "admin-1", entry.CreatedBy)
	require.Len(t, ledger.applied, 1)
}

func TestRefundRequiresReason(t *testing.T) {
	users := &mockBalanceUsers{user: &models.User{ID: "u1"}}
	svc := newTestBalanceService(users, &mockBalanceJobs{}, &mockLedgerRepo{})

	_, err := svc.Refund(context.Background(), "u1",
		AdjustmentRequest{Amount: 5},
		Actor{ID: "admin-1", Role: models.RoleAdmin})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestRechargeRejectsNonPositiveAmount(t *testing.T) {
	users := &mockBalanceUsers{user: &models.User{ID: "u1"}}
	svc := newTestBalanceService(users, &mockBalanceJobs{}, &mockLedgerRepo{})

	_, err := svc.Recharge(context.Background(), "u1",
		AdjustmentRequest{Amount: -3, Reason: "oops"},
		Actor{ID: "admin-1", Role: models.RoleAdmin})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestRechargeUnknownUser(t *testing.T) {
	svc := newTestBalanceService(&mockBalanceUsers{}, &mockBalanceJobs{}, &mockLedgerRepo{})

	_, err := svc.Recharge(context.Background(), "ghost",
		AdjustmentRequest{Amount: 5, Reason: "x"},
		Actor{ID: "admin-1", Role: models.RoleAdmin})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
