package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/printlab/printlab-api/internal/models"
	"github.com/printlab/printlab-api/internal/repository"
	"github.com/printlab/printlab-api/pkg/config"
	appErrors "github.com/printlab/printlab-api/pkg/errors"
)

type ledgerRepository interface {
	Apply(ctx context.Context, entry *models.LedgerEntry) error
	ListByUser(ctx context.Context, userID string, limit int) ([]models.LedgerEntry, error)
	TotalSpent(ctx context.Context, userID string) (float64, error)
}

type balanceUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type balanceJobReader interface {
	CountActiveByUser(ctx context.Context, userID string) (int, error)
	StatsByUser(ctx context.Context, userID string) (*repository.UserJobStats, error)
}

type balanceCache interface {
	GetBalance(ctx context.Context, userID string, dest interface{}) bool
	SetBalance(ctx context.Context, userID string, value interface{})
	InvalidateBalance(ctx context.Context, userID string)
}

// AdjustmentRequest is an admin-initiated balance change.
type AdjustmentRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
	JobID  *string `json:"job_id,omitempty"`
	Reason string  `json:"reason" validate:"required"`
}

// BalanceService exposes the ledger-backed account views and the admin
// credit operations. Debits for completed jobs happen inside the
// lifecycle transaction, never here.
type BalanceService struct {
	ledger ledgerRepository
	users  balanceUserReader
	jobs   balanceJobReader
	cache  balanceCache
	cfg    config.PricingConfig
	logger *zap.Logger
}

// NewBalanceService constructs BalanceService.
func NewBalanceService(ledger ledgerRepository, users balanceUserReader, jobs balanceJobReader, cache balanceCache, cfg config.PricingConfig, logger *zap.Logger) *BalanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BalanceService{ledger: ledger, users: users, jobs: jobs, cache: cache, cfg: cfg, logger: logger}
}

// Summary returns the cached quick view of a user's account. CanPrint goes
// false once the balance drops below the configured floor or to students over
// their concurrent job cap; the lifecycle guards enforce the same rules at
// approval time, this is only the dashboard preview.
func (s *BalanceService) Summary(ctx context.Context, userID string) (*models.BalanceSummary, error) {
	var cached models.BalanceSummary
	if s.cache != nil && s.cache.GetBalance(ctx, userID, &cached) {
		return &cached, nil
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, mapStoreErr(err, "user not found")
	}
	active, err := s.jobs.CountActiveByUser(ctx, userID)
	if err != nil {
		return nil, mapStoreErr(err, "")
	}

	summary := &models.BalanceSummary{
		Balance:            user.Balance,
		AvailableCredit:    user.AvailableCredit(),
		HasNegativeBalance: user.HasNegativeBalance(),
		ActiveJobs:         active,
		CanPrint:           user.Balance > s.cfg.NegativeBalanceFloor && (user.MaxConcurrentJobs == 0 || active < user.MaxConcurrentJobs),
	}
	if s.cache != nil {
		s.cache.SetBalance(ctx, userID, summary)
	}
	return summary, nil
}

// Detail returns the full account view including spend totals and the most
// recent ledger entries. Not cached; the summary covers the hot path.
func (s *BalanceService) Detail(ctx context.Context, userID string) (*models.BalanceDetail, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, mapStoreErr(err, "user not found")
	}
	active, err := s.jobs.CountActiveByUser(ctx, userID)
	if err != nil {
		return nil, mapStoreErr(err, "")
	}
	stats, err := s.jobs.StatsByUser(ctx, userID)
	if err != nil {
		return nil, mapStoreErr(err, "")
	}
	spent, err := s.ledger.TotalSpent(ctx, userID)
	if err != nil {
		return nil, mapStoreErr(err, "")
	}
	entries, err := s.ledger.ListByUser(ctx, userID, 10)
	if err != nil {
		return nil, mapStoreErr(err, "")
	}

	return &models.BalanceDetail{
		BalanceSummary: models.BalanceSummary{
			Balance:            user.Balance,
			AvailableCredit:    user.AvailableCredit(),
			HasNegativeBalance: user.HasNegativeBalance(),
			ActiveJobs:         active,
			CanPrint:           user.Balance > s.cfg.NegativeBalanceFloor && (user.MaxConcurrentJobs == 0 || active < user.MaxConcurrentJobs),
		},
		CreditLimit:     user.CreditLimit,
		TotalSpent:      spent,
		TotalJobs:       stats.TotalJobs,
		CompletedJobs:   stats.CompletedJobs,
		TotalPrintHours: stats.TotalPrintHours,
		RecentEntries:   entries,
	}, nil
}

// History returns a user's ledger entries, newest first.
func (s *BalanceService) History(ctx context.Context, userID string, limit int) ([]models.LedgerEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	entries, err := s.ledger.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, mapStoreErr(err, "")
	}
	return entries, nil
}

// Recharge credits a user's account. Admin only, enforced at the route.
func (s *BalanceService) Recharge(ctx context.Context, userID string, req AdjustmentRequest, actor Actor) (*models.LedgerEntry, error) {
	return s.apply(ctx, userID, models.LedgerCredit, req, actor)
}

// Refund returns money for a failed or disputed job.
func (s *BalanceService) Refund(ctx context.Context, userID string, req AdjustmentRequest, actor Actor) (*models.LedgerEntry, error) {
	return s.apply(ctx, userID, models.LedgerRefund, req, actor)
}

func (s *BalanceService) apply(ctx context.Context, userID string, entryType models.LedgerEntryType, req AdjustmentRequest, actor Actor) (*models.LedgerEntry, error) {
	if req.Amount <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "amount must be positive")
	}
	if req.Reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "reason is required")
	}
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return nil, mapStoreErr(err, "user not found")
	}

	entry := &models.LedgerEntry{
		UserID:    userID,
		JobID:     req.JobID,
		Type:      entryType,
		Amount:    req.Amount,
		Reason:    req.Reason,
		CreatedBy: actor.ID,
	}
	if err := s.ledger.Apply(ctx, entry); err != nil {
		return nil, mapStoreErr(err, "")
	}
	if s.cache != nil {
		s.cache.InvalidateBalance(ctx, userID)
	}

	s.logger.Info("balance adjusted",
		zap.String("user_id", userID),
		zap.String("type", string(entryType)),
		zap.Float64("amount", req.Amount),
		zap.String("by", actor.ID))
	return entry, nil
}
