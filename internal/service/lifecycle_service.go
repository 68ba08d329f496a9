package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/printlab/printlab-api/internal/models"
	"github.com/printlab/printlab-api/internal/repository"
	"github.com/printlab/printlab-api/pkg/config"
	appErrors "github.com/printlab/printlab-api/pkg/errors"
)

type engineStore interface {
	InTransition(ctx context.Context, jobID string, fn func(tx repository.TransitionTx) error) error
}

type lifecycleCache interface {
	InvalidateBalance(ctx context.Context, userID string)
	InvalidatePrinters(ctx context.Context)
}

// Actor identifies the caller driving a transition.
type Actor struct {
	ID   string
	Role models.UserRole
}

// TransitionRequest carries the target status and its optional payload.
type TransitionRequest struct {
	Target       models.JobStatus
	PrinterID    string
	Reason       string
	ErrorMessage string
	ActualHours  *float64
	ActualCost   *float64
}

type edge struct {
	from, to models.JobStatus
}

// staffEdges enumerates the transitions only ADMIN/TECHNICIAN actors may
// drive. Together with cancelEdges this is the whole legal-transition table;
// any (from,to) pair absent from both maps is rejected.
var staffEdges = map[edge]struct{}{
	{models.JobStatusPending, models.JobStatusUnderReview}: {},
	{models.JobStatusUnderReview, models.JobStatusApproved}: {},
	{models.JobStatusUnderReview, models.JobStatusRejected}: {},
	{models.JobStatusApproved, models.JobStatusAssigned}:    {},
	{models.JobStatusAssigned, models.JobStatusPrinting}:    {},
	{models.JobStatusPrinting, models.JobStatusPaused}:      {},
	{models.JobStatusPaused, models.JobStatusPrinting}:      {},
	{models.JobStatusPrinting, models.JobStatusCompleted}:   {},
	{models.JobStatusPaused, models.JobStatusCompleted}:     {},
	{models.JobStatusPrinting, models.JobStatusFailed}:      {},
}

// cancelEdges may be driven by the job owner or an admin.
var cancelEdges = map[edge]struct{}{
	{models.JobStatusPending, models.JobStatusCancelled}:  {},
	{models.JobStatusApproved, models.JobStatusCancelled}: {},
	{models.JobStatusAssigned, models.JobStatusCancelled}: {},
}

// LegalTransition reports whether the (from, to) pair is in the transition table.
func LegalTransition(from, to models.JobStatus) bool {
	e := edge{from, to}
	if _, ok := staffEdges[e]; ok {
		return true
	}
	_, ok := cancelEdges[e]
	return ok
}

// LifecycleService enforces the print job state machine. Every transition
// runs as one transaction; guard failures leave the job untouched.
type LifecycleService struct {
	store    engineStore
	selector AssignmentSelector
	policy   CostPolicy
	pricing  config.PricingConfig
	cache    lifecycleCache
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewLifecycleService constructs the lifecycle engine.
func NewLifecycleService(store engineStore, policy CostPolicy, pricing config.PricingConfig, cache lifecycleCache, metrics *MetricsService, logger *zap.Logger) *LifecycleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LifecycleService{
		store:   store,
		policy:  policy,
		pricing: pricing,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
	}
}

// Transition moves a job to the target status on behalf of the actor,
// applying the per-edge side effects atomically. The returned snapshot
// reflects the committed state.
func (s *LifecycleService) Transition(ctx context.Context, jobID string, actor Actor, req TransitionRequest) (*models.PrintJob, error) {
	if !req.Target.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown target status %q", req.Target))
	}

	var snapshot models.PrintJob
	err := s.store.InTransition(ctx, jobID, func(tx repository.TransitionTx) error {
		job := tx.Job()
		from := job.Status

		if !LegalTransition(from, req.Target) {
			return appErrors.Clone(appErrors.ErrIllegalTransition,
				fmt.Sprintf("cannot move job from %s to %s", from, req.Target))
		}
		if err := s.checkActor(job, actor, req.Target); err != nil {
			return err
		}

		now := time.Now().UTC()
		switch req.Target {
		case models.JobStatusUnderReview:
			// no side effects; the job enters the review queue

		case models.JobStatusApproved:
			if err := s.approve(ctx, tx, job, now); err != nil {
				return err
			}

		case models.JobStatusAssigned:
			if err := s.assign(ctx, tx, job, req.PrinterID, now); err != nil {
				return err
			}

		case models.JobStatusPrinting:
			if job.StartedAt == nil {
				job.StartedAt = &now
			}
			if job.PrinterID != nil {
				// The printer advertises PRINTING only once full; below
				// capacity it stays AVAILABLE for further assignments.
				if err := tx.MarkPrinterPrinting(ctx, *job.PrinterID); err != nil {
					return err
				}
			}

		case models.JobStatusPaused:
			// printer keeps its slot; started_at survives the pause

		case models.JobStatusCompleted:
			if err := s.complete(ctx, tx, job, actor, req, now); err != nil {
				return err
			}

		case models.JobStatusRejected:
			job.RejectionReason = req.Reason

		case models.JobStatusCancelled:
			if from == models.JobStatusAssigned && job.PrinterID != nil {
				if err := tx.ReleaseSlot(ctx, *job.PrinterID); err != nil {
					return err
				}
				job.PrinterID = nil
			}
			job.CancelledAt = &now

		case models.JobStatusFailed:
			if job.PrinterID != nil {
				if err := tx.ReleaseSlot(ctx, *job.PrinterID); err != nil {
					return err
				}
				job.PrinterID = nil
			}
			job.ErrorMessage = req.ErrorMessage
		}

		job.Status = req.Target
		if err := tx.SaveJob(ctx, job); err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, &models.JobEvent{
			JobID:      job.ID,
			ActorID:    actor.ID,
			FromStatus: from,
			ToStatus:   req.Target,
			Note:       req.Reason,
		}); err != nil {
			return err
		}
		snapshot = *job
		return nil
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordTransition(string(req.Target), false)
		}
		return nil, mapStoreErr(err, "print job not found")
	}

	if s.metrics != nil {
		s.metrics.RecordTransition(string(req.Target), true)
	}
	s.invalidateCaches(ctx, &snapshot, req.Target)
	s.logger.Info("job transition",
		zap.String("job_id", snapshot.ID),
		zap.String("to", string(req.Target)),
		zap.String("actor", actor.ID),
	)
	return &snapshot, nil
}

// checkActor applies the role-times-transition table. Per the error contract
// a wrong role is an illegal transition, not a generic authorization failure.
func (s *LifecycleService) checkActor(job *models.PrintJob, actor Actor, target models.JobStatus) error {
	e := edge{job.Status, target}
	if _, ok := cancelEdges[e]; ok {
		if actor.Role == models.RoleAdmin || actor.ID == job.UserID {
			return nil
		}
		return appErrors.Clone(appErrors.ErrIllegalTransition, "only the job owner or an admin may cancel")
	}
	if !actor.Role.Staff() {
		return appErrors.Clone(appErrors.ErrIllegalTransition,
			fmt.Sprintf("role %s may not drive this transition", actor.Role))
	}
	return nil
}

func (s *LifecycleService) approve(ctx context.Context, tx repository.TransitionTx, job *models.PrintJob, now time.Time) error {
	cost := s.policy.Estimate(job)

	user, err := tx.User(ctx, job.UserID)
	if err != nil {
		return mapStoreErr(err, "job owner not found")
	}
	if user.Balance < s.pricing.NegativeBalanceFloor {
		return appErrors.Clone(appErrors.ErrInsufficientBalance, "balance is below the allowed floor")
	}
	if user.Balance+user.CreditLimit < cost {
		return appErrors.Clone(appErrors.ErrInsufficientBalance,
			fmt.Sprintf("estimated cost %.2f exceeds available credit %.2f", cost, user.AvailableCredit()))
	}
	active, err := tx.CountActiveJobs(ctx, job.UserID)
	if err != nil {
		return err
	}
	if user.MaxConcurrentJobs > 0 && active > user.MaxConcurrentJobs {
		return appErrors.Clone(appErrors.ErrConflict, "active job limit reached")
	}

	job.EstimatedCost = &cost
	job.ApprovedAt = &now
	return nil
}

func (s *LifecycleService) assign(ctx context.Context, tx repository.TransitionTx, job *models.PrintJob, printerID string, now time.Time) error {
	if printerID != "" {
		printer, err := tx.Printer(ctx, printerID)
		if err != nil {
			return mapStoreErr(err, "printer not found")
		}
		if err := s.selector.Validate(printer, job); err != nil {
			return err
		}
		ok, err := tx.ReserveSlot(ctx, printer.ID)
		if err != nil {
			return err
		}
		if !ok {
			// Lost the slot between validation and reservation.
			return appErrors.Clone(appErrors.ErrIncompatiblePrinter, "printer is no longer available")
		}
		job.PrinterID = &printer.ID
		job.AssignedAt = &now
		return nil
	}

	candidates, err := tx.EligiblePrinters(ctx, job.Material)
	if err != nil {
		return err
	}
	for _, printer := range s.selector.Rank(candidates) {
		ok, err := tx.ReserveSlot(ctx, printer.ID)
		if err != nil {
			return err
		}
		if ok {
			id := printer.ID
			job.PrinterID = &id
			job.AssignedAt = &now
			return nil
		}
	}
	if s.metrics != nil {
		s.metrics.RecordAssignmentFailure()
	}
	return appErrors.Clone(appErrors.ErrNoCompatiblePrinter, "no compatible printer with free capacity")
}

func (s *LifecycleService) complete(ctx context.Context, tx repository.TransitionTx, job *models.PrintJob, actor Actor, req TransitionRequest, now time.Time) error {
	if req.ActualHours != nil {
		job.ActualHours = req.ActualHours
	}

	cost := 0.0
	switch {
	case req.ActualCost != nil:
		cost = *req.ActualCost
	case job.EstimatedCost != nil:
		cost = *job.EstimatedCost
	default:
		cost = s.policy.Estimate(job)
	}
	job.ActualCost = &cost

	if err := tx.Debit(ctx, job.UserID, cost, job.ID, actor.ID, "print job completed"); err != nil {
		return err
	}
	job.Paid = true

	if job.PrinterID != nil {
		hours := job.EstimatedHours
		if job.ActualHours != nil {
			hours = *job.ActualHours
		}
		if err := tx.AddPrintHours(ctx, *job.PrinterID, hours); err != nil {
			return err
		}
		if err := tx.ReleaseSlot(ctx, *job.PrinterID); err != nil {
			return err
		}
	}
	job.CompletedAt = &now
	return nil
}

func (s *LifecycleService) invalidateCaches(ctx context.Context, job *models.PrintJob, target models.JobStatus) {
	if s.cache == nil {
		return
	}
	switch target {
	case models.JobStatusCompleted:
		s.cache.InvalidateBalance(ctx, job.UserID)
		s.cache.InvalidatePrinters(ctx)
	case models.JobStatusAssigned, models.JobStatusPrinting, models.JobStatusCancelled, models.JobStatusFailed:
		s.cache.InvalidatePrinters(ctx)
	case models.JobStatusApproved:
		s.cache.InvalidateBalance(ctx, job.UserID)
	}
}
