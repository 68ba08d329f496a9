package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/printlab/printlab-api/internal/models"
	appErrors "github.com/printlab/printlab-api/pkg/errors"
)

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	Update(ctx context.Context, user *models.User) error
	Deactivate(ctx context.Context, id string) error
}

// UpdateUserRequest is the admin payload for adjusting an account. Balance is
// absent on purpose; only ledger entries move money.
type UpdateUserRequest struct {
	FullName          *string  `json:"full_name,omitempty"`
	Role              *string  `json:"role,omitempty"`
	Active            *bool    `json:"active,omitempty"`
	CreditLimit       *float64 `json:"credit_limit,omitempty" validate:"omitempty,gte=0"`
	MaxConcurrentJobs *int     `json:"max_concurrent_jobs,omitempty" validate:"omitempty,gte=0"`
}

// UserService provides account administration.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs UserService.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, validator: validate, logger: logger}
}

// Get returns a single user.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err, "user not found")
	}
	return user, nil
}

// List returns users matching the filter.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, mapStoreErr(err, "")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return users, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Update applies the provided fields to a user account.
func (s *UserService) Update(ctx context.Context, id string, req UpdateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err, "user not found")
	}

	if req.FullName != nil {
		user.FullName = *req.FullName
	}
	if req.Role != nil {
		role := models.UserRole(strings.ToUpper(*req.Role))
		switch role {
		case models.RoleStudent, models.RoleTeacher, models.RoleTechnician, models.RoleAdmin, models.RoleExternal:
			user.Role = role
		default:
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown role %q", *req.Role))
		}
	}
	if req.Active != nil {
		user.Active = *req.Active
	}
	if req.CreditLimit != nil {
		user.CreditLimit = *req.CreditLimit
	}
	if req.MaxConcurrentJobs != nil {
		user.MaxConcurrentJobs = *req.MaxConcurrentJobs
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, mapStoreErr(err, "")
	}

	s.logger.Info("user updated", zap.String("user_id", id))
	return user, nil
}

// Deactivate disables an account. Existing jobs keep running; the lifecycle
// guards reject new submissions from inactive users at login.
func (s *UserService) Deactivate(ctx context.Context, id string) error {
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return mapStoreErr(err, "user not found")
	}
	s.logger.Info("user deactivated", zap.String("user_id", id))
	return nil
}
