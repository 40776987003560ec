package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/coursesignal/coursesignal-go/internal/domain/commerce"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/observability/logging"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/security"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/tenant"
)

// LaunchInput carries the editable fields of a launch.
type LaunchInput struct {
	Name             string
	StartDate        time.Time
	EndDate          time.Time
	RevenueGoalCents *int64
	SalesGoal        *int
}

// LaunchView is a launch with its derived status.
type LaunchView struct {
	*commerce.Launch
	Status commerce.LaunchStatus `json:"status"`
}

// LaunchService manages the launch lifecycle.
type LaunchService struct {
	logger *logging.ChanneledLogger
}

// NewLaunchService creates a new launch service.
func NewLaunchService(logger *logging.ChanneledLogger) *LaunchService {
	return &LaunchService{logger: logger}
}

// List returns every launch with its status at the current instant.
func (s *LaunchService) List(tenantCtx *tenant.Context) ([]LaunchView, error) {
	launches, err := tenantCtx.LaunchRepo().FindAll()
	if err != nil {
		return nil, fmt.Errorf("launch list failed: %w", err)
	}

	now := time.Now().UTC()
	views := make([]LaunchView, 0, len(launches))
	for _, launch := range launches {
		views = append(views, LaunchView{Launch: launch, Status: launch.StatusAt(now)})
	}
	return views, nil
}

// Get returns one launch with its derived status.
func (s *LaunchService) Get(tenantCtx *tenant.Context, id string) (*LaunchView, error) {
	launch, err := tenantCtx.LaunchRepo().FindByID(id)
	if err != nil {
		return nil, fmt.Errorf("launch load failed: %w", err)
	}
	if launch == nil {
		return nil, ErrLaunchNotFound
	}
	return &LaunchView{Launch: launch, Status: launch.StatusAt(time.Now().UTC())}, nil
}

// Create registers a new launch.
func (s *LaunchService) Create(tenantCtx *tenant.Context, input LaunchInput) (*LaunchView, error) {
	if err := validateLaunchInput(input); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	launch := &commerce.Launch{
		ID:               security.GenerateULID(),
		Name:             strings.TrimSpace(input.Name),
		StartDate:        input.StartDate.UTC(),
		EndDate:          input.EndDate.UTC(),
		RevenueGoalCents: input.RevenueGoalCents,
		SalesGoal:        input.SalesGoal,
		CreatedAt:        now,
	}
	if err := tenantCtx.LaunchRepo().Create(launch); err != nil {
		return nil, fmt.Errorf("launch creation failed: %w", err)
	}

	s.logger.Analytics().Info("Launch created",
		"tenantId", tenantCtx.TenantID,
		"launchId", launch.ID,
		"name", launch.Name,
		"start", launch.StartDate,
		"end", launch.EndDate)
	return &LaunchView{Launch: launch, Status: launch.StatusAt(now)}, nil
}

// Update rewrites a launch's editable fields.
func (s *LaunchService) Update(tenantCtx *tenant.Context, id string, input LaunchInput) (*LaunchView, error) {
	if err := validateLaunchInput(input); err != nil {
		return nil, err
	}

	launch, err := tenantCtx.LaunchRepo().FindByID(id)
	if err != nil {
		return nil, fmt.Errorf("launch load failed: %w", err)
	}
	if launch == nil {
		return nil, ErrLaunchNotFound
	}

	now := time.Now().UTC()
	launch.Name = strings.TrimSpace(input.Name)
	launch.StartDate = input.StartDate.UTC()
	launch.EndDate = input.EndDate.UTC()
	launch.RevenueGoalCents = input.RevenueGoalCents
	launch.SalesGoal = input.SalesGoal
	launch.UpdatedAt = &now

	if err := tenantCtx.LaunchRepo().Update(launch); err != nil {
		return nil, fmt.Errorf("launch update failed: %w", err)
	}
	return &LaunchView{Launch: launch, Status: launch.StatusAt(now)}, nil
}

// Archive marks a launch archived. Archived is sticky; the status is never
// again recomputed from dates.
func (s *LaunchService) Archive(tenantCtx *tenant.Context, id string) (*LaunchView, error) {
	launch, err := tenantCtx.LaunchRepo().FindByID(id)
	if err != nil {
		return nil, fmt.Errorf("launch load failed: %w", err)
	}
	if launch == nil {
		return nil, ErrLaunchNotFound
	}

	now := time.Now().UTC()
	launch.Archived = true
	launch.UpdatedAt = &now
	if err := tenantCtx.LaunchRepo().Update(launch); err != nil {
		return nil, fmt.Errorf("launch archive failed: %w", err)
	}

	s.logger.Analytics().Info("Launch archived", "tenantId", tenantCtx.TenantID, "launchId", id)
	return &LaunchView{Launch: launch, Status: commerce.LaunchArchived}, nil
}

// EnableSharing generates a public share token for a launch if it has none.
func (s *LaunchService) EnableSharing(tenantCtx *tenant.Context, id string) (*LaunchView, error) {
	launch, err := tenantCtx.LaunchRepo().FindByID(id)
	if err != nil {
		return nil, fmt.Errorf("launch load failed: %w", err)
	}
	if launch == nil {
		return nil, ErrLaunchNotFound
	}

	now := time.Now().UTC()
	if launch.ShareToken == nil {
		token, err := security.GenerateSecureToken(24)
		if err != nil {
			return nil, fmt.Errorf("share token generation failed: %w", err)
		}
		launch.ShareToken = &token
		launch.UpdatedAt = &now
		if err := tenantCtx.LaunchRepo().Update(launch); err != nil {
			return nil, fmt.Errorf("launch update failed: %w", err)
		}
	}
	return &LaunchView{Launch: launch, Status: launch.StatusAt(now)}, nil
}

// Delete removes a launch after unlinking its purchases. Purchases are
// historical records and are never deleted with their launch.
func (s *LaunchService) Delete(tenantCtx *tenant.Context, id string) error {
	launch, err := tenantCtx.LaunchRepo().FindByID(id)
	if err != nil {
		return fmt.Errorf("launch load failed: %w", err)
	}
	if launch == nil {
		return ErrLaunchNotFound
	}

	if err := tenantCtx.PurchaseRepo().UnlinkLaunch(id); err != nil {
		return fmt.Errorf("launch unlink failed: %w", err)
	}
	if err := tenantCtx.LaunchRepo().Delete(id); err != nil {
		return fmt.Errorf("launch delete failed: %w", err)
	}

	s.logger.Analytics().Info("Launch deleted", "tenantId", tenantCtx.TenantID, "launchId", id)
	return nil
}

func validateLaunchInput(input LaunchInput) error {
	switch {
	case strings.TrimSpace(input.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidLaunch)
	case input.StartDate.IsZero() || input.EndDate.IsZero():
		return fmt.Errorf("%w: start and end dates are required", ErrInvalidLaunch)
	case !input.EndDate.After(input.StartDate):
		return fmt.Errorf("%w: end date must be after start date", ErrInvalidLaunch)
	}
	if input.RevenueGoalCents != nil && *input.RevenueGoalCents < 0 {
		return fmt.Errorf("%w: revenue goal must not be negative", ErrInvalidLaunch)
	}
	if input.SalesGoal != nil && *input.SalesGoal < 0 {
		return fmt.Errorf("%w: sales goal must not be negative", ErrInvalidLaunch)
	}
	return nil
}
