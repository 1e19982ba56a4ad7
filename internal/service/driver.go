package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"goride/internal/domain"
	"goride/internal/repository"
)

// DriverService manages driver profiles, approval and availability.
type DriverService struct {
	driverRepo repository.DriverRepository
	userRepo   repository.UserRepository
	logger     *zap.Logger
	now        func() time.Time
}

// NewDriverService creates a new DriverService.
func NewDriverService(
	driverRepo repository.DriverRepository,
	userRepo repository.UserRepository,
	logger *zap.Logger,
) *DriverService {
	return &DriverService{
		driverRepo: driverRepo,
		userRepo:   userRepo,
		logger:     logger,
		now:        time.Now,
	}
}

// RegisterDriverRequest contains the parameters for applying as a driver.
type RegisterDriverRequest struct {
	UserID  string
	Vehicle domain.Vehicle
}

// Register creates a PENDING, ONLINE driver profile for a user.
func (s *DriverService) Register(ctx context.Context, req RegisterDriverRequest) (*domain.Driver, error) {
	if req.UserID == "" {
		return nil, invalidInput("user id is required")
	}
	if strings.TrimSpace(req.Vehicle.Type) == "" || strings.TrimSpace(req.Vehicle.Plate) == "" {
		return nil, invalidInput("vehicle type and plate are required")
	}

	if _, err := s.driverRepo.GetByUserID(ctx, req.UserID); err == nil {
		return nil, ErrDriverExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	driver := s.newDriver(req.UserID, req.Vehicle, domain.ApprovalPending)
	if err := s.driverRepo.Create(ctx, driver); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrDriverExists
		}
		return nil, err
	}

	s.logger.Info("driver registered", zap.String("driver_id", driver.ID), zap.String("user_id", req.UserID))
	return driver, nil
}

// Approve marks a driver user as APPROVED, creating the profile when the user has none.
// Approving an approved driver succeeds without changes. Approving a blocked driver lifts the block.
func (s *DriverService) Approve(ctx context.Context, driverUserID string) (*domain.Driver, error) {
	if driverUserID == "" {
		return nil, invalidInput("user id is required")
	}

	user, err := s.userRepo.GetByID(ctx, driverUserID)
	if err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	if user.Role != domain.RoleDriver {
		return nil, invalidState("user is not a driver")
	}

	driver, err := s.driverRepo.GetByUserID(ctx, driverUserID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		driver = s.newDriver(driverUserID, domain.Vehicle{}, domain.ApprovalApproved)
		if err := s.driverRepo.Create(ctx, driver); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				// Lost a race with a concurrent approve or register; approve what is there.
				return s.Approve(ctx, driverUserID)
			}
			return nil, err
		}
		s.logger.Info("driver approved", zap.String("driver_id", driver.ID), zap.Bool("created", true))
		return driver, nil
	case err != nil:
		return nil, err
	}

	if driver.Approval == domain.ApprovalApproved {
		return driver, nil
	}

	driver.Approval = domain.ApprovalApproved
	driver.UpdatedAt = s.now()
	if err := s.driverRepo.Update(ctx, driver); err != nil {
		return nil, notFound(err, ErrDriverNotFound)
	}

	s.logger.Info("driver approved", zap.String("driver_id", driver.ID))
	return driver, nil
}

// Suspend moves an APPROVED driver to SUSPENDED and takes them offline.
func (s *DriverService) Suspend(ctx context.Context, driverUserID string) (*domain.Driver, error) {
	driver, err := s.GetProfile(ctx, driverUserID)
	if err != nil {
		return nil, err
	}
	if driver.Approval != domain.ApprovalApproved {
		return nil, invalidState("driver is not approved yet")
	}
	return s.bar(ctx, driver, domain.ApprovalSuspended)
}

// Block moves a driver in any other state to BLOCKED and takes them offline.
func (s *DriverService) Block(ctx context.Context, driverUserID string) (*domain.Driver, error) {
	driver, err := s.GetProfile(ctx, driverUserID)
	if err != nil {
		return nil, err
	}
	if driver.Approval == domain.ApprovalBlocked {
		return nil, invalidState("driver is already blocked")
	}
	return s.bar(ctx, driver, domain.ApprovalBlocked)
}

// SetAvailability switches an approved driver ONLINE or OFFLINE.
func (s *DriverService) SetAvailability(ctx context.Context, driverUserID string, online bool) (*domain.Driver, error) {
	driver, err := s.GetProfile(ctx, driverUserID)
	if err != nil {
		return nil, err
	}
	if driver.Approval != domain.ApprovalApproved {
		return nil, ErrDriverNotApproved
	}

	availability := domain.AvailabilityOffline
	if online {
		availability = domain.AvailabilityOnline
	}
	if err := s.driverRepo.SetAvailability(ctx, driver.ID, availability); err != nil {
		return nil, notFound(err, ErrDriverNotFound)
	}
	driver.Availability = availability
	driver.UpdatedAt = s.now()
	return driver, nil
}

// GetProfile returns the driver profile owned by a user.
func (s *DriverService) GetProfile(ctx context.Context, driverUserID string) (*domain.Driver, error) {
	if driverUserID == "" {
		return nil, invalidInput("user id is required")
	}
	driver, err := s.driverRepo.GetByUserID(ctx, driverUserID)
	if err != nil {
		return nil, notFound(err, ErrDriverNotFound)
	}
	return driver, nil
}

func (s *DriverService) bar(ctx context.Context, driver *domain.Driver, approval domain.ApprovalStatus) (*domain.Driver, error) {
	driver.Approval = approval
	driver.Availability = domain.AvailabilityOffline
	driver.UpdatedAt = s.now()
	if err := s.driverRepo.Update(ctx, driver); err != nil {
		return nil, notFound(err, ErrDriverNotFound)
	}
	s.logger.Info("driver barred", zap.String("driver_id", driver.ID), zap.String("approval", string(approval)))
	return driver, nil
}

func (s *DriverService) newDriver(userID string, vehicle domain.Vehicle, approval domain.ApprovalStatus) *domain.Driver {
	now := s.now()
	return &domain.Driver{
		ID:           uuid.New().String(),
		UserID:       userID,
		Vehicle:      vehicle,
		Approval:     approval,
		Availability: domain.AvailabilityOnline,
		Earnings:     decimal.Zero,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
