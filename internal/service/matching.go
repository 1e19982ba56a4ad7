package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"goride/internal/domain"
	"goride/internal/repository"
)

// MatchingService resolves drivers racing to accept or reject a requested ride.
type MatchingService struct {
	tx         repository.Transactor
	rideRepo   repository.RideRepository
	driverRepo repository.DriverRepository
	publisher  EventPublisher
	logger     *zap.Logger
	now        func() time.Time
}

// NewMatchingService creates a new MatchingService.
func NewMatchingService(
	tx repository.Transactor,
	rideRepo repository.RideRepository,
	driverRepo repository.DriverRepository,
	publisher EventPublisher,
	logger *zap.Logger,
) *MatchingService {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &MatchingService{
		tx:         tx,
		rideRepo:   rideRepo,
		driverRepo: driverRepo,
		publisher:  publisher,
		logger:     logger,
		now:        time.Now,
	}
}

// Accept assigns the ride to the calling driver. Of any number of concurrent accepts for the
// same ride exactly one succeeds; the conditional REQUESTED→ACCEPTED write decides the winner.
func (s *MatchingService) Accept(ctx context.Context, rideID, driverUserID string) (*domain.Ride, error) {
	driver, err := s.loadDriver(ctx, rideID, driverUserID)
	if err != nil {
		return nil, err
	}
	if driver.Barred() {
		return nil, ErrDriverBarred
	}
	ride, err := s.loadRide(ctx, rideID)
	if err != nil {
		return nil, err
	}

	active, err := s.rideRepo.ListByDriver(ctx, driver.ID, domain.ActiveStatuses...)
	if err != nil {
		return nil, err
	}
	if len(active) > 0 {
		return nil, ErrDriverBusy
	}

	if ride.Status != domain.RideStatusRequested {
		return nil, ErrRideNotAvailable
	}

	ride.Driver = driver.Ref()
	ride.Status = domain.RideStatusAccepted
	ride.Timestamps.Stamp(domain.RideStatusAccepted, s.now())

	err = s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Rides.Transition(ctx, ride, domain.RideStatusRequested); err != nil {
			return acceptWriteErr(err)
		}
		return repos.Drivers.SetAvailability(ctx, driver.ID, domain.AvailabilityOffline)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("ride accepted", zap.String("ride_id", ride.ID), zap.String("driver_id", driver.ID))
	s.publisher.RideStatusChanged(ctx, ride)
	return ride, nil
}

// Reject closes a REQUESTED ride as REJECTED and records who rejected it.
// The assignment reference is left untouched.
func (s *MatchingService) Reject(ctx context.Context, rideID, driverUserID string) (*domain.Ride, error) {
	driver, err := s.loadDriver(ctx, rideID, driverUserID)
	if err != nil {
		return nil, err
	}
	ride, err := s.loadRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.Status != domain.RideStatusRequested {
		return nil, invalidState("ride cannot be rejected from %s", ride.Status)
	}

	ride.RejectedBy = driver.Ref()
	ride.Status = domain.RideStatusRejected

	err = s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Rides.Transition(ctx, ride, domain.RideStatusRequested); err != nil {
			return acceptWriteErr(err)
		}
		return repos.Drivers.SetAvailability(ctx, driver.ID, driver.ReleaseAvailability())
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("ride rejected", zap.String("ride_id", ride.ID), zap.String("driver_id", driver.ID))
	s.publisher.RideStatusChanged(ctx, ride)
	return ride, nil
}

func (s *MatchingService) loadDriver(ctx context.Context, rideID, driverUserID string) (*domain.Driver, error) {
	if rideID == "" || driverUserID == "" {
		return nil, invalidInput("ride id and driver id are required")
	}
	driver, err := s.driverRepo.GetByUserID(ctx, driverUserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoDriverProfile
		}
		return nil, err
	}
	return driver, nil
}

func (s *MatchingService) loadRide(ctx context.Context, rideID string) (*domain.Ride, error) {
	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, notFound(err, ErrRideNotFound)
	}
	return ride, nil
}

func acceptWriteErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrStaleState):
		return ErrRideNotAvailable
	case errors.Is(err, repository.ErrNotFound):
		return ErrRideNotFound
	default:
		return err
	}
}
