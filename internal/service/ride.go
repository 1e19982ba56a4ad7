package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"goride/internal/domain"
	"goride/internal/repository"
)

// DefaultCancelWindow is how long after requesting a rider may still cancel.
const DefaultCancelWindow = 5 * time.Minute

// RideOptions tunes the ride ledger.
type RideOptions struct {
	CancelWindow time.Duration
	TimeZone     *time.Location // earnings windows; defaults to time.Local
}

// RideService owns ride records and the ride status state machine.
type RideService struct {
	tx           repository.Transactor
	rideRepo     repository.RideRepository
	driverRepo   repository.DriverRepository
	publisher    EventPublisher
	logger       *zap.Logger
	cancelWindow time.Duration
	tz           *time.Location
	now          func() time.Time
}

// NewRideService creates a new RideService.
func NewRideService(
	tx repository.Transactor,
	rideRepo repository.RideRepository,
	driverRepo repository.DriverRepository,
	publisher EventPublisher,
	logger *zap.Logger,
	opts RideOptions,
) *RideService {
	if opts.CancelWindow <= 0 {
		opts.CancelWindow = DefaultCancelWindow
	}
	if opts.TimeZone == nil {
		opts.TimeZone = time.Local
	}
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &RideService{
		tx:           tx,
		rideRepo:     rideRepo,
		driverRepo:   driverRepo,
		publisher:    publisher,
		logger:       logger,
		cancelWindow: opts.CancelWindow,
		tz:           opts.TimeZone,
		now:          time.Now,
	}
}

// CreateRideRequest contains the parameters for requesting a ride.
type CreateRideRequest struct {
	RiderID       string
	Pickup        domain.Location
	Destination   domain.Location
	Fare          decimal.Decimal
	PaymentMethod domain.PaymentMethod // optional, defaults to cash
}

// Create requests a new ride for a rider who has no live ride.
func (s *RideService) Create(ctx context.Context, req CreateRideRequest) (*domain.Ride, error) {
	if err := validateCreateRequest(&req); err != nil {
		return nil, err
	}

	if _, err := s.rideRepo.FindLiveByRider(ctx, req.RiderID); err == nil {
		return nil, ErrActiveRideInProgress
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	now := s.now()
	ride := &domain.Ride{
		ID:            uuid.New().String(),
		RiderID:       req.RiderID,
		Pickup:        req.Pickup,
		Destination:   req.Destination,
		Fare:          req.Fare,
		Status:        domain.RideStatusRequested,
		IsPaid:        req.PaymentMethod == domain.PaymentMethodCash,
		PaymentMethod: req.PaymentMethod,
		CreatedAt:     now,
	}
	ride.Timestamps.Stamp(domain.RideStatusRequested, now)

	if err := s.rideRepo.Create(ctx, ride); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrActiveRideInProgress
		}
		return nil, err
	}

	s.logger.Info("ride requested",
		zap.String("ride_id", ride.ID),
		zap.String("rider_id", ride.RiderID),
		zap.String("fare", ride.Fare.StringFixed(2)),
	)
	s.publisher.RideCreated(ctx, ride)
	return ride, nil
}

// Cancel cancels a REQUESTED or ACCEPTED ride within the cancel window.
// An assigned driver is released in the same transaction.
func (s *RideService) Cancel(ctx context.Context, rideID, riderID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, invalidInput("ride id is required")
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, notFound(err, ErrRideNotFound)
	}
	if ride.RiderID != riderID {
		return nil, ErrNotRideOwner
	}
	if !ride.Status.Cancellable() {
		return nil, invalidState("ride cannot be cancelled at this stage: %s", ride.Status)
	}

	now := s.now()
	if now.Sub(ride.Timestamps.RequestedAt) > s.cancelWindow {
		return nil, ErrCancelWindowExpired
	}

	from := ride.Status
	ride.Status = domain.RideStatusCancelled
	ride.Timestamps.Stamp(domain.RideStatusCancelled, now)

	err = s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Rides.Transition(ctx, ride, from); err != nil {
			return rideWriteErr(err)
		}
		if ride.Driver.IsZero() {
			return nil
		}
		driver, err := lookupDriver(ctx, repos.Drivers, ride.Driver)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil
			}
			return err
		}
		return repos.Drivers.SetAvailability(ctx, driver.ID, driver.ReleaseAvailability())
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("ride cancelled", zap.String("ride_id", ride.ID), zap.String("from", string(from)))
	s.publisher.RideStatusChanged(ctx, ride)
	return ride, nil
}

// Advance moves an assigned ride one step along ACCEPTED, PICKED_UP, IN_TRANSIT, COMPLETED.
// Completion credits the fare to the driver and releases them in the same transaction.
func (s *RideService) Advance(ctx context.Context, rideID, driverUserID string) (*domain.Ride, error) {
	if rideID == "" || driverUserID == "" {
		return nil, invalidInput("ride id and driver id are required")
	}

	driver, err := s.driverRepo.GetByUserID(ctx, driverUserID)
	if err != nil {
		return nil, notFound(err, ErrDriverNotFound)
	}
	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, notFound(err, ErrRideNotFound)
	}
	if !ride.Driver.Matches(driver) {
		return nil, ErrNotAssignedDriver
	}

	from := ride.Status
	next, ok := from.Next()
	if !ok {
		return nil, invalidState("invalid ride status transition from %s", from)
	}

	now := s.now()
	ride.Status = next
	ride.Timestamps.Stamp(next, now)

	if next != domain.RideStatusCompleted {
		if err := s.rideRepo.Transition(ctx, ride, from); err != nil {
			return nil, rideWriteErr(err)
		}
	} else {
		ride.IsPaid = true
		err = s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
			if err := repos.Rides.Transition(ctx, ride, from); err != nil {
				return rideWriteErr(err)
			}
			if err := repos.Rides.SetPaid(ctx, ride.ID, true); err != nil {
				return notFound(err, ErrRideNotFound)
			}
			return repos.Drivers.Credit(ctx, driver.ID, ride.Fare, driver.ReleaseAvailability())
		})
		if err != nil {
			return nil, err
		}
	}

	s.logger.Info("ride advanced",
		zap.String("ride_id", ride.ID),
		zap.String("from", string(from)),
		zap.String("to", string(next)),
	)
	s.publisher.RideStatusChanged(ctx, ride)
	return ride, nil
}

// Rate records the rider's 1 to 5 rating of a completed ride. A ride is rated once.
func (s *RideService) Rate(ctx context.Context, rideID, riderID string, rating int) (*domain.Ride, error) {
	if rating < 1 || rating > 5 {
		return nil, invalidInput("rating must be between 1 and 5")
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, notFound(err, ErrRideNotFound)
	}
	if ride.RiderID != riderID {
		return nil, ErrNotRideOwner
	}
	if ride.Status != domain.RideStatusCompleted {
		return nil, invalidState("only completed rides can be rated")
	}
	if ride.Rating != 0 {
		return nil, ErrAlreadyRated
	}

	if err := s.rideRepo.Rate(ctx, ride.ID, rating); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, ErrAlreadyRated
		}
		return nil, notFound(err, ErrRideNotFound)
	}
	ride.Rating = rating
	return ride, nil
}

func validateCreateRequest(req *CreateRideRequest) error {
	if req.RiderID == "" {
		return invalidInput("rider id is required")
	}
	if !validLocation(req.Pickup) {
		return invalidInput("invalid pickup location")
	}
	if !validLocation(req.Destination) {
		return invalidInput("invalid destination location")
	}
	if req.Fare.IsNegative() {
		return invalidInput("fare must not be negative")
	}

	switch req.PaymentMethod {
	case "":
		req.PaymentMethod = domain.PaymentMethodCash
	case domain.PaymentMethodCash, domain.PaymentMethodGateway:
	default:
		return invalidInput("unknown payment method %q", req.PaymentMethod)
	}
	return nil
}

func validLocation(l domain.Location) bool {
	return l.Lat >= -90 && l.Lat <= 90 && l.Lng >= -180 && l.Lng <= 180
}

// lookupDriver resolves a tagged reference, preferring the driver record id.
func lookupDriver(ctx context.Context, repo repository.DriverRepository, ref domain.DriverRef) (*domain.Driver, error) {
	if ref.DriverID != "" {
		driver, err := repo.GetByID(ctx, ref.DriverID)
		if err == nil || !errors.Is(err, repository.ErrNotFound) || ref.UserID == "" {
			return driver, err
		}
	}
	return repo.GetByUserID(ctx, ref.UserID)
}

// rideWriteErr maps a failed conditional ride write.
func rideWriteErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrStaleState):
		return invalidState("ride status changed concurrently")
	case errors.Is(err, repository.ErrNotFound):
		return ErrRideNotFound
	default:
		return err
	}
}
