package postgres

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"goride/internal/domain"
	"goride/internal/repository"
)

const rideColumns = `id, rider_id, driver_id, driver_user_id, rejected_by_driver_id, rejected_by_user_id,
	pickup_address, pickup_lat, pickup_lng, destination_address, destination_lat, destination_lng,
	fare, status, is_paid, payment_method, rating,
	requested_at, accepted_at, picked_up_at, in_transit_at, completed_at, cancelled_at, created_at`

// RideRepository is a PostgreSQL implementation of repository.RideRepository.
type RideRepository struct {
	q Querier
}

// NewRideRepository creates a new PostgreSQL ride repository.
func NewRideRepository(db *sql.DB) *RideRepository {
	return &RideRepository{q: db}
}

// NewRideRepositoryWithTx creates a ride repository using a transaction.
func NewRideRepositoryWithTx(tx *sql.Tx) *RideRepository {
	return &RideRepository{q: tx}
}

// Create persists a new ride. The partial unique index on live rides turns a second
// live ride for the same rider into repository.ErrConflict.
func (r *RideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	query := `INSERT INTO rides (` + rideColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)`

	ts := ride.Timestamps
	_, err := r.q.ExecContext(ctx, query,
		ride.ID,
		ride.RiderID,
		nullString(ride.Driver.DriverID),
		nullString(ride.Driver.UserID),
		nullString(ride.RejectedBy.DriverID),
		nullString(ride.RejectedBy.UserID),
		ride.Pickup.Address,
		ride.Pickup.Lat,
		ride.Pickup.Lng,
		ride.Destination.Address,
		ride.Destination.Lat,
		ride.Destination.Lng,
		ride.Fare,
		ride.Status,
		ride.IsPaid,
		ride.PaymentMethod,
		ride.Rating,
		ts.RequestedAt,
		nullTime(ts.AcceptedAt),
		nullTime(ts.PickedUpAt),
		nullTime(ts.InTransitAt),
		nullTime(ts.CompletedAt),
		nullTime(ts.CancelledAt),
		ride.CreatedAt,
	)
	return translate(err)
}

// GetByID retrieves a ride by ID.
func (r *RideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+rideColumns+` FROM rides WHERE id = $1`, id)
	ride, err := scanRide(row)
	if err != nil {
		return nil, translate(err)
	}
	return ride, nil
}

// FindLiveByRider returns the rider's live ride.
func (r *RideRepository) FindLiveByRider(ctx context.Context, riderID string) (*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE rider_id = $1 AND status = ANY($2) LIMIT 1`
	row := r.q.QueryRowContext(ctx, query, riderID, pq.Array(statusStrings(domain.LiveStatuses)))
	ride, err := scanRide(row)
	if err != nil {
		return nil, translate(err)
	}
	return ride, nil
}

// ListByStatus returns rides in the given status, newest first.
func (r *RideRepository) ListByStatus(ctx context.Context, status domain.RideStatus) ([]*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE status = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, status)
}

// ListByRider returns a rider's rides, newest first.
func (r *RideRepository) ListByRider(ctx context.Context, riderID string) ([]*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE rider_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, riderID)
}

// ListByDriver returns rides assigned to a driver record, newest first.
func (r *RideRepository) ListByDriver(ctx context.Context, driverID string, statuses ...domain.RideStatus) ([]*domain.Ride, error) {
	if len(statuses) == 0 {
		query := `SELECT ` + rideColumns + ` FROM rides WHERE driver_id = $1 ORDER BY created_at DESC`
		return r.list(ctx, query, driverID)
	}
	query := `SELECT ` + rideColumns + ` FROM rides WHERE driver_id = $1 AND status = ANY($2) ORDER BY created_at DESC`
	return r.list(ctx, query, driverID, pq.Array(statusStrings(statuses)))
}

// Transition writes the status, driver references and timestamps guarded by the expected
// current status. The paid flag and rating have their own writers and are left untouched.
func (r *RideRepository) Transition(ctx context.Context, ride *domain.Ride, from domain.RideStatus) error {
	query := `
		UPDATE rides SET
			status = $1, driver_id = $2, driver_user_id = $3,
			rejected_by_driver_id = $4, rejected_by_user_id = $5,
			accepted_at = $6, picked_up_at = $7, in_transit_at = $8, completed_at = $9, cancelled_at = $10
		WHERE id = $11 AND status = $12
	`
	ts := ride.Timestamps
	result, err := r.q.ExecContext(ctx, query,
		ride.Status,
		nullString(ride.Driver.DriverID),
		nullString(ride.Driver.UserID),
		nullString(ride.RejectedBy.DriverID),
		nullString(ride.RejectedBy.UserID),
		nullTime(ts.AcceptedAt),
		nullTime(ts.PickedUpAt),
		nullTime(ts.InTransitAt),
		nullTime(ts.CompletedAt),
		nullTime(ts.CancelledAt),
		ride.ID,
		from,
	)
	if err != nil {
		return translate(err)
	}
	if err := expectRow(result, repository.ErrStaleState); err != nil {
		// Distinguish a missing ride from one that moved on.
		if _, getErr := r.GetByID(ctx, ride.ID); getErr != nil {
			return getErr
		}
		return err
	}
	return nil
}

// SetPaid updates the paid flag regardless of status.
func (r *RideRepository) SetPaid(ctx context.Context, id string, paid bool) error {
	result, err := r.q.ExecContext(ctx, `UPDATE rides SET is_paid = $1 WHERE id = $2`, paid, id)
	if err != nil {
		return err
	}
	return expectRow(result, repository.ErrNotFound)
}

// Rate stores a rating once, on a completed ride.
func (r *RideRepository) Rate(ctx context.Context, id string, rating int) error {
	query := `UPDATE rides SET rating = $1 WHERE id = $2 AND status = $3 AND rating = 0`
	result, err := r.q.ExecContext(ctx, query, rating, id, domain.RideStatusCompleted)
	if err != nil {
		return err
	}
	if err := expectRow(result, repository.ErrStaleState); err != nil {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return err
	}
	return nil
}

func (r *RideRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Ride, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rides []*domain.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		rides = append(rides, ride)
	}
	return rides, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRide(row rowScanner) (*domain.Ride, error) {
	var (
		ride                             domain.Ride
		driverID, driverUserID           sql.NullString
		rejectedDriverID, rejectedUserID sql.NullString
		acceptedAt, pickedUpAt           sql.NullTime
		inTransitAt, completedAt         sql.NullTime
		cancelledAt                      sql.NullTime
	)
	err := row.Scan(
		&ride.ID,
		&ride.RiderID,
		&driverID,
		&driverUserID,
		&rejectedDriverID,
		&rejectedUserID,
		&ride.Pickup.Address,
		&ride.Pickup.Lat,
		&ride.Pickup.Lng,
		&ride.Destination.Address,
		&ride.Destination.Lat,
		&ride.Destination.Lng,
		&ride.Fare,
		&ride.Status,
		&ride.IsPaid,
		&ride.PaymentMethod,
		&ride.Rating,
		&ride.Timestamps.RequestedAt,
		&acceptedAt,
		&pickedUpAt,
		&inTransitAt,
		&completedAt,
		&cancelledAt,
		&ride.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	ride.Driver = domain.DriverRef{DriverID: driverID.String, UserID: driverUserID.String}
	ride.RejectedBy = domain.DriverRef{DriverID: rejectedDriverID.String, UserID: rejectedUserID.String}
	ride.Timestamps.AcceptedAt = timeOrZero(acceptedAt)
	ride.Timestamps.PickedUpAt = timeOrZero(pickedUpAt)
	ride.Timestamps.InTransitAt = timeOrZero(inTransitAt)
	ride.Timestamps.CompletedAt = timeOrZero(completedAt)
	ride.Timestamps.CancelledAt = timeOrZero(cancelledAt)
	return &ride, nil
}

func statusStrings(statuses []domain.RideStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
