package repository

import (
	"context"

	"goride/internal/domain"
)

// RideRepository defines the persistence operations for rides.
type RideRepository interface {
	// Create persists a new ride. Returns ErrConflict if the rider already has a live ride.
	Create(ctx context.Context, ride *domain.Ride) error

	// GetByID retrieves a ride by ID.
	GetByID(ctx context.Context, id string) (*domain.Ride, error)

	// FindLiveByRider returns the rider's live ride, or ErrNotFound.
	FindLiveByRider(ctx context.Context, riderID string) (*domain.Ride, error)

	// ListByStatus returns rides in the given status, newest first.
	ListByStatus(ctx context.Context, status domain.RideStatus) ([]*domain.Ride, error)

	// ListByRider returns a rider's rides, newest first.
	ListByRider(ctx context.Context, riderID string) ([]*domain.Ride, error)

	// ListByDriver returns rides assigned to a driver record, newest first.
	// An empty statuses slice means any status.
	ListByDriver(ctx context.Context, driverID string, statuses ...domain.RideStatus) ([]*domain.Ride, error)

	// Transition writes the status, driver references and timestamps of ride only if the stored
	// status still equals from. It never writes the paid flag or the rating.
	// Returns ErrStaleState when the stored status moved on.
	Transition(ctx context.Context, ride *domain.Ride, from domain.RideStatus) error

	// SetPaid updates only the paid flag of a ride.
	SetPaid(ctx context.Context, id string, paid bool) error

	// Rate stores a rating on a completed, unrated ride. Returns ErrStaleState otherwise.
	Rate(ctx context.Context, id string, rating int) error
}
