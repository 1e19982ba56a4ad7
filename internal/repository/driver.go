package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"goride/internal/domain"
)

// DriverRepository defines the persistence operations for drivers.
type DriverRepository interface {
	// Create adds a new driver. Returns ErrConflict if the user already has one.
	Create(ctx context.Context, driver *domain.Driver) error

	// GetByID retrieves a driver by ID.
	GetByID(ctx context.Context, id string) (*domain.Driver, error)

	// GetByUserID retrieves the driver profile owned by a user.
	GetByUserID(ctx context.Context, userID string) (*domain.Driver, error)

	// Update writes approval, availability and vehicle fields. Last write wins.
	Update(ctx context.Context, driver *domain.Driver) error

	// SetAvailability updates only the availability of a driver.
	SetAvailability(ctx context.Context, id string, availability domain.Availability) error

	// Credit adds amount to the driver's earnings and sets availability in one statement.
	Credit(ctx context.Context, id string, amount decimal.Decimal, availability domain.Availability) error
}
