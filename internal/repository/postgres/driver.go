package postgres

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"

	"goride/internal/domain"
	"goride/internal/repository"
)

const driverColumns = `id, user_id, vehicle_type, vehicle_plate, approval_status, availability_status, earnings, created_at, updated_at`

// DriverRepository is a PostgreSQL implementation of repository.DriverRepository.
type DriverRepository struct {
	q Querier
}

// NewDriverRepository creates a new PostgreSQL driver repository.
func NewDriverRepository(db *sql.DB) *DriverRepository {
	return &DriverRepository{q: db}
}

// NewDriverRepositoryWithTx creates a driver repository using a transaction.
func NewDriverRepositoryWithTx(tx *sql.Tx) *DriverRepository {
	return &DriverRepository{q: tx}
}

// Create adds a new driver.
func (r *DriverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	query := `INSERT INTO drivers (` + driverColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.q.ExecContext(ctx, query,
		driver.ID,
		driver.UserID,
		driver.Vehicle.Type,
		driver.Vehicle.Plate,
		driver.Approval,
		driver.Availability,
		driver.Earnings,
		driver.CreatedAt,
		driver.UpdatedAt,
	)
	return translate(err)
}

// GetByID retrieves a driver by ID.
func (r *DriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	return r.get(ctx, `SELECT `+driverColumns+` FROM drivers WHERE id = $1`, id)
}

// GetByUserID retrieves the driver profile owned by a user.
func (r *DriverRepository) GetByUserID(ctx context.Context, userID string) (*domain.Driver, error) {
	return r.get(ctx, `SELECT `+driverColumns+` FROM drivers WHERE user_id = $1`, userID)
}

// Update writes the vehicle, approval and availability of a driver.
func (r *DriverRepository) Update(ctx context.Context, driver *domain.Driver) error {
	query := `
		UPDATE drivers
		SET vehicle_type = $1, vehicle_plate = $2, approval_status = $3, availability_status = $4, updated_at = now()
		WHERE id = $5
	`
	result, err := r.q.ExecContext(ctx, query,
		driver.Vehicle.Type,
		driver.Vehicle.Plate,
		driver.Approval,
		driver.Availability,
		driver.ID,
	)
	if err != nil {
		return err
	}
	return expectRow(result, repository.ErrNotFound)
}

// SetAvailability updates a driver's availability.
func (r *DriverRepository) SetAvailability(ctx context.Context, id string, availability domain.Availability) error {
	query := `UPDATE drivers SET availability_status = $1, updated_at = now() WHERE id = $2`
	result, err := r.q.ExecContext(ctx, query, availability, id)
	if err != nil {
		return err
	}
	return expectRow(result, repository.ErrNotFound)
}

// Credit adds amount to earnings and sets availability atomically.
func (r *DriverRepository) Credit(ctx context.Context, id string, amount decimal.Decimal, availability domain.Availability) error {
	query := `
		UPDATE drivers
		SET earnings = earnings + $1, availability_status = $2, updated_at = now()
		WHERE id = $3
	`
	result, err := r.q.ExecContext(ctx, query, amount, availability, id)
	if err != nil {
		return err
	}
	return expectRow(result, repository.ErrNotFound)
}

func (r *DriverRepository) get(ctx context.Context, query string, arg string) (*domain.Driver, error) {
	var d domain.Driver
	err := r.q.QueryRowContext(ctx, query, arg).Scan(
		&d.ID,
		&d.UserID,
		&d.Vehicle.Type,
		&d.Vehicle.Plate,
		&d.Approval,
		&d.Availability,
		&d.Earnings,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, translate(err)
	}
	return &d, nil
}
