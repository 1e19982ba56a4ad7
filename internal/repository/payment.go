package repository

import (
	"context"
	"encoding/json"

	"goride/internal/domain"
)

// PaymentRepository defines the persistence operations for payments.
type PaymentRepository interface {
	// Create persists a new payment. Returns ErrConflict on a duplicate transaction or ride.
	Create(ctx context.Context, payment *domain.Payment) error

	// GetByID retrieves a payment by ID.
	GetByID(ctx context.Context, id string) (*domain.Payment, error)

	// GetByTransactionID retrieves a payment by its gateway transaction id.
	GetByTransactionID(ctx context.Context, transactionID string) (*domain.Payment, error)

	// GetByRideID retrieves the payment linked to a ride.
	GetByRideID(ctx context.Context, rideID string) (*domain.Payment, error)

	// UpdateStatus moves a payment to status only if it is still in from.
	// Returns ErrStaleState otherwise.
	UpdateStatus(ctx context.Context, id string, from, to domain.PaymentStatus) error

	// SetGatewayData stores the raw gateway response.
	SetGatewayData(ctx context.Context, id string, data json.RawMessage) error

	// AttachInvoice stores the invoice locator.
	AttachInvoice(ctx context.Context, id string, url string) error
}
