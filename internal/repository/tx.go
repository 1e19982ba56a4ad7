package repository

import "context"

// Repositories groups the repositories bound to one unit of work.
type Repositories struct {
	Rides    RideRepository
	Drivers  DriverRepository
	Payments PaymentRepository
}

// Transactor runs fn inside a single transaction. Every repository handed to fn shares it.
// If fn returns an error the transaction is rolled back and that error is returned unchanged.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
