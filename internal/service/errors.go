package service

import (
	"errors"
	"fmt"

	"goride/internal/repository"
)

// Error kinds. Every error returned by a service unwraps to one of these.
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrInvalidInput = errors.New("invalid input")
)

// Error is a service failure with a human readable message.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

// Unwrap lets errors.Is match the kind.
func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

var (
	// ErrRideNotFound is returned when a ride does not exist.
	ErrRideNotFound = newError(ErrNotFound, "ride not found")

	// ErrDriverNotFound is returned when a driver profile does not exist.
	ErrDriverNotFound = newError(ErrNotFound, "driver not found")

	// ErrUserNotFound is returned when a user account does not exist.
	ErrUserNotFound = newError(ErrNotFound, "user not found")

	// ErrPaymentNotFound is returned when a payment does not exist.
	ErrPaymentNotFound = newError(ErrNotFound, "payment not found")

	// ErrInvoiceNotFound is returned when a payment has no invoice yet.
	ErrInvoiceNotFound = newError(ErrNotFound, "no invoice found")

	// ErrNoDriverProfile is returned when a driver action is attempted without a profile.
	ErrNoDriverProfile = newError(ErrForbidden, "driver profile not found")

	// ErrNotRideOwner is returned when a rider acts on another rider's ride.
	ErrNotRideOwner = newError(ErrForbidden, "you can only access your own rides")

	// ErrNotAssignedDriver is returned when a driver acts on a ride assigned to someone else.
	ErrNotAssignedDriver = newError(ErrForbidden, "you are not assigned to this ride")

	// ErrActiveRideInProgress is returned when a rider already has a live ride.
	ErrActiveRideInProgress = newError(ErrConflict, "active ride in progress")

	// ErrDriverBusy is returned when a driver already works an active ride.
	ErrDriverBusy = newError(ErrConflict, "driver already has an active ride")

	// ErrDriverExists is returned when a user registers a second driver profile.
	ErrDriverExists = newError(ErrConflict, "driver profile already exists")

	// ErrAlreadyPaid is returned when a settled payment would be changed.
	ErrAlreadyPaid = newError(ErrConflict, "payment already completed for this ride")

	// ErrCancelWindowExpired is returned when a rider cancels too late.
	ErrCancelWindowExpired = newError(ErrInvalidState, "cancel window expired")

	// ErrRideNotAvailable is returned when a ride is no longer open for drivers.
	ErrRideNotAvailable = newError(ErrInvalidState, "ride is no longer available")

	// ErrDriverBarred is returned when a suspended or blocked driver tries to work.
	ErrDriverBarred = newError(ErrInvalidState, "driver is suspended or blocked")

	// ErrDriverNotApproved is returned when a driver who is not approved goes online.
	ErrDriverNotApproved = newError(ErrInvalidState, "driver is not approved")

	// ErrAlreadyRated is returned when a ride is rated twice.
	ErrAlreadyRated = newError(ErrInvalidState, "ride already rated")
)

// invalidInput reports a malformed argument.
func invalidInput(format string, args ...any) error {
	return newError(ErrInvalidInput, format, args...)
}

// invalidState reports a transition the current status does not allow.
func invalidState(format string, args ...any) error {
	return newError(ErrInvalidState, format, args...)
}

// notFound maps repository.ErrNotFound onto a domain specific not-found error.
func notFound(err error, nf *Error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return nf
	}
	return err
}
