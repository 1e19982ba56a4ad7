package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RideStatus represents the current status of a ride.
type RideStatus string

const (
	RideStatusRequested RideStatus = "REQUESTED"
	RideStatusAccepted  RideStatus = "ACCEPTED"
	RideStatusPickedUp  RideStatus = "PICKED_UP"
	RideStatusInTransit RideStatus = "IN_TRANSIT"
	RideStatusCompleted RideStatus = "COMPLETED"
	RideStatusCancelled RideStatus = "CANCELLED"
	RideStatusRejected  RideStatus = "REJECTED"
)

// LiveStatuses are the statuses that count toward the one-live-ride-per-rider rule.
var LiveStatuses = []RideStatus{
	RideStatusRequested,
	RideStatusAccepted,
	RideStatusPickedUp,
	RideStatusInTransit,
}

// ActiveStatuses are the statuses in which a driver is working a ride.
var ActiveStatuses = []RideStatus{
	RideStatusAccepted,
	RideStatusPickedUp,
	RideStatusInTransit,
}

// IsLive reports whether the status is one of LiveStatuses.
func (s RideStatus) IsLive() bool {
	for _, live := range LiveStatuses {
		if s == live {
			return true
		}
	}
	return false
}

// Cancellable reports whether a rider may still cancel from this status.
func (s RideStatus) Cancellable() bool {
	return s == RideStatusRequested || s == RideStatusAccepted
}

// Next returns the successor reached by a driver advancing the ride.
func (s RideStatus) Next() (RideStatus, bool) {
	switch s {
	case RideStatusAccepted:
		return RideStatusPickedUp, true
	case RideStatusPickedUp:
		return RideStatusInTransit, true
	case RideStatusInTransit:
		return RideStatusCompleted, true
	default:
		return "", false
	}
}

// PaymentMethod represents the payment method for a ride.
type PaymentMethod string

const (
	PaymentMethodCash    PaymentMethod = "cash"
	PaymentMethodGateway PaymentMethod = "gateway"
)

// Location is a snapshot of a place taken when the ride is requested.
type Location struct {
	Address string
	Lat     float64
	Lng     float64
}

// DriverRef is a tagged reference to a driver. It carries both the driver record id and
// the driver's user id so either identity can be matched without guessing.
type DriverRef struct {
	DriverID string
	UserID   string
}

// IsZero reports whether the reference is unset.
func (r DriverRef) IsZero() bool {
	return r.DriverID == "" && r.UserID == ""
}

// Matches reports whether the reference points at the given driver.
func (r DriverRef) Matches(d *Driver) bool {
	if r.IsZero() || d == nil {
		return false
	}
	return (r.DriverID != "" && r.DriverID == d.ID) || (r.UserID != "" && r.UserID == d.UserID)
}

// RideTimestamps holds one timestamp per status reached. Each is set once.
type RideTimestamps struct {
	RequestedAt time.Time
	AcceptedAt  time.Time
	PickedUpAt  time.Time
	InTransitAt time.Time
	CompletedAt time.Time
	CancelledAt time.Time
}

// Stamp records t for the given status unless that status was already stamped.
func (ts *RideTimestamps) Stamp(status RideStatus, t time.Time) {
	var field *time.Time
	switch status {
	case RideStatusRequested:
		field = &ts.RequestedAt
	case RideStatusAccepted:
		field = &ts.AcceptedAt
	case RideStatusPickedUp:
		field = &ts.PickedUpAt
	case RideStatusInTransit:
		field = &ts.InTransitAt
	case RideStatusCompleted:
		field = &ts.CompletedAt
	case RideStatusCancelled:
		field = &ts.CancelledAt
	default:
		return
	}
	if field.IsZero() {
		*field = t
	}
}

// Ride represents a ride request in the system.
type Ride struct {
	ID            string
	RiderID       string
	Driver        DriverRef // assignment, set on accept
	RejectedBy    DriverRef // driver who rejected the request, kept apart from the assignment
	Pickup        Location
	Destination   Location
	Fare          decimal.Decimal
	Status        RideStatus
	IsPaid        bool
	PaymentMethod PaymentMethod
	Rating        int // 0 until the rider rates a completed ride
	Timestamps    RideTimestamps
	CreatedAt     time.Time
}
