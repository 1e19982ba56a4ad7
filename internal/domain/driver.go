package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ApprovalStatus represents the administrative state of a driver.
type ApprovalStatus string

const (
	ApprovalPending   ApprovalStatus = "PENDING"
	ApprovalApproved  ApprovalStatus = "APPROVED"
	ApprovalSuspended ApprovalStatus = "SUSPENDED"
	ApprovalBlocked   ApprovalStatus = "BLOCKED"
)

// Availability represents whether a driver is taking rides.
type Availability string

const (
	AvailabilityOnline  Availability = "ONLINE"
	AvailabilityOffline Availability = "OFFLINE"
)

// Vehicle describes the vehicle a driver operates.
type Vehicle struct {
	Type  string
	Plate string
}

// Driver is the driver profile attached to a user account.
type Driver struct {
	ID           string
	UserID       string
	Vehicle      Vehicle
	Approval     ApprovalStatus
	Availability Availability
	Earnings     decimal.Decimal
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Barred reports whether the driver is suspended or blocked.
// Barred drivers cannot accept rides and are never put back online by the ride flow.
func (d *Driver) Barred() bool {
	return d.Approval == ApprovalSuspended || d.Approval == ApprovalBlocked
}

// ReleaseAvailability is the availability a driver returns to once a ride lets go of them.
func (d *Driver) ReleaseAvailability() Availability {
	if d.Barred() {
		return AvailabilityOffline
	}
	return AvailabilityOnline
}

// Ref returns the tagged reference stored on rides.
func (d *Driver) Ref() DriverRef {
	return DriverRef{DriverID: d.ID, UserID: d.UserID}
}
