package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus represents the current status of a payment.
type PaymentStatus string

const (
	PaymentStatusUnpaid    PaymentStatus = "UNPAID"
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusPaid      PaymentStatus = "PAID"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
)

// Payment is a gateway payment, optionally linked to a ride.
type Payment struct {
	ID            string
	RideID        string // empty when the payment is not ride-linked
	TransactionID string
	Status        PaymentStatus
	Amount        decimal.Decimal
	GatewayData   json.RawMessage
	InvoiceURL    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Settled reports whether the payment reached PAID. Settled payments are immutable
// apart from the invoice locator.
func (p *Payment) Settled() bool {
	return p.Status == PaymentStatusPaid
}

// InvoiceData is everything the invoice renderer and mailer need about a paid ride.
type InvoiceData struct {
	TransactionID       string
	RideDate            time.Time
	RiderName           string
	RiderEmail          string
	PickupLocation      string
	DestinationLocation string
	Fare                decimal.Decimal
	PaymentMethod       PaymentMethod
}
