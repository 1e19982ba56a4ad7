package service

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"

	"goride/internal/domain"
)

// GatewayRequest is the customer and amount data sent to the payment gateway.
type GatewayRequest struct {
	Name          string
	Email         string
	Phone         string
	Address       string
	Amount        decimal.Decimal
	TransactionID string
}

// GatewaySession is an open checkout session.
type GatewaySession struct {
	TransactionID string          `json:"transactionId"`
	PaymentURL    string          `json:"paymentUrl"`
	Raw           json.RawMessage `json:"-"`
}

// PaymentGateway opens checkout sessions with an external payment provider.
type PaymentGateway interface {
	InitPayment(ctx context.Context, req GatewayRequest) (*GatewaySession, error)
}

// InvoiceRenderer produces an invoice document.
type InvoiceRenderer interface {
	Render(data domain.InvoiceData) ([]byte, error)
	ContentType() string
	Extension() string
}

// ObjectStorage stores a blob and returns a locator for it.
type ObjectStorage interface {
	Store(ctx context.Context, data []byte, name, contentType string) (string, error)
}

// Attachment is a file attached to an outgoing mail.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Mail is an outgoing templated message.
type Mail struct {
	To          string
	Subject     string
	Template    string
	Data        any
	Attachments []Attachment
}

// Mailer delivers mail.
type Mailer interface {
	Send(ctx context.Context, mail Mail) error
}

// Envelope is a routed real-time event.
type Envelope struct {
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Origin  string          `json:"origin,omitempty"` // client that produced the event, skipped on delivery
}

// EventSink delivers envelopes to listeners.
type EventSink interface {
	Publish(ctx context.Context, env Envelope) error
}

// EventPublisher is notified of committed state changes. Implementations must not block.
type EventPublisher interface {
	RideCreated(ctx context.Context, ride *domain.Ride)
	RideStatusChanged(ctx context.Context, ride *domain.Ride)
	PaymentSettled(ctx context.Context, payment *domain.Payment, ride *domain.Ride)
}

// JobQueue runs work after the caller returns. Enqueue reports false when the job was dropped.
type JobQueue interface {
	Enqueue(name string, job func(ctx context.Context) error) bool
}
