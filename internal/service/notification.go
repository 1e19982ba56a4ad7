package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"goride/internal/domain"
)

// Event names delivered to real-time listeners.
const (
	EventRideCreated           = "ride-created"
	EventRideStatusChanged     = "ride-status-changed"
	EventPaymentStatusChanged  = "payment-status-changed"
	EventDriverLocationChanged = "driver-location-changed"
)

const publishTimeout = 5 * time.Second

// RideChannel is the room shared by everyone following a ride.
func RideChannel(rideID string) string { return "ride-" + rideID }

// UserChannel is the private room of one user.
func UserChannel(userID string) string { return "user-" + userID }

// NotificationService fans committed state changes out to every sink. Publishing runs on a
// detached goroutine so callers are never blocked by slow or failing listeners.
type NotificationService struct {
	sinks  []EventSink
	logger *zap.Logger
}

// Ensure NotificationService implements EventPublisher.
var _ EventPublisher = (*NotificationService)(nil)

// NewNotificationService creates a new NotificationService.
func NewNotificationService(logger *zap.Logger, sinks ...EventSink) *NotificationService {
	return &NotificationService{sinks: sinks, logger: logger}
}

type rideEvent struct {
	RideID   string            `json:"rideId"`
	RiderID  string            `json:"riderId"`
	Status   domain.RideStatus `json:"status"`
	DriverID string            `json:"driverId,omitempty"`
	Fare     string            `json:"fare"`
	IsPaid   bool              `json:"isPaid"`
}

type paymentEvent struct {
	PaymentID     string               `json:"paymentId"`
	TransactionID string               `json:"transactionId"`
	Status        domain.PaymentStatus `json:"status"`
	RideID        string               `json:"rideId,omitempty"`
}

// RideCreated notifies the rider and the ride room of a new request.
func (s *NotificationService) RideCreated(ctx context.Context, ride *domain.Ride) {
	payload := newRideEvent(ride)
	s.emit(ctx, RideChannel(ride.ID), EventRideCreated, payload, "")
	s.emit(ctx, UserChannel(ride.RiderID), EventRideCreated, payload, "")
}

// RideStatusChanged notifies the ride room and the rider.
func (s *NotificationService) RideStatusChanged(ctx context.Context, ride *domain.Ride) {
	payload := newRideEvent(ride)
	s.emit(ctx, RideChannel(ride.ID), EventRideStatusChanged, payload, "")
	s.emit(ctx, UserChannel(ride.RiderID), EventRideStatusChanged, payload, "")
}

// PaymentSettled notifies the rider of a payment outcome.
func (s *NotificationService) PaymentSettled(ctx context.Context, payment *domain.Payment, ride *domain.Ride) {
	if ride == nil {
		return
	}
	s.emit(ctx, UserChannel(ride.RiderID), EventPaymentStatusChanged, paymentEvent{
		PaymentID:     payment.ID,
		TransactionID: payment.TransactionID,
		Status:        payment.Status,
		RideID:        ride.ID,
	}, "")
}

// RelayDriverLocation forwards a driver's location to everyone in the ride room except origin.
func (s *NotificationService) RelayDriverLocation(ctx context.Context, rideID, origin string, location json.RawMessage) {
	s.emit(ctx, RideChannel(rideID), EventDriverLocationChanged, location, origin)
}

func (s *NotificationService) emit(ctx context.Context, channel, event string, payload any, origin string) {
	if len(s.sinks) == 0 {
		return
	}

	raw, ok := payload.(json.RawMessage)
	if !ok {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			s.logger.Debug("marshal event", zap.String("event", event), zap.Error(err))
			return
		}
	}
	env := Envelope{Channel: channel, Event: event, Payload: raw, Origin: origin}

	// Detach from the request so a finished request does not cancel delivery.
	ctx = context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		for _, sink := range s.sinks {
			if err := sink.Publish(ctx, env); err != nil {
				s.logger.Debug("publish event",
					zap.String("channel", channel),
					zap.String("event", event),
					zap.Error(err),
				)
			}
		}
	}()
}

func newRideEvent(ride *domain.Ride) rideEvent {
	return rideEvent{
		RideID:   ride.ID,
		RiderID:  ride.RiderID,
		Status:   ride.Status,
		DriverID: ride.Driver.DriverID,
		Fare:     ride.Fare.StringFixed(2),
		IsPaid:   ride.IsPaid,
	}
}

type nopPublisher struct{}

func (nopPublisher) RideCreated(context.Context, *domain.Ride) {}
func (nopPublisher) RideStatusChanged(context.Context, *domain.Ride) {}
func (nopPublisher) PaymentSettled(context.Context, *domain.Payment, *domain.Ride) {}
