package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"goride/internal/domain"
)

var baseTime = time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC) // a Wednesday

type fixture struct {
	store     *memStore
	clock     *fakeClock
	publisher *recordingPublisher
	gateway   *fakeGateway
	queue     *manualQueue
	renderer  *fakeRenderer
	storage   *fakeStorage
	mailer    *fakeMailer

	rides    *RideService
	matching *MatchingService
	drivers  *DriverService
	payments *PaymentService
	invoices *InvoiceService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     newMemStore(),
		clock:     newFakeClock(baseTime),
		publisher: &recordingPublisher{},
		gateway:   &fakeGateway{},
		queue:     &manualQueue{},
		renderer:  &fakeRenderer{},
		storage:   &fakeStorage{},
		mailer:    &fakeMailer{},
	}
	logger := zap.NewNop()
	rideRepo := &memRideRepo{f.store}
	driverRepo := &memDriverRepo{f.store}
	paymentRepo := &memPaymentRepo{f.store}
	userRepo := &memUserRepo{f.store}

	f.rides = NewRideService(f.store, rideRepo, driverRepo, f.publisher, logger, RideOptions{TimeZone: time.UTC})
	f.rides.now = f.clock.Now
	f.matching = NewMatchingService(f.store, rideRepo, driverRepo, f.publisher, logger)
	f.matching.now = f.clock.Now
	f.drivers = NewDriverService(driverRepo, userRepo, logger)
	f.drivers.now = f.clock.Now
	f.invoices = NewInvoiceService(paymentRepo, rideRepo, userRepo, f.renderer, f.storage, f.mailer, f.queue, logger)
	f.payments = NewPaymentService(f.store, rideRepo, paymentRepo, userRepo, f.gateway, f.invoices, f.publisher, logger)
	f.payments.now = f.clock.Now
	return f
}

func (f *fixture) rider(id string) *domain.User {
	u := &domain.User{ID: id, Name: "Rider " + id, Email: id + "@example.com", Role: domain.RoleRider}
	f.store.addUser(u)
	return u
}

// approvedDriver adds a driver user with an APPROVED, ONLINE profile.
func (f *fixture) approvedDriver(userID string) *domain.Driver {
	f.store.addUser(&domain.User{ID: userID, Name: "Driver " + userID, Role: domain.RoleDriver})
	d := &domain.Driver{
		ID:           "drv-" + userID,
		UserID:       userID,
		Vehicle:      domain.Vehicle{Type: "car", Plate: "DHA-" + userID},
		Approval:     domain.ApprovalApproved,
		Availability: domain.AvailabilityOnline,
		Earnings:     decimal.Zero,
		CreatedAt:    baseTime,
		UpdatedAt:    baseTime,
	}
	f.store.addDriver(d)
	return d
}

func (f *fixture) requestRide(t *testing.T, riderID string, fare string, method domain.PaymentMethod) *domain.Ride {
	t.Helper()
	ride, err := f.rides.Create(context.Background(), CreateRideRequest{
		RiderID:       riderID,
		Pickup:        domain.Location{Address: "Gulshan 1", Lat: 23.78, Lng: 90.41},
		Destination:   domain.Location{Address: "Dhanmondi 27", Lat: 23.75, Lng: 90.37},
		Fare:          decimal.RequireFromString(fare),
		PaymentMethod: method,
	})
	if err != nil {
		t.Fatalf("create ride: %v", err)
	}
	return ride
}

// driveTo accepts the ride with driverUserID and advances it until it reaches status.
func (f *fixture) driveTo(t *testing.T, rideID, driverUserID string, status domain.RideStatus) *domain.Ride {
	t.Helper()
	ctx := context.Background()
	ride, err := f.matching.Accept(ctx, rideID, driverUserID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	for ride.Status != status {
		f.clock.Advance(time.Minute)
		ride, err = f.rides.Advance(ctx, rideID, driverUserID)
		if err != nil {
			t.Fatalf("advance to %s: %v", status, err)
		}
	}
	return ride
}

func assertKind(t *testing.T, err, kind error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", kind)
	}
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v error, got %v", kind, err)
	}
}

func mustEqualDecimal(t *testing.T, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("expected %s, got %s", want, got.String())
	}
}

func rideIDs(rides []*domain.Ride) string {
	ids := make([]string, len(rides))
	for i, r := range rides {
		ids[i] = r.ID
	}
	return fmt.Sprint(ids)
}
