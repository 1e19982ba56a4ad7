package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"goride/internal/domain"
)

var transactionIDPattern = regexp.MustCompile(`^RIDE-\d{13}-[0-9A-Z]{8}-[0-9a-z-]{6}$`)

func TestPaymentService_Initiate(t *testing.T) {
	f := newFixture(t)
	f.rider("u1")
	ride := f.requestRide(t, "u1", "320.50", domain.PaymentMethodGateway)

	session, err := f.payments.Initiate(context.Background(), ride.ID, "u1")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if !transactionIDPattern.MatchString(session.TransactionID) {
		t.Errorf("unexpected transaction id format: %s", session.TransactionID)
	}
	if !strings.HasSuffix(session.TransactionID, ride.ID[len(ride.ID)-6:]) {
		t.Errorf("transaction id should end with the ride id suffix: %s", session.TransactionID)
	}
	if session.PaymentURL == "" {
		t.Error("expected a payment url")
	}

	req := f.gateway.last()
	mustEqualDecimal(t, req.Amount, "320.50")
	if req.Email != "u1@example.com" || req.Name != "Rider u1" {
		t.Errorf("gateway request should carry rider details, got %+v", req)
	}

	payment, err := (&memPaymentRepo{f.store}).GetByTransactionID(context.Background(), session.TransactionID)
	if err != nil {
		t.Fatalf("payment not stored: %v", err)
	}
	if payment.Status != domain.PaymentStatusPending || payment.RideID != ride.ID {
		t.Errorf("unexpected payment %+v", payment)
	}
	if string(payment.GatewayData) != `{"status":"SUCCESS"}` {
		t.Errorf("gateway data not stored: %s", payment.GatewayData)
	}
}

func TestPaymentService_Initiate_Rules(t *testing.T) {
	f := newFixture(t)
	f.rider("u1")
	ctx := context.Background()

	_, err := f.payments.Initiate(ctx, "missing", "u1")
	assertKind(t, err, ErrNotFound)

	ride := f.requestRide(t, "u1", "100", domain.PaymentMethodGateway)
	_, err = f.payments.Initiate(ctx, ride.ID, "u2")
	assertKind(t, err, ErrForbidden)

	if _, err := f.rides.Cancel(ctx, ride.ID, "u1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	_, err = f.payments.Initiate(ctx, ride.ID, "u1")
	assertKind(t, err, ErrInvalidState)
}

func TestPaymentService_Initiate_GatewayErrorRevertsPayment(t *testing.T) {
	f := newFixture(t)
	f.rider("u1")
	ctx := context.Background()
	ride := f.requestRide(t, "u1", "100", domain.PaymentMethodGateway)
	f.gateway.err = errors.New("gateway down")

	_, err := f.payments.Initiate(ctx, ride.ID, "u1")
	if err == nil || !strings.Contains(err.Error(), "gateway down") {
		t.Fatalf("expected gateway error, got %v", err)
	}
	failed, err := (&memPaymentRepo{f.store}).GetByRideID(ctx, ride.ID)
	if err != nil {
		t.Fatalf("payment should be kept for retry: %v", err)
	}
	if failed.Status != domain.PaymentStatusFailed {
		t.Errorf("payment should leave PENDING when no checkout was opened, got %s", failed.Status)
	}

	f.gateway.err = nil
	session, err := f.payments.Initiate(ctx, ride.ID, "u1")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if session.TransactionID != failed.TransactionID {
		t.Errorf("retry should reuse %s, got %s", failed.TransactionID, session.TransactionID)
	}
	if n := f.store.paymentCount(); n != 1 {
		t.Errorf("expected a single payment row, got %d", n)
	}
}

func TestPaymentService_Initiate_GatewayErrorKeepsPendingPayment(t *testing.T) {
	f := newFixture(t)
	f.rider("u1")
	ctx := context.Background()
	ride := f.requestRide(t, "u1", "100", domain.PaymentMethodGateway)
	if _, err := f.payments.Initiate(ctx, ride.ID, "u1"); err != nil {
		t.Fatalf("initiate: %v", err)
	}

	f.gateway.err = errors.New("gateway down")
	if _, err := f.payments.Initiate(ctx, ride.ID, "u1"); err == nil {
		t.Fatal("expected gateway error")
	}
	payment, _ := (&memPaymentRepo{f.store}).GetByRideID(ctx, ride.ID)
	if payment.Status != domain.PaymentStatusPending {
		t.Errorf("an open checkout stays PENDING, got %s", payment.Status)
	}
}

func TestPaymentService_Initiate_RetryAfterFailureCancelledRide(t *testing.T) {
	f := newFixture(t)
	f.rider("u1")
	ctx := context.Background()
	ride := f.requestRide(t, "u1", "100", domain.PaymentMethodGateway)

	first, err := f.payments.Initiate(ctx, ride.ID, "u1")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if _, err := f.payments.SettleFailure(ctx, first.TransactionID); err != nil {
		t.Fatalf("settle failure: %v", err)
	}
	if got := f.store.ride(ride.ID).Status; got != domain.RideStatusCancelled {
		t.Fatalf("failed payment should cancel the requested ride, got %s", got)
	}

	retry, err := f.payments.Initiate(ctx, ride.ID, "u1")
	if err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if retry.TransactionID != first.TransactionID {
		t.Errorf("expected reused transaction id %s, got %s", first.TransactionID, retry.TransactionID)
	}
	payment, _ := (&memPaymentRepo{f.store}).GetByRideID(ctx, ride.ID)
	if payment.Status != domain.PaymentStatusPending {
		t.Errorf("expected PENDING, got %s", payment.Status)
	}

	out, err := f.payments.SettleSuccess(ctx, retry.TransactionID)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if !out.Ride.IsPaid || !f.store.ride(ride.ID).IsPaid {
		t.Error("retried payment should mark the ride paid")
	}
}

func TestPaymentService_Initiate_ReusesTransactionID(t *testing.T) {
	f := newFixture(t)
	f.rider("u1")
	f.approvedDriver("d1")
	ctx := context.Background()
	ride := f.requestRide(t, "u1", "100", domain.PaymentMethodGateway)

	first, err := f.payments.Initiate(ctx, ride.ID, "u1")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	again, err := f.payments.Initiate(ctx, ride.ID, "u1")
	if err != nil {
		t.Fatalf("initiate again: %v", err)
	}
	if again.TransactionID != first.TransactionID {
		t.Errorf("pending payment should keep its transaction id: %s vs %s", first.TransactionID, again.TransactionID)
	}

	// A failed payment on a ride that cannot be cancelled any more is reopened as PENDING.
	f.driveTo(t, ride.ID, "d1", domain.RideStatusInTransit)
	if _, err := f.payments.SettleFailure(ctx, first.TransactionID); err != nil {
		t.Fatalf("settle failure: %v", err)
	}
	reopened, err := f.payments.Initiate(ctx, ride.ID, "u1")
	if err != nil {
		t.Fatalf("reinitiate: %v", err)
	}
	if reopened.TransactionID != first.TransactionID {
		t.Errorf("expected reused transaction id, got %s", reopened.TransactionID)
	}
	payment, _ := (&memPaymentRepo{f.store}).GetByRideID(ctx, ride.ID)
	if payment.Status != domain.PaymentStatusPending {
		t.Errorf("expected PENDING, got %s", payment.Status)
	}
	if n := f.store.paymentCount(); n != 1 {
		t.Errorf("expected a single payment row, got %d", n)
	}
}

func TestPaymentService_SettleSuccess(t *testing.T) {
	f := newFixture(t)
	f.rider("u1")
	ctx := context.Background()
	ride := f.requestRide(t, "u1", "100", domain.PaymentMethodGateway)
	session, err := f.payments.Initiate(ctx, ride.ID, "u1")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	out, err := f.payments.SettleSuccess(ctx, session.TransactionID)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if !out.Success || out.Payment.Status != domain.PaymentStatusPaid || out.Ride == nil || !out.Ride.IsPaid {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if !f.store.ride(ride.ID).IsPaid {
		t.Error("ride should be marked paid")
	}
	if f.queue.len() != 1 {
		t.Errorf("expected one invoice job, got %d", f.queue.len())
	}
	if f.publisher.count(EventPaymentStatusChanged) != 1 {
		t.Error("expected a payment notification")
	}

	// A repeated callback is an idempotent success without side effects.
	again, err := f.payments.SettleSuccess(ctx, session.TransactionID)
	if err != nil {
		t.Fatalf("repeat settle: %v", err)
	}
	if !again.Success || again.Payment.Status != domain.PaymentStatusPaid {
		t.Errorf("repeat should succeed, got %+v", again)
	}
	if f.queue.len() != 1 || f.publisher.count(EventPaymentStatusChanged) != 1 {
		t.Error("repeat must not enqueue or notify again")
	}

	// A paid payment can no longer fail, be cancelled or be reopened.
	_, err = f.payments.SettleFailure(ctx, session.TransactionID)
	assertKind(t, err, ErrConflict)
	_, err = f.payments.SettleCancel(ctx, session.TransactionID)
	assertKind(t, err, ErrConflict)
	_, err = f.payments.Initiate(ctx, ride.ID, "u1")
	if !errors.Is(err, ErrAlreadyPaid) {
		t.Errorf("expected ErrAlreadyPaid, got %v", err)
	}
}

func TestPaymentService_SettleSuccess_RideWriteFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.rider("u1")
	ctx := context.Background()
	ride := f.requestRide(t, "u1", "100", domain.PaymentMethodGateway)
	session, err := f.payments.Initiate(ctx, ride.ID, "u1")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	f.store.failOn("Rides.SetPaid", errInjected)
	if _, err := f.payments.SettleSuccess(ctx, session.TransactionID); !errors.Is(err, errInjected) {
		t.Fatalf("expected injected error, got %v", err)
	}

	payment, _ := (&memPaymentRepo{f.store}).GetByTransactionID(ctx, session.TransactionID)
	if payment.Status != domain.PaymentStatusPending {
		t.Errorf("payment must stay PENDING, got %s", payment.Status)
	}
	if f.store.ride(ride.ID).IsPaid {
		t.Error("ride must stay unpaid")
	}
	if f.queue.len() != 0 {
		t.Errorf("no invoice job may be enqueued, got %d", f.queue.len())
	}
	if f.publisher.count(EventPaymentStatusChanged) != 0 {
		t.Error("no payment notification may be sent")
	}
}

func TestPaymentService_SettleUnknownTransaction(t *testing.T) {
	f := newFixture(t)
	_, err := f.payments.SettleSuccess(context.Background(), "RIDE-0-XXXXXXXX-000000")
	assertKind(t, err, ErrNotFound)
	_, err = f.payments.SettleFailure(context.Background(), "")
	assertKind(t, err, ErrInvalidInput)
}

func TestPaymentService_SettleFailure_CancelsEarlyRide(t *testing.T) {
	f := newFixture(t)
	f.rider("u1")
	driver := f.approvedDriver("d1")
	ctx := context.Background()
	ride := f.requestRide(t, "u1", "100", domain.PaymentMethodGateway)
	if _, err := f.matching.Accept(ctx, ride.ID, "d1"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	session, err := f.payments.Initiate(ctx, ride.ID, "u1")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	out, err := f.payments.SettleFailure(ctx, session.TransactionID)
	if err != nil {
		t.Fatalf("settle failure: %v", err)
	}
	if out.Success || out.Payment.Status != domain.PaymentStatusFailed {
		t.Errorf("unexpected outcome %+v", out)
	}

	stored := f.store.ride(ride.ID)
	if stored.Status != domain.RideStatusCancelled || stored.Timestamps.CancelledAt.IsZero() {
		t.Errorf("ride should be cancelled, got %s", stored.Status)
	}
	if stored.IsPaid {
		t.Error("ride must be unpaid")
	}
	if f.store.driver(driver.ID).Availability != domain.AvailabilityOnline {
		t.Error("assigned driver should be released")
	}
}

func TestPaymentService_SettleCancel_KeepsLateRideStatus(t *testing.T) {
	f := newFixture(t)
	f.rider("u1")
	f.approvedDriver("d1")
	ctx := context.Background()
	ride := f.requestRide(t, "u1", "100", domain.PaymentMethodGateway)
	f.driveTo(t, ride.ID, "d1", domain.RideStatusPickedUp)
	session, err := f.payments.Initiate(ctx, ride.ID, "u1")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	out, err := f.payments.SettleCancel(ctx, session.TransactionID)
	if err != nil {
		t.Fatalf("settle cancel: %v", err)
	}
	if out.Payment.Status != domain.PaymentStatusCancelled {
		t.Errorf("expected CANCELLED payment, got %s", out.Payment.Status)
	}
	if got := f.store.ride(ride.ID).Status; got != domain.RideStatusPickedUp {
		t.Errorf("ride past acceptance keeps its status, got %s", got)
	}
}

func TestPaymentService_GetInvoiceLocator(t *testing.T) {
	f := newFixture(t)
	f.rider("u1")
	ctx := context.Background()
	ride := f.requestRide(t, "u1", "100", domain.PaymentMethodGateway)
	session, err := f.payments.Initiate(ctx, ride.ID, "u1")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	out, err := f.payments.SettleSuccess(ctx, session.TransactionID)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}

	_, err = f.payments.GetInvoiceLocator(ctx, out.Payment.ID)
	if !errors.Is(err, ErrInvoiceNotFound) {
		t.Fatalf("expected ErrInvoiceNotFound before the job ran, got %v", err)
	}
	_, err = f.payments.GetInvoiceLocator(ctx, "missing")
	assertKind(t, err, ErrNotFound)

	if errs := f.queue.drain(ctx); len(errs) != 0 {
		t.Fatalf("invoice job failed: %v", errs)
	}
	url, err := f.payments.GetInvoiceLocator(ctx, out.Payment.ID)
	if err != nil {
		t.Fatalf("locator: %v", err)
	}
	want := "https://files.test/ride-invoice-" + session.TransactionID + ".png"
	if url != want {
		t.Errorf("expected %s, got %s", want, url)
	}
}
