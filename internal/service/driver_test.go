package service

import (
	"context"
	"errors"
	"testing"

	"goride/internal/domain"
)

func TestDriverService_Register(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := RegisterDriverRequest{UserID: "u9", Vehicle: domain.Vehicle{Type: "bike", Plate: "DHA-9"}}

	driver, err := f.drivers.Register(ctx, req)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if driver.Approval != domain.ApprovalPending || driver.Availability != domain.AvailabilityOnline {
		t.Errorf("new profile should be PENDING and ONLINE, got %s/%s", driver.Approval, driver.Availability)
	}
	mustEqualDecimal(t, driver.Earnings, "0")

	_, err = f.drivers.Register(ctx, req)
	if !errors.Is(err, ErrDriverExists) {
		t.Fatalf("expected ErrDriverExists, got %v", err)
	}

	_, err = f.drivers.Register(ctx, RegisterDriverRequest{UserID: "u10"})
	assertKind(t, err, ErrInvalidInput)
}

func TestDriverService_Approve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.addUser(&domain.User{ID: "d1", Role: domain.RoleDriver})

	created, err := f.drivers.Approve(ctx, "d1")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if created.Approval != domain.ApprovalApproved || created.Availability != domain.AvailabilityOnline {
		t.Errorf("approve should create an approved online profile, got %+v", created)
	}

	again, err := f.drivers.Approve(ctx, "d1")
	if err != nil {
		t.Fatalf("approve again: %v", err)
	}
	if again.ID != created.ID {
		t.Error("approving twice must not create a second profile")
	}

	f.rider("u1")
	_, err = f.drivers.Approve(ctx, "u1")
	assertKind(t, err, ErrInvalidState)

	_, err = f.drivers.Approve(ctx, "ghost")
	assertKind(t, err, ErrNotFound)
}

func TestDriverService_ApproveLiftsBlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	driver := f.approvedDriver("d1")

	if _, err := f.drivers.Block(ctx, "d1"); err != nil {
		t.Fatalf("block: %v", err)
	}
	got, err := f.drivers.Approve(ctx, "d1")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if got.Approval != domain.ApprovalApproved || f.store.driver(driver.ID).Approval != domain.ApprovalApproved {
		t.Errorf("expected APPROVED, got %s", got.Approval)
	}
}

func TestDriverService_SuspendAndBlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	driver := f.approvedDriver("d1")

	suspended, err := f.drivers.Suspend(ctx, "d1")
	if err != nil {
		t.Fatalf("suspend: %v", err)
	}
	if suspended.Approval != domain.ApprovalSuspended || f.store.driver(driver.ID).Availability != domain.AvailabilityOffline {
		t.Errorf("suspended driver should be offline, got %+v", f.store.driver(driver.ID))
	}

	// Only approved drivers can be suspended.
	_, err = f.drivers.Suspend(ctx, "d1")
	assertKind(t, err, ErrInvalidState)

	if _, err := f.drivers.Block(ctx, "d1"); err != nil {
		t.Fatalf("block: %v", err)
	}
	_, err = f.drivers.Block(ctx, "d1")
	assertKind(t, err, ErrInvalidState)

	_, err = f.drivers.Block(ctx, "nobody")
	if !errors.Is(err, ErrDriverNotFound) {
		t.Errorf("expected ErrDriverNotFound, got %v", err)
	}
}

func TestDriverService_SetAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	driver := f.approvedDriver("d1")

	got, err := f.drivers.SetAvailability(ctx, "d1", false)
	if err != nil {
		t.Fatalf("set availability: %v", err)
	}
	if got.Availability != domain.AvailabilityOffline || f.store.driver(driver.ID).Availability != domain.AvailabilityOffline {
		t.Errorf("expected OFFLINE")
	}

	if _, err := f.drivers.Register(ctx, RegisterDriverRequest{
		UserID:  "d2",
		Vehicle: domain.Vehicle{Type: "car", Plate: "DHA-2"},
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err = f.drivers.SetAvailability(ctx, "d2", true)
	if !errors.Is(err, ErrDriverNotApproved) {
		t.Errorf("pending driver must not toggle availability, got %v", err)
	}
}
