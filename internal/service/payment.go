package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"

	"goride/internal/domain"
	"goride/internal/repository"
)

const transactionAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// PaymentService links gateway payment outcomes to ride state. Every settlement runs in
// one transaction so a payment and its ride never disagree.
type PaymentService struct {
	tx          repository.Transactor
	rideRepo    repository.RideRepository
	paymentRepo repository.PaymentRepository
	userRepo    repository.UserRepository
	gateway     PaymentGateway
	invoices    *InvoiceService
	publisher   EventPublisher
	logger      *zap.Logger
	now         func() time.Time
}

// NewPaymentService creates a new PaymentService. invoices may be nil.
func NewPaymentService(
	tx repository.Transactor,
	rideRepo repository.RideRepository,
	paymentRepo repository.PaymentRepository,
	userRepo repository.UserRepository,
	gateway PaymentGateway,
	invoices *InvoiceService,
	publisher EventPublisher,
	logger *zap.Logger,
) *PaymentService {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &PaymentService{
		tx:          tx,
		rideRepo:    rideRepo,
		paymentRepo: paymentRepo,
		userRepo:    userRepo,
		gateway:     gateway,
		invoices:    invoices,
		publisher:   publisher,
		logger:      logger,
		now:         time.Now,
	}
}

// SettlementOutcome is the result of a gateway callback.
type SettlementOutcome struct {
	Success bool
	Message string
	Payment *domain.Payment
	Ride    *domain.Ride // nil for payments not linked to a ride
}

// Initiate opens a gateway checkout for a ride. A payment that was started before and never
// completed is reopened under its original transaction id, also when a failed payment already
// cancelled the ride. The payment is committed as PENDING before the gateway is called; if the
// gateway fails it returns to its previous status so the rider can retry.
func (s *PaymentService) Initiate(ctx context.Context, rideID, riderID string) (*GatewaySession, error) {
	if rideID == "" {
		return nil, invalidInput("ride id is required")
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, notFound(err, ErrRideNotFound)
	}
	if ride.RiderID != riderID {
		return nil, ErrNotRideOwner
	}

	rider, err := s.userRepo.GetByID(ctx, ride.RiderID)
	if err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}

	var (
		payment *domain.Payment
		revert  domain.PaymentStatus
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		payment, revert, err = s.pendingPayment(ctx, repos.Payments, ride)
		return err
	})
	if err != nil {
		return nil, err
	}

	session, err := s.gateway.InitPayment(ctx, GatewayRequest{
		Name:          rider.Name,
		Email:         rider.Email,
		Phone:         rider.Phone,
		Address:       rider.Address,
		Amount:        payment.Amount,
		TransactionID: payment.TransactionID,
	})
	if err != nil {
		s.revertPending(ctx, payment, revert)
		return nil, fmt.Errorf("init gateway payment: %w", err)
	}
	session.TransactionID = payment.TransactionID
	if err := s.paymentRepo.SetGatewayData(ctx, payment.ID, session.Raw); err != nil {
		return nil, fmt.Errorf("store gateway data: %w", err)
	}

	s.logger.Info("payment initiated", zap.String("ride_id", ride.ID), zap.String("transaction_id", session.TransactionID))
	return session, nil
}

// pendingPayment returns the ride's payment moved to PENDING, creating it when missing, and the
// status to restore should the gateway call fail. Closed rides only get a payment reopened.
func (s *PaymentService) pendingPayment(ctx context.Context, payments repository.PaymentRepository, ride *domain.Ride) (*domain.Payment, domain.PaymentStatus, error) {
	existing, err := payments.GetByRideID(ctx, ride.ID)
	switch {
	case err == nil:
		if existing.Settled() {
			return nil, "", ErrAlreadyPaid
		}
		previous := existing.Status
		if previous != domain.PaymentStatusPending {
			if err := payments.UpdateStatus(ctx, existing.ID, previous, domain.PaymentStatusPending); err != nil {
				return nil, "", paymentWriteErr(err)
			}
			existing.Status = domain.PaymentStatusPending
		}
		return existing, previous, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, "", err
	}

	if ride.Status == domain.RideStatusCancelled || ride.Status == domain.RideStatusRejected {
		return nil, "", invalidState("ride is %s", ride.Status)
	}

	txnID, err := newTransactionID(s.now(), ride.ID)
	if err != nil {
		return nil, "", err
	}
	now := s.now()
	payment := &domain.Payment{
		ID:            uuid.New().String(),
		RideID:        ride.ID,
		TransactionID: txnID,
		Status:        domain.PaymentStatusPending,
		Amount:        ride.Fare,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := payments.Create(ctx, payment); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, "", newError(ErrConflict, "payment initiation already in progress")
		}
		return nil, "", err
	}
	return payment, domain.PaymentStatusFailed, nil
}

// revertPending moves a payment whose checkout could not be opened back to status.
// A payment that was already PENDING stays PENDING.
func (s *PaymentService) revertPending(ctx context.Context, payment *domain.Payment, status domain.PaymentStatus) {
	if status == domain.PaymentStatusPending {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if err := s.paymentRepo.UpdateStatus(ctx, payment.ID, domain.PaymentStatusPending, status); err != nil {
		s.logger.Warn("revert payment status",
			zap.String("payment_id", payment.ID),
			zap.String("status", string(status)),
			zap.Error(err),
		)
	}
}

// SettleSuccess marks a payment PAID and its ride paid. Repeating it for a PAID payment succeeds
// without side effects. The invoice pipeline runs after commit and never fails the caller.
func (s *PaymentService) SettleSuccess(ctx context.Context, transactionID string) (*SettlementOutcome, error) {
	if transactionID == "" {
		return nil, invalidInput("transaction id is required")
	}

	var (
		payment     *domain.Payment
		ride        *domain.Ride
		alreadyPaid bool
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		payment, err = repos.Payments.GetByTransactionID(ctx, transactionID)
		if err != nil {
			return notFound(err, ErrPaymentNotFound)
		}
		if payment.Settled() {
			alreadyPaid = true
			return nil
		}

		if err := repos.Payments.UpdateStatus(ctx, payment.ID, payment.Status, domain.PaymentStatusPaid); err != nil {
			if !errors.Is(err, repository.ErrStaleState) {
				return err
			}
			// A concurrent callback may have settled it first.
			current, getErr := repos.Payments.GetByID(ctx, payment.ID)
			if getErr != nil {
				return getErr
			}
			if !current.Settled() {
				return paymentWriteErr(err)
			}
			payment, alreadyPaid = current, true
			return nil
		}
		payment.Status = domain.PaymentStatusPaid

		if payment.RideID == "" {
			return nil
		}
		ride, err = repos.Rides.GetByID(ctx, payment.RideID)
		if err != nil {
			return notFound(err, ErrRideNotFound)
		}
		ride.IsPaid = true
		return notFound(repos.Rides.SetPaid(ctx, ride.ID, true), ErrRideNotFound)
	})
	if err != nil {
		return nil, err
	}

	if alreadyPaid {
		return &SettlementOutcome{Success: true, Message: "Payment already completed", Payment: payment}, nil
	}

	s.logger.Info("payment settled",
		zap.String("payment_id", payment.ID),
		zap.String("transaction_id", payment.TransactionID),
	)
	s.publisher.PaymentSettled(ctx, payment, ride)
	if s.invoices != nil && ride != nil {
		s.invoices.Dispatch(payment.ID)
	}

	msg := "Payment completed successfully"
	if ride != nil {
		msg = "Ride payment completed successfully"
	}
	return &SettlementOutcome{Success: true, Message: msg, Payment: payment, Ride: ride}, nil
}

// SettleFailure records a failed gateway payment.
func (s *PaymentService) SettleFailure(ctx context.Context, transactionID string) (*SettlementOutcome, error) {
	return s.settleUnpaid(ctx, transactionID, domain.PaymentStatusFailed, "Payment failed")
}

// SettleCancel records a payment the rider abandoned at the gateway.
func (s *PaymentService) SettleCancel(ctx context.Context, transactionID string) (*SettlementOutcome, error) {
	return s.settleUnpaid(ctx, transactionID, domain.PaymentStatusCancelled, "Payment cancelled")
}

// settleUnpaid moves a payment to FAILED or CANCELLED, clears the ride's paid flag and cancels
// the ride when it has not been picked up yet.
func (s *PaymentService) settleUnpaid(ctx context.Context, transactionID string, to domain.PaymentStatus, msg string) (*SettlementOutcome, error) {
	if transactionID == "" {
		return nil, invalidInput("transaction id is required")
	}

	var (
		payment   *domain.Payment
		ride      *domain.Ride
		cancelled bool
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		payment, err = repos.Payments.GetByTransactionID(ctx, transactionID)
		if err != nil {
			return notFound(err, ErrPaymentNotFound)
		}
		if payment.Settled() {
			return ErrAlreadyPaid
		}
		if err := repos.Payments.UpdateStatus(ctx, payment.ID, payment.Status, to); err != nil {
			return paymentWriteErr(err)
		}
		payment.Status = to

		if payment.RideID == "" {
			return nil
		}
		ride, err = repos.Rides.GetByID(ctx, payment.RideID)
		if err != nil {
			return notFound(err, ErrRideNotFound)
		}
		ride.IsPaid = false
		if err := repos.Rides.SetPaid(ctx, ride.ID, false); err != nil {
			return notFound(err, ErrRideNotFound)
		}
		if !ride.Status.Cancellable() {
			return nil
		}

		from := ride.Status
		ride.Status = domain.RideStatusCancelled
		ride.Timestamps.Stamp(domain.RideStatusCancelled, s.now())
		if err := repos.Rides.Transition(ctx, ride, from); err != nil {
			return rideWriteErr(err)
		}
		cancelled = true

		if ride.Driver.IsZero() {
			return nil
		}
		driver, err := lookupDriver(ctx, repos.Drivers, ride.Driver)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil
			}
			return err
		}
		return repos.Drivers.SetAvailability(ctx, driver.ID, driver.ReleaseAvailability())
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment not completed",
		zap.String("payment_id", payment.ID),
		zap.String("status", string(to)),
		zap.Bool("ride_cancelled", cancelled),
	)
	s.publisher.PaymentSettled(ctx, payment, ride)
	if cancelled {
		s.publisher.RideStatusChanged(ctx, ride)
	}
	return &SettlementOutcome{Success: false, Message: msg, Payment: payment, Ride: ride}, nil
}

// GetInvoiceLocator returns where the invoice of a payment is stored.
func (s *PaymentService) GetInvoiceLocator(ctx context.Context, paymentID string) (string, error) {
	if paymentID == "" {
		return "", invalidInput("payment id is required")
	}
	payment, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return "", notFound(err, ErrPaymentNotFound)
	}
	if payment.InvoiceURL == "" {
		return "", ErrInvoiceNotFound
	}
	return payment.InvoiceURL, nil
}

// newTransactionID builds RIDE-<unix millis>-<random>-<last 6 of ride id>.
func newTransactionID(now time.Time, rideID string) (string, error) {
	random, err := gonanoid.Generate(transactionAlphabet, 8)
	if err != nil {
		return "", fmt.Errorf("generate transaction id: %w", err)
	}
	suffix := rideID
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	return fmt.Sprintf("RIDE-%d-%s-%s", now.UnixMilli(), random, suffix), nil
}

func paymentWriteErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrStaleState):
		return newError(ErrConflict, "payment status changed concurrently")
	case errors.Is(err, repository.ErrNotFound):
		return ErrPaymentNotFound
	default:
		return err
	}
}
