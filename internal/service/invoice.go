package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"goride/internal/domain"
	"goride/internal/repository"
)

const invoiceMailSubject = "Ride Invoice - Payment Confirmation"

// InvoiceService renders, stores and mails the invoice of a settled ride payment.
// It runs after the settlement transaction commits; failures are logged, never returned to payers.
type InvoiceService struct {
	paymentRepo repository.PaymentRepository
	rideRepo    repository.RideRepository
	userRepo    repository.UserRepository
	renderer    InvoiceRenderer
	storage     ObjectStorage
	mailer      Mailer
	queue       JobQueue
	logger      *zap.Logger
}

// NewInvoiceService creates a new InvoiceService.
func NewInvoiceService(
	paymentRepo repository.PaymentRepository,
	rideRepo repository.RideRepository,
	userRepo repository.UserRepository,
	renderer InvoiceRenderer,
	storage ObjectStorage,
	mailer Mailer,
	queue JobQueue,
	logger *zap.Logger,
) *InvoiceService {
	return &InvoiceService{
		paymentRepo: paymentRepo,
		rideRepo:    rideRepo,
		userRepo:    userRepo,
		renderer:    renderer,
		storage:     storage,
		mailer:      mailer,
		queue:       queue,
		logger:      logger,
	}
}

// Dispatch queues invoice generation for a payment.
func (s *InvoiceService) Dispatch(paymentID string) {
	ok := s.queue.Enqueue("invoice:"+paymentID, func(ctx context.Context) error {
		return s.Process(ctx, paymentID)
	})
	if !ok {
		s.logger.Warn("invoice job dropped", zap.String("payment_id", paymentID))
	}
}

// Process runs the pipeline: render, store, attach the locator, then mail the rider.
func (s *InvoiceService) Process(ctx context.Context, paymentID string) error {
	payment, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return fmt.Errorf("load payment: %w", err)
	}
	if payment.RideID == "" {
		return nil
	}
	ride, err := s.rideRepo.GetByID(ctx, payment.RideID)
	if err != nil {
		return fmt.Errorf("load ride: %w", err)
	}
	rider, err := s.userRepo.GetByID(ctx, ride.RiderID)
	if err != nil {
		return fmt.Errorf("load rider: %w", err)
	}

	data := BuildInvoiceData(payment, ride, rider)
	doc, err := s.renderer.Render(data)
	if err != nil {
		return fmt.Errorf("render invoice: %w", err)
	}

	filename := "ride-invoice-" + payment.TransactionID + s.renderer.Extension()
	url, err := s.storage.Store(ctx, doc, filename, s.renderer.ContentType())
	if err != nil {
		return fmt.Errorf("store invoice: %w", err)
	}
	if err := s.paymentRepo.AttachInvoice(ctx, payment.ID, url); err != nil {
		return fmt.Errorf("attach invoice: %w", err)
	}

	if data.RiderEmail == "" {
		s.logger.Info("invoice stored, rider has no email", zap.String("payment_id", payment.ID))
		return nil
	}
	err = s.mailer.Send(ctx, Mail{
		To:       data.RiderEmail,
		Subject:  invoiceMailSubject,
		Template: "rideInvoice",
		Data:     data,
		Attachments: []Attachment{{
			Filename:    filename,
			ContentType: s.renderer.ContentType(),
			Content:     doc,
		}},
	})
	if err != nil {
		return fmt.Errorf("mail invoice: %w", err)
	}

	s.logger.Info("invoice delivered", zap.String("payment_id", payment.ID), zap.String("url", url))
	return nil
}

// BuildInvoiceData collects the invoice fields for a paid ride.
func BuildInvoiceData(payment *domain.Payment, ride *domain.Ride, rider *domain.User) domain.InvoiceData {
	return domain.InvoiceData{
		TransactionID:       payment.TransactionID,
		RideDate:            ride.CreatedAt,
		RiderName:           rider.Name,
		RiderEmail:          rider.Email,
		PickupLocation:      ride.Pickup.Address,
		DestinationLocation: ride.Destination.Address,
		Fare:                ride.Fare,
		PaymentMethod:       ride.PaymentMethod,
	}
}
