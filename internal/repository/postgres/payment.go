package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"goride/internal/domain"
	"goride/internal/repository"
)

const paymentColumns = `id, ride_id, transaction_id, status, amount, gateway_data, invoice_url, created_at, updated_at`

// PaymentRepository is a PostgreSQL implementation of repository.PaymentRepository.
type PaymentRepository struct {
	q Querier
}

// NewPaymentRepository creates a new PostgreSQL payment repository.
func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{q: db}
}

// NewPaymentRepositoryWithTx creates a payment repository using a transaction.
func NewPaymentRepositoryWithTx(tx *sql.Tx) *PaymentRepository {
	return &PaymentRepository{q: tx}
}

// Create persists a new payment.
func (r *PaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	query := `INSERT INTO payments (` + paymentColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.q.ExecContext(ctx, query,
		payment.ID,
		nullString(payment.RideID),
		payment.TransactionID,
		payment.Status,
		payment.Amount,
		nullJSON(payment.GatewayData),
		nullString(payment.InvoiceURL),
		payment.CreatedAt,
		payment.UpdatedAt,
	)
	return translate(err)
}

// GetByID retrieves a payment by ID.
func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	return r.get(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
}

// GetByTransactionID retrieves a payment by transaction id.
func (r *PaymentRepository) GetByTransactionID(ctx context.Context, transactionID string) (*domain.Payment, error) {
	return r.get(ctx, `SELECT `+paymentColumns+` FROM payments WHERE transaction_id = $1`, transactionID)
}

// GetByRideID retrieves the payment linked to a ride.
func (r *PaymentRepository) GetByRideID(ctx context.Context, rideID string) (*domain.Payment, error) {
	return r.get(ctx, `SELECT `+paymentColumns+` FROM payments WHERE ride_id = $1`, rideID)
}

// UpdateStatus performs a conditional status change.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, id string, from, to domain.PaymentStatus) error {
	query := `UPDATE payments SET status = $1, updated_at = now() WHERE id = $2 AND status = $3`
	result, err := r.q.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return err
	}
	if err := expectRow(result, repository.ErrStaleState); err != nil {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return err
	}
	return nil
}

// SetGatewayData stores the raw gateway payload.
func (r *PaymentRepository) SetGatewayData(ctx context.Context, id string, data json.RawMessage) error {
	query := `UPDATE payments SET gateway_data = $1, updated_at = now() WHERE id = $2`
	result, err := r.q.ExecContext(ctx, query, nullJSON(data), id)
	if err != nil {
		return err
	}
	return expectRow(result, repository.ErrNotFound)
}

// AttachInvoice stores the invoice locator.
func (r *PaymentRepository) AttachInvoice(ctx context.Context, id string, url string) error {
	query := `UPDATE payments SET invoice_url = $1, updated_at = now() WHERE id = $2`
	result, err := r.q.ExecContext(ctx, query, url, id)
	if err != nil {
		return err
	}
	return expectRow(result, repository.ErrNotFound)
}

func (r *PaymentRepository) get(ctx context.Context, query string, arg string) (*domain.Payment, error) {
	var (
		p          domain.Payment
		rideID     sql.NullString
		gateway    []byte
		invoiceURL sql.NullString
	)
	err := r.q.QueryRowContext(ctx, query, arg).Scan(
		&p.ID,
		&rideID,
		&p.TransactionID,
		&p.Status,
		&p.Amount,
		&gateway,
		&invoiceURL,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, translate(err)
	}
	p.RideID = rideID.String
	p.InvoiceURL = invoiceURL.String
	if len(gateway) > 0 {
		p.GatewayData = json.RawMessage(gateway)
	}
	return &p, nil
}

func nullJSON(data json.RawMessage) any {
	if len(data) == 0 {
		return nil
	}
	return []byte(data)
}
