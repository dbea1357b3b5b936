package invoice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	ErrInvoiceNotFound = errors.New("invoice not found")
	ErrInvoiceExists   = errors.New("booking already has an invoice")
	ErrAlreadyPaid     = errors.New("invoice already paid")
)

const invoiceColumns = `id, invoice_id, booking_id, status, items, subtotal, tax, tax_amount, admin_percentage, admin_fee, total, paid, transaction_id, created_at, updated_at`

const uniqueViolation = "23505"

// bookingIndex enforces one invoice per booking at the schema level.
const bookingIndex = "idx_invoices_booking_id"

type Repository interface {
	GetByInvoiceID(ctx context.Context, invoiceID string) (*Invoice, error)
	// GetByBooking returns the latest invoice for the booking, paid or not.
	GetByBooking(ctx context.Context, bookingID string) (*Invoice, error)
	GetUnpaidByBooking(ctx context.Context, bookingID string) (*Invoice, error)
	// Create assigns the next sequential invoice number and inserts the row,
	// retrying on number collisions from concurrent invoicing. A booking can
	// carry at most one invoice: a concurrent insert for the same booking
	// fails with ErrInvoiceExists and the caller re-reads the winner.
	Create(ctx context.Context, inv *Invoice) (*Invoice, error)
	// MarkPaid flips the invoice to paid and writes the payment record. A
	// second call is a no-op: the invoice is immutable once paid.
	MarkPaid(ctx context.Context, invoiceID string) error
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetByInvoiceID(ctx context.Context, invoiceID string) (*Invoice, error) {
	var inv Invoice
	err := r.db.GetContext(ctx, &inv,
		`SELECT `+invoiceColumns+` FROM invoices WHERE invoice_id = $1`,
		invoiceID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvoiceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *repository) GetByBooking(ctx context.Context, bookingID string) (*Invoice, error) {
	var inv Invoice
	err := r.db.GetContext(ctx, &inv,
		`SELECT `+invoiceColumns+` FROM invoices
		 WHERE booking_id = $1
		 ORDER BY id DESC LIMIT 1`,
		bookingID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvoiceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *repository) GetUnpaidByBooking(ctx context.Context, bookingID string) (*Invoice, error) {
	var inv Invoice
	err := r.db.GetContext(ctx, &inv,
		`SELECT `+invoiceColumns+` FROM invoices
		 WHERE booking_id = $1 AND paid = FALSE
		 ORDER BY id DESC LIMIT 1`,
		bookingID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvoiceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *repository) Create(ctx context.Context, inv *Invoice) (*Invoice, error) {
	const maxRetries = 3

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		number, err := r.nextInvoiceNumber(ctx)
		if err != nil {
			return nil, err
		}

		created := &Invoice{}
		err = r.db.QueryRowxContext(ctx,
			`INSERT INTO invoices (invoice_id, booking_id, status, items, subtotal, tax, tax_amount, admin_percentage, admin_fee, total)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 RETURNING `+invoiceColumns,
			number, inv.BookingID, inv.Status, inv.Items, inv.Subtotal, inv.Tax, inv.TaxAmount, inv.AdminPercentage, inv.AdminFee, inv.Total,
		).StructScan(created)
		if err == nil {
			return created, nil
		}

		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			if pqErr.Constraint == bookingIndex {
				return nil, ErrInvoiceExists
			}
			lastErr = err
			continue
		}
		return nil, err
	}

	return nil, fmt.Errorf("failed to allocate invoice number after %d attempts: %w", maxRetries, lastErr)
}

func (r *repository) nextInvoiceNumber(ctx context.Context) (string, error) {
	var last string
	err := r.db.GetContext(ctx, &last,
		`SELECT invoice_id FROM invoices ORDER BY id DESC LIMIT 1`,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return "INV-000001", nil
	}
	if err != nil {
		return "", err
	}

	parts := strings.SplitN(last, "-", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("malformed invoice number %q", last)
	}
	current, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", fmt.Errorf("malformed invoice number %q: %w", last, err)
	}
	return fmt.Sprintf("INV-%06d", current+1), nil
}

func (r *repository) MarkPaid(ctx context.Context, invoiceID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var inv Invoice
	err = tx.QueryRowxContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE invoice_id = $1 FOR UPDATE`,
		invoiceID,
	).StructScan(&inv)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrInvoiceNotFound
	}
	if err != nil {
		return err
	}

	if inv.Paid {
		return tx.Commit()
	}

	txnID := GenerateTransactionID()
	_, err = tx.ExecContext(ctx,
		`UPDATE invoices SET status = 'paid', paid = TRUE, transaction_id = $1, updated_at = NOW()
		 WHERE invoice_id = $2`,
		txnID, invoiceID,
	)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO payments (invoice_id, payment_id, transaction_id, status, amount, admin_fee, vat, total, paid)
		 VALUES ($1, $2, $3, 'paid', $4, $5, $6, $7, TRUE)`,
		invoiceID, GeneratePaymentID(), txnID, inv.Subtotal, inv.AdminFee, inv.TaxAmount, inv.Total,
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}
