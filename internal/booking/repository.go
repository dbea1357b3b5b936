package booking

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/okeowo1014/leisuretimezapi/internal/promo"
)

var (
	ErrBookingNotFound = errors.New("booking not found")
	ErrInvalidState    = errors.New("invalid booking state for this operation")
)

const bookingColumns = `id, booking_id, package_id, customer_id, date_from, date_to, adult, children, original_price, price, discount_amount, promo_code, payment_method, wallet_amount_paid, stripe_amount_due, checkout_session_id, wallet_transaction_id, status, cancelled_at, cancellation_reason, refund_amount, refund_status, created_at, updated_at`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, b *Booking) (*Booking, error) {
	created := &Booking{}
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO bookings (booking_id, package_id, customer_id, date_from, date_to, adult, children, original_price, price, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING `+bookingColumns,
		b.BookingID, b.PackageID, b.CustomerID, b.DateFrom, b.DateTo, b.Adult, b.Children, b.OriginalPrice, b.Price, StatusPending,
	).StructScan(created)
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *repository) getWhere(ctx context.Context, where string, args ...interface{}) (*Booking, error) {
	var b Booking
	err := r.db.GetContext(ctx, &b,
		`SELECT `+bookingColumns+` FROM bookings WHERE `+where, args...,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *repository) GetByBookingID(ctx context.Context, bookingID string) (*Booking, error) {
	return r.getWhere(ctx, `booking_id = $1`, bookingID)
}

func (r *repository) GetForCustomer(ctx context.Context, bookingID string, customerID int) (*Booking, error) {
	return r.getWhere(ctx, `booking_id = $1 AND customer_id = $2`, bookingID, customerID)
}

func (r *repository) GetBySessionID(ctx context.Context, sessionID string) (*Booking, error) {
	return r.getWhere(ctx, `checkout_session_id = $1`, sessionID)
}

func (r *repository) ListByCustomer(ctx context.Context, customerID int, limit, offset int) ([]Booking, error) {
	bookings := []Booking{}
	err := r.db.SelectContext(ctx, &bookings,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE customer_id = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		customerID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *repository) ListAll(ctx context.Context, limit, offset int) ([]Booking, error) {
	bookings := []Booking{}
	err := r.db.SelectContext(ctx, &bookings,
		`SELECT `+bookingColumns+` FROM bookings
		 ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

// execGuarded runs a state-guarded UPDATE and converts "no rows touched"
// into ErrInvalidState.
func (r *repository) execGuarded(ctx context.Context, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInvalidState
	}
	return nil
}

func (r *repository) UpdateGuestsAndPrice(ctx context.Context, bookingID string, dateFrom, dateTo time.Time, adult, children int, originalPrice, price, discount decimal.Decimal) error {
	return r.execGuarded(ctx,
		`UPDATE bookings
		 SET date_from = $1, date_to = $2, adult = $3, children = $4,
		     original_price = $5, price = $6, discount_amount = $7, updated_at = NOW()
		 WHERE booking_id = $8 AND status = $9`,
		dateFrom, dateTo, adult, children, originalPrice, price, discount, bookingID, StatusPending,
	)
}

func (r *repository) ApplyPromo(ctx context.Context, bookingID string, promoID int, code string, discount, newPrice decimal.Decimal) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE bookings
		 SET promo_code = $1, discount_amount = $2, price = $3, updated_at = NOW()
		 WHERE booking_id = $4 AND status = $5 AND promo_code = ''`,
		code, discount, newPrice, bookingID, StatusPending,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInvalidState
	}

	res, err = tx.ExecContext(ctx,
		`UPDATE promo_codes
		 SET current_uses = current_uses + 1
		 WHERE id = $1 AND (max_uses = 0 OR current_uses < max_uses)`,
		promoID,
	)
	if err != nil {
		return err
	}
	n, err = res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return promo.ErrUsageCapTaken
	}

	return tx.Commit()
}

// ClearPromo restores the pre-discount price. Usage counters stay as they
// are: removal is a booking-side undo, not a usage refund.
func (r *repository) ClearPromo(ctx context.Context, bookingID string) error {
	return r.execGuarded(ctx,
		`UPDATE bookings
		 SET promo_code = '', discount_amount = 0, price = original_price, updated_at = NOW()
		 WHERE booking_id = $1 AND status = $2 AND promo_code <> ''`,
		bookingID, StatusPending,
	)
}

func (r *repository) ClaimPayment(ctx context.Context, bookingID, method string) error {
	return r.execGuarded(ctx,
		`UPDATE bookings SET payment_method = $1, updated_at = NOW()
		 WHERE booking_id = $2 AND status = $3 AND payment_method = ''`,
		method, bookingID, StatusPending,
	)
}

func (r *repository) ReleaseClaim(ctx context.Context, bookingID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET payment_method = '', updated_at = NOW()
		 WHERE booking_id = $1 AND status = $2`,
		bookingID, StatusPending,
	)
	return err
}

func (r *repository) MarkWalletPaid(ctx context.Context, bookingID, walletTxID string, amount decimal.Decimal) error {
	return r.execGuarded(ctx,
		`UPDATE bookings
		 SET status = $1, wallet_amount_paid = $2, wallet_transaction_id = $3, updated_at = NOW()
		 WHERE booking_id = $4 AND status = $5`,
		StatusPaid, amount, walletTxID, bookingID, StatusPending,
	)
}

func (r *repository) MarkSplitPending(ctx context.Context, bookingID, walletTxID string, walletAmount, stripeAmount decimal.Decimal, sessionID string) error {
	return r.execGuarded(ctx,
		`UPDATE bookings
		 SET status = $1, wallet_amount_paid = $2, stripe_amount_due = $3,
		     wallet_transaction_id = $4, checkout_session_id = $5, updated_at = NOW()
		 WHERE booking_id = $6 AND status = $7`,
		StatusInvoiced, walletAmount, stripeAmount, walletTxID, sessionID, bookingID, StatusPending,
	)
}

func (r *repository) MarkExternalPending(ctx context.Context, bookingID string, stripeAmount decimal.Decimal, sessionID string) error {
	return r.execGuarded(ctx,
		`UPDATE bookings
		 SET status = $1, stripe_amount_due = $2, checkout_session_id = $3, updated_at = NOW()
		 WHERE booking_id = $4 AND status = $5`,
		StatusInvoiced, stripeAmount, sessionID, bookingID, StatusPending,
	)
}

func (r *repository) MarkPaid(ctx context.Context, bookingID string) error {
	return r.execGuarded(ctx,
		`UPDATE bookings SET status = $1, updated_at = NOW()
		 WHERE booking_id = $2 AND status IN ($3, $4)`,
		StatusPaid, bookingID, StatusPending, StatusInvoiced,
	)
}

func (r *repository) ClaimRefund(ctx context.Context, bookingID string) error {
	return r.execGuarded(ctx,
		`UPDATE bookings SET refund_status = $1, updated_at = NOW()
		 WHERE booking_id = $2 AND status <> $3 AND refund_status = ''`,
		RefundStatusPending, bookingID, StatusCancelled,
	)
}

func (r *repository) ReleaseRefundClaim(ctx context.Context, bookingID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET refund_status = '', updated_at = NOW()
		 WHERE booking_id = $1 AND refund_status = $2 AND status <> $3`,
		bookingID, RefundStatusPending, StatusCancelled,
	)
	return err
}

func (r *repository) Cancel(ctx context.Context, bookingID, reason string, refundAmount decimal.Decimal, refundStatus string) error {
	return r.execGuarded(ctx,
		`UPDATE bookings
		 SET status = $1, cancelled_at = NOW(), cancellation_reason = $2,
		     refund_amount = $3, refund_status = $4, updated_at = NOW()
		 WHERE booking_id = $5 AND status <> $1`,
		StatusCancelled, reason, refundAmount, refundStatus, bookingID,
	)
}
