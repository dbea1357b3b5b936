package booking

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Repository persists bookings. Mutations that depend on the current status
// are guarded updates: the WHERE clause re-checks the expected state and the
// call fails with ErrInvalidState when another request got there first.
type Repository interface {
	Create(ctx context.Context, b *Booking) (*Booking, error)
	GetByBookingID(ctx context.Context, bookingID string) (*Booking, error)
	GetForCustomer(ctx context.Context, bookingID string, customerID int) (*Booking, error)
	GetBySessionID(ctx context.Context, sessionID string) (*Booking, error)
	ListByCustomer(ctx context.Context, customerID int, limit, offset int) ([]Booking, error)
	ListAll(ctx context.Context, limit, offset int) ([]Booking, error)

	UpdateGuestsAndPrice(ctx context.Context, bookingID string, dateFrom, dateTo time.Time, adult, children int, originalPrice, price, discount decimal.Decimal) error

	// ApplyPromo records the code and new price on a pending, promo-free
	// booking and bumps the code's usage counter in the same transaction.
	ApplyPromo(ctx context.Context, bookingID string, promoID int, code string, discount, newPrice decimal.Decimal) error
	ClearPromo(ctx context.Context, bookingID string) error

	// ClaimPayment marks a pending booking as being paid via the given
	// method. At most one caller wins the claim; the loser gets
	// ErrInvalidState. ReleaseClaim undoes a claim whose debit failed.
	ClaimPayment(ctx context.Context, bookingID, method string) error
	ReleaseClaim(ctx context.Context, bookingID string) error

	MarkWalletPaid(ctx context.Context, bookingID, walletTxID string, amount decimal.Decimal) error
	MarkSplitPending(ctx context.Context, bookingID, walletTxID string, walletAmount, stripeAmount decimal.Decimal, sessionID string) error
	MarkExternalPending(ctx context.Context, bookingID string, stripeAmount decimal.Decimal, sessionID string) error
	MarkPaid(ctx context.Context, bookingID string) error

	// ClaimRefund reserves the right to issue the cancellation refund for a
	// not-yet-cancelled booking. Cancel finalizes the cancellation.
	ClaimRefund(ctx context.Context, bookingID string) error
	ReleaseRefundClaim(ctx context.Context, bookingID string) error
	Cancel(ctx context.Context, bookingID, reason string, refundAmount decimal.Decimal, refundStatus string) error
}
