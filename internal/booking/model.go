package booking

import (
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusInvoiced  Status = "invoiced"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

// transitions is the closed set of legal status changes. Cancelled is
// terminal.
var transitions = map[Status][]Status{
	StatusPending:   {StatusInvoiced, StatusPaid, StatusCancelled},
	StatusInvoiced:  {StatusPaid, StatusCancelled},
	StatusPaid:      {StatusCancelled},
	StatusCancelled: {},
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

const (
	PaymentMethodWallet = "wallet"
	PaymentMethodStripe = "stripe"
	PaymentMethodSplit  = "split"
)

const (
	RefundStatusPending   = "pending"
	RefundStatusProcessed = "processed"
	RefundStatusDenied    = "denied"
)

type Booking struct {
	ID                  int             `db:"id" json:"-"`
	BookingID           string          `db:"booking_id" json:"booking_id"`
	PackageID           string          `db:"package_id" json:"package_id"`
	CustomerID          int             `db:"customer_id" json:"customer_id"`
	DateFrom            time.Time       `db:"date_from" json:"date_from"`
	DateTo              time.Time       `db:"date_to" json:"date_to"`
	Adult               int             `db:"adult" json:"adult"`
	Children            int             `db:"children" json:"children"`
	OriginalPrice       decimal.Decimal `db:"original_price" json:"original_price"`
	Price               decimal.Decimal `db:"price" json:"price"`
	DiscountAmount      decimal.Decimal `db:"discount_amount" json:"discount_amount"`
	PromoCode           string          `db:"promo_code" json:"promo_code,omitempty"`
	PaymentMethod       string          `db:"payment_method" json:"payment_method,omitempty"`
	WalletAmountPaid    decimal.Decimal `db:"wallet_amount_paid" json:"wallet_amount_paid"`
	StripeAmountDue     decimal.Decimal `db:"stripe_amount_due" json:"stripe_amount_due"`
	CheckoutSessionID   string          `db:"checkout_session_id" json:"-"`
	WalletTransactionID string          `db:"wallet_transaction_id" json:"-"`
	Status              Status          `db:"status" json:"status"`
	CancelledAt         sql.NullTime    `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CancellationReason  string          `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	RefundAmount        decimal.Decimal `db:"refund_amount" json:"refund_amount"`
	RefundStatus        string          `db:"refund_status" json:"refund_status,omitempty"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at" json:"updated_at"`
}

// GenerateBookingID returns a human-facing booking reference like BKN3FA2C1.
func GenerateBookingID() string {
	return "BKN" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:6])
}

// RefundPercent returns the refund percentage for a cancellation at the given
// time: 100% at seven or more days before travel, 50% at three to six days,
// nothing closer than that.
func RefundPercent(dateFrom, now time.Time) decimal.Decimal {
	days := int(dateFrom.Sub(now).Hours() / 24)
	switch {
	case days >= 7:
		return decimal.NewFromInt(100)
	case days >= 3:
		return decimal.NewFromInt(50)
	default:
		return decimal.Zero
	}
}
