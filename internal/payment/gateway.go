package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var ErrGateway = errors.New("external gateway error")

// Session payment states as reported by the gateway.
const (
	SessionPaid   = "paid"
	SessionUnpaid = "unpaid"
)

// Metadata keys attached to checkout sessions so webhook events can be
// routed back to the right entity.
const (
	MetaBookingID = "booking_id"
	MetaWalletID  = "wallet_id"
	MetaType      = "type"

	SessionTypeBooking      = "booking_payment"
	SessionTypeSplitBooking = "split_booking_payment"
	SessionTypeDeposit      = "wallet_deposit"
)

type CheckoutParams struct {
	CustomerID  string
	Amount      decimal.Decimal
	Currency    string
	Description string
	SuccessURL  string
	CancelURL   string
	Metadata    map[string]string
}

type CheckoutSession struct {
	ID            string
	URL           string
	PaymentStatus string
	AmountTotal   decimal.Decimal
	Metadata      map[string]string
}

type ChargeResult struct {
	ID        string
	Succeeded bool
}

// Gateway abstracts the card-payment provider. Implementations must not be
// called while holding database locks: sessions are created before any local
// mutation and verified after.
type Gateway interface {
	CreateCustomer(ctx context.Context, email string) (string, error)
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
	ChargePaymentMethod(ctx context.Context, customerID, paymentMethodID string, amount decimal.Decimal, description string) (*ChargeResult, error)
}
