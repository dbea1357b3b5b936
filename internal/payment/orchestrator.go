package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/okeowo1014/leisuretimezapi/internal/booking"
	"github.com/okeowo1014/leisuretimezapi/internal/logger"
	"github.com/okeowo1014/leisuretimezapi/internal/wallet"
)

var (
	ErrPaymentNotVerified = errors.New("payment could not be verified")
	ErrUnknownMode        = errors.New("unknown payment mode")
	ErrChargeFailed       = errors.New("card charge did not succeed")
)

const (
	ResultPaid     = "paid"
	ResultRedirect = "redirect"
)

// Settler finalizes a verified booking payment: invoice, payment record,
// booking to paid.
type Settler interface {
	Settle(ctx context.Context, bookingID string) error
}

// BookingStore is the slice of the booking repository the orchestrator
// needs. booking.Repository satisfies it.
type BookingStore interface {
	GetByBookingID(ctx context.Context, bookingID string) (*booking.Booking, error)
	GetForCustomer(ctx context.Context, bookingID string, customerID int) (*booking.Booking, error)
	GetBySessionID(ctx context.Context, sessionID string) (*booking.Booking, error)
	ClaimPayment(ctx context.Context, bookingID, method string) error
	ReleaseClaim(ctx context.Context, bookingID string) error
	MarkWalletPaid(ctx context.Context, bookingID, walletTxID string, amount decimal.Decimal) error
	MarkSplitPending(ctx context.Context, bookingID, walletTxID string, walletAmount, stripeAmount decimal.Decimal, sessionID string) error
	MarkExternalPending(ctx context.Context, bookingID string, stripeAmount decimal.Decimal, sessionID string) error
}

// WalletStore is the slice of the wallet ledger the orchestrator needs.
// wallet.Repository satisfies it.
type WalletStore interface {
	EnsureWallet(ctx context.Context, userID int) (*wallet.Wallet, error)
	GetByUserID(ctx context.Context, userID int) (*wallet.Wallet, error)
	SetStripeCustomerID(ctx context.Context, walletID uuid.UUID, customerID string) error
	Deposit(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, externalRef string) (*wallet.Transaction, error)
	DebitForBooking(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, bookingID string) (*wallet.Transaction, error)
	CreatePendingDeposit(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, sessionID string) (*wallet.Transaction, error)
	HasCompletedDebit(ctx context.Context, bookingID string) (bool, error)
}

// Orchestrator decides how a booking's due amount is funded across the
// wallet and the external gateway, and drives confirmation. Gateway calls
// never happen inside a database critical section: sessions are created
// before any local mutation and verified after.
type Orchestrator struct {
	gateway  Gateway
	bookings BookingStore
	wallets  WalletStore
	settler  Settler
	siteURL  string
}

func NewOrchestrator(gateway Gateway, bookings BookingStore, wallets WalletStore, settler Settler, siteURL string) *Orchestrator {
	return &Orchestrator{
		gateway:  gateway,
		bookings: bookings,
		wallets:  wallets,
		settler:  settler,
		siteURL:  siteURL,
	}
}

type InitiateResult struct {
	BookingID    string          `json:"booking_id"`
	Mode         string          `json:"mode"`
	Status       string          `json:"status"`
	RedirectURL  string          `json:"redirect_url,omitempty"`
	SessionID    string          `json:"session_id,omitempty"`
	WalletAmount decimal.Decimal `json:"wallet_amount"`
	StripeAmount decimal.Decimal `json:"stripe_amount"`
}

// Initiate starts payment for a pending booking in the given mode.
func (o *Orchestrator) Initiate(ctx context.Context, userID int, bookingID, mode string) (*InitiateResult, error) {
	b, err := o.bookings.GetForCustomer(ctx, bookingID, userID)
	if err != nil {
		return nil, err
	}
	if b.Status != booking.StatusPending {
		return nil, booking.ErrInvalidState
	}

	switch mode {
	case booking.PaymentMethodWallet:
		return o.initiateWallet(ctx, userID, b, mode)
	case booking.PaymentMethodStripe:
		return o.initiateStripe(ctx, b)
	case booking.PaymentMethodSplit:
		return o.initiateSplit(ctx, userID, b)
	default:
		return nil, ErrUnknownMode
	}
}

// initiateWallet settles the full price from the wallet synchronously. The
// booking is claimed before the debit so a second concurrent attempt loses,
// and the claim is released if the debit fails.
func (o *Orchestrator) initiateWallet(ctx context.Context, userID int, b *booking.Booking, method string) (*InitiateResult, error) {
	w, err := o.wallets.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := o.bookings.ClaimPayment(ctx, b.BookingID, method); err != nil {
		return nil, err
	}

	txn, err := o.wallets.DebitForBooking(ctx, w.ID, b.Price, b.BookingID)
	if err != nil {
		o.bookings.ReleaseClaim(ctx, b.BookingID)
		return nil, err
	}

	if err := o.bookings.MarkWalletPaid(ctx, b.BookingID, txn.ID.String(), b.Price); err != nil {
		return nil, err
	}
	if err := o.settler.Settle(ctx, b.BookingID); err != nil {
		return nil, err
	}

	logger.Info("booking paid from wallet", "booking_id", b.BookingID, "amount", b.Price.String())
	return &InitiateResult{
		BookingID:    b.BookingID,
		Mode:         method,
		Status:       ResultPaid,
		WalletAmount: b.Price,
		StripeAmount: decimal.Zero,
	}, nil
}

func (o *Orchestrator) initiateStripe(ctx context.Context, b *booking.Booking) (*InitiateResult, error) {
	return o.initiateExternal(ctx, b, booking.PaymentMethodStripe, SessionTypeBooking)
}

// initiateExternal opens a checkout session for the full price. The session
// is created first: if the claim below fails the session is simply abandoned
// and expires on the gateway side.
func (o *Orchestrator) initiateExternal(ctx context.Context, b *booking.Booking, method, sessionType string) (*InitiateResult, error) {
	sess, err := o.gateway.CreateCheckoutSession(ctx, o.checkoutParams(b, b.Price, sessionType))
	if err != nil {
		return nil, err
	}

	if err := o.bookings.ClaimPayment(ctx, b.BookingID, method); err != nil {
		return nil, err
	}
	if err := o.bookings.MarkExternalPending(ctx, b.BookingID, b.Price, sess.ID); err != nil {
		o.bookings.ReleaseClaim(ctx, b.BookingID)
		return nil, err
	}

	return &InitiateResult{
		BookingID:    b.BookingID,
		Mode:         method,
		Status:       ResultRedirect,
		RedirectURL:  sess.URL,
		SessionID:    sess.ID,
		WalletAmount: decimal.Zero,
		StripeAmount: b.Price,
	}, nil
}

// initiateSplit funds the booking from whatever wallet balance exists and
// charges the remainder externally. A wallet that covers everything behaves
// like wallet mode with no session; an empty wallet becomes a pure external
// charge.
func (o *Orchestrator) initiateSplit(ctx context.Context, userID int, b *booking.Booking) (*InitiateResult, error) {
	w, err := o.wallets.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	walletAmount := decimal.Min(w.Balance, b.Price)
	stripeAmount := b.Price.Sub(walletAmount)

	if stripeAmount.IsZero() {
		return o.initiateWallet(ctx, userID, b, booking.PaymentMethodSplit)
	}
	if walletAmount.LessThan(wallet.MinAmount) {
		return o.initiateExternal(ctx, b, booking.PaymentMethodSplit, SessionTypeSplitBooking)
	}

	sess, err := o.gateway.CreateCheckoutSession(ctx, o.checkoutParams(b, stripeAmount, SessionTypeSplitBooking))
	if err != nil {
		return nil, err
	}

	if err := o.bookings.ClaimPayment(ctx, b.BookingID, booking.PaymentMethodSplit); err != nil {
		return nil, err
	}

	txn, err := o.wallets.DebitForBooking(ctx, w.ID, walletAmount, b.BookingID)
	if err != nil {
		o.bookings.ReleaseClaim(ctx, b.BookingID)
		return nil, err
	}

	if err := o.bookings.MarkSplitPending(ctx, b.BookingID, txn.ID.String(), walletAmount, stripeAmount, sess.ID); err != nil {
		return nil, err
	}

	logger.Info("split payment initiated", "booking_id", b.BookingID,
		"wallet_amount", walletAmount.String(), "stripe_amount", stripeAmount.String())
	return &InitiateResult{
		BookingID:    b.BookingID,
		Mode:         booking.PaymentMethodSplit,
		Status:       ResultRedirect,
		RedirectURL:  sess.URL,
		SessionID:    sess.ID,
		WalletAmount: walletAmount,
		StripeAmount: stripeAmount,
	}, nil
}

func (o *Orchestrator) checkoutParams(b *booking.Booking, amount decimal.Decimal, sessionType string) CheckoutParams {
	return CheckoutParams{
		Amount:      amount,
		Description: fmt.Sprintf("Booking %s", b.BookingID),
		SuccessURL:  o.siteURL + "/bookings/" + b.BookingID + "?payment=success",
		CancelURL:   o.siteURL + "/bookings/" + b.BookingID + "?payment=cancelled",
		Metadata: map[string]string{
			MetaBookingID: b.BookingID,
			MetaType:      sessionType,
		},
	}
}

// Confirm verifies that a booking's payment actually happened and settles
// it. The identifier is a booking id for wallet and split mode, a checkout
// session id for stripe mode. Safe to call repeatedly.
func (o *Orchestrator) Confirm(ctx context.Context, userID int, identifier, mode string) (*booking.Booking, error) {
	var b *booking.Booking
	var err error

	switch mode {
	case booking.PaymentMethodStripe:
		b, err = o.bookings.GetBySessionID(ctx, identifier)
	case booking.PaymentMethodWallet, booking.PaymentMethodSplit:
		b, err = o.bookings.GetForCustomer(ctx, identifier, userID)
	default:
		return nil, ErrUnknownMode
	}
	if err != nil {
		return nil, err
	}

	if b.Status == booking.StatusPaid {
		return b, nil
	}

	if err := o.verify(ctx, b); err != nil {
		return nil, err
	}
	if err := o.settler.Settle(ctx, b.BookingID); err != nil {
		return nil, err
	}

	return o.bookings.GetByBookingID(ctx, b.BookingID)
}

// verify checks the ledger and/or gateway against what the booking claims
// was paid.
func (o *Orchestrator) verify(ctx context.Context, b *booking.Booking) error {
	if b.WalletAmountPaid.IsPositive() || b.PaymentMethod == booking.PaymentMethodWallet {
		debited, err := o.wallets.HasCompletedDebit(ctx, b.BookingID)
		if err != nil {
			return err
		}
		if !debited {
			return ErrPaymentNotVerified
		}
	}

	if b.StripeAmountDue.IsPositive() {
		if b.CheckoutSessionID == "" {
			return ErrPaymentNotVerified
		}
		sess, err := o.gateway.GetCheckoutSession(ctx, b.CheckoutSessionID)
		if err != nil {
			return err
		}
		if sess.PaymentStatus != SessionPaid {
			return ErrPaymentNotVerified
		}
	}

	return nil
}

// ConfirmSession settles the booking tied to a checkout session, verifying
// the session is paid first. Used by the webhook reconciler.
func (o *Orchestrator) ConfirmSession(ctx context.Context, sessionID string) error {
	b, err := o.bookings.GetBySessionID(ctx, sessionID)
	if err != nil {
		return err
	}
	if b.Status == booking.StatusPaid {
		return nil
	}
	if err := o.verify(ctx, b); err != nil {
		return err
	}
	return o.settler.Settle(ctx, b.BookingID)
}

type DepositResult struct {
	Status      string              `json:"status"`
	RedirectURL string              `json:"redirect_url,omitempty"`
	SessionID   string              `json:"session_id,omitempty"`
	Transaction *wallet.Transaction `json:"transaction,omitempty"`
}

// Deposit funds the caller's wallet, either through a checkout session the
// webhook completes later, or synchronously with a stored payment method.
func (o *Orchestrator) Deposit(ctx context.Context, userID int, email string, amount decimal.Decimal, successURL, cancelURL, paymentMethodID string) (*DepositResult, error) {
	if amount.LessThan(wallet.MinAmount) {
		return nil, wallet.ErrInvalidAmount
	}

	w, err := o.wallets.EnsureWallet(ctx, userID)
	if err != nil {
		return nil, err
	}

	if paymentMethodID != "" {
		return o.depositWithStoredMethod(ctx, w, email, amount, paymentMethodID)
	}

	if successURL == "" {
		successURL = o.siteURL + "/wallet?deposit=success"
	}
	if cancelURL == "" {
		cancelURL = o.siteURL + "/wallet?deposit=cancelled"
	}

	sess, err := o.gateway.CreateCheckoutSession(ctx, CheckoutParams{
		CustomerID:  w.StripeCustomerID,
		Amount:      amount,
		Description: "Wallet deposit",
		SuccessURL:  successURL,
		CancelURL:   cancelURL,
		Metadata: map[string]string{
			MetaWalletID: w.ID.String(),
			MetaType:     SessionTypeDeposit,
		},
	})
	if err != nil {
		return nil, err
	}

	if _, err := o.wallets.CreatePendingDeposit(ctx, w.ID, amount, sess.ID); err != nil {
		return nil, err
	}

	return &DepositResult{
		Status:      ResultRedirect,
		RedirectURL: sess.URL,
		SessionID:   sess.ID,
	}, nil
}

func (o *Orchestrator) depositWithStoredMethod(ctx context.Context, w *wallet.Wallet, email string, amount decimal.Decimal, paymentMethodID string) (*DepositResult, error) {
	customerID := w.StripeCustomerID
	if customerID == "" {
		created, err := o.gateway.CreateCustomer(ctx, email)
		if err != nil {
			return nil, err
		}
		if err := o.wallets.SetStripeCustomerID(ctx, w.ID, created); err != nil {
			return nil, err
		}
		customerID = created
	}

	charge, err := o.gateway.ChargePaymentMethod(ctx, customerID, paymentMethodID, amount, "Wallet deposit")
	if err != nil {
		return nil, err
	}
	if !charge.Succeeded {
		return nil, ErrChargeFailed
	}

	txn, err := o.wallets.Deposit(ctx, w.ID, amount, charge.ID)
	if err != nil {
		return nil, err
	}

	logger.Info("wallet deposit charged", "wallet_id", w.ID.String(), "amount", amount.String())
	return &DepositResult{Status: ResultPaid, Transaction: txn}, nil
}
