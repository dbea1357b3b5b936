package payment

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/okeowo1014/leisuretimezapi/internal/booking"
	"github.com/okeowo1014/leisuretimezapi/internal/wallet"
)

func decEq(want string) interface{} {
	expected := decimal.RequireFromString(want)
	return mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(expected)
	})
}

// fakeGateway records created sessions and serves them back, like a gateway
// sandbox would.
type fakeGateway struct {
	created  []CheckoutParams
	sessions map[string]*CheckoutSession
	charge   *ChargeResult
	next     int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{sessions: map[string]*CheckoutSession{}}
}

func (f *fakeGateway) CreateCustomer(ctx context.Context, email string) (string, error) {
	return "cus_test_1", nil
}

func (f *fakeGateway) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	f.next++
	f.created = append(f.created, p)
	sess := &CheckoutSession{
		ID:            fmt.Sprintf("cs_test_%d", f.next),
		URL:           fmt.Sprintf("https://checkout.example/%d", f.next),
		PaymentStatus: SessionUnpaid,
		AmountTotal:   p.Amount,
		Metadata:      p.Metadata,
	}
	f.sessions[sess.ID] = sess
	return sess, nil
}

func (f *fakeGateway) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	sess, ok := f.sessions[sessionID]
	if !ok {
		return nil, ErrGateway
	}
	return sess, nil
}

func (f *fakeGateway) ChargePaymentMethod(ctx context.Context, customerID, paymentMethodID string, amount decimal.Decimal, description string) (*ChargeResult, error) {
	if f.charge == nil {
		return &ChargeResult{ID: "pi_test_1", Succeeded: true}, nil
	}
	return f.charge, nil
}

type mockBookingStore struct {
	mock.Mock
}

func (m *mockBookingStore) GetByBookingID(ctx context.Context, bookingID string) (*booking.Booking, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

func (m *mockBookingStore) GetForCustomer(ctx context.Context, bookingID string, customerID int) (*booking.Booking, error) {
	args := m.Called(ctx, bookingID, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

func (m *mockBookingStore) GetBySessionID(ctx context.Context, sessionID string) (*booking.Booking, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

func (m *mockBookingStore) ClaimPayment(ctx context.Context, bookingID, method string) error {
	args := m.Called(ctx, bookingID, method)
	return args.Error(0)
}

func (m *mockBookingStore) ReleaseClaim(ctx context.Context, bookingID string) error {
	args := m.Called(ctx, bookingID)
	return args.Error(0)
}

func (m *mockBookingStore) MarkWalletPaid(ctx context.Context, bookingID, walletTxID string, amount decimal.Decimal) error {
	args := m.Called(ctx, bookingID, walletTxID, amount)
	return args.Error(0)
}

func (m *mockBookingStore) MarkSplitPending(ctx context.Context, bookingID, walletTxID string, walletAmount, stripeAmount decimal.Decimal, sessionID string) error {
	args := m.Called(ctx, bookingID, walletTxID, walletAmount, stripeAmount, sessionID)
	return args.Error(0)
}

func (m *mockBookingStore) MarkExternalPending(ctx context.Context, bookingID string, stripeAmount decimal.Decimal, sessionID string) error {
	args := m.Called(ctx, bookingID, stripeAmount, sessionID)
	return args.Error(0)
}

type mockWalletStore struct {
	mock.Mock
}

func (m *mockWalletStore) EnsureWallet(ctx context.Context, userID int) (*wallet.Wallet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Wallet), args.Error(1)
}

func (m *mockWalletStore) GetByUserID(ctx context.Context, userID int) (*wallet.Wallet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Wallet), args.Error(1)
}

func (m *mockWalletStore) SetStripeCustomerID(ctx context.Context, walletID uuid.UUID, customerID string) error {
	args := m.Called(ctx, walletID, customerID)
	return args.Error(0)
}

func (m *mockWalletStore) Deposit(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, externalRef string) (*wallet.Transaction, error) {
	args := m.Called(ctx, walletID, amount, externalRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Transaction), args.Error(1)
}

func (m *mockWalletStore) DebitForBooking(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, bookingID string) (*wallet.Transaction, error) {
	args := m.Called(ctx, walletID, amount, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Transaction), args.Error(1)
}

func (m *mockWalletStore) CreatePendingDeposit(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, sessionID string) (*wallet.Transaction, error) {
	args := m.Called(ctx, walletID, amount, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Transaction), args.Error(1)
}

func (m *mockWalletStore) HasCompletedDebit(ctx context.Context, bookingID string) (bool, error) {
	args := m.Called(ctx, bookingID)
	return args.Bool(0), args.Error(1)
}

type mockSettler struct {
	mock.Mock
}

func (m *mockSettler) Settle(ctx context.Context, bookingID string) error {
	args := m.Called(ctx, bookingID)
	return args.Error(0)
}

type orchestratorFixture struct {
	gateway  *fakeGateway
	bookings *mockBookingStore
	wallets  *mockWalletStore
	settler  *mockSettler
}

func newTestOrchestrator() (*Orchestrator, *orchestratorFixture) {
	f := &orchestratorFixture{
		gateway:  newFakeGateway(),
		bookings: &mockBookingStore{},
		wallets:  &mockWalletStore{},
		settler:  &mockSettler{},
	}
	return NewOrchestrator(f.gateway, f.bookings, f.wallets, f.settler, "https://leisuretimez.example"), f
}

func pendingBooking(price string) *booking.Booking {
	return &booking.Booking{
		BookingID:     "BKN1A2B3C",
		CustomerID:    7,
		OriginalPrice: decimal.RequireFromString(price),
		Price:         decimal.RequireFromString(price),
		Status:        booking.StatusPending,
	}
}

func TestInitiate_WalletMode(t *testing.T) {
	o, f := newTestOrchestrator()
	ctx := context.Background()

	b := pendingBooking("300.00")
	w := &wallet.Wallet{ID: uuid.New(), UserID: 7, Balance: decimal.RequireFromString("500.00"), IsActive: true}
	txn := &wallet.Transaction{ID: uuid.New()}

	f.bookings.On("GetForCustomer", ctx, b.BookingID, 7).Return(b, nil)
	f.wallets.On("GetByUserID", ctx, 7).Return(w, nil)
	f.bookings.On("ClaimPayment", ctx, b.BookingID, "wallet").Return(nil)
	f.wallets.On("DebitForBooking", ctx, w.ID, decEq("300.00"), b.BookingID).Return(txn, nil)
	f.bookings.On("MarkWalletPaid", ctx, b.BookingID, txn.ID.String(), decEq("300.00")).Return(nil)
	f.settler.On("Settle", ctx, b.BookingID).Return(nil)

	result, err := o.Initiate(ctx, 7, b.BookingID, "wallet")
	require.NoError(t, err)
	assert.Equal(t, ResultPaid, result.Status)
	assert.True(t, result.WalletAmount.Equal(decimal.RequireFromString("300.00")))
	assert.Empty(t, f.gateway.created, "wallet mode must not open a checkout session")
	f.bookings.AssertExpectations(t)
	f.settler.AssertExpectations(t)
}

func TestInitiate_WalletInsufficientReleasesClaim(t *testing.T) {
	o, f := newTestOrchestrator()
	ctx := context.Background()

	b := pendingBooking("300.00")
	w := &wallet.Wallet{ID: uuid.New(), UserID: 7, Balance: decimal.RequireFromString("10.00"), IsActive: true}

	f.bookings.On("GetForCustomer", ctx, b.BookingID, 7).Return(b, nil)
	f.wallets.On("GetByUserID", ctx, 7).Return(w, nil)
	f.bookings.On("ClaimPayment", ctx, b.BookingID, "wallet").Return(nil)
	f.wallets.On("DebitForBooking", ctx, w.ID, decEq("300.00"), b.BookingID).
		Return(nil, wallet.ErrInsufficientFunds)
	f.bookings.On("ReleaseClaim", ctx, b.BookingID).Return(nil)

	_, err := o.Initiate(ctx, 7, b.BookingID, "wallet")
	assert.ErrorIs(t, err, wallet.ErrInsufficientFunds)
	f.bookings.AssertCalled(t, "ReleaseClaim", ctx, b.BookingID)
	f.settler.AssertNotCalled(t, "Settle", mock.Anything, mock.Anything)
}

func TestInitiate_SplitMath(t *testing.T) {
	o, f := newTestOrchestrator()
	ctx := context.Background()

	b := pendingBooking("300.00")
	w := &wallet.Wallet{ID: uuid.New(), UserID: 7, Balance: decimal.RequireFromString("100.00"), IsActive: true}
	txn := &wallet.Transaction{ID: uuid.New()}

	f.bookings.On("GetForCustomer", ctx, b.BookingID, 7).Return(b, nil)
	f.wallets.On("GetByUserID", ctx, 7).Return(w, nil)
	f.bookings.On("ClaimPayment", ctx, b.BookingID, "split").Return(nil)
	f.wallets.On("DebitForBooking", ctx, w.ID, decEq("100.00"), b.BookingID).Return(txn, nil)
	f.bookings.On("MarkSplitPending", ctx, b.BookingID, txn.ID.String(), decEq("100.00"), decEq("200.00"), "cs_test_1").Return(nil)

	result, err := o.Initiate(ctx, 7, b.BookingID, "split")
	require.NoError(t, err)
	assert.Equal(t, ResultRedirect, result.Status)
	assert.True(t, result.WalletAmount.Add(result.StripeAmount).Equal(b.Price))

	require.Len(t, f.gateway.created, 1)
	assert.True(t, f.gateway.created[0].Amount.Equal(decimal.RequireFromString("200.00")))
	assert.Equal(t, SessionTypeSplitBooking, f.gateway.created[0].Metadata[MetaType])
	f.bookings.AssertExpectations(t)
}

func TestInitiate_SplitFullyCoveredByWallet(t *testing.T) {
	o, f := newTestOrchestrator()
	ctx := context.Background()

	b := pendingBooking("300.00")
	w := &wallet.Wallet{ID: uuid.New(), UserID: 7, Balance: decimal.RequireFromString("500.00"), IsActive: true}
	txn := &wallet.Transaction{ID: uuid.New()}

	f.bookings.On("GetForCustomer", ctx, b.BookingID, 7).Return(b, nil)
	f.wallets.On("GetByUserID", ctx, 7).Return(w, nil)
	f.bookings.On("ClaimPayment", ctx, b.BookingID, "split").Return(nil)
	f.wallets.On("DebitForBooking", ctx, w.ID, decEq("300.00"), b.BookingID).Return(txn, nil)
	f.bookings.On("MarkWalletPaid", ctx, b.BookingID, txn.ID.String(), decEq("300.00")).Return(nil)
	f.settler.On("Settle", ctx, b.BookingID).Return(nil)

	result, err := o.Initiate(ctx, 7, b.BookingID, "split")
	require.NoError(t, err)
	assert.Equal(t, ResultPaid, result.Status)
	assert.True(t, result.StripeAmount.IsZero())
	assert.Empty(t, f.gateway.created, "fully covered split must not open a checkout session")
}

func TestInitiate_SplitEmptyWalletIsPureExternal(t *testing.T) {
	o, f := newTestOrchestrator()
	ctx := context.Background()

	b := pendingBooking("300.00")
	w := &wallet.Wallet{ID: uuid.New(), UserID: 7, Balance: decimal.Zero, IsActive: true}

	f.bookings.On("GetForCustomer", ctx, b.BookingID, 7).Return(b, nil)
	f.wallets.On("GetByUserID", ctx, 7).Return(w, nil)
	f.bookings.On("ClaimPayment", ctx, b.BookingID, "split").Return(nil)
	f.bookings.On("MarkExternalPending", ctx, b.BookingID, decEq("300.00"), "cs_test_1").Return(nil)

	result, err := o.Initiate(ctx, 7, b.BookingID, "split")
	require.NoError(t, err)
	assert.Equal(t, ResultRedirect, result.Status)
	assert.True(t, result.WalletAmount.IsZero())
	assert.True(t, result.StripeAmount.Equal(b.Price))
	f.wallets.AssertNotCalled(t, "DebitForBooking", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestInitiate_NotPending(t *testing.T) {
	o, f := newTestOrchestrator()
	ctx := context.Background()

	b := pendingBooking("300.00")
	b.Status = booking.StatusInvoiced
	f.bookings.On("GetForCustomer", ctx, b.BookingID, 7).Return(b, nil)

	_, err := o.Initiate(ctx, 7, b.BookingID, "wallet")
	assert.ErrorIs(t, err, booking.ErrInvalidState)
}

func TestConfirm_AlreadyPaidIsNoOp(t *testing.T) {
	o, f := newTestOrchestrator()
	ctx := context.Background()

	b := pendingBooking("300.00")
	b.Status = booking.StatusPaid
	f.bookings.On("GetForCustomer", ctx, b.BookingID, 7).Return(b, nil)

	got, err := o.Confirm(ctx, 7, b.BookingID, "wallet")
	require.NoError(t, err)
	assert.Equal(t, booking.StatusPaid, got.Status)
	f.settler.AssertNotCalled(t, "Settle", mock.Anything, mock.Anything)
}

func TestConfirm_UnpaidSessionIsRejected(t *testing.T) {
	o, f := newTestOrchestrator()
	ctx := context.Background()

	sess, err := f.gateway.CreateCheckoutSession(ctx, CheckoutParams{Amount: decimal.RequireFromString("300.00")})
	require.NoError(t, err)

	b := pendingBooking("300.00")
	b.Status = booking.StatusInvoiced
	b.PaymentMethod = booking.PaymentMethodStripe
	b.StripeAmountDue = b.Price
	b.CheckoutSessionID = sess.ID

	f.bookings.On("GetBySessionID", ctx, sess.ID).Return(b, nil)

	_, err = o.Confirm(ctx, 7, sess.ID, "stripe")
	assert.ErrorIs(t, err, ErrPaymentNotVerified)
	f.settler.AssertNotCalled(t, "Settle", mock.Anything, mock.Anything)
}

func TestConfirm_SplitVerifiesBothLegs(t *testing.T) {
	o, f := newTestOrchestrator()
	ctx := context.Background()

	sess, err := f.gateway.CreateCheckoutSession(ctx, CheckoutParams{Amount: decimal.RequireFromString("200.00")})
	require.NoError(t, err)
	sess.PaymentStatus = SessionPaid

	b := pendingBooking("300.00")
	b.Status = booking.StatusInvoiced
	b.PaymentMethod = booking.PaymentMethodSplit
	b.WalletAmountPaid = decimal.RequireFromString("100.00")
	b.StripeAmountDue = decimal.RequireFromString("200.00")
	b.CheckoutSessionID = sess.ID

	f.bookings.On("GetForCustomer", ctx, b.BookingID, 7).Return(b, nil)
	f.wallets.On("HasCompletedDebit", ctx, b.BookingID).Return(true, nil)
	f.settler.On("Settle", ctx, b.BookingID).Return(nil)
	f.bookings.On("GetByBookingID", ctx, b.BookingID).Return(b, nil)

	_, err = o.Confirm(ctx, 7, b.BookingID, "split")
	require.NoError(t, err)
	f.settler.AssertExpectations(t)
}

func TestConfirm_SplitMissingDebitIsRejected(t *testing.T) {
	o, f := newTestOrchestrator()
	ctx := context.Background()

	b := pendingBooking("300.00")
	b.Status = booking.StatusInvoiced
	b.PaymentMethod = booking.PaymentMethodSplit
	b.WalletAmountPaid = decimal.RequireFromString("100.00")
	b.StripeAmountDue = decimal.RequireFromString("200.00")
	b.CheckoutSessionID = "cs_gone"

	f.bookings.On("GetForCustomer", ctx, b.BookingID, 7).Return(b, nil)
	f.wallets.On("HasCompletedDebit", ctx, b.BookingID).Return(false, nil)

	_, err := o.Confirm(ctx, 7, b.BookingID, "split")
	assert.ErrorIs(t, err, ErrPaymentNotVerified)
}

func TestDeposit_CheckoutSession(t *testing.T) {
	o, f := newTestOrchestrator()
	ctx := context.Background()

	w := &wallet.Wallet{ID: uuid.New(), UserID: 7, IsActive: true}
	f.wallets.On("EnsureWallet", ctx, 7).Return(w, nil)
	f.wallets.On("CreatePendingDeposit", ctx, w.ID, decEq("50.00"), "cs_test_1").
		Return(&wallet.Transaction{ID: uuid.New()}, nil)

	result, err := o.Deposit(ctx, 7, "user@example.com", decimal.RequireFromString("50.00"), "", "", "")
	require.NoError(t, err)
	assert.Equal(t, ResultRedirect, result.Status)
	assert.Equal(t, "cs_test_1", result.SessionID)

	require.Len(t, f.gateway.created, 1)
	assert.Equal(t, SessionTypeDeposit, f.gateway.created[0].Metadata[MetaType])
	assert.Equal(t, w.ID.String(), f.gateway.created[0].Metadata[MetaWalletID])
}

func TestDeposit_StoredMethodChargesSynchronously(t *testing.T) {
	o, f := newTestOrchestrator()
	ctx := context.Background()

	w := &wallet.Wallet{ID: uuid.New(), UserID: 7, IsActive: true}
	txn := &wallet.Transaction{ID: uuid.New(), Status: wallet.StatusCompleted}

	f.wallets.On("EnsureWallet", ctx, 7).Return(w, nil)
	f.wallets.On("SetStripeCustomerID", ctx, w.ID, "cus_test_1").Return(nil)
	f.wallets.On("Deposit", ctx, w.ID, decEq("50.00"), "pi_test_1").Return(txn, nil)

	result, err := o.Deposit(ctx, 7, "user@example.com", decimal.RequireFromString("50.00"), "", "", "pm_card_visa")
	require.NoError(t, err)
	assert.Equal(t, ResultPaid, result.Status)
	assert.Empty(t, f.gateway.created)
	f.wallets.AssertExpectations(t)
}

func TestDeposit_FailedChargeLeavesLedgerAlone(t *testing.T) {
	o, f := newTestOrchestrator()
	ctx := context.Background()

	f.gateway.charge = &ChargeResult{ID: "pi_test_1", Succeeded: false}

	w := &wallet.Wallet{ID: uuid.New(), UserID: 7, IsActive: true, StripeCustomerID: "cus_existing"}
	f.wallets.On("EnsureWallet", ctx, 7).Return(w, nil)

	_, err := o.Deposit(ctx, 7, "user@example.com", decimal.RequireFromString("50.00"), "", "", "pm_card_visa")
	assert.ErrorIs(t, err, ErrChargeFailed)
	f.wallets.AssertNotCalled(t, "Deposit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDeposit_BelowMinimum(t *testing.T) {
	o, f := newTestOrchestrator()
	ctx := context.Background()

	_, err := o.Deposit(ctx, 7, "user@example.com", decimal.RequireFromString("0.50"), "", "", "")
	assert.ErrorIs(t, err, wallet.ErrInvalidAmount)
	f.wallets.AssertNotCalled(t, "EnsureWallet", mock.Anything, mock.Anything)
}
