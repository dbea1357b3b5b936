package wallet

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repository is the wallet ledger. Every balance-changing operation runs in
// a single database transaction that locks the wallet row, so concurrent
// operations against the same wallet serialize.
type Repository interface {
	EnsureWallet(ctx context.Context, userID int) (*Wallet, error)
	GetByUserID(ctx context.Context, userID int) (*Wallet, error)
	SetStripeCustomerID(ctx context.Context, walletID uuid.UUID, customerID string) error
	Deactivate(ctx context.Context, userID int) error

	Deposit(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, externalRef string) (*Transaction, error)
	Withdraw(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal) (*Transaction, error)
	Transfer(ctx context.Context, fromID, toID uuid.UUID, amount decimal.Decimal) (*Transaction, error)
	DebitForBooking(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, bookingID string) (*Transaction, error)
	CreditRefund(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, bookingID string) (*Transaction, error)

	CreatePendingDeposit(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, sessionID string) (*Transaction, error)
	CompleteDepositBySession(ctx context.Context, sessionID string) (*Transaction, error)
	FailTransactionBySession(ctx context.Context, sessionID string) error

	HasCompletedDebit(ctx context.Context, bookingID string) (bool, error)
	GetTransactions(ctx context.Context, walletID uuid.UUID, txType string, limit, offset int) ([]Transaction, error)
}
