package wallet

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TxType classifies a ledger entry.
type TxType string

const (
	TypeDeposit      TxType = "deposit"
	TypeWithdrawal   TxType = "withdrawal"
	TypeTransfer     TxType = "transfer"
	TypeBookingDebit TxType = "booking_debit"
	TypeRefundCredit TxType = "refund_credit"
)

// TxStatus is the lifecycle of a ledger entry. A transaction leaves
// pending exactly once and never changes afterwards.
type TxStatus string

const (
	StatusPending   TxStatus = "pending"
	StatusCompleted TxStatus = "completed"
	StatusFailed    TxStatus = "failed"
)

// MinAmount is the smallest amount any ledger operation accepts.
var MinAmount = decimal.NewFromInt(1)

type Wallet struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	UserID           int             `db:"user_id" json:"user_id"`
	Balance          decimal.Decimal `db:"balance" json:"balance"`
	StripeCustomerID string          `db:"stripe_customer_id" json:"-"`
	IsActive         bool            `db:"is_active" json:"is_active"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

type Transaction struct {
	ID                uuid.UUID       `db:"id" json:"id"`
	WalletID          uuid.UUID       `db:"wallet_id" json:"wallet_id"`
	Amount            decimal.Decimal `db:"amount" json:"amount"`
	Type              TxType          `db:"type" json:"type"`
	Status            TxStatus        `db:"status" json:"status"`
	RecipientWalletID uuid.NullUUID   `db:"recipient_wallet_id" json:"recipient_wallet_id,omitempty"`
	StripeSessionID   string          `db:"stripe_session_id" json:"-"`
	Reference         string          `db:"reference" json:"reference,omitempty"`
	Description       string          `db:"description" json:"description,omitempty"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// credits reports whether the transaction type adds funds to the owning wallet.
func (t TxType) credits() bool {
	return t == TypeDeposit || t == TypeRefundCredit
}
