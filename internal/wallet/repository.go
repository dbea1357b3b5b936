package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientFunds   = errors.New("insufficient wallet balance")
	ErrInvalidAmount       = errors.New("amount must be at least 1.00")
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrWalletInactive      = errors.New("wallet is deactivated")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrSameWallet          = errors.New("cannot transfer to the same wallet")
)

const walletColumns = `id, user_id, balance, stripe_customer_id, is_active, created_at, updated_at`
const txColumns = `id, wallet_id, amount, type, status, recipient_wallet_id, stripe_session_id, reference, description, created_at, updated_at`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) EnsureWallet(ctx context.Context, userID int) (*Wallet, error) {
	w := &Wallet{}
	err := r.db.GetContext(ctx, w, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	err = r.db.QueryRowxContext(ctx,
		`INSERT INTO wallets (id, user_id)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET updated_at = NOW()
		 RETURNING `+walletColumns,
		uuid.New(), userID,
	).StructScan(w)
	if err != nil {
		return nil, err
	}

	return w, nil
}

func (r *repository) GetByUserID(ctx context.Context, userID int) (*Wallet, error) {
	w := &Wallet{}
	err := r.db.GetContext(ctx, w, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (r *repository) SetStripeCustomerID(ctx context.Context, walletID uuid.UUID, customerID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE wallets SET stripe_customer_id = $1, updated_at = NOW() WHERE id = $2`,
		customerID, walletID,
	)
	return err
}

// Deactivate flags the wallet instead of deleting it. The ledger history
// stays intact for the account-deletion audit trail.
func (r *repository) Deactivate(ctx context.Context, userID int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE wallets SET is_active = FALSE, updated_at = NOW() WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrWalletNotFound
	}
	return nil
}

func (r *repository) Deposit(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, externalRef string) (*Transaction, error) {
	return r.apply(ctx, walletID, amount, TypeDeposit, externalRef, "", "")
}

func (r *repository) Withdraw(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal) (*Transaction, error) {
	return r.apply(ctx, walletID, amount, TypeWithdrawal, "", "", "")
}

func (r *repository) DebitForBooking(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, bookingID string) (*Transaction, error) {
	return r.apply(ctx, walletID, amount, TypeBookingDebit, "", bookingID, "Wallet payment for booking "+bookingID)
}

func (r *repository) CreditRefund(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, bookingID string) (*Transaction, error) {
	return r.apply(ctx, walletID, amount, TypeRefundCredit, "", bookingID, "Refund for booking "+bookingID)
}

// apply is the single writer for one-wallet balance changes. It locks the
// wallet row, validates the move, mutates the balance and records the ledger
// entry in the same database transaction. Insufficient debits are recorded
// as failed entries with no balance change.
func (r *repository) apply(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, txType TxType, externalRef, reference, description string) (*Transaction, error) {
	if amount.LessThan(MinAmount) {
		return nil, ErrInvalidAmount
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var w Wallet
	err = tx.QueryRowxContext(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE id = $1 FOR UPDATE`,
		walletID,
	).StructScan(&w)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	if !w.IsActive {
		return nil, ErrWalletInactive
	}

	status := StatusCompleted
	newBalance := w.Balance
	if txType.credits() {
		newBalance = newBalance.Add(amount)
	} else {
		newBalance = newBalance.Sub(amount)
		if newBalance.IsNegative() {
			status = StatusFailed
			newBalance = w.Balance
		}
	}

	if status == StatusCompleted {
		_, err = tx.ExecContext(ctx,
			`UPDATE wallets SET balance = $1, updated_at = NOW() WHERE id = $2`,
			newBalance, w.ID,
		)
		if err != nil {
			return nil, err
		}
	}

	entry, err := insertTx(ctx, tx, &Transaction{
		ID:              uuid.New(),
		WalletID:        w.ID,
		Amount:          amount,
		Type:            txType,
		Status:          status,
		StripeSessionID: externalRef,
		Reference:       reference,
		Description:     description,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if status == StatusFailed {
		return entry, ErrInsufficientFunds
	}
	return entry, nil
}

// Transfer moves funds between two wallets. Both rows are locked in wallet-id
// order so concurrent opposing transfers cannot deadlock.
func (r *repository) Transfer(ctx context.Context, fromID, toID uuid.UUID, amount decimal.Decimal) (*Transaction, error) {
	if amount.LessThan(MinAmount) {
		return nil, ErrInvalidAmount
	}
	if fromID == toID {
		return nil, ErrSameWallet
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	first, second := fromID, toID
	if second.String() < first.String() {
		first, second = second, first
	}

	wallets := make(map[uuid.UUID]*Wallet, 2)
	for _, id := range []uuid.UUID{first, second} {
		var w Wallet
		err = tx.QueryRowxContext(ctx,
			`SELECT `+walletColumns+` FROM wallets WHERE id = $1 FOR UPDATE`,
			id,
		).StructScan(&w)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		if err != nil {
			return nil, err
		}
		if !w.IsActive {
			return nil, ErrWalletInactive
		}
		wallets[id] = &w
	}

	sender, recipient := wallets[fromID], wallets[toID]
	if sender.Balance.LessThan(amount) {
		entry, insErr := insertTx(ctx, tx, &Transaction{
			ID:                uuid.New(),
			WalletID:          sender.ID,
			Amount:            amount,
			Type:              TypeTransfer,
			Status:            StatusFailed,
			RecipientWalletID: uuid.NullUUID{UUID: recipient.ID, Valid: true},
		})
		if insErr != nil {
			return nil, insErr
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return entry, ErrInsufficientFunds
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE wallets SET balance = $1, updated_at = NOW() WHERE id = $2`,
		sender.Balance.Sub(amount), sender.ID,
	)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE wallets SET balance = $1, updated_at = NOW() WHERE id = $2`,
		recipient.Balance.Add(amount), recipient.ID,
	)
	if err != nil {
		return nil, err
	}

	entry, err := insertTx(ctx, tx, &Transaction{
		ID:                uuid.New(),
		WalletID:          sender.ID,
		Amount:            amount,
		Type:              TypeTransfer,
		Status:            StatusCompleted,
		RecipientWalletID: uuid.NullUUID{UUID: recipient.ID, Valid: true},
		Description:       fmt.Sprintf("Transfer to wallet %s", recipient.ID),
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return entry, nil
}

// CreatePendingDeposit records a deposit awaiting gateway settlement. The
// balance is untouched until the gateway confirms.
func (r *repository) CreatePendingDeposit(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, sessionID string) (*Transaction, error) {
	if amount.LessThan(MinAmount) {
		return nil, ErrInvalidAmount
	}

	entry := &Transaction{}
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO wallet_transactions (id, wallet_id, amount, type, status, stripe_session_id, description)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+txColumns,
		uuid.New(), walletID, amount, TypeDeposit, StatusPending, sessionID, "Deposit via checkout",
	).StructScan(entry)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// CompleteDepositBySession flips a pending deposit to completed and credits
// the wallet, all under the transaction and wallet row locks. Replayed calls
// find the entry already completed and return it untouched.
func (r *repository) CompleteDepositBySession(ctx context.Context, sessionID string) (*Transaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var entry Transaction
	err = tx.QueryRowxContext(ctx,
		`SELECT `+txColumns+` FROM wallet_transactions WHERE stripe_session_id = $1 FOR UPDATE`,
		sessionID,
	).StructScan(&entry)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}

	if entry.Status == StatusCompleted {
		return &entry, tx.Commit()
	}
	if entry.Status == StatusFailed {
		return nil, fmt.Errorf("transaction %s already failed", entry.ID)
	}

	var w Wallet
	err = tx.QueryRowxContext(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE id = $1 FOR UPDATE`,
		entry.WalletID,
	).StructScan(&w)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE wallets SET balance = $1, updated_at = NOW() WHERE id = $2`,
		w.Balance.Add(entry.Amount), w.ID,
	)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE wallet_transactions SET status = $1, updated_at = NOW() WHERE id = $2`,
		StatusCompleted, entry.ID,
	)
	if err != nil {
		return nil, err
	}

	entry.Status = StatusCompleted
	return &entry, tx.Commit()
}

func (r *repository) FailTransactionBySession(ctx context.Context, sessionID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE wallet_transactions SET status = $1, updated_at = NOW()
		 WHERE stripe_session_id = $2 AND status = $3`,
		StatusFailed, sessionID, StatusPending,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (r *repository) HasCompletedDebit(ctx context.Context, bookingID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(
			SELECT 1 FROM wallet_transactions
			WHERE reference = $1 AND type = $2 AND status = $3
		)`,
		bookingID, TypeBookingDebit, StatusCompleted,
	)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *repository) GetTransactions(ctx context.Context, walletID uuid.UUID, txType string, limit, offset int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + txColumns + ` FROM wallet_transactions WHERE wallet_id = $1`
	args := []interface{}{walletID}
	if txType != "" {
		query += ` AND type = $2`
		args = append(args, txType)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d OFFSET %d`, limit, offset)

	txs := []Transaction{}
	if err := r.db.SelectContext(ctx, &txs, query, args...); err != nil {
		return nil, err
	}
	return txs, nil
}

func insertTx(ctx context.Context, tx *sqlx.Tx, t *Transaction) (*Transaction, error) {
	entry := &Transaction{}
	err := tx.QueryRowxContext(ctx,
		`INSERT INTO wallet_transactions (id, wallet_id, amount, type, status, recipient_wallet_id, stripe_session_id, reference, description)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING `+txColumns,
		t.ID, t.WalletID, t.Amount, t.Type, t.Status, t.RecipientWalletID, t.StripeSessionID, t.Reference, t.Description,
	).StructScan(entry)
	if err != nil {
		return nil, err
	}
	return entry, nil
}
