package wallet

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mockDB, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mockDB
}

func walletRow(id uuid.UUID, userID int, balance string, active bool) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "user_id", "balance", "stripe_customer_id", "is_active", "created_at", "updated_at"}).
		AddRow(id.String(), userID, balance, "", active, now, now)
}

func txRow(walletID uuid.UUID, amount, txType, status string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "wallet_id", "amount", "type", "status", "recipient_wallet_id", "stripe_session_id", "reference", "description", "created_at", "updated_at"}).
		AddRow(uuid.New().String(), walletID.String(), amount, txType, status, nil, "", "", "", now, now)
}

const selectWalletForUpdate = `SELECT id, user_id, balance, stripe_customer_id, is_active, created_at, updated_at FROM wallets WHERE id = $1 FOR UPDATE`

func TestDeposit_CreditsBalanceAndRecordsLedgerRow(t *testing.T) {
	db, mockDB := newMockDB(t)
	repo := NewRepository(db)

	walletID := uuid.New()

	mockDB.ExpectBegin()
	mockDB.ExpectQuery(regexp.QuoteMeta(selectWalletForUpdate)).
		WithArgs(walletID.String()).
		WillReturnRows(walletRow(walletID, 7, "100.00", true))
	mockDB.ExpectExec(regexp.QuoteMeta(`UPDATE wallets SET balance = $1, updated_at = NOW() WHERE id = $2`)).
		WithArgs("150.00", walletID.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectQuery(regexp.QuoteMeta(`INSERT INTO wallet_transactions`)).
		WithArgs(sqlmock.AnyArg(), walletID.String(), "50.00", "deposit", "completed", sqlmock.AnyArg(), "pi_1", "", "").
		WillReturnRows(txRow(walletID, "50.00", "deposit", "completed"))
	mockDB.ExpectCommit()

	entry, err := repo.Deposit(context.Background(), walletID, decimal.RequireFromString("50.00"), "pi_1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, entry.Status)
	require.NoError(t, mockDB.ExpectationsWereMet())
}

func TestWithdraw_InsufficientFundsLeavesBalanceAndRecordsFailedRow(t *testing.T) {
	db, mockDB := newMockDB(t)
	repo := NewRepository(db)

	walletID := uuid.New()

	mockDB.ExpectBegin()
	mockDB.ExpectQuery(regexp.QuoteMeta(selectWalletForUpdate)).
		WithArgs(walletID.String()).
		WillReturnRows(walletRow(walletID, 7, "30.00", true))
	// No balance update: the failed attempt is only a ledger entry.
	mockDB.ExpectQuery(regexp.QuoteMeta(`INSERT INTO wallet_transactions`)).
		WithArgs(sqlmock.AnyArg(), walletID.String(), "50.00", "withdrawal", "failed", sqlmock.AnyArg(), "", "", "").
		WillReturnRows(txRow(walletID, "50.00", "withdrawal", "failed"))
	mockDB.ExpectCommit()

	entry, err := repo.Withdraw(context.Background(), walletID, decimal.RequireFromString("50.00"))
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	require.NotNil(t, entry)
	assert.Equal(t, StatusFailed, entry.Status)
	require.NoError(t, mockDB.ExpectationsWereMet())
}

func TestWithdraw_BelowMinimumNeverTouchesDatabase(t *testing.T) {
	db, mockDB := newMockDB(t)
	repo := NewRepository(db)

	_, err := repo.Withdraw(context.Background(), uuid.New(), decimal.RequireFromString("0.99"))
	assert.ErrorIs(t, err, ErrInvalidAmount)
	require.NoError(t, mockDB.ExpectationsWereMet())
}

func TestDeposit_InactiveWallet(t *testing.T) {
	db, mockDB := newMockDB(t)
	repo := NewRepository(db)

	walletID := uuid.New()

	mockDB.ExpectBegin()
	mockDB.ExpectQuery(regexp.QuoteMeta(selectWalletForUpdate)).
		WithArgs(walletID.String()).
		WillReturnRows(walletRow(walletID, 7, "100.00", false))
	mockDB.ExpectRollback()

	_, err := repo.Deposit(context.Background(), walletID, decimal.RequireFromString("50.00"), "")
	assert.ErrorIs(t, err, ErrWalletInactive)
	require.NoError(t, mockDB.ExpectationsWereMet())
}

func TestTransfer_LocksWalletsInIDOrder(t *testing.T) {
	db, mockDB := newMockDB(t)
	repo := NewRepository(db)

	// Two fixed ids with a known string ordering.
	lower := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	higher := uuid.MustParse("99999999-9999-9999-9999-999999999999")

	// Sender sorts after recipient, so the recipient row must be locked
	// first regardless of direction.
	mockDB.ExpectBegin()
	mockDB.ExpectQuery(regexp.QuoteMeta(selectWalletForUpdate)).
		WithArgs(lower.String()).
		WillReturnRows(walletRow(lower, 8, "20.00", true))
	mockDB.ExpectQuery(regexp.QuoteMeta(selectWalletForUpdate)).
		WithArgs(higher.String()).
		WillReturnRows(walletRow(higher, 7, "100.00", true))
	mockDB.ExpectExec(regexp.QuoteMeta(`UPDATE wallets SET balance = $1, updated_at = NOW() WHERE id = $2`)).
		WithArgs("50.00", higher.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectExec(regexp.QuoteMeta(`UPDATE wallets SET balance = $1, updated_at = NOW() WHERE id = $2`)).
		WithArgs("70.00", lower.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectQuery(regexp.QuoteMeta(`INSERT INTO wallet_transactions`)).
		WillReturnRows(txRow(higher, "50.00", "transfer", "completed"))
	mockDB.ExpectCommit()

	entry, err := repo.Transfer(context.Background(), higher, lower, decimal.RequireFromString("50.00"))
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, entry.Status)
	require.NoError(t, mockDB.ExpectationsWereMet())
}

func TestTransfer_SameWallet(t *testing.T) {
	db, mockDB := newMockDB(t)
	repo := NewRepository(db)

	id := uuid.New()
	_, err := repo.Transfer(context.Background(), id, id, decimal.RequireFromString("10.00"))
	assert.ErrorIs(t, err, ErrSameWallet)
	require.NoError(t, mockDB.ExpectationsWereMet())
}
