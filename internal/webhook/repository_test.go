package webhook

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mockDB, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mockDB
}

func TestRefundExpiredSplit_RestoresWalletAndRevertsBooking(t *testing.T) {
	db, mockDB := newMockDB(t)
	repo := NewRepository(db)

	walletID := uuid.New()

	mockDB.ExpectBegin()
	mockDB.ExpectQuery(regexp.QuoteMeta(
		`SELECT booking_id, customer_id, status, wallet_amount_paid
		 FROM bookings WHERE checkout_session_id = $1 FOR UPDATE`)).
		WithArgs("cs_expired").
		WillReturnRows(sqlmock.NewRows([]string{"booking_id", "customer_id", "status", "wallet_amount_paid"}).
			AddRow("BKN1A2B3C", 7, "invoiced", "100.00"))
	mockDB.ExpectQuery(regexp.QuoteMeta(
		`SELECT id, balance FROM wallets WHERE user_id = $1 FOR UPDATE`)).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "balance"}).
			AddRow(walletID.String(), "25.00"))
	mockDB.ExpectExec(regexp.QuoteMeta(
		`UPDATE wallets SET balance = $1, updated_at = NOW() WHERE id = $2`)).
		WithArgs("125.00", walletID.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectExec(regexp.QuoteMeta(
		`INSERT INTO wallet_transactions`)).
		WithArgs(sqlmock.AnyArg(), walletID.String(), "100.00", "refund_credit", "completed",
			"BKN1A2B3C", "Refund for expired checkout on booking BKN1A2B3C").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mockDB.ExpectExec(regexp.QuoteMeta(`UPDATE bookings`)).
		WithArgs("pending", "BKN1A2B3C").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	err := repo.RefundExpiredSplit(context.Background(), "cs_expired")
	require.NoError(t, err)
	require.NoError(t, mockDB.ExpectationsWereMet())
}

func TestRefundExpiredSplit_AlreadyRevertedIsNoOp(t *testing.T) {
	db, mockDB := newMockDB(t)
	repo := NewRepository(db)

	mockDB.ExpectBegin()
	mockDB.ExpectQuery(regexp.QuoteMeta(`FROM bookings WHERE checkout_session_id = $1 FOR UPDATE`)).
		WithArgs("cs_expired").
		WillReturnRows(sqlmock.NewRows([]string{"booking_id", "customer_id", "status", "wallet_amount_paid"}).
			AddRow("BKN1A2B3C", 7, "pending", "0"))
	mockDB.ExpectCommit()

	err := repo.RefundExpiredSplit(context.Background(), "cs_expired")
	require.NoError(t, err)
	require.NoError(t, mockDB.ExpectationsWereMet())
}

func TestRefundExpiredSplit_UnknownSessionIsNoOp(t *testing.T) {
	db, mockDB := newMockDB(t)
	repo := NewRepository(db)

	mockDB.ExpectBegin()
	mockDB.ExpectQuery(regexp.QuoteMeta(`FROM bookings WHERE checkout_session_id = $1 FOR UPDATE`)).
		WithArgs("cs_unknown").
		WillReturnRows(sqlmock.NewRows([]string{"booking_id", "customer_id", "status", "wallet_amount_paid"}))
	mockDB.ExpectRollback()

	err := repo.RefundExpiredSplit(context.Background(), "cs_unknown")
	require.NoError(t, err)
	require.NoError(t, mockDB.ExpectationsWereMet())
}

func TestMarkProcessed_DuplicateInsertIsHarmless(t *testing.T) {
	db, mockDB := newMockDB(t)
	repo := NewRepository(db)

	mockDB.ExpectExec(regexp.QuoteMeta(`INSERT INTO processed_events`)).
		WithArgs("evt_1", EventCheckoutCompleted).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.MarkProcessed(context.Background(), "evt_1", EventCheckoutCompleted))
	require.NoError(t, mockDB.ExpectationsWereMet())
}
