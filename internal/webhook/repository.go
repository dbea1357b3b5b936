package webhook

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/okeowo1014/leisuretimezapi/internal/booking"
	"github.com/okeowo1014/leisuretimezapi/internal/wallet"
)

// Repository tracks which gateway events have been applied and performs the
// compensating work for expired checkout sessions.
type Repository interface {
	IsProcessed(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID, eventType string) error
	// RefundExpiredSplit restores the wallet amount debited for a booking
	// whose checkout session expired unpaid and reverts the booking to
	// pending, in one database transaction. A booking that is not awaiting
	// its gateway leg is left alone.
	RefundExpiredSplit(ctx context.Context, sessionID string) error
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)`,
		eventID,
	)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *repository) MarkProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO processed_events (event_id, event_type)
		 VALUES ($1, $2)
		 ON CONFLICT (event_id) DO NOTHING`,
		eventID, eventType,
	)
	return err
}

func (r *repository) RefundExpiredSplit(ctx context.Context, sessionID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var b struct {
		BookingID        string          `db:"booking_id"`
		CustomerID       int             `db:"customer_id"`
		Status           string          `db:"status"`
		WalletAmountPaid decimal.Decimal `db:"wallet_amount_paid"`
	}
	err = tx.QueryRowxContext(ctx,
		`SELECT booking_id, customer_id, status, wallet_amount_paid
		 FROM bookings WHERE checkout_session_id = $1 FOR UPDATE`,
		sessionID,
	).StructScan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		// Stale or foreign session, nothing to compensate.
		return nil
	}
	if err != nil {
		return err
	}

	if b.Status != string(booking.StatusInvoiced) {
		return tx.Commit()
	}

	if b.WalletAmountPaid.IsPositive() {
		var w struct {
			ID      uuid.UUID       `db:"id"`
			Balance decimal.Decimal `db:"balance"`
		}
		err = tx.QueryRowxContext(ctx,
			`SELECT id, balance FROM wallets WHERE user_id = $1 FOR UPDATE`,
			b.CustomerID,
		).StructScan(&w)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE wallets SET balance = $1, updated_at = NOW() WHERE id = $2`,
			w.Balance.Add(b.WalletAmountPaid), w.ID,
		)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO wallet_transactions (id, wallet_id, amount, type, status, reference, description)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			uuid.New(), w.ID, b.WalletAmountPaid, wallet.TypeRefundCredit, wallet.StatusCompleted,
			b.BookingID, "Refund for expired checkout on booking "+b.BookingID,
		)
		if err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE bookings
		 SET status = $1, payment_method = '', wallet_amount_paid = 0, stripe_amount_due = 0,
		     checkout_session_id = '', wallet_transaction_id = '', updated_at = NOW()
		 WHERE booking_id = $2`,
		booking.StatusPending, b.BookingID,
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}
