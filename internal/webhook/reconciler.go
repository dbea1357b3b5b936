package webhook

import (
	"context"
	"errors"
	"fmt"

	"github.com/okeowo1014/leisuretimezapi/internal/booking"
	"github.com/okeowo1014/leisuretimezapi/internal/logger"
	"github.com/okeowo1014/leisuretimezapi/internal/metrics"
	"github.com/okeowo1014/leisuretimezapi/internal/payment"
	"github.com/okeowo1014/leisuretimezapi/internal/wallet"
)

// Normalized gateway event types.
const (
	EventPaymentSucceeded  = "payment_succeeded"
	EventPaymentFailed     = "payment_failed"
	EventCheckoutCompleted = "checkout_completed"
	EventCheckoutExpired   = "checkout_expired"
)

// Event is a verified, normalized gateway notification.
type Event struct {
	ID          string
	Type        string
	SessionID   string
	SessionType string
	Reference   string
}

// WalletLedger is the slice of the wallet repository the reconciler needs.
type WalletLedger interface {
	CompleteDepositBySession(ctx context.Context, sessionID string) (*wallet.Transaction, error)
	FailTransactionBySession(ctx context.Context, sessionID string) error
}

// SessionConfirmer settles a booking checkout session after verifying it.
type SessionConfirmer interface {
	ConfirmSession(ctx context.Context, sessionID string) error
}

// Reconciler applies asynchronous gateway outcomes to the ledger and booking
// state, exactly once per event. Event ids are recorded only after the work
// succeeds, so a redelivery after a failure re-runs it.
type Reconciler struct {
	repo      Repository
	wallets   WalletLedger
	confirmer SessionConfirmer
}

func NewReconciler(repo Repository, wallets WalletLedger, confirmer SessionConfirmer) *Reconciler {
	return &Reconciler{repo: repo, wallets: wallets, confirmer: confirmer}
}

func (r *Reconciler) Process(ctx context.Context, ev Event) error {
	processed, err := r.repo.IsProcessed(ctx, ev.ID)
	if err != nil {
		return err
	}
	if processed {
		logger.Debug("duplicate gateway event", "event_id", ev.ID, "type", ev.Type)
		metrics.RecordWebhookEvent(ev.Type, "duplicate")
		return nil
	}

	if err := r.apply(ctx, ev); err != nil {
		metrics.RecordWebhookEvent(ev.Type, "failed")
		return err
	}

	if err := r.repo.MarkProcessed(ctx, ev.ID, ev.Type); err != nil {
		return err
	}
	metrics.RecordWebhookEvent(ev.Type, "processed")
	return nil
}

func (r *Reconciler) apply(ctx context.Context, ev Event) error {
	switch ev.Type {
	case EventPaymentSucceeded:
		_, err := r.wallets.CompleteDepositBySession(ctx, ev.Reference)
		if errors.Is(err, wallet.ErrTransactionNotFound) {
			logger.Debug("payment_succeeded with no pending transaction", "reference", ev.Reference)
			return nil
		}
		return err

	case EventPaymentFailed:
		err := r.wallets.FailTransactionBySession(ctx, ev.Reference)
		if errors.Is(err, wallet.ErrTransactionNotFound) {
			return nil
		}
		return err

	case EventCheckoutCompleted:
		if ev.SessionType == payment.SessionTypeDeposit {
			_, err := r.wallets.CompleteDepositBySession(ctx, ev.SessionID)
			if errors.Is(err, wallet.ErrTransactionNotFound) {
				logger.Error("deposit session completed with no ledger entry", "session_id", ev.SessionID)
				return nil
			}
			return err
		}
		err := r.confirmer.ConfirmSession(ctx, ev.SessionID)
		if errors.Is(err, booking.ErrBookingNotFound) {
			logger.Error("checkout completed for unknown booking session", "session_id", ev.SessionID)
			return nil
		}
		return err

	case EventCheckoutExpired:
		if ev.SessionType == payment.SessionTypeDeposit {
			err := r.wallets.FailTransactionBySession(ctx, ev.SessionID)
			if errors.Is(err, wallet.ErrTransactionNotFound) {
				return nil
			}
			return err
		}
		return r.repo.RefundExpiredSplit(ctx, ev.SessionID)

	default:
		return fmt.Errorf("unhandled event type %q", ev.Type)
	}
}
