package booking

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/okeowo1014/leisuretimezapi/internal/catalog"
	"github.com/okeowo1014/leisuretimezapi/internal/invoice"
	"github.com/okeowo1014/leisuretimezapi/internal/logger"
	"github.com/okeowo1014/leisuretimezapi/internal/metrics"
	"github.com/okeowo1014/leisuretimezapi/internal/promo"
	"github.com/okeowo1014/leisuretimezapi/internal/wallet"
)

var (
	ErrPromoInvalid       = errors.New("promo code is unknown, inactive or exhausted")
	ErrPromoNotEligible   = errors.New("booking does not meet the promo minimum order amount")
	ErrPromoNotApplicable = errors.New("promo cannot be applied to this booking")
)

type Service struct {
	repo            Repository
	packages        catalog.Repository
	promos          promo.Repository
	invoices        invoice.Repository
	wallets         wallet.Repository
	adminFeePercent decimal.Decimal
}

func NewService(repo Repository, packages catalog.Repository, promos promo.Repository, invoices invoice.Repository, wallets wallet.Repository, adminFeePercent decimal.Decimal) *Service {
	return &Service{
		repo:            repo,
		packages:        packages,
		promos:          promos,
		invoices:        invoices,
		wallets:         wallets,
		adminFeePercent: adminFeePercent,
	}
}

type CreateInput struct {
	PackageID string
	DateFrom  time.Time
	DateTo    time.Time
	Adult     int
	Children  int
}

func (s *Service) Create(ctx context.Context, customerID int, in CreateInput) (*Booking, error) {
	pkg, err := s.packages.GetByPackageID(ctx, in.PackageID)
	if err != nil {
		return nil, err
	}

	price, err := pkg.PriceFor(in.Adult, in.Children)
	if err != nil {
		return nil, err
	}

	b := &Booking{
		BookingID:     GenerateBookingID(),
		PackageID:     in.PackageID,
		CustomerID:    customerID,
		DateFrom:      in.DateFrom,
		DateTo:        in.DateTo,
		Adult:         in.Adult,
		Children:      in.Children,
		OriginalPrice: price,
		Price:         price,
	}

	created, err := s.repo.Create(ctx, b)
	if err != nil {
		return nil, err
	}

	logger.Info("booking created", "booking_id", created.BookingID, "package_id", created.PackageID)
	metrics.RecordBooking(string(StatusPending))
	return created, nil
}

// Modify changes dates and guest counts on a pending booking. A guest-count
// change reprices from scratch; an applied promo is recomputed on the fresh
// price without touching its usage counter.
func (s *Service) Modify(ctx context.Context, customerID int, bookingID string, in CreateInput) (*Booking, error) {
	b, err := s.repo.GetForCustomer(ctx, bookingID, customerID)
	if err != nil {
		return nil, err
	}
	if b.Status != StatusPending {
		return nil, ErrInvalidState
	}

	pkg, err := s.packages.GetByPackageID(ctx, b.PackageID)
	if err != nil {
		return nil, err
	}
	price, err := pkg.PriceFor(in.Adult, in.Children)
	if err != nil {
		return nil, err
	}

	discount := decimal.Zero
	newPrice := price
	if b.PromoCode != "" {
		p, err := s.promos.GetByCode(ctx, b.PromoCode)
		if err != nil {
			return nil, err
		}
		discount = p.Discount(price)
		newPrice = price.Sub(discount)
	}

	err = s.repo.UpdateGuestsAndPrice(ctx, bookingID, in.DateFrom, in.DateTo, in.Adult, in.Children, price, newPrice, discount)
	if err != nil {
		return nil, err
	}

	return s.repo.GetForCustomer(ctx, bookingID, customerID)
}

func (s *Service) ApplyPromo(ctx context.Context, customerID int, bookingID, code string) (*Booking, error) {
	b, err := s.repo.GetForCustomer(ctx, bookingID, customerID)
	if err != nil {
		return nil, err
	}
	if b.Status != StatusPending || b.PromoCode != "" {
		return nil, ErrPromoNotApplicable
	}

	p, err := s.promos.GetByCode(ctx, code)
	if errors.Is(err, promo.ErrCodeNotFound) {
		return nil, ErrPromoInvalid
	}
	if err != nil {
		return nil, err
	}
	if !p.IsValid(time.Now()) {
		return nil, ErrPromoInvalid
	}
	if b.OriginalPrice.LessThan(p.MinOrderAmount) {
		return nil, ErrPromoNotEligible
	}

	discount := p.Discount(b.OriginalPrice)
	newPrice := b.OriginalPrice.Sub(discount)

	err = s.repo.ApplyPromo(ctx, bookingID, p.ID, p.Code, discount, newPrice)
	if errors.Is(err, ErrInvalidState) {
		return nil, ErrPromoNotApplicable
	}
	if errors.Is(err, promo.ErrUsageCapTaken) {
		return nil, ErrPromoInvalid
	}
	if err != nil {
		return nil, err
	}

	logger.Info("promo applied", "booking_id", bookingID, "code", p.Code, "discount", discount.String())
	return s.repo.GetForCustomer(ctx, bookingID, customerID)
}

func (s *Service) RemovePromo(ctx context.Context, customerID int, bookingID string) (*Booking, error) {
	b, err := s.repo.GetForCustomer(ctx, bookingID, customerID)
	if err != nil {
		return nil, err
	}
	if b.Status != StatusPending || b.PromoCode == "" {
		return nil, ErrPromoNotApplicable
	}

	err = s.repo.ClearPromo(ctx, bookingID)
	if errors.Is(err, ErrInvalidState) {
		return nil, ErrPromoNotApplicable
	}
	if err != nil {
		return nil, err
	}

	return s.repo.GetForCustomer(ctx, bookingID, customerID)
}

// Cancel cancels the booking and refunds the wallet-paid portion according to
// how far out the travel date is. The refund credit lands before the status
// flips to cancelled; if the credit fails the booking stays where it was.
func (s *Service) Cancel(ctx context.Context, customerID int, bookingID, reason string) (*Booking, error) {
	b, err := s.repo.GetForCustomer(ctx, bookingID, customerID)
	if err != nil {
		return nil, err
	}
	if b.Status == StatusCancelled {
		return nil, ErrInvalidState
	}

	pct := RefundPercent(b.DateFrom, time.Now())
	refund := pct.Mul(b.WalletAmountPaid).Div(decimal.NewFromInt(100)).Round(2)

	if refund.IsPositive() {
		if err := s.repo.ClaimRefund(ctx, bookingID); err != nil {
			return nil, err
		}

		w, err := s.wallets.GetByUserID(ctx, customerID)
		if err != nil {
			s.repo.ReleaseRefundClaim(ctx, bookingID)
			return nil, err
		}
		if _, err := s.wallets.CreditRefund(ctx, w.ID, refund, bookingID); err != nil {
			s.repo.ReleaseRefundClaim(ctx, bookingID)
			return nil, err
		}
		metrics.RecordRefund()
	}

	err = s.repo.Cancel(ctx, bookingID, reason, refund, RefundStatusProcessed)
	if err != nil {
		return nil, err
	}

	logger.Info("booking cancelled", "booking_id", bookingID, "refund", refund.String())
	metrics.RecordBookingCancellation()
	return s.repo.GetForCustomer(ctx, bookingID, customerID)
}

// Invoice returns the booking's unpaid invoice, creating it on first call.
func (s *Service) Invoice(ctx context.Context, bookingID string) (*invoice.Invoice, error) {
	b, err := s.repo.GetByBookingID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status != StatusPending && b.Status != StatusInvoiced {
		return nil, ErrInvalidState
	}

	existing, err := s.invoices.GetUnpaidByBooking(ctx, bookingID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, invoice.ErrInvoiceNotFound) {
		return nil, err
	}

	pkg, err := s.packages.GetByPackageID(ctx, b.PackageID)
	if err != nil {
		return nil, err
	}

	created, err := s.invoices.Create(ctx, invoice.Build(bookingID, pkg.Name, b.Price, pkg.VAT, s.adminFeePercent))
	if errors.Is(err, invoice.ErrInvoiceExists) {
		// A concurrent request invoiced the booking first; hand back its row.
		return s.invoices.GetByBooking(ctx, bookingID)
	}
	if err != nil {
		return nil, err
	}

	metrics.RecordInvoice()
	return created, nil
}

// Confirm moves the booking to paid. Confirming an already paid booking is a
// no-op success so redundant client or webhook calls are harmless.
func (s *Service) Confirm(ctx context.Context, bookingID string) error {
	b, err := s.repo.GetByBookingID(ctx, bookingID)
	if err != nil {
		return err
	}
	if b.Status == StatusPaid {
		return nil
	}
	if b.Status == StatusCancelled {
		return ErrInvalidState
	}
	return s.repo.MarkPaid(ctx, bookingID)
}

// Settle is the full settlement: invoice the booking, mark the invoice paid
// with its payment record, and confirm the booking. A booking whose invoice
// is already paid short-circuits, so replays never produce a second invoice
// or payment record.
func (s *Service) Settle(ctx context.Context, bookingID string) error {
	b, err := s.repo.GetByBookingID(ctx, bookingID)
	if err != nil {
		return err
	}
	if b.Status == StatusCancelled {
		return ErrInvalidState
	}

	inv, err := s.invoices.GetByBooking(ctx, bookingID)
	if err != nil && !errors.Is(err, invoice.ErrInvoiceNotFound) {
		return err
	}
	if errors.Is(err, invoice.ErrInvoiceNotFound) {
		pkg, err := s.packages.GetByPackageID(ctx, b.PackageID)
		if err != nil {
			return err
		}
		inv, err = s.invoices.Create(ctx, invoice.Build(bookingID, pkg.Name, b.Price, pkg.VAT, s.adminFeePercent))
		switch {
		case err == nil:
			metrics.RecordInvoice()
		case errors.Is(err, invoice.ErrInvoiceExists):
			// A concurrent settlement inserted the invoice between our read
			// and our insert; settle against the winner's row.
			inv, err = s.invoices.GetByBooking(ctx, bookingID)
			if err != nil {
				return err
			}
		default:
			return err
		}
	}

	if inv.Paid && b.Status == StatusPaid {
		return nil
	}
	if err := s.invoices.MarkPaid(ctx, inv.InvoiceID); err != nil {
		return err
	}

	err = s.repo.MarkPaid(ctx, bookingID)
	if errors.Is(err, ErrInvalidState) {
		// Lost the race to a concurrent confirmation.
		current, getErr := s.repo.GetByBookingID(ctx, bookingID)
		if getErr == nil && current.Status == StatusPaid {
			return nil
		}
		return err
	}
	if err != nil {
		return err
	}

	logger.Info("booking settled", "booking_id", bookingID, "invoice_id", inv.InvoiceID)
	metrics.RecordBooking(string(StatusPaid))
	return nil
}
