package payment

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/customer"
	"github.com/stripe/stripe-go/v79/paymentintent"
)

// StripeGateway is the production Gateway backed by Stripe Checkout and
// PaymentIntents.
type StripeGateway struct {
	currency string
}

func NewStripeGateway(apiKey, currency string) *StripeGateway {
	stripe.Key = apiKey
	return &StripeGateway{currency: currency}
}

func toCents(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func fromCents(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100))
}

func (g *StripeGateway) CreateCustomer(ctx context.Context, email string) (string, error) {
	params := &stripe.CustomerParams{Email: stripe.String(email)}
	params.Context = ctx

	cust, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("%w: create customer: %v", ErrGateway, err)
	}
	return cust.ID, nil
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	currency := p.Currency
	if currency == "" {
		currency = g.currency
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(currency),
					UnitAmount: stripe.Int64(toCents(p.Amount)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(p.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	if p.CustomerID != "" {
		params.Customer = stripe.String(p.CustomerID)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	s, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: create checkout session: %v", ErrGateway, err)
	}
	return sessionFromStripe(s), nil
}

func (g *StripeGateway) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	s, err := session.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("%w: get checkout session: %v", ErrGateway, err)
	}
	return sessionFromStripe(s), nil
}

func (g *StripeGateway) ChargePaymentMethod(ctx context.Context, customerID, paymentMethodID string, amount decimal.Decimal, description string) (*ChargeResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(toCents(amount)),
		Currency:      stripe.String(g.currency),
		Customer:      stripe.String(customerID),
		PaymentMethod: stripe.String(paymentMethodID),
		Description:   stripe.String(description),
		Confirm:       stripe.Bool(true),
		OffSession:    stripe.Bool(true),
	}
	params.Context = ctx

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: charge payment method: %v", ErrGateway, err)
	}
	return &ChargeResult{
		ID:        pi.ID,
		Succeeded: pi.Status == stripe.PaymentIntentStatusSucceeded,
	}, nil
}

func sessionFromStripe(s *stripe.CheckoutSession) *CheckoutSession {
	return &CheckoutSession{
		ID:            s.ID,
		URL:           s.URL,
		PaymentStatus: string(s.PaymentStatus),
		AmountTotal:   fromCents(s.AmountTotal),
		Metadata:      s.Metadata,
	}
}
