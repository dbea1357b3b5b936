package invoice

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Invoice struct {
	ID              int             `db:"id" json:"-"`
	InvoiceID       string          `db:"invoice_id" json:"invoice_id"`
	BookingID       string          `db:"booking_id" json:"booking_id"`
	Status          string          `db:"status" json:"status"`
	Items           string          `db:"items" json:"items"`
	Subtotal        decimal.Decimal `db:"subtotal" json:"subtotal"`
	Tax             decimal.Decimal `db:"tax" json:"tax"`
	TaxAmount       decimal.Decimal `db:"tax_amount" json:"tax_amount"`
	AdminPercentage decimal.Decimal `db:"admin_percentage" json:"admin_percentage"`
	AdminFee        decimal.Decimal `db:"admin_fee" json:"admin_fee"`
	Total           decimal.Decimal `db:"total" json:"total"`
	Paid            bool            `db:"paid" json:"paid"`
	TransactionID   string          `db:"transaction_id" json:"transaction_id,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// Payment is the settlement record written when an invoice is paid.
type Payment struct {
	ID            int             `db:"id" json:"-"`
	InvoiceID     string          `db:"invoice_id" json:"invoice_id"`
	PaymentID     string          `db:"payment_id" json:"payment_id"`
	TransactionID string          `db:"transaction_id" json:"transaction_id"`
	Status        string          `db:"status" json:"status"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	AdminFee      decimal.Decimal `db:"admin_fee" json:"admin_fee"`
	VAT           decimal.Decimal `db:"vat" json:"vat"`
	Total         decimal.Decimal `db:"total" json:"total"`
	Paid          bool            `db:"paid" json:"paid"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// LineItem is one invoice line: [name, quantity, kind, unit price, line total].
type LineItem struct {
	Name      string
	Quantity  int
	Kind      string
	UnitPrice decimal.Decimal
	Total     decimal.Decimal
}

func MarshalItems(items []LineItem) string {
	rows := make([][]interface{}, 0, len(items))
	for _, it := range items {
		rows = append(rows, []interface{}{it.Name, it.Quantity, it.Kind, it.UnitPrice.String(), it.Total.String()})
	}
	b, err := json.Marshal(rows)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// Build computes invoice amounts for a booking subtotal: a flat admin fee
// percentage on the subtotal, then VAT on subtotal plus fee.
func Build(bookingID, packageName string, subtotal, vat, adminPercent decimal.Decimal) *Invoice {
	adminFee := adminPercent.Mul(subtotal).Div(decimal.NewFromInt(100)).Round(2)
	taxAmount := vat.Mul(subtotal.Add(adminFee)).Div(decimal.NewFromInt(100)).Round(2)
	total := subtotal.Add(taxAmount).Add(adminFee)

	return &Invoice{
		BookingID: bookingID,
		Status:    "pending",
		Items: MarshalItems([]LineItem{
			{Name: packageName, Quantity: 1, Kind: "package", UnitPrice: subtotal, Total: subtotal},
		}),
		Subtotal:        subtotal,
		Tax:             vat,
		TaxAmount:       taxAmount,
		AdminPercentage: adminPercent,
		AdminFee:        adminFee,
		Total:           total,
	}
}

func GeneratePaymentID() string {
	return "PMT" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:6])
}

func GenerateTransactionID() string {
	return "TXN" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:16])
}
