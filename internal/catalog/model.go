package catalog

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var ErrPricingNotFound = errors.New("no price tier matches the guest counts")

const (
	PriceOptionFixed   = "fixed"
	PriceOptionDynamic = "dynamic"
)

// Package is catalog data owned by the catalog collaborator. This service
// reads it for pricing and never mutates it.
type Package struct {
	PackageID   string              `db:"package_id" json:"package_id"`
	Name        string              `db:"name" json:"name"`
	VAT         decimal.Decimal     `db:"vat" json:"vat"`
	PriceOption string              `db:"price_option" json:"price_option"`
	FixedPrice  decimal.NullDecimal `db:"fixed_price" json:"fixed_price"`
	PriceTiers  string              `db:"price_tiers" json:"-"`
	DateFrom    time.Time           `db:"date_from" json:"date_from"`
	DateTo      time.Time           `db:"date_to" json:"date_to"`
	Status      string              `db:"status" json:"status"`
}

// tier is one dynamic pricing row: a price for an exact adult/children pair.
type tier struct {
	adult    int
	children int
	price    decimal.Decimal
}

// PriceFor resolves the package price for the given guest counts. Fixed-price
// packages ignore the counts; dynamic packages require an exact tier match.
// Tiers are encoded as "adult,children,price" triples separated by "-".
func (p *Package) PriceFor(adult, children int) (decimal.Decimal, error) {
	if p.PriceOption == PriceOptionFixed {
		if !p.FixedPrice.Valid {
			return decimal.Zero, ErrPricingNotFound
		}
		return p.FixedPrice.Decimal, nil
	}

	for _, t := range parseTiers(p.PriceTiers) {
		if t.adult == adult && t.children == children {
			return t.price, nil
		}
	}
	return decimal.Zero, ErrPricingNotFound
}

func parseTiers(raw string) []tier {
	var tiers []tier
	for _, chunk := range strings.Split(raw, "-") {
		parts := strings.Split(chunk, ",")
		if len(parts) < 3 {
			continue
		}
		adult, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			continue
		}
		children, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			continue
		}
		price, err := decimal.NewFromString(strings.TrimSpace(parts[2]))
		if err != nil {
			continue
		}
		tiers = append(tiers, tier{adult: adult, children: children, price: price})
	}
	return tiers
}
