package currency

import (
	"github.com/shopspring/decimal"
)

// DefaultRate is used when the configured rate is missing or invalid.
const DefaultRate = 120.0

type Converter struct {
	rate     decimal.Decimal
	currency string
}

// NewConverter builds a converter for the display currency. An invalid rate
// falls back to DefaultRate rather than failing startup.
func NewConverter(rate float64, displayCurrency string) *Converter {
	if !IsValidRate(rate) {
		rate = DefaultRate
	}
	return &Converter{
		rate:     decimal.NewFromFloat(rate),
		currency: displayCurrency,
	}
}

func IsValidRate(rate float64) bool {
	return rate > 0
}

// Convert multiplies the base amount by the rate and rounds to the display
// currency's minor unit.
func (c *Converter) Convert(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(c.rate).Round(2)
}

func (c *Converter) Rate() decimal.Decimal {
	return c.rate
}

func (c *Converter) Currency() string {
	return c.currency
}
