package domain

import (
	"fmt"
	"strings"
)

// Currency is an ISO 4217 code from the closed set below.
type Currency string

const (
	EUR Currency = "EUR"
	USD Currency = "USD"
	CHF Currency = "CHF"
	GBP Currency = "GBP"
	JPY Currency = "JPY"
	CAD Currency = "CAD"
	AUD Currency = "AUD"
	SEK Currency = "SEK"
)

var supportedCurrencies = map[Currency]struct{}{
	EUR: {}, USD: {}, CHF: {}, GBP: {}, JPY: {}, CAD: {}, AUD: {}, SEK: {},
}

// SupportedCurrencies lists every currency a quote or a portfolio may use.
func SupportedCurrencies() []Currency {
	return []Currency{EUR, USD, CHF, GBP, JPY, CAD, AUD, SEK}
}

func (c Currency) Valid() bool {
	_, ok := supportedCurrencies[c]
	return ok
}

func (c Currency) String() string { return string(c) }

// ParseCurrency accepts a currency code in any case and surrounding space.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedCurrency, s)
	}
	return c, nil
}
