// Package moneypkg provides common currency related functionality for apps.
package moneypkg

// Constants for all supported currencies.
const (
	USD = "USD"
	EUR = "EUR"
	RMB = "RMB"
)

// SupportedCurrencies holds all the supported currencies.
var SupportedCurrencies = []string{
	USD,
	EUR,
	RMB,
}

// IsSupportedCurrency returns true if the currency is supported.
func IsSupportedCurrency(currency string) bool {
	for _, c := range SupportedCurrencies {
		if c == currency {
			return true
		}
	}

	return false
}

// Symbol returns the display symbol for the currency. Unknown currencies
// fall back to the code itself.
func Symbol(currency string) string {
	switch currency {
	case USD:
		return "$"
	case EUR:
		return "€"
	case RMB:
		return "¥"
	}

	return currency + " "
}
