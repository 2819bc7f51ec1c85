package ibkr

import (
	"fmt"
	"regexp"
)

// Country is an ISO 3166-1 alpha-2 country code. It is part of a position's
// key: the same symbol can trade in several markets.
type Country string

const (
	US Country = "US"
	DE Country = "DE"
)

// countryCodeRegex checks for the format: 2 uppercase letters.
var countryCodeRegex = regexp.MustCompile(`^[A-Z]{2}$`)

// ParseCountry validates an issuer country code attribute.
func ParseCountry(code string) (Country, error) {
	if !countryCodeRegex.MatchString(code) {
		return "", fmt.Errorf("invalid country code %q", code)
	}
	return Country(code), nil
}

// detectCountryByExchange maps a listing exchange to the issuer country.
//
// The table is deliberately incomplete: it covers exactly the markets whose
// report quirks this mapper knows, and anything else is a hard failure.
// Silently inferring a country here would corrupt position keys.
func detectCountryByExchange(listingExchange string) (Country, error) {
	switch listingExchange {
	case "":
		return "", nil
	case "NYSE", "NASDAQ":
		return US, nil
	case "IBIS", "IBIS2":
		return DE, nil
	default:
		return "", fmt.Errorf("unmapped listing exchange %q", listingExchange)
	}
}
