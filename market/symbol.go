package market

import (
	"fmt"
	"strings"
)

// NormalizeSymbol maps "EUR_USD", "eur/usd" and "EURUSD" to "EURUSD".
func NormalizeSymbol(s string) string {
	r := strings.NewReplacer("_", "", "/", "", "-", "", " ", "")
	return strings.ToUpper(r.Replace(s))
}

// SameSymbol compares two symbols ignoring separators and case.
func SameSymbol(a, b string) bool {
	return NormalizeSymbol(a) == NormalizeSymbol(b)
}

// SplitSymbol returns the base and quote currencies of a six letter FX pair.
func SplitSymbol(s string) (base, quote string, err error) {
	n := NormalizeSymbol(s)
	if len(n) != 6 {
		return "", "", fmt.Errorf("not an fx pair: %q", s)
	}
	return n[:3], n[3:], nil
}

// OandaSymbol renders a pair in OANDA's "EUR_USD" form.
func OandaSymbol(s string) string {
	base, quote, err := SplitSymbol(s)
	if err != nil {
		return strings.ToUpper(s)
	}
	return base + "_" + quote
}
