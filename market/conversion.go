package market

import "fmt"

// QuoteToAccountRate converts one unit of the pair's quote currency into the
// account currency, using mid as the pair's current price.
//
// Crosses that contain neither side in the account currency are not converted.
func QuoteToAccountRate(symbol, accountCurrency string, mid float64) (float64, error) {
	base, quote, err := SplitSymbol(symbol)
	if err != nil {
		return 0, err
	}

	// EURUSD in a USD account
	if quote == accountCurrency {
		return 1.0, nil
	}

	// USDJPY in a USD account: mid is JPY per USD, we want USD per JPY
	if base == accountCurrency {
		if mid <= 0 {
			return 0, fmt.Errorf("no price to convert %s", symbol)
		}
		return 1.0 / mid, nil
	}

	return 0, fmt.Errorf("cross conversion not implemented for %s -> %s", quote, accountCurrency)
}
