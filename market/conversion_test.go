package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteToAccountRate(t *testing.T) {
	t.Parallel()

	r, err := QuoteToAccountRate("EUR_USD", "USD", 1.1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, r)

	r, err = QuoteToAccountRate("USDJPY", "USD", 150.0)
	require.NoError(t, err)
	assert.InDelta(t, 1.0/150.0, r, 1e-12)

	_, err = QuoteToAccountRate("USDJPY", "USD", 0)
	assert.Error(t, err)

	_, err = QuoteToAccountRate("EURGBP", "USD", 0.85)
	assert.Error(t, err)

	_, err = QuoteToAccountRate("GOLD", "USD", 2000)
	assert.Error(t, err)
}
