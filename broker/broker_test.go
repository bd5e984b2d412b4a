package broker

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSide(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Side
		ok   bool
	}{
		{"BUY", Buy, true},
		{" sell ", Sell, true},
		{"FLAT", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseSide(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, 1.0, Buy.Sign())
	assert.Equal(t, -1.0, Sell.Sign())
}

func TestHasPosition(t *testing.T) {
	t.Parallel()

	positions := []Position{{Symbol: "EUR_USD"}, {Symbol: "USDJPY"}}
	assert.True(t, HasPosition(positions, "EURUSD"))
	assert.True(t, HasPosition(positions, "USD_JPY"))
	assert.False(t, HasPosition(positions, "GBPUSD"))
	assert.False(t, HasPosition(nil, "GBPUSD"))
}

func TestOrderRejectedError(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("place order: %w", &OrderRejectedError{Code: "10019", Message: "no money"})
	rej, ok := IsOrderRejected(err)
	require.True(t, ok)
	assert.Equal(t, "10019", rej.Code)
	assert.Contains(t, err.Error(), "no money")

	_, ok = IsOrderRejected(errors.New("boom"))
	assert.False(t, ok)
}
