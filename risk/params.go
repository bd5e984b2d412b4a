package risk

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

var (
	// ErrInvalidInput is returned for arguments that violate a sizing contract.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidParams wraps every Params validation failure.
	ErrInvalidParams = errors.New("invalid risk parameters")
)

// Params are the operator-tunable limits.
type Params struct {
	RiskPerTrade        float64 `json:"riskPerTrade" yaml:"risk_per_trade"`
	MaxConcurrentTrades int     `json:"maxConcurrentTrades" yaml:"max_concurrent_trades"`
	MaxDailyDrawdown    float64 `json:"maxDailyDrawdown" yaml:"max_daily_drawdown"`
}

const (
	MinRiskPerTrade = 0.0005
	MaxRiskPerTrade = 0.05

	MinDailyDrawdown = 0.005
	MaxDailyDrawdown = 0.2

	MaxConcurrentLimit = 20
)

func DefaultParams() Params {
	return Params{
		RiskPerTrade:        0.01,
		MaxConcurrentTrades: 3,
		MaxDailyDrawdown:    0.03,
	}
}

// Validate reports every out-of-range field.
func (p Params) Validate() error {
	var err error
	if p.RiskPerTrade < MinRiskPerTrade || p.RiskPerTrade > MaxRiskPerTrade {
		err = multierr.Append(err, fmt.Errorf("%w: risk per trade %.4f outside [%.4f, %.2f]",
			ErrInvalidParams, p.RiskPerTrade, MinRiskPerTrade, MaxRiskPerTrade))
	}
	if p.MaxConcurrentTrades < 1 || p.MaxConcurrentTrades > MaxConcurrentLimit {
		err = multierr.Append(err, fmt.Errorf("%w: max concurrent trades %d outside [1, %d]",
			ErrInvalidParams, p.MaxConcurrentTrades, MaxConcurrentLimit))
	}
	if p.MaxDailyDrawdown < MinDailyDrawdown || p.MaxDailyDrawdown > MaxDailyDrawdown {
		err = multierr.Append(err, fmt.Errorf("%w: max daily drawdown %.4f outside [%.3f, %.1f]",
			ErrInvalidParams, p.MaxDailyDrawdown, MinDailyDrawdown, MaxDailyDrawdown))
	}
	return err
}
