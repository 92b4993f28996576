package rebalance

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Config tunes the order synthesizer. Quantities are truncated toward zero
// by default so a plan never buys or sells more than the drift calls for.
type Config struct {
	// DriftTolerance is the no-trade band: instruments whose |delta weight|
	// is below it get no order.
	DriftTolerance decimal.Decimal
	// MinOrderValue suppresses orders whose estimated value is smaller.
	MinOrderValue decimal.Decimal
	// AllowFractional permits quantities with FractionalDecimals places.
	AllowFractional    bool
	FractionalDecimals int32
	// CashBuffer is left unspent when sizing buys.
	CashBuffer decimal.Decimal
}

func DefaultConfig() Config {
	return Config{
		DriftTolerance:     decimal.RequireFromString("0.005"),
		MinOrderValue:      decimal.Zero,
		AllowFractional:    false,
		FractionalDecimals: 2,
		CashBuffer:         decimal.Zero,
	}
}

func (c Config) Validate() error {
	if c.DriftTolerance.IsNegative() || c.DriftTolerance.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: drift_tolerance must be between 0 and 1", ErrInvalidConfig)
	}
	if c.MinOrderValue.IsNegative() {
		return fmt.Errorf("%w: min_order_value must not be negative", ErrInvalidConfig)
	}
	if c.CashBuffer.IsNegative() {
		return fmt.Errorf("%w: cash_buffer must not be negative", ErrInvalidConfig)
	}
	if c.AllowFractional && (c.FractionalDecimals < 0 || c.FractionalDecimals > 8) {
		return fmt.Errorf("%w: fractional_decimals must be between 0 and 8", ErrInvalidConfig)
	}
	return nil
}

// places is the number of decimals quantities are truncated to.
func (c Config) places() int32 {
	if c.AllowFractional {
		return c.FractionalDecimals
	}
	return 0
}
