// market/instruments.go
package market

import (
	"fmt"
	"strings"
)

// Instrument identifies a tradeable security. Two instruments are the
// same security when their symbols match; the exchange is routing metadata.
type Instrument struct {
	Symbol   string
	Exchange string
}

func NewInstrument(symbol, exchange string) (Instrument, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return Instrument{}, fmt.Errorf("instrument symbol is required")
	}
	return Instrument{
		Symbol:   symbol,
		Exchange: strings.ToUpper(strings.TrimSpace(exchange)),
	}, nil
}

// MustInstrument is NewInstrument for literals in tests and demos.
func MustInstrument(symbol, exchange string) Instrument {
	inst, err := NewInstrument(symbol, exchange)
	if err != nil {
		panic(err)
	}
	return inst
}

// Key is the identity used to deduplicate instruments across sources.
func (i Instrument) Key() string {
	return i.Symbol
}

func (i Instrument) String() string {
	if i.Exchange == "" {
		return i.Symbol
	}
	return i.Symbol + "@" + i.Exchange
}
