package rebalance

import (
	"errors"

	"github.com/rustyeddy/rebalancer/portfolio"
)

// Data-validity errors abort plan construction; no partial plan is
// returned alongside them.
var (
	ErrInvalidTarget      = portfolio.ErrInvalidTarget
	ErrInsufficientEquity = errors.New("insufficient equity")
	ErrMissingPrice       = errors.New("missing price")
	ErrInvalidConfig      = errors.New("invalid rebalance config")
)
