package broker

import (
	"io"

	"github.com/rustyeddy/rebalancer/rebalance"
)

// TextReporter writes a plan's plain-text rendering.
type TextReporter struct {
	W io.Writer
}

func (r TextReporter) Report(p *rebalance.Plan) error {
	_, err := p.WriteTo(r.W)
	return err
}
