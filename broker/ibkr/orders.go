package ibkr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rustyeddy/rebalancer/broker"
	"github.com/rustyeddy/rebalancer/rebalance"
)

var (
	_ broker.SnapshotProvider = (*Client)(nil)
	_ broker.PriceProvider    = (*Client)(nil)
	_ broker.Executor         = (*Client)(nil)
	_ broker.Previewer        = (*Client)(nil)
)

// orderMessage is the gateway's order ticket. Orders are DAY limit orders
// that are rejected outside regular trading hours.
type orderMessage struct {
	Side        string      `json:"side"`
	ConID       int64       `json:"conid"`
	Ticker      string      `json:"ticker"`
	Price       json.Number `json:"price"`
	Quantity    json.Number `json:"quantity"`
	OrderType   string      `json:"orderType"`
	TIF         string      `json:"tif"`
	OutsideRTH  bool        `json:"outsideRth"`
	UseAdaptive bool        `json:"useAdaptive"`
}

type orderRequest struct {
	Orders []orderMessage `json:"orders"`
}

// orderReply is one element of an order answer: either a question to
// confirm (ID and Message) or an accepted order (OrderID and OrderStatus).
type orderReply struct {
	ID          string   `json:"id"`
	Message     []string `json:"message"`
	OrderID     string   `json:"order_id"`
	OrderStatus string   `json:"order_status"`
	Error       string   `json:"error"`
}

type whatifAmount struct {
	Amount     string `json:"amount"`
	Commission string `json:"commission"`
	Total      string `json:"total"`
}

type whatifResponse struct {
	Amount whatifAmount `json:"amount"`
	Warn   string       `json:"warn"`
	Error  *string      `json:"error"`
}

// message builds the ticket for o. The limit is passive: buys rest on the
// bid and sells on the ask, falling back to the plan's estimate when no
// quote is available. A buy limit never exceeds the plan's price, so the
// order cannot spend more cash than the plan set aside for it.
func (c *Client) message(ctx context.Context, o rebalance.Order) (orderMessage, error) {
	conid, err := c.ConID(ctx, o.Instrument)
	if err != nil {
		return orderMessage{}, err
	}

	price := o.Price
	if q, err := c.snapshot(ctx, conid, o.Instrument); err == nil {
		if p := q.Limit(o.Side == rebalance.Buy); p.IsPositive() {
			price = p
		}
		if o.Side == rebalance.Buy && price.GreaterThan(o.Price) {
			c.log.Debug().Str("symbol", o.Instrument.Symbol).
				Str("bid", price.String()).Str("plan", o.Price.String()).
				Msg("bid above plan price, capping limit")
			price = o.Price
		}
	} else {
		c.log.Warn().Err(err).Str("symbol", o.Instrument.Symbol).Msg("no quote, using plan price as limit")
	}

	return orderMessage{
		Side:        string(o.Side),
		ConID:       conid,
		Ticker:      o.Instrument.Symbol,
		Price:       json.Number(price.String()),
		Quantity:    json.Number(o.Quantity.String()),
		OrderType:   "LMT",
		TIF:         "DAY",
		OutsideRTH:  false,
		UseAdaptive: true,
	}, nil
}

// Submit places o and answers the gateway's confirmation questions.
func (c *Client) Submit(ctx context.Context, o rebalance.Order) (broker.Submission, error) {
	msg, err := c.message(ctx, o)
	if err != nil {
		return broker.Submission{}, err
	}

	replies, err := c.postOrder(ctx, "iserver/account/"+c.accountID+"/orders", orderRequest{Orders: []orderMessage{msg}})
	if err != nil {
		return broker.Submission{}, err
	}

	var notes []string
	for i := 0; i < maxReplies; i++ {
		if len(replies) == 0 {
			return broker.Submission{}, fmt.Errorf("ibkr: empty answer for %s", o)
		}
		r := replies[0]
		switch {
		case r.Error != "":
			return broker.Submission{}, fmt.Errorf("ibkr: %s rejected: %s", o, r.Error)
		case r.OrderID != "":
			c.log.Info().Str("order", o.String()).Str("order_id", r.OrderID).Str("status", r.OrderStatus).Msg("order placed")
			return broker.Submission{
				OrderID: r.OrderID,
				Status:  r.OrderStatus,
				Message: strings.Join(notes, "; "),
			}, nil
		case r.ID != "":
			notes = append(notes, r.Message...)
			c.log.Debug().Str("reply_id", r.ID).Strs("message", r.Message).Msg("confirming")
			replies, err = c.postOrder(ctx, "iserver/reply/"+r.ID, map[string]bool{"confirmed": true})
			if err != nil {
				return broker.Submission{}, err
			}
		default:
			return broker.Submission{}, fmt.Errorf("ibkr: unexpected answer for %s", o)
		}
	}
	return broker.Submission{}, fmt.Errorf("ibkr: %s still unconfirmed after %d replies", o, maxReplies)
}

// Preview asks the gateway what o would cost without placing it.
func (c *Client) Preview(ctx context.Context, o rebalance.Order) (broker.Submission, error) {
	msg, err := c.message(ctx, o)
	if err != nil {
		return broker.Submission{}, err
	}

	var w whatifResponse
	path := "iserver/account/" + c.accountID + "/orders/whatif"
	if err := c.do(ctx, "POST", path, nil, orderRequest{Orders: []orderMessage{msg}}, &w); err != nil {
		return broker.Submission{}, err
	}
	if w.Error != nil && *w.Error != "" {
		return broker.Submission{}, fmt.Errorf("ibkr: whatif %s: %s", o, *w.Error)
	}

	text := fmt.Sprintf("amount %s, commission %s, total %s", w.Amount.Amount, w.Amount.Commission, w.Amount.Total)
	if w.Warn != "" {
		text += "; warning: " + w.Warn
	}
	return broker.Submission{Status: "whatif", Message: text, Preview: true}, nil
}

// postOrder posts to an order endpoint. The gateway answers with a list of
// replies, or with a single object when it refuses the order outright.
func (c *Client) postOrder(ctx context.Context, path string, body any) ([]orderReply, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "POST", path, nil, body, &raw); err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		var one orderReply
		if err := json.Unmarshal(raw, &one); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		return []orderReply{one}, nil
	}
	var many []orderReply
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return many, nil
}
