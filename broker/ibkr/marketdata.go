package ibkr

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/rustyeddy/rebalancer/market"
)

// Market data snapshot field ids.
const (
	fieldLast = "31"
	fieldBid  = "84"
	fieldAsk  = "86"
)

var fieldNames = map[string]string{fieldLast: "last", fieldBid: "bid", fieldAsk: "ask"}

type stockContract struct {
	ConID    int64  `json:"conid"`
	Exchange string `json:"exchange"`
	IsUS     bool   `json:"isUS"`
}

type stockInfo struct {
	Name       string          `json:"name"`
	AssetClass string          `json:"assetClass"`
	Contracts  []stockContract `json:"contracts"`
}

func conidKey(inst market.Instrument) string {
	return inst.Symbol + "@" + inst.Exchange
}

func (c *Client) rememberConID(inst market.Instrument, conid int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conids[conidKey(inst)] = conid
}

// ConID resolves a stock symbol to its contract id, keeping only contracts
// listed on the instrument's exchange when one is given. Results are
// cached for the life of the client.
func (c *Client) ConID(ctx context.Context, inst market.Instrument) (int64, error) {
	c.mu.Lock()
	conid, ok := c.conids[conidKey(inst)]
	c.mu.Unlock()
	if ok {
		return conid, nil
	}

	var stocks map[string][]stockInfo
	q := url.Values{"symbols": {inst.Symbol}}
	if err := c.do(ctx, "GET", "trsrv/stocks", q, nil, &stocks); err != nil {
		return 0, err
	}
	for _, s := range stocks[inst.Symbol] {
		for _, ct := range s.Contracts {
			if inst.Exchange == "" || ct.Exchange == inst.Exchange {
				c.rememberConID(inst, ct.ConID)
				return ct.ConID, nil
			}
		}
	}
	return 0, fmt.Errorf("ibkr: no contract for %s", inst)
}

// Quote returns last, bid and ask for inst.
func (c *Client) Quote(ctx context.Context, inst market.Instrument) (market.Quote, error) {
	conid, err := c.ConID(ctx, inst)
	if err != nil {
		return market.Quote{}, err
	}
	return c.snapshot(ctx, conid, inst)
}

// snapshot asks for the market data snapshot of one contract. The gateway
// often answers the first requests for a contract with an empty or partial
// record while it subscribes, so those are retried a bounded number of
// times.
func (c *Client) snapshot(ctx context.Context, conid int64, inst market.Instrument) (market.Quote, error) {
	c.mu.Lock()
	q, ok := c.quotes[conid]
	c.mu.Unlock()
	if ok {
		return q, nil
	}

	ident := strconv.FormatInt(conid, 10)
	if inst.Exchange != "" {
		ident += "@" + inst.Exchange + ":CS"
	}
	query := url.Values{
		"conids": {ident},
		"fields": {fieldLast + "," + fieldBid + "," + fieldAsk},
	}

	var last []string
	for attempt := 1; attempt <= c.retries; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, c.retryDelay); err != nil {
				return market.Quote{}, err
			}
		}

		var recs []map[string]any
		if err := c.do(ctx, "GET", "md/snapshot", query, nil, &recs); err != nil {
			return market.Quote{}, err
		}
		if len(recs) == 0 {
			c.log.Debug().Str("symbol", inst.Symbol).Int("attempt", attempt).Msg("empty snapshot, retrying")
			continue
		}

		vals, missing := snapshotFields(recs[0])
		if len(missing) > 0 {
			last = missing
			c.log.Debug().Str("symbol", inst.Symbol).Int("attempt", attempt).
				Strs("missing", missing).Msg("incomplete snapshot, retrying")
			continue
		}

		q, err := quoteFrom(inst, vals)
		if err != nil {
			return market.Quote{}, err
		}
		c.mu.Lock()
		c.quotes[conid] = q
		c.mu.Unlock()
		c.log.Debug().Str("symbol", inst.Symbol).
			Str("bid", q.Bid.String()).Str("ask", q.Ask.String()).Str("last", q.Last.String()).
			Msg("quote")
		return q, nil
	}

	if len(last) > 0 {
		return market.Quote{}, fmt.Errorf("ibkr: no complete quote for %s after %d attempts, missing %v", inst.Symbol, c.retries, last)
	}
	return market.Quote{}, fmt.Errorf("ibkr: no quote for %s after %d attempts", inst.Symbol, c.retries)
}

// snapshotFields pulls last, bid and ask out of a snapshot record and names
// the ones that are absent or blank.
func snapshotFields(rec map[string]any) (map[string]string, []string) {
	vals := make(map[string]string, 3)
	var missing []string
	for _, f := range []string{fieldLast, fieldBid, fieldAsk} {
		var s string
		switch v := rec[f].(type) {
		case string:
			s = v
		case float64:
			s = strconv.FormatFloat(v, 'f', -1, 64)
		}
		if s == "" {
			missing = append(missing, fieldNames[f])
			continue
		}
		vals[f] = s
	}
	return vals, missing
}

// quoteFrom parses the snapshot strings. Last can carry a prefix such as
// "C119.7" for a prior close, which ParsePrice strips.
func quoteFrom(inst market.Instrument, vals map[string]string) (market.Quote, error) {
	last, err := market.ParsePrice(vals[fieldLast])
	if err != nil {
		return market.Quote{}, fmt.Errorf("ibkr %s last: %w", inst.Symbol, err)
	}
	bid, err := market.ParsePrice(vals[fieldBid])
	if err != nil {
		return market.Quote{}, fmt.Errorf("ibkr %s bid: %w", inst.Symbol, err)
	}
	ask, err := market.ParsePrice(vals[fieldAsk])
	if err != nil {
		return market.Quote{}, fmt.Errorf("ibkr %s ask: %w", inst.Symbol, err)
	}
	return market.Quote{Instrument: inst, Bid: bid, Ask: ask, Last: last}, nil
}
