package ibkr

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/rebalancer/broker"
	"github.com/rustyeddy/rebalancer/market"
	"github.com/rustyeddy/rebalancer/portfolio"
)

const positionsPageSize = 100

type AccountInfo struct {
	ID        string `json:"id"`
	AccountID string `json:"accountId"`
	Desc      string `json:"desc"`
	Currency  string `json:"currency"`
	Type      string `json:"type"`
}

type ledgerEntry struct {
	CashBalance         decimal.Decimal `json:"cashbalance"`
	NetLiquidationValue decimal.Decimal `json:"netliquidationvalue"`
	Currency            string          `json:"currency"`
}

// Position is one line of the gateway's portfolio positions.
type Position struct {
	ConID           int64           `json:"conid"`
	ContractDesc    string          `json:"contractDesc"`
	Position        decimal.Decimal `json:"position"`
	ListingExchange string          `json:"listingExchange"`
	Currency        string          `json:"currency"`
	AssetClass      string          `json:"assetClass"`
}

func (p Position) Instrument() (market.Instrument, error) {
	return market.NewInstrument(p.ContractDesc, p.ListingExchange)
}

// Accounts lists the accounts of the session. The gateway needs this call
// before most portfolio endpoints answer.
func (c *Client) Accounts(ctx context.Context) ([]AccountInfo, error) {
	var out []AccountInfo
	if err := c.do(ctx, "GET", "portfolio/accounts", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SwitchAccount selects the client's account for order entry. An account
// that is already selected is not an error.
func (c *Client) SwitchAccount(ctx context.Context) error {
	err := c.do(ctx, "POST", "iserver/account", nil, map[string]string{"acctId": c.accountID}, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && strings.Contains(apiErr.Body, "Account already set") {
		c.log.Debug().Msg("account already set")
		return nil
	}
	return err
}

// Ledger returns the account's USD cash balance and net liquidation value.
func (c *Client) Ledger(ctx context.Context) (broker.Account, error) {
	var ledger map[string]ledgerEntry
	if err := c.do(ctx, "GET", "portfolio/"+c.accountID+"/ledger", nil, nil, &ledger); err != nil {
		return broker.Account{}, err
	}
	usd, ok := ledger["USD"]
	if !ok {
		return broker.Account{}, fmt.Errorf("ibkr ledger for %s has no USD entry", c.accountID)
	}
	return broker.Account{
		ID:             c.accountID,
		Currency:       "USD",
		Cash:           usd.CashBalance,
		NetLiquidation: usd.NetLiquidationValue,
	}, nil
}

// Positions pages through the account's positions.
func (c *Client) Positions(ctx context.Context) ([]Position, error) {
	var all []Position
	for page := 0; ; page++ {
		var batch []Position
		path := "portfolio/" + c.accountID + "/positions/" + strconv.Itoa(page)
		if err := c.do(ctx, "GET", path, nil, nil, &batch); err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < positionsPageSize {
			return all, nil
		}
	}
}

// FetchSnapshot selects the account, then reads cash, positions and a
// price for every held position. Quotes cached by an earlier snapshot are
// dropped first; quotes fetched here are reused by Quote and Submit.
func (c *Client) FetchSnapshot(ctx context.Context) (portfolio.Snapshot, error) {
	c.ResetQuotes()
	if _, err := c.Accounts(ctx); err != nil {
		return portfolio.Snapshot{}, err
	}
	if err := c.SwitchAccount(ctx); err != nil {
		return portfolio.Snapshot{}, err
	}
	acct, err := c.Ledger(ctx)
	if err != nil {
		return portfolio.Snapshot{}, err
	}
	raw, err := c.Positions(ctx)
	if err != nil {
		return portfolio.Snapshot{}, err
	}

	positions := make([]portfolio.Position, 0, len(raw))
	for _, rp := range raw {
		if rp.Position.IsZero() {
			continue
		}
		inst, err := rp.Instrument()
		if err != nil {
			return portfolio.Snapshot{}, fmt.Errorf("position %d: %w", rp.ConID, err)
		}
		c.rememberConID(inst, rp.ConID)

		q, err := c.snapshot(ctx, rp.ConID, inst)
		if err != nil {
			return portfolio.Snapshot{}, err
		}
		p, err := portfolio.NewPosition(inst, rp.Position, q.Mark())
		if err != nil {
			return portfolio.Snapshot{}, err
		}
		positions = append(positions, p)
	}

	c.log.Info().
		Str("cash", market.Money(acct.Cash)).
		Int("positions", len(positions)).
		Msg("fetched snapshot")
	return portfolio.NewSnapshot(acct.Cash, positions, nil)
}
