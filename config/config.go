package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/rebalancer/broker"
	"github.com/rustyeddy/rebalancer/market"
	"github.com/rustyeddy/rebalancer/portfolio"
	"github.com/rustyeddy/rebalancer/rebalance"
	"github.com/rustyeddy/rebalancer/sim"
)

// Config is the complete rebalancer configuration.
type Config struct {
	ClientPortalURL    string          `json:"client_portal_url" yaml:"client_portal_url"`
	HARLoggingProxyURL string          `json:"har_logging_proxy_url,omitempty" yaml:"har_logging_proxy_url,omitempty"`
	InsecureTLS        bool            `json:"insecure_tls" yaml:"insecure_tls"`
	Log                LogConfig       `json:"log" yaml:"log"`
	Journal            JournalConfig   `json:"journal" yaml:"journal"`
	Rebalance          RebalanceConfig `json:"rebalance" yaml:"rebalance"`
	Accounts           []Account       `json:"accounts" yaml:"accounts"`
	Paper              *PaperConfig    `json:"paper,omitempty" yaml:"paper,omitempty"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Pretty bool   `json:"pretty" yaml:"pretty"`
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "csv", "sqlite" or "none"
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	RunsFile   string `json:"runs_file,omitempty" yaml:"runs_file,omitempty"`
	OrdersFile string `json:"orders_file,omitempty" yaml:"orders_file,omitempty"`
}

type RebalanceConfig struct {
	DriftTolerance     decimal.Decimal `json:"drift_tolerance" yaml:"drift_tolerance"`
	MinOrderValue      decimal.Decimal `json:"min_order_value" yaml:"min_order_value"`
	AllowFractional    bool            `json:"allow_fractional" yaml:"allow_fractional"`
	FractionalDecimals int32           `json:"fractional_decimals" yaml:"fractional_decimals"`
	CashBuffer         decimal.Decimal `json:"cash_buffer" yaml:"cash_buffer"`
}

// Engine converts the section into the engine's configuration.
func (r RebalanceConfig) Engine() rebalance.Config {
	return rebalance.Config{
		DriftTolerance:     r.DriftTolerance,
		MinOrderValue:      r.MinOrderValue,
		AllowFractional:    r.AllowFractional,
		FractionalDecimals: r.FractionalDecimals,
		CashBuffer:         r.CashBuffer,
	}
}

// Account is one brokerage account and the allocation it should hold.
type Account struct {
	Name         string       `json:"name" yaml:"name"`
	AccountID    string       `json:"account_id" yaml:"account_id"`
	PortfolioCap string       `json:"portfolio_cap,omitempty" yaml:"portfolio_cap,omitempty"`
	Allocations  []Allocation `json:"allocations" yaml:"allocations"`
}

// Allocation is a target percent (0-100) of one listing.
type Allocation struct {
	Symbol   string          `json:"symbol" yaml:"symbol"`
	Exchange string          `json:"exchange" yaml:"exchange"`
	Percent  decimal.Decimal `json:"percent" yaml:"percent"`
}

// LoadTarget builds the account's target allocation.
func (a Account) LoadTarget() (portfolio.Target, error) {
	allocs := make([]portfolio.Allocation, 0, len(a.Allocations))
	for i, al := range a.Allocations {
		inst, err := market.NewInstrument(al.Symbol, al.Exchange)
		if err != nil {
			return portfolio.Target{}, fmt.Errorf("allocations[%d]: %w", i, err)
		}
		allocs = append(allocs, portfolio.Allocation{Instrument: inst, Weight: al.Percent})
	}
	return portfolio.NewTargetFromPercents(allocs)
}

func (a Account) Cap() (portfolio.Cap, error) {
	return portfolio.ParseCap(a.PortfolioCap)
}

// Label is the account's name, or its ID when unnamed.
func (a Account) Label() string {
	if a.Name != "" {
		return a.Name
	}
	return a.AccountID
}

// PaperConfig seeds the in-memory paper broker.
type PaperConfig struct {
	Cash      decimal.Decimal `json:"cash" yaml:"cash"`
	Positions []PaperPosition `json:"positions" yaml:"positions"`
	Quotes    []PaperQuote    `json:"quotes,omitempty" yaml:"quotes,omitempty"`
}

type PaperPosition struct {
	Symbol   string          `json:"symbol" yaml:"symbol"`
	Exchange string          `json:"exchange,omitempty" yaml:"exchange,omitempty"`
	Quantity decimal.Decimal `json:"quantity" yaml:"quantity"`
	Price    decimal.Decimal `json:"price,omitempty" yaml:"price,omitempty"`
}

type PaperQuote struct {
	Symbol   string          `json:"symbol" yaml:"symbol"`
	Exchange string          `json:"exchange,omitempty" yaml:"exchange,omitempty"`
	Bid      decimal.Decimal `json:"bid" yaml:"bid"`
	Ask      decimal.Decimal `json:"ask" yaml:"ask"`
	Last     decimal.Decimal `json:"last" yaml:"last"`
}

// Engine builds a paper broker for one account. A position's price is used
// as its last price unless a quote for the same symbol is given.
func (p *PaperConfig) Engine(acct Account) (*sim.Engine, error) {
	e := sim.NewEngine(broker.Account{ID: acct.AccountID, Name: acct.Name, Currency: "USD", Cash: p.Cash})

	for i, pos := range p.Positions {
		inst, err := market.NewInstrument(pos.Symbol, pos.Exchange)
		if err != nil {
			return nil, fmt.Errorf("paper.positions[%d]: %w", i, err)
		}
		if err := e.SetHolding(inst, pos.Quantity); err != nil {
			return nil, fmt.Errorf("paper.positions[%d]: %w", i, err)
		}
		if pos.Price.IsPositive() {
			e.SetQuote(market.Quote{Instrument: inst, Last: pos.Price})
		}
	}
	for i, q := range p.Quotes {
		inst, err := market.NewInstrument(q.Symbol, q.Exchange)
		if err != nil {
			return nil, fmt.Errorf("paper.quotes[%d]: %w", i, err)
		}
		e.SetQuote(market.Quote{Instrument: inst, Bid: q.Bid, Ask: q.Ask, Last: q.Last})
	}
	return e, nil
}

// LoadFromFile loads configuration from a file (YAML, falling back to JSON)
// over the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	cfg.Accounts = nil

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration as YAML or JSON based on the extension.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Paper == nil && c.ClientPortalURL == "" {
		return fmt.Errorf("client_portal_url is required")
	}
	if err := c.Rebalance.Engine().Validate(); err != nil {
		return fmt.Errorf("rebalance: %w", err)
	}

	switch c.Journal.Type {
	case "", "none":
	case "csv":
		if c.Journal.RunsFile == "" || c.Journal.OrdersFile == "" {
			return fmt.Errorf("journal runs_file and orders_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'csv', 'sqlite' or 'none'")
	}

	if len(c.Accounts) == 0 {
		return fmt.Errorf("at least one account is required")
	}
	seen := make(map[string]bool, len(c.Accounts))
	for i, a := range c.Accounts {
		if a.AccountID == "" {
			return fmt.Errorf("accounts[%d].account_id is required", i)
		}
		if seen[a.AccountID] {
			return fmt.Errorf("accounts[%d]: duplicate account_id %s", i, a.AccountID)
		}
		seen[a.AccountID] = true
		if _, err := a.LoadTarget(); err != nil {
			return fmt.Errorf("accounts[%d].allocations: %w", i, err)
		}
		if _, err := a.Cap(); err != nil {
			return fmt.Errorf("accounts[%d].portfolio_cap: %w", i, err)
		}
	}

	if c.Paper != nil {
		if c.Paper.Cash.IsNegative() {
			return fmt.Errorf("paper.cash must not be negative")
		}
		for i, p := range c.Paper.Positions {
			if p.Symbol == "" {
				return fmt.Errorf("paper.positions[%d].symbol is required", i)
			}
			if p.Quantity.IsNegative() {
				return fmt.Errorf("paper.positions[%d].quantity must not be negative", i)
			}
		}
	}
	return nil
}

// Account finds an account by ID or name.
func (c *Config) Account(key string) (Account, bool) {
	for _, a := range c.Accounts {
		if a.AccountID == key || a.Name == key {
			return a, true
		}
	}
	return Account{}, false
}

// BaseURL is the gateway URL to use, optionally through the HAR logging
// proxy.
func (c *Config) BaseURL(harLog bool) (string, error) {
	if !harLog {
		return c.ClientPortalURL, nil
	}
	if c.HARLoggingProxyURL == "" {
		return "", fmt.Errorf("har_logging_proxy_url is not configured")
	}
	return c.HARLoggingProxyURL, nil
}

// Environment variables read by ApplyEnv.
const (
	EnvClientPortalURL = "REBALANCER_CLIENT_PORTAL_URL"
	EnvLogLevel        = "REBALANCER_LOG_LEVEL"
	EnvLogPretty       = "REBALANCER_LOG_PRETTY"
	EnvInsecureTLS     = "REBALANCER_INSECURE_TLS"
	EnvJournalDB       = "REBALANCER_JOURNAL_DB"
)

// ApplyEnv loads the given .env files (default ".env") if present, then
// overrides fields from the environment. Variables already set in the
// process win over the files.
func (c *Config) ApplyEnv(files ...string) {
	_ = godotenv.Load(files...)

	if v := os.Getenv(EnvClientPortalURL); v != "" {
		c.ClientPortalURL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v, err := strconv.ParseBool(os.Getenv(EnvLogPretty)); err == nil {
		c.Log.Pretty = v
	}
	if v, err := strconv.ParseBool(os.Getenv(EnvInsecureTLS)); err == nil {
		c.InsecureTLS = v
	}
	if v := os.Getenv(EnvJournalDB); v != "" {
		c.Journal.Type = "sqlite"
		c.Journal.DBPath = v
	}
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	eng := rebalance.DefaultConfig()
	return &Config{
		ClientPortalURL: "https://localhost:5000/v1/api",
		InsecureTLS:     true,
		Log: LogConfig{
			Level: "info",
		},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "./rebalancer.db",
		},
		Rebalance: RebalanceConfig{
			DriftTolerance:     eng.DriftTolerance,
			MinOrderValue:      eng.MinOrderValue,
			AllowFractional:    eng.AllowFractional,
			FractionalDecimals: eng.FractionalDecimals,
			CashBuffer:         eng.CashBuffer,
		},
		Accounts: []Account{
			{
				Name:         "Main",
				AccountID:    "U1234567",
				PortfolioCap: "",
				Allocations: []Allocation{
					{Symbol: "VTI", Exchange: "ARCA", Percent: decimal.NewFromInt(60)},
					{Symbol: "BND", Exchange: "NASDAQ", Percent: decimal.NewFromInt(35)},
				},
			},
		},
	}
}
