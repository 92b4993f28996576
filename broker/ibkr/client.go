// Package ibkr talks to the Interactive Brokers Client Portal Web API
// gateway. A Client serves one account: it fetches the account snapshot,
// quotes instruments and submits limit orders.
package ibkr

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/rebalancer/market"
)

const (
	// DefaultURL is a gateway running locally with its default port.
	DefaultURL = "https://localhost:5000/v1/api"

	defaultRetries    = 10
	defaultRetryDelay = 500 * time.Millisecond
	maxReplies        = 5
)

// APIError is a non-2xx answer from the gateway.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ibkr %s %s: http %d: %s", e.Method, e.Path, e.Status, e.Body)
}

type Options struct {
	BaseURL   string
	AccountID string
	// InsecureTLS skips certificate checks; the gateway ships with a
	// self-signed certificate.
	InsecureTLS bool
	Timeout     time.Duration
	// Retries bounds how often an empty or incomplete market data snapshot
	// is asked for again.
	Retries    int
	RetryDelay time.Duration
	HTTP       *http.Client
	Logger     zerolog.Logger
}

type Client struct {
	baseURL    string
	accountID  string
	httpClient *http.Client
	retries    int
	retryDelay time.Duration
	log        zerolog.Logger

	mu     sync.Mutex
	conids map[string]int64
	quotes map[int64]market.Quote
}

func NewClient(opts Options) (*Client, error) {
	if opts.AccountID == "" {
		return nil, errors.New("ibkr: account id is required")
	}
	base := opts.BaseURL
	if base == "" {
		base = DefaultURL
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("ibkr: base url: %w", err)
	}

	hc := opts.HTTP
	if hc == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		tr := http.DefaultTransport.(*http.Transport).Clone()
		if opts.InsecureTLS {
			tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		hc = &http.Client{Timeout: timeout, Transport: tr}
	}

	retries := opts.Retries
	if retries <= 0 {
		retries = defaultRetries
	}
	delay := opts.RetryDelay
	if delay == 0 {
		delay = defaultRetryDelay
	}

	return &Client{
		baseURL:    strings.TrimRight(base, "/"),
		accountID:  opts.AccountID,
		httpClient: hc,
		retries:    retries,
		retryDelay: delay,
		log:        opts.Logger.With().Str("component", "ibkr").Str("account", opts.AccountID).Logger(),
		conids:     make(map[string]int64),
		quotes:     make(map[int64]market.Quote),
	}, nil
}

func (c *Client) AccountID() string { return c.accountID }

// ResetQuotes drops cached quotes so the next run sees fresh prices.
func (c *Client) ResetQuotes() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quotes = make(map[int64]market.Quote)
}

// do sends a request and decodes a JSON answer into out when out is
// non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.log.Debug().Str("method", method).Str("path", path).Msg("request")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ibkr %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return &APIError{Method: method, Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// sleep waits d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
