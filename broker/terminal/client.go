// Package terminal is a broker.Gateway backed by the HTTP/JSON bridge that
// runs next to the trading terminal.
package terminal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/genesis/broker"
	"github.com/rustyeddy/genesis/market"
)

// Client talks to the terminal bridge.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ broker.Gateway = (*Client)(nil)

// NewClient creates a terminal client. A zero timeout means 10 seconds.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// tradeResult is the reply to every trading request.
type tradeResult struct {
	Retcode     int     `json:"retcode"`
	Description string  `json:"description"`
	Ticket      uint64  `json:"ticket"`
	Price       float64 `json:"price"`
	Volume      float64 `json:"volume"`
}

func (r tradeResult) err() error {
	switch r.Retcode {
	case 0, broker.RetcodeDone, broker.RetcodePlaced:
		return nil
	}
	return &broker.Rejection{Code: r.Retcode, Description: r.Description}
}

type tickResponse struct {
	Symbol string    `json:"symbol"`
	Bid    float64   `json:"bid"`
	Ask    float64   `json:"ask"`
	Time   time.Time `json:"time"`
}

func (c *Client) Symbol(ctx context.Context, symbol string) (market.SymbolInfo, error) {
	var info market.SymbolInfo
	if err := c.get(ctx, "/symbols/"+url.PathEscape(symbol), nil, &info); err != nil {
		return market.SymbolInfo{}, err
	}
	if info.Name == "" {
		info.Name = symbol
	}
	if info.TradeMode == "" {
		info.TradeMode = market.TradeFull
	}
	return info, nil
}

func (c *Client) Tick(ctx context.Context, symbol string) (market.Tick, error) {
	var resp tickResponse
	if err := c.get(ctx, "/tick/"+url.PathEscape(symbol), nil, &resp); err != nil {
		return market.Tick{}, err
	}
	if resp.Symbol == "" {
		resp.Symbol = symbol
	}
	return market.Tick{Symbol: resp.Symbol, Bid: resp.Bid, Ask: resp.Ask, Time: resp.Time}, nil
}

func (c *Client) Account(ctx context.Context) (broker.Account, error) {
	var acct broker.Account
	err := c.get(ctx, "/account", nil, &acct)
	return acct, err
}

func (c *Client) Positions(ctx context.Context) ([]broker.Position, error) {
	var resp struct {
		Positions []broker.Position `json:"positions"`
	}
	if err := c.get(ctx, "/positions", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Positions, nil
}

func (c *Client) Deals(ctx context.Context, from, to time.Time) ([]broker.Deal, error) {
	params := url.Values{}
	params.Set("from", from.UTC().Format(time.RFC3339))
	params.Set("to", to.UTC().Format(time.RFC3339))

	var resp struct {
		Deals []broker.Deal `json:"deals"`
	}
	if err := c.get(ctx, "/deals", params, &resp); err != nil {
		return nil, err
	}
	return resp.Deals, nil
}

func (c *Client) PlaceOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderResult, error) {
	var res tradeResult
	if err := c.post(ctx, "/orders", req, &res); err != nil {
		return broker.OrderResult{}, err
	}
	if err := res.err(); err != nil {
		return broker.OrderResult{}, err
	}
	return broker.OrderResult{Ticket: res.Ticket, Price: res.Price, Volume: res.Volume}, nil
}

func (c *Client) ClosePosition(ctx context.Context, ticket uint64) error {
	var res tradeResult
	if err := c.post(ctx, "/positions/"+strconv.FormatUint(ticket, 10)+"/close", nil, &res); err != nil {
		return err
	}
	return res.err()
}

// ModifyPosition sends new levels; broker.NoChange is passed through and the
// bridge keeps the current level.
func (c *Client) ModifyPosition(ctx context.Context, ticket uint64, sl, tp float64) error {
	body := struct {
		SL float64 `json:"sl"`
		TP float64 `json:"tp"`
	}{sl, tp}

	var res tradeResult
	if err := c.post(ctx, "/positions/"+strconv.FormatUint(ticket, 10)+"/modify", body, &res); err != nil {
		return err
	}
	return res.err()
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, params, nil, out)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, in, out)
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, in, out any) error {
	apiURL := c.baseURL + path
	if len(params) > 0 {
		apiURL += "?" + params.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("terminal %s: encode: %w", path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, body)
	if err != nil {
		return fmt.Errorf("terminal %s: create request: %w", path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("terminal %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return fmt.Errorf("terminal %s: http %d: %s", path, resp.StatusCode, strings.TrimSpace(string(b)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("terminal %s: decode response: %w", path, err)
	}
	return nil
}
