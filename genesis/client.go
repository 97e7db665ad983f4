package genesis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rustyeddy/genesis/metrics"
)

// Paths are the backend endpoints, relative to the base URL.
type Paths struct {
	Signals       string `json:"signals" yaml:"signals"`
	Heartbeat     string `json:"heartbeat" yaml:"heartbeat"`
	AccountStatus string `json:"account_status" yaml:"account_status"`
	UpdateTrades  string `json:"update_trades" yaml:"update_trades"`
	TradeReport   string `json:"trade_report" yaml:"trade_report"`
	CloseQueue    string `json:"close_queue" yaml:"close_queue"`
	ModifyQueue   string `json:"modify_queue" yaml:"modify_queue"`
}

func DefaultPaths() Paths {
	return Paths{
		Signals:       "/get_signals",
		Heartbeat:     "/heartbeat",
		AccountStatus: "/account_status",
		UpdateTrades:  "/update_trades",
		TradeReport:   "/trade_report",
		CloseQueue:    "/poll_close_queue",
		ModifyQueue:   "/poll_modify_queue",
	}
}

// withDefaults fills empty paths from DefaultPaths.
func (p Paths) withDefaults() Paths {
	d := DefaultPaths()
	if p.Signals == "" {
		p.Signals = d.Signals
	}
	if p.Heartbeat == "" {
		p.Heartbeat = d.Heartbeat
	}
	if p.AccountStatus == "" {
		p.AccountStatus = d.AccountStatus
	}
	if p.UpdateTrades == "" {
		p.UpdateTrades = d.UpdateTrades
	}
	if p.TradeReport == "" {
		p.TradeReport = d.TradeReport
	}
	if p.CloseQueue == "" {
		p.CloseQueue = d.CloseQueue
	}
	if p.ModifyQueue == "" {
		p.ModifyQueue = d.ModifyQueue
	}
	return p
}

type Options struct {
	BaseURL string
	Token   string
	// QueryAuth, when set, sends the token as this query parameter instead
	// of an Authorization header.
	QueryAuth string
	Timeout   time.Duration
	Paths     Paths
	Retry     *RetryPolicy
	HTTP      *http.Client
}

// Client talks to the GENESIS backend. Every call is synchronous and bounded
// by the client timeout.
type Client struct {
	baseURL    string
	token      string
	queryAuth  string
	paths      Paths
	retry      *RetryPolicy
	httpClient *http.Client
}

func NewClient(opts Options) *Client {
	httpClient := opts.HTTP
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	retry := opts.Retry
	if retry == nil {
		retry = DefaultRetryPolicy()
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		token:      opts.Token,
		queryAuth:  opts.QueryAuth,
		paths:      opts.Paths.withDefaults(),
		retry:      retry,
		httpClient: httpClient,
	}
}

// Signals fetches signals newer than lastID.
func (c *Client) Signals(ctx context.Context, req SignalsRequest) (_ SignalBatch, err error) {
	defer countFailure("signals", &err)
	var resp signalsResponse
	if err := c.do(ctx, http.MethodPost, c.paths.Signals, nil, req, &resp, c.retry); err != nil {
		return SignalBatch{}, err
	}
	if err := checkStatus(c.paths.Signals, resp.envelope); err != nil {
		return SignalBatch{}, err
	}
	return decodeSignals(resp.Signals), nil
}

func (c *Client) Heartbeat(ctx context.Context, hb Heartbeat) (_ HeartbeatAck, err error) {
	defer countFailure("heartbeat", &err)
	var resp struct {
		envelope
		ServerTime string `json:"server_time"`
	}
	if err := c.do(ctx, http.MethodPost, c.paths.Heartbeat, nil, hb, &resp, c.retry); err != nil {
		return HeartbeatAck{}, err
	}
	if err := checkStatus(c.paths.Heartbeat, resp.envelope); err != nil {
		return HeartbeatAck{}, err
	}

	var ack HeartbeatAck
	if t, err := parseServerTime(resp.ServerTime); err == nil {
		ack.ServerTime = &t
	}
	return ack, nil
}

func (c *Client) AccountStatus(ctx context.Context, st AccountStatus) (err error) {
	defer countFailure("account_status", &err)
	var resp envelope
	if err := c.do(ctx, http.MethodPost, c.paths.AccountStatus, nil, st, &resp, c.retry); err != nil {
		return err
	}
	return checkStatus(c.paths.AccountStatus, resp)
}

// UpdateTrades posts a trade snapshot. The backend upserts by key so the
// call is safe to retry.
func (c *Client) UpdateTrades(ctx context.Context, upd TradeUpdate) (err error) {
	defer countFailure("update_trades", &err)
	var resp envelope
	if err := c.do(ctx, http.MethodPost, c.paths.UpdateTrades, nil, upd, &resp, c.retry); err != nil {
		return err
	}
	return checkStatus(c.paths.UpdateTrades, resp)
}

// TradeReport is sent exactly once per call; it is never retried.
func (c *Client) TradeReport(ctx context.Context, rep TradeReport) (err error) {
	defer countFailure("trade_report", &err)
	var resp envelope
	if err := c.do(ctx, http.MethodPost, c.paths.TradeReport, nil, rep, &resp, NoRetry()); err != nil {
		return err
	}
	return checkStatus(c.paths.TradeReport, resp)
}

func (c *Client) CloseQueue(ctx context.Context, accountID string) (_ []uint64, err error) {
	defer countFailure("close_queue", &err)
	var resp closeResponse
	q := url.Values{"account_id": {accountID}}
	if err := c.do(ctx, http.MethodGet, c.paths.CloseQueue, q, nil, &resp, c.retry); err != nil {
		return nil, err
	}
	if err := checkStatus(c.paths.CloseQueue, resp.envelope); err != nil {
		return nil, err
	}
	return resp.Tickets, nil
}

// ModifyQueue returns pending modify requests. Requests without a ticket are
// dropped and counted.
func (c *Client) ModifyQueue(ctx context.Context, accountID string) (_ []ModifyRequest, _ int, err error) {
	defer countFailure("modify_queue", &err)
	var resp modifyResponse
	q := url.Values{"account_id": {accountID}}
	if err := c.do(ctx, http.MethodGet, c.paths.ModifyQueue, q, nil, &resp, c.retry); err != nil {
		return nil, 0, err
	}
	if err := checkStatus(c.paths.ModifyQueue, resp.envelope); err != nil {
		return nil, 0, err
	}
	mods, dropped := validMods(resp.Mods)
	return mods, dropped, nil
}

// countFailure counts a failed call against its endpoint once, after
// retries.
func countFailure(endpoint string, err *error) {
	if *err != nil {
		metrics.BackendErrors.WithLabelValues(endpoint).Inc()
	}
}

// checkStatus maps a response envelope onto an APIError. A missing status is
// treated as success.
func checkStatus(endpoint string, env envelope) error {
	status := strings.ToLower(strings.TrimSpace(env.Status))
	if status == StatusSuccess || status == "ok" || status == "" {
		return nil
	}
	return &APIError{Endpoint: endpoint, Status: env.Status, Message: env.Message}
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, in, out any, retry *RetryPolicy) error {
	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		body = b
	}

	for attempt := 1; ; attempt++ {
		err := c.once(ctx, method, path, q, body, out)
		if err == nil || !retry.ShouldRetry(err, attempt) {
			return err
		}
		if serr := sleep(ctx, retry.Backoff(attempt)); serr != nil {
			return err
		}
	}
}

func (c *Client) once(ctx context.Context, method, path string, q url.Values, body []byte, out any) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("genesis %s: %w", path, err)
	}

	query := u.Query()
	for k, vs := range q {
		for _, v := range vs {
			query.Add(k, v)
		}
	}
	if c.queryAuth != "" && c.token != "" {
		query.Set(c.queryAuth, c.token)
	}
	u.RawQuery = query.Encode()

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return fmt.Errorf("genesis %s: create request: %w", path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.queryAuth == "" && c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("genesis %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("genesis %s: read body: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{Endpoint: path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(truncate(data, 512)))}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("genesis %s: decode response: %w", path, err)
	}
	return nil
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}

func parseServerTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006.01.02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised server time %q", s)
}
