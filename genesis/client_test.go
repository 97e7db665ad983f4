package genesis

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rustyeddy/genesis/market"
	"github.com/rustyeddy/genesis/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...func(*Options)) *Client {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	o := Options{
		BaseURL: srv.URL,
		Token:   "test-token",
		Timeout: 2 * time.Second,
		Retry: &RetryPolicy{
			MaxRetries:           2,
			InitialBackoff:       time.Millisecond,
			MaxBackoff:           5 * time.Millisecond,
			BackoffFactor:        2,
			RetryableStatusCodes: map[int]bool{503: true},
		},
	}
	for _, fn := range opts {
		fn(&o)
	}
	return NewClient(o)
}

func TestSignals_DecodesAndSorts(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/get_signals", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		var req SignalsRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "acct-1", req.AccountID)
		assert.Equal(t, int64(41), req.LastSignalID)
		assert.Equal(t, []string{"EURUSD", "XAUUSD"}, req.Symbols)

		io.WriteString(w, `{"status":"success","signals":[
			{"id":44,"symbol":"XAUUSD","action":"sell_now","entry_price":2300.5,"confidence":0.7},
			{"id":42,"symbol":"EURUSD","action":"ANTICIPATED_LONG","entry_price":1.09,"stop_loss":1.085,"take_profit":1.1,"lot_size":0.2},
			{"id":43,"symbol":"","action":"BUY_NOW"},
			{"id":45,"symbol":"EURUSD","action":"HOLD"},
			{"id":"x46","symbol":"EURUSD","action":"BUY_NOW"}
		]}`)
	})

	batch, err := c.Signals(context.Background(), SignalsRequest{
		AccountID:    "acct-1",
		LastSignalID: 41,
		Symbols:      []string{"EURUSD", "XAUUSD"},
	})
	require.NoError(t, err)

	require.Len(t, batch.Signals, 2)
	assert.Equal(t, int64(42), batch.Signals[0].ID)
	assert.Equal(t, AnticipatedLong, batch.Signals[0].Action)
	assert.Equal(t, 0.2, batch.Signals[0].LotSize)
	assert.Equal(t, int64(44), batch.Signals[1].ID)
	assert.Equal(t, SellNow, batch.Signals[1].Action)
	assert.Zero(t, batch.Signals[1].StopLoss, "absent stop means no stop")

	require.Len(t, batch.Rejected, 3)
	assert.Equal(t, int64(43), batch.Rejected[0].ID)
	assert.Contains(t, batch.Rejected[0].Reason, "symbol")
	assert.Equal(t, int64(45), batch.Rejected[1].ID)
	assert.Contains(t, batch.Rejected[1].Reason, "action")
	assert.Contains(t, batch.Rejected[2].Reason, "malformed")
}

func TestSignals_APIError(t *testing.T) {
	t.Parallel()

	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		io.WriteString(w, `{"status":"error","message":"unknown account"}`)
	})

	_, err := c.Signals(context.Background(), SignalsRequest{AccountID: "nope"})
	require.Error(t, err)
	assert.True(t, IsAPIError(err))
	assert.Contains(t, err.Error(), "unknown account")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "logical errors are not retried")
}

func TestRetryOnRetryableStatus(t *testing.T) {
	t.Parallel()

	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, `{"status":"success"}`)
	})

	err := c.AccountStatus(context.Background(), AccountStatus{AccountID: "acct-1", Balance: 1000})
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRetryGivesUp(t *testing.T) {
	t.Parallel()

	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	err := c.UpdateTrades(context.Background(), TradeUpdate{AccountID: "acct-1"})
	require.Error(t, err)
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestTradeReportIsNeverRetried(t *testing.T) {
	t.Parallel()

	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	err := c.TradeReport(context.Background(), TradeReport{SignalID: 7, Status: StatusError})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFailedCallsCountedByEndpoint(t *testing.T) {
	var fail atomic.Bool
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			_, _ = io.WriteString(w, `{"status":"error","message":"unknown account"}`)
			return
		}
		_, _ = io.WriteString(w, `{"status":"success"}`)
	})
	counter := metrics.BackendErrors.WithLabelValues("heartbeat")
	before := testutil.ToFloat64(counter)

	_, err := c.Heartbeat(context.Background(), Heartbeat{AccountID: "acct-1"})
	require.NoError(t, err)
	assert.Equal(t, before, testutil.ToFloat64(counter))

	fail.Store(true)
	_, err = c.Heartbeat(context.Background(), Heartbeat{AccountID: "acct-1"})
	require.Error(t, err)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestUpdateTradesPayload(t *testing.T) {
	t.Parallel()

	opened := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	closed := opened.Add(2 * time.Hour)
	exit := 1.1050

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "acct-1", body["account_id"])

		trades := body["trades"].(map[string]any)
		rec := trades["555"].(map[string]any)
		assert.Equal(t, "EURUSD", rec["symbol"])
		assert.Equal(t, "BUY", rec["side"])
		assert.Equal(t, "CLOSED", rec["status"])
		assert.Equal(t, 1.105, rec["exit_price"])
		assert.Equal(t, "2024-05-01T08:00:00Z", rec["opened_at"])

		open := trades["9"].(map[string]any)
		_, hasExit := open["exit_price"]
		assert.False(t, hasExit)
		_, hasClosed := open["closed_at"]
		assert.False(t, hasClosed)
	})

	err := c.UpdateTrades(context.Background(), TradeUpdate{
		AccountID: "acct-1",
		Trades: map[string]TradeRecord{
			"555": {Symbol: "EURUSD", Side: market.Buy, Volume: 0.1, OpenPrice: 1.1, ExitPrice: &exit,
				Profit: 50, Status: TradeClosed, OpenedAt: &opened, ClosedAt: &closed},
			"9": {Symbol: "EURUSD", Side: market.Sell, Volume: 0.2, OpenPrice: 1.2, Status: TradeOpen, OpenedAt: &opened},
		},
	})
	require.NoError(t, err)
}

func TestQueues(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "acct-1", r.URL.Query().Get("account_id"))
		switch r.URL.Path {
		case "/poll_close_queue":
			io.WriteString(w, `{"tickets":[11,12]}`)
		case "/poll_modify_queue":
			io.WriteString(w, `{"mods":[{"ticket":11,"sl":1.08,"tp":0},{"ticket":0,"sl":1}]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	tickets, err := c.CloseQueue(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, []uint64{11, 12}, tickets)

	mods, dropped, err := c.ModifyQueue(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, 1, dropped)
	require.Len(t, mods, 1)
	assert.Equal(t, ModifyRequest{Ticket: 11, StopLoss: 1.08}, mods[0])
}

func TestQueryAuthAndCustomPaths(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/hb", r.URL.Path)
		assert.Equal(t, "test-token", r.URL.Query().Get("api_key"))
		assert.Empty(t, r.Header.Get("Authorization"))
		io.WriteString(w, `{"status":"success","server_time":"2024-05-01 10:00:00"}`)
	}, func(o *Options) {
		o.QueryAuth = "api_key"
		o.Paths = Paths{Heartbeat: "/api/v2/hb"}
	})

	ack, err := c.Heartbeat(context.Background(), Heartbeat{AccountID: "acct-1", TerminalID: "t-1", ConnectionTime: time.Now()})
	require.NoError(t, err)
	require.NotNil(t, ack.ServerTime)
	assert.Equal(t, 10, ack.ServerTime.Hour())
}

func TestEmptyBodyIsSuccess(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	assert.NoError(t, c.TradeReport(context.Background(), TradeReport{SignalID: 1, Status: StatusSuccess}))
}

func TestActionSide(t *testing.T) {
	t.Parallel()

	assert.Equal(t, market.Buy, BuyNow.Side())
	assert.Equal(t, market.Buy, AnticipatedLong.Side())
	assert.Equal(t, market.Sell, SellNow.Side())
	assert.Equal(t, market.Sell, AnticipatedShort.Side())
	assert.True(t, BuyNow.Immediate())
	assert.False(t, AnticipatedShort.Immediate())
}
