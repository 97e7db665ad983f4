package terminal

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/genesis/broker"
	"github.com/rustyeddy/genesis/market"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "term-token", 2*time.Second)
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient("http://localhost:8228/", "", 0)
	assert.Equal(t, "http://localhost:8228", c.baseURL)
	assert.Equal(t, 10*time.Second, c.httpClient.Timeout)
}

func TestSymbolAndTick(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer term-token", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/symbols/EURUSD":
			io.WriteString(w, `{"digits":5,"volume_min":0.01,"volume_max":50,"volume_step":0.01,"tick_size":0.00001,"tick_value":1}`)
		case "/tick/EURUSD":
			io.WriteString(w, `{"bid":1.1,"ask":1.1002,"time":"2024-05-01T10:00:00Z"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	info, err := c.Symbol(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.Equal(t, "EURUSD", info.Name)
	assert.Equal(t, market.TradeFull, info.TradeMode)
	assert.Equal(t, 50.0, info.VolumeMax)

	tick, err := c.Tick(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.Equal(t, "EURUSD", tick.Symbol)
	assert.Equal(t, 1.1002, tick.Ask)
	assert.Equal(t, 10, tick.Time.Hour())
}

func TestTerminalSpellings(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/symbols/GBPUSD":
			io.WriteString(w, `{"digits":5,"trade_mode":"SYMBOL_TRADE_MODE_SHORTONLY"}`)
		case "/symbols/XAUUSD":
			io.WriteString(w, `{"digits":2,"trade_mode":"auction"}`)
		case "/positions":
			io.WriteString(w, `{"positions":[{"ticket":8,"symbol":"GBPUSD","side":"short","volume":0.2}]}`)
		}
	})

	info, err := c.Symbol(context.Background(), "GBPUSD")
	require.NoError(t, err)
	assert.Equal(t, market.TradeShortOnly, info.TradeMode)

	_, err = c.Symbol(context.Background(), "XAUUSD")
	assert.ErrorContains(t, err, "unknown trade mode")

	positions, err := c.Positions(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, market.Sell, positions[0].Side)
}

func TestPositionsAndDeals(t *testing.T) {
	t.Parallel()

	from := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(30 * 24 * time.Hour)

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/positions":
			io.WriteString(w, `{"positions":[{"ticket":7,"symbol":"EURUSD","side":"BUY","volume":0.1,"open_price":1.1,"profit":2.5}]}`)
		case "/deals":
			assert.Equal(t, "2024-04-01T00:00:00Z", r.URL.Query().Get("from"))
			assert.Equal(t, "2024-05-01T00:00:00Z", r.URL.Query().Get("to"))
			io.WriteString(w, `{"deals":[{"ticket":1,"position_id":555,"symbol":"EURUSD","type":"SELL","entry":"OUT","volume":0.1,"price":1.105,"profit":50,"time":"2024-04-02T00:00:00Z"}]}`)
		}
	})

	positions, err := c.Positions(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, market.Buy, positions[0].Side)

	deals, err := c.Deals(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, deals, 1)
	assert.Equal(t, broker.EntryOut, deals[0].Entry)
	assert.Equal(t, uint64(555), deals[0].PositionID)
}

func TestPlaceOrder(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var req broker.OrderRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		if req.Volume > 1 {
			io.WriteString(w, `{"retcode":10019,"description":"no money"}`)
			return
		}
		assert.Equal(t, broker.OrderBuyLimit, req.Type)
		io.WriteString(w, `{"retcode":10008,"ticket":99,"price":1.09,"volume":0.1}`)
	})

	res, err := c.PlaceOrder(context.Background(), broker.OrderRequest{Symbol: "EURUSD", Type: broker.OrderBuyLimit, Volume: 0.1, Price: 1.09})
	require.NoError(t, err)
	assert.Equal(t, broker.OrderResult{Ticket: 99, Price: 1.09, Volume: 0.1}, res)

	_, err = c.PlaceOrder(context.Background(), broker.OrderRequest{Symbol: "EURUSD", Type: broker.OrderBuy, Volume: 5})
	var rej *broker.Rejection
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, broker.RetcodeNoMoney, rej.Code)
}

func TestCloseAndModify(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/positions/7/close":
			io.WriteString(w, `{"retcode":10009}`)
		case "/positions/7/modify":
			var body map[string]float64
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, 1.08, body["sl"])
			assert.Equal(t, broker.NoChange, body["tp"])
			io.WriteString(w, `{"retcode":10009}`)
		default:
			io.WriteString(w, `{"retcode":10036,"description":"position not found"}`)
		}
	})

	require.NoError(t, c.ClosePosition(context.Background(), 7))
	require.NoError(t, c.ModifyPosition(context.Background(), 7, 1.08, broker.NoChange))
	assert.True(t, broker.IsRejection(c.ClosePosition(context.Background(), 8)))
}

func TestHTTPError(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "terminal offline", http.StatusBadGateway)
	})

	_, err := c.Account(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "terminal offline")
	assert.False(t, broker.IsRejection(err))
}
