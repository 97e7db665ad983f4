package cmd

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/rustyeddy/genesis/genesis"
)

type demoSignal struct {
	id  int64
	raw json.RawMessage
}

// demoBackend is an in-process stand-in for the GENESIS backend. It serves a
// fixed list of signals and reacts to trade reports by queueing remote
// commands, so a demo run exercises every task.
type demoBackend struct {
	mu      sync.Mutex
	signals []demoSignal
	reports []genesis.TradeReport
	trades  map[string]genesis.TradeRecord
	updates int
	beats   int
	status  genesis.AccountStatus
	closeQ  []uint64
	modQ    []genesis.ModifyRequest

	// modify and close map a signal id to the command issued once its
	// order is placed.
	modify map[int64]genesis.ModifyRequest
	close  map[int64]bool
}

func newDemoBackend() *demoBackend {
	b := &demoBackend{
		trades: make(map[string]genesis.TradeRecord),
		modify: map[int64]genesis.ModifyRequest{1: {StopLoss: 1.0825}},
		close:  map[int64]bool{3: true},
	}
	for _, s := range []genesis.Signal{
		{ID: 1, Symbol: "EURUSD", Action: genesis.BuyNow, StopLoss: 1.0800, TakeProfit: 1.0900, Confidence: 0.8},
		{ID: 2, Symbol: "XAUUSD", Action: genesis.AnticipatedShort, EntryPrice: 2331.00, StopLoss: 2340, TakeProfit: 2310, LotSize: 0.05},
		{ID: 3, Symbol: "GBPUSD", Action: genesis.SellNow, StopLoss: 1.2700, LotSize: 0.1},
		{ID: 5, Symbol: "USDJPY", Action: genesis.BuyNow, TakeProfit: 151.25, LotSize: 0.1},
	} {
		raw, _ := json.Marshal(s)
		b.signals = append(b.signals, demoSignal{id: s.ID, raw: raw})
	}
	// not an executable action; the bridge reports it as rejected
	b.signals = append(b.signals, demoSignal{id: 4, raw: json.RawMessage(`{"id":4,"symbol":"EURUSD","action":"HOLD"}`)})
	sort.Slice(b.signals, func(i, j int) bool { return b.signals[i].id < b.signals[j].id })
	return b
}

func (b *demoBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var resp any = map[string]string{"status": genesis.StatusSuccess}
	switch r.URL.Path {
	case "/get_signals":
		var req genesis.SignalsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var out []json.RawMessage
		for _, s := range b.signals {
			if s.id > req.LastSignalID {
				out = append(out, s.raw)
			}
		}
		resp = map[string]any{"status": genesis.StatusSuccess, "signals": out}

	case "/trade_report":
		var rep genesis.TradeReport
		if err := json.NewDecoder(r.Body).Decode(&rep); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		b.reports = append(b.reports, rep)
		if rep.Status == genesis.StatusSuccess && rep.Ticket > 0 {
			if m, ok := b.modify[rep.SignalID]; ok {
				m.Ticket = rep.Ticket
				b.modQ = append(b.modQ, m)
			}
			if b.close[rep.SignalID] {
				b.closeQ = append(b.closeQ, rep.Ticket)
			}
		}

	case "/update_trades":
		var upd genesis.TradeUpdate
		if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		b.updates++
		for k, v := range upd.Trades {
			b.trades[k] = v
		}

	case "/heartbeat":
		b.beats++
		resp = map[string]string{"status": genesis.StatusSuccess, "server_time": time.Now().UTC().Format(time.RFC3339)}

	case "/account_status":
		if err := json.NewDecoder(r.Body).Decode(&b.status); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

	case "/poll_close_queue":
		resp = map[string]any{"tickets": b.closeQ}
		b.closeQ = nil

	case "/poll_modify_queue":
		resp = map[string]any{"mods": b.modQ}
		b.modQ = nil

	default:
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

type demoSummary struct {
	Reports []genesis.TradeReport
	Trades  map[string]genesis.TradeRecord
	Updates int
	Beats   int
	Status  genesis.AccountStatus
}

func (b *demoBackend) summary() demoSummary {
	b.mu.Lock()
	defer b.mu.Unlock()
	trades := make(map[string]genesis.TradeRecord, len(b.trades))
	for k, v := range b.trades {
		trades[k] = v
	}
	return demoSummary{
		Reports: append([]genesis.TradeReport(nil), b.reports...),
		Trades:  trades,
		Updates: b.updates,
		Beats:   b.beats,
		Status:  b.status,
	}
}
