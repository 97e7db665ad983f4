package signal

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/genesis/genesis"
	"github.com/rustyeddy/genesis/internal/logging"
	"github.com/rustyeddy/genesis/state"
)

type scriptedSource struct {
	batches []genesis.SignalBatch
	err     error
	reqs    []genesis.SignalsRequest
}

func (s *scriptedSource) Signals(_ context.Context, req genesis.SignalsRequest) (genesis.SignalBatch, error) {
	s.reqs = append(s.reqs, req)
	if s.err != nil {
		return genesis.SignalBatch{}, s.err
	}
	if len(s.batches) == 0 {
		return genesis.SignalBatch{}, nil
	}
	b := s.batches[0]
	s.batches = s.batches[1:]
	return b, nil
}

type recordingHandler struct {
	dispatched []int64
	rejected   []int64
	cursorSeen []int64
	poller     *Poller
}

func (h *recordingHandler) Dispatch(_ context.Context, s genesis.Signal) genesis.TradeReport {
	h.dispatched = append(h.dispatched, s.ID)
	if h.poller != nil {
		h.cursorSeen = append(h.cursorSeen, h.poller.Cursor())
	}
	return genesis.TradeReport{SignalID: s.ID, Status: genesis.StatusSuccess}
}

func (h *recordingHandler) Reject(_ context.Context, r genesis.RejectedSignal) genesis.TradeReport {
	h.rejected = append(h.rejected, r.ID)
	return genesis.TradeReport{SignalID: r.ID, Status: genesis.StatusError}
}

func sig(id int64) genesis.Signal {
	return genesis.Signal{ID: id, Symbol: "EURUSD", Action: genesis.BuyNow}
}

func TestPollDispatchesInOrderAndAdvances(t *testing.T) {
	t.Parallel()

	src := &scriptedSource{batches: []genesis.SignalBatch{{
		Signals:  []genesis.Signal{sig(3), sig(1)},
		Rejected: []genesis.RejectedSignal{{ID: 2, Reason: "invalid action"}},
	}}}
	h := &recordingHandler{}
	p := NewPoller(Config{AccountID: "acct-1", Symbols: []string{"EURUSD"}}, src, h, nil, logging.Nop())
	h.poller = p

	n, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []int64{1, 3}, h.dispatched)
	assert.Equal(t, []int64{2}, h.rejected)
	assert.Equal(t, []int64{1, 3}, h.cursorSeen, "cursor advances before dispatch")
	assert.Equal(t, int64(3), p.Cursor())

	require.Len(t, src.reqs, 1)
	assert.Equal(t, int64(0), src.reqs[0].LastSignalID)
	assert.Equal(t, []string{"EURUSD"}, src.reqs[0].Symbols)
}

func TestPollSkipsDuplicates(t *testing.T) {
	t.Parallel()

	src := &scriptedSource{batches: []genesis.SignalBatch{
		{Signals: []genesis.Signal{sig(5), sig(6)}},
		{Signals: []genesis.Signal{sig(4), sig(6), sig(7)}},
	}}
	h := &recordingHandler{}
	p := NewPoller(Config{AccountID: "acct-1"}, src, h, nil, logging.Nop())

	_, err := p.Poll(context.Background())
	require.NoError(t, err)
	n, err := p.Poll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, n)
	assert.Equal(t, []int64{5, 6, 7}, h.dispatched)
	assert.Equal(t, int64(6), src.reqs[1].LastSignalID)
}

func TestPollDuplicateWithinBatch(t *testing.T) {
	t.Parallel()

	src := &scriptedSource{batches: []genesis.SignalBatch{{Signals: []genesis.Signal{sig(9), sig(9)}}}}
	h := &recordingHandler{}
	p := NewPoller(Config{}, src, h, nil, logging.Nop())

	n, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []int64{9}, h.dispatched)
}

func TestPollFetchErrorKeepsCursor(t *testing.T) {
	t.Parallel()

	src := &scriptedSource{err: errors.New("connection refused")}
	h := &recordingHandler{}
	store := state.NewMemory()
	require.NoError(t, store.SaveCursor(context.Background(), "acct-1", 10))

	p := NewPoller(Config{AccountID: "acct-1"}, src, h, store, logging.Nop())
	require.NoError(t, p.Load(context.Background()))

	_, err := p.Poll(context.Background())
	require.Error(t, err)
	assert.Equal(t, int64(10), p.Cursor())
	assert.Empty(t, h.dispatched)
}

func TestPollPersistsCursor(t *testing.T) {
	t.Parallel()

	store := state.NewMemory()
	src := &scriptedSource{batches: []genesis.SignalBatch{{Signals: []genesis.Signal{sig(11), sig(12)}}}}
	p := NewPoller(Config{AccountID: "acct-1"}, src, &recordingHandler{}, store, logging.Nop())

	_, err := p.Poll(context.Background())
	require.NoError(t, err)

	got, err := store.LoadCursor(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, int64(12), got)
}

func TestCursorMonotonic(t *testing.T) {
	t.Parallel()

	var c Cursor
	for _, id := range []int64{3, 1, 7, 7, 2, 9, 0, -4} {
		before := c.ID()
		c.Advance(id)
		assert.GreaterOrEqual(t, c.ID(), before)
	}
	assert.Equal(t, int64(9), c.ID())
}

type cancellingHandler struct {
	recordingHandler
	cancelAt int64
	cancel   context.CancelFunc
	ctxErrs  []error
}

func (h *cancellingHandler) Dispatch(ctx context.Context, s genesis.Signal) genesis.TradeReport {
	if s.ID == h.cancelAt {
		h.cancel()
	}
	h.ctxErrs = append(h.ctxErrs, ctx.Err())
	return h.recordingHandler.Dispatch(ctx, s)
}

func TestPollDeadlineDefersRestOfBatch(t *testing.T) {
	t.Parallel()

	store := state.NewMemory()
	src := &scriptedSource{batches: []genesis.SignalBatch{
		{Signals: []genesis.Signal{sig(1), sig(2), sig(3), sig(4)}},
		{Signals: []genesis.Signal{sig(3), sig(4)}},
	}}
	ctx, cancel := context.WithCancel(context.Background())
	h := &cancellingHandler{cancelAt: 2, cancel: cancel}
	p := NewPoller(Config{AccountID: "acct-1"}, src, h, store, logging.Nop())

	n, err := p.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int64{1, 2}, h.dispatched)
	assert.Equal(t, []error{nil, nil}, h.ctxErrs, "a claimed signal runs to completion")
	assert.Equal(t, int64(2), p.Cursor())

	saved, err := store.LoadCursor(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), saved, "cursor is saved despite the expired poll context")

	n, err = p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, int64(2), src.reqs[1].LastSignalID)
	assert.Equal(t, []int64{1, 2, 3, 4}, h.dispatched)
}
