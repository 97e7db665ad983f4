package reconcile

import "strconv"

const DefaultLedgerCapacity = 1000

func OpenKey(ticket uint64) string       { return "open_" + strconv.FormatUint(ticket, 10) }
func ClosedKey(positionID uint64) string { return "closed_" + strconv.FormatUint(positionID, 10) }

// Ledger is a bounded set of reported-trade keys. When full, adding a key
// evicts the oldest one.
type Ledger struct {
	capacity int
	order    []string
	set      map[string]struct{}
}

// NewLedger builds a ledger seeded with keys, oldest first. Seeds beyond
// capacity keep only the newest.
func NewLedger(capacity int, keys ...string) *Ledger {
	if capacity <= 0 {
		capacity = DefaultLedgerCapacity
	}
	l := &Ledger{
		capacity: capacity,
		set:      make(map[string]struct{}, capacity),
	}
	for _, k := range keys {
		l.add(k)
	}
	return l
}

func (l *Ledger) Has(key string) bool {
	if l == nil {
		return false
	}
	_, ok := l.set[key]
	return ok
}

func (l *Ledger) Len() int {
	if l == nil {
		return 0
	}
	return len(l.order)
}

func (l *Ledger) Capacity() int { return l.capacity }

// Keys returns the resident keys oldest first.
func (l *Ledger) Keys() []string {
	if l == nil {
		return nil
	}
	return append([]string(nil), l.order...)
}

// With returns a copy of the ledger with keys added.
func (l *Ledger) With(keys ...string) *Ledger {
	c := NewLedger(l.capacity, l.order...)
	for _, k := range keys {
		c.add(k)
	}
	return c
}

func (l *Ledger) add(key string) {
	if _, ok := l.set[key]; ok {
		return
	}
	if len(l.order) >= l.capacity {
		oldest := l.order[0]
		l.order = l.order[1:]
		delete(l.set, oldest)
	}
	l.order = append(l.order, key)
	l.set[key] = struct{}{}
}
