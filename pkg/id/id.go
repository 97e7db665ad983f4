package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu   sync.Mutex
	mono io.Reader
)

func init() {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	// monotonic so ids minted within one millisecond still sort
	mono = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// NewAt returns a time-sortable ULID whose timestamp part is t.
func NewAt(t time.Time) string {
	mu.Lock()
	defer mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(t.UTC()), mono)
	if err != nil {
		panic(err)
	}
	return id.String()
}

// Terminal returns the identifier a bridge process started at t announces
// in heartbeats, e.g. "mt5-01HV5Z...".
func Terminal(prefix string, t time.Time) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return NewAt(t)
	}
	return prefix + "-" + NewAt(t)
}
