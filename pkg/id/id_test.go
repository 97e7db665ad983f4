package id

import (
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAtIsSortable(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	prev := NewAt(at)
	for i := 0; i < 100; i++ {
		next := NewAt(at)
		assert.Less(t, prev, next, "same millisecond still sorts")
		prev = next
	}
	assert.Less(t, prev, NewAt(at.Add(time.Millisecond)))
}

func TestNewAtTimestamp(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	u, err := ulid.ParseStrict(NewAt(at))
	require.NoError(t, err)
	assert.True(t, ulid.Time(u.Time()).Equal(at))
}

func TestTerminal(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.True(t, strings.HasPrefix(Terminal("mt5", at), "mt5-"))
	assert.Len(t, Terminal("", at), 26)
}
