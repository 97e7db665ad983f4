package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	fh, err := os.Open(path)
	require.NoError(t, err)
	defer fh.Close()
	rows, err := csv.NewReader(fh).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVJournalHeaders(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tradesPath := filepath.Join(dir, "trades.csv")
	reportsPath := filepath.Join(dir, "reports.csv")

	j, err := NewCSV(tradesPath, reportsPath)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	assert.Equal(t, tradeHeader, readCSV(t, tradesPath)[0])
	assert.Equal(t, reportHeader, readCSV(t, reportsPath)[0])
}

func TestCSVJournalRecords(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tradesPath := filepath.Join(dir, "trades.csv")
	reportsPath := filepath.Join(dir, "reports.csv")

	j, err := NewCSV(tradesPath, reportsPath)
	require.NoError(t, err)

	closeT := time.Date(2024, 1, 2, 4, 5, 6, 0, time.UTC)
	require.NoError(t, j.RecordTrade(TradeRecord{
		PositionID: "555", Symbol: "EURUSD", Side: "BUY", Volume: 0.1,
		EntryPrice: 1.1, ExitPrice: 1.105, CloseTime: closeT, Profit: 50,
	}))
	require.NoError(t, j.RecordReport(ReportRecord{
		SignalID: 42, Symbol: "EURUSD", Action: "BUY_NOW", Ticket: 9,
		Volume: 0.1, Price: 1.1, Status: "success", Time: closeT,
	}))
	require.NoError(t, j.Close())

	trades := readCSV(t, tradesPath)
	require.Len(t, trades, 2)
	assert.Equal(t, []string{"555", "EURUSD", "BUY", "0.100000", "1.100000", "1.105000", "", "2024-01-02T04:05:06Z", "50.000000"}, trades[1])

	reports := readCSV(t, reportsPath)
	require.Len(t, reports, 2)
	assert.Equal(t, "42", reports[1][0])
	assert.Equal(t, "9", reports[1][3])
	assert.Equal(t, "success", reports[1][8])
}
