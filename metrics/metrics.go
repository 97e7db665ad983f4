package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SignalsReceived = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "genesis_signals_received_total", Help: "Signals returned by the backend"},
	)
	SignalsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "genesis_signals_dispatched_total", Help: "Signals handed to the dispatcher"},
		[]string{"symbol", "action"},
	)
	SignalsSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "genesis_signals_skipped_total", Help: "Signals at or below the cursor"},
	)
	SignalsRejected = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "genesis_signals_rejected_total", Help: "Signals that failed decode validation"},
	)
	Reports = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "genesis_trade_reports_total", Help: "Trade reports sent, by status"},
		[]string{"status"},
	)
	TradeUpdates = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "genesis_trade_updates_total", Help: "Non-empty trade snapshots posted"},
	)
	TradeRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "genesis_trade_records_total", Help: "Trade records posted, by status"},
		[]string{"status"},
	)
	Commands = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "genesis_commands_total", Help: "Remote commands applied, by kind and result"},
		[]string{"kind", "result"},
	)
	BackendErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "genesis_backend_errors_total", Help: "Failed backend calls after retries, by endpoint"},
		[]string{"endpoint"},
	)
	TaskFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "genesis_task_failures_total", Help: "Scheduled task runs that returned an error, by task"},
		[]string{"task"},
	)
	TaskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "genesis_task_duration_seconds",
			Help:    "Scheduled task run time",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"task"},
	)
	Cursor = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "genesis_signal_cursor", Help: "Highest processed signal id"},
	)
	LedgerSize = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "genesis_ledger_size", Help: "Entries resident in the reported-trade ledger"},
	)
)

func init() {
	prometheus.MustRegister(
		SignalsReceived, SignalsDispatched, SignalsSkipped, SignalsRejected,
		Reports, TradeUpdates, TradeRecords, Commands, BackendErrors, TaskFailures,
		TaskDuration, Cursor, LedgerSize,
	)
}

// ObserveTask records how long a task run took.
func ObserveTask(task string, start time.Time) {
	TaskDuration.WithLabelValues(task).Observe(time.Since(start).Seconds())
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
