package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/genesis/metrics"
)

// Task is a periodic unit of work. Run is called once at start and then
// every Interval, bounded by Timeout. A task never overlaps itself: ticks
// that arrive while it is still running are dropped.
type Task struct {
	Name     string
	Interval time.Duration
	Timeout  time.Duration
	Run      func(ctx context.Context) error
}

type Scheduler struct {
	tasks []Task
	log   zerolog.Logger
}

func NewScheduler(log zerolog.Logger) *Scheduler {
	return &Scheduler{log: log}
}

// Add registers t. Tasks with a non-positive interval are skipped.
func (s *Scheduler) Add(t Task) {
	if t.Interval <= 0 {
		s.log.Info().Str("task", t.Name).Msg("task disabled")
		return
	}
	s.tasks = append(s.tasks, t)
}

func (s *Scheduler) Tasks() []Task {
	return append([]Task(nil), s.tasks...)
}

// Run starts one goroutine per task and blocks until ctx is done and every
// task has returned.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, t := range s.tasks {
		wg.Add(1)
		go func(t Task) {
			defer wg.Done()
			s.loop(ctx, t)
		}(t)
	}
	wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, t Task) {
	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	s.runOnce(ctx, t)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, t)
		}
	}
}

// runOnce runs t with its timeout. Errors end the run for this tick only.
func (s *Scheduler) runOnce(ctx context.Context, t Task) {
	if ctx.Err() != nil {
		return
	}
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	start := time.Now()
	err := t.Run(ctx)
	metrics.ObserveTask(t.Name, start)
	if err != nil {
		metrics.TaskFailures.WithLabelValues(t.Name).Inc()
		s.log.Warn().Err(err).Str("task", t.Name).Dur("took", time.Since(start)).Msg("task failed")
	}
}
