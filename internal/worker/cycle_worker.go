package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ddramp/exchange/internal/observability"
	"github.com/ddramp/exchange/internal/service"
	"go.uber.org/zap"
)

// DefaultInterval is the pause between two cycles.
const DefaultInterval = 4 * time.Second

type Promoter interface {
	PromoteAll(ctx context.Context) (service.PromotionReport, error)
}

type Matcher interface {
	MakeMatches(ctx context.Context) (int, error)
}

type SettlementReleaser interface {
	ReleaseSettled(ctx context.Context) (service.ReleaseReport, error)
}

// Cycle holds everything one engine cycle needs.
type Cycle struct {
	Promotion Promoter
	Matching  Matcher
	Release   SettlementReleaser
	Interval  time.Duration
}

// CycleResult records the outcome of each stage of one cycle.
type CycleResult struct {
	Promotion    service.PromotionReport
	Matched      int
	Release      service.ReleaseReport
	PromotionErr error
	MatchingErr  error
	ReleaseErr   error
}

// CycleWorker runs promotion, matching and release in order, then waits for
// the configured interval. Stage failures are logged and never stop the
// loop.
type CycleWorker struct {
	cycle    Cycle
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	doneOnce sync.Once
	started  atomic.Bool
}

func NewCycleWorker(cycle Cycle) *CycleWorker {
	if cycle.Interval <= 0 {
		cycle.Interval = DefaultInterval
	}
	return &CycleWorker{
		cycle:  cycle,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start blocks, running cycles until ctx is canceled or Stop is called.
// The wait is armed after every cycle whatever its outcome. Stop cancels
// the context handed to the stage in flight and Start returns once that
// stage has.
func (w *CycleWorker) Start(ctx context.Context) {
	w.started.Store(true)
	defer w.doneOnce.Do(func() { close(w.done) })

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-w.stopCh:
			zap.L().Info("engine worker stop signal received")
			cancel()
		case <-ctx.Done():
		}
	}()

	zap.L().Info("engine worker starting", zap.Duration("interval", w.cycle.Interval))
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("engine worker stopped")
			return
		case <-timer.C:
			w.RunOnce(ctx)
			timer.Reset(w.cycle.Interval)
		}
	}
}

// Stop signals the loop and waits for the cycle in flight to return.
func (w *CycleWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
	if w.started.Load() {
		<-w.done
	}
}

// Run starts the worker in a goroutine and returns a stop function that
// blocks until the worker has exited.
func (w *CycleWorker) Run(ctx context.Context) func() {
	w.started.Store(true)
	go w.Start(ctx)
	return w.Stop
}

// RunOnce executes a single cycle.
func (w *CycleWorker) RunOnce(ctx context.Context) CycleResult {
	start := time.Now()
	var res CycleResult

	if w.cycle.Promotion != nil {
		res.PromotionErr = runStage(ctx, "promotion", func(ctx context.Context) error {
			var err error
			res.Promotion, err = w.cycle.Promotion.PromoteAll(ctx)
			return err
		})
		if n := len(res.Promotion.Promoted); n > 0 {
			zap.L().Info("promoted preoffers", zap.Int("count", n))
		}
	}

	if w.cycle.Matching != nil {
		res.MatchingErr = runStage(ctx, "matching", func(ctx context.Context) error {
			var err error
			res.Matched, err = w.cycle.Matching.MakeMatches(ctx)
			return err
		})
		if res.Matched > 0 {
			zap.L().Info("paired up offers", zap.Int("deals", res.Matched))
		}
	}

	if w.cycle.Release != nil {
		res.ReleaseErr = runStage(ctx, "release", func(ctx context.Context) error {
			var err error
			res.Release, err = w.cycle.Release.ReleaseSettled(ctx)
			return err
		})
		if n := len(res.Release.Released); n > 0 {
			zap.L().Info("finalized deals", zap.Int("count", n))
		}
		if n := len(res.Release.Failed); n > 0 {
			zap.L().Error("settled deals awaiting release after failures", zap.Int("count", n))
		}
	}

	observability.ObserveCycle(time.Since(start))
	return res
}

// runStage isolates one stage: errors and panics are logged and counted.
func runStage(ctx context.Context, stage string, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage %s panicked: %v", stage, r)
		}
		if err != nil {
			observability.IncrementStageRun(stage, "failed")
			zap.L().Error("engine stage failed", zap.String("stage", stage), zap.Error(err))
			return
		}
		observability.IncrementStageRun(stage, "success")
	}()
	return fn(ctx)
}
