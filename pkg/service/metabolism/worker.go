package metabolism

import (
	"context"
	"sync"
	"time"

	"github.com/secmon-lab/esr/pkg/domain/types"
	"github.com/secmon-lab/esr/pkg/utils/async"
	"github.com/secmon-lab/esr/pkg/utils/logging"
)

// Default trigger thresholds
const (
	DefaultInterval        = 5 * time.Minute
	DefaultMemoryThreshold = 50
	DefaultShiftThreshold  = 3
)

// Stats accumulates across all successful reflection passes
type Stats struct {
	TotalReflections    uint64    `json:"total_reflections"`
	MemoriesPromoted    uint64    `json:"memories_promoted"`
	MemoriesForgotten   uint64    `json:"memories_forgotten"`
	AssociationsCreated uint64    `json:"associations_created"`
	PatternsIdentified  uint64    `json:"patterns_identified"`
	LastReflection      time.Time `json:"last_reflection,omitempty"`
}

// Status is the externally visible state of the metabolism process
type Status struct {
	Phase           types.ReflectionPhase `json:"phase"`
	Running         bool                  `json:"running"`
	Interval        time.Duration         `json:"interval"`
	PendingThoughts int                   `json:"pending_thoughts"`
	ContextShifts   int                   `json:"context_shifts"`
	Stats           Stats                 `json:"stats"`
}

// Worker runs the background reflection loop. A pass fires when the
// interval elapses, when enough thoughts accumulate, when the context
// shifts repeatedly, or on explicit request; whichever comes first.
type Worker struct {
	memory          Memory
	interval        time.Duration
	memoryThreshold int
	shiftThreshold  int

	stopCh chan struct{}
	doneCh chan struct{}
	kickCh chan struct{}

	mu             sync.Mutex
	running        bool
	phase          types.ReflectionPhase
	lastReflection time.Time
	stats          Stats
}

type Option func(*Worker)

// WithInterval sets the periodic reflection interval
func WithInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithMemoryThreshold sets the pending thought count that forces a pass
func WithMemoryThreshold(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.memoryThreshold = n
		}
	}
}

func New(memory Memory, opts ...Option) *Worker {
	w := &Worker{
		memory:          memory,
		interval:        DefaultInterval,
		memoryThreshold: DefaultMemoryThreshold,
		shiftThreshold:  DefaultShiftThreshold,
		stopCh:          make(chan struct{}),
		doneCh:          make(chan struct{}),
		kickCh:          make(chan struct{}, 1),
		phase:           types.PhaseIdle,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Start begins the background reflection loop
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	w.running = true
	w.lastReflection = time.Now()
	w.mu.Unlock()

	logging.From(ctx).Info("metabolism worker starting", "interval", w.interval)
	async.Dispatch(ctx, func(ctx context.Context) error {
		w.run(ctx)
		return nil
	})
}

// Stop signals the worker to stop and waits for completion
func (w *Worker) Stop() {
	logging.Default().Info("metabolism worker stopping")
	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	logging.Default().Info("metabolism worker stopped")
}

// TriggerReflection requests an explicit pass from the background loop.
// Non-blocking: a request while one is already queued is coalesced.
func (w *Worker) TriggerReflection() {
	select {
	case w.kickCh <- struct{}{}:
	default:
	}
}

// Status reports the current phase, trigger progress, and cumulative stats
func (w *Worker) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()

	return Status{
		Phase:           w.phase,
		Running:         w.running,
		Interval:        w.interval,
		PendingThoughts: w.memory.PendingCount(),
		ContextShifts:   w.memory.ContextShifts(),
		Stats:           w.stats,
	}
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.pollEvery())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if trigger, fired := w.dueTrigger(); fired {
				w.reflectOnce(ctx, trigger)
			}

		case <-w.kickCh:
			w.reflectOnce(ctx, TriggerExplicit)

		case <-w.stopCh:
			logging.From(ctx).Info("metabolism worker received stop signal")
			return

		case <-ctx.Done():
			logging.From(ctx).Info("metabolism worker context cancelled")
			return
		}
	}
}

// pollEvery derives the trigger check cadence from the interval. Checks
// run much more often than the interval so memory pressure and context
// shift triggers fire promptly.
func (w *Worker) pollEvery() time.Duration {
	poll := w.interval / 6
	if poll < time.Second {
		poll = time.Second
	}
	if poll > 30*time.Second {
		poll = 30 * time.Second
	}
	return poll
}

// dueTrigger checks the automatic trigger conditions in priority order
func (w *Worker) dueTrigger() (Trigger, bool) {
	if w.memory.PendingCount() >= w.memoryThreshold {
		return TriggerMemoryPressure, true
	}
	if w.memory.ContextShifts() >= w.shiftThreshold {
		return TriggerContextShift, true
	}

	w.mu.Lock()
	elapsed := time.Since(w.lastReflection)
	w.mu.Unlock()
	if elapsed >= w.interval {
		return TriggerInterval, true
	}

	return "", false
}

func (w *Worker) reflectOnce(ctx context.Context, trigger Trigger) {
	w.mu.Lock()
	w.lastReflection = time.Now()
	w.mu.Unlock()

	// Errors are already logged inside Reflect; the loop keeps going
	_, _ = w.Reflect(ctx, trigger)
}

func (w *Worker) setPhase(phase types.ReflectionPhase) {
	w.mu.Lock()
	w.phase = phase
	w.mu.Unlock()
}

// commit folds a successful pass into the cumulative statistics
func (w *Worker) commit(report *Report) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stats.TotalReflections++
	w.stats.MemoriesPromoted += uint64(report.Promoted)
	w.stats.MemoriesForgotten += uint64(report.Forgotten)
	w.stats.AssociationsCreated += uint64(report.AssociationsCreated)
	w.stats.PatternsIdentified += uint64(report.PatternsIdentified)
	w.stats.LastReflection = time.Now()
}
