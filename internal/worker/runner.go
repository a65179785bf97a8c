package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pbaity/folio/internal/logger"
	"github.com/pbaity/folio/internal/queue"
	"github.com/pbaity/folio/pkg/models"
)

// Processor handles one coalesced batch of change events as a single rebuild.
// This decouples the runner from the build logic.
type Processor interface {
	Process(ctx context.Context, batch []models.BuildEvent) error
}

// State is the runner's position in its idle/rebuilding cycle.
type State int32

const (
	StateIdle State = iota
	StateRebuilding
)

func (s State) String() string {
	if s == StateRebuilding {
		return "rebuilding"
	}
	return "idle"
}

// Runner is the single worker that turns queued change events into rebuilds.
// It waits for a first event, lets the debounce window pass, then drains the
// queue and hands everything to the processor at once. Events arriving during
// a rebuild stay queued and produce exactly one follow-up rebuild.
type Runner struct {
	debounce   time.Duration
	eventQueue *queue.EventQueue
	processor  Processor
	state      atomic.Int32
	wg         sync.WaitGroup
	cancelCtx  context.CancelFunc // To signal the worker to stop
}

// NewRunner creates a rebuild runner.
func NewRunner(cfg models.WatchConfig, eq *queue.EventQueue, proc Processor) *Runner {
	return &Runner{
		debounce:   cfg.Debounce.Duration,
		eventQueue: eq,
		processor:  proc,
	}
}

// Start launches the worker goroutine.
func (r *Runner) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancelCtx = cancel

	logger.L().Info("Starting rebuild runner", "debounce", r.debounce)
	r.wg.Add(1)
	go r.run(ctx)
}

// Stop cancels any in-flight rebuild and waits for the worker to exit.
func (r *Runner) Stop() {
	logger.L().Info("Stopping rebuild runner...")
	if r.cancelCtx != nil {
		r.cancelCtx()
	}
	r.wg.Wait()
	logger.L().Info("Rebuild runner stopped")
}

// State reports whether a rebuild is in progress.
func (r *Runner) State() State {
	return State(r.state.Load())
}

func (r *Runner) run(ctx context.Context) {
	defer r.wg.Done()

	for {
		first, err := r.eventQueue.Dequeue(ctx)
		if err != nil {
			switch {
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				logger.L().Info("Rebuild runner stopping: context done", "error", err)
			case errors.Is(err, queue.ErrStopped):
				logger.L().Info("Rebuild runner stopping: event queue stopped")
			default:
				logger.L().Error("Rebuild runner failed to dequeue event", "error", err)
			}
			return
		}

		if !r.settle(ctx) {
			logger.L().Info("Rebuild runner stopping during debounce window")
			return
		}
		batch := append([]models.BuildEvent{first}, r.eventQueue.Drain()...)

		r.state.Store(int32(StateRebuilding))
		l := logger.L().With("event_id", first.ID, "events", len(batch))
		l.Debug("Rebuild triggered", "path", first.Path, "kind", first.Kind)
		if err := r.processor.Process(ctx, batch); err != nil {
			l.Error("Rebuild failed", "error", err)
		}
		r.state.Store(int32(StateIdle))

		if ctx.Err() != nil {
			logger.L().Info("Rebuild runner stopping after rebuild due to context cancellation")
			return
		}
	}
}

// settle waits out the debounce window. It returns false if ctx ends first.
func (r *Runner) settle(ctx context.Context) bool {
	if r.debounce <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(r.debounce)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
