package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid" // Used for generating unique event IDs
	"github.com/pbaity/folio/internal/logger"
	"github.com/pbaity/folio/pkg/models"
)

const defaultQueueCapacity = 64

var (
	// ErrStopped is returned once the queue no longer accepts or hands out events.
	ErrStopped = errors.New("event queue stopped")
	// ErrFull is returned when an event is dropped because the buffer is full.
	// A full queue already guarantees a rebuild, so callers can ignore it.
	ErrFull = errors.New("event queue full")
)

// EventQueue is the in-memory FIFO of change events waiting for a rebuild.
type EventQueue struct {
	queue    chan models.BuildEvent
	capacity int
	mu       sync.Mutex // Serializes Stop
	stopChan chan struct{}
}

// NewEventQueue creates and initializes a new event queue.
func NewEventQueue(capacity int) *EventQueue {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	return &EventQueue{
		queue:    make(chan models.BuildEvent, capacity),
		capacity: capacity,
		stopChan: make(chan struct{}),
	}
}

// Enqueue adds an event without blocking. It assigns an ID and timestamp when
// missing, and drops the event with ErrFull when the buffer is full.
func (eq *EventQueue) Enqueue(event models.BuildEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case <-eq.stopChan:
		return fmt.Errorf("cannot enqueue event %s: %w", event.ID, ErrStopped)
	default:
	}

	select {
	case eq.queue <- event:
		logger.L().Debug("Event enqueued", "event_id", event.ID, "path", event.Path, "kind", event.Kind)
		return nil
	default:
		logger.L().Debug("Event queue full, dropping event", "event_id", event.ID, "path", event.Path)
		return ErrFull
	}
}

// Dequeue retrieves the next event from the queue.
// It blocks until an event is available or the context is cancelled.
func (eq *EventQueue) Dequeue(ctx context.Context) (models.BuildEvent, error) {
	select {
	case event := <-eq.queue:
		logger.L().Debug("Event dequeued", "event_id", event.ID)
		return event, nil
	case <-ctx.Done():
		return models.BuildEvent{}, ctx.Err()
	case <-eq.stopChan:
		// Items queued before the stop are still handed out.
		select {
		case event := <-eq.queue:
			logger.L().Debug("Event dequeued after stop signal", "event_id", event.ID)
			return event, nil
		default:
			return models.BuildEvent{}, ErrStopped
		}
	}
}

// Drain removes and returns every queued event without blocking.
func (eq *EventQueue) Drain() []models.BuildEvent {
	var events []models.BuildEvent
	for {
		select {
		case event := <-eq.queue:
			events = append(events, event)
		default:
			return events
		}
	}
}

// Len returns the number of queued events.
func (eq *EventQueue) Len() int {
	return len(eq.queue)
}

// Start logs the queue's settings. Events are never persisted across runs.
func (eq *EventQueue) Start() error {
	logger.L().Info("Event queue started", "capacity", eq.capacity)
	return nil
}

// Stop rejects further events. Events already queued can still be dequeued.
func (eq *EventQueue) Stop() error {
	eq.mu.Lock()
	defer eq.mu.Unlock()

	select {
	case <-eq.stopChan:
		return nil
	default:
	}

	logger.L().Info("Stopping event queue...", "pending", len(eq.queue))
	close(eq.stopChan)
	logger.L().Info("Event queue stopped successfully.")
	return nil
}
