package mqtt

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/hydro-controller/internal/logic"
	"github.com/sweeney/hydro-controller/internal/nutrient"
)

// Queue errors.
var (
	ErrQueueFull   = errors.New("mqtt: publish queue full")
	ErrQueueClosed = errors.New("mqtt: publish queue closed")
)

// DefaultQueueSize is used when NewQueue is given a non-positive size.
const DefaultQueueSize = 64

// DefaultDrainTimeout bounds how long Close waits for queued messages.
const DefaultDrainTimeout = 5 * time.Second

type job struct {
	kind string
	send func() error
}

// Queue is a Publisher that hands messages to a background goroutine, so a
// slow broker never blocks the caller. When the queue is full the message is
// dropped and ErrQueueFull is returned.
type Queue struct {
	inner        Publisher
	log          zerolog.Logger
	drainTimeout time.Duration

	mu     sync.Mutex
	closed bool
	jobs   chan job
	done   chan struct{}
}

// NewQueue starts a queue of the given capacity in front of inner.
func NewQueue(inner Publisher, size int, logger zerolog.Logger) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	q := &Queue{
		inner:        inner,
		log:          logger.With().Str("component", "mqtt-queue").Logger(),
		drainTimeout: DefaultDrainTimeout,
		jobs:         make(chan job, size),
		done:         make(chan struct{}),
	}
	go q.worker()
	return q
}

func (q *Queue) worker() {
	defer close(q.done)
	for j := range q.jobs {
		if err := j.send(); err != nil {
			q.log.Warn().Err(err).Str("kind", j.kind).Msg("publish error")
		}
	}
}

func (q *Queue) enqueue(kind string, send func() error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.jobs <- job{kind: kind, send: send}:
		return nil
	default:
		q.log.Warn().Str("kind", kind).Int("capacity", cap(q.jobs)).Msg("publish queue full, dropping")
		return ErrQueueFull
	}
}

// Publish queues a cycle event.
func (q *Queue) Publish(event logic.Event) error {
	return q.enqueue("event", func() error { return q.inner.Publish(event) })
}

// PublishAlert queues a dosing alert.
func (q *Queue) PublishAlert(alert nutrient.Alert) error {
	return q.enqueue("alert", func() error { return q.inner.PublishAlert(alert) })
}

// PublishSystem queues a system event.
func (q *Queue) PublishSystem(event SystemEvent) error {
	return q.enqueue("system", func() error { return q.inner.PublishSystem(event) })
}

// PublishResult queues a command result.
func (q *Queue) PublishResult(result CommandResult) error {
	return q.enqueue("result", func() error { return q.inner.PublishResult(result) })
}

// Pending returns the number of queued messages not yet handed to the broker.
func (q *Queue) Pending() int {
	return len(q.jobs)
}

// Close stops accepting messages, waits up to the drain timeout for the queued
// ones to be sent, then closes the inner publisher.
func (q *Queue) Close() error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	select {
	case <-q.done:
	case <-time.After(q.drainTimeout):
		q.log.Warn().Int("pending", len(q.jobs)).Msg("publish queue not drained before close")
	}
	return q.inner.Close()
}
