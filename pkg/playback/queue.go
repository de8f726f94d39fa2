package playback

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// MaxConsecutiveFailures is how many chunks may fail back to back
// before the queue stops attempting playback for the session.
const MaxConsecutiveFailures = 5

// ErrHalted is returned by Enqueue once playback has been halted after
// repeated failures. Chunks are still cleaned up, just never played.
var ErrHalted = errors.New("playback: halted after repeated failures")

// Queue schedules stored audio chunks for playback in arrival order.
//
// A single drain goroutine owns playback: at most one chunk plays at a
// time, the next starts only when the previous one has finished or
// failed, and every stored chunk is deleted exactly once no matter how
// its playback ends.
type Queue struct {
	store  Store
	player Player
	logger *slog.Logger

	// onActive observes transitions between playing and idle.
	onActive func(active bool)

	mu         sync.Mutex
	pending    []string
	active     bool
	failures   int
	halted     bool
	playCancel context.CancelFunc

	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithQueueLogger sets the diagnostic logger.
func WithQueueLogger(logger *slog.Logger) QueueOption {
	return func(q *Queue) {
		q.logger = logger
	}
}

// WithOnActive registers a callback fired when playback starts from
// idle (true) and when the queue drains empty (false). It runs on the
// drain goroutine and must not block.
func WithOnActive(fn func(active bool)) QueueOption {
	return func(q *Queue) {
		q.onActive = fn
	}
}

// NewQueue creates a queue and starts its drain goroutine.
func NewQueue(store Store, player Player, opts ...QueueOption) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		store:  store,
		player: player,
		logger: slog.Default(),
		wake:   make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	go q.drain()
	return q
}

// Enqueue stores one chunk and schedules it after everything already
// queued. Empty chunks are ignored. Once the queue is halted, chunks
// are stored and immediately discarded so no scratch files leak.
func (q *Queue) Enqueue(pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}

	path, err := q.store.Put(pcm)
	if err != nil {
		return err
	}

	q.mu.Lock()
	if q.halted {
		q.mu.Unlock()
		q.deleteChunk(path)
		return ErrHalted
	}
	q.pending = append(q.pending, path)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// Pending reports how many chunks are waiting (not counting the one
// currently playing).
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Flush discards every queued chunk and cuts off the one currently
// playing. Each discarded chunk is deleted; one failed deletion never
// stops the rest from being cleaned up.
func (q *Queue) Flush() {
	q.mu.Lock()
	dropped := q.pending
	q.pending = nil
	cancel := q.playCancel
	q.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, path := range dropped {
		q.deleteChunk(path)
	}
}

// Close stops the drain goroutine and deletes anything still queued.
func (q *Queue) Close() {
	q.cancel()
	<-q.done

	q.mu.Lock()
	dropped := q.pending
	q.pending = nil
	q.mu.Unlock()
	for _, path := range dropped {
		q.deleteChunk(path)
	}
}

// drain is the single playback loop.
func (q *Queue) drain() {
	defer close(q.done)
	for {
		select {
		case <-q.ctx.Done():
			return
		case <-q.wake:
		}

		for {
			q.mu.Lock()
			if len(q.pending) == 0 {
				if q.active {
					q.active = false
					q.mu.Unlock()
					q.notifyActive(false)
				} else {
					q.mu.Unlock()
				}
				break
			}
			path := q.pending[0]
			q.pending = q.pending[1:]

			if q.halted {
				q.mu.Unlock()
				q.deleteChunk(path)
				continue
			}

			startNotify := !q.active
			q.active = true
			playCtx, cancelPlay := context.WithCancel(q.ctx)
			q.playCancel = cancelPlay
			q.mu.Unlock()

			if startNotify {
				q.notifyActive(true)
			}

			err := q.player.Play(playCtx, path)
			// Read before cancelPlay: afterwards the context is
			// always cancelled and real failures would be
			// misclassified as cut-offs.
			cancelled := playCtx.Err() != nil
			cancelPlay()

			q.mu.Lock()
			q.playCancel = nil
			q.mu.Unlock()

			q.deleteChunk(path)
			q.recordOutcome(err, cancelled)

			if q.ctx.Err() != nil {
				return
			}
		}
	}
}

// recordOutcome updates the consecutive-failure count. A chunk cut off
// by Flush or Close is neither a success nor a failure.
func (q *Queue) recordOutcome(err error, cancelled bool) {
	if cancelled {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if err == nil {
		q.failures = 0
		return
	}

	q.failures++
	q.logger.Warn("chunk playback failed",
		"error", err, "consecutive", q.failures)
	if q.failures >= MaxConsecutiveFailures && !q.halted {
		q.halted = true
		q.logger.Error("halting playback for this session",
			"consecutiveFailures", q.failures)
	}
}

func (q *Queue) deleteChunk(path string) {
	if err := q.store.Delete(path); err != nil {
		q.logger.Warn("chunk cleanup failed", "path", path, "error", err)
	}
}

func (q *Queue) notifyActive(active bool) {
	if q.onActive != nil {
		q.onActive(active)
	}
}
