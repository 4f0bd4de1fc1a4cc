package pipeline

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/sentrycam/sentrycam/internal/metrics"
)

const drainGrace = 30 * time.Second

// Queue is the bounded ingest queue plus its worker pool. Producers block on
// Enqueue when the queue is full; TryEnqueue exists for the internal
// stability re-queue, which must never block a worker.
type Queue struct {
	items chan Item
	proc  *Processor

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopped  chan struct{}
}

func NewQueue(capacity, workers int, proc *Processor) *Queue {
	if capacity <= 0 {
		capacity = 64
	}
	if workers <= 0 {
		workers = 1
	}

	q := &Queue{
		items:   make(chan Item, capacity),
		proc:    proc,
		stopped: make(chan struct{}),
	}

	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	return q
}

// Enqueue blocks until there is room, ctx expires, or the queue stops.
func (q *Queue) Enqueue(ctx context.Context, item Item) error {
	select {
	case <-q.stopped:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	case q.items <- item:
		metrics.SetQueueDepth(len(q.items))
		return nil
	}
}

// TryEnqueue never blocks; reports whether the item was accepted.
func (q *Queue) TryEnqueue(item Item) bool {
	select {
	case <-q.stopped:
		return false
	default:
	}

	select {
	case q.items <- item:
		metrics.SetQueueDepth(len(q.items))
		return true
	default:
		return false
	}
}

// Depth is the number of items waiting.
func (q *Queue) Depth() int {
	return len(q.items)
}

// Stop refuses new work and drains in-flight items, waiting up to the grace
// period before abandoning the workers.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		close(q.stopped)
	})

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(drainGrace):
		log.Printf("[Pipeline] Warning: drain grace expired with %d items queued", len(q.items))
	}
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()

	for {
		select {
		case <-q.stopped:
			q.drain()
			log.Printf("[Pipeline] worker %d drained", id)
			return
		case item := <-q.items:
			q.handle(item)
		}
	}
}

// drain finishes whatever is still queued at shutdown without blocking for
// new work.
func (q *Queue) drain() {
	for {
		select {
		case item := <-q.items:
			q.handle(item)
		default:
			return
		}
	}
}

func (q *Queue) handle(item Item) {
	metrics.SetQueueDepth(len(q.items))

	_, requeue := q.proc.Process(context.Background(), item)
	if requeue && !item.requeued {
		item.requeued = true
		if !q.TryEnqueue(item) {
			log.Printf("[Pipeline] Warning: re-queue of %s dropped", item.Path)
		}
	}
}
