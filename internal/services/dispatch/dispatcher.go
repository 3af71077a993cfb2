// Package dispatch runs deferred tasks (payout retries, webhook-triggered
// sweeps) off the request path, so webhook ingestion and process calls never
// block on downstream work.
package dispatch

import (
	"context"
	"log"
	"sync"
	"time"
)

type task func(ctx context.Context)

// Dispatcher is a bounded in-process task queue with a fixed worker pool.
// Tasks run with their own timeout; a panicking or failing task never takes
// the queue down.
type Dispatcher struct {
	queue       chan task
	taskTimeout time.Duration
	wg          sync.WaitGroup

	// mu serializes Enqueue against Stop so no send races the queue close.
	mu      sync.Mutex
	stopped bool
}

func NewDispatcher(workers, queueSize int, taskTimeout time.Duration) *Dispatcher {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	if taskTimeout <= 0 {
		taskTimeout = 30 * time.Second
	}

	d := &Dispatcher{
		queue:       make(chan task, queueSize),
		taskTimeout: taskTimeout,
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for t := range d.queue {
		d.run(t)
	}
}

func (d *Dispatcher) run(t task) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("dispatch: task panicked: %v", r)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), d.taskTimeout)
	defer cancel()
	t(ctx)
}

// Enqueue schedules fn to run as soon as a worker is free. Returns false if
// the queue is full or the dispatcher is stopped; callers treat that as a
// deferred-work loss to log, not an error to propagate.
func (d *Dispatcher) Enqueue(fn func(ctx context.Context)) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return false
	}
	select {
	case d.queue <- fn:
		return true
	default:
		log.Printf("dispatch: queue full, dropping task")
		return false
	}
}

// EnqueueAfter schedules fn to run after delay.
func (d *Dispatcher) EnqueueAfter(delay time.Duration, fn func(ctx context.Context)) {
	time.AfterFunc(delay, func() {
		d.Enqueue(fn)
	})
}

// Stop drains queued tasks and waits for in-flight ones. Safe to call more
// than once; late Enqueue calls, including timers fired by EnqueueAfter,
// return false instead of hitting a closed channel.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.queue)
	}
	d.mu.Unlock()
	d.wg.Wait()
}
