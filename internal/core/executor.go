package core

// executor.go implements the bounded worker pool that runs import jobs.
//
// The pool keeps CoreSize long-lived workers. A submission starts a new core
// worker while fewer than CoreSize exist; otherwise it is queued. When the
// queue is full, extra workers are started up to MaxSize and retire after
// KeepAlive of idleness. When workers and queue are both saturated the
// configured RejectionPolicy decides what happens:
//
//   - reject: Submit fails with ErrExecutorSaturated
//   - block: Submit waits up to BlockTimeout for queue space, then fails
//   - caller-runs: the task runs on the submitting goroutine
//
// Shutdown stops intake and waits for queued and running tasks to finish.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/JonMunkholm/giftapi/internal/metrics"
)

// ErrExecutorSaturated is returned when no worker or queue slot is free.
// Clients should retry after a short delay.
var ErrExecutorSaturated = errors.New("too many uploads in progress, please try again later")

// ErrExecutorClosed is returned by Submit after Shutdown.
var ErrExecutorClosed = errors.New("import executor is shut down")

// RejectionPolicy selects the behavior of a saturated executor.
type RejectionPolicy string

const (
	RejectPolicy     RejectionPolicy = "reject"
	BlockPolicy      RejectionPolicy = "block"
	CallerRunsPolicy RejectionPolicy = "caller-runs"
)

// Default pool settings.
const (
	DefaultCorePoolSize  = 2
	DefaultQueueCapacity = 50
	DefaultKeepAlive     = 60 * time.Second
	DefaultBlockTimeout  = 30 * time.Second
)

// Task is a unit of work. worker names the goroutine running it.
type Task func(worker string)

// ExecutorOptions configures an Executor.
type ExecutorOptions struct {
	CoreSize      int
	MaxSize       int
	QueueCapacity int
	NamePrefix    string
	KeepAlive     time.Duration
	Policy        RejectionPolicy
	BlockTimeout  time.Duration
}

// Executor is a bounded pool of worker goroutines fed by a bounded queue.
type Executor struct {
	opts    ExecutorOptions
	queue   chan Task
	metrics *metrics.Metrics

	// submitMu is held for reading by Submit and for writing by Shutdown,
	// so the queue is never closed under a pending send.
	submitMu sync.RWMutex
	closed   bool

	mu      sync.Mutex
	workers int
	active  int
	nextID  int

	wg sync.WaitGroup
}

// NewExecutor creates an executor. Invalid sizes fall back to defaults.
func NewExecutor(opts ExecutorOptions, m *metrics.Metrics) *Executor {
	if opts.CoreSize <= 0 {
		opts.CoreSize = DefaultCorePoolSize
	}
	if opts.MaxSize < opts.CoreSize {
		opts.MaxSize = opts.CoreSize
	}
	if opts.QueueCapacity < 0 {
		opts.QueueCapacity = DefaultQueueCapacity
	}
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = DefaultKeepAlive
	}
	if opts.BlockTimeout <= 0 {
		opts.BlockTimeout = DefaultBlockTimeout
	}
	switch opts.Policy {
	case RejectPolicy, BlockPolicy, CallerRunsPolicy:
	default:
		opts.Policy = RejectPolicy
	}

	return &Executor{
		opts:    opts,
		queue:   make(chan Task, opts.QueueCapacity),
		metrics: m,
	}
}

// Submit hands task to the pool without waiting for it to run, except under
// the block and caller-runs policies when the pool is saturated.
func (e *Executor) Submit(task Task) error {
	e.submitMu.RLock()
	defer e.submitMu.RUnlock()

	if e.closed {
		return ErrExecutorClosed
	}

	if e.spawn(task, e.opts.CoreSize) {
		return nil
	}

	select {
	case e.queue <- task:
		e.publish()
		return nil
	default:
	}

	if e.spawn(task, e.opts.MaxSize) {
		return nil
	}

	return e.saturated(task)
}

// saturated applies the rejection policy.
func (e *Executor) saturated(task Task) error {
	switch e.opts.Policy {
	case CallerRunsPolicy:
		e.run(e.opts.NamePrefix+"caller", task)
		return nil

	case BlockPolicy:
		timer := time.NewTimer(e.opts.BlockTimeout)
		defer timer.Stop()

		select {
		case e.queue <- task:
			e.publish()
			return nil
		case <-timer.C:
		}
	}

	e.metrics.ExecutorRejected()
	return ErrExecutorSaturated
}

// spawn starts a worker with task as its first job if fewer than limit workers exist.
func (e *Executor) spawn(task Task, limit int) bool {
	e.mu.Lock()
	if e.workers >= limit {
		e.mu.Unlock()
		return false
	}
	e.workers++
	e.nextID++
	name := fmt.Sprintf("%s%d", e.opts.NamePrefix, e.nextID)
	e.wg.Add(1)
	e.mu.Unlock()

	go e.work(name, task)
	return true
}

// work runs first, then drains the queue until it is closed or the worker
// is surplus and has been idle for KeepAlive.
func (e *Executor) work(name string, first Task) {
	defer e.wg.Done()

	e.run(name, first)

	for {
		select {
		case task, ok := <-e.queue:
			if !ok {
				e.retire(false)
				return
			}
			e.publish()
			e.run(name, task)

		case <-time.After(e.opts.KeepAlive):
			if e.retire(true) {
				return
			}
		}
	}
}

// retire removes the calling worker from the count. With idleOnly set it
// only does so while the pool is above CoreSize.
func (e *Executor) retire(idleOnly bool) bool {
	e.mu.Lock()
	if idleOnly && e.workers <= e.opts.CoreSize {
		e.mu.Unlock()
		return false
	}
	e.workers--
	e.mu.Unlock()

	e.publish()
	return true
}

// run executes task, recovering panics so one bad job cannot kill a worker.
func (e *Executor) run(worker string, task Task) {
	e.mu.Lock()
	e.active++
	e.mu.Unlock()
	e.publish()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("import task panicked",
				"worker", worker,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
		e.mu.Lock()
		e.active--
		e.mu.Unlock()
		e.publish()
	}()

	task(worker)
}

func (e *Executor) publish() {
	s := e.Status()
	e.metrics.SetExecutorState(s.Active, s.Workers, s.Queued)
}

// Shutdown stops accepting tasks and waits until every queued and running
// task has finished or ctx is done.
func (e *Executor) Shutdown(ctx context.Context) error {
	e.submitMu.Lock()
	if !e.closed {
		e.closed = true
		close(e.queue)
	}
	e.submitMu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ExecutorStatus is a snapshot of the pool state.
type ExecutorStatus struct {
	Active        int `json:"active"`
	Workers       int `json:"workers"`
	Queued        int `json:"queued"`
	QueueCapacity int `json:"queueCapacity"`
	CoreSize      int `json:"coreSize"`
	MaxSize       int `json:"maxSize"`
}

// Status returns the current pool state for monitoring.
func (e *Executor) Status() ExecutorStatus {
	e.mu.Lock()
	active, workers := e.active, e.workers
	e.mu.Unlock()

	return ExecutorStatus{
		Active:        active,
		Workers:       workers,
		Queued:        len(e.queue),
		QueueCapacity: cap(e.queue),
		CoreSize:      e.opts.CoreSize,
		MaxSize:       e.opts.MaxSize,
	}
}
