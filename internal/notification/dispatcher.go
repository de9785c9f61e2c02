// Package notification runs the messaging side work that must not block a
// request: first-contact emails and the daily unread digest.
package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vedran77/dmcore/internal/directory"
	"github.com/vedran77/dmcore/internal/email"
	"github.com/vedran77/dmcore/internal/repository"
)

var (
	ErrQueueFull        = errors.New("notification queue is full")
	ErrDispatcherClosed = errors.New("notification dispatcher is closed")
)

// Scope is the set of collaborators one background task may use.
type Scope struct {
	Directory       directory.Client
	Email           email.Client
	ContactRequests repository.ContactRequestRepository
}

// ScopeFunc acquires a Scope for a single task. release runs when the task
// ends, whatever the outcome.
type ScopeFunc func(ctx context.Context) (scope *Scope, release func(), err error)

// StaticScope hands every task the same collaborators.
func StaticScope(s *Scope) ScopeFunc {
	return func(context.Context) (*Scope, func(), error) {
		return s, func() {}, nil
	}
}

type Task func(ctx context.Context, scope *Scope) error

// Handle lets tests observe a detached task. Production callers ignore it.
type Handle struct {
	done chan struct{}
	err  error
}

func newHandle() *Handle {
	return &Handle{done: make(chan struct{})}
}

func finishedHandle(err error) *Handle {
	h := newHandle()
	h.err = err
	close(h.done)
	return h
}

func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the task ends or ctx is done.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type job struct {
	name   string
	task   Task
	handle *Handle
}

type DispatcherConfig struct {
	Workers     int
	QueueSize   int
	TaskTimeout time.Duration
}

type Dispatcher struct {
	cfg   DispatcherConfig
	scope ScopeFunc
	log   *zap.Logger

	queue  chan job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	started bool
	closed  bool
}

func NewDispatcher(cfg DispatcherConfig, scope ScopeFunc, log *zap.Logger) *Dispatcher {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		cfg:    cfg,
		scope:  scope,
		log:    log.With(zap.String("component", "notification.dispatcher")),
		queue:  make(chan job, cfg.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the workers. Tasks run on the dispatcher's own context, never
// on the context of the request that submitted them.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

// Submit enqueues task without blocking. A full queue drops the task.
func (d *Dispatcher) Submit(name string, task Task) *Handle {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.Warn("task rejected, dispatcher closed", zap.String("task", name))
		return finishedHandle(ErrDispatcherClosed)
	}

	j := job{name: name, task: task, handle: newHandle()}
	select {
	case d.queue <- j:
		return j.handle
	default:
		d.log.Error("task dropped, queue full", zap.String("task", name), zap.Int("queue_size", d.cfg.QueueSize))
		return finishedHandle(ErrQueueFull)
	}
}

// Shutdown stops intake and waits for queued tasks. When ctx expires first,
// running tasks are cancelled.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if !started {
		for j := range d.queue {
			j.handle.err = ErrDispatcherClosed
			close(j.handle.done)
		}
		d.cancel()
		return nil
	}

	drained := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-drained
		return ctx.Err()
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.queue {
		d.run(j)
	}
}

func (d *Dispatcher) run(j job) {
	start := time.Now()
	log := d.log.With(zap.String("task", j.name))

	defer close(j.handle.done)
	defer func() {
		if r := recover(); r != nil {
			j.handle.err = fmt.Errorf("task panicked: %v", r)
			log.Error("task panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	ctx, cancel := context.WithTimeout(d.ctx, d.cfg.TaskTimeout)
	defer cancel()

	scope, release, err := d.scope(ctx)
	if err != nil {
		j.handle.err = err
		log.Error("acquire task scope", zap.Error(err))
		return
	}
	defer release()

	if err := j.task(ctx, scope); err != nil {
		j.handle.err = err
		log.Warn("task failed", zap.Error(err), zap.Duration("took", time.Since(start)))
		return
	}
	log.Debug("task done", zap.Duration("took", time.Since(start)))
}
