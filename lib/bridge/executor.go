package bridge

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/iotools/iotools/sniff"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"
)

// Executor runs bridge producers.
type Executor interface {
	// Submit arranges for fn to be run. The returned channel is
	// closed after fn has returned and its execution slot has been
	// released.
	Submit(fn func()) (<-chan struct{}, error)
	// Active returns the number of functions running now
	Active() int
	// Name of the executor for logging
	Name() string
}

// boundedExecutor runs each function on its own goroutine but only
// lets width of them run at once.
type boundedExecutor struct {
	name   string
	sem    *semaphore.Weighted
	active atomic.Int64
}

// NewPool makes an Executor which runs at most n functions at once.
// n < 1 is treated as 1.
func NewPool(n int) Executor {
	if n < 1 {
		n = 1
	}
	return &boundedExecutor{
		name: "shared-pool",
		sem:  semaphore.NewWeighted(int64(n)),
	}
}

// NewSingleThread makes an Executor which runs one function at a
// time so everything submitted to it is serialized.
//
// A consumer must not read from one bridge on a single thread
// executor while its producer waits behind another bridge whose
// consumer is the same goroutine, as neither can make progress.
func NewSingleThread() Executor {
	return &boundedExecutor{
		name: "single-thread",
		sem:  semaphore.NewWeighted(1),
	}
}

func (e *boundedExecutor) Submit(fn func()) (<-chan struct{}, error) {
	if fn == nil {
		return nil, errors.New("nil function submitted")
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		// can't fail with a background context
		_ = e.sem.Acquire(context.Background(), 1)
		defer e.sem.Release(1)
		e.active.Add(1)
		defer e.active.Add(-1)
		fn()
	}()
	return done, nil
}

func (e *boundedExecutor) Active() int {
	return int(e.active.Load())
}

func (e *boundedExecutor) Name() string {
	return e.name
}

// perInstanceExecutor starts a dedicated goroutine for every function
type perInstanceExecutor struct {
	active atomic.Int64
}

// NewPerInstance makes an Executor which starts a new goroutine for
// each function with no limit.
func NewPerInstance() Executor {
	return &perInstanceExecutor{}
}

func (e *perInstanceExecutor) Submit(fn func()) (<-chan struct{}, error) {
	if fn == nil {
		return nil, errors.New("nil function submitted")
	}
	done := make(chan struct{})
	e.active.Add(1)
	go func() {
		defer close(done)
		defer e.active.Add(-1)
		fn()
	}()
	return done, nil
}

func (e *perInstanceExecutor) Active() int {
	return int(e.active.Load())
}

func (e *perInstanceExecutor) Name() string {
	return "one-per-instance"
}

// The default executors are process wide. They are made on first use
// and never torn down.
var defaults struct {
	mu        sync.Mutex
	executors map[sniff.ExecutionModel]Executor
}

// DefaultExecutor returns the process wide executor for model.
//
// The shared pool is sized from the pool_size config the first time
// it is used.
func DefaultExecutor(model sniff.ExecutionModel) Executor {
	defaults.mu.Lock()
	defer defaults.mu.Unlock()
	if e, ok := defaults.executors[model]; ok {
		return e
	}
	var e Executor
	switch model {
	case sniff.ExecutionSingleThread:
		e = NewSingleThread()
	case sniff.ExecutionOnePerInstance:
		e = NewPerInstance()
	default:
		e = NewPool(sniff.GetConfig(context.Background()).PoolSize)
	}
	if defaults.executors == nil {
		defaults.executors = make(map[sniff.ExecutionModel]Executor)
	}
	defaults.executors[model] = e
	return e
}

// SetDefaultExecutor replaces the process wide executor for model.
//
// This affects every bridge made afterwards with that model so it
// should be done once, early, before any bridges are made.
func SetDefaultExecutor(model sniff.ExecutionModel, e Executor) {
	defaults.mu.Lock()
	defer defaults.mu.Unlock()
	if defaults.executors == nil {
		defaults.executors = make(map[sniff.ExecutionModel]Executor)
	}
	defaults.executors[model] = e
}
