// Package bridge turns a function which writes data into an
// io.Reader, running the function on an Executor and handing the
// data over through a bounded set of buffers.
package bridge

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/iotools/iotools/lib/pool"
	"github.com/iotools/iotools/lib/readers"
	"github.com/iotools/iotools/sniff"
	"github.com/pkg/errors"
)

// Errors returned by the bridge
var (
	// ErrTimeout is returned by Close if the producer didn't finish
	// in time. The producer carries on and Close may be called again.
	ErrTimeout = errors.New("bridge: timed out waiting for producer")
	// ErrClosed is returned by Read after Close
	ErrClosed = errors.New("bridge: read after close")
)

// Producer writes data to w. If it returns an error that is passed on
// to the consumer. Writes fail with io.ErrClosedPipe once the
// consumer has closed the Reader.
type Producer func(ctx context.Context, w io.Writer) error

// ProducerError wraps the error a Producer returned
type ProducerError struct {
	ID  string // task ID
	Err error
}

// Error satisfies the error interface
func (e *ProducerError) Error() string {
	return "producer failed: " + e.Err.Error()
}

// Unwrap returns the producer's error
func (e *ProducerError) Unwrap() error {
	return e.Err
}

// Cause returns the producer's error
func (e *ProducerError) Cause() error {
	return e.Err
}

// State of a bridge task
type State int

// Task states
const (
	Idle      State = iota // not started
	Running                // producer submitted and not finished
	Completed              // producer returned nil
	Failed                 // producer returned an error or panicked
	Closed                 // consumer closed and producer finished
)

var stateNames = []string{
	Idle:      "idle",
	Running:   "running",
	Completed: "completed",
	Failed:    "failed",
	Closed:    "closed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Options for a bridge Reader
type Options struct {
	Executor     Executor      // runs the producer
	Buffers      int           // number of buffers queued for the consumer
	BufferSize   int           // size of each buffer
	CloseTimeout time.Duration // how long Close waits, 0 for ever
}

// NewOptions makes Options from the config in ctx
func NewOptions(ctx context.Context) *Options {
	ci := sniff.GetConfig(ctx)
	return &Options{
		Executor:     DefaultExecutor(ci.ExecutionModel),
		Buffers:      ci.Buffers,
		BufferSize:   int(ci.BufferSize),
		CloseTimeout: ci.CloseTimeoutDuration(),
	}
}

// Reader reads what a Producer writes.
//
// The producer is started on the first Read. Read and Close must be
// called from one goroutine at a time.
type Reader struct {
	ctx     context.Context
	produce Producer
	opt     Options
	id      uuid.UUID
	pool    *pool.Pool

	ready chan []byte     // filled buffers, closed when the producer returns
	exit  chan struct{}   // closed when the consumer closes
	done  <-chan struct{} // closed when the executor slot is released

	// consumer side only
	cur     []byte // unread part of curBuf
	curBuf  []byte
	closed  bool
	started bool

	mu       sync.Mutex
	state    State
	err      error // set before ready is closed
	surfaced bool  // err has been returned to the consumer
}

// New makes a Reader which will run produce. opt may be nil in which
// case the options come from the config in ctx.
func New(ctx context.Context, produce Producer, opt *Options) *Reader {
	if opt == nil {
		opt = NewOptions(ctx)
	}
	r := &Reader{
		ctx:     ctx,
		produce: produce,
		opt:     *opt,
		id:      uuid.New(),
	}
	ci := sniff.GetConfig(ctx)
	if r.opt.Executor == nil {
		r.opt.Executor = DefaultExecutor(ci.ExecutionModel)
	}
	if r.opt.Buffers < 1 {
		r.opt.Buffers = 1
	}
	if r.opt.BufferSize <= 0 {
		r.opt.BufferSize = int(ci.BufferSize)
	}
	r.pool = pool.Shared(r.opt.BufferSize)
	r.ready = make(chan []byte, r.opt.Buffers)
	r.exit = make(chan struct{})
	return r
}

// ReadAhead makes a Reader which copies in through the bridge so
// that a slow source is read ahead of the consumer. Reading in stops
// if ctx is cancelled.
func ReadAhead(ctx context.Context, in io.Reader, opt *Options) *Reader {
	return New(ctx, func(ctx context.Context, w io.Writer) error {
		_, err := io.Copy(w, readers.NewContextReader(ctx, in))
		return err
	}, opt)
}

// Collect runs produce and returns everything it wrote
func Collect(ctx context.Context, produce Producer, opt *Options) ([]byte, error) {
	r := New(ctx, produce, opt)
	data, err := io.ReadAll(r)
	closeErr := r.Close()
	if err != nil {
		return data, err
	}
	return data, closeErr
}

// ID returns the task ID used in logs
func (r *Reader) ID() string {
	return r.id.String()
}

// String returns a description for logging
func (r *Reader) String() string {
	return "bridge " + r.id.String()[:8]
}

// State returns the state of the task
func (r *Reader) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// start submits the producer if it hasn't been already
func (r *Reader) start() {
	if r.started {
		return
	}
	r.started = true
	r.mu.Lock()
	r.state = Running
	r.mu.Unlock()
	done, err := r.opt.Executor.Submit(r.run)
	if err != nil {
		r.finish(errors.Wrap(err, "failed to start producer"))
		closed := make(chan struct{})
		close(closed)
		done = closed
	}
	r.done = done
}

// run is the task submitted to the executor
func (r *Reader) run() {
	DefaultMetrics.onStart()
	sniff.Debugf(r, "Producer started on %s executor", r.opt.Executor.Name())
	var err error
	func() {
		defer func() {
			if p := recover(); p != nil {
				err = errors.Errorf("panic: %v", p)
			}
		}()
		err = r.produce(r.ctx, writer{r})
	}()
	r.finish(err)
	if err != nil {
		sniff.Debugf(r, "Producer failed: %v", err)
	} else {
		sniff.Debugf(r, "Producer finished")
	}
	DefaultMetrics.onFinish(err)

	// If the consumer has gone, nobody else will return the buffers
	select {
	case <-r.exit:
		r.drain()
	default:
	}
}

// finish records the outcome and signals the consumer
func (r *Reader) finish(err error) {
	r.mu.Lock()
	if err != nil {
		r.err = &ProducerError{ID: r.id.String(), Err: err}
		r.state = Failed
	} else {
		r.state = Completed
	}
	r.mu.Unlock()
	close(r.ready)
}

// drain returns queued buffers to the pool. Only call once ready is
// closed.
func (r *Reader) drain() {
	for buf := range r.ready {
		r.pool.Put(buf)
	}
}

// finalErr is returned by Read once the producer has finished
func (r *Reader) finalErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		r.surfaced = true
		return r.err
	}
	return io.EOF
}

// Read reads what the producer wrote, in order. After the producer
// returns it gives io.EOF or a *ProducerError.
func (r *Reader) Read(p []byte) (n int, err error) {
	if r.closed {
		return 0, ErrClosed
	}
	r.start()
	if len(p) == 0 {
		return 0, nil
	}
	for len(r.cur) == 0 {
		if r.curBuf != nil {
			r.pool.Put(r.curBuf)
			r.curBuf = nil
		}
		buf, ok := <-r.ready
		if !ok {
			return 0, r.finalErr()
		}
		r.curBuf, r.cur = buf, buf
	}
	n = copy(p, r.cur)
	r.cur = r.cur[n:]
	return n, nil
}

// Close closes the consumer end and waits for the producer to finish
// for the configured CloseTimeout.
func (r *Reader) Close() error {
	return r.CloseTimeout(r.opt.CloseTimeout)
}

// CloseTimeout closes the consumer end and waits for the producer to
// finish, for at most d if d > 0.
//
// Writes by the producer fail once the consumer end is closed but the
// producer is never stopped. If it doesn't finish in time ErrTimeout
// is returned and CloseTimeout may be called again to carry on
// waiting.
//
// Once the producer has finished, its error is returned unless a Read
// already returned it or it only failed because the consumer closed
// early. Later calls return nil.
func (r *Reader) CloseTimeout(d time.Duration) error {
	if !r.closed {
		r.closed = true
		close(r.exit)
		if r.curBuf != nil {
			r.pool.Put(r.curBuf)
			r.curBuf, r.cur = nil, nil
		}
	}
	if !r.started {
		r.mu.Lock()
		r.state = Closed
		r.mu.Unlock()
		return nil
	}
	if d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-r.done:
		case <-timer.C:
			return errors.Wrapf(ErrTimeout, "%v: still running after %v", r, d)
		}
	} else {
		<-r.done
	}
	r.drain()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = Closed
	if r.err == nil || r.surfaced {
		return nil
	}
	r.surfaced = true
	if errors.Is(r.err, io.ErrClosedPipe) {
		return nil
	}
	return r.err
}

// writer is the producer's end of the bridge
type writer struct {
	r *Reader
}

// Write hands p to the consumer, blocking while all the buffers are
// queued.
func (w writer) Write(p []byte) (n int, err error) {
	r := w.r
	for len(p) > 0 {
		select {
		case <-r.exit:
			return n, io.ErrClosedPipe
		default:
		}
		buf := r.pool.Get()
		k := copy(buf, p)
		select {
		case r.ready <- buf[:k]:
		case <-r.exit:
			r.pool.Put(buf)
			return n, io.ErrClosedPipe
		}
		n += k
		p = p[k:]
	}
	return n, nil
}
