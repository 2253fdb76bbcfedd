// Package pool keeps fixed size byte buffers for reuse, handing
// back memory which has not been needed for a while.
package pool

import (
	"fmt"
	"sync"
	"time"
)

// Pool of fixed size buffers.
//
// Free buffers are held in a cache. minFill tracks the smallest the
// cache has been since the last flush, which is the number of buffers
// nobody needed in that interval. Every flushTime that many buffers
// are released.
type Pool struct {
	mu           sync.Mutex
	cache        [][]byte
	minFill      int
	bufferSize   int
	poolSize     int
	timer        *time.Timer
	inUse        int
	alloced      int
	flushTime    time.Duration
	flushPending bool
}

// New makes a buffer pool
//
// flushTime is how often unused buffers are released, bufferSize is
// the size of each buffer and poolSize is the most free buffers kept.
func New(flushTime time.Duration, bufferSize, poolSize int) *Pool {
	bp := &Pool{
		cache:      make([][]byte, 0, poolSize),
		poolSize:   poolSize,
		flushTime:  flushTime,
		bufferSize: bufferSize,
	}
	bp.timer = time.AfterFunc(flushTime, bp.flushAged)
	return bp
}

// BufferSize returns the size of the buffers in the pool
func (bp *Pool) BufferSize() int {
	return bp.bufferSize
}

// pop takes the last buffer off the cache - call with mu held
func (bp *Pool) pop() []byte {
	n := len(bp.cache) - 1
	buf := bp.cache[n]
	bp.cache[n] = nil
	bp.cache = bp.cache[:n]
	return buf
}

// flush releases n cached buffers - call with mu held
func (bp *Pool) flush(n int) {
	for i := 0; i < n; i++ {
		bp.release(bp.pop())
	}
	bp.minFill = len(bp.cache)
}

// Flush releases every cached buffer
func (bp *Pool) Flush() {
	bp.mu.Lock()
	bp.flush(len(bp.cache))
	bp.mu.Unlock()
}

// flushAged releases the buffers unused since the last flush
func (bp *Pool) flushAged() {
	bp.mu.Lock()
	bp.flushPending = false
	bp.flush(bp.minFill)
	if len(bp.cache) != 0 {
		bp.kickFlusher()
	}
	bp.mu.Unlock()
}

// InUse returns the number of buffers handed out and not returned
func (bp *Pool) InUse() int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.inUse
}

// InPool returns the number of free buffers cached
func (bp *Pool) InPool() int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return len(bp.cache)
}

// Alloced returns the number of buffers allocated and not released
func (bp *Pool) Alloced() int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.alloced
}

// kickFlusher arms the flush timer if needed - call with mu held
func (bp *Pool) kickFlusher() {
	if bp.flushPending {
		return
	}
	bp.flushPending = true
	bp.timer.Reset(bp.flushTime)
}

// noteFill keeps minFill up to date - call with mu held
func (bp *Pool) noteFill() {
	if len(bp.cache) < bp.minFill {
		bp.minFill = len(bp.cache)
	}
}

// Get a buffer from the pool, allocating one if none are free
func (bp *Pool) Get() []byte {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	var buf []byte
	if len(bp.cache) > 0 {
		buf = bp.pop()
	} else {
		buf = make([]byte, bp.bufferSize)
		bp.alloced++
	}
	bp.inUse++
	bp.noteFill()
	return buf
}

// release drops a buffer for the garbage collector - call with mu held
func (bp *Pool) release([]byte) {
	bp.alloced--
}

// Put returns a buffer to the pool, releasing it if the pool is full.
//
// It panics if buf didn't come from this pool.
func (bp *Pool) Put(buf []byte) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	buf = buf[:cap(buf)]
	if len(buf) != bp.bufferSize {
		panic(fmt.Sprintf("Returning buffer sized %d but expecting %d", len(buf), bp.bufferSize))
	}
	if len(bp.cache) < bp.poolSize {
		bp.cache = append(bp.cache, buf)
	} else {
		bp.release(buf)
	}
	bp.inUse--
	bp.noteFill()
	bp.kickFlusher()
}

// shared pools by buffer size
var shared struct {
	mu    sync.Mutex
	pools map[int]*Pool
}

// Shared returns the process wide pool for buffers of bufferSize,
// making it on first use. Shared pools are never torn down.
func Shared(bufferSize int) *Pool {
	shared.mu.Lock()
	defer shared.mu.Unlock()
	if shared.pools == nil {
		shared.pools = make(map[int]*Pool)
	}
	bp, ok := shared.pools[bufferSize]
	if !ok {
		bp = New(5*time.Second, bufferSize, 16)
		shared.pools[bufferSize] = bp
	}
	return bp
}
