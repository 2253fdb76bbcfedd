// Package errcount counts errors from a run of independent attempts
// and summarises them as the count plus the last error, so one
// failing item doesn't drown the rest.
package errcount

import (
	"sync"

	"github.com/pkg/errors"
)

// ErrCount stores the state of the error counter.
type ErrCount struct {
	mu      sync.Mutex
	lastErr error
	count   int
	sources map[string]int
}

// New makes a new error counter
func New() *ErrCount {
	return &ErrCount{sources: make(map[string]int)}
}

// Add an error to the error count.
//
// err may be nil.
//
// Thread safe.
func (ec *ErrCount) Add(err error) {
	ec.AddFrom("", err)
}

// AddFrom adds an error attributed to source, for example the name
// of the detector which failed.
//
// err may be nil.
//
// Thread safe.
func (ec *ErrCount) AddFrom(source string, err error) {
	if err == nil {
		return
	}
	ec.mu.Lock()
	ec.count++
	ec.lastErr = err
	if source != "" {
		ec.sources[source]++
	}
	ec.mu.Unlock()
}

// Count returns the number of errors added
//
// Thread safe.
func (ec *ErrCount) Count() int {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return ec.count
}

// CountFrom returns the number of errors added from source
//
// Thread safe.
func (ec *ErrCount) CountFrom(source string) int {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return ec.sources[source]
}

// Err returns the error summary so far - may be nil
//
// txt is put in front of the error summary
//
//	txt: %d errors: last error: %v
//
// or this if only one error
//
//	txt: %v
//
// The last error can be found with errors.Is and errors.As.
//
// Thread safe.
func (ec *ErrCount) Err(txt string) error {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	if ec.count == 0 {
		return nil
	} else if ec.count == 1 {
		return errors.Wrap(ec.lastErr, txt)
	}
	return errors.Wrapf(ec.lastErr, "%s: %d errors: last error", txt, ec.count)
}
