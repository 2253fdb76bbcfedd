// Package testy contains test utilities for iotools
package testy

import (
	"os"
	"testing"
	"time"
)

// SkipUnreliable skips this test if running on CI
func SkipUnreliable(t *testing.T) {
	if os.Getenv("CI") == "" {
		return
	}
	t.Skip("Skipping Unreliable Test on CI")
}

// WaitFor polls cond every 10ms until it returns true or timeout
// passes, returning the last result.
//
// Use it for state which a background goroutine changes shortly
// after the thing being tested returns.
func WaitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(10 * time.Millisecond)
	}
}
