package storage

import (
	"os"
	"sync"

	"github.com/iotools/iotools/lib/errcount"
	"github.com/iotools/iotools/sniff"
)

// spill files which couldn't be removed on Cleanup
var pending struct {
	mu    sync.Mutex
	paths []string
}

// removeFile is overridden in tests
var removeFile = os.Remove

// removeOrDefer removes path or queues it for RemovePending
func removeOrDefer(path string) {
	err := removeFile(path)
	if err == nil || os.IsNotExist(err) {
		return
	}
	DefaultMetrics.onCleanupFailure()
	sniff.Logf(nil, "Failed to remove spill file %q, deferring: %v", path, err)
	pending.mu.Lock()
	pending.paths = append(pending.paths, path)
	pending.mu.Unlock()
}

// Pending returns the spill files waiting to be removed
func Pending() []string {
	pending.mu.Lock()
	defer pending.mu.Unlock()
	return append([]string(nil), pending.paths...)
}

// RemovePending tries again to remove any spill files which
// couldn't be removed on Cleanup. Files which still can't be
// removed stay queued.
//
// Thread safe.
func RemovePending() error {
	pending.mu.Lock()
	defer pending.mu.Unlock()
	ec := errcount.New()
	var keep []string
	for _, path := range pending.paths {
		err := removeFile(path)
		if err != nil && !os.IsNotExist(err) {
			ec.Add(err)
			keep = append(keep, path)
			continue
		}
		sniff.Debugf(nil, "Removed deferred spill file %q", path)
	}
	pending.paths = keep
	return ec.Err("failed to remove spill files")
}
