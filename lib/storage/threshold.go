package storage

import (
	"runtime"

	"github.com/iotools/iotools/sniff"
	"github.com/pkg/errors"
)

// Options for a ThresholdStore
type Options struct {
	Threshold int64  // bytes kept in memory, must be > 0
	TempDir   string // directory for the spill file, "" for the OS default
	File      string // use this path for the spill file instead of a temporary one
}

// ThresholdStore keeps data in memory until it would reach the
// threshold, then moves it all to a file which backs it from then on.
//
// The owner must call Cleanup when done with it. A finalizer cleans
// up a store which still has a spill file when it is garbage
// collected but this is only a safety net.
type ThresholdStore struct {
	opt   Options
	mem   *MemoryStore
	file  *FileStore // non nil once spilled
	err   error      // sticky failure from spilling
	final bool       // set if the finalizer is installed
}

// check interface
var _ Store = (*ThresholdStore)(nil)

// NewThresholdStore makes a new ThresholdStore
func NewThresholdStore(opt Options) (*ThresholdStore, error) {
	if opt.Threshold <= 0 {
		return nil, errors.Errorf("storage: threshold must be > 0, got %d", opt.Threshold)
	}
	return &ThresholdStore{
		opt: opt,
		mem: NewMemoryStore(),
	}, nil
}

// Threshold returns the threshold this store spills at
func (s *ThresholdStore) Threshold() int64 {
	return s.opt.Threshold
}

// Spilled returns true if the data is on disk
func (s *ThresholdStore) Spilled() bool {
	return s.file != nil
}

// Path returns the spill file path or "" if not spilled
func (s *ThresholdStore) Path() string {
	if s.file == nil {
		return ""
	}
	return s.file.Path()
}

func (s *ThresholdStore) active() Store {
	if s.file != nil {
		return s.file
	}
	return s.mem
}

// Position returns the read position
func (s *ThresholdStore) Position() int64 {
	return s.active().Position()
}

// Size returns the number of bytes stored
func (s *ThresholdStore) Size() int64 {
	return s.active().Size()
}

// spill moves everything in memory into a file, keeping the position
func (s *ThresholdStore) spill() error {
	var (
		file *FileStore
		err  error
	)
	if s.opt.File != "" {
		file, err = OpenFile(s.opt.File)
	} else {
		file, err = CreateTemp(s.opt.TempDir)
	}
	if err != nil {
		s.err = err
		return err
	}
	data := s.mem.Bytes()
	if len(data) > 0 {
		err = file.Put(data)
		if err == nil {
			err = file.Seek(s.mem.Position())
		}
		if err != nil {
			_ = file.Cleanup()
			s.err = err
			return err
		}
	}
	sniff.Debugf(nil, "Spilled %d bytes to %q", len(data), file.Path())
	DefaultMetrics.onSpill(int64(len(data)))
	_ = s.mem.Cleanup()
	s.file = file
	if !s.final {
		runtime.SetFinalizer(s, (*ThresholdStore).finalize)
		s.final = true
	}
	return nil
}

// Put appends p, spilling to disk first if the size would reach the
// threshold
func (s *ThresholdStore) Put(p []byte) error {
	if s.err != nil {
		return s.err
	}
	if len(p) == 0 {
		return ErrEmptyPut
	}
	if s.file == nil && s.mem.Size()+int64(len(p)) >= s.opt.Threshold {
		if err := s.spill(); err != nil {
			return err
		}
	}
	return s.active().Put(p)
}

// Get reads from the position
func (s *ThresholdStore) Get(p []byte) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.active().Get(p)
}

// Seek sets the read position
func (s *ThresholdStore) Seek(pos int64) error {
	if s.err != nil {
		return s.err
	}
	return s.active().Seek(pos)
}

// Cleanup discards the data and removes the spill file. The store
// can be used again afterwards.
func (s *ThresholdStore) Cleanup() error {
	s.err = nil
	_ = s.mem.Cleanup()
	if s.file == nil {
		return nil
	}
	err := s.file.Cleanup()
	s.file = nil
	return err
}

func (s *ThresholdStore) finalize() {
	if s.file == nil {
		return
	}
	sniff.Logf(nil, "Spill file %q was not cleaned up by its owner", s.file.Path())
	_ = s.Cleanup()
}
