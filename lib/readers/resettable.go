package readers

import (
	"io"
	"math"

	"github.com/iotools/iotools/lib/storage"
	"github.com/pkg/errors"
)

// Errors returned by Resettable
var (
	ErrNotMarked   = errors.New("readers: reset without mark")
	ErrMarkExpired = errors.New("readers: read past the mark limit")
	ErrCantRewind  = errors.New("readers: can't rewind to the beginning")
)

// ResettableOptions configure a Resettable
type ResettableOptions struct {
	// RetainAll keeps every byte read in the store so that
	// ResetToBeginning always works without seeking the source.
	RetainAll bool
}

// Resettable lets a forward only reader be rewound to a mark or to
// its beginning, using a storage.Store to hold the bytes which might
// be read again.
//
// Bytes read from the source are recorded in the store while a mark
// is live, up to limit bytes past the mark. When no mark is live and
// any replay has caught up the store is emptied.
//
// A Resettable is not safe for concurrent use.
type Resettable struct {
	in    io.Reader
	store storage.Store
	opt   ResettableOptions

	pos    int64 // logical position of the reader
	srcPos int64 // bytes read from in
	base   int64 // stream offset of store position 0

	marked  bool
	markPos int64 // stream offset of the mark
	markEnd int64 // stream offset the mark records up to

	err   error // sticky store failure
	byte1 [1]byte
}

var (
	_ io.ReadCloser = (*Resettable)(nil)
	_ io.ByteReader = (*Resettable)(nil)
)

// NewResettable makes a Resettable reading from in and recording in
// store. The Resettable owns store and cleans it up on Close. opt may
// be nil.
func NewResettable(in io.Reader, store storage.Store, opt *ResettableOptions) *Resettable {
	r := &Resettable{
		in:    in,
		store: store,
	}
	if opt != nil {
		r.opt = *opt
	}
	return r
}

// InflateLimit returns the number of encoded bytes which must be kept
// to be able to decode limit bytes again, for a decoder with ratio
// encoded bytes per decoded byte and offset bytes of slack.
//
// A ratio <= 0 is treated as 1.
func InflateLimit(limit int, ratio float64, offset int) int {
	if ratio <= 0 {
		ratio = 1
	}
	return int(math.Floor(float64(limit)*ratio)) + offset + 1
}

// Position returns the number of bytes from the start of the source
// the next Read will return.
func (r *Resettable) Position() int64 {
	return r.pos
}

// storeEnd is the stream offset just past the last recorded byte
func (r *Resettable) storeEnd() int64 {
	return r.base + r.store.Size()
}

// dropStore empties the store so that it starts at the source position
func (r *Resettable) dropStore() error {
	err := r.store.Cleanup()
	r.base = r.srcPos
	if err != nil {
		return r.fail(errors.Wrap(err, "failed to empty replay store"))
	}
	return nil
}

func (r *Resettable) fail(err error) error {
	if r.err == nil {
		r.err = err
	}
	return r.err
}

// Mark remembers the current position so that Reset can return to
// it. At least the next limit bytes read can be replayed.
//
// A new Mark replaces the old one.
func (r *Resettable) Mark(limit int) {
	if limit < 0 {
		limit = 0
	}
	if r.pos >= r.storeEnd() && r.storeEnd() < r.srcPos {
		// the store stopped recording so start again from here
		_ = r.dropStore()
	}
	r.marked = true
	r.markPos = r.pos
	r.markEnd = r.pos + int64(limit)
}

// Unmark forgets the mark so that the store can be emptied once any
// replay has finished.
func (r *Resettable) Unmark() {
	r.marked = false
}

// Reset rewinds to the last mark.
//
// It returns ErrNotMarked if Mark hasn't been called and
// ErrMarkExpired if more bytes were read since the mark than could
// be kept.
func (r *Resettable) Reset() error {
	if r.err != nil {
		return r.err
	}
	if !r.marked {
		return ErrNotMarked
	}
	if r.markPos < r.base || r.pos > r.storeEnd() {
		return errors.Wrapf(ErrMarkExpired, "mark at %d, position %d", r.markPos, r.pos)
	}
	err := r.store.Seek(r.markPos - r.base)
	if err != nil {
		return r.fail(errors.Wrap(err, "failed to reset replay store"))
	}
	r.pos = r.markPos
	return nil
}

// ResetToBeginning rewinds to the start of the source and forgets any
// mark.
//
// This works if the store still holds everything read, which is
// always true with RetainAll, or if the source is an io.Seeker.
// Otherwise it returns ErrCantRewind.
func (r *Resettable) ResetToBeginning() error {
	if r.err != nil {
		return r.err
	}
	if r.base == 0 && r.storeEnd() == r.srcPos {
		err := r.store.Seek(0)
		if err != nil {
			return r.fail(errors.Wrap(err, "failed to rewind replay store"))
		}
		r.pos = 0
		r.marked = false
		return nil
	}
	seeker, ok := r.in.(io.Seeker)
	if !ok {
		return ErrCantRewind
	}
	_, err := seeker.Seek(0, io.SeekStart)
	if err != nil {
		return errors.Wrapf(ErrCantRewind, "source seek failed: %v", err)
	}
	r.srcPos = 0
	r.pos = 0
	r.marked = false
	return r.dropStore()
}

// Read reads from the store while replaying, then from the source.
func (r *Resettable) Read(p []byte) (n int, err error) {
	if r.err != nil {
		return 0, r.err
	}
	if len(p) == 0 {
		return 0, nil
	}
	if r.pos < r.storeEnd() {
		n, err = r.store.Get(p)
		r.pos += int64(n)
		if err == io.EOF && n > 0 {
			err = nil
		}
		if err != nil {
			return n, r.fail(errors.Wrap(err, "failed to replay"))
		}
		return n, nil
	}

	// Work out how much of what we are about to read to record
	var record int64
	live := r.storeEnd() == r.srcPos
	switch {
	case r.opt.RetainAll:
		record = math.MaxInt64
	case r.marked && live && r.pos < r.markEnd:
		record = r.markEnd - r.pos
	}

	n, err = r.in.Read(p)
	if n <= 0 {
		return n, err
	}
	r.srcPos += int64(n)
	r.pos += int64(n)
	if record > int64(n) {
		record = int64(n)
	}
	if record > 0 {
		putErr := r.store.Put(p[:record])
		if putErr != nil {
			return n, r.fail(errors.Wrap(putErr, "failed to record"))
		}
	} else if r.store.Size() > 0 {
		// nothing can reset into the store any more
		if dropErr := r.dropStore(); dropErr != nil {
			return n, dropErr
		}
	}
	return n, err
}

// ReadByte reads a single byte.
//
// Decompressors use this to avoid reading ahead of what they need.
func (r *Resettable) ReadByte() (byte, error) {
	for {
		n, err := r.Read(r.byte1[:])
		if n == 1 {
			return r.byte1[0], nil
		}
		if err != nil {
			return 0, err
		}
	}
}

// Close cleans up the store. It doesn't close the source.
func (r *Resettable) Close() error {
	r.marked = false
	err := r.store.Cleanup()
	r.base = r.srcPos
	if err != nil {
		return errors.Wrap(err, "failed to clean up replay store")
	}
	return nil
}
