// Package storage provides replay buffers which keep a single
// logical read position over everything written to them, holding
// small amounts in memory and spilling larger amounts to disk.
//
// None of the stores are safe for concurrent use.
package storage

import (
	"github.com/pkg/errors"
)

// Errors returned by the stores
var (
	// ErrEmptyPut is returned if Put is called with no data
	ErrEmptyPut = errors.New("storage: put of zero bytes")
	// ErrOutOfRange is returned when seeking beyond the end of the
	// data stored
	ErrOutOfRange = errors.New("storage: position out of range")
)

// Store is an append only byte store with a read position.
//
// Put always appends at the end and leaves the position at the new
// end. Get reads from the position and advances it. The position is
// always between 0 and Size() inclusive.
type Store interface {
	// Position returns the read position
	Position() int64
	// Size returns the number of bytes stored
	Size() int64
	// Put appends p which must not be empty
	Put(p []byte) error
	// Get copies up to len(p) bytes from the position into p and
	// advances the position. It returns 0, io.EOF if the position
	// is at the end.
	Get(p []byte) (int, error)
	// Seek sets the position for the next Get
	Seek(pos int64) error
	// Cleanup discards all the data and releases any backing file.
	// The store may be reused afterwards as if it were new.
	Cleanup() error
}

func checkSeek(pos, size int64) error {
	if pos < 0 || pos > size {
		return errors.Wrapf(ErrOutOfRange, "seek to %d with size %d", pos, size)
	}
	return nil
}
