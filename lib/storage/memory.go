package storage

import "io"

// MemoryStore is a Store backed by a growable byte slice
type MemoryStore struct {
	buf []byte
	pos int64
}

// check interface
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore makes an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Position returns the read position
func (m *MemoryStore) Position() int64 {
	return m.pos
}

// Size returns the number of bytes stored
func (m *MemoryStore) Size() int64 {
	return int64(len(m.buf))
}

// Put appends p
func (m *MemoryStore) Put(p []byte) error {
	if len(p) == 0 {
		return ErrEmptyPut
	}
	m.buf = append(m.buf, p...)
	m.pos = int64(len(m.buf))
	return nil
}

// Get reads from the position
func (m *MemoryStore) Get(p []byte) (int, error) {
	if m.pos >= int64(len(m.buf)) {
		return 0, io.EOF
	}
	n := copy(p, m.buf[m.pos:])
	m.pos += int64(n)
	return n, nil
}

// Seek sets the read position
func (m *MemoryStore) Seek(pos int64) error {
	if err := checkSeek(pos, m.Size()); err != nil {
		return err
	}
	m.pos = pos
	return nil
}

// Bytes returns the stored data. It is only valid until the next
// Put or Cleanup.
func (m *MemoryStore) Bytes() []byte {
	return m.buf
}

// Cleanup discards the data
func (m *MemoryStore) Cleanup() error {
	m.buf = nil
	m.pos = 0
	return nil
}
