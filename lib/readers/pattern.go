package readers

import (
	"io"

	"github.com/pkg/errors"
)

// patternPeriod is prime so the pattern doesn't line up with buffer
// sizes
const patternPeriod = 251

// NewPatternReader creates a reader, that returns a deterministic byte
// pattern. After length bytes are read it returns io.EOF.
func NewPatternReader(length int64) io.ReadSeeker {
	return &patternReader{
		length: length,
	}
}

type patternReader struct {
	offset int64
	length int64
}

// Read bytes as per io.Reader interface
func (r *patternReader) Read(p []byte) (n int, err error) {
	for i := range p {
		if r.offset >= r.length {
			return n, io.EOF
		}
		p[i] = byte(r.offset % patternPeriod)
		r.offset++
		n++
	}
	return n, nil
}

// Seek as per io.Seeker interface
func (r *patternReader) Seek(offset int64, whence int) (abs int64, err error) {
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = r.offset + offset
	case io.SeekEnd:
		abs = r.length + offset
	default:
		return 0, errors.New("invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("negative position")
	}
	r.offset = abs
	return abs, nil
}
