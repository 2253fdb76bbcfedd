package readers

import (
	"io"

	"github.com/pkg/errors"
)

// ErrCantSeek is returned by NoSeeker.Seek
var ErrCantSeek = errors.New("can't Seek")

// NoSeeker adapts an io.Reader into an io.ReadSeeker.
//
// However if Seek() is called it will return an error. Use it to
// hide the Seek method of a source which must be treated as forward
// only.
type NoSeeker struct {
	io.Reader
}

// Seek the stream - returns an error
func (r NoSeeker) Seek(offset int64, whence int) (abs int64, err error) {
	return 0, ErrCantSeek
}
