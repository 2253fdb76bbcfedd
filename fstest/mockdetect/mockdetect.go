// Package mockdetect provides mock detectors, decoders and sources
// for testing the detect and decode loop
package mockdetect

import (
	"bytes"
	"io"
	"sync"

	"github.com/iotools/iotools/sniff"
	"github.com/pkg/errors"
)

// ErrMock is a handy error for the mocks to return
var ErrMock = errors.New("mock failure")

// DetectFunc is the body of a mock Detector
type DetectFunc func(enabled sniff.Set, header []byte) (sniff.FormatID, bool, error)

// Detector is a mock sniff.Detector which records the headers it is
// shown
type Detector struct {
	name    string
	formats []sniff.Tag
	length  int
	fn      DetectFunc

	mu      sync.Mutex
	headers [][]byte
}

// New returns a mock Detector which needs length bytes and calls fn
func New(name string, length int, fn DetectFunc, formats ...sniff.Tag) *Detector {
	return &Detector{
		name:    name,
		formats: formats,
		length:  length,
		fn:      fn,
	}
}

// Prefix returns a mock Detector which reports tag if the header
// starts with prefix
func Prefix(name string, tag sniff.Tag, prefix string) *Detector {
	return New(name, len(prefix), func(_ sniff.Set, header []byte) (sniff.FormatID, bool, error) {
		if bytes.HasPrefix(header, []byte(prefix)) {
			return sniff.NewFormatID(tag), true, nil
		}
		return sniff.UnknownFormat, false, nil
	}, tag)
}

// Failing returns a mock Detector for tag which always returns err
func Failing(name string, tag sniff.Tag, length int, err error) *Detector {
	return New(name, length, func(sniff.Set, []byte) (sniff.FormatID, bool, error) {
		return sniff.UnknownFormat, false, err
	}, tag)
}

// Name of the detector
func (d *Detector) Name() string {
	return d.name
}

// DetectedFormats returns the formats passed to New
func (d *Detector) DetectedFormats() []sniff.Tag {
	return d.formats
}

// DetectLength returns the length passed to New if any of the formats
// are enabled
func (d *Detector) DetectLength(enabled sniff.Set) int {
	if !enabled.Intersects(d.formats) {
		return 0
	}
	return d.length
}

// Detect records the header and calls the DetectFunc
func (d *Detector) Detect(enabled sniff.Set, header []byte) (sniff.FormatID, bool, error) {
	d.mu.Lock()
	d.headers = append(d.headers, append([]byte(nil), header...))
	d.mu.Unlock()
	return d.fn(enabled, header)
}

// Calls returns the number of times Detect was called
func (d *Detector) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.headers)
}

// Headers returns copies of the headers Detect was called with
func (d *Detector) Headers() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([][]byte(nil), d.headers...)
}

// Decoder is a mock sniff.Decoder which strips a literal prefix off
// the stream, and counts how many readers it opened and closed
type Decoder struct {
	tag    sniff.Tag
	prefix string
	err    error
	ratio  float64
	offset int

	mu     sync.Mutex
	opened int
	closed int
}

// StripPrefix returns a mock Decoder for tag which checks for and
// removes prefix
func StripPrefix(tag sniff.Tag, prefix string) *Decoder {
	return &Decoder{
		tag:    tag,
		prefix: prefix,
		ratio:  1,
		offset: len(prefix),
	}
}

// FailingDecoder returns a mock Decoder whose Decode returns err
func FailingDecoder(tag sniff.Tag, err error) *Decoder {
	return &Decoder{tag: tag, err: err, ratio: 1}
}

// SetRatio sets the ratio and offset reported
func (d *Decoder) SetRatio(ratio float64, offset int) *Decoder {
	d.ratio, d.offset = ratio, offset
	return d
}

// Format returns the tag
func (d *Decoder) Format() sniff.Tag {
	return d.tag
}

// Ratio returns the ratio
func (d *Decoder) Ratio() float64 {
	return d.ratio
}

// Offset returns the offset
func (d *Decoder) Offset() int {
	return d.offset
}

// Decode checks the prefix
func (d *Decoder) Decode(r io.Reader) (io.ReadCloser, error) {
	if d.err != nil {
		return nil, d.err
	}
	buf := make([]byte, len(d.prefix))
	_, err := io.ReadFull(r, buf)
	if err != nil {
		return nil, errors.Wrapf(err, "mock %s decoder", d.tag)
	}
	if string(buf) != d.prefix {
		return nil, errors.Errorf("mock %s decoder: want prefix %q got %q", d.tag, d.prefix, buf)
	}
	d.mu.Lock()
	d.opened++
	d.mu.Unlock()
	return &decoderReader{Reader: r, d: d}, nil
}

// Opened returns the number of readers returned by Decode
func (d *Decoder) Opened() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened
}

// Closed returns the number of readers closed
func (d *Decoder) Closed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

type decoderReader struct {
	io.Reader
	d    *Decoder
	done bool
}

func (r *decoderReader) Close() error {
	if !r.done {
		r.done = true
		r.d.mu.Lock()
		r.d.closed++
		r.d.mu.Unlock()
	}
	return nil
}

// SeekMode specifies whether a Source can seek
type SeekMode int

const (
	// SeekModeNone specifies no seek interface
	SeekModeNone SeekMode = iota
	// SeekModeRegular specifies the regular io.Seek interface
	SeekModeRegular
)

// SeekModes contains all valid SeekMode's
var SeekModes = []SeekMode{SeekModeNone, SeekModeRegular}

func (s SeekMode) String() string {
	switch s {
	case SeekModeNone:
		return "SeekModeNone"
	case SeekModeRegular:
		return "SeekModeRegular"
	}
	return "SeekModeInvalid"
}

// Source is an io.ReadCloser over some content which counts the
// bytes read and whether it was closed
type Source struct {
	r      *bytes.Reader
	err    error
	errAt  int64
	read   int64
	closed bool
}

// NewSource returns a Source over content which seeks if mode is
// SeekModeRegular
func NewSource(content []byte, mode SeekMode) io.ReadCloser {
	s := &Source{r: bytes.NewReader(content), errAt: -1}
	if mode == SeekModeRegular {
		return &seekSource{s}
	}
	return s
}

// NewFailingSource returns a Source which returns err once at bytes
// have been read
func NewFailingSource(content []byte, at int64, err error) *Source {
	return &Source{r: bytes.NewReader(content), err: err, errAt: at}
}

// Read the content
func (s *Source) Read(p []byte) (n int, err error) {
	if s.errAt >= 0 {
		if s.read >= s.errAt {
			return 0, s.err
		}
		if int64(len(p)) > s.errAt-s.read {
			p = p[:s.errAt-s.read]
		}
	}
	n, err = s.r.Read(p)
	s.read += int64(n)
	return n, err
}

// Close marks the source closed
func (s *Source) Close() error {
	s.closed = true
	return nil
}

// BytesRead returns the number of bytes read
func (s *Source) BytesRead() int64 {
	return s.read
}

// IsClosed returns true if Close was called
func (s *Source) IsClosed() bool {
	return s.closed
}

type seekSource struct {
	*Source
}

// Seek the content
func (s *seekSource) Seek(offset int64, whence int) (int64, error) {
	return s.r.Seek(offset, whence)
}

// Unwrap returns the underlying Source from one made by NewSource
func Unwrap(rc io.ReadCloser) *Source {
	switch s := rc.(type) {
	case *Source:
		return s
	case *seekSource:
		return s.Source
	}
	return nil
}
