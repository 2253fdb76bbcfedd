// Package unwrap identifies the format of a stream and unwraps nested
// encodings, re-identifying the content underneath each one.
//
// The source is read once. A readers.Resettable over a
// storage.ThresholdStore keeps the bytes looked at by the detectors so
// they can be read again, spilling to disk past the threshold.
package unwrap

import (
	"context"
	"io"

	"github.com/iotools/iotools/lib/errcount"
	"github.com/iotools/iotools/lib/readers"
	"github.com/iotools/iotools/lib/storage"
	"github.com/iotools/iotools/sniff"
	"github.com/pkg/errors"
)

// Options for Open and Detect
type Options struct {
	MaxLevels int              // most formats to detect, decoding all but the last
	Enabled   sniff.Set        // formats which may be detected, empty for all the registry knows
	Threshold sniff.SizeSuffix // replay bytes held in memory before spilling
	TempDir   string           // where spill files go, "" for the OS default
}

// NewOptions returns Options from the config in ctx
func NewOptions(ctx context.Context) *Options {
	ci := sniff.GetConfig(ctx)
	return &Options{
		MaxLevels: ci.MaxLevels,
		Enabled:   sniff.ParseSet(ci.Formats),
		Threshold: ci.Threshold,
		TempDir:   ci.TempDir,
	}
}

// fixup fills in defaults for anything unset
func (opt *Options) fixup(ctx context.Context, reg *sniff.Registry) Options {
	o := *opt
	ci := sniff.GetConfig(ctx)
	if o.MaxLevels <= 0 {
		o.MaxLevels = ci.MaxLevels
	}
	if len(o.Enabled) == 0 {
		o.Enabled = sniff.NewSet(reg.Formats()...)
	}
	if o.Threshold <= 0 {
		o.Threshold = ci.Threshold
	}
	return o
}

// Stream is the decoded content of a source along with the chain of
// formats found.
//
// A Stream is not safe for concurrent use.
type Stream struct {
	ctx      context.Context
	in       io.Reader
	raw      *readers.Resettable
	decoders []io.ReadCloser // in the order applied
	out      io.Reader
	formats  []sniff.FormatID
	errs     error // summary of detector failures
	closed   bool
}

// Open reads enough of in to work out its format, decoding and
// detecting again up to opt.MaxLevels times, and returns a Stream of
// the innermost content reached.
//
// If in is an io.Closer it is closed when the Stream is closed, or if
// Open fails. opt may be nil to use the config in ctx.
func Open(ctx context.Context, in io.Reader, reg *sniff.Registry, opt *Options) (*Stream, error) {
	if opt == nil {
		opt = NewOptions(ctx)
	}
	o := opt.fixup(ctx, reg)
	store, err := storage.NewThresholdStore(storage.Options{
		Threshold: int64(o.Threshold),
		TempDir:   o.TempDir,
	})
	if err != nil {
		if c, ok := in.(io.Closer); ok {
			_ = c.Close()
		}
		return nil, err
	}
	s := &Stream{
		ctx: ctx,
		in:  in,
		raw: readers.NewResettable(in, store, nil),
	}
	chain, err := s.identify(reg, &o)
	if err == nil {
		s.raw.Unmark()
		s.out, err = s.build(chain)
	}
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Detect returns the chain of formats of in without keeping the
// stream. It closes in if it is an io.Closer.
func Detect(ctx context.Context, in io.Reader, reg *sniff.Registry, opt *Options) ([]sniff.FormatID, error) {
	s, err := Open(ctx, in, reg, opt)
	if err != nil {
		return nil, err
	}
	formats := s.Formats()
	return formats, s.Close()
}

// detectLength is the most any detector which can produce an enabled
// format wants to see
func detectLength(reg *sniff.Registry, enabled sniff.Set) int {
	length := 0
	for _, d := range reg.Detectors() {
		if !enabled.Intersects(d.DetectedFormats()) {
			continue
		}
		if l := d.DetectLength(enabled); l > length {
			length = l
		}
	}
	return length
}

// markLimit inflates length through each decoder so that enough raw
// bytes are kept to decode length bytes again
func markLimit(length int, chain []sniff.Decoder) int {
	limit := length
	for i := len(chain) - 1; i >= 0; i-- {
		ratio, offset := sniff.DecoderRatio(chain[i])
		limit = readers.InflateLimit(limit, ratio, offset)
	}
	return limit
}

// identify runs the detect and decode loop returning the decoders to
// apply
func (s *Stream) identify(reg *sniff.Registry, o *Options) (chain []sniff.Decoder, err error) {
	ec := errcount.New()
	for level := 0; level < o.MaxLevels; level++ {
		if err := s.ctx.Err(); err != nil {
			return nil, err
		}
		length := detectLength(reg, o.Enabled)
		if length <= 0 {
			return nil, errors.Wrapf(sniff.ErrorNoDetectors, "enabled formats %v", o.Enabled)
		}
		s.raw.Mark(markLimit(length, chain))
		header, err := s.readHeader(chain, length)
		if err != nil {
			return nil, errors.Wrapf(err, "level %d", level)
		}
		if err = s.rewind(); err != nil {
			return nil, errors.Wrapf(err, "level %d", level)
		}
		id := s.detect(reg, o.Enabled, header, ec)
		sniff.DefaultMetrics.OnDetect(id, level)
		sniff.Debugf(s, "level %d: %v from %d byte header", level, id, len(header))
		s.formats = append(s.formats, id)
		if id.IsUnknown() {
			break
		}
		d := reg.Decoder(id.Format)
		if d == nil || level+1 >= o.MaxLevels {
			break
		}
		chain = append(chain, d)
		sniff.DefaultMetrics.OnDecode(id.Format)
	}
	s.errs = ec.Err("detectors failed")
	if s.errs != nil {
		sniff.Logf(s, "%v", s.errs)
	}
	return chain, nil
}

// rewind goes back to the mark, falling back to the start of a
// seekable source if the decoders read past the mark
func (s *Stream) rewind() error {
	err := s.raw.Reset()
	if err == nil || !errors.Is(err, readers.ErrMarkExpired) {
		return err
	}
	if rerr := s.raw.ResetToBeginning(); rerr == nil {
		sniff.Debugf(s, "mark expired so rewound the source")
		return nil
	}
	return err
}

// readHeader reads up to length bytes through a fresh set of decoders
func (s *Stream) readHeader(chain []sniff.Decoder, length int) (header []byte, err error) {
	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if cerr := closers[i].Close(); cerr != nil && err == nil {
				err = errors.Wrap(cerr, "failed to close decoder")
			}
		}
	}()
	var r io.Reader = s.raw
	for _, d := range chain {
		rc, err := d.Decode(r)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to decode %s", d.Format())
		}
		closers = append(closers, rc)
		r = rc
	}
	// Only io.EOF means a short source. io.ErrUnexpectedEOF from a
	// decoder is truncated input so must not be taken for one.
	header = make([]byte, length)
	n := 0
	for n < length {
		var nn int
		nn, err = r.Read(header[n:])
		n += nn
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to read header")
		}
	}
	return header[:n], nil
}

// detect runs the detectors in order, the first match of an enabled
// format wins
func (s *Stream) detect(reg *sniff.Registry, enabled sniff.Set, header []byte, ec *errcount.ErrCount) sniff.FormatID {
	for _, d := range reg.Detectors() {
		if !enabled.Intersects(d.DetectedFormats()) {
			continue
		}
		h := header
		if l := d.DetectLength(enabled); l < len(h) {
			h = h[:l]
		}
		id, ok, err := d.Detect(enabled, h)
		if err != nil {
			if sniff.IsMalformed(err) {
				sniff.Debugf(s, "detector %s: %v", d.Name(), err)
				continue
			}
			ec.AddFrom(d.Name(), err)
			sniff.DefaultMetrics.OnDetectorError(d.Name())
			sniff.Errorf(s, "detector %s failed: %v", d.Name(), err)
			continue
		}
		if !ok || id.IsUnknown() {
			continue
		}
		if !enabled.Contains(id.Format) {
			sniff.Debugf(s, "detector %s: ignoring disabled %v", d.Name(), id)
			continue
		}
		return id
	}
	return sniff.UnknownFormat
}

// build stacks the decoders over the raw stream
func (s *Stream) build(chain []sniff.Decoder) (io.Reader, error) {
	var r io.Reader = s.raw
	for _, d := range chain {
		rc, err := d.Decode(r)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to decode %s", d.Format())
		}
		s.decoders = append(s.decoders, rc)
		r = rc
	}
	return r, nil
}

// Read reads the decoded content
func (s *Stream) Read(p []byte) (int, error) {
	if s.closed {
		return 0, sniff.ErrorInvalidState
	}
	return s.out.Read(p)
}

// Format returns the outermost format
func (s *Stream) Format() sniff.FormatID {
	if len(s.formats) == 0 {
		return sniff.UnknownFormat
	}
	return s.formats[0]
}

// Formats returns the chain of formats, outermost first
func (s *Stream) Formats() []sniff.FormatID {
	return append([]sniff.FormatID(nil), s.formats...)
}

// DetectorErrors summarises any detectors which failed. These don't
// stop detection.
func (s *Stream) DetectorErrors() error {
	return s.errs
}

// String describes the stream for logging
func (s *Stream) String() string {
	return "unwrap"
}

// Close closes the decoders, cleans up the replay store and closes
// the source if it is an io.Closer.
//
// Calling Close more than once is allowed.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	ec := errcount.New()
	for i := len(s.decoders) - 1; i >= 0; i-- {
		ec.Add(s.decoders[i].Close())
	}
	s.decoders = nil
	ec.Add(s.raw.Close())
	if c, ok := s.in.(io.Closer); ok {
		ec.Add(c.Close())
	}
	return ec.Err("failed to close stream")
}

// check interface
var _ io.ReadCloser = (*Stream)(nil)
