package decode

import (
	"compress/bzip2"
	"io"

	"github.com/iotools/iotools/sniff"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
)

// Gzip decodes gzip streams with github.com/klauspost/compress
type Gzip struct{}

// Format returns GZIP
func (Gzip) Format() sniff.Tag {
	return sniff.Gzip
}

// Ratio allows for stored blocks in incompressible data
func (Gzip) Ratio() float64 {
	return 1.001
}

// Offset covers the 32k window which inflate fills before returning
// anything, the bufio read ahead used when the input isn't an
// io.ByteReader, and the gzip and stored block headers
func (Gzip) Offset() int {
	return 1<<15 + 4096 + 64
}

// Decode returns a reader of the decompressed bytes
func (Gzip) Decode(r io.Reader) (io.ReadCloser, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "gzip")
	}
	return zr, nil
}

// Bzip2 decodes bzip2 streams
type Bzip2 struct{}

// Format returns BZIP2
func (Bzip2) Format() sniff.Tag {
	return sniff.Bzip2
}

// Ratio allows for incompressible data
func (Bzip2) Ratio() float64 {
	return 1.01
}

// Offset covers the largest (900k) block which must be read whole
// before any of it is output
func (Bzip2) Offset() int {
	return 1 << 20
}

// Decode returns a reader of the decompressed bytes
func (Bzip2) Decode(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(bzip2.NewReader(r)), nil
}

// Zstd decodes zstd streams with github.com/klauspost/compress
type Zstd struct{}

// Format returns ZSTD
func (Zstd) Format() sniff.Tag {
	return sniff.Zstd
}

// Ratio allows for raw blocks
func (Zstd) Ratio() float64 {
	return 1.001
}

// Offset covers a 128k block plus the frame header and the decoder's
// read ahead
func (Zstd) Offset() int {
	return 256 << 10
}

// Decode returns a reader of the decompressed bytes.
//
// Decoding is synchronous so the decoder doesn't read further ahead
// than it needs to.
func (Zstd) Decode(r io.Reader) (io.ReadCloser, error) {
	zr, err := zstd.NewReader(r,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderLowmem(true),
	)
	if err != nil {
		return nil, errors.Wrap(err, "zstd")
	}
	return zr.IOReadCloser(), nil
}

// LZ4 decodes LZ4 frames with github.com/pierrec/lz4/v4
type LZ4 struct{}

// Format returns LZ4
func (LZ4) Format() sniff.Tag {
	return sniff.LZ4
}

// Ratio allows for uncompressed blocks
func (LZ4) Ratio() float64 {
	return 1.001
}

// Offset covers the largest (4 MiB) block and the frame header
func (LZ4) Offset() int {
	return 4<<20 + 64
}

// Decode returns a reader of the decompressed bytes
func (LZ4) Decode(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(lz4.NewReader(r)), nil
}

// check interfaces
var (
	_ sniff.Decoder = Gzip{}
	_ sniff.Ratioer = Gzip{}
	_ sniff.Decoder = Bzip2{}
	_ sniff.Ratioer = Bzip2{}
	_ sniff.Decoder = Zstd{}
	_ sniff.Ratioer = Zstd{}
	_ sniff.Decoder = LZ4{}
	_ sniff.Ratioer = LZ4{}
)
