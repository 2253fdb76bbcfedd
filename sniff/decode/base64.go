// Package decode contains the built in decoders which unwrap one
// layer of encoding.
package decode

import (
	"encoding/base64"
	"io"

	"github.com/iotools/iotools/sniff"
)

// Base64 decodes base64 in either alphabet, ignoring line breaks and
// tolerating missing padding.
type Base64 struct{}

// Format returns BASE64
func (Base64) Format() sniff.Tag {
	return sniff.Base64
}

// Ratio is a little over 4/3 to allow for CRLF every 76 characters
func (Base64) Ratio() float64 {
	return 1.4
}

// Offset covers the 1024 byte read ahead of the base64 decoder and a
// quantum
func (Base64) Offset() int {
	return 1028
}

// Decode returns a reader of the decoded bytes
func (Base64) Decode(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(base64.NewDecoder(base64.StdEncoding, &alphabetReader{in: r})), nil
}

// alphabetReader maps the URL safe alphabet onto the standard one,
// drops line breaks and pads the end of the input to a whole quantum.
type alphabetReader struct {
	in      io.Reader
	count   int // alphabet characters seen, mod 4
	padded  bool
	pending int // padding characters still to emit
	eof     bool
}

func (a *alphabetReader) Read(p []byte) (n int, err error) {
	for n == 0 {
		if a.eof {
			for ; a.pending > 0 && n < len(p); a.pending-- {
				p[n] = '='
				n++
			}
			if n > 0 {
				return n, nil
			}
			return 0, io.EOF
		}
		var m int
		m, err = a.in.Read(p)
		for _, c := range p[:m] {
			switch c {
			case '\r', '\n':
				continue
			case '-':
				c = '+'
			case '_':
				c = '/'
			case '=':
				a.padded = true
			}
			p[n] = c
			n++
			a.count = (a.count + 1) & 3
		}
		if err == io.EOF {
			a.eof = true
			if !a.padded && a.count != 0 {
				a.pending = 4 - a.count
			}
			err = nil
		} else if err != nil {
			return n, err
		} else if m == 0 {
			return 0, nil
		}
	}
	return n, nil
}

// check interfaces
var (
	_ sniff.Decoder = Base64{}
	_ sniff.Ratioer = Base64{}
)
