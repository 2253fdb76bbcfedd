package detect

import (
	"regexp"

	"github.com/iotools/iotools/sniff"
	"github.com/pkg/errors"
)

// Regexp detects a single format by matching a regular expression
// against the header.
//
// Patterns should be anchored with ^ since the header is only a
// prefix of the stream.
type Regexp struct {
	name   string
	format sniff.Tag
	re     *regexp.Regexp
	length int
}

// NewRegexp makes a Regexp detector reporting format when pattern
// matches the first length bytes
func NewRegexp(name string, format sniff.Tag, pattern string, length int) (*Regexp, error) {
	if length <= 0 {
		return nil, errors.Errorf("regexp detector %q: length must be > 0", name)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "regexp detector %q", name)
	}
	return &Regexp{
		name:   name,
		format: format,
		re:     re,
		length: length,
	}, nil
}

// MustRegexp is NewRegexp but panics on error
func MustRegexp(name string, format sniff.Tag, pattern string, length int) *Regexp {
	r, err := NewRegexp(name, format, pattern, length)
	if err != nil {
		panic(err)
	}
	return r
}

// Built in regexp detectors
var (
	HTML = MustRegexp("html", sniff.HTML, `(?is)^(?:\x{feff})?\s*(?:<!--.*?-->\s*)*<(?:!doctype\s+html|html|head|body)[\s>]`, 512)
	JSON = MustRegexp("json", sniff.JSON, `^(?:\x{feff})?\s*(?:\{\s*(?:"|\}|$)|\[\s*(?:[\[\{"\-0-9\]]|true|false|null|$))`, 64)
)

// Name of the detector
func (r *Regexp) Name() string {
	return r.name
}

// DetectedFormats returns the single format
func (r *Regexp) DetectedFormats() []sniff.Tag {
	return []sniff.Tag{r.format}
}

// DetectLength returns the configured length if the format is enabled
func (r *Regexp) DetectLength(enabled sniff.Set) int {
	if !enabled.Contains(r.format) {
		return 0
	}
	return r.length
}

// Detect matches the pattern against the header
func (r *Regexp) Detect(enabled sniff.Set, header []byte) (sniff.FormatID, bool, error) {
	if !enabled.Contains(r.format) || !r.re.Match(header) {
		return sniff.UnknownFormat, false, nil
	}
	return sniff.NewFormatID(r.format), true, nil
}

// check interface
var _ sniff.Detector = (*Regexp)(nil)
