package sniff

import (
	"io"
	"sort"
)

// Detector reports whether a bounded header matches one of the
// formats it knows about.
//
// Detectors must be safe to call from multiple goroutines; they hold
// no per-stream state.
type Detector interface {
	// Name of the detector for logging and metrics
	Name() string
	// DetectedFormats returns every tag this detector can produce
	DetectedFormats() []Tag
	// DetectLength returns the number of header bytes needed to
	// detect any of the enabled formats
	DetectLength(enabled Set) int
	// Detect looks at header, which may be shorter than
	// DetectLength if the stream is short.
	//
	// It returns ok=false with a nil error for no match. An error
	// wrapping ErrorMalformedSignature is also treated as no match.
	Detect(enabled Set, header []byte) (id FormatID, ok bool, err error)
}

// Decoder unwraps one encoding
type Decoder interface {
	// Format is the tag of the encoding this decoder consumes
	Format() Tag
	// Decode returns a reader of the content underneath r. Closing
	// the returned reader does not close r.
	Decode(r io.Reader) (io.ReadCloser, error)
}

// Ratioer is an optional interface for a Decoder which describes how
// many encoded bytes it may need to produce a decoded byte.
//
// Ratio is the number of encoded bytes per decoded byte and Offset is
// the slack needed for headers and read ahead.
type Ratioer interface {
	Ratio() float64
	Offset() int
}

// DecoderRatio returns the ratio and offset for d, defaulting to 1
// and 0 if it doesn't implement Ratioer.
func DecoderRatio(d Decoder) (ratio float64, offset int) {
	if r, ok := d.(Ratioer); ok {
		return r.Ratio(), r.Offset()
	}
	return 1, 0
}

// Registry is the ordered list of detectors and the decoders by tag.
//
// Detector order is the tie break: the first detector to match wins.
// A Registry should be built once and not modified while in use.
type Registry struct {
	detectors []Detector
	decoders  map[Tag]Decoder
}

// NewRegistry makes an empty Registry
func NewRegistry() *Registry {
	return &Registry{
		decoders: make(map[Tag]Decoder),
	}
}

// AddDetector appends detectors to the end of the detector list
func (r *Registry) AddDetector(detectors ...Detector) *Registry {
	r.detectors = append(r.detectors, detectors...)
	return r
}

// AddDecoder registers decoders by their format. A later decoder for
// the same tag replaces an earlier one.
func (r *Registry) AddDecoder(decoders ...Decoder) *Registry {
	for _, d := range decoders {
		r.decoders[d.Format()] = d
	}
	return r
}

// Detectors returns the detectors in order
func (r *Registry) Detectors() []Detector {
	return r.detectors
}

// Decoder returns the decoder for tag or nil if there isn't one
func (r *Registry) Decoder(tag Tag) Decoder {
	return r.decoders[tag]
}

// Formats returns every tag the registry can detect, sorted
func (r *Registry) Formats() []Tag {
	set := Set{}
	for _, d := range r.detectors {
		for _, tag := range d.DetectedFormats() {
			set.Add(tag)
		}
	}
	return set.Tags()
}

// Decoders returns the tags which have a decoder, sorted
func (r *Registry) Decoders() []Tag {
	tags := make([]Tag, 0, len(r.decoders))
	for tag := range r.decoders {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}
