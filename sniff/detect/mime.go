package detect

import (
	"github.com/gabriel-vasile/mimetype"
	"github.com/iotools/iotools/sniff"
)

// mimeReadLimit is the number of bytes mimetype looks at by default
const mimeReadLimit = 3072

// mimeTags maps MIME types to format tags. mimetype knows the aliases
// so only the canonical names are needed.
var mimeTags = []struct {
	mime string
	tag  sniff.Tag
}{
	{"application/pdf", sniff.PDF},
	{"application/gzip", sniff.Gzip},
	{"application/x-bzip2", sniff.Bzip2},
	{"application/zstd", sniff.Zstd},
	{"application/x-xz", sniff.XZ},
	{"application/zip", sniff.Zip},
	{"image/png", sniff.PNG},
	{"image/jpeg", sniff.JPEG},
	{"image/gif", sniff.GIF},
	{"image/tiff", sniff.TIFF},
	{"text/html", sniff.HTML},
	{"application/json", sniff.JSON},
	{"text/xml", sniff.XML},
	{"text/plain", sniff.Text},
}

// Mime detects formats with github.com/gabriel-vasile/mimetype.
//
// It walks from the detected MIME type up through its parents so
// anything textual which isn't recognised more specifically comes out
// as TEXT. Put it last in the chain as a catch all.
type Mime struct {
	formats []sniff.Tag
}

// NewMime makes a Mime detector
func NewMime() *Mime {
	set := sniff.Set{}
	for _, mt := range mimeTags {
		set.Add(mt.tag)
	}
	return &Mime{formats: set.Tags()}
}

// Name of the detector
func (m *Mime) Name() string {
	return "mime"
}

// DetectedFormats returns the tags mapped from MIME types
func (m *Mime) DetectedFormats() []sniff.Tag {
	return m.formats
}

// DetectLength is the mimetype read limit if any of its formats are
// enabled
func (m *Mime) DetectLength(enabled sniff.Set) int {
	if !enabled.Intersects(m.formats) {
		return 0
	}
	return mimeReadLimit
}

// Detect runs mimetype over the header
func (m *Mime) Detect(enabled sniff.Set, header []byte) (sniff.FormatID, bool, error) {
	if len(header) == 0 {
		return sniff.UnknownFormat, false, nil
	}
	for mt := mimetype.Detect(header); mt != nil; mt = mt.Parent() {
		for _, entry := range mimeTags {
			if enabled.Contains(entry.tag) && mt.Is(entry.mime) {
				return sniff.NewFormatID(entry.tag), true, nil
			}
		}
	}
	return sniff.UnknownFormat, false, nil
}

// check interface
var _ sniff.Detector = (*Mime)(nil)
