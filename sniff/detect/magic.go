// Package detect contains the built in format detectors.
package detect

import (
	"bytes"
	"strings"

	"github.com/iotools/iotools/sniff"
)

// Signature maps a byte pattern at a specific offset to a format.
type Signature struct {
	// Format reported when the signature matches
	Format sniff.Tag
	// Offset is the byte offset where the magic bytes are expected
	Offset int
	// Magic is the byte sequence to match at Offset
	Magic []byte
	// Version is reported with the format if set
	Version string
	// VersionLength bytes following Magic are reported as the
	// version if Version isn't set
	VersionLength int
}

// length is the number of header bytes the signature needs
func (s *Signature) length() int {
	return s.Offset + len(s.Magic) + s.VersionLength
}

// match returns the FormatID if header matches
func (s *Signature) match(header []byte) (sniff.FormatID, bool) {
	end := s.Offset + len(s.Magic)
	if end > len(header) || !bytes.Equal(header[s.Offset:end], s.Magic) {
		return sniff.FormatID{}, false
	}
	version := s.Version
	if version == "" && s.VersionLength > 0 {
		tail := header[end:]
		if len(tail) > s.VersionLength {
			tail = tail[:s.VersionLength]
		}
		version = strings.TrimFunc(string(tail), func(r rune) bool {
			return r <= ' ' || r > '~'
		})
	}
	return sniff.NewFormatIDVersion(s.Format, version), true
}

// Signatures is the built in signature table.
//
// Longer matches for the same prefix must come first.
var Signatures = []Signature{
	{Format: sniff.PDF, Magic: []byte("%PDF-"), VersionLength: 3},
	{Format: sniff.Zip, Magic: []byte{0x50, 0x4B, 0x03, 0x04}},
	{Format: sniff.Zip, Magic: []byte{0x50, 0x4B, 0x05, 0x06}, Version: "empty"},
	{Format: sniff.Gzip, Magic: []byte{0x1F, 0x8B, 0x08}},
	{Format: sniff.Bzip2, Magic: []byte("BZh"), VersionLength: 1},
	{Format: sniff.XZ, Magic: []byte{0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00}},
	{Format: sniff.Zstd, Magic: []byte{0x28, 0xB5, 0x2F, 0xFD}},
	{Format: sniff.LZ4, Magic: []byte{0x04, 0x22, 0x4D, 0x18}},
	{Format: sniff.PNG, Magic: []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}},
	{Format: sniff.JPEG, Magic: []byte{0xFF, 0xD8, 0xFF}},
	{Format: sniff.GIF, Magic: []byte("GIF87a"), Version: "87a"},
	{Format: sniff.GIF, Magic: []byte("GIF89a"), Version: "89a"},
	{Format: sniff.TIFF, Magic: []byte{0x49, 0x49, 0x2A, 0x00}, Version: "little-endian"},
	{Format: sniff.TIFF, Magic: []byte{0x4D, 0x4D, 0x00, 0x2A}, Version: "big-endian"},
}

// Magic detects formats by their signature (magic number) at a fixed
// offset, trying each signature in order.
type Magic struct {
	signatures []Signature
	formats    []sniff.Tag
}

// NewMagic makes a Magic detector from the signatures passed in, or
// the built in Signatures if there are none.
func NewMagic(signatures ...Signature) *Magic {
	if len(signatures) == 0 {
		signatures = Signatures
	}
	set := sniff.Set{}
	for i := range signatures {
		set.Add(signatures[i].Format)
	}
	return &Magic{
		signatures: signatures,
		formats:    set.Tags(),
	}
}

// Name of the detector
func (m *Magic) Name() string {
	return "magic"
}

// DetectedFormats returns the tags in the signature table
func (m *Magic) DetectedFormats() []sniff.Tag {
	return m.formats
}

// DetectLength is the longest signature of an enabled format
func (m *Magic) DetectLength(enabled sniff.Set) int {
	length := 0
	for i := range m.signatures {
		s := &m.signatures[i]
		if enabled.Contains(s.Format) && s.length() > length {
			length = s.length()
		}
	}
	return length
}

// Detect returns the first enabled signature matching header
func (m *Magic) Detect(enabled sniff.Set, header []byte) (sniff.FormatID, bool, error) {
	for i := range m.signatures {
		s := &m.signatures[i]
		if !enabled.Contains(s.Format) {
			continue
		}
		if id, ok := s.match(header); ok {
			return id, true, nil
		}
	}
	return sniff.UnknownFormat, false, nil
}

// check interface
var _ sniff.Detector = (*Magic)(nil)
