package detect

import (
	"encoding/base64"

	"github.com/iotools/iotools/sniff"
)

const (
	base64Length = 1024
	// base64MinLength is the fewest alphabet characters which count
	// as base64 so short words don't match
	base64MinLength = 16
)

// Base64 detects base64 text in either the standard or the URL safe
// alphabet, optionally broken into lines.
//
// The URL safe alphabet is reported with version "url".
type Base64 struct{}

// NewBase64 makes a Base64 detector
func NewBase64() Base64 {
	return Base64{}
}

// Name of the detector
func (Base64) Name() string {
	return "base64"
}

// DetectedFormats returns BASE64
func (Base64) DetectedFormats() []sniff.Tag {
	return []sniff.Tag{sniff.Base64}
}

// DetectLength returns the header length needed
func (Base64) DetectLength(enabled sniff.Set) int {
	if !enabled.Contains(sniff.Base64) {
		return 0
	}
	return base64Length
}

// Detect checks the header only contains the base64 alphabet and that
// the complete quanta decode
func (Base64) Detect(enabled sniff.Set, header []byte) (sniff.FormatID, bool, error) {
	if !enabled.Contains(sniff.Base64) {
		return sniff.UnknownFormat, false, nil
	}
	clean := make([]byte, 0, len(header))
	var std, url, padding bool
	for _, c := range header {
		switch {
		case c == '\r' || c == '\n':
			continue
		case c == '=':
			padding = true
		case padding:
			// only more padding may follow padding
			return sniff.UnknownFormat, false, nil
		case c == '+' || c == '/':
			std = true
		case c == '-' || c == '_':
			url = true
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		default:
			return sniff.UnknownFormat, false, nil
		}
		clean = append(clean, c)
	}
	if len(clean) < base64MinLength || (std && url) {
		return sniff.UnknownFormat, false, nil
	}
	enc, version := base64.StdEncoding, ""
	if url {
		enc, version = base64.URLEncoding, "url"
	}
	// The header may end part way through a quantum and unpadded
	// input may end part way through one too.
	quanta := clean[:len(clean)/4*4]
	if padding {
		quanta = clean
	}
	if _, err := enc.DecodeString(string(quanta)); err != nil {
		return sniff.UnknownFormat, false, nil
	}
	return sniff.NewFormatIDVersion(sniff.Base64, version), true, nil
}

// check interface
var _ sniff.Detector = Base64{}
