// Package all builds the default registry of every built in detector
// and decoder.
package all

import (
	"github.com/iotools/iotools/sniff"
	"github.com/iotools/iotools/sniff/decode"
	"github.com/iotools/iotools/sniff/detect"
)

// NewRegistry returns a Registry with every built in detector and
// decoder.
//
// Detector order is the tie break. Binary signatures go first, then
// the structured text formats, then base64 and finally the MIME
// sniffer as a catch all.
func NewRegistry() *sniff.Registry {
	return sniff.NewRegistry().
		AddDetector(
			detect.NewMagic(),
			detect.NewPKCS7(),
			detect.HTML,
			detect.NewXML(),
			detect.JSON,
			detect.NewBase64(),
			detect.NewMime(),
		).
		AddDecoder(
			decode.Base64{},
			decode.Gzip{},
			decode.Bzip2{},
			decode.Zstd{},
			decode.LZ4{},
			decode.PKCS7{},
		)
}
