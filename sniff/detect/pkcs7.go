package detect

import (
	"strconv"

	"github.com/iotools/iotools/lib/ber"
	"github.com/iotools/iotools/sniff"
)

const pkcs7Length = 64

// PKCS7 detects a PKCS#7 / CMS ContentInfo by parsing its outer
// SEQUENCE header and content type OID.
//
// The header is a prefix so only the headers are parsed, never whole
// values. For signedData the SignedData version is reported.
type PKCS7 struct{}

// NewPKCS7 makes a PKCS7 detector
func NewPKCS7() PKCS7 {
	return PKCS7{}
}

// Name of the detector
func (PKCS7) Name() string {
	return "pkcs7"
}

// DetectedFormats returns PKCS7
func (PKCS7) DetectedFormats() []sniff.Tag {
	return []sniff.Tag{sniff.PKCS7}
}

// DetectLength returns the header length needed
func (PKCS7) DetectLength(enabled sniff.Set) int {
	if !enabled.Contains(sniff.PKCS7) {
		return 0
	}
	return pkcs7Length
}

// Detect parses the ContentInfo header
func (PKCS7) Detect(enabled sniff.Set, header []byte) (sniff.FormatID, bool, error) {
	if !enabled.Contains(sniff.PKCS7) || len(header) < 2 || header[0] != ber.TagSequence {
		return sniff.UnknownFormat, false, nil
	}
	outer, err := ber.Parse(header)
	if err != nil {
		return sniff.UnknownFormat, false, sniff.Malformed("pkcs7 content info: %v", err)
	}
	rest := header[outer.Size:]
	if len(rest) == 0 || rest[0] != ber.TagOID {
		// some other DER structure such as a certificate
		return sniff.UnknownFormat, false, nil
	}
	oid, n, err := ber.ParseOID(rest)
	if err != nil {
		return sniff.UnknownFormat, false, sniff.Malformed("pkcs7 content type: %v", err)
	}
	name := ber.ContentTypeName(oid)
	if name == "" {
		return sniff.UnknownFormat, false, nil
	}
	if outer.Length != ber.Indefinite && outer.Length < int64(n) {
		return sniff.UnknownFormat, false, sniff.Malformed("pkcs7 content info length %d too short", outer.Length)
	}
	version := ""
	if oid.Equal(ber.OIDSignedData) {
		version = signedDataVersion(rest[n:])
	}
	return sniff.NewFormatIDVersion(sniff.PKCS7, version), true, nil
}

// signedDataVersion reads the version from
//
//	[0] EXPLICIT SignedData ::= SEQUENCE { version INTEGER, ... }
//
// returning "" if the header is too short or not as expected.
func signedDataVersion(b []byte) string {
	for _, tag := range []byte{ber.TagContextConstructed0, ber.TagSequence} {
		if len(b) == 0 || b[0] != tag {
			return ""
		}
		h, err := ber.Parse(b)
		if err != nil {
			return ""
		}
		b = b[h.Size:]
	}
	v, _, err := ber.ParseInt(b)
	if err != nil {
		return ""
	}
	return strconv.FormatInt(v, 10)
}

// check interface
var _ sniff.Detector = PKCS7{}
