// Package ber reads the identifier and length octets of BER encoded
// ASN.1 values without needing the whole value in memory.
//
// Only low tag numbers (single identifier octet) are supported which
// covers everything in the PKCS#7 envelope.
package ber

import (
	"encoding/asn1"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// Errors
var (
	ErrTruncated = errors.New("ber: truncated header")
	ErrBadLength = errors.New("ber: bad length")
	ErrHighTag   = errors.New("ber: high tag numbers not supported")
	ErrBadOID    = errors.New("ber: bad object identifier")
)

// Identifier octets used here
const (
	TagInteger             = byte(cbasn1.INTEGER)
	TagOctetString         = byte(cbasn1.OCTET_STRING)
	TagOID                 = byte(cbasn1.OBJECT_IDENTIFIER)
	TagSequence            = byte(cbasn1.SEQUENCE)
	TagSet                 = byte(cbasn1.SET)
	TagConstructedOctets   = TagOctetString | 0x20
	TagContextConstructed0 = 0xa0
)

// Indefinite is the Length of a value whose end is marked by
// end-of-contents octets
const Indefinite = -1

// maxLengthOctets is the most length octets we accept
const maxLengthOctets = 8

// Header is the identifier and length of a BER value
type Header struct {
	Tag    byte  // identifier octet
	Length int64 // number of content bytes or Indefinite
	Size   int   // number of bytes used by the header
}

// Constructed returns true if the value contains other values
func (h Header) Constructed() bool {
	return h.Tag&0x20 != 0
}

// IsEOC returns true for the end-of-contents marker
func (h Header) IsEOC() bool {
	return h.Tag == 0 && h.Length == 0
}

// Parse parses the header at the start of b
func Parse(b []byte) (h Header, err error) {
	if len(b) < 2 {
		return h, ErrTruncated
	}
	h.Tag, h.Size = b[0], 2
	if h.Tag&0x1f == 0x1f {
		return h, ErrHighTag
	}
	l := b[1]
	switch {
	case l < 0x80:
		h.Length = int64(l)
	case l == 0x80:
		if !h.Constructed() {
			return h, errors.Wrap(ErrBadLength, "indefinite length on primitive value")
		}
		h.Length = Indefinite
	case l == 0xff:
		return h, ErrBadLength
	default:
		n := int(l & 0x7f)
		if n > maxLengthOctets {
			return h, errors.Wrapf(ErrBadLength, "%d length octets", n)
		}
		if len(b) < 2+n {
			return h, ErrTruncated
		}
		var length int64
		for _, c := range b[2 : 2+n] {
			length = length<<8 | int64(c)
		}
		if length < 0 {
			return h, ErrBadLength
		}
		h.Length = length
		h.Size += n
	}
	return h, nil
}

// Read reads a header from r reading no more bytes than the header
// occupies.
//
// It returns io.EOF if r is exhausted before the first byte and
// io.ErrUnexpectedEOF if it ends part way through the header.
func Read(r io.Reader) (h Header, err error) {
	var buf [2 + maxLengthOctets]byte
	_, err = io.ReadFull(r, buf[:2])
	if err != nil {
		return h, err
	}
	n := 0
	if l := buf[1]; l > 0x80 && l != 0xff {
		n = int(l & 0x7f)
		if n > maxLengthOctets {
			return h, errors.Wrapf(ErrBadLength, "%d length octets", n)
		}
		_, err = io.ReadFull(r, buf[2:2+n])
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		if err != nil {
			return h, err
		}
	}
	return Parse(buf[:2+n])
}

// ParseOID parses a complete OBJECT IDENTIFIER from the start of b
// returning it and the number of bytes it used.
func ParseOID(b []byte) (oid asn1.ObjectIdentifier, n int, err error) {
	s := cryptobyte.String(b)
	if !s.ReadASN1ObjectIdentifier(&oid) {
		return nil, 0, ErrBadOID
	}
	return oid, len(b) - len(s), nil
}

// ParseInt parses a complete INTEGER from the start of b
func ParseInt(b []byte) (v int64, n int, err error) {
	s := cryptobyte.String(b)
	if !s.ReadASN1Integer(&v) {
		return 0, 0, errors.New("ber: bad integer")
	}
	return v, len(b) - len(s), nil
}

// ReadValue reads the contents of a definite length value of at most
// limit bytes whose header has already been read, returning the whole
// value including its header so it can be passed to cryptobyte.
func ReadValue(r io.Reader, h Header, limit int) ([]byte, error) {
	if h.Length == Indefinite {
		return nil, errors.Wrap(ErrBadLength, "indefinite length not allowed here")
	}
	if h.Length > int64(limit) {
		return nil, errors.Wrapf(ErrBadLength, "value is %d bytes, limit %d", h.Length, limit)
	}
	buf := Encode(h.Tag, int(h.Length))
	size := len(buf)
	buf = append(buf, make([]byte, h.Length)...)
	_, err := io.ReadFull(r, buf[size:])
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// Skip discards the contents of a definite length value whose header
// has already been read
func Skip(r io.Reader, h Header) error {
	if h.Length == Indefinite {
		return errors.Wrap(ErrBadLength, "can't skip indefinite length value")
	}
	n, err := io.CopyN(io.Discard, r, h.Length)
	if err == io.EOF && n < h.Length {
		err = io.ErrUnexpectedEOF
	}
	return err
}

// Encode returns the DER header for a value of tag and length.
//
// A negative length encodes the indefinite form.
func Encode(tag byte, length int) []byte {
	if length < 0 {
		return []byte{tag, 0x80}
	}
	if length < 0x80 {
		return []byte{tag, byte(length)}
	}
	var octets []byte
	for l := length; l > 0; l >>= 8 {
		octets = append([]byte{byte(l)}, octets...)
	}
	return append([]byte{tag, 0x80 | byte(len(octets))}, octets...)
}
