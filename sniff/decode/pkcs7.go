package decode

import (
	"io"

	"github.com/iotools/iotools/lib/ber"
	"github.com/iotools/iotools/sniff"
	"github.com/pkg/errors"
)

// ErrDetached is returned for a signature with no encapsulated content
var ErrDetached = errors.New("pkcs7: detached signature has no content")

// maxSmallValue limits the values read whole while walking to the
// content
const maxSmallValue = 64

// PKCS7 streams the encapsulated content out of a PKCS#7 / CMS
// SignedData or Data ContentInfo.
//
// Only the headers on the way to the content are parsed. The content
// may be a primitive OCTET STRING or a constructed one made of
// primitive segments, with definite or indefinite lengths. Nothing
// after the content (certificates, signer infos) is read and the
// signature is not verified.
type PKCS7 struct{}

// Format returns PKCS7
func (PKCS7) Format() sniff.Tag {
	return sniff.PKCS7
}

// Ratio is 1 as the content is copied verbatim
func (PKCS7) Ratio() float64 {
	return 1
}

// Offset covers the headers, version and digest algorithms before the
// content and a segment header
func (PKCS7) Offset() int {
	return 512
}

// Decode walks r to the start of the content
func (PKCS7) Decode(r io.Reader) (io.ReadCloser, error) {
	pr := &pkcs7Reader{in: r}
	if err := pr.open(); err != nil {
		return nil, errors.Wrap(err, "pkcs7")
	}
	return io.NopCloser(pr), nil
}

type pkcs7Reader struct {
	in          io.Reader
	constructed bool  // content is segmented
	definite    bool  // constructed content has a definite length
	left        int64 // bytes left in definite constructed content
	remaining   int64 // bytes left in the current segment
	err         error
}

// expect reads a header which must have tag
func (pr *pkcs7Reader) expect(tag byte, what string) (ber.Header, error) {
	h, err := ber.Read(pr.in)
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		return h, errors.Wrapf(err, "reading %s", what)
	}
	if h.Tag != tag {
		return h, errors.Errorf("%s: want tag 0x%02x, got 0x%02x", what, tag, h.Tag)
	}
	return h, nil
}

// readContentType reads an OBJECT IDENTIFIER returning the PKCS#7
// content type name and the bytes used
func (pr *pkcs7Reader) readContentType(what string) (name string, size int64, err error) {
	h, err := pr.expect(ber.TagOID, what)
	if err != nil {
		return "", 0, err
	}
	tlv, err := ber.ReadValue(pr.in, h, maxSmallValue)
	if err != nil {
		return "", 0, errors.Wrap(err, what)
	}
	oid, _, err := ber.ParseOID(tlv)
	if err != nil {
		return "", 0, errors.Wrap(err, what)
	}
	return ber.ContentTypeName(oid), int64(h.Size) + h.Length, nil
}

// open walks
//
//	ContentInfo ::= SEQUENCE { contentType, [0] EXPLICIT content }
//	SignedData ::= SEQUENCE { version, digestAlgorithms SET,
//	    encapContentInfo SEQUENCE { eContentType, [0] EXPLICIT eContent } ... }
//
// leaving the reader at the start of the content OCTET STRING.
func (pr *pkcs7Reader) open() error {
	if _, err := pr.expect(ber.TagSequence, "content info"); err != nil {
		return err
	}
	contentType, _, err := pr.readContentType("content type")
	if err != nil {
		return err
	}
	if _, err := pr.expect(ber.TagContextConstructed0, "content"); err != nil {
		return err
	}
	switch contentType {
	case "data":
	case "signedData":
		if err := pr.skipToEncapsulated(); err != nil {
			return err
		}
	case "":
		return errors.New("not a PKCS#7 content type")
	default:
		return errors.Errorf("unsupported content type %s", contentType)
	}
	h, err := ber.Read(pr.in)
	if err != nil {
		return errors.Wrap(err, "reading content")
	}
	switch h.Tag {
	case ber.TagOctetString:
		pr.remaining = h.Length
	case ber.TagConstructedOctets:
		pr.constructed = true
		pr.definite = h.Length != ber.Indefinite
		pr.left = h.Length
	default:
		return errors.Errorf("content: want OCTET STRING, got tag 0x%02x", h.Tag)
	}
	return nil
}

// skipToEncapsulated walks the SignedData to the eContent
func (pr *pkcs7Reader) skipToEncapsulated() error {
	if _, err := pr.expect(ber.TagSequence, "signed data"); err != nil {
		return err
	}
	h, err := pr.expect(ber.TagInteger, "version")
	if err != nil {
		return err
	}
	tlv, err := ber.ReadValue(pr.in, h, maxSmallValue)
	if err != nil {
		return errors.Wrap(err, "version")
	}
	if _, _, err = ber.ParseInt(tlv); err != nil {
		return errors.Wrap(err, "version")
	}
	h, err = pr.expect(ber.TagSet, "digest algorithms")
	if err != nil {
		return err
	}
	if err = ber.Skip(pr.in, h); err != nil {
		return errors.Wrap(err, "digest algorithms")
	}
	encap, err := pr.expect(ber.TagSequence, "encapsulated content info")
	if err != nil {
		return err
	}
	_, size, err := pr.readContentType("encapsulated content type")
	if err != nil {
		return err
	}
	if encap.Length != ber.Indefinite && encap.Length == size {
		return ErrDetached
	}
	h, err = ber.Read(pr.in)
	if err != nil {
		return errors.Wrap(err, "reading encapsulated content")
	}
	if h.IsEOC() {
		return ErrDetached
	}
	if h.Tag != ber.TagContextConstructed0 {
		return errors.Errorf("encapsulated content: want tag 0x%02x, got 0x%02x", ber.TagContextConstructed0, h.Tag)
	}
	return nil
}

// nextSegment reads the header of the next primitive segment of
// constructed content returning io.EOF at the end of the content
func (pr *pkcs7Reader) nextSegment() error {
	if pr.definite && pr.left <= 0 {
		return io.EOF
	}
	h, err := ber.Read(pr.in)
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		return err
	}
	if h.IsEOC() {
		if pr.definite {
			return errors.New("pkcs7: end of contents inside definite length content")
		}
		return io.EOF
	}
	if h.Tag != ber.TagOctetString {
		return errors.Errorf("pkcs7: content segment: want OCTET STRING, got tag 0x%02x", h.Tag)
	}
	if pr.definite {
		pr.left -= int64(h.Size) + h.Length
		if pr.left < 0 {
			return errors.New("pkcs7: content segment overruns content")
		}
	}
	pr.remaining = h.Length
	return nil
}

// Read the content
func (pr *pkcs7Reader) Read(p []byte) (n int, err error) {
	for pr.err == nil && pr.remaining == 0 {
		if !pr.constructed {
			pr.err = io.EOF
			break
		}
		pr.err = pr.nextSegment()
	}
	if pr.err != nil {
		return 0, pr.err
	}
	if int64(len(p)) > pr.remaining {
		p = p[:pr.remaining]
	}
	n, err = pr.in.Read(p)
	pr.remaining -= int64(n)
	if err == io.EOF {
		if pr.remaining > 0 {
			err = io.ErrUnexpectedEOF
		} else {
			err = nil
		}
	}
	if err != nil {
		pr.err = err
	}
	return n, err
}

// check interfaces
var (
	_ sniff.Decoder = PKCS7{}
	_ sniff.Ratioer = PKCS7{}
)
