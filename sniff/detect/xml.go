package detect

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"github.com/iotools/iotools/sniff"
	"golang.org/x/text/encoding/htmlindex"
)

const xmlLength = 1024

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// XML detects XML documents by tokenising the header until the root
// element starts.
//
// Comments, processing instructions, directives and white space may
// come before the root element. A header which runs out after an
// <?xml ...?> declaration still counts as XML.
type XML struct{}

// NewXML makes an XML detector
func NewXML() XML {
	return XML{}
}

// Name of the detector
func (XML) Name() string {
	return "xml"
}

// DetectedFormats returns XML
func (XML) DetectedFormats() []sniff.Tag {
	return []sniff.Tag{sniff.XML}
}

// DetectLength returns the header length needed
func (XML) DetectLength(enabled sniff.Set) int {
	if !enabled.Contains(sniff.XML) {
		return 0
	}
	return xmlLength
}

// Detect tokenises the header
func (XML) Detect(enabled sniff.Set, header []byte) (sniff.FormatID, bool, error) {
	if !enabled.Contains(sniff.XML) {
		return sniff.UnknownFormat, false, nil
	}
	header = bytes.TrimPrefix(header, utf8BOM)
	if !bytes.HasPrefix(bytes.TrimLeft(header, " \t\r\n"), []byte("<")) {
		return sniff.UnknownFormat, false, nil
	}
	dec := xml.NewDecoder(bytes.NewReader(header))
	dec.Strict = true
	dec.CharsetReader = charsetReader
	var (
		declared bool
		version  string
	)
	for {
		tok, err := dec.RawToken()
		if err != nil {
			if !declared {
				return sniff.UnknownFormat, false, nil
			}
			if err == io.EOF || isUnexpectedEOF(err) {
				return sniff.NewFormatIDVersion(sniff.XML, version), true, nil
			}
			return sniff.UnknownFormat, false, sniff.Malformed("xml after declaration: %v", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			return sniff.NewFormatIDVersion(sniff.XML, version), true, nil
		case xml.ProcInst:
			if t.Target == "xml" {
				declared = true
				version = procInstAttr(string(t.Inst), "version")
			}
		case xml.CharData:
			if len(bytes.TrimSpace(t)) != 0 {
				return sniff.UnknownFormat, false, nil
			}
		case xml.Directive:
			// <!DOCTYPE html> is left for the HTML detector
			if strings.HasPrefix(strings.ToLower(string(t)), "doctype html") {
				return sniff.UnknownFormat, false, nil
			}
		case xml.Comment:
		default:
			return sniff.UnknownFormat, false, nil
		}
	}
}

// charsetReader decodes the encodings named in XML declarations into
// UTF-8
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, err
	}
	return enc.NewDecoder().Reader(input), nil
}

func isUnexpectedEOF(err error) bool {
	if serr, ok := err.(*xml.SyntaxError); ok {
		return serr.Msg == "unexpected EOF"
	}
	return err == io.ErrUnexpectedEOF
}

// procInstAttr finds name="value" or name='value' in the body of a
// processing instruction
func procInstAttr(inst, name string) string {
	i := strings.Index(inst, name+"=")
	if i < 0 {
		return ""
	}
	rest := inst[i+len(name)+1:]
	if rest == "" || (rest[0] != '"' && rest[0] != '\'') {
		return ""
	}
	quote := rest[0]
	rest = rest[1:]
	end := strings.IndexByte(rest, quote)
	if end < 0 {
		return ""
	}
	return rest[:end]
}

// check interface
var _ sniff.Detector = XML{}
