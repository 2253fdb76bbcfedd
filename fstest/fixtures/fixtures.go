// Package fixtures provides sample encoded files for the tests.
//
// The files in testdata were made from sample.pdf with the bzip2, xz,
// lz4 and zstd command line tools and "openssl cms -sign" (with
// -stream for the indefinite length BER variant).
package fixtures

import (
	"bytes"
	"embed"
	"encoding/base64"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

//go:embed testdata
var files embed.FS

// Names of the fixtures
const (
	PDF          = "sample.pdf"
	PDFBzip2     = "sample.pdf.bz2"
	PDFXZ        = "sample.pdf.xz"
	PDFLZ4       = "sample.pdf.lz4"
	PDFZstd      = "sample.pdf.zst"
	PDFSigned    = "sample.pdf.p7m"
	PDFSignedBER = "sample.pdf.ber.p7m"
	Detached     = "sample.detached.p7s"
)

// Get returns the contents of the named fixture
func Get(t testing.TB, name string) []byte {
	data, err := files.ReadFile("testdata/" + name)
	require.NoError(t, err)
	return data
}

// Base64 encodes data as MIME style base64 with lines of 76
// characters ending in CRLF
func Base64(data []byte) []byte {
	enc := base64.StdEncoding.EncodeToString(data)
	var out bytes.Buffer
	for len(enc) > 76 {
		out.WriteString(enc[:76])
		out.WriteString("\r\n")
		enc = enc[76:]
	}
	out.WriteString(enc)
	out.WriteString("\r\n")
	return out.Bytes()
}

// Gzip compresses data
func Gzip(t testing.TB, data []byte) []byte {
	var out bytes.Buffer
	zw := gzip.NewWriter(&out)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return out.Bytes()
}
