package unwrap

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"math/rand"
	"path/filepath"
	"testing"
	"testing/iotest"

	"github.com/iotools/iotools/fstest/fixtures"
	"github.com/iotools/iotools/fstest/mockdetect"
	"github.com/iotools/iotools/lib/readers"
	"github.com/iotools/iotools/lib/storage"
	"github.com/iotools/iotools/sniff"
	"github.com/iotools/iotools/sniff/all"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openAll(t *testing.T, in io.Reader, reg *sniff.Registry, opt *Options) ([]sniff.FormatID, []byte) {
	s, err := Open(context.Background(), in, reg, opt)
	require.NoError(t, err)
	got, err := io.ReadAll(s)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	return s.Formats(), got
}

func formats(ids ...sniff.FormatID) []sniff.FormatID {
	return ids
}

var (
	pdf17   = sniff.NewFormatIDVersion(sniff.PDF, "1.7")
	base64  = sniff.NewFormatID(sniff.Base64)
	pkcs7v1 = sniff.NewFormatIDVersion(sniff.PKCS7, "1")
	gzip    = sniff.NewFormatID(sniff.Gzip)
)

func TestRoundTrip(t *testing.T) {
	pdf := fixtures.Get(t, fixtures.PDF)
	for _, mode := range mockdetect.SeekModes {
		t.Run(mode.String(), func(t *testing.T) {
			src := mockdetect.NewSource(pdf, mode)
			got, content := openAll(t, src, all.NewRegistry(), &Options{})
			assert.Equal(t, formats(pdf17), got)
			assert.Equal(t, pdf, content)
			assert.True(t, mockdetect.Unwrap(src).IsClosed())
		})
	}
}

func TestNested(t *testing.T) {
	pdf := fixtures.Get(t, fixtures.PDF)
	for _, test := range []struct {
		name      string
		in        []byte
		maxLevels int
		want      []sniff.FormatID
		content   []byte
	}{
		{
			name:    "Base64",
			in:      fixtures.Base64(pdf),
			want:    formats(base64, pdf17),
			content: pdf,
		}, {
			name:      "MaxLevels",
			in:        fixtures.Base64(pdf),
			maxLevels: 1,
			want:      formats(base64),
			content:   fixtures.Base64(pdf),
		}, {
			name:    "Signed",
			in:      fixtures.Get(t, fixtures.PDFSigned),
			want:    formats(pkcs7v1, pdf17),
			content: pdf,
		}, {
			name:    "SignedBER",
			in:      fixtures.Get(t, fixtures.PDFSignedBER),
			want:    formats(pkcs7v1, pdf17),
			content: pdf,
		}, {
			name:    "Bzip2",
			in:      fixtures.Get(t, fixtures.PDFBzip2),
			want:    formats(sniff.NewFormatIDVersion(sniff.Bzip2, "9"), pdf17),
			content: pdf,
		}, {
			name:    "Zstd",
			in:      fixtures.Get(t, fixtures.PDFZstd),
			want:    formats(sniff.NewFormatID(sniff.Zstd), pdf17),
			content: pdf,
		}, {
			name:    "LZ4",
			in:      fixtures.Get(t, fixtures.PDFLZ4),
			want:    formats(sniff.NewFormatID(sniff.LZ4), pdf17),
			content: pdf,
		}, {
			name:    "NoDecoder",
			in:      fixtures.Get(t, fixtures.PDFXZ),
			want:    formats(sniff.NewFormatID(sniff.XZ)),
			content: fixtures.Get(t, fixtures.PDFXZ),
		}, {
			name:      "Deep",
			in:        fixtures.Gzip(t, fixtures.Base64(fixtures.Get(t, fixtures.PDFSigned))),
			maxLevels: 4,
			want:      formats(gzip, base64, pkcs7v1, pdf17),
			content:   pdf,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			dir := t.TempDir()
			opt := &Options{
				MaxLevels: test.maxLevels,
				Threshold: 1024,
				TempDir:   dir,
			}
			got, content := openAll(t, mockdetect.NewSource(test.in, mockdetect.SeekModeNone), all.NewRegistry(), opt)
			assert.Equal(t, test.want, got)
			assert.Equal(t, test.content, content)

			// and a reader which returns one byte at a time
			got, content = openAll(t, iotest.OneByteReader(bytes.NewReader(test.in)), all.NewRegistry(), opt)
			assert.Equal(t, test.want, got)
			assert.Equal(t, test.content, content)

			leaked, err := filepath.Glob(filepath.Join(dir, storage.TempPattern))
			require.NoError(t, err)
			assert.Empty(t, leaked)
		})
	}
}

func TestDisabled(t *testing.T) {
	pdf := fixtures.Get(t, fixtures.PDF)
	opt := &Options{Enabled: sniff.NewSet(sniff.Gzip, sniff.Base64, sniff.Zip, sniff.PNG)}
	got, content := openAll(t, bytes.NewReader(pdf), all.NewRegistry(), opt)
	assert.Equal(t, formats(sniff.UnknownFormat), got)
	assert.Equal(t, pdf, content)

	// base64 is detected but PDF inside isn't
	got, content = openAll(t, bytes.NewReader(fixtures.Base64(pdf)), all.NewRegistry(), opt)
	assert.Equal(t, formats(base64, sniff.UnknownFormat), got)
	assert.Equal(t, pdf, content)
}

func TestDisabledMatchIgnored(t *testing.T) {
	liar := mockdetect.New("liar", 4, func(sniff.Set, []byte) (sniff.FormatID, bool, error) {
		return pdf17, true, nil
	}, sniff.Text)
	reg := sniff.NewRegistry().AddDetector(liar)
	got, _ := openAll(t, bytes.NewReader([]byte("potato")), reg, &Options{Enabled: sniff.NewSet(sniff.Text)})
	assert.Equal(t, formats(sniff.UnknownFormat), got)
	assert.Equal(t, 1, liar.Calls())
}

func TestFirstMatchWins(t *testing.T) {
	a := mockdetect.Prefix("a", "A", "po")
	b := mockdetect.Prefix("b", "B", "pot")
	never := mockdetect.Prefix("never", "C", "")
	reg := sniff.NewRegistry().AddDetector(a, b, never)
	got, content := openAll(t, bytes.NewReader([]byte("potato")), reg, nil)
	assert.Equal(t, formats(sniff.NewFormatID("A")), got)
	assert.Equal(t, "potato", string(content))
	assert.Equal(t, 0, b.Calls())
	assert.Equal(t, 0, never.Calls())

	// each detector sees only as much header as it asked for
	assert.Equal(t, [][]byte{[]byte("po")}, a.Headers())
}

func TestHeaderTruncatedPerDetector(t *testing.T) {
	short := mockdetect.Prefix("short", "S", "xx")
	long := mockdetect.Prefix("long", "L", "potato")
	reg := sniff.NewRegistry().AddDetector(short, long)
	got, _ := openAll(t, bytes.NewReader([]byte("potatoes")), reg, nil)
	assert.Equal(t, formats(sniff.NewFormatID("L")), got)
	assert.Equal(t, [][]byte{[]byte("po")}, short.Headers())
	assert.Equal(t, [][]byte{[]byte("potato")}, long.Headers())
}

func TestMockChain(t *testing.T) {
	a := mockdetect.StripPrefix("A", "A:")
	b := mockdetect.StripPrefix("B", "B:")
	reg := sniff.NewRegistry().
		AddDetector(
			mockdetect.Prefix("a", "A", "A:"),
			mockdetect.Prefix("b", "B", "B:"),
			mockdetect.Prefix("text", sniff.Text, "hello"),
		).
		AddDecoder(a, b)

	src := mockdetect.NewSource([]byte("A:B:hello, world"), mockdetect.SeekModeNone)
	s, err := Open(context.Background(), src, reg, &Options{MaxLevels: 3})
	require.NoError(t, err)
	assert.Equal(t, formats(sniff.NewFormatID("A"), sniff.NewFormatID("B"), sniff.NewFormatID(sniff.Text)), s.Formats())
	assert.Equal(t, sniff.NewFormatID("A"), s.Format())
	content, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, "hello, world", string(content))

	// A is opened for the headers at levels 1 and 2 and the final stream
	assert.Equal(t, 3, a.Opened())
	assert.Equal(t, 2, a.Closed())
	assert.Equal(t, 2, b.Opened())
	assert.Equal(t, 1, b.Closed())

	require.NoError(t, s.Close())
	assert.Equal(t, 3, a.Closed())
	assert.Equal(t, 2, b.Closed())
	assert.True(t, mockdetect.Unwrap(src).IsClosed())

	// Close twice is fine but reading isn't
	require.NoError(t, s.Close())
	_, err = s.Read(make([]byte, 1))
	assert.Equal(t, sniff.ErrorInvalidState, err)
}

func TestDetectorErrorDegrades(t *testing.T) {
	oldMetrics := sniff.DefaultMetrics
	sniff.DefaultMetrics = sniff.NewMetrics("test")
	defer func() { sniff.DefaultMetrics = oldMetrics }()

	broken := mockdetect.Failing("broken", sniff.PDF, 8, mockdetect.ErrMock)
	malformed := mockdetect.Failing("malformed", sniff.PDF, 8, sniff.Malformed("bad header"))
	reg := sniff.NewRegistry().AddDetector(broken, malformed, mockdetect.Prefix("pdf", sniff.PDF, "%PDF-"))

	s, err := Open(context.Background(), bytes.NewReader(fixtures.Get(t, fixtures.PDF)), reg, nil)
	require.NoError(t, err)
	assert.Equal(t, formats(sniff.NewFormatID(sniff.PDF)), s.Formats())
	assert.True(t, errors.Is(s.DetectorErrors(), mockdetect.ErrMock))
	require.NoError(t, s.Close())

	assert.Equal(t, 1.0, testutil.ToFloat64(sniff.DefaultMetrics.DetectorErrors.WithLabelValues("broken")))
	assert.Equal(t, 0.0, testutil.ToFloat64(sniff.DefaultMetrics.DetectorErrors.WithLabelValues("malformed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sniff.DefaultMetrics.Detections.WithLabelValues("PDF", "0")))
}

func TestAllDetectorsFail(t *testing.T) {
	reg := sniff.NewRegistry().AddDetector(
		mockdetect.Failing("one", sniff.PDF, 8, mockdetect.ErrMock),
		mockdetect.Failing("two", sniff.Text, 8, mockdetect.ErrMock),
	)
	s, err := Open(context.Background(), bytes.NewReader([]byte("hello")), reg, nil)
	require.NoError(t, err)
	assert.Equal(t, formats(sniff.UnknownFormat), s.Formats())
	require.Error(t, s.DetectorErrors())
	assert.Contains(t, s.DetectorErrors().Error(), "2 errors")
	require.NoError(t, s.Close())
}

func TestDecoderErrorSurfaces(t *testing.T) {
	reg := sniff.NewRegistry().
		AddDetector(mockdetect.Prefix("wrap", "WRAP", "W:")).
		AddDecoder(mockdetect.FailingDecoder("WRAP", mockdetect.ErrMock))
	src := mockdetect.NewSource([]byte("W:hello"), mockdetect.SeekModeNone)
	_, err := Open(context.Background(), src, reg, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, mockdetect.ErrMock))
	assert.True(t, mockdetect.Unwrap(src).IsClosed())
}

func TestSourceErrorSurfaces(t *testing.T) {
	reg := sniff.NewRegistry().AddDetector(mockdetect.Prefix("pdf", sniff.PDF, "%PDF-"))
	src := mockdetect.NewFailingSource([]byte("%PDF-1.7"), 2, mockdetect.ErrMock)
	_, err := Open(context.Background(), src, reg, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, mockdetect.ErrMock))
}

func TestTruncatedDuringDetection(t *testing.T) {
	gz := fixtures.Gzip(t, fixtures.Get(t, fixtures.PDF))
	bz := fixtures.Get(t, fixtures.PDFBzip2)
	for _, test := range []struct {
		name string
		in   []byte
	}{
		{"Gzip", gz[:len(gz)/2]},
		{"Bzip2", bz[:len(bz)/2]},
	} {
		t.Run(test.name, func(t *testing.T) {
			src := mockdetect.NewSource(test.in, mockdetect.SeekModeNone)
			_, err := Open(context.Background(), src, all.NewRegistry(), nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, io.ErrUnexpectedEOF), err.Error())
			assert.Contains(t, err.Error(), "level 1")
			assert.True(t, mockdetect.Unwrap(src).IsClosed())
		})
	}
}

func TestNoDetectors(t *testing.T) {
	_, err := Open(context.Background(), bytes.NewReader([]byte("x")), sniff.NewRegistry(), nil)
	assert.True(t, errors.Is(err, sniff.ErrorNoDetectors))

	reg := sniff.NewRegistry().AddDetector(mockdetect.Prefix("pdf", sniff.PDF, "%PDF-"))
	_, err = Open(context.Background(), bytes.NewReader([]byte("x")), reg, &Options{Enabled: sniff.NewSet(sniff.Text)})
	assert.True(t, errors.Is(err, sniff.ErrorNoDetectors))
}

func TestEmptySource(t *testing.T) {
	got, content := openAll(t, bytes.NewReader(nil), all.NewRegistry(), nil)
	assert.Equal(t, formats(sniff.UnknownFormat), got)
	assert.Empty(t, content)
}

func TestContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Open(ctx, bytes.NewReader([]byte("hello")), all.NewRegistry(), nil)
	assert.Equal(t, context.Canceled, err)
}

func TestDetect(t *testing.T) {
	src := mockdetect.NewSource(fixtures.Base64(fixtures.Get(t, fixtures.PDF)), mockdetect.SeekModeNone)
	got, err := Detect(context.Background(), src, all.NewRegistry(), nil)
	require.NoError(t, err)
	assert.Equal(t, formats(base64, pdf17), got)
	assert.True(t, mockdetect.Unwrap(src).IsClosed())
}

// greedy is a decoder which reads far more than its ratio and offset
// admit to
type greedy struct {
	*mockdetect.Decoder
}

func (g greedy) Decode(r io.Reader) (io.ReadCloser, error) {
	return g.Decoder.Decode(bufio.NewReaderSize(r, 4096))
}

func TestMarkExpired(t *testing.T) {
	content := append([]byte("G:hello"), bytes.Repeat([]byte{'.'}, 8192)...)
	reg := sniff.NewRegistry().
		AddDetector(
			mockdetect.Prefix("g", "G", "G:"),
			mockdetect.Prefix("text", sniff.Text, "hello"),
		).
		AddDecoder(greedy{mockdetect.StripPrefix("G", "G:").SetRatio(1, 0)})

	// a forward only source can't go back far enough
	_, err := Open(context.Background(), mockdetect.NewSource(content, mockdetect.SeekModeNone), reg, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, readers.ErrMarkExpired))

	// but a seekable one is rewound
	got, decoded := openAll(t, mockdetect.NewSource(content, mockdetect.SeekModeRegular), reg, nil)
	assert.Equal(t, formats(sniff.NewFormatID("G"), sniff.NewFormatID(sniff.Text)), got)
	assert.Equal(t, content[2:], decoded)
}

func TestIncompressibleGzip(t *testing.T) {
	noise := make([]byte, 100000)
	_, _ = rand.New(rand.NewSource(1)).Read(noise)
	content := append([]byte("%PDF-1.7\n"), noise...)
	for _, test := range []struct {
		name string
		in   []byte
		want []sniff.FormatID
	}{
		{"Gzip", fixtures.Gzip(t, content), formats(gzip, pdf17)},
		{"Base64Gzip", fixtures.Base64(fixtures.Gzip(t, content)), formats(base64, gzip, pdf17)},
	} {
		t.Run(test.name, func(t *testing.T) {
			src := mockdetect.NewSource(test.in, mockdetect.SeekModeNone)
			got, decoded := openAll(t, src, all.NewRegistry(), &Options{MaxLevels: 4})
			assert.Equal(t, test.want, got)
			assert.Equal(t, content, decoded)
		})
	}
}

func TestLargePassThrough(t *testing.T) {
	dir := t.TempDir()
	content := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("0123456789"), 100000)...)
	opt := &Options{Threshold: 512, TempDir: dir}
	src := mockdetect.NewSource(content, mockdetect.SeekModeNone)
	got, decoded := openAll(t, src, all.NewRegistry(), opt)
	assert.Equal(t, formats(sniff.NewFormatIDVersion(sniff.PDF, "1.4")), got)
	assert.Equal(t, content, decoded)
	assert.Equal(t, int64(len(content)), mockdetect.Unwrap(src).BytesRead())
	leaked, err := filepath.Glob(filepath.Join(dir, storage.TempPattern))
	require.NoError(t, err)
	assert.Empty(t, leaked)
}

func TestNewOptions(t *testing.T) {
	ctx, ci := sniff.AddConfig(context.Background())
	ci.MaxLevels = 5
	ci.Formats = "pdf, base64"
	ci.Threshold = 4096
	ci.TempDir = "/spill"
	opt := NewOptions(ctx)
	assert.Equal(t, &Options{
		MaxLevels: 5,
		Enabled:   sniff.NewSet(sniff.PDF, sniff.Base64),
		Threshold: 4096,
		TempDir:   "/spill",
	}, opt)

	fixed := (&Options{}).fixup(ctx, all.NewRegistry())
	assert.Equal(t, 5, fixed.MaxLevels)
	assert.Equal(t, sniff.AllFormats(), fixed.Enabled)
	assert.Equal(t, sniff.SizeSuffix(4096), fixed.Threshold)
}

func TestMarkLimit(t *testing.T) {
	assert.Equal(t, 100, markLimit(100, nil))
	a := mockdetect.StripPrefix("A", "A:").SetRatio(2, 10)
	b := mockdetect.StripPrefix("B", "B:").SetRatio(1, 0)
	// b is applied last so inflated first: 100 -> 101 -> 202+10+1
	assert.Equal(t, 213, markLimit(100, []sniff.Decoder{a, b}))
}
