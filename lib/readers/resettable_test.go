package readers

import (
	"bytes"
	"compress/flate"
	"io"
	"testing"
	"testing/iotest"

	"github.com/iotools/iotools/lib/storage"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// forwardOnly hides everything but Read
type forwardOnly struct {
	io.Reader
}

func newTestResettable(t *testing.T, in io.Reader, opt *ResettableOptions) *Resettable {
	store, err := storage.NewThresholdStore(storage.Options{Threshold: 64, TempDir: t.TempDir()})
	require.NoError(t, err)
	r := NewResettable(in, store, opt)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func readN(t *testing.T, r io.Reader, n int) []byte {
	buf := make([]byte, n)
	got, err := io.ReadFull(r, buf)
	require.NoError(t, err)
	return buf[:got]
}

func patternBytes(n int) []byte {
	b, _ := io.ReadAll(NewPatternReader(int64(n)))
	return b
}

func TestInflateLimit(t *testing.T) {
	for _, test := range []struct {
		limit  int
		ratio  float64
		offset int
		want   int
	}{
		{0, 1, 0, 1},
		{100, 1, 0, 101},
		{100, 1.4, 1028, 1169},
		{100, 1.33, 4, 138},
		{10, 0, 5, 16},
		{10, -2, 0, 11},
		{3, 0.5, 0, 2},
	} {
		assert.Equal(t, test.want, InflateLimit(test.limit, test.ratio, test.offset), "%+v", test)
	}
}

func TestResettablePassThrough(t *testing.T) {
	data := patternBytes(1000)
	store := storage.NewMemoryStore()
	r := NewResettable(forwardOnly{bytes.NewReader(data)}, store, nil)

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, int64(0), store.Size(), "nothing recorded without a mark")
	assert.Equal(t, int64(1000), r.Position())
	assert.Equal(t, ErrNotMarked, r.Reset())
}

func TestResettableMarkReset(t *testing.T) {
	data := patternBytes(1000)
	r := newTestResettable(t, forwardOnly{bytes.NewReader(data)}, nil)

	r.Mark(100)
	assert.Equal(t, data[:60], readN(t, r, 60))
	require.NoError(t, r.Reset())
	assert.Equal(t, int64(0), r.Position())

	// replay then carry on from the source
	assert.Equal(t, data[:90], readN(t, r, 90))

	// reset again, the mark stays until replaced
	require.NoError(t, r.Reset())
	assert.Equal(t, data[:100], readN(t, r, 100))
	require.NoError(t, r.Reset())

	// rest of the stream
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestResettableMarkExpired(t *testing.T) {
	data := patternBytes(1000)
	r := newTestResettable(t, forwardOnly{bytes.NewReader(data)}, nil)

	assert.Equal(t, data[:10], readN(t, r, 10))
	r.Mark(50)
	assert.Equal(t, data[10:61], readN(t, r, 51))
	err := r.Reset()
	assert.True(t, errors.Is(err, ErrMarkExpired), err)

	// a new mark starts again
	r.Mark(5)
	assert.Equal(t, data[61:66], readN(t, r, 5))
	require.NoError(t, r.Reset())
	assert.Equal(t, data[61:70], readN(t, r, 9))
}

func TestResettableMarkExactLimitAtEOF(t *testing.T) {
	data := patternBytes(20)
	r := newTestResettable(t, forwardOnly{bytes.NewReader(data)}, nil)

	r.Mark(20)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// reading EOF doesn't use up the mark
	require.NoError(t, r.Reset())
	got, err = io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestResettableMarkInsideReplay(t *testing.T) {
	data := patternBytes(300)
	r := newTestResettable(t, forwardOnly{bytes.NewReader(data)}, nil)

	r.Mark(100)
	readN(t, r, 80)
	require.NoError(t, r.Reset())
	readN(t, r, 20)

	// mark part way through the replay
	r.Mark(50)
	assert.Equal(t, data[20:70], readN(t, r, 50))
	require.NoError(t, r.Reset())
	assert.Equal(t, int64(20), r.Position())
	assert.Equal(t, data[20:120], readN(t, r, 100))
}

func TestResettableResetToBeginningFromStore(t *testing.T) {
	data := patternBytes(500)
	r := newTestResettable(t, forwardOnly{bytes.NewReader(data)}, &ResettableOptions{RetainAll: true})

	readN(t, r, 300)
	r.Mark(10)
	readN(t, r, 100)
	require.NoError(t, r.ResetToBeginning())
	assert.Equal(t, ErrNotMarked, r.Reset(), "mark forgotten")
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestResettableResetToBeginningInsideWindow(t *testing.T) {
	data := patternBytes(500)
	r := newTestResettable(t, forwardOnly{bytes.NewReader(data)}, nil)

	r.Mark(100)
	readN(t, r, 50)
	require.NoError(t, r.ResetToBeginning())
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestResettableResetToBeginningSeeker(t *testing.T) {
	data := patternBytes(500)
	r := newTestResettable(t, bytes.NewReader(data), nil)

	readN(t, r, 400)
	require.NoError(t, r.ResetToBeginning())
	assert.Equal(t, int64(0), r.Position())
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestResettableCantRewind(t *testing.T) {
	data := patternBytes(500)
	for _, in := range []io.Reader{
		forwardOnly{bytes.NewReader(data)},
		NoSeeker{bytes.NewReader(data)},
	} {
		r := newTestResettable(t, in, nil)
		readN(t, r, 10)
		err := r.ResetToBeginning()
		assert.True(t, errors.Is(err, ErrCantRewind), err)
	}
}

func TestResettableSpills(t *testing.T) {
	data := patternBytes(10000)
	dir := t.TempDir()
	store, err := storage.NewThresholdStore(storage.Options{Threshold: 1000, TempDir: dir})
	require.NoError(t, err)
	r := NewResettable(iotest.OneByteReader(bytes.NewReader(data)), store, nil)

	r.Mark(5000)
	readN(t, r, 4000)
	assert.True(t, store.Spilled())
	require.NoError(t, r.Reset())
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.False(t, store.Spilled(), "store emptied once past the mark")

	require.NoError(t, r.Close())
}

func TestResettableSourceError(t *testing.T) {
	boom := errors.New("boom")
	r := newTestResettable(t, io.MultiReader(bytes.NewReader([]byte("abc")), ErrorReader{boom}), nil)
	r.Mark(10)
	buf := make([]byte, 10)
	n, err := io.ReadAtLeast(r, buf, 4)
	assert.Equal(t, 3, n)
	assert.Equal(t, boom, err)

	// the bytes before the error can still be replayed
	require.NoError(t, r.Reset())
	assert.Equal(t, "abc", string(readN(t, r, 3)))
}

func TestResettableReadByte(t *testing.T) {
	data := patternBytes(10)
	r := newTestResettable(t, forwardOnly{bytes.NewReader(data)}, nil)
	var _ io.ByteReader = r
	r.Mark(3)
	for i := 0; i < 3; i++ {
		b, err := r.ReadByte()
		require.NoError(t, err)
		assert.Equal(t, data[i], b)
	}
	require.NoError(t, r.Reset())
	rest, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, data, rest)
	_, err = r.ReadByte()
	assert.Equal(t, io.EOF, err)
}

// A decompressor over a Resettable reads exactly what it needs, so
// the inflated mark is enough to decode again after a reset.
func TestResettableRedecode(t *testing.T) {
	plain := bytes.Repeat([]byte("the quick brown fox "), 500)
	var compressed bytes.Buffer
	w, err := flate.NewWriter(&compressed, flate.BestCompression)
	require.NoError(t, err)
	_, err = w.Write(plain)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r := newTestResettable(t, forwardOnly{bytes.NewReader(compressed.Bytes())}, nil)
	const limit = 100
	r.Mark(InflateLimit(limit, 1, compressed.Len()))
	dec := flate.NewReader(r)
	assert.Equal(t, plain[:limit], readN(t, dec, limit))
	require.NoError(t, dec.Close())

	require.NoError(t, r.Reset())
	dec = flate.NewReader(r)
	got, err := io.ReadAll(dec)
	require.NoError(t, err)
	assert.Equal(t, plain, got)
}

func TestResettableReadEmpty(t *testing.T) {
	r := newTestResettable(t, ErrorReader{errors.New("not called")}, nil)
	n, err := r.Read(nil)
	assert.Equal(t, 0, n)
	assert.NoError(t, err)
}
