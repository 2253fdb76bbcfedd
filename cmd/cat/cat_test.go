package cat

import (
	"bytes"
	"context"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/iotools/iotools/cmd"
	"github.com/iotools/iotools/fstest/fixtures"
	"github.com/iotools/iotools/lib/exitcode"
	"github.com/iotools/iotools/sniff"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name string, data []byte) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path
}

func TestCat(t *testing.T) {
	pdf := fixtures.Get(t, fixtures.PDF)
	for _, test := range []struct {
		name string
		in   []byte
	}{
		{"Plain", pdf},
		{"Gzip", fixtures.Gzip(t, pdf)},
		{"Bzip2", fixtures.Get(t, fixtures.PDFBzip2)},
		{"LZ4", fixtures.Get(t, fixtures.PDFLZ4)},
		{"Signed", fixtures.Get(t, fixtures.PDFSigned)},
		{"Base64", fixtures.Base64(pdf)},
	} {
		t.Run(test.name, func(t *testing.T) {
			path := writeFile(t, "in", test.in)
			var buf bytes.Buffer
			require.NoError(t, catFile(context.Background(), &buf, path, -1))
			assert.Equal(t, pdf, buf.Bytes())
		})
	}
}

func TestCatExecutionModels(t *testing.T) {
	pdf := fixtures.Get(t, fixtures.PDF)
	path := writeFile(t, "in.gz", fixtures.Gzip(t, pdf))
	for _, model := range []sniff.ExecutionModel{sniff.ExecutionSingleThread, sniff.ExecutionSharedPool, sniff.ExecutionOnePerInstance} {
		t.Run(model.String(), func(t *testing.T) {
			ctx, ci := sniff.AddConfig(context.Background())
			ci.ExecutionModel = model
			ci.BufferSize = 100
			ci.Buffers = 2
			var buf bytes.Buffer
			require.NoError(t, catFile(ctx, &buf, path, -1))
			assert.Equal(t, pdf, buf.Bytes())
		})
	}
}

func TestCatCount(t *testing.T) {
	pdf := fixtures.Get(t, fixtures.PDF)
	path := writeFile(t, "in.zst", fixtures.Get(t, fixtures.PDFZstd))
	var buf bytes.Buffer
	require.NoError(t, catFile(context.Background(), &buf, path, 8))
	assert.Equal(t, pdf[:8], buf.Bytes())

	buf.Reset()
	require.NoError(t, catFile(context.Background(), &buf, path, int64(len(pdf)+100)))
	assert.Equal(t, pdf, buf.Bytes())
}

func TestCatMaxLevels(t *testing.T) {
	signed := fixtures.Get(t, fixtures.PDFSigned)
	path := writeFile(t, "in.b64", fixtures.Base64(signed))

	var buf bytes.Buffer
	require.NoError(t, catFile(context.Background(), &buf, path, -1))
	assert.Equal(t, signed, buf.Bytes())

	ctx, ci := sniff.AddConfig(context.Background())
	ci.MaxLevels = 3
	buf.Reset()
	require.NoError(t, catFile(ctx, &buf, path, -1))
	assert.Equal(t, fixtures.Get(t, fixtures.PDF), buf.Bytes())
}

func TestCatErrors(t *testing.T) {
	var buf bytes.Buffer
	err := catFile(context.Background(), &buf, filepath.Join(t.TempDir(), "missing"), -1)
	assert.Equal(t, exitcode.FileNotFound, cmd.ExitCode(err))

	// truncated inside the detection window fails to open
	gz := fixtures.Gzip(t, fixtures.Get(t, fixtures.PDF))
	path := writeFile(t, "short.gz", gz[:len(gz)/2])
	err = catFile(context.Background(), &buf, path, -1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	assert.Equal(t, exitcode.UncategorizedError, cmd.ExitCode(err))
	assert.Equal(t, 0, buf.Len())

	// truncated well past it fails part way through the copy
	noise := make([]byte, 200000)
	_, _ = rand.New(rand.NewSource(1)).Read(noise)
	gz = fixtures.Gzip(t, append([]byte("%PDF-1.7\n"), noise...))
	path = writeFile(t, "long.gz", gz[:len(gz)*3/4])
	buf.Reset()
	err = catFile(context.Background(), &buf, path, -1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	assert.Equal(t, exitcode.ProducerError, cmd.ExitCode(err))
	assert.NotEqual(t, 0, buf.Len())
}
