package cmd

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/iotools/iotools/lib/bridge"
	"github.com/iotools/iotools/lib/exitcode"
	"github.com/iotools/iotools/lib/storage"
	"github.com/iotools/iotools/sniff"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags(t *testing.T, args ...string) (*pflag.FlagSet, *sniff.ConfigInfo) {
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fc := sniff.NewConfig()
	AddConfigFlags(flagSet, fc)
	require.NoError(t, flagSet.Parse(args))
	return flagSet, fc
}

func writeConfig(t *testing.T, text string) string {
	path := filepath.Join(t.TempDir(), "iotools.yaml")
	require.NoError(t, os.WriteFile(path, []byte(text), 0600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	flagSet, fc := newFlags(t)
	ci, err := LoadConfig("", flagSet, fc)
	require.NoError(t, err)
	assert.Equal(t, sniff.NewConfig(), ci)
}

func TestLoadConfigLayers(t *testing.T) {
	path := writeConfig(t, `
max_levels: 3
threshold: 1Mi
buffers: 8
formats: [PDF, BASE64]
`)
	t.Setenv("IOTOOLS_MAX_LEVELS", "4")
	t.Setenv("IOTOOLS_EXECUTION_MODEL", "single-thread")

	flagSet, fc := newFlags(t, "--max-levels", "5", "--close-timeout", "2s")
	ci, err := LoadConfig(path, flagSet, fc)
	require.NoError(t, err)

	// flags beat the environment which beats the file
	assert.Equal(t, 5, ci.MaxLevels)
	assert.Equal(t, sniff.ExecutionSingleThread, ci.ExecutionModel)
	assert.Equal(t, sniff.SizeSuffix(sniff.Mebi), ci.Threshold)
	assert.Equal(t, 8, ci.Buffers)
	assert.Equal(t, "PDF,BASE64", ci.Formats)
	assert.Equal(t, 2*time.Second, ci.CloseTimeoutDuration())

	// unset flags don't override
	assert.Equal(t, sniff.NewConfig().PoolSize, ci.PoolSize)
}

func TestLoadConfigErrors(t *testing.T) {
	flagSet, fc := newFlags(t)
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), flagSet, fc)
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "max_levels: [\n"), flagSet, fc)
	assert.Error(t, err)

	t.Setenv("IOTOOLS_BUFFERS", "lots")
	_, err = LoadConfig("", flagSet, fc)
	assert.Error(t, err)
}

func TestLoadConfigBadFlag(t *testing.T) {
	flagSet, fc := newFlags(t, "--max-levels", "0")
	_, err := LoadConfig("", flagSet, fc)
	assert.ErrorContains(t, err, "max_levels")
}

func TestFlagNames(t *testing.T) {
	flagSet, _ := newFlags(t)
	for _, name := range []string{"log-level", "use-json-log", "threshold", "temp-dir", "execution-model",
		"pool-size", "buffers", "buffer-size", "close-timeout", "max-levels", "formats"} {
		assert.NotNil(t, flagSet.Lookup(name), name)
	}
}

func TestExitCode(t *testing.T) {
	_, notFound := os.Open(filepath.Join(t.TempDir(), "nope"))
	for _, test := range []struct {
		err  error
		want int
	}{
		{nil, exitcode.Success},
		{errorNotEnoughArguments, exitcode.UsageError},
		{errorTooManyArguments, exitcode.UsageError},
		{errors.Wrap(notFound, "failed to open input"), exitcode.FileNotFound},
		{errors.Wrap(sniff.ErrorNoDetectors, "level 0"), exitcode.NoDetectors},
		{bridge.ErrTimeout, exitcode.Timeout},
		{errors.Wrap(&bridge.ProducerError{Err: io.ErrUnexpectedEOF}, "read"), exitcode.ProducerError},
		{ErrorUnknownFormat, exitcode.Unknown},
		{errors.New("potato"), exitcode.UncategorizedError},
	} {
		assert.Equal(t, test.want, ExitCode(test.err), "%v", test.err)
	}
}

func TestOpenInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0600))
	in, err := OpenInput(path)
	require.NoError(t, err)
	data, err := io.ReadAll(in)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	require.NoError(t, in.Close())

	_, err = OpenInput(path + ".missing")
	assert.Equal(t, exitcode.FileNotFound, ExitCode(err))

	in, err = OpenInput("-")
	require.NoError(t, err)
	assert.NoError(t, in.Close())
}

func TestShowVersion(t *testing.T) {
	var buf bytes.Buffer
	ShowVersion(&buf)
	assert.Contains(t, buf.String(), "iotools "+sniff.Version+"\n")
	assert.Contains(t, buf.String(), "- go/version: ")
}

func TestMetricsServer(t *testing.T) {
	defer func() {
		sniff.DefaultMetrics = nil
		storage.DefaultMetrics = nil
		bridge.DefaultMetrics = nil
	}()
	s, err := MetricsStart("127.0.0.1:0")
	require.NoError(t, err)
	require.NotNil(t, sniff.DefaultMetrics)
	require.NotNil(t, storage.DefaultMetrics)
	require.NotNil(t, bridge.DefaultMetrics)

	sniff.DefaultMetrics.OnDetect(sniff.NewFormatID(sniff.PDF), 0)

	resp, err := http.Get("http://" + s.Addr() + metricsPath)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `iotools_sniff_detections_total{format="PDF",level="0"} 1`)
	assert.Contains(t, string(body), "go_goroutines")

	require.NoError(t, s.Shutdown(context.Background()))
	_, err = http.Get("http://" + s.Addr() + metricsPath)
	assert.Error(t, err)
}

func TestRunExitCode(t *testing.T) {
	var got []int
	oldExit := osExit
	osExit = func(code int) { got = append(got, code) }
	defer func() { osExit = oldExit }()

	Run(Root, func() error { return nil })
	Run(Root, func() error { return ErrorUnknownFormat })
	CheckArgs(1, 1, Root, nil)
	CheckArgs(0, 0, Root, []string{"a"})
	assert.Equal(t, []int{exitcode.Success, exitcode.Unknown, exitcode.UsageError, exitcode.UsageError}, got)
}

func TestLoadConfigExpandsTempDir(t *testing.T) {
	t.Setenv("SPILL_TEST", "spill")
	flagSet, fc := newFlags(t, "--temp-dir", filepath.Join("$SPILL_TEST", "here"))
	ci, err := LoadConfig("", flagSet, fc)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("spill", "here"), ci.TempDir)
}
