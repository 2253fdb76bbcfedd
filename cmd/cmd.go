// Package cmd implements the iotools command
//
// It is in a sub package so it's internals can be re-used elsewhere
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/iotools/iotools/lib/bridge"
	"github.com/iotools/iotools/lib/buildinfo"
	"github.com/iotools/iotools/lib/env"
	"github.com/iotools/iotools/lib/exitcode"
	"github.com/iotools/iotools/lib/storage"
	"github.com/iotools/iotools/sniff"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// Globals
var (
	// Flags
	configPath  string
	metricsAddr string
	flagConfig  = sniff.NewConfig()
	// Errors
	errorNotEnoughArguments = errors.New("not enough arguments")
	errorTooManyArguments   = errors.New("too many arguments")
	// ErrorUnknownFormat is returned by commands which found nothing
	// they recognised
	ErrorUnknownFormat = errors.New("format not recognised")

	metricsServer *MetricsServer
	osExit        = os.Exit
)

// Root is the main iotools command
var Root = &cobra.Command{
	Use:   "iotools",
	Short: "Identify and unwrap nested encodings of a stream.",
	Long: `
iotools works out what format a stream is in by looking at its first
few bytes. If the format is an encoding it knows how to undo, such as
base64, gzip or a PKCS#7 envelope, it decodes the stream and looks
again, up to --max-levels times.

The stream is only read once. Bytes needed again are held in memory up
to --threshold and spill to a temporary file after that.
`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flagSet := Root.PersistentFlags()
	flagSet.StringVarP(&configPath, "config", "", "", "YAML config file to read."+env.ShellExpandHelp)
	flagSet.StringVarP(&metricsAddr, "metrics-addr", "", "", "Serve Prometheus metrics on this address while running, e.g. localhost:9090")
	AddConfigFlags(flagSet, flagConfig)
	cobra.OnInitialize(initConfig)
}

// ShowVersion prints the version to w
func ShowVersion(w io.Writer) {
	osVersion, osKernel := buildinfo.GetOSVersion()
	linking, tagString := buildinfo.GetLinkingAndTags()

	_, _ = fmt.Fprintf(w, "iotools %s\n", sniff.Version)
	_, _ = fmt.Fprintf(w, "- os/version: %s\n", osVersion)
	_, _ = fmt.Fprintf(w, "- os/kernel: %s\n", osKernel)
	_, _ = fmt.Fprintf(w, "- os/type: %s\n", runtime.GOOS)
	_, _ = fmt.Fprintf(w, "- os/arch: %s\n", runtime.GOARCH)
	_, _ = fmt.Fprintf(w, "- go/version: %s\n", runtime.Version())
	_, _ = fmt.Fprintf(w, "- go/linking: %s\n", linking)
	_, _ = fmt.Fprintf(w, "- go/tags: %s\n", tagString)
}

// OpenInput opens the named file for reading, or standard input if
// name is "-"
func OpenInput(name string) (io.ReadCloser, error) {
	if name == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open input")
	}
	return f, nil
}

// Run the function then tidy up and exit with a code describing the
// error returned
func Run(cmd *cobra.Command, f func() error) {
	cmdErr := f()
	if metricsServer != nil {
		if err := metricsServer.Shutdown(context.Background()); err != nil {
			sniff.Errorf(nil, "Failed to stop metrics server: %v", err)
		}
	}
	if err := storage.RemovePending(); err != nil {
		sniff.Errorf(nil, "Failed to remove spill files: %v", err)
	}
	sniff.Debugf(nil, "%d go routines active", runtime.NumGoroutine())
	if cmdErr != nil {
		sniff.Errorf(nil, "Failed to %s: %v", cmd.Name(), cmdErr)
	}
	osExit(ExitCode(cmdErr))
}

// CheckArgs checks there are enough arguments and prints a message if not
func CheckArgs(MinArgs, MaxArgs int, cmd *cobra.Command, args []string) {
	if len(args) < MinArgs {
		_ = cmd.Usage()
		_, _ = fmt.Fprintf(os.Stderr, "Command %s needs %d arguments minimum: you provided %d non flag arguments: %q\n", cmd.Name(), MinArgs, len(args), args)
		osExit(ExitCode(errorNotEnoughArguments))
	} else if len(args) > MaxArgs {
		_ = cmd.Usage()
		_, _ = fmt.Fprintf(os.Stderr, "Command %s needs %d arguments maximum: you provided %d non flag arguments: %q\n", cmd.Name(), MaxArgs, len(args), args)
		osExit(ExitCode(errorTooManyArguments))
	}
}

// ExitCode works out the exit status for err
func ExitCode(err error) int {
	var producerErr *bridge.ProducerError
	switch {
	case err == nil:
		return exitcode.Success
	case errors.Is(err, errorNotEnoughArguments), errors.Is(err, errorTooManyArguments):
		return exitcode.UsageError
	case errors.Is(err, os.ErrNotExist):
		return exitcode.FileNotFound
	case errors.Is(err, sniff.ErrorNoDetectors):
		return exitcode.NoDetectors
	case errors.Is(err, bridge.ErrTimeout):
		return exitcode.Timeout
	case errors.As(err, &producerErr):
		return exitcode.ProducerError
	case errors.Is(err, ErrorUnknownFormat):
		return exitcode.Unknown
	}
	return exitcode.UncategorizedError
}

// initConfig is run by cobra after initialising the flags
func initConfig() {
	ci, err := LoadConfig(configPath, Root.PersistentFlags(), flagConfig)
	if err != nil {
		sniff.Logger.Fatalf("Failed to load config: %v", err)
	}
	sniff.SetConfig(ci)

	// Start the logger
	sniff.InitLogging(ci, nil)

	// Write the args for debug purposes
	sniff.Debugf("iotools", "Version %q starting with parameters %q", sniff.Version, os.Args)
	if configPath != "" {
		sniff.Debugf("iotools", "Using config file %q", configPath)
	}

	// Start the metrics server if configured
	if metricsAddr != "" {
		metricsServer, err = MetricsStart(metricsAddr)
		if err != nil {
			sniff.Logger.Fatalf("Failed to start metrics server: %v", err)
		}
		sniff.Infof("iotools", "Serving metrics on http://%s%s", metricsServer.Addr(), metricsPath)
	}
}

// Main runs iotools interpreting flags and commands out of os.Args
func Main() {
	if err := Root.Execute(); err != nil {
		sniff.Errorf(nil, "Fatal error: %v", err)
		osExit(exitcode.UsageError)
	}
}
