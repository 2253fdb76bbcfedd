// Package version provides the version command.
package version

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/coreos/go-semver/semver"
	"github.com/iotools/iotools/cmd"
	"github.com/iotools/iotools/sniff"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	checkURL = ""
)

func init() {
	cmd.Root.AddCommand(commandDefinition)
	cmdFlags := commandDefinition.Flags()
	cmdFlags.StringVarP(&checkURL, "check", "", "", "Compare with the version published at this URL")
}

var commandDefinition = &cobra.Command{
	Use:   "version",
	Short: `Show the version number.`,
	Long: `Show the iotools version number, the go version, the build target
OS and architecture, the runtime OS and kernel version and bitness,
build tags and the type of executable (static or dynamic).

For example:

    $ iotools version
    iotools v0.1.0
    - os/version: ubuntu 22.04 (64 bit)
    - os/kernel: 5.15.0-91-generic (x86_64)
    - os/type: linux
    - os/arch: amd64
    - go/version: go1.22.4
    - go/linking: static
    - go/tags: none

If you supply the --check flag with the URL of a text file holding a
version number, then it will compare that with yours.

    $ iotools version --check https://example.com/iotools/version.txt
    yours:  0.1.0
    latest: 0.2.0         (released 2024-06-16)
      upgrade available
`,
	Run: func(command *cobra.Command, args []string) {
		cmd.CheckArgs(0, 0, command, args)
		if checkURL != "" {
			cmd.Run(command, func() error {
				return CheckVersion(context.Background(), os.Stdout, checkURL)
			})
		} else {
			cmd.ShowVersion(os.Stdout)
		}
	},
}

// strip a leading v off the string
func stripV(s string) string {
	if len(s) > 0 && s[0] == 'v' {
		return s[1:]
	}
	return s
}

// GetVersion gets the version published at url
func GetVersion(ctx context.Context, url string) (v *semver.Version, date time.Time, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, date, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, date, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, date, errors.New(resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, date, err
	}
	vs := strings.TrimSpace(string(body))
	vs = strings.TrimPrefix(vs, "iotools ")
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		date, err = http.ParseTime(lm)
		if err != nil {
			return nil, date, err
		}
	}
	v, err = semver.NewVersion(stripV(vs))
	return v, date, err
}

// CheckVersion compares the running version with the one published
// at url
func CheckVersion(ctx context.Context, w io.Writer, url string) error {
	vCurrent, err := semver.NewVersion(stripV(sniff.Version))
	if err != nil {
		return errors.Wrap(err, "failed to parse version")
	}
	const timeFormat = "2006-01-02"

	v, t, err := GetVersion(ctx, url)
	if err != nil {
		return errors.Wrap(err, "failed to get latest version")
	}
	released := ""
	if !t.IsZero() {
		released = "(released " + t.Format(timeFormat) + ")"
	}
	_, _ = fmt.Fprintf(w, "yours:  %-13v\n", vCurrent)
	_, _ = fmt.Fprintln(w, strings.TrimSpace(fmt.Sprintf("latest: %-13v %s", v, released)))
	if v.Compare(*vCurrent) > 0 {
		_, _ = fmt.Fprintf(w, "  upgrade available\n")
	}
	if vCurrent.PreRelease == "DEV" {
		_, _ = fmt.Fprintln(w, "Your version is compiled from git so comparisons may be wrong.")
	}
	return nil
}
