// Package cat provides the cat command.
package cat

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/iotools/iotools/cmd"
	"github.com/iotools/iotools/lib/bridge"
	"github.com/iotools/iotools/sniff"
	"github.com/iotools/iotools/sniff/all"
	"github.com/iotools/iotools/sniff/unwrap"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// Globals
var (
	count   = int64(-1)
	discard = false
)

func init() {
	cmd.Root.AddCommand(commandDefinition)
	cmdFlags := commandDefinition.Flags()
	cmdFlags.Int64VarP(&count, "count", "", count, "Only print N bytes of the decoded stream")
	cmdFlags.BoolVarP(&discard, "discard", "", discard, "Discard the output instead of printing")
}

var commandDefinition = &cobra.Command{
	Use:   "cat FILE|-",
	Short: `Decode a file and send the content to stdout.`,
	// Warning! "|" will be replaced by backticks below
	Long: strings.ReplaceAll(`Identifies the format of the file, undoes any encodings
found, up to |--max-levels| deep, and writes what is underneath to
standard output.

    iotools cat --max-levels 3 signed.p7m.b64 > document.pdf

The format at the last level is detected but not decoded, so to get at
the content of an n layer file use |--max-levels| n+1.

Use |-| to read standard input. The decoded stream is read ahead in the
background by the |--execution-model| workers using |--buffers| buffers
of |--buffer-size|.

Use |--count| to print only the start of the content, or |--discard|
to check a file decodes without printing it.
`, "|", "`"),
	Run: func(command *cobra.Command, args []string) {
		cmd.CheckArgs(1, 1, command, args)
		var w io.Writer = os.Stdout
		if discard {
			w = io.Discard
		}
		cmd.Run(command, func() error {
			return catFile(context.Background(), w, args[0], count)
		})
	},
}

// catFile writes up to count bytes of the decoded content of name to
// w, or all of it if count < 0
func catFile(ctx context.Context, w io.Writer, name string, count int64) (err error) {
	in, err := cmd.OpenInput(name)
	if err != nil {
		return err
	}
	s, err := unwrap.Open(ctx, in, all.NewRegistry(), nil)
	if err != nil {
		return err
	}
	sniff.Infof(name, "Decoding %v", s.Formats())
	r := bridge.ReadAhead(ctx, s, nil)
	if count >= 0 {
		_, err = io.CopyN(w, r, count)
		if err == io.EOF {
			err = nil
		}
	} else {
		_, err = io.Copy(w, r)
	}
	if err != nil {
		err = errors.Wrap(err, "failed to copy")
	}
	closeErr := r.Close()
	if errors.Is(closeErr, bridge.ErrTimeout) {
		// the producer is still reading s so it can't be closed
		sniff.Errorf(name, "Abandoning stream: %v", closeErr)
		if err == nil {
			err = closeErr
		}
		return err
	}
	if closeErr != nil && err == nil {
		err = closeErr
	}
	if closeErr = s.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}
