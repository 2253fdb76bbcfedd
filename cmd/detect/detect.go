// Package detect provides the detect command.
package detect

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/iotools/iotools/cmd"
	"github.com/iotools/iotools/lib/errcount"
	"github.com/iotools/iotools/sniff"
	"github.com/iotools/iotools/sniff/all"
	"github.com/iotools/iotools/sniff/unwrap"
	"github.com/spf13/cobra"
)

// Globals
var (
	jsonOutput = false
)

func init() {
	cmd.Root.AddCommand(commandDefinition)
	cmdFlags := commandDefinition.Flags()
	cmdFlags.BoolVarP(&jsonOutput, "json", "", jsonOutput, "Print the chain as JSON")
}

var commandDefinition = &cobra.Command{
	Use:   "detect FILE|- [FILE|-]...",
	Short: `Print the chain of formats found in each file.`,
	// Warning! "|" will be replaced by backticks below
	Long: strings.ReplaceAll(`Prints the formats found in each file, outermost first, one
per line along with the version if the format has one.

    $ iotools detect signed.p7m.b64
    0 BASE64
    1 PKCS7 1
    2 PDF 1.7

Use |-| to read standard input. Use |--formats| to restrict the formats
which may be detected and |--max-levels| to say how deep to go. The
last format is detected but not decoded.

With more than one file each line is prefixed with the file name.

The exit code is 7 if the outermost format of any file was not
recognised.
`, "|", "`"),
	Run: func(command *cobra.Command, args []string) {
		cmd.CheckArgs(1, 1<<16, command, args)
		cmd.Run(command, func() error {
			return detectAll(context.Background(), os.Stdout, args)
		})
	},
}

// Level is one entry of the chain in the JSON output
type Level struct {
	Level   int    `json:"level"`
	Format  string `json:"format"`
	Version string `json:"version,omitempty"`
}

// Result is the JSON output for one file
type Result struct {
	Name  string  `json:"name"`
	Chain []Level `json:"chain"`
	Error string  `json:"error,omitempty"`
}

func detectAll(ctx context.Context, w io.Writer, names []string) error {
	reg := all.NewRegistry()
	ec := errcount.New()
	var results []Result
	unknown := false
	for _, name := range names {
		chain, err := detectFile(ctx, reg, name)
		result := Result{Name: name, Chain: toLevels(chain)}
		if err != nil {
			sniff.Errorf(name, "Failed to detect: %v", err)
			ec.Add(err)
			result.Error = err.Error()
		} else if len(chain) > 0 && chain[0].IsUnknown() {
			unknown = true
		}
		if jsonOutput {
			results = append(results, result)
			continue
		}
		prefix := ""
		if len(names) > 1 {
			prefix = name + ": "
		}
		for _, l := range result.Chain {
			_, _ = fmt.Fprintf(w, "%s%s\n", prefix, l)
		}
	}
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			ec.Add(err)
		}
	}
	if err := ec.Err("detect failed"); err != nil {
		return err
	}
	if unknown {
		return cmd.ErrorUnknownFormat
	}
	return nil
}

func detectFile(ctx context.Context, reg *sniff.Registry, name string) ([]sniff.FormatID, error) {
	in, err := cmd.OpenInput(name)
	if err != nil {
		return nil, err
	}
	return unwrap.Detect(ctx, in, reg, nil)
}

func toLevels(chain []sniff.FormatID) []Level {
	levels := make([]Level, len(chain))
	for i, id := range chain {
		levels[i] = Level{Level: i, Format: string(id.Format), Version: id.Version}
	}
	return levels
}

// String renders the level as a line of text output
func (l Level) String() string {
	if l.Version == "" {
		return fmt.Sprintf("%d %s", l.Level, l.Format)
	}
	return fmt.Sprintf("%d %s %s", l.Level, l.Format, l.Version)
}
