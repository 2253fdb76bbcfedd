// Identify and unwrap nested encodings of a stream
package main

import (
	"github.com/iotools/iotools/cmd"
	_ "github.com/iotools/iotools/cmd/all" // import all commands
)

func main() {
	cmd.Main()
}
