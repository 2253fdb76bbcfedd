// Package all imports all the commands
package all

import (
	// Active commands
	_ "github.com/iotools/iotools/cmd"
	_ "github.com/iotools/iotools/cmd/cat"
	_ "github.com/iotools/iotools/cmd/detect"
	_ "github.com/iotools/iotools/cmd/version"
)
