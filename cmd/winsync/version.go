package main

import (
	"fmt"
	"runtime"
)

// Version information, set at build time with
// go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version   = "0.3.0"
	commit    = "unknown"
	buildDate = "unknown"
)

func (c *command) version() int {
	if c.flag("--short") {
		fmt.Fprintln(c.stdout, version)
		return 0
	}

	fmt.Fprintf(c.stdout, "winsync version %s\n", version)
	fmt.Fprintf(c.stdout, "  Commit:     %s\n", commit)
	fmt.Fprintf(c.stdout, "  Built:      %s\n", buildDate)
	fmt.Fprintf(c.stdout, "  Go version: %s\n", runtime.Version())
	fmt.Fprintf(c.stdout, "  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
	return 0
}
