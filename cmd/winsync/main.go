// Package main provides the winsync command, an operator tool for the
// connection of one Windows replication agreement.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/docopt/docopt-go"
)

const usage = `winsync - Windows replication connection tool

Usage:
  winsync probe -c <file> [--log-level=<level>]
  winsync search -c <file> <base> [<filter>] [--scope=<scope>] [--attrs-only] [--log-level=<level>]
  winsync read-attribute -c <file> <dn> <attribute> [--log-level=<level>]
  winsync dirsync -c <file> [--follow] [--interval=<interval>] [--log-level=<level>]
  winsync check-password -c <file> <dn> [--password-file=<path>] [--log-level=<level>]
  winsync encrypt-credential --secret-file=<path> [--password-file=<path>]
  winsync version [--short]
  winsync -h | --help

Options:
  -h --help                   Show this screen.
  -c <file> --config=<file>   Agreement configuration file.
  --log-level=<level>         Override the configured log level.
  --scope=<scope>             Search scope: base, one or sub [default: base].
  --attrs-only                Return attribute names without values.
  --follow                    Keep polling for changes until interrupted.
  --interval=<interval>       Pause between dirsync rounds [default: 30s].
  --password-file=<path>      Read the password from a file, "-" for stdin [default: -].
  --secret-file=<path>        Master secret of the credential codec.
  --short                     Show only the version number.
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes the CLI and returns an exit code.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	helped := false
	parser := &docopt.Parser{
		HelpHandler: func(err error, text string) {
			if err != nil {
				fmt.Fprintln(stderr, text)
				return
			}
			helped = true
			fmt.Fprintln(stdout, text)
		},
	}

	opts, err := parser.ParseArgs(usage, args, "")
	if err != nil {
		return 1
	}
	if helped {
		return 0
	}

	cmd := &command{opts: opts, stdin: stdin, stdout: stdout, stderr: stderr}
	return cmd.dispatch()
}

// dispatch runs the selected subcommand. Without one it prints the usage.
func (c *command) dispatch() int {
	switch {
	case c.flag("probe"):
		return c.probe()
	case c.flag("search"):
		return c.search()
	case c.flag("read-attribute"):
		return c.readAttribute()
	case c.flag("dirsync"):
		return c.dirsync()
	case c.flag("check-password"):
		return c.checkPassword()
	case c.flag("encrypt-credential"):
		return c.encryptCredential()
	case c.flag("version"):
		return c.version()
	}
	fmt.Fprint(c.stderr, usage)
	return 1
}

// command carries the parsed arguments and the streams of one invocation.
type command struct {
	opts   docopt.Opts
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func (c *command) flag(key string) bool {
	v, _ := c.opts.Bool(key)
	return v
}

func (c *command) str(key string) string {
	v, _ := c.opts.String(key)
	return v
}

func (c *command) fail(format string, args ...interface{}) int {
	fmt.Fprintf(c.stderr, "Error: "+format+"\n", args...)
	return 1
}
