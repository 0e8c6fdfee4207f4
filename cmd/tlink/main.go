// Package main provides the tlink CLI entrypoint.
//
// Usage:
//
//	tlink [global options] <command> [options]
//
// Exit codes:
//   - 0: success
//   - 1: connection, transfer or stream failure
//   - 2: usage or configuration error
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/tlink/cli/cmd"
	"github.com/pithecene-io/tlink/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	os.Exit(run(os.Args, cmd.DefaultEnv()))
}

// newApp assembles the command tree around env.
func newApp(env *cmd.Env) *cli.App {
	return &cli.App{
		Name:      "tlink",
		Usage:     "Robot telemetry and log sync client",
		Version:   fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		Flags:     cmd.GlobalFlags(),
		Writer:    env.Stdout,
		ErrWriter: env.Stderr,
		// Exit handling happens in run so tests can observe the code.
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: []*cli.Command{
			cmd.TailCommand(env),
			cmd.ListCommand(env),
			cmd.GetCommand(env),
			cmd.SyncCommand(env),
			cmd.CaptureCommand(),
			cmd.VersionCommand(commit),
		},
	}
}

// run executes the CLI and returns the process exit code.
func run(args []string, env *cmd.Env) int {
	err := newApp(env).Run(args)
	code, msg := exitStatus(err)
	if msg != "" {
		fmt.Fprintln(env.Stderr, msg)
	}
	return code
}

// exitStatus maps an action error to an exit code and the message to print.
// cli.Exit codes are preserved, including through wrapping.
func exitStatus(err error) (int, string) {
	if err == nil {
		return 0, ""
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		// cli.Exit("", N).Error() returns "exit status N"
		if msg == fmt.Sprintf("exit status %d", code) {
			msg = ""
		}
		return code, msg
	}

	return 1, fmt.Sprintf("Error: %v", err)
}

