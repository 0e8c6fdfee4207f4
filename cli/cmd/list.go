package cmd

import (
	"errors"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/tlink/cli/render"
	"github.com/pithecene-io/tlink/logsync"
	"github.com/pithecene-io/tlink/types"
)

// errInterrupted is reported when a signal ends a one-shot command.
var errInterrupted = errors.New("interrupted")

// ListCommand returns the list command: connect, print the first listing
// and exit.
func ListCommand(env *Env) *cli.Command {
	return &cli.Command{
		Name:   "list",
		Usage:  "List robot log files",
		Flags:  append(syncFlags(), OutputFlags()...),
		Action: func(c *cli.Context) error { return listAction(c, env) },
	}
}

func listAction(c *cli.Context, env *Env) error {
	rt, err := setup(c, env)
	if err != nil {
		return err
	}
	target, err := rt.resolveTarget(c)
	if err != nil {
		return err
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	ctx, cancel := signalContext(c.Context)
	defer cancel()

	var (
		entries []types.RemoteFileEntry
		failure = errInterrupted
	)
	sink := &syncSink{
		address: target.address,
		out:     env.Stdout,
		logger:  rt.logger,
		clock:   env.Clock,
		quiet:   true,
		onListing: func(e []types.RemoteFileEntry) {
			entries, failure = e, nil
			cancel()
		},
		onAlert: func(err error) {
			failure = err
			cancel()
		},
	}

	l := rt.newLoop()
	sess, err := rt.newSession(l, sink)
	if err != nil {
		return err
	}
	l.Post(func() { sess.Start(target.address, target.dir) })
	_ = l.Run(ctx)
	sess.Stop()

	if failure != nil {
		return cli.Exit(failureMessage(failure), exitFailure)
	}
	if entries == nil {
		entries = []types.RemoteFileEntry{}
	}
	return r.Render(entries)
}

// failureMessage renders a sync failure for the terminal.
func failureMessage(err error) string {
	if errors.Is(err, errInterrupted) {
		return err.Error()
	}
	return logsync.Describe(err)
}
