package cmd

import (
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/tlink/types"
)

// GetCommand returns the get command: save the named logs and exit.
func GetCommand(env *Env) *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Save robot log files",
		ArgsUsage: "NAME...",
		Flags:     append(syncFlags(), destFlag()),
		Action:    func(c *cli.Context) error { return getAction(c, env) },
	}
}

func getAction(c *cli.Context, env *Env) error {
	names := c.Args().Slice()
	if len(names) == 0 {
		return cli.Exit("at least one log name is required", exitUsage)
	}

	rt, err := setup(c, env)
	if err != nil {
		return err
	}
	target, err := rt.resolveTarget(c)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(c.Context)
	defer cancel()

	archiver, err := rt.newArchiver(ctx)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	dispatcher, err := rt.newDispatcher()
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	defer closeDispatcher(dispatcher)

	l := rt.newLoop()
	failure := errInterrupted
	sink := &syncSink{
		address:    target.address,
		out:        env.Stdout,
		logger:     rt.logger,
		clock:      env.Clock,
		archiver:   archiver,
		dispatcher: dispatcher,
		onAlert: func(err error) {
			failure = err
			cancel()
		},
		onSaved: func(f types.SavedFile) {
			if f.Open {
				failure = nil
				cancel()
			}
		},
		onSummary: func(types.SaveSummary) {
			failure = nil
			cancel()
		},
	}

	sess, err := rt.newSession(l, sink)
	if err != nil {
		return err
	}

	requested := false
	sink.onListing = func([]types.RemoteFileEntry) {
		if requested {
			return
		}
		requested = true
		dest := target.dest
		if len(names) == 1 {
			dest = filepath.Join(dest, names[0])
		}
		if err := sess.Save(names, dest); err != nil {
			failure = err
			cancel()
		}
	}

	l.Post(func() { sess.Start(target.address, target.dir) })
	_ = l.Run(ctx)
	sess.Stop()
	sink.wait()

	if failure != nil {
		return cli.Exit(failureMessage(failure), exitFailure)
	}
	return nil
}
