package cmd

import (
	"errors"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/tlink/cli/tui"
	"github.com/pithecene-io/tlink/logsync"
	"github.com/pithecene-io/tlink/types"
)

// SyncCommand returns the sync command: keep a session open, optionally
// saving every new log as it appears.
func SyncCommand(env *Env) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Monitor a robot log folder",
		Flags: append(syncFlags(),
			destFlag(),
			&cli.BoolFlag{
				Name:  "save-new",
				Usage: "Save every listed log missing from the destination",
			},
			&cli.BoolFlag{
				Name:  "tui",
				Usage: "Show the interactive monitor",
			},
		),
		Action: func(c *cli.Context) error { return syncAction(c, env) },
	}
}

func syncAction(c *cli.Context, env *Env) error {
	rt, err := setup(c, env)
	if err != nil {
		return err
	}
	target, err := rt.resolveTarget(c)
	if err != nil {
		return err
	}
	useTUI := c.Bool("tui")
	if useTUI {
		// Log lines would corrupt the alternate screen.
		rt.logger = rt.logger.WithOutput(io.Discard)
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
	sink := &syncSink{
		address:    target.address,
		out:        env.Stdout,
		logger:     rt.logger,
		clock:      env.Clock,
		archiver:   archiver,
		dispatcher: dispatcher,
		quiet:      useTUI,
	}
	if !useTUI {
		sink.onAlert = func(err error) {
			_, _ = io.WriteString(env.Stderr, logsync.Describe(err)+"\n")
		}
	}

	bridge := &tui.Bridge{Next: sink}
	var consumer logsync.Consumer = sink
	if useTUI {
		consumer = bridge
	}
	sess, err := rt.newSession(l, consumer)
	if err != nil {
		return err
	}

	// A name is pending while its save is in flight and requested once
	// the save reaches a terminal outcome. An alert aborts the batch, so
	// pending names become eligible again on the next listing.
	var latest []types.RemoteFileEntry
	requested := make(map[string]bool)
	pending := make(map[string]bool)
	settle := func() {
		for n := range pending {
			requested[n] = true
		}
		clear(pending)
	}
	printAlert := sink.onAlert
	sink.onAlert = func(err error) {
		clear(pending)
		if printAlert != nil {
			printAlert(err)
		}
	}
	sink.onSaved = func(f types.SavedFile) {
		delete(pending, f.Name)
		requested[f.Name] = true
	}
	sink.onSummary = func(types.SaveSummary) { settle() }
	sink.onListing = func(entries []types.RemoteFileEntry) {
		latest = entries
		if !c.Bool("save-new") {
			return
		}
		var fresh []string
		for _, e := range entries {
			if !requested[e.Name] && !pending[e.Name] {
				fresh = append(fresh, e.Name)
			}
		}
		if len(fresh) == 0 {
			return
		}
		for _, n := range fresh {
			pending[n] = true
		}
		err := saveMissing(sess, fresh, target.dest)
		switch {
		case err == nil:
		case errors.Is(err, logsync.ErrBusy), errors.Is(err, logsync.ErrNotReady):
			// Retried on the next listing.
			for _, n := range fresh {
				delete(pending, n)
			}
		default:
			sink.Alert(err)
		}
	}

	if !useTUI {
		l.Post(func() { sess.Start(target.address, target.dir) })
		_ = l.Run(ctx)
		sess.Stop()
		sink.wait()
		return nil
	}

	saveNew := func() error {
		errc := make(chan error, 1)
		posted := l.Post(func() {
			if len(latest) == 0 {
				errc <- logsync.ErrNoFiles
				return
			}
			errc <- saveMissing(sess, entryNames(latest), target.dest)
		})
		if !posted {
			return errors.New("session closed")
		}
		select {
		case err := <-errc:
			return err
		case <-l.Done():
			return errors.New("session closed")
		}
	}

	done := goRun(ctx, l)
	model := tui.NewSyncModel(target.address, target.dir, saveNew)
	err = tui.RunSync(model, func(p *tea.Program) {
		bridge.Program = p
		l.Post(func() { sess.Start(target.address, target.dir) })
	})
	cancel()
	<-done
	sess.Stop()
	sink.wait()
	if err != nil {
		return cli.Exit(err.Error(), exitFailure)
	}
	return nil
}
