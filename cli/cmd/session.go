package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/tlink/logsync"
	"github.com/pithecene-io/tlink/loop"
	"github.com/pithecene-io/tlink/types"
)

// syncTarget is a resolved remote folder and local destination.
type syncTarget struct {
	address string
	dir     string
	dest    string
}

// resolveTarget merges the sync flags over the config file.
func (rt *runtime) resolveTarget(c *cli.Context) (syncTarget, error) {
	t := syncTarget{
		address: stringOr(c, "address", rt.cfg.Sync.Address),
		dir:     stringOr(c, "path", rt.cfg.Sync.Path),
		dest:    stringOr(c, "dest", rt.cfg.Sync.Destination),
	}
	if err := requireFlag("address", t.address); err != nil {
		return t, err
	}
	if err := requireFlag("path", t.dir); err != nil {
		return t, err
	}
	rt.setDimensions(t.address)
	return t, nil
}

// newSession builds a sync session from the sync config section.
func (rt *runtime) newSession(l *loop.Loop, consumer logsync.Consumer) (*logsync.Session, error) {
	filter, err := logsync.NewFilter(rt.cfg.Sync.Extensions, rt.cfg.Sync.RandomizedPatterns)
	if err != nil {
		return nil, cli.Exit(err.Error(), exitUsage)
	}
	return logsync.New(logsync.Config{
		ConnectTimeout:  rt.cfg.Sync.ConnectTimeout.Duration,
		RefreshInterval: rt.cfg.Sync.RefreshInterval.Duration,
		RetryDelay:      rt.cfg.Sync.RetryDelay.Duration,
		Filter:          filter,
		Logger:          rt.logger.Named("sync"),
		Metrics:         rt.metrics,
	}, l, rt.env.Dialer(rt.cfg.Sync), consumer)
}

// saveMissing saves the names that do not exist under dest. A batch relies
// on the session's own skip logic; a single name is checked here because a
// single-file save always overwrites.
func saveMissing(sess *logsync.Session, names []string, dest string) error {
	if len(names) != 1 {
		return sess.Save(names, dest)
	}
	target := filepath.Join(dest, names[0])
	if _, err := os.Stat(target); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return types.NewLinkError(types.ErrFileSystem, "stat", target, err)
	}
	return sess.Save(names, target)
}

// entryNames returns the names of a listing in order.
func entryNames(entries []types.RemoteFileEntry) []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}

// goRun runs l on its own goroutine. The returned channel is closed once
// Run has returned and no loop function is executing.
func goRun(ctx context.Context, l *loop.Loop) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = l.Run(ctx)
	}()
	return done
}
