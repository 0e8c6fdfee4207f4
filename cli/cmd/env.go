// Package cmd provides CLI commands for the tlink binary.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/quartz"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/tlink/cli/config"
	"github.com/pithecene-io/tlink/log"
	"github.com/pithecene-io/tlink/logsync"
	"github.com/pithecene-io/tlink/loop"
	"github.com/pithecene-io/tlink/metrics"
	"github.com/pithecene-io/tlink/transport"
)

// Exit codes.
const (
	exitSuccess = 0
	exitFailure = 1
	exitUsage   = 2
)

// Env carries the process-level dependencies of every command.
// Tests substitute the dialer, connector and writers.
type Env struct {
	Stdout io.Writer
	Stderr io.Writer
	Clock  quartz.Clock
	// Dialer builds the SFTP dialer for a sync section.
	Dialer func(config.SyncConfig) logsync.Dialer
	// Connector builds the live stream connector for a loop.
	Connector func(*loop.Loop) transport.Connector
}

// DefaultEnv returns the production environment.
func DefaultEnv() *Env {
	return &Env{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Clock:  quartz.NewReal(),
		Dialer: func(cfg config.SyncConfig) logsync.Dialer {
			d := logsync.NewSSHDialer()
			d.Username = cfg.Username
			d.Port = cfg.Port
			return d
		},
		Connector: func(l *loop.Loop) transport.Connector {
			return transport.NewTCPConnector(l)
		},
	}
}

// runtime is the per-invocation state shared by command actions.
type runtime struct {
	env     *Env
	cfg     *config.Config
	logger  *log.Logger
	metrics *metrics.Collector
}

// setup loads the config file named by --config (if any), applies
// --log-level, and builds the root logger.
func setup(c *cli.Context, env *Env) (*runtime, error) {
	cfg := config.Defaults()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, cli.Exit(err.Error(), exitUsage)
		}
		cfg = loaded
	}

	level := cfg.Log.Level
	if c.IsSet("log-level") {
		level = c.String("log-level")
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, cli.Exit(err.Error(), exitUsage)
	}

	logger := log.NewLogger("tlink").WithOutput(env.Stderr)
	logger.SetLevel(lvl)

	return &runtime{
		env:     env,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.NewCollector(),
	}, nil
}

// newLoop returns a loop on the environment's clock.
func (rt *runtime) newLoop() *loop.Loop {
	return loop.New(rt.env.Clock, 0)
}

// stringOr returns the flag value if set, else fallback.
func stringOr(c *cli.Context, name, fallback string) string {
	if c.IsSet(name) {
		return c.String(name)
	}
	return fallback
}

// intOr returns the flag value if set, else fallback.
func intOr(c *cli.Context, name string, fallback int) int {
	if c.IsSet(name) {
		return c.Int(name)
	}
	return fallback
}

// durationOr returns the flag value if set, else fallback.
func durationOr(c *cli.Context, name string, fallback time.Duration) time.Duration {
	if c.IsSet(name) {
		return c.Duration(name)
	}
	return fallback
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// requireFlag returns a usage exit error if value is empty.
func requireFlag(name, value string) error {
	if value == "" {
		return cli.Exit(fmt.Sprintf("--%s is required (flag or config file)", name), exitUsage)
	}
	return nil
}

// isStderrTTY returns true if stderr is a terminal.
func isStderrTTY() bool {
	info, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
