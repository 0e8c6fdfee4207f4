package cmd

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/coder/quartz"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/tlink/capture"
	"github.com/pithecene-io/tlink/cli/render"
	"github.com/pithecene-io/tlink/heartbeat"
	"github.com/pithecene-io/tlink/live"
	"github.com/pithecene-io/tlink/log"
	"github.com/pithecene-io/tlink/notify"
	"github.com/pithecene-io/tlink/registry"
	"github.com/pithecene-io/tlink/types"
)

// DefaultConsumerID identifies the CLI's single live session.
const DefaultConsumerID = "cli"

// TailCommand returns the tail command: stream live telemetry to stdout.
func TailCommand(env *Env) *cli.Command {
	return &cli.Command{
		Name:  "tail",
		Usage: "Stream live telemetry",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "protocol",
				Usage: "Protocol family: binary or text",
				Value: string(types.ProtocolBinary),
			},
			&cli.StringFlag{
				Name:    "address",
				Aliases: []string{"a"},
				Usage:   "Robot address (overrides <protocol>.address)",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "TCP port (default: protocol port)",
			},
			&cli.StringFlag{
				Name:  "capture",
				Usage: "Also record frames to a capture file (.zst compresses)",
			},
			&cli.BoolFlag{
				Name:  "retry",
				Usage: "Restart the stream after a failure",
			},
			&cli.DurationFlag{
				Name:  "retry-delay",
				Usage: "Delay before a restart",
				Value: time.Second,
			},
			&cli.BoolFlag{
				Name:  "stats",
				Usage: "Print session counters to stderr on exit",
			},
		},
		Action: func(c *cli.Context) error { return tailAction(c, env) },
	}
}

// tailConsumer writes frames to out and optionally to a capture file.
type tailConsumer struct {
	out     io.Writer
	capture *capture.Writer
	clock   quartz.Clock
	onFail  func(consumerID string, err error)
}

// Record implements live.Consumer.
func (t *tailConsumer) Record(consumerID string, f types.Frame) error {
	if t.capture != nil {
		if err := t.capture.Append(consumerID, f, t.clock.Now()); err != nil {
			return err
		}
	}
	var err error
	if f.Protocol == types.ProtocolText {
		_, err = fmt.Fprintln(t.out, f.Line)
	} else {
		_, err = fmt.Fprintf(t.out, "%d %s\n", len(f.Payload), hex.EncodeToString(f.Payload))
	}
	return err
}

// Failure implements live.Consumer.
func (t *tailConsumer) Failure(consumerID string, err error) {
	t.onFail(consumerID, err)
}

func tailAction(c *cli.Context, env *Env) error {
	rt, err := setup(c, env)
	if err != nil {
		return err
	}

	proto, err := types.ParseProtocol(c.String("protocol"))
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	stream := rt.cfg.Stream(proto)
	address := stringOr(c, "address", stream.Address)
	if err := requireFlag("address", address); err != nil {
		return err
	}
	port := intOr(c, "port", stream.Port)
	retryDelay := c.Duration("retry-delay")
	rt.setDimensions(address)

	ctx, cancel := signalContext(c.Context)
	defer cancel()

	dispatcher, err := rt.newDispatcher()
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	defer closeDispatcher(dispatcher)

	consumer := &tailConsumer{out: env.Stdout, clock: env.Clock}
	if path := c.String("capture"); path != "" {
		w, err := capture.Create(path)
		if err != nil {
			return cli.Exit(err.Error(), exitFailure)
		}
		consumer.capture = w
		defer func() {
			if err := w.Close(); err != nil {
				rt.logger.Error("capture close failed", map[string]any{"path": path, "error": err.Error()})
			}
		}()
	}

	l := rt.newLoop()
	reg := registry.New()
	logger := rt.logger.Named("live")
	hb := heartbeat.New(l, reg, heartbeat.Config{
		Protocol: proto,
		Interval: stream.HeartbeatInterval.Duration,
		Logger:   logger,
		Metrics:  rt.metrics,
	})
	client, err := live.NewClient(live.Config{
		Protocol:       proto,
		ConnectTimeout: stream.ConnectTimeout.Duration,
		DataTimeout:    stream.DataTimeout.Duration,
		MaxFrameSize:   stream.MaxFrameSize,
		Logger:         logger,
		Metrics:        rt.metrics,
	}, l, reg, env.Connector(l), consumer)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	var failure error
	consumer.onFail = func(consumerID string, err error) {
		if dispatcher != nil {
			dispatcher.Send(notify.LiveFailure(address, consumerID, err, env.Clock.Now()))
		}
		if c.Bool("retry") {
			logger.Warn("stream failed, restarting", map[string]any{
				"consumer_id": consumerID,
				"kind":        types.KindName(err),
				"error":       err.Error(),
			})
			l.AfterFunc(retryDelay, func() {
				client.Start(consumerID, address, port)
			})
			return
		}
		failure = err
		cancel()
	}

	l.Post(func() {
		hb.Start()
		client.Start(DefaultConsumerID, address, port)
	})
	_ = l.Run(ctx)
	client.Shutdown()
	hb.Stop()

	if c.Bool("stats") {
		printStats(env.Stderr, rt, logger)
	}
	if failure != nil {
		return cli.Exit(fmt.Sprintf("stream failed: %v", failure), exitFailure)
	}
	return nil
}

// printStats renders the metrics snapshot as a table.
func printStats(w io.Writer, rt *runtime, logger *log.Logger) {
	noColor := w != io.Writer(os.Stderr) || !isStderrTTY()
	r := render.NewRendererWithWriter(render.FormatTable, noColor, w)
	if err := r.Render(rt.metrics.Snapshot()); err != nil {
		logger.Error("stats render failed", map[string]any{"error": err.Error()})
	}
}

var _ live.Consumer = (*tailConsumer)(nil)
