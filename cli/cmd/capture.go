package cmd

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/tlink/capture"
	"github.com/pithecene-io/tlink/cli/render"
)

// CaptureSummary is the rendered form of capture.Stats.
type CaptureSummary struct {
	Path       string         `json:"path" yaml:"path"`
	Entries    int            `json:"entries" yaml:"entries"`
	Bytes      int64          `json:"bytes" yaml:"bytes" render:"bytes"`
	ByConsumer map[string]int `json:"by_consumer" yaml:"by_consumer"`
	ByProtocol map[string]int `json:"by_protocol" yaml:"by_protocol"`
	First      string         `json:"first,omitempty" yaml:"first,omitempty"`
	Last       string         `json:"last,omitempty" yaml:"last,omitempty"`
	Duration   string         `json:"duration" yaml:"duration"`
}

// CaptureCommand returns the capture command group.
func CaptureCommand() *cli.Command {
	return &cli.Command{
		Name:  "capture",
		Usage: "Work with recorded live captures",
		Subcommands: []*cli.Command{
			{
				Name:      "inspect",
				Usage:     "Summarize a capture file",
				ArgsUsage: "FILE",
				Flags:     OutputFlags(),
				Action:    captureInspectAction,
			},
		},
	}
}

func captureInspectAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("capture inspect requires exactly one FILE argument", exitUsage)
	}
	path := c.Args().First()

	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	stats, inspectErr := capture.Inspect(path)
	if inspectErr != nil && stats.Entries == 0 {
		return cli.Exit(fmt.Sprintf("inspect %s: %v", path, inspectErr), exitFailure)
	}
	if err := r.Render(summarize(path, stats)); err != nil {
		return err
	}
	if inspectErr != nil {
		return cli.Exit(fmt.Sprintf("capture truncated after %d entries: %v", stats.Entries, inspectErr), exitFailure)
	}
	return nil
}

func summarize(path string, s capture.Stats) CaptureSummary {
	out := CaptureSummary{
		Path:       path,
		Entries:    s.Entries,
		Bytes:      s.Bytes,
		ByConsumer: s.ByConsumer,
		ByProtocol: s.ByProtocol,
		Duration:   s.Duration().String(),
	}
	if s.Entries > 0 {
		out.First = s.First.UTC().Format(time.RFC3339Nano)
		out.Last = s.Last.UTC().Format(time.RFC3339Nano)
	}
	return out
}
