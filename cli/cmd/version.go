package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/tlink/cli/render"
	"github.com/pithecene-io/tlink/types"
)

// VersionResponse is the response for the version command.
type VersionResponse struct {
	Version         string `json:"version"`
	ContractVersion string `json:"contract_version"`
	Commit          string `json:"commit"`
}

// VersionCommand returns the version command. It never contacts a robot.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Flags: OutputFlags(),
		Action: func(c *cli.Context) error {
			r, err := render.NewRenderer(c)
			if err != nil {
				return cli.Exit(err.Error(), exitUsage)
			}
			return r.Render(VersionResponse{
				Version:         types.Version,
				ContractVersion: types.ContractVersion,
				Commit:          commit,
			})
		},
	}
}
