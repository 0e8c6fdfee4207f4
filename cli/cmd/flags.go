package cmd

import "github.com/urfave/cli/v2"

// Shared output flags.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}
)

// GlobalFlags returns the flags accepted before any command.
func GlobalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to tlink.yaml",
			EnvVars: []string{"TLINK_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
		},
	}
}

// OutputFlags returns the shared flags for commands that render results.
func OutputFlags() []cli.Flag {
	return []cli.Flag{FormatFlag, NoColorFlag}
}

// syncFlags returns the flags selecting a remote log folder.
func syncFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "address",
			Aliases: []string{"a"},
			Usage:   "Robot address (overrides sync.address)",
		},
		&cli.StringFlag{
			Name:  "path",
			Usage: "Remote log folder (overrides sync.path)",
		},
	}
}

// destFlag selects the local destination directory.
func destFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "dest",
		Aliases: []string{"d"},
		Usage:   "Local destination directory (overrides sync.destination)",
	}
}
