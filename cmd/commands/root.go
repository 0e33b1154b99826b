// Package commands defines the pivot CLI.
package commands

import (
	"github.com/urfave/cli/v3"

	"github.com/kborowski/pivot/internal/config"
)

// NewRootCommand returns the top-level CLI command.
func NewRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "pivot",
		Usage: "Mode and transition engine for agent runtimes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   config.ConfigPath(),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			NewRunCommand(),
			NewValidateCommand(),
			NewStatusCommand(),
			NewModesCommand(),
		},
	}
}
