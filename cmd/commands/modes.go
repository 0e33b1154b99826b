package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/kborowski/pivot/internal/config"
	"github.com/kborowski/pivot/internal/mode"
)

// NewModesCommand returns the modes subcommand.
func NewModesCommand() *cli.Command {
	return &cli.Command{
		Name:  "modes",
		Usage: "List configured modes and transition rules",
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg, err := config.Load(cmd.String("config"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			reg, err := mode.NewRegistry(cfg)
			if err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			fmt.Printf("Modes (%d):\n", len(reg.All()))
			for _, m := range reg.All() {
				marker := " "
				if m.Name == reg.Default().Name {
					marker = "*"
				}
				fmt.Printf("  %s %-20s %.1fHz  %s\n", marker, m.Name, m.Hertz, m.DisplayName)
			}

			rules := reg.Rules()
			fmt.Printf("\nTransition rules (%d):\n", len(rules))
			for i := range rules {
				r := &rules[i]
				fmt.Printf("  %s", r.String())
				if r.Cooldown > 0 {
					fmt.Printf("  cooldown %s", r.Cooldown)
				}
				fmt.Println()
			}
			return nil
		},
	}
}
