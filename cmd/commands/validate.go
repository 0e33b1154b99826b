package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/urfave/cli/v3"

	"github.com/kborowski/pivot/internal/config"
	"github.com/kborowski/pivot/internal/mode"
)

// NewValidateCommand returns the validate subcommand.
func NewValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Validate config files without starting the engine",
		ArgsUsage: "[glob...]",
		Description: "Validates the default config, or every file matched by the " +
			"given glob patterns (doublestar syntax, e.g. 'configs/**/*.json5').",
		Action: runValidate,
	}
}

func runValidate(_ context.Context, cmd *cli.Command) error {
	paths := cmd.Args().Slice()
	if len(paths) == 0 {
		paths = []string{cmd.String("config")}
	}

	var files []string
	for _, pattern := range paths {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			// Not a pattern, treat as a literal path so missing files error.
			matches = []string{pattern}
		}
		files = append(files, matches...)
	}

	failed := 0
	for _, path := range files {
		if err := validateOne(path); err != nil {
			failed++
			fmt.Printf("FAIL %s\n     %v\n", path, err)
			continue
		}
		fmt.Printf("OK   %s\n", path)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d config(s) invalid", failed, len(files))
	}
	return nil
}

func validateOne(path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		var verr *config.VersionIncompatibleError
		if errors.As(err, &verr) {
			return fmt.Errorf("unsupported config version %s", verr.ConfigVersion)
		}
		return err
	}
	if _, err := mode.NewRegistry(cfg); err != nil {
		return err
	}
	return nil
}
