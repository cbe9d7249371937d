package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/mcp-training/manualdrive/game/config"
	"github.com/wricardo/mcp-training/manualdrive/game/engine"
	"github.com/wricardo/mcp-training/manualdrive/scenario"
	"github.com/wricardo/mcp-training/manualdrive/trace"
)

func runCommand(out io.Writer, logger zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "run a scenario file and check its expectations",
		ArgsUsage: "<scenario.yaml>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "profile", Aliases: []string{"p"}, Usage: "physics profile id or .json file, overrides the scenario's"},
			&cli.StringFlag{Name: "config-dir", Value: "configs", Usage: "directory with physics profiles"},
			&cli.StringFlag{Name: "trace", Usage: "write a zstd JSONL trace of every step to this path"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return errors.New("run: expected exactly one scenario file")
			}
			return runScenario(out, logger, cmd.Args().First(), cmd.String("profile"), cmd.String("config-dir"), cmd.String("trace"))
		},
	}
}

func runScenario(out io.Writer, logger zerolog.Logger, path, profile, configDir, tracePath string) error {
	sc, err := scenario.Load(path)
	if err != nil {
		return err
	}

	if profile == "" {
		profile = sc.Profile
	}
	cfg, err := resolveProfile(logger, profile, configDir)
	if err != nil {
		return err
	}

	sim, err := engine.NewSimulator(cfg)
	if err != nil {
		return err
	}

	var tw *trace.Writer
	var observe func(scenario.StepReport) error
	if tracePath != "" {
		if tw, err = trace.Create(tracePath); err != nil {
			return fmt.Errorf("open trace: %w", err)
		}
		defer tw.Close()
		observe = tw.Write
	}

	fmt.Fprintf(out, "=== %s (%s) ===\n", sc.Name, cfg.Name)
	report, err := scenario.Run(sim, sc, observe)
	if tw != nil {
		if cerr := tw.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close trace: %w", cerr)
		}
	}
	if err != nil {
		return err
	}

	for _, step := range report.Steps {
		mark := "ok  "
		if len(step.Failures) > 0 {
			mark = "FAIL"
		}
		fmt.Fprintf(out, "%s %2d %-13s %-9s gear %s %5.0f rpm %6.1f km/h  %s\n",
			mark, step.Index, step.Input.Action, step.Outcome, step.State.Gear.Short(), step.State.RPM, step.State.Speed, step.Message)
		for _, f := range step.Failures {
			fmt.Fprintf(out, "       - %s\n", f)
		}
	}
	fmt.Fprintf(out, "\n%d steps, %d stalls, %d refused\n", len(report.Steps), report.Stalls, report.Refused)

	logger.Debug().Str("scenario", sc.Name).Bool("passed", report.Passed()).Msg("scenario finished")

	if !report.Passed() {
		return fmt.Errorf("%s: %d expectation(s) failed", sc.Name, len(report.Failures()))
	}
	fmt.Fprintln(out, "PASS")
	return nil
}

// resolveProfile loads a profile file when given a .json path, otherwise a
// profile id from configDir. An empty profile means the directory default.
func resolveProfile(logger zerolog.Logger, profile, configDir string) (*engine.PhysicsConfig, error) {
	if strings.HasSuffix(profile, ".json") {
		cfg, err := engine.LoadPhysicsConfig(profile)
		if err != nil {
			return nil, fmt.Errorf("profile %q: %w", profile, err)
		}
		return cfg, nil
	}

	configs, err := config.NewManager(configDir, logger)
	if err != nil {
		return nil, err
	}
	if profile == "" {
		return configs.GetDefault(), nil
	}
	cfg, err := configs.LoadConfig(profile)
	if err != nil {
		return nil, fmt.Errorf("profile %q: %w", profile, err)
	}
	return cfg, nil
}
