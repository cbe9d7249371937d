package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/mcp-training/manualdrive/game/config"
	"github.com/wricardo/mcp-training/manualdrive/game/engine"
)

func validateCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "check every physics profile in a directory",
		ArgsUsage: "[dir]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			dir := "configs"
			if cmd.Args().Len() > 0 {
				dir = cmd.Args().First()
			}
			invalid, err := validateDir(out, dir)
			if err != nil {
				return err
			}
			if invalid > 0 {
				return fmt.Errorf("%d invalid profile(s) in %s", invalid, dir)
			}
			return nil
		},
	}
}

// validateDir analyzes every .json profile in dir and returns how many are invalid
func validateDir(out io.Writer, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		return 0, fmt.Errorf("no profiles in %s", dir)
	}

	invalid := 0
	for _, name := range names {
		fmt.Fprintf(out, "\n=== %s ===\n", name)
		cfg, err := loadProfile(filepath.Join(dir, name))
		if err != nil {
			invalid++
			fmt.Fprintf(out, "INVALID: %v\n", err)
			continue
		}
		analyzeProfile(out, cfg)
	}
	return invalid, nil
}

func loadProfile(path string) (*engine.PhysicsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := config.ValidateProfileJSON(data); err != nil {
		return nil, err
	}
	return engine.ParsePhysicsConfig(data)
}

// gearLimit is the road speed at which the gear reaches the over-rev
// threshold off throttle, i.e. the latest point to change up.
func gearLimit(g engine.Gear, cfg *engine.PhysicsConfig) float64 {
	return (cfg.OverRevRPM - cfg.IdleRPM) / (engine.GearFactor(g, cfg) * cfg.SpeedRPMScale)
}

func analyzeProfile(out io.Writer, cfg *engine.PhysicsConfig) {
	fmt.Fprintf(out, "Name: %s\n", cfg.Name)
	fmt.Fprintf(out, "Idle: %.0f RPM, stall below %.0f, over-rev above %.0f, limiter %.0f\n",
		cfg.IdleRPM, cfg.StallRPM, cfg.OverRevRPM, cfg.MaxRPM)
	fmt.Fprintf(out, "Shift needs clutch >= %.0f%%, stall on release below %.0f%% clutch and %.0f%% throttle under %.0f km/h\n",
		cfg.ShiftClutchMin*100, cfg.StallClutchMax*100, cfg.StallThrottleMax*100, cfg.StallSpeedMax)

	fmt.Fprintln(out, "Over-rev speed per gear:")
	for g := engine.First; g <= engine.MaxGear; g++ {
		limit := gearLimit(g, cfg)
		note := ""
		if rec := engine.RecommendedGear(limit); rec < g {
			note = " (recommended shift point unreachable)"
		}
		fmt.Fprintf(out, "  %s: %6.1f km/h%s\n", g.Short(), limit, note)
	}
	fmt.Fprintf(out, "  R: %6.1f km/h\n", gearLimit(engine.Reverse, cfg))
}
