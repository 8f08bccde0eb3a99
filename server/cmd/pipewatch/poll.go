package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/urfave/cli/v3"

	"github.com/pipewatch/pipewatch/pkg/types"
	"github.com/pipewatch/pipewatch/server/internal/config"
)

func pollCommand() *cli.Command {
	return &cli.Command{
		Name:  "poll",
		Usage: "run a single poll cycle and print the result as JSON",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:    "project",
				Aliases: []string{"p"},
				Usage:   "poll only this project",
			},
		},
		Action: runPoll,
	}
}

func runPoll(ctx context.Context, cmd *cli.Command) error {
	// Keep stdout for the JSON result.
	setupLogger(os.Stderr)

	cfg, err := config.Load(ctx, cmd.String("config"))
	if err != nil {
		return err
	}
	logLevel.Set(cfg.Level())

	if p := cmd.String("project"); p != "" {
		if !slices.Contains(cfg.Projects, p) {
			return fmt.Errorf("project %q is not configured", p)
		}
		cfg.Projects = []string{p}
	}

	provider, err := newProvider(cfg)
	if err != nil {
		return err
	}
	pollers, err := newPollers(cfg, provider, nil)
	if err != nil {
		return err
	}

	out := make(map[string][]types.PipelineStatus, len(pollers))
	for _, p := range pollers {
		// Fetch errors are logged by the poller and leave an empty result.
		out[p.Project()] = p.Poll(ctx)
	}

	enc := json.NewEncoder(cmd.Root().Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
