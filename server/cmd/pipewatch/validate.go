package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/pipewatch/pipewatch/server/internal/config"
)

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:   "validate",
		Usage:  "load and validate the config file",
		Flags:  []cli.Flag{configFlag()},
		Action: runValidate,
	}
}

func runValidate(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	cfg, err := config.Load(ctx, path)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.Root().Writer, "%s: ok (%d projects, provider %s, subscriptions %s)\n",
		path, len(cfg.Projects), cfg.Provider.Type, cfg.Subscriptions.Backend)
	return nil
}
