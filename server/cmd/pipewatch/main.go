package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

// logLevel is shared by every command so config reloads can change it live.
var logLevel = new(slog.LevelVar)

func main() {
	// A missing .env file is fine.
	_ = godotenv.Load()

	setupLogger(os.Stdout)

	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		slog.Error("pipewatch: " + err.Error())
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "pipewatch",
		Usage: "watch CI/CD pipelines and notify subscribers when they change",
		Commands: []*cli.Command{
			serveCommand(),
			pollCommand(),
			validateCommand(),
		},
	}
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "path to config file",
		Value:   "config.yaml",
		Sources: cli.EnvVars("PIPEWATCH_CONFIG"),
	}
}

func setupLogger(w io.Writer) {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
}
