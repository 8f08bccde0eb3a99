package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pipewatch/pipewatch/server/internal/config"
	"github.com/pipewatch/pipewatch/server/internal/poller"
	"github.com/pipewatch/pipewatch/server/internal/provider/azure"
	"github.com/pipewatch/pipewatch/server/internal/subscription"
)

func newProvider(cfg *config.Config) (poller.Provider, error) {
	switch cfg.Provider.Type {
	case "azure":
		return azure.NewAdapter(azure.Options{
			URL:         cfg.Provider.URL,
			ReleaseURL:  cfg.Provider.ReleaseURL,
			Token:       cfg.Provider.Token(),
			Definitions: cfg.Provider.IncludeDefinitions,
			Timeout:     cfg.Provider.Timeout,
			Retries:     cfg.Provider.Retries,
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider type %q", cfg.Provider.Type)
	}
}

// newRegistry opens the configured subscriber registry. The returned close
// func is always safe to call.
func newRegistry(ctx context.Context, cfg *config.Config) (subscription.Registry, func() error, error) {
	switch cfg.Subscriptions.Backend {
	case "sqlite":
		r, err := subscription.NewSQLiteRegistry(ctx, cfg.Subscriptions.Path)
		if err != nil {
			return nil, nil, err
		}
		return r, r.Close, nil
	default:
		return subscription.NewMemoryRegistry(), func() error { return nil }, nil
	}
}

// newPollers builds one poller per configured project. notify may be nil.
func newPollers(cfg *config.Config, provider poller.Provider, notify func(project string) poller.Notifier, publishers ...poller.Publisher) ([]*poller.Poller, error) {
	loc, err := cfg.Poller.Location()
	if err != nil {
		return nil, err
	}
	out := make([]*poller.Poller, 0, len(cfg.Projects))
	for _, project := range cfg.Projects {
		var n poller.Notifier
		if notify != nil {
			n = notify(project)
		}
		out = append(out, poller.New(poller.Options{
			Project:         project,
			Interval:        cfg.Poller.Interval,
			BuildLimit:      cfg.Poller.BuildLimit,
			DeployLimit:     cfg.Poller.DeployLimit,
			Location:        loc,
			LedgerRetention: cfg.Poller.LedgerRetention,
			Logger:          slog.Default(),
		}, provider, n, publishers...))
	}
	return out, nil
}
