// Command sercha-rag answers questions about your documents.
package main

import (
	"context"
	"os"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/cli"
	"github.com/custodia-labs/sercha-rag/internal/app"
)

func main() {
	cli.SetBootstrap(bootstrap)
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

func bootstrap(ctx context.Context, opts cli.BootstrapOptions) (*cli.Services, error) {
	appOpts := app.Options{
		ConfigPath: opts.ConfigPath,
		Ephemeral:  opts.Ephemeral,
	}

	if opts.SettingsOnly {
		settings, err := app.LoadSettings(appOpts)
		if err != nil {
			return nil, err
		}
		return &cli.Services{Settings: settings}, nil
	}

	a, err := app.New(ctx, appOpts)
	if err != nil {
		return nil, err
	}
	return &cli.Services{
		RAG:      a.RAG,
		Document: a.Documents,
		Settings: a.SettingsService,
		Config:   a.Settings,
		Close:    a.Close,
	}, nil
}
