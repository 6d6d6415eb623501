// Command protocold serves the meeting-protocol API and offers offline
// helpers to list, print and export stored protocols.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"protocoldesk/internal/config"
	"protocoldesk/internal/core"
	"protocoldesk/internal/observability"
)

var (
	exitFunc    = os.Exit
	openService = openConfiguredService
)

// app carries what every subcommand needs.
type app struct {
	configPath string
	out        io.Writer
	cfg        config.Config
	logger     zerolog.Logger
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		exitFunc(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}
	root := &cobra.Command{
		Use:           "protocold",
		Short:         "Meeting protocol editor backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = observability.InitLogger("protocold", cfg.Log.Level, cfg.Log.Console)
			return nil
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to a TOML config file")
	root.AddCommand(a.serveCmd(), a.listCmd(), a.showCmd(), a.exportCmd())
	return root
}

// openConfiguredService opens the configured store and seeds the reference
// lists.
func openConfiguredService(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*core.Service, error) {
	store, err := core.OpenPersistentStore(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	svc := core.NewService(store,
		core.WithLogger(logger),
		core.WithMetrics(observability.ServiceMetrics{}),
	)
	if err := svc.Seed(ctx, cfg.Seed.Regions, cfg.Seed.Executors); err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("seed reference data: %w", err)
	}
	return svc, nil
}
