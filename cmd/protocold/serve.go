package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"protocoldesk/internal/adapters/httpapi"
	"protocoldesk/internal/blob"
	"protocoldesk/internal/export"
	"protocoldesk/internal/observability"
)

func (a *app) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if addr != "" {
				a.cfg.HTTP.Addr = addr
			}
			return a.serve(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	svc, err := openService(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("close storage")
		}
	}()

	store, err := blob.Open(ctx, a.cfg.Blob)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	worker := export.NewWorker(svc, store,
		export.WithQueueSize(a.cfg.Export.QueueSize),
		export.WithPresignExpiry(a.cfg.Export.PresignExpiry),
		export.WithRetention(a.cfg.Export.RetainJobs),
		export.WithLogger(a.logger),
		export.WithObserver(func(status export.Status, elapsed time.Duration) {
			observability.RecordExport(string(status), elapsed)
		}),
	)
	worker.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := worker.Stop(stopCtx); err != nil {
			a.logger.Warn().Err(err).Msg("export worker did not drain")
		}
	}()

	a.logger.Info().
		Str("storage", a.cfg.Storage.Driver).
		Str("blob", a.cfg.Blob.Driver).
		Msg("protocold starting")
	srv := httpapi.NewServer(svc, worker, httpapi.Options{
		CORSOrigins: a.cfg.HTTP.CORSOrigins,
		Logger:      a.logger,
	})
	return srv.ListenAndServe(ctx, a.cfg.HTTP.Addr)
}
