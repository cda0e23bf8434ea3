// Copyright 2025 The Nearby Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nearbyhouses/nearby/server"
)

var serveOptions = struct {
	Listen string
}{}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and lookup page",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return runServe(ctx)
	},
}

func runServe(ctx context.Context) error {
	svc, err := newLookupService(ctx, cfg, logger)
	if err != nil {
		return err
	}

	addr := cfg.HTTP.ListenAddr
	if serveOptions.Listen != "" {
		addr = serveOptions.Listen
	}

	srv := server.NewServer(svc, server.Options{
		DefaultRadius:     cfg.Lookup.DefaultRadius,
		MaxRadius:         cfg.Lookup.MaxRadius,
		CORSOrigins:       cfg.HTTP.CORSOrigins,
		StaticDir:         cfg.HTTP.StaticDir,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		ShutdownTimeout:   cfg.HTTP.ShutdownTimeout,
		Version:           Version,
		Logger:            logger,
	})

	return srv.Run(ctx, addr)
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveOptions.Listen, "listen", "", "Address to listen on, overrides http.listenAddr")
}
