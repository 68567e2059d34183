// Copyright 2026 The Schemapub Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/fmu-schemas/schemapub/cmd/schemapub/cli"
	"github.com/fmu-schemas/schemapub/lib/schemaserver"
)

func serveCommand() *cli.Command {
	var (
		configPath string
		root       string
		listen     string
	)

	return &cli.Command{
		Name:    "serve",
		Summary: "serve a published schema tree over HTTP",
		Description: "Serve published schema documents for local development and tests.\n" +
			"Production deployments front the serve root with a real static file\n" +
			"server; this command implements the same contract: exact path match,\n" +
			"404 outside the published set, immutable per-version caching.",
		Usage: "schemapub serve [flags]",
		Examples: []cli.Example{
			{
				Description: "serve the configured serve root on the configured address",
				Command:     "schemapub serve --config schemapub.yaml",
			},
			{
				Description: "serve an explicit directory",
				Command:     "schemapub serve --root /srv/schemas/serve --listen :9000",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("serve", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "path to schemapub.yaml (default: $SCHEMAPUB_CONFIG)")
			flags.StringVar(&root, "root", "", "serve root (default: paths.serve_root from config)")
			flags.StringVar(&listen, "listen", "", "listen address (default: server.listen from config)")
			return flags
		},
		Run: func(args []string) error {
			// Explicit flags can stand alone; the config file is only
			// needed to fill in what the flags leave unset.
			if root == "" || listen == "" {
				cfg, err := loadConfig(configPath)
				if err != nil {
					return err
				}
				if root == "" {
					root = cfg.Paths.ServeRoot
				}
				if listen == "" {
					listen = cfg.Server.Listen
				}
			}
			return runServe(root, listen)
		},
	}
}

func runServe(root, listen string) error {
	logger := cli.NewCommandLogger().With("command", "serve")

	server := &http.Server{
		Addr:              listen,
		Handler:           schemaserver.New(root),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving schemas", "root", root, "listen", listen)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	logger.Info("server stopped")
	return nil
}
