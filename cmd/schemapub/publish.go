// Copyright 2026 The Schemapub Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/fmu-schemas/schemapub/cmd/schemapub/cli"
	"github.com/fmu-schemas/schemapub/lib/config"
	"github.com/fmu-schemas/schemapub/lib/pipeline"
	"github.com/fmu-schemas/schemapub/lib/publish"
	"github.com/fmu-schemas/schemapub/lib/schemastore"
)

func publishCommand() *cli.Command {
	var (
		configPath  string
		environment string
		versions    []string
	)

	return &cli.Command{
		Name:    "publish",
		Summary: "rewrite, verify, and publish schema versions",
		Description: "Publish schema versions for one environment: load each version from\n" +
			"the definitions tree, rewrite all URIs to the environment's prefix,\n" +
			"verify referential closure, and atomically swap the result into the\n" +
			"serve root. A version that is already published with identical\n" +
			"content is left untouched.",
		Usage: "schemapub publish --env <name> [--version <semver>]... [flags]",
		Examples: []cli.Example{
			{
				Description: "publish every version for production",
				Command:     "schemapub publish --config schemapub.yaml --env prod",
			},
			{
				Description: "publish a single version",
				Command:     "schemapub publish --env dev --version 0.8.0",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("publish", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "path to schemapub.yaml (default: $SCHEMAPUB_CONFIG)")
			flags.StringVar(&environment, "env", "", "publication environment name (required)")
			flags.StringSliceVar(&versions, "version", nil, "restrict to specific versions (repeatable)")
			return flags
		},
		Run: func(args []string) error {
			if environment == "" {
				return fmt.Errorf("--env is required")
			}
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return runPublish(cfg, environment, versions)
		},
	}
}

func runPublish(cfg *config.Config, environment string, versions []string) error {
	prefix, err := cfg.Prefix(environment)
	if err != nil {
		return err
	}
	store, err := schemastore.Open(cfg.Paths.Definitions)
	if err != nil {
		return err
	}
	publisher, err := publisherFromConfig(cfg)
	if err != nil {
		return err
	}
	compression, err := publish.ParseCompressionTag(cfg.Publish.Compression)
	if err != nil {
		return err
	}

	logger := cli.NewCommandLogger().With("command", "publish", "env", environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := pipeline.Run(ctx, store, publisher, pipeline.Options{
		Prefix:      prefix,
		Versions:    versions,
		AuditDir:    cfg.Paths.Audit,
		Compression: compression,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	return result.Err()
}

func publisherFromConfig(cfg *config.Config) (*publish.Publisher, error) {
	fileMode, err := config.ParseMode(cfg.Publish.FileMode)
	if err != nil {
		return nil, err
	}
	dirMode, err := config.ParseMode(cfg.Publish.DirMode)
	if err != nil {
		return nil, err
	}
	return &publish.Publisher{
		ServeRoot: cfg.Paths.ServeRoot,
		OwnerUID:  cfg.Publish.OwnerUID,
		OwnerGID:  cfg.Publish.OwnerGID,
		FileMode:  fileMode,
		DirMode:   dirMode,
		Logger:    cli.NewCommandLogger(),
	}, nil
}
