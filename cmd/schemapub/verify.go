// Copyright 2026 The Schemapub Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/fmu-schemas/schemapub/cmd/schemapub/cli"
	"github.com/fmu-schemas/schemapub/lib/pipeline"
	"github.com/fmu-schemas/schemapub/lib/publish"
	"github.com/fmu-schemas/schemapub/lib/schemastore"
)

// verifyReport is the JSON shape of one version's verification
// outcome.
type verifyReport struct {
	Version   string          `json:"version"`
	Documents int             `json:"documents"`
	OK        bool            `json:"ok"`
	Error     string          `json:"error,omitempty"`
	Dangling  []verifyFinding `json:"dangling_references,omitempty"`
}

type verifyFinding struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

func verifyCommand() *cli.Command {
	var (
		configPath  string
		environment string
		versions    []string
		outputJSON  bool
	)

	return &cli.Command{
		Name:    "verify",
		Summary: "verify schema versions without publishing",
		Description: "Run the pipeline through rewriting and closure verification for one\n" +
			"environment, without writing anything. Every dangling reference and\n" +
			"malformed document is reported, not just the first. Exits non-zero\n" +
			"when any version fails.",
		Usage: "schemapub verify --env <name> [--version <semver>]... [flags]",
		Examples: []cli.Example{
			{
				Description: "check the whole store against the production prefix",
				Command:     "schemapub verify --config schemapub.yaml --env prod",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("verify", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "path to schemapub.yaml (default: $SCHEMAPUB_CONFIG)")
			flags.StringVar(&environment, "env", "", "publication environment name (required)")
			flags.StringSliceVar(&versions, "version", nil, "restrict to specific versions (repeatable)")
			flags.BoolVar(&outputJSON, "json", false, "output findings as JSON")
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
			prefix, err := cfg.Prefix(environment)
			if err != nil {
				return err
			}
			store, err := schemastore.Open(cfg.Paths.Definitions)
			if err != nil {
				return err
			}

			result, err := pipeline.Run(context.Background(), store, publish.NewPublisher(""), pipeline.Options{
				Prefix:   prefix,
				Versions: versions,
				DryRun:   true,
				Logger:   cli.NewCommandLogger().With("command", "verify", "env", environment),
			})
			if err != nil {
				return err
			}
			return printVerifyResult(result, outputJSON)
		},
	}
}

func printVerifyResult(result *pipeline.Result, outputJSON bool) error {
	failed := false
	reports := make([]verifyReport, 0, len(result.Versions))
	for _, version := range result.Versions {
		report := verifyReport{
			Version:   version.Version,
			Documents: version.Documents,
			OK:        version.Err == nil,
		}
		if version.Err != nil {
			failed = true
			report.Error = version.Err.Error()
		}
		if version.Verdict != nil {
			for _, dangling := range version.Verdict.Dangling {
				report.Dangling = append(report.Dangling, verifyFinding{
					Source: dangling.Source,
					Target: dangling.Target,
				})
			}
		}
		reports = append(reports, report)
	}

	if outputJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(reports); err != nil {
			return err
		}
	} else {
		for _, report := range reports {
			if report.OK {
				fmt.Printf("%s: ok (%d documents)\n", report.Version, report.Documents)
				continue
			}
			fmt.Printf("%s: FAILED\n%s\n", report.Version, report.Error)
		}
	}

	if failed {
		return &cli.ExitError{Code: 1}
	}
	return nil
}
