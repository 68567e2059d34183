// Copyright 2026 The Schemapub Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/fmu-schemas/schemapub/cmd/schemapub/cli"
	"github.com/fmu-schemas/schemapub/lib/schemastore"
)

type listEntry struct {
	Version   string   `json:"version"`
	Documents []string `json:"documents"`
}

func listCommand() *cli.Command {
	var (
		configPath string
		outputJSON bool
	)

	return &cli.Command{
		Name:    "list",
		Summary: "list schema versions in the definitions tree",
		Usage:   "schemapub list [flags]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("list", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "path to schemapub.yaml (default: $SCHEMAPUB_CONFIG)")
			flags.BoolVar(&outputJSON, "json", false, "output as JSON")
			return flags
		},
		Run: func(args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			store, err := schemastore.Open(cfg.Paths.Definitions)
			if err != nil {
				return err
			}
			versions, err := store.Versions()
			if err != nil {
				return err
			}

			entries := make([]listEntry, 0, len(versions))
			for _, version := range versions {
				documents, err := store.Load(version)
				if err != nil {
					return err
				}
				entry := listEntry{Version: version, Documents: make([]string, 0, len(documents))}
				for _, doc := range documents {
					entry.Documents = append(entry.Documents, doc.Name)
				}
				entries = append(entries, entry)
			}

			if outputJSON {
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(entries)
			}

			tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintf(tw, "VERSION\tDOCUMENTS\n")
			for _, entry := range entries {
				fmt.Fprintf(tw, "%s\t%d\n", entry.Version, len(entry.Documents))
			}
			return tw.Flush()
		},
	}
}
