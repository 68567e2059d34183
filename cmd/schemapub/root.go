// Copyright 2026 The Schemapub Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/fmu-schemas/schemapub/cmd/schemapub/cli"
	"github.com/fmu-schemas/schemapub/lib/config"
	"github.com/fmu-schemas/schemapub/lib/version"
)

func rootCommand() *cli.Command {
	return &cli.Command{
		Name:    "schemapub",
		Summary: "publish versioned JSON Schema trees for environment-specific serving",
		Description: "schemapub takes a versioned tree of JSON Schema documents, rewrites\n" +
			"every $id and $ref to an environment's URI prefix, verifies that the\n" +
			"result is fully resolvable, and atomically publishes it under the\n" +
			"schema server's serve root.",
		Subcommands: []*cli.Command{
			publishCommand(),
			verifyCommand(),
			listCommand(),
			serveCommand(),
			versionCommand(),
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:    "version",
		Summary: "print version information",
		Run: func(args []string) error {
			fmt.Println("schemapub " + version.Full())
			return nil
		},
	}
}

// loadConfig resolves the configuration from the --config flag value
// or, when empty, the SCHEMAPUB_CONFIG environment variable.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}
