// Copyright 2026 The Schemapub Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"strings"
	"testing"

	"github.com/fmu-schemas/schemapub/cmd/schemapub/cli"
	"github.com/fmu-schemas/schemapub/lib/pipeline"
	"github.com/fmu-schemas/schemapub/lib/schemagraph"
)

func TestRootCommandTree(t *testing.T) {
	root := rootCommand()

	want := map[string]bool{
		"publish": false,
		"verify":  false,
		"list":    false,
		"serve":   false,
		"version": false,
	}
	for _, sub := range root.Subcommands {
		if _, ok := want[sub.Name]; !ok {
			t.Errorf("unexpected subcommand %q", sub.Name)
			continue
		}
		want[sub.Name] = true
		if sub.Summary == "" {
			t.Errorf("subcommand %q has no summary", sub.Name)
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestRootCommand_UnknownSubcommand(t *testing.T) {
	err := rootCommand().Execute([]string{"frobnicate"})
	if err == nil || !strings.Contains(err.Error(), "frobnicate") {
		t.Errorf("err = %v, want unknown command diagnostic", err)
	}
}

func TestPublishCommand_RequiresEnv(t *testing.T) {
	err := rootCommand().Execute([]string{"publish"})
	if err == nil || !strings.Contains(err.Error(), "--env") {
		t.Errorf("err = %v, want missing --env diagnostic", err)
	}
}

func TestPrintVerifyResult_FailureExitsNonZero(t *testing.T) {
	result := &pipeline.Result{
		Versions: []pipeline.VersionResult{
			{
				Version:   "0.8.0",
				Documents: 2,
				Verdict: &schemagraph.Verdict{
					Version: "0.8.0",
					Dangling: []schemagraph.DanglingRef{
						{Source: "a.json", Target: "https://x.example/schemas/0.8.0/bb.json"},
					},
				},
				Err: schemagraphVerdictErr(t),
			},
		},
	}

	err := printVerifyResult(result, false)
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("err = %v, want *cli.ExitError", err)
	}
	if exitErr.Code != 1 {
		t.Errorf("exit code = %d, want 1", exitErr.Code)
	}
}

func TestPrintVerifyResult_Success(t *testing.T) {
	result := &pipeline.Result{
		Versions: []pipeline.VersionResult{
			{Version: "0.8.0", Documents: 2, Verdict: &schemagraph.Verdict{Version: "0.8.0"}},
		},
	}
	if err := printVerifyResult(result, false); err != nil {
		t.Errorf("printVerifyResult: %v", err)
	}
}

func schemagraphVerdictErr(t *testing.T) error {
	t.Helper()
	verdict := &schemagraph.Verdict{
		Version: "0.8.0",
		Dangling: []schemagraph.DanglingRef{
			{Source: "a.json", Target: "https://x.example/schemas/0.8.0/bb.json"},
		},
	}
	err := verdict.Err()
	if err == nil {
		t.Fatal("verdict.Err() = nil")
	}
	return err
}
