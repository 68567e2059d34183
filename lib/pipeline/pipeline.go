// Copyright 2026 The Schemapub Authors
// SPDX-License-Identifier: Apache-2.0

// Package pipeline wires the publication stages together: load a
// version from the store, build its reference graph, rewrite it to
// the target prefix, verify closure, and hand it to the publisher.
//
// Versions are independent publication units, so they are processed
// concurrently; the publisher's serve-root lock serializes the final
// swap. Failures never stop other versions: every version's result
// is collected and reported together, so one run surfaces everything
// an operator has to fix.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/fmu-schemas/schemapub/lib/publish"
	"github.com/fmu-schemas/schemapub/lib/schemagraph"
	"github.com/fmu-schemas/schemapub/lib/schemastore"
)

// Options configures one pipeline run.
type Options struct {
	// Prefix is the environment URI prefix to publish for.
	Prefix string

	// Versions restricts the run to the named versions. Empty means
	// every version in the store.
	Versions []string

	// DryRun stops after verification: nothing is written. Used by
	// the verify command.
	DryRun bool

	// AuditDir, when set, receives a compressed snapshot of each
	// published version.
	AuditDir string

	// Compression selects the audit snapshot compression.
	Compression publish.CompressionTag

	// Logger receives progress events. Nil disables logging.
	Logger *slog.Logger
}

// VersionResult is the outcome for one version.
type VersionResult struct {
	Version string
	// RunID identifies this publication attempt.
	RunID string
	// Documents is the number of schema documents in the version.
	Documents int
	// Verdict is the closure verification outcome, nil when the
	// version failed before verification.
	Verdict *schemagraph.Verdict
	// Err is the failure, nil on success.
	Err error
}

// Result is the outcome of a full run.
type Result struct {
	Versions []VersionResult
}

// Err flattens every per-version failure into one error, or nil when
// the whole run succeeded.
func (r *Result) Err() error {
	var lines []string
	for _, version := range r.Versions {
		if version.Err != nil {
			lines = append(lines, fmt.Sprintf("version %s: %v", version.Version, version.Err))
		}
	}
	if len(lines) == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d versions failed:\n%s", len(lines), len(r.Versions), strings.Join(lines, "\n"))
}

// Run executes the pipeline for every selected version. The returned
// Result always covers every selected version; Run's error is
// reserved for failures before per-version processing starts (store
// enumeration, unknown version names).
func Run(ctx context.Context, store *schemastore.Store, publisher *publish.Publisher, options Options) (*Result, error) {
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	versions, err := selectVersions(store, options.Versions)
	if err != nil {
		return nil, err
	}

	results := make([]VersionResult, len(versions))
	var wg sync.WaitGroup
	for i, version := range versions {
		i, version := i, version
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = runVersion(ctx, store, publisher, version, options, logger)
		}()
	}
	wg.Wait()

	return &Result{Versions: results}, nil
}

func selectVersions(store *schemastore.Store, requested []string) ([]string, error) {
	available, err := store.Versions()
	if err != nil {
		return nil, err
	}
	if len(requested) == 0 {
		return available, nil
	}

	known := make(map[string]bool, len(available))
	for _, version := range available {
		known[version] = true
	}
	selected := make([]string, 0, len(requested))
	var missing []string
	for _, version := range requested {
		if !known[version] {
			missing = append(missing, version)
			continue
		}
		selected = append(selected, version)
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("unknown versions: %s (store has: %s)",
			strings.Join(missing, ", "), strings.Join(available, ", "))
	}
	return selected, nil
}

// runVersion takes one version through the full pipeline. Every
// failure is recorded on the result; nothing is retried.
func runVersion(ctx context.Context, store *schemastore.Store, publisher *publish.Publisher, version string, options Options, logger *slog.Logger) VersionResult {
	result := VersionResult{Version: version, RunID: uuid.NewString()}
	logger = logger.With("version", version, "run_id", result.RunID)

	documents, err := store.Load(version)
	if err != nil {
		result.Err = err
		return result
	}
	result.Documents = len(documents)

	graph, err := schemagraph.Build(version, documents)
	if err != nil {
		result.Err = err
		return result
	}

	rewritten, err := schemagraph.Rewrite(graph, options.Prefix)
	if err != nil {
		result.Err = err
		return result
	}

	result.Verdict = schemagraph.Verify(rewritten)
	if err := result.Verdict.Err(); err != nil {
		result.Err = err
		return result
	}
	logger.Info("version verified", "documents", len(documents), "prefix", options.Prefix)

	if options.DryRun {
		return result
	}

	publication, err := publish.NewPublication(rewritten, options.Prefix, result.RunID)
	if err != nil {
		result.Err = err
		return result
	}
	if err := publisher.Publish(ctx, publication); err != nil {
		result.Err = err
		return result
	}

	if options.AuditDir != "" {
		snapshotPath, err := publish.WriteSnapshot(options.AuditDir, publication, options.Compression)
		if err != nil {
			result.Err = fmt.Errorf("publication succeeded but audit snapshot failed: %w", err)
			return result
		}
		logger.Info("audit snapshot written", "path", snapshotPath)
	}

	return result
}
