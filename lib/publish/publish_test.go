// Copyright 2026 The Schemapub Authors
// SPDX-License-Identifier: Apache-2.0

package publish

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fmu-schemas/schemapub/lib/manifest"
	"github.com/fmu-schemas/schemapub/lib/schemadoc"
	"github.com/fmu-schemas/schemapub/lib/schemagraph"
)

func testGraph(t *testing.T) *schemagraph.Graph {
	t.Helper()
	a, err := schemadoc.Parse("a.json", []byte(`{
		"$id": "https://prod.example/schemas/0.8.0/a.json",
		"$ref": "https://prod.example/schemas/0.8.0/b.json"
	}`))
	if err != nil {
		t.Fatal(err)
	}
	b, err := schemadoc.Parse("b.json", []byte(`{"$id": "https://prod.example/schemas/0.8.0/b.json"}`))
	if err != nil {
		t.Fatal(err)
	}
	graph, err := schemagraph.Build("0.8.0", []*schemadoc.Document{a, b})
	if err != nil {
		t.Fatal(err)
	}
	return graph
}

func testPublication(t *testing.T, runID string) *Publication {
	t.Helper()
	pub, err := NewPublication(testGraph(t), "https://prod.example", runID)
	if err != nil {
		t.Fatalf("NewPublication: %v", err)
	}
	return pub
}

func TestPublish(t *testing.T) {
	root := t.TempDir()
	publisher := NewPublisher(root)

	if err := publisher.Publish(context.Background(), testPublication(t, "run-1")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	versionDir := filepath.Join(root, "schemas", "0.8.0")
	for _, name := range []string{"a.json", "b.json", manifest.Filename} {
		if _, err := os.Stat(filepath.Join(versionDir, name)); err != nil {
			t.Errorf("published file %s: %v", name, err)
		}
	}

	// The published set verifies against its own manifest.
	loaded, err := manifest.Load(versionDir)
	if err != nil {
		t.Fatalf("Load manifest: %v", err)
	}
	if err := loaded.Verify(versionDir); err != nil {
		t.Errorf("Verify: %v", err)
	}

	// No staging remnants.
	entries, err := os.ReadDir(filepath.Join(root, "schemas"))
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range entries {
		if entry.Name() != "0.8.0" {
			t.Errorf("unexpected entry in serve root: %s", entry.Name())
		}
	}
}

func TestPublish_IdempotentRepublish(t *testing.T) {
	root := t.TempDir()
	publisher := NewPublisher(root)

	if err := publisher.Publish(context.Background(), testPublication(t, "run-1")); err != nil {
		t.Fatalf("first Publish: %v", err)
	}
	first, err := manifest.Load(filepath.Join(root, "schemas", "0.8.0"))
	if err != nil {
		t.Fatal(err)
	}

	// Same content, new run: succeeds without touching the tree.
	if err := publisher.Publish(context.Background(), testPublication(t, "run-2")); err != nil {
		t.Fatalf("republish: %v", err)
	}
	second, err := manifest.Load(filepath.Join(root, "schemas", "0.8.0"))
	if err != nil {
		t.Fatal(err)
	}
	if second.RunID != first.RunID {
		t.Errorf("idempotent republish rewrote the tree (run %s -> %s)", first.RunID, second.RunID)
	}
}

func TestPublish_ImmutabilityViolation(t *testing.T) {
	root := t.TempDir()
	publisher := NewPublisher(root)

	if err := publisher.Publish(context.Background(), testPublication(t, "run-1")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	// Same version, different bytes (rewritten for another prefix).
	rewritten, err := schemagraph.Rewrite(testGraph(t), "https://staging.example")
	if err != nil {
		t.Fatal(err)
	}
	altered, err := NewPublication(rewritten, "https://staging.example", "run-2")
	if err != nil {
		t.Fatal(err)
	}

	err = publisher.Publish(context.Background(), altered)
	var immutability *ImmutabilityError
	if !errors.As(err, &immutability) {
		t.Fatalf("err = %v, want *ImmutabilityError", err)
	}

	// Prior publication untouched.
	loaded, err := manifest.Load(filepath.Join(root, "schemas", "0.8.0"))
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Prefix != "https://prod.example" {
		t.Errorf("published prefix changed to %q", loaded.Prefix)
	}
}

func TestPublish_PartialWriteDetected(t *testing.T) {
	root := t.TempDir()
	publisher := NewPublisher(root)

	if err := publisher.Publish(context.Background(), testPublication(t, "run-1")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	// Corrupt the published set: remove one file.
	if err := os.Remove(filepath.Join(root, "schemas", "0.8.0", "b.json")); err != nil {
		t.Fatal(err)
	}

	err := publisher.Publish(context.Background(), testPublication(t, "run-2"))
	if !manifest.IsPartialWrite(err) {
		t.Fatalf("err = %v, want partial-write detection", err)
	}
}

func TestPublish_RefusesManifestlessDirectory(t *testing.T) {
	root := t.TempDir()
	versionDir := filepath.Join(root, "schemas", "0.8.0")
	if err := os.MkdirAll(versionDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(versionDir, "a.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	publisher := NewPublisher(root)
	err := publisher.Publish(context.Background(), testPublication(t, "run-1"))
	if !manifest.IsPartialWrite(err) {
		t.Fatalf("err = %v, want partial-write detection", err)
	}
	// The foreign file is still there.
	if _, statErr := os.Stat(filepath.Join(versionDir, "a.json")); statErr != nil {
		t.Error("pre-existing directory was modified")
	}
}

func TestPublish_CanceledLeavesPriorStateIntact(t *testing.T) {
	root := t.TempDir()
	publisher := NewPublisher(root)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := publisher.Publish(ctx, testPublication(t, "run-1"))
	if err == nil {
		t.Fatal("Publish succeeded with a canceled context")
	}

	// Nothing was swapped in, and no staging remnants remain.
	if _, statErr := os.Stat(filepath.Join(root, "schemas", "0.8.0")); !os.IsNotExist(statErr) {
		t.Error("canceled publication left a version directory")
	}
	entries, readErr := os.ReadDir(filepath.Join(root, "schemas"))
	if readErr != nil {
		t.Fatal(readErr)
	}
	if len(entries) != 0 {
		t.Errorf("staging remnants after cancellation: %v", entries)
	}
}

func TestPublish_CleansStaleStaging(t *testing.T) {
	root := t.TempDir()
	schemasDir := filepath.Join(root, "schemas")
	staleDir := filepath.Join(schemasDir, stagingPrefix+"0.8.0-dead-run")
	if err := os.MkdirAll(staleDir, 0o755); err != nil {
		t.Fatal(err)
	}

	publisher := NewPublisher(root)
	if err := publisher.Publish(context.Background(), testPublication(t, "run-1")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if _, err := os.Stat(staleDir); !os.IsNotExist(err) {
		t.Error("stale staging directory survived")
	}
}
