// Copyright 2026 The Schemapub Authors
// SPDX-License-Identifier: Apache-2.0

// Package manifest records what a complete publication of one schema
// version looks like: the exact file set and a BLAKE3 digest per file.
// The manifest is what makes two guarantees checkable after the fact:
//
//   - completeness: a served version directory matches its manifest
//     exactly (no missing, extra, or corrupted files), so a partial
//     write from an interrupted run is detected instead of served;
//   - immutability: a republish of an already-published version must
//     be byte-identical, which reduces to comparing tree digests.
//
// The manifest lives inside the published version directory under a
// dot-name, which the schema server refuses to serve.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fmu-schemas/schemapub/lib/codec"
)

// Filename is the manifest's name inside a published version
// directory. The leading dot keeps it out of the served URL space.
const Filename = ".schemapub-manifest.cbor"

// FileEntry describes one published schema document.
type FileEntry struct {
	// Name is the document filename (e.g. fmu_results.json).
	Name string `cbor:"name"`
	// Size is the rendered size in bytes.
	Size int64 `cbor:"size"`
	// Digest is the hex-encoded document-domain BLAKE3 digest of the
	// rendered bytes.
	Digest string `cbor:"digest"`
}

// Manifest is the record of one complete publication.
type Manifest struct {
	// Version is the published schema version.
	Version string `cbor:"version"`
	// Prefix is the environment URI prefix the documents were
	// rewritten to.
	Prefix string `cbor:"prefix"`
	// RunID identifies the publication run that produced this tree.
	RunID string `cbor:"run_id"`
	// CreatedAt is the publication time, UTC.
	CreatedAt time.Time `cbor:"created_at"`
	// Files lists every published document, sorted by name.
	Files []FileEntry `cbor:"files"`
	// TreeDigest is the hex-encoded tree-domain digest over the file
	// digests in name order. Two publications with equal tree digests
	// hold byte-identical document sets.
	TreeDigest string `cbor:"tree_digest"`
}

// New builds a manifest for the given rendered documents. The files
// map is filename → rendered bytes.
func New(version, prefix, runID string, files map[string][]byte) *Manifest {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	m := &Manifest{
		Version:   version,
		Prefix:    prefix,
		RunID:     runID,
		CreatedAt: time.Now().UTC(),
		Files:     make([]FileEntry, 0, len(names)),
	}
	digests := make([]Digest, 0, len(names))
	for _, name := range names {
		digest := HashDocument(files[name])
		digests = append(digests, digest)
		m.Files = append(m.Files, FileEntry{
			Name:   name,
			Size:   int64(len(files[name])),
			Digest: FormatDigest(digest),
		})
	}
	m.TreeDigest = FormatDigest(hashTree(digests))
	return m
}

// Encode serializes the manifest to its deterministic CBOR form.
func (m *Manifest) Encode() ([]byte, error) {
	return codec.Marshal(m)
}

// Write serializes the manifest into dir atomically: temp file in the
// same directory, then rename.
func (m *Manifest) Write(dir string) error {
	data, err := m.Encode()
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".manifest-*.tmp")
	if err != nil {
		return fmt.Errorf("creating manifest temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing manifest: %w", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(dir, Filename)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming manifest into place: %w", err)
	}
	return nil
}

// Load reads the manifest from a published version directory.
// os.IsNotExist-style errors pass through wrapped, so callers can
// distinguish "never published" from "corrupt".
func Load(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, Filename))
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := codec.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest %s: %w", filepath.Join(dir, Filename), err)
	}
	return &m, nil
}

// Exists reports whether dir carries a manifest.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, Filename))
	return err == nil
}

// PartialWriteError reports a published directory that does not match
// its manifest. Every discrepancy is listed, not just the first.
type PartialWriteError struct {
	Version    string
	Dir        string
	Missing    []string
	Extra      []string
	Mismatched []string
}

func (e *PartialWriteError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing: %s", strings.Join(e.Missing, ", ")))
	}
	if len(e.Extra) > 0 {
		parts = append(parts, fmt.Sprintf("extra: %s", strings.Join(e.Extra, ", ")))
	}
	if len(e.Mismatched) > 0 {
		parts = append(parts, fmt.Sprintf("content mismatch: %s", strings.Join(e.Mismatched, ", ")))
	}
	return fmt.Sprintf("partial or corrupted publication of version %s in %s (%s)",
		e.Version, e.Dir, strings.Join(parts, "; "))
}

// Verify checks a published version directory against its manifest:
// every listed file present with matching size and digest, and no
// unlisted files besides the manifest itself. Returns a
// *PartialWriteError describing all discrepancies, or nil.
func (m *Manifest) Verify(dir string) error {
	failure := &PartialWriteError{Version: m.Version, Dir: dir}

	listed := make(map[string]FileEntry, len(m.Files))
	for _, entry := range m.Files {
		listed[entry.Name] = entry
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading published directory: %w", err)
	}
	present := make(map[string]bool, len(entries))
	for _, entry := range entries {
		if entry.Name() == Filename {
			continue
		}
		present[entry.Name()] = true
		if _, ok := listed[entry.Name()]; !ok {
			failure.Extra = append(failure.Extra, entry.Name())
		}
	}

	for _, entry := range m.Files {
		if !present[entry.Name] {
			failure.Missing = append(failure.Missing, entry.Name)
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name))
		if err != nil {
			return fmt.Errorf("reading published file %s: %w", entry.Name, err)
		}
		if int64(len(data)) != entry.Size || FormatDigest(HashDocument(data)) != entry.Digest {
			failure.Mismatched = append(failure.Mismatched, entry.Name)
		}
	}

	sort.Strings(failure.Missing)
	sort.Strings(failure.Extra)
	sort.Strings(failure.Mismatched)
	if len(failure.Missing) > 0 || len(failure.Extra) > 0 || len(failure.Mismatched) > 0 {
		return failure
	}
	return nil
}

// IsPartialWrite reports whether err is a *PartialWriteError.
func IsPartialWrite(err error) bool {
	var partial *PartialWriteError
	return errors.As(err, &partial)
}
