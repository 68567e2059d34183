// Copyright 2026 The Schemapub Authors
// SPDX-License-Identifier: Apache-2.0

// Package schemastore reads the immutable, versioned schema source
// tree. The layout is definitions/<version>/<name>.json: one
// directory per semantic version, each holding that version's schema
// documents. The store is read-only: published versions are frozen,
// and a content change requires a new version directory.
package schemastore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fmu-schemas/schemapub/lib/schemadoc"
	"github.com/fmu-schemas/schemapub/lib/schemauri"
)

// Store reads schema documents from a definitions directory.
type Store struct {
	root string
}

// Open validates that root exists and is a directory, and returns a
// Store over it.
func Open(root string) (*Store, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("opening schema store: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("schema store %s is not a directory", root)
	}
	return &Store{root: root}, nil
}

// Root returns the definitions directory the store reads from.
func (s *Store) Root() string { return s.root }

// Versions lists the version directories, sorted ascending by
// semantic version. Entries that are not directories or not valid
// semantic versions are an error: the store tree is the publication
// source of record and must not accumulate stray content.
func (s *Store) Versions() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("listing schema store: %w", err)
	}

	versions := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			return nil, fmt.Errorf("schema store: %s is not a version directory", entry.Name())
		}
		if err := schemauri.ValidateVersion(entry.Name()); err != nil {
			return nil, fmt.Errorf("schema store: %w", err)
		}
		versions = append(versions, entry.Name())
	}

	sort.Slice(versions, func(i, j int) bool {
		return schemauri.CompareVersions(versions[i], versions[j]) < 0
	})
	return versions, nil
}

// Load reads and parses every schema document of one version, in
// lexical filename order so repeated loads produce the same document
// sequence. Every regular file in a version directory must be a
// .json schema document; anything else is an error.
func (s *Store) Load(version string) ([]*schemadoc.Document, error) {
	if err := schemauri.ValidateVersion(version); err != nil {
		return nil, err
	}

	dir := filepath.Join(s.root, version)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading version %s: %w", version, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			return nil, fmt.Errorf("version %s: unexpected subdirectory %s", version, entry.Name())
		}
		if !strings.HasSuffix(entry.Name(), ".json") {
			return nil, fmt.Errorf("version %s: %s is not a schema document", version, entry.Name())
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	if len(names) == 0 {
		return nil, fmt.Errorf("version %s has no schema documents", version)
	}

	documents := make([]*schemadoc.Document, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		doc, err := schemadoc.Parse(name, data)
		if err != nil {
			return nil, fmt.Errorf("version %s: %w", version, err)
		}
		documents = append(documents, doc)
	}
	return documents, nil
}
