// Copyright 2026 The Schemapub Authors
// SPDX-License-Identifier: Apache-2.0

// Package schemagraph models one schema version's documents as a
// directed reference graph and implements the three pure pipeline
// stages over it: build, rewrite, verify.
//
// A graph is scoped to exactly one version. References between
// versions are not allowed: a published version's bytes are frozen,
// so an edge into another version would couple two immutable units.
// Such a reference simply fails closure verification.
//
// All stages treat their input as immutable. Rewrite returns a fresh
// graph and leaves the original available for diffing; Verify only
// inspects. The current schema trees are acyclic, but nothing here
// assumes that: every traversal is over the node set or guarded by a
// visited set, so mutually-referencing schemas cannot cause
// non-termination.
package schemagraph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fmu-schemas/schemapub/lib/schemadoc"
	"github.com/fmu-schemas/schemapub/lib/schemauri"
)

// Graph is the reference graph for one schema version. Documents keep
// their input order; byURI indexes them by self URI string.
type Graph struct {
	Version   string
	Documents []*schemadoc.Document

	byURI map[string]*schemadoc.Document
}

// DuplicateSelfURIError reports two or more documents in the same
// version declaring the same $id. The rewrite target would be
// ambiguous, so the build refuses the whole version.
type DuplicateSelfURIError struct {
	URI   string
	Names []string
}

func (e *DuplicateSelfURIError) Error() string {
	return fmt.Sprintf("duplicate self URI %s declared by %s", e.URI, strings.Join(e.Names, ", "))
}

// VersionMismatchError reports a document whose $id carries a
// different version segment than the store directory it lives in.
type VersionMismatchError struct {
	Name    string
	SelfURI string
	Version string
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("%s: self URI %s does not belong to version %s", e.Name, e.SelfURI, e.Version)
}

// Build assembles a graph from parsed documents, one node per
// document. It fails on duplicate self URIs and on documents whose
// $id version segment disagrees with the given version.
func Build(version string, documents []*schemadoc.Document) (*Graph, error) {
	if err := schemauri.ValidateVersion(version); err != nil {
		return nil, err
	}

	graph := &Graph{
		Version:   version,
		Documents: documents,
		byURI:     make(map[string]*schemadoc.Document, len(documents)),
	}

	for _, doc := range documents {
		if doc.SelfURI.Version() != version {
			return nil, &VersionMismatchError{
				Name:    doc.Name,
				SelfURI: doc.SelfURI.String(),
				Version: version,
			}
		}

		key := doc.SelfURI.String()
		if existing, ok := graph.byURI[key]; ok {
			return nil, &DuplicateSelfURIError{
				URI:   key,
				Names: []string{existing.Name, doc.Name},
			}
		}
		graph.byURI[key] = doc
	}

	return graph, nil
}

// Lookup returns the document declaring the given self URI.
func (g *Graph) Lookup(uri string) (*schemadoc.Document, bool) {
	doc, ok := g.byURI[uri]
	return doc, ok
}

// Prefixes returns the distinct environment prefixes of the graph's
// own self URIs, sorted. A freshly authored store has exactly one;
// a half-rewritten tree would show more, which the rewriter handles
// by recognizing all of them.
func (g *Graph) Prefixes() []string {
	set := make(map[string]bool)
	for _, doc := range g.Documents {
		set[doc.SelfURI.Prefix()] = true
	}
	prefixes := make([]string, 0, len(set))
	for prefix := range set {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)
	return prefixes
}

// Closure returns the self URIs reachable from the given document,
// including itself, in breadth-first order. Traversal is visited-set
// based; cycles terminate. References that do not resolve within the
// graph are skipped (Verify reports those).
func (g *Graph) Closure(uri string) []string {
	visited := map[string]bool{uri: true}
	order := []string{uri}
	queue := []string{uri}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		doc, ok := g.byURI[current]
		if !ok {
			continue
		}
		for _, ref := range doc.References {
			if visited[ref] {
				continue
			}
			visited[ref] = true
			if _, ok := g.byURI[ref]; ok {
				order = append(order, ref)
				queue = append(queue, ref)
			}
		}
	}
	return order
}

// Rewrite returns a new graph with every self URI and reference
// rooted at the given prefix. Only URIs under the graph's own
// authority are touched: a reference is rewritten when it lies under
// one of the graph's current self URI prefixes or the target prefix
// itself (the latter makes rewriting a fixed point: rewriting an
// already-rewritten graph is a no-op). Lying under a prefix is a
// string-level test on prefix + "/schemas/", not successful parsing,
// so a shape-invalid reference under an owned prefix is still moved
// to the target; the source environment never survives into the
// published bytes, and [Verify] reports the reference as unresolved.
// External references pass through byte-identical.
//
// The input graph is not mutated. The result is assembled directly
// rather than through [Build] so that a rewrite that collapses two
// documents onto one URI surfaces in [Verify]'s collision report
// instead of a single-pair build error.
func Rewrite(g *Graph, prefix string) (*Graph, error) {
	prefix = strings.TrimSuffix(prefix, "/")

	// Longest prefix first so a nested prefix wins over a shorter
	// one it extends.
	recognized := append(g.Prefixes(), prefix)
	sort.Slice(recognized, func(i, j int) bool {
		if len(recognized[i]) != len(recognized[j]) {
			return len(recognized[i]) > len(recognized[j])
		}
		return recognized[i] < recognized[j]
	})

	mapping := func(target string) string {
		for _, p := range recognized {
			if underPrefix(target, p) {
				return prefix + strings.TrimPrefix(target, p)
			}
		}
		return target
	}

	rewritten := &Graph{
		Version:   g.Version,
		Documents: make([]*schemadoc.Document, 0, len(g.Documents)),
		byURI:     make(map[string]*schemadoc.Document, len(g.Documents)),
	}
	for _, doc := range g.Documents {
		mapped, err := doc.Rewrite(mapping)
		if err != nil {
			return nil, err
		}
		rewritten.Documents = append(rewritten.Documents, mapped)
		if _, exists := rewritten.byURI[mapped.SelfURI.String()]; !exists {
			rewritten.byURI[mapped.SelfURI.String()] = mapped
		}
	}
	return rewritten, nil
}

// DanglingRef is a reference whose target is not declared by any
// document in the graph.
type DanglingRef struct {
	// Source is the filename of the referencing document.
	Source string
	// SourceURI is the referencing document's self URI.
	SourceURI string
	// Target is the unresolved reference.
	Target string
}

func (d DanglingRef) String() string {
	return fmt.Sprintf("%s references %s, which is not in the publication set", d.Source, d.Target)
}

// Verdict is the result of closure verification. A verdict with no
// dangling references and no collisions is passing.
type Verdict struct {
	Version string

	// Dangling lists every unresolved reference, not just the first,
	// so one fix pass can address all of them.
	Dangling []DanglingRef

	// Collisions lists groups of document filenames that ended up
	// sharing a self URI after rewriting.
	Collisions [][]string
}

// OK reports whether the graph passed verification.
func (v *Verdict) OK() bool {
	return len(v.Dangling) == 0 && len(v.Collisions) == 0
}

// Err flattens the verdict into a single diagnostic error, one line
// per finding, or nil if the verdict is passing.
func (v *Verdict) Err() error {
	if v.OK() {
		return nil
	}
	var lines []string
	for _, group := range v.Collisions {
		lines = append(lines, fmt.Sprintf("self URI collision after rewrite: %s", strings.Join(group, ", ")))
	}
	for _, dangling := range v.Dangling {
		lines = append(lines, dangling.String())
	}
	return fmt.Errorf("version %s failed verification:\n  %s", v.Version, strings.Join(lines, "\n  "))
}

// underPrefix reports whether ref lies under the given environment
// prefix, meaning it starts with prefix + "/schemas/". Ownership is
// a string-level test so that references which fail schema URI
// validation but sit under an owned prefix are still claimed by the
// pipeline instead of passing as another authority's.
func underPrefix(ref, prefix string) bool {
	return strings.HasPrefix(ref, prefix+schemauri.Marker)
}

func underAnyPrefix(ref string, prefixes []string) bool {
	for _, p := range prefixes {
		if underPrefix(ref, p) {
			return true
		}
	}
	return false
}

// Verify checks that the graph is closed: every reference resolves to
// a self URI declared within the same graph, and no two documents
// share a self URI. It never mutates the graph. Only references under
// the graph's own prefixes are required to resolve; external
// references (other authorities) are out of this pipeline's control
// and are not findings. A reference under an owned prefix is a
// finding whenever it does not resolve, including when it is not a
// well-formed schema URI at all.
func Verify(g *Graph) *Verdict {
	verdict := &Verdict{Version: g.Version}

	declared := make(map[string][]string)
	for _, doc := range g.Documents {
		key := doc.SelfURI.String()
		declared[key] = append(declared[key], doc.Name)
	}
	collided := make([]string, 0)
	for uri, names := range declared {
		if len(names) > 1 {
			collided = append(collided, uri)
		}
	}
	sort.Strings(collided)
	for _, uri := range collided {
		verdict.Collisions = append(verdict.Collisions, declared[uri])
	}

	owned := g.Prefixes()

	for _, doc := range g.Documents {
		for _, ref := range doc.References {
			if _, ok := declared[ref]; ok {
				continue
			}
			if !underAnyPrefix(ref, owned) {
				// Another authority's reference; the rewriter left
				// it alone and the verifier has no say over it.
				continue
			}
			verdict.Dangling = append(verdict.Dangling, DanglingRef{
				Source:    doc.Name,
				SourceURI: doc.SelfURI.String(),
				Target:    ref,
			})
		}
	}

	return verdict
}
