// Copyright 2026 The Schemapub Authors
// SPDX-License-Identifier: Apache-2.0

// Package schemadoc parses, rewrites, and renders individual JSON
// Schema documents. A document is authored as JSONC (JSON extended
// with comments and trailing commas), declares its own canonical
// address in a top-level $id field, and may reference other documents
// through $ref fields at any nesting depth.
//
// The document's identity is the explicit $id value, never the file
// path it was read from. This keeps rewriting a pure function over
// values: the rewriter maps $id and $ref strings, and nothing else
// about the document changes.
package schemadoc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/fmu-schemas/schemapub/lib/schemauri"
)

// Field names with schema-level meaning. Everything else in a document
// is opaque content.
const (
	idField  = "$id"
	refField = "$ref"
)

// Document is one parsed schema document.
type Document struct {
	// SelfURI is the document's declared canonical address ($id).
	SelfURI schemauri.URI

	// Name is the filename the document was read as. Diagnostics use
	// it so an operator can find the file to fix; identity never does.
	Name string

	// References holds every absolute http(s) $ref target found
	// anywhere in the document, fragment stripped, deduplicated,
	// in deterministic traversal order.
	References []string

	// Body is the decoded document content, including $id and all
	// $ref fields. Numbers are decoded as json.Number so rendering
	// reproduces them verbatim.
	Body map[string]any
}

// MalformedSchemaError reports a file that cannot participate in a
// publication: unparseable content, or a missing or invalid $id.
type MalformedSchemaError struct {
	Name   string
	Reason string
}

func (e *MalformedSchemaError) Error() string {
	return fmt.Sprintf("malformed schema %s: %s", e.Name, e.Reason)
}

// Parse decodes a schema document. The input may contain JSONC
// comments and trailing commas; both are stripped before decoding.
// A missing, non-string, or unparseable $id is a *MalformedSchemaError.
func Parse(name string, data []byte) (*Document, error) {
	stripped := jsonc.ToJSON(data)

	decoder := json.NewDecoder(bytes.NewReader(stripped))
	decoder.UseNumber()

	var body map[string]any
	if err := decoder.Decode(&body); err != nil {
		return nil, &MalformedSchemaError{Name: name, Reason: fmt.Sprintf("parsing JSON: %v", err)}
	}

	rawID, ok := body[idField]
	if !ok {
		return nil, &MalformedSchemaError{Name: name, Reason: "missing $id"}
	}
	idString, ok := rawID.(string)
	if !ok {
		return nil, &MalformedSchemaError{Name: name, Reason: fmt.Sprintf("$id is %T, want string", rawID)}
	}
	selfURI, err := schemauri.Parse(idString)
	if err != nil {
		return nil, &MalformedSchemaError{Name: name, Reason: err.Error()}
	}

	doc := &Document{
		SelfURI: selfURI,
		Name:    name,
		Body:    body,
	}
	seen := make(map[string]bool)
	collectReferences(body, seen, &doc.References)
	return doc, nil
}

// collectReferences walks maps and arrays to any depth, recording
// every absolute http(s) $ref target. Map keys are visited in sorted
// order so the collected sequence is deterministic. Fragment-only and
// relative refs are JSON-pointer internals, not graph edges.
func collectReferences(value any, seen map[string]bool, out *[]string) {
	switch node := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(node))
		for key := range node {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if key == refField {
				if target, ok := node[key].(string); ok {
					if base := externalTarget(target); base != "" && !seen[base] {
						seen[base] = true
						*out = append(*out, base)
					}
				}
				continue
			}
			collectReferences(node[key], seen, out)
		}
	case []any:
		for _, element := range node {
			collectReferences(element, seen, out)
		}
	}
}

// externalTarget returns the fragment-stripped target of an absolute
// http(s) reference, or "" for internal refs.
func externalTarget(ref string) string {
	if !strings.HasPrefix(ref, "http://") && !strings.HasPrefix(ref, "https://") {
		return ""
	}
	base, _, _ := strings.Cut(ref, "#")
	return base
}

// Rewrite returns a new Document with the $id and every $ref mapped
// through the given function. The mapping receives the fragment-less
// target; fragments are reattached untouched. The receiver is never
// mutated.
func (d *Document) Rewrite(mapping func(string) string) (*Document, error) {
	body := rewriteValue(d.Body, mapping).(map[string]any)

	idString, _ := body[idField].(string)
	selfURI, err := schemauri.Parse(idString)
	if err != nil {
		return nil, fmt.Errorf("rewritten $id for %s: %w", d.Name, err)
	}

	doc := &Document{
		SelfURI: selfURI,
		Name:    d.Name,
		Body:    body,
	}
	seen := make(map[string]bool)
	collectReferences(body, seen, &doc.References)
	return doc, nil
}

// rewriteValue deep-copies value, applying mapping to $id and $ref
// string fields. Only external http(s) $ref targets are mapped;
// internal refs pass through as-is.
func rewriteValue(value any, mapping func(string) string) any {
	switch node := value.(type) {
	case map[string]any:
		copied := make(map[string]any, len(node))
		for key, element := range node {
			switch {
			case key == idField:
				if idString, ok := element.(string); ok {
					copied[key] = mapping(idString)
					continue
				}
				copied[key] = element
			case key == refField:
				if refString, ok := element.(string); ok {
					copied[key] = rewriteRef(refString, mapping)
					continue
				}
				copied[key] = rewriteValue(element, mapping)
			default:
				copied[key] = rewriteValue(element, mapping)
			}
		}
		return copied
	case []any:
		copied := make([]any, len(node))
		for i, element := range node {
			copied[i] = rewriteValue(element, mapping)
		}
		return copied
	default:
		return node
	}
}

func rewriteRef(ref string, mapping func(string) string) string {
	base := externalTarget(ref)
	if base == "" {
		return ref
	}
	_, fragment, hasFragment := strings.Cut(ref, "#")
	mapped := mapping(base)
	if hasFragment {
		return mapped + "#" + fragment
	}
	return mapped
}

// Render serializes the document deterministically: two-space indented
// JSON with object keys in sorted order and a trailing newline. The
// same logical content always renders to identical bytes, which is
// what lets a published version be byte-stable across republishes.
func (d *Document) Render() ([]byte, error) {
	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(d.Body); err != nil {
		return nil, fmt.Errorf("rendering %s: %w", d.Name, err)
	}
	return buffer.Bytes(), nil
}
