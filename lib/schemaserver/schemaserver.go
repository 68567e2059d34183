// Copyright 2026 The Schemapub Authors
// SPDX-License-Identifier: Apache-2.0

// Package schemaserver implements the static schema file server used
// for local development and tests. Production deployments put a
// reverse proxy or CDN in front of the published tree instead; this
// handler exists so the full resolve-fetch-validate loop can be
// exercised without one, and it encodes the serving contract the
// pipeline depends on:
//
//   - exact path match only, no directory listings, no index files;
//   - anything outside the published set is a plain 404;
//   - dot-named files (the manifest, staging directories, the
//     publish lock) are never served;
//   - published bytes are immutable per version, so responses carry
//     an immutable cache policy.
package schemaserver

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Handler serves published schema documents from a serve root.
type Handler struct {
	root string
}

// New returns a Handler over the given serve root (the directory the
// publisher writes into; documents live under <root>/schemas/).
func New(root string) *Handler {
	return &Handler{root: root}
}

// ServeHTTP serves GET and HEAD requests for published documents.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	relative, ok := h.sanitize(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	data, err := os.ReadFile(filepath.Join(h.root, filepath.FromSlash(relative)))
	if err != nil {
		// Both missing files and unreadable ones are a 404: the
		// published set is exactly what is resolvable, nothing more.
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.Write(data)
}

// sanitize validates a request path against the served URL shape:
// /schemas/<version>/<name>.json with no dot segments anywhere.
// Returns the root-relative file path.
func (h *Handler) sanitize(requestPath string) (string, bool) {
	if !strings.HasPrefix(requestPath, "/schemas/") {
		return "", false
	}
	trimmed := strings.TrimPrefix(requestPath, "/")

	segments := strings.Split(trimmed, "/")
	if len(segments) != 3 {
		return "", false
	}
	for _, segment := range segments {
		if segment == "" || strings.HasPrefix(segment, ".") {
			return "", false
		}
	}
	if !strings.HasSuffix(segments[2], ".json") {
		return "", false
	}
	return trimmed, true
}
