// Copyright 2026 The Schemapub Authors
// SPDX-License-Identifier: Apache-2.0

// Package schemauri provides the URI value type for schema document
// addresses. Every published schema document is addressed as
//
//	<prefix>/schemas/<version>/<name>.json
//
// where the prefix is the environment-specific base (scheme and host,
// possibly with a path), the version is a strict semantic version, and
// the name is the document filename. The prefix is the only part that
// differs between environments; the suffix after the /schemas/ marker
// is stable for the lifetime of a version.
package schemauri

import (
	"fmt"
	"strings"
)

// Marker is the path segment that separates the environment prefix
// from the version/name suffix. It appears exactly once in a valid
// schema URI.
const Marker = "/schemas/"

// allowedNameChars is the set of characters permitted in a schema
// document filename: lowercase a-z, 0-9, and the symbols . _ -.
var allowedNameChars [256]bool

func init() {
	for c := byte('a'); c <= 'z'; c++ {
		allowedNameChars[c] = true
	}
	for c := byte('0'); c <= '9'; c++ {
		allowedNameChars[c] = true
	}
	allowedNameChars['.'] = true
	allowedNameChars['_'] = true
	allowedNameChars['-'] = true
}

// URI is a parsed schema document address. The zero value is invalid;
// construct via [Parse] or [URI.WithPrefix].
type URI struct {
	prefix  string
	version string
	name    string
}

// Parse splits s into prefix, version, and name around the /schemas/
// marker and validates each part. The prefix must be an http or https
// URL base without a trailing slash; the version must be a strict
// semantic version; the name must be a plain .json filename.
func Parse(s string) (URI, error) {
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return URI{}, fmt.Errorf("schema URI %q: scheme must be http or https", s)
	}

	index := strings.Index(s, Marker)
	if index < 0 {
		return URI{}, fmt.Errorf("schema URI %q: missing %q path marker", s, Marker)
	}
	if strings.Index(s[index+1:], Marker) >= 0 {
		return URI{}, fmt.Errorf("schema URI %q: %q appears more than once", s, Marker)
	}

	prefix := s[:index]
	suffix := s[index+len(Marker):]

	version, name, ok := strings.Cut(suffix, "/")
	if !ok {
		return URI{}, fmt.Errorf("schema URI %q: want %q followed by <version>/<name>.json", s, Marker)
	}

	if err := ValidateVersion(version); err != nil {
		return URI{}, fmt.Errorf("schema URI %q: %w", s, err)
	}
	if err := ValidateName(name); err != nil {
		return URI{}, fmt.Errorf("schema URI %q: %w", s, err)
	}

	return URI{prefix: prefix, version: version, name: name}, nil
}

// IsSchemaURI reports whether s parses as a schema URI. Used by the
// rewriter to decide whether a reference is shaped like one of ours at
// all; ownership is still decided against the known prefix set.
func IsSchemaURI(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// Prefix returns the environment base, without a trailing slash.
func (u URI) Prefix() string { return u.prefix }

// Version returns the semantic version segment.
func (u URI) Version() string { return u.version }

// Name returns the document filename, including the .json extension.
func (u URI) Name() string { return u.name }

// Path returns the prefix-independent suffix: schemas/<version>/<name>.
// This is the path a static file server resolves under its serve root.
func (u URI) Path() string {
	return "schemas/" + u.version + "/" + u.name
}

// String returns the full URI.
func (u URI) String() string {
	return u.prefix + Marker + u.version + "/" + u.name
}

// WithPrefix returns a copy of u rooted at the given prefix. The
// version and name are untouched, so applying the same prefix twice
// is a no-op. A trailing slash on prefix is stripped.
func (u URI) WithPrefix(prefix string) URI {
	u.prefix = strings.TrimSuffix(prefix, "/")
	return u
}

// ValidateVersion enforces strict MAJOR.MINOR.PATCH: three dot-separated
// non-empty decimal components with no leading zeros and no prerelease
// or build suffix. Version directories and URI version segments share
// this rule, so a directory name and its documents' self URIs can be
// compared directly.
func ValidateVersion(version string) error {
	parts := strings.Split(version, ".")
	if len(parts) != 3 {
		return fmt.Errorf("version %q: want MAJOR.MINOR.PATCH", version)
	}
	for _, part := range parts {
		if part == "" {
			return fmt.Errorf("version %q: empty component", version)
		}
		if len(part) > 1 && part[0] == '0' {
			return fmt.Errorf("version %q: leading zero in component %q", version, part)
		}
		for i := 0; i < len(part); i++ {
			if part[i] < '0' || part[i] > '9' {
				return fmt.Errorf("version %q: non-digit %q in component %q", version, part[i], part)
			}
		}
	}
	return nil
}

// ValidateName enforces schema filename rules: characters restricted to
// a-z, 0-9, ., _, -; a .json extension; no leading dot; no ".."
// anywhere (the character set already excludes path separators, but
// ".." is rejected outright).
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("schema name is empty")
	}
	for i := 0; i < len(name); i++ {
		if !allowedNameChars[name[i]] {
			return fmt.Errorf("schema name %q: invalid character %q at position %d (allowed: a-z, 0-9, ., _, -)", name, name[i], i)
		}
	}
	if name[0] == '.' {
		return fmt.Errorf("schema name %q must not start with a dot", name)
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("schema name %q contains %q", name, "..")
	}
	if !strings.HasSuffix(name, ".json") || name == ".json" {
		return fmt.Errorf("schema name %q must end in .json", name)
	}
	return nil
}

// CompareVersions orders two valid semantic versions. Returns -1, 0,
// or 1. Both inputs must have passed [ValidateVersion]; invalid input
// ordering is unspecified.
func CompareVersions(a, b string) int {
	aParts := strings.Split(a, ".")
	bParts := strings.Split(b, ".")
	for i := 0; i < 3; i++ {
		aValue, bValue := numericValue(aParts, i), numericValue(bParts, i)
		if aValue != bValue {
			if aValue < bValue {
				return -1
			}
			return 1
		}
	}
	return 0
}

func numericValue(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	value := 0
	for j := 0; j < len(parts[i]); j++ {
		value = value*10 + int(parts[i][j]-'0')
	}
	return value
}
