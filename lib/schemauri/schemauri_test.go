// Copyright 2026 The Schemapub Authors
// SPDX-License-Identifier: Apache-2.0

package schemauri

import "testing"

func TestParse(t *testing.T) {
	uri, err := Parse("https://dev.example/schemas/0.8.0/fmu_results.json")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if uri.Prefix() != "https://dev.example" {
		t.Errorf("prefix = %q, want %q", uri.Prefix(), "https://dev.example")
	}
	if uri.Version() != "0.8.0" {
		t.Errorf("version = %q, want 0.8.0", uri.Version())
	}
	if uri.Name() != "fmu_results.json" {
		t.Errorf("name = %q, want fmu_results.json", uri.Name())
	}
	if uri.Path() != "schemas/0.8.0/fmu_results.json" {
		t.Errorf("path = %q", uri.Path())
	}
	if uri.String() != "https://dev.example/schemas/0.8.0/fmu_results.json" {
		t.Errorf("round trip = %q", uri.String())
	}
}

func TestParse_PrefixWithPath(t *testing.T) {
	uri, err := Parse("https://host.example/meta/schemas/1.2.3/a.json")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if uri.Prefix() != "https://host.example/meta" {
		t.Errorf("prefix = %q", uri.Prefix())
	}
}

func TestParse_Invalid(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"no scheme", "ftp://x/schemas/0.8.0/a.json"},
		{"no marker", "https://x/other/0.8.0/a.json"},
		{"double marker", "https://x/schemas/0.8.0/schemas/a.json"},
		{"missing name", "https://x/schemas/0.8.0"},
		{"bad version", "https://x/schemas/v0.8/a.json"},
		{"leading zero", "https://x/schemas/0.08.0/a.json"},
		{"bad extension", "https://x/schemas/0.8.0/a.yaml"},
		{"uppercase name", "https://x/schemas/0.8.0/A.json"},
		{"dotfile name", "https://x/schemas/0.8.0/.a.json"},
	}
	for _, tc := range cases {
		if _, err := Parse(tc.in); err == nil {
			t.Errorf("%s: Parse(%q) succeeded, want error", tc.name, tc.in)
		}
	}
}

func TestWithPrefix(t *testing.T) {
	uri, err := Parse("https://dev.example/schemas/0.8.0/a.json")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	rewritten := uri.WithPrefix("https://prod.example")
	if rewritten.String() != "https://prod.example/schemas/0.8.0/a.json" {
		t.Errorf("rewritten = %q", rewritten.String())
	}

	// Original value untouched.
	if uri.Prefix() != "https://dev.example" {
		t.Errorf("original mutated: prefix = %q", uri.Prefix())
	}

	// Applying the same prefix again is a no-op.
	again := rewritten.WithPrefix("https://prod.example")
	if again != rewritten {
		t.Errorf("second rewrite changed value: %q", again.String())
	}

	// Trailing slash on the prefix is normalized away.
	slashed := uri.WithPrefix("https://prod.example/")
	if slashed.String() != "https://prod.example/schemas/0.8.0/a.json" {
		t.Errorf("slashed prefix = %q", slashed.String())
	}
}

func TestValidateVersion(t *testing.T) {
	for _, version := range []string{"0.8.0", "1.0.0", "10.20.30", "0.0.0"} {
		if err := ValidateVersion(version); err != nil {
			t.Errorf("ValidateVersion(%q): %v", version, err)
		}
	}
	for _, version := range []string{"", "0.8", "0.8.0.0", "v0.8.0", "0.08.0", "0.8.0-rc1", "a.b.c"} {
		if err := ValidateVersion(version); err == nil {
			t.Errorf("ValidateVersion(%q) succeeded, want error", version)
		}
	}
}

func TestCompareVersions(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"0.8.0", "0.9.0", -1},
		{"0.9.0", "0.8.0", 1},
		{"0.8.0", "0.8.0", 0},
		{"0.10.0", "0.9.0", 1},
		{"1.0.0", "0.99.99", 1},
	}
	for _, tc := range cases {
		if got := CompareVersions(tc.a, tc.b); got != tc.want {
			t.Errorf("CompareVersions(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestIsSchemaURI(t *testing.T) {
	if !IsSchemaURI("https://x.example/schemas/0.8.0/a.json") {
		t.Error("valid URI rejected")
	}
	if IsSchemaURI("https://json-schema.org/draft-07/schema") {
		t.Error("external URI accepted")
	}
}
