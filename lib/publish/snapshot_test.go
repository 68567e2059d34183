// Copyright 2026 The Schemapub Authors
// SPDX-License-Identifier: Apache-2.0

package publish

import (
	"archive/tar"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/fmu-schemas/schemapub/lib/manifest"
)

func TestCompressionTagRoundTrip(t *testing.T) {
	for _, tag := range []CompressionTag{CompressionNone, CompressionLZ4, CompressionZstd} {
		parsed, err := ParseCompressionTag(tag.String())
		if err != nil {
			t.Errorf("ParseCompressionTag(%q): %v", tag.String(), err)
		}
		if parsed != tag {
			t.Errorf("round trip: %v -> %v", tag, parsed)
		}
	}
	if _, err := ParseCompressionTag("gzip"); err == nil {
		t.Error("unknown tag accepted")
	}
}

func TestWriteSnapshot(t *testing.T) {
	for _, tag := range []CompressionTag{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(tag.String(), func(t *testing.T) {
			auditDir := t.TempDir()
			pub := testPublication(t, "run-1")

			path, err := WriteSnapshot(auditDir, pub, tag)
			if err != nil {
				t.Fatalf("WriteSnapshot: %v", err)
			}
			if !strings.HasPrefix(path, auditDir) {
				t.Errorf("snapshot path %q outside audit dir", path)
			}

			file, err := os.Open(path)
			if err != nil {
				t.Fatal(err)
			}
			defer file.Close()

			var reader io.Reader = file
			switch tag {
			case CompressionLZ4:
				reader = lz4.NewReader(file)
			case CompressionZstd:
				zstdReader, err := zstd.NewReader(file)
				if err != nil {
					t.Fatalf("zstd reader: %v", err)
				}
				defer zstdReader.Close()
				reader = zstdReader
			}

			want := map[string]bool{
				"0.8.0/a.json":                false,
				"0.8.0/b.json":                false,
				"0.8.0/" + manifest.Filename: false,
			}
			tarReader := tar.NewReader(reader)
			for {
				header, err := tarReader.Next()
				if err == io.EOF {
					break
				}
				if err != nil {
					t.Fatalf("reading archive: %v", err)
				}
				if _, ok := want[header.Name]; !ok {
					t.Errorf("unexpected archive entry %q", header.Name)
					continue
				}
				want[header.Name] = true
				data, err := io.ReadAll(tarReader)
				if err != nil {
					t.Fatalf("reading entry %s: %v", header.Name, err)
				}
				if header.Name == "0.8.0/a.json" && string(data) != string(pub.Files["a.json"]) {
					t.Errorf("entry %s content mismatch", header.Name)
				}
			}
			for name, seen := range want {
				if !seen {
					t.Errorf("archive missing entry %q", name)
				}
			}
		})
	}
}
