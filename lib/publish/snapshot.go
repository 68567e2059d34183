// Copyright 2026 The Schemapub Authors
// SPDX-License-Identifier: Apache-2.0

package publish

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/fmu-schemas/schemapub/lib/manifest"
)

// CompressionTag identifies the compression algorithm for audit
// snapshots. The tag is part of the snapshot filename extension, so
// an operator can decompress with standard tools.
type CompressionTag uint8

const (
	// CompressionNone writes a plain tar. Schema trees are small;
	// this is fine for local development.
	CompressionNone CompressionTag = 0

	// CompressionLZ4 trades ratio for speed.
	CompressionLZ4 CompressionTag = 1

	// CompressionZstd is the default: JSON compresses well under
	// zstd and snapshots are written once, read rarely.
	CompressionZstd CompressionTag = 2
)

// String returns the tag's config-file spelling.
func (tag CompressionTag) String() string {
	switch tag {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(tag))
	}
}

// ParseCompressionTag parses a tag from its config-file spelling.
func ParseCompressionTag(name string) (CompressionTag, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression tag: %q", name)
	}
}

// extension returns the snapshot filename extension for the tag.
func (tag CompressionTag) extension() string {
	switch tag {
	case CompressionLZ4:
		return ".tar.lz4"
	case CompressionZstd:
		return ".tar.zst"
	default:
		return ".tar"
	}
}

// WriteSnapshot archives a publication's rendered files and manifest
// into <auditDir>/<version>-<runID><ext> for offline audit and
// diffing. The write is atomic (temp file, then rename). Returns the
// final snapshot path.
//
// Snapshots are an audit trail, not a serving artifact: losing one
// never affects what consumers see.
func WriteSnapshot(auditDir string, pub *Publication, tag CompressionTag) (string, error) {
	if err := os.MkdirAll(auditDir, 0o755); err != nil {
		return "", fmt.Errorf("creating audit directory: %w", err)
	}

	finalPath := filepath.Join(auditDir, pub.Version+"-"+pub.RunID+tag.extension())

	tmpFile, err := os.CreateTemp(auditDir, ".snapshot-*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating snapshot temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if err := writeArchive(tmpFile, pub, tag); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return "", err
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("closing snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("renaming snapshot into place: %w", err)
	}
	return finalPath, nil
}

func writeArchive(w io.Writer, pub *Publication, tag CompressionTag) error {
	var compressed io.Writer
	var finish func() error

	switch tag {
	case CompressionNone:
		compressed = w
		finish = func() error { return nil }
	case CompressionLZ4:
		lz4Writer := lz4.NewWriter(w)
		compressed = lz4Writer
		finish = lz4Writer.Close
	case CompressionZstd:
		zstdWriter, err := zstd.NewWriter(w)
		if err != nil {
			return fmt.Errorf("initializing zstd: %w", err)
		}
		compressed = zstdWriter
		finish = zstdWriter.Close
	default:
		return fmt.Errorf("unknown compression tag: %d", tag)
	}

	tarWriter := tar.NewWriter(compressed)

	manifestBytes, err := pub.Manifest.Encode()
	if err != nil {
		return fmt.Errorf("encoding snapshot manifest: %w", err)
	}
	entries := map[string][]byte{manifest.Filename: manifestBytes}
	for name, data := range pub.Files {
		entries[name] = data
	}

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		header := &tar.Header{
			Name: pub.Version + "/" + name,
			Mode: 0o644,
			Size: int64(len(entries[name])),
		}
		if err := tarWriter.WriteHeader(header); err != nil {
			return fmt.Errorf("writing snapshot header for %s: %w", name, err)
		}
		if _, err := tarWriter.Write(entries[name]); err != nil {
			return fmt.Errorf("writing snapshot entry %s: %w", name, err)
		}
	}

	if err := tarWriter.Close(); err != nil {
		return fmt.Errorf("finalizing snapshot archive: %w", err)
	}
	if err := finish(); err != nil {
		return fmt.Errorf("finalizing snapshot compression: %w", err)
	}
	return nil
}
