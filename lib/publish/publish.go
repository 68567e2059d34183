// Copyright 2026 The Schemapub Authors
// SPDX-License-Identifier: Apache-2.0

// Package publish materializes a verified, rewritten schema version
// under the static file server's serve root. The write path is
// all-or-nothing: every file is staged into a hidden directory next
// to the destination, then a single rename swaps the complete set
// into place. A failure at any point before the rename leaves the
// previously served tree untouched.
//
// Published versions are immutable. A republish that would produce
// byte-identical output is recognized via the manifest tree digest
// and short-circuits to success; one that would change a published
// version's bytes is refused.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/fmu-schemas/schemapub/lib/manifest"
	"github.com/fmu-schemas/schemapub/lib/schemagraph"
)

// lockFilename is the advisory lock taken for the duration of each
// version's stage-and-swap. It serializes concurrent publications
// (multiple versions in one run, or two processes) against the shared
// serve root.
const lockFilename = ".schemapub-lock"

// stagingPrefix marks in-progress staging directories. Leftovers from
// a crashed run are removed before the next publication of the same
// version stages.
const stagingPrefix = ".staging-"

// ImmutabilityError reports an attempt to publish different bytes for
// a version that is already completely published. Once served, a
// version's content is frozen; the fix is a new version, not a
// republish.
type ImmutabilityError struct {
	Version  string
	Dir      string
	Existing string // tree digest of the published set
	Proposed string // tree digest of the attempted set
}

func (e *ImmutabilityError) Error() string {
	return fmt.Sprintf("version %s is already published in %s with different content (published tree %.12s, proposed %.12s); published versions are immutable",
		e.Version, e.Dir, e.Existing, e.Proposed)
}

// Publication is the write-once result of the pipeline for one
// version: rendered documents plus their manifest.
type Publication struct {
	Version  string
	Prefix   string
	RunID    string
	Files    map[string][]byte
	Manifest *manifest.Manifest
}

// NewPublication renders every document of a verified graph and
// builds the manifest. The graph must already have passed
// verification; this function does not re-verify.
func NewPublication(g *schemagraph.Graph, prefix, runID string) (*Publication, error) {
	files := make(map[string][]byte, len(g.Documents))
	for _, doc := range g.Documents {
		rendered, err := doc.Render()
		if err != nil {
			return nil, err
		}
		files[doc.SelfURI.Name()] = rendered
	}
	return &Publication{
		Version:  g.Version,
		Prefix:   strings.TrimSuffix(prefix, "/"),
		RunID:    runID,
		Files:    files,
		Manifest: manifest.New(g.Version, strings.TrimSuffix(prefix, "/"), runID, files),
	}, nil
}

// Publisher writes publications under a serve root.
type Publisher struct {
	// ServeRoot is the directory the schema server exposes. Published
	// files appear under <ServeRoot>/schemas/<version>/.
	ServeRoot string

	// OwnerUID and OwnerGID are applied to every published file and
	// directory so the serving process can read them. -1 leaves
	// ownership untouched (tests, unprivileged runs).
	OwnerUID int
	OwnerGID int

	// FileMode and DirMode are the permissions for published files
	// and directories. Zero values default to 0644 and 0755.
	FileMode fs.FileMode
	DirMode  fs.FileMode

	// Logger receives progress and cleanup events. Nil disables
	// logging.
	Logger *slog.Logger
}

// NewPublisher returns a Publisher for the given serve root with
// ownership changes disabled and default modes. Callers set OwnerUID
// and OwnerGID explicitly when the serving process runs as a
// different user.
func NewPublisher(serveRoot string) *Publisher {
	return &Publisher{
		ServeRoot: serveRoot,
		OwnerUID:  -1,
		OwnerGID:  -1,
	}
}

func (p *Publisher) fileMode() fs.FileMode {
	if p.FileMode == 0 {
		return 0o644
	}
	return p.FileMode
}

func (p *Publisher) dirMode() fs.FileMode {
	if p.DirMode == 0 {
		return 0o755
	}
	return p.DirMode
}

func (p *Publisher) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return p.Logger
}

// Publish materializes the publication. The sequence is:
//
//  1. take the serve-root lock,
//  2. inspect any existing publication of the version: byte-identical
//     and complete → success (idempotent republish); complete with
//     different bytes → *ImmutabilityError; incomplete →
//     *manifest.PartialWriteError (a partial tree is never silently
//     replaced; the operator removes it and redeploys),
//  3. stage all files plus the manifest into a hidden sibling
//     directory, applying ownership and permissions,
//  4. rename the staging directory onto the final path.
//
// Context cancellation is honored between files during staging; a
// canceled publication leaves only a staging directory, which the
// next run removes.
func (p *Publisher) Publish(ctx context.Context, pub *Publication) error {
	schemasDir := filepath.Join(p.ServeRoot, "schemas")
	if err := os.MkdirAll(schemasDir, p.dirMode()); err != nil {
		return fmt.Errorf("creating serve root: %w", err)
	}

	unlock, err := p.acquireLock()
	if err != nil {
		return err
	}
	defer unlock()

	finalDir := filepath.Join(schemasDir, pub.Version)
	switch existing, err := p.inspectExisting(finalDir, pub); {
	case err != nil:
		return err
	case existing:
		p.logger().Info("version already published with identical content",
			"version", pub.Version, "dir", finalDir)
		return nil
	}

	p.removeStaleStaging(schemasDir, pub.Version)

	stagingDir := filepath.Join(schemasDir, stagingPrefix+pub.Version+"-"+pub.RunID)
	if err := p.stage(ctx, stagingDir, pub); err != nil {
		os.RemoveAll(stagingDir)
		return err
	}

	if err := os.Rename(stagingDir, finalDir); err != nil {
		os.RemoveAll(stagingDir)
		return fmt.Errorf("swapping version %s into place: %w", pub.Version, err)
	}

	p.logger().Info("published schema version",
		"version", pub.Version,
		"prefix", pub.Prefix,
		"files", len(pub.Files),
		"tree_digest", pub.Manifest.TreeDigest,
		"run_id", pub.RunID)
	return nil
}

// acquireLock takes an exclusive flock on the serve root's lock file.
// The returned function releases it.
func (p *Publisher) acquireLock() (func(), error) {
	lockPath := filepath.Join(p.ServeRoot, lockFilename)
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening publish lock: %w", err)
	}
	if err := unix.Flock(int(lockFile.Fd()), unix.LOCK_EX); err != nil {
		lockFile.Close()
		return nil, fmt.Errorf("locking %s: %w", lockPath, err)
	}
	return func() {
		unix.Flock(int(lockFile.Fd()), unix.LOCK_UN)
		lockFile.Close()
	}, nil
}

// inspectExisting decides what an existing directory at the final
// path means. Returns (true, nil) when the existing publication is
// complete and byte-identical, so the caller can stop successfully.
func (p *Publisher) inspectExisting(finalDir string, pub *Publication) (bool, error) {
	if _, err := os.Stat(finalDir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("inspecting %s: %w", finalDir, err)
	}

	if !manifest.Exists(finalDir) {
		// Files without a manifest: not a product of this pipeline's
		// swap (which always includes one). Refuse to overwrite.
		return false, &manifest.PartialWriteError{
			Version: pub.Version,
			Dir:     finalDir,
			Missing: []string{manifest.Filename},
		}
	}

	existing, err := manifest.Load(finalDir)
	if err != nil {
		return false, err
	}
	if err := existing.Verify(finalDir); err != nil {
		return false, err
	}

	if existing.TreeDigest == pub.Manifest.TreeDigest {
		return true, nil
	}
	return false, &ImmutabilityError{
		Version:  pub.Version,
		Dir:      finalDir,
		Existing: existing.TreeDigest,
		Proposed: pub.Manifest.TreeDigest,
	}
}

// removeStaleStaging cleans up staging directories a crashed or
// canceled earlier run left behind for this version.
func (p *Publisher) removeStaleStaging(schemasDir, version string) {
	entries, err := os.ReadDir(schemasDir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), stagingPrefix+version+"-") {
			p.logger().Warn("removing stale staging directory", "dir", entry.Name())
			os.RemoveAll(filepath.Join(schemasDir, entry.Name()))
		}
	}
}

// stage writes the full publication into stagingDir.
func (p *Publisher) stage(ctx context.Context, stagingDir string, pub *Publication) error {
	if err := os.Mkdir(stagingDir, p.dirMode()); err != nil {
		return fmt.Errorf("creating staging directory: %w", err)
	}
	if err := p.applyOwner(stagingDir); err != nil {
		return err
	}

	names := make([]string, 0, len(pub.Files))
	for name := range pub.Files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("publication of version %s canceled: %w", pub.Version, err)
		}
		path := filepath.Join(stagingDir, name)
		if err := os.WriteFile(path, pub.Files[name], p.fileMode()); err != nil {
			return fmt.Errorf("staging %s: %w", name, err)
		}
		// WriteFile applies the mode only at creation and subject to
		// umask; make the final permissions explicit.
		if err := os.Chmod(path, p.fileMode()); err != nil {
			return fmt.Errorf("setting mode on %s: %w", name, err)
		}
		if err := p.applyOwner(path); err != nil {
			return err
		}
	}

	if err := pub.Manifest.Write(stagingDir); err != nil {
		return err
	}
	if err := p.applyOwner(filepath.Join(stagingDir, manifest.Filename)); err != nil {
		return err
	}
	return nil
}

func (p *Publisher) applyOwner(path string) error {
	if p.OwnerUID < 0 && p.OwnerGID < 0 {
		return nil
	}
	if err := os.Chown(path, p.OwnerUID, p.OwnerGID); err != nil {
		return fmt.Errorf("setting ownership on %s: %w", path, err)
	}
	return nil
}
