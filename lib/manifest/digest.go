// Copyright 2026 The Schemapub Authors
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Digest is a 32-byte BLAKE3 digest.
type Digest [32]byte

// domainKey is a 32-byte key for BLAKE3 keyed hashing. Domain
// separation ensures the same bytes produce different digests in
// different contexts (a document's digest can never collide with a
// tree digest over a single-file publication).
type domainKey [32]byte

// Domain separation keys. Fixed protocol constants: changing them
// invalidates every existing manifest. The byte values are the ASCII
// encoding of the domain name, zero-padded to 32 bytes, so the keys
// are inspectable in hex dumps.
var (
	documentDomainKey = domainKey{
		's', 'c', 'h', 'e', 'm', 'a', 'p', 'u', 'b', '.',
		'd', 'o', 'c', 'u', 'm', 'e', 'n', 't', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}

	treeDomainKey = domainKey{
		's', 'c', 'h', 'e', 'm', 'a', 'p', 'u', 'b', '.',
		't', 'r', 'e', 'e', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
)

// HashDocument computes the document-domain digest of a rendered
// schema document's bytes.
func HashDocument(data []byte) Digest {
	return keyedHash(documentDomainKey, data)
}

// hashTree computes the tree-domain digest over the concatenation of
// per-file digests. Callers must pass the digests in a canonical
// order (sorted by filename) for the result to be stable.
func hashTree(digests []Digest) Digest {
	hasher, err := blake3.NewKeyed(treeDomainKey[:])
	if err != nil {
		panic("manifest: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	for _, digest := range digests {
		hasher.Write(digest[:])
	}
	var result Digest
	copy(result[:], hasher.Sum(nil))
	return result
}

// FormatDigest returns the hex encoding of a digest, the canonical
// form used in manifests, logs, and CLI output.
func FormatDigest(digest Digest) string {
	return hex.EncodeToString(digest[:])
}

// ParseDigest parses a 64-character hex string into a Digest.
func ParseDigest(hexString string) (Digest, error) {
	var digest Digest
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return digest, fmt.Errorf("parsing digest: %w", err)
	}
	if len(decoded) != 32 {
		return digest, fmt.Errorf("digest is %d bytes, want 32", len(decoded))
	}
	copy(digest[:], decoded)
	return digest, nil
}

func keyedHash(key domainKey, data []byte) Digest {
	// NewKeyed requires exactly 32 bytes, which domainKey guarantees.
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("manifest: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest
}
