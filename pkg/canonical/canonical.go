// Package canonical provides RFC 8785 (JCS) canonicalization and content
// addressing for compiled rule documents. Two documents that differ only in
// key order or whitespace canonicalize to the same bytes and therefore the
// same hash, which is what makes artifact identity stable across
// recompilations.
package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/gowebpki/jcs"
)

// HashPrefix tags content hashes with the digest algorithm.
const HashPrefix = "sha256:"

// Transform returns the RFC 8785 canonical form of a JSON document.
func Transform(doc []byte) ([]byte, error) {
	out, err := jcs.Transform(doc)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: %w", err)
	}
	return out, nil
}

// Hash canonicalizes doc and returns its content address in the
// "sha256:<hex>" form used by the artifact stores.
func Hash(doc []byte) (string, error) {
	c, err := Transform(doc)
	if err != nil {
		return "", err
	}
	return HashBytes(c), nil
}

// HashBytes content-addresses raw bytes without canonicalizing first.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return HashPrefix + hex.EncodeToString(sum[:])
}
