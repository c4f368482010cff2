// Package checksum fingerprints vault files. The index compares these
// digests to skip unchanged notes, and publish history stores them to tell
// whether a note changed since it was last published.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

// Sum returns the hex SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Reader returns the digest of everything read from r.
func Reader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// File returns the digest of the file at path without loading it whole.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return Reader(f)
}
