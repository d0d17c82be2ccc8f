// Package fileid derives document ids and content checksums for ingested files.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
)

const hashPrefix = "file-"

// FileDocID returns the document id of a filing at path: its base name
// without extension, restricted to letters, digits, '-', '_' and '.', so
// NVIDIA_Q1_2024.pdf becomes NVIDIA_Q1_2024. Names with nothing usable
// fall back to a hash of the cleaned path.
func FileDocID(path string) string {
	clean := filepath.Clean(path)
	base := filepath.Base(clean)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	id := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		case r == ' ':
			return '_'
		}
		return -1
	}, stem)
	id = strings.Trim(id, "._-")
	if id == "" {
		sum := sha256.Sum256([]byte(clean))
		return hashPrefix + hex.EncodeToString(sum[:])[:16]
	}
	return id
}

// Checksum returns the hex SHA-256 of content.
func Checksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
