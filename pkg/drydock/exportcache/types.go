package exportcache

import (
	"bytes"
	"encoding/gob"
	"time"
)

// FormatVersion is incremented when the cache format changes. Keys carry
// the version so a format bump simply orphans old entries.
const FormatVersion = 1

// KeySeparator separates the version tag from the image reference.
const KeySeparator = '\x00'

// Entry records one completed image export.
type Entry struct {
	ImageID       string // runtime image id, e.g. "sha256:4bcf..."
	TarballSHA256 string // hex digest of the exported tarball
	SizeBytes     int64
	ExportedAt    time.Time
}

// Encode serializes the entry to bytes using gob.
func (e *Entry) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode deserializes bytes into the entry using gob.
func (e *Entry) Decode(data []byte) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(e)
}

// MakeKey creates a cache key for an image reference.
// Format: v<version>\x00<reference>
func MakeKey(ref string) []byte {
	return append(KeyPrefix(), ref...)
}

// KeyPrefix returns the prefix shared by all current-format keys.
func KeyPrefix() []byte {
	return []byte{'v', '0' + FormatVersion, KeySeparator}
}

// ParseKey extracts the image reference from a cache key. Keys from other
// format versions return ok=false.
func ParseKey(key []byte) (ref string, ok bool) {
	prefix := KeyPrefix()
	if !bytes.HasPrefix(key, prefix) {
		return "", false
	}
	return string(key[len(prefix):]), true
}
