// Package exportcache remembers completed container image exports so the
// bundle assembler can skip re-exporting images that have not changed.
//
// An entry is trusted only when three things still line up: the runtime's
// image id for the reference, the tarball's presence on disk, and the
// tarball's checksum. Anything off means the export runs again.
package exportcache

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jamesainslie/drydock/pkg/drydock/archive"
)

// Cache provides high-level export caching for the bundle assembler.
type Cache struct {
	store *Store
}

// Open opens or creates an export cache at the given path.
func Open(path string) (*Cache, error) {
	store, err := OpenStore(path)
	if err != nil {
		return nil, err
	}
	return &Cache{store: store}, nil
}

// Close closes the cache.
func (c *Cache) Close() error {
	return c.store.Close()
}

// IsFresh reports whether the recorded export for ref still matches both
// the runtime image id and the tarball on disk. Any mismatch, including a
// missing tarball, returns false so the caller re-exports.
func (c *Cache) IsFresh(ref, imageID, tarballPath string) (bool, error) {
	entry, err := c.store.Get(ref)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if entry.ImageID != imageID {
		return false, nil
	}

	info, err := os.Stat(tarballPath)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if info.Size() != entry.SizeBytes {
		return false, nil
	}

	sum, err := archive.SHA256File(tarballPath)
	if err != nil {
		return false, err
	}
	return sum == entry.TarballSHA256, nil
}

// Record stores the export that just completed and returns the entry,
// whose checksum the caller reuses for the bundle manifest.
func (c *Cache) Record(ref, imageID, tarballPath string) (*Entry, error) {
	info, err := os.Stat(tarballPath)
	if err != nil {
		return nil, fmt.Errorf("stat exported tarball: %w", err)
	}
	sum, err := archive.SHA256File(tarballPath)
	if err != nil {
		return nil, err
	}

	entry := &Entry{
		ImageID:       imageID,
		TarballSHA256: sum,
		SizeBytes:     info.Size(),
		ExportedAt:    time.Now().UTC(),
	}
	if err := c.store.Put(ref, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Forget drops the recorded export for a reference.
func (c *Cache) Forget(ref string) error {
	return c.store.Delete(ref)
}

// Clear removes all recorded exports.
func (c *Cache) Clear() error {
	return c.store.Clear()
}

// CollectStats summarizes recorded exports.
func (c *Cache) CollectStats() (*Stats, error) {
	return c.store.CollectStats()
}
