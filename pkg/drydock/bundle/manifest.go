package bundle

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/charlievieth/fastwalk"

	"github.com/jamesainslie/drydock/pkg/drydock/archive"
	"github.com/jamesainslie/drydock/pkg/drydock/hostinfo"
)

// ManifestName is the manifest file, always at the bundle root.
const ManifestName = "manifest.json"

// Manifest records what a bundle contains and where it was built. The
// assembler writes it last, after every other artifact is final; the
// installer treats it as read-only ground truth when verifying tarballs
// and warning about host divergence.
type Manifest struct {
	// ID uniquely identifies one assembly run.
	ID string `json:"id"`

	Tool    string `json:"tool"`
	Version string `json:"version"`

	CreatedAt time.Time `json:"created_at"`

	// OS and Arch are the build host's GOOS/GOARCH, also embedded in
	// the archive name.
	OS   string `json:"os"`
	Arch string `json:"arch"`

	// BuildHost, BuildPlatform, and Budget describe the machine the
	// bundle was built on. The installer derives its own budget from the
	// target host; these exist for the divergence warning and the journal.
	BuildHost     hostinfo.Profile  `json:"build_host"`
	BuildPlatform hostinfo.Platform `json:"build_platform"`
	Budget        hostinfo.Budget   `json:"budget"`

	CatalogName   string `json:"catalog_name"`
	CatalogDigest string `json:"catalog_digest"`

	// Packages is the host package set carried in the bundle repository.
	Packages []string `json:"packages"`

	// Images records every exported container image tarball.
	Images []ImageExport `json:"images"`

	// Certificates records the generated TLS material.
	Certificates []CertRecord `json:"certificates"`

	// Inventory lists every file in the bundle with its digest, sorted
	// by path. The manifest itself is excluded so it can embed the list.
	Inventory []FileRecord `json:"inventory"`
}

// ImageExport is one container image saved into the bundle.
type ImageExport struct {
	// Ref is the image reference as named in the catalog.
	Ref string `json:"ref"`

	// ImageID is the engine-reported content identifier at export time.
	ImageID string `json:"image_id"`

	// File is the tarball path relative to the bundle root.
	File string `json:"file"`

	SHA256    string `json:"sha256"`
	SizeBytes int64  `json:"size_bytes"`

	// FromCache is set when an earlier export of the same image was
	// reused instead of invoking the engine again.
	FromCache bool `json:"from_cache,omitempty"`
}

// CertRecord identifies one generated certificate.
type CertRecord struct {
	Name        string `json:"name"`
	File        string `json:"file"`
	Fingerprint string `json:"fingerprint"`
}

// FileRecord is one inventory entry.
type FileRecord struct {
	Path      string `json:"path"`
	SHA256    string `json:"sha256"`
	SizeBytes int64  `json:"size_bytes"`
}

// Write persists the manifest as indented JSON via a temp file rename, so
// a crash cannot leave a truncated manifest in an otherwise complete tree.
func (m *Manifest) Write(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	data = append(data, '\n')

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// LoadManifest reads the manifest from the bundle root at dir.
func LoadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &m, nil
}

// BuildInventory walks root and returns a record for every regular file,
// sorted by path. The walk itself runs parallel; ordering comes from the
// final sort, not traversal order. The manifest file is skipped so the
// result can be embedded in it.
func BuildInventory(root string) ([]FileRecord, error) {
	var (
		mu      sync.Mutex
		records []FileRecord
	)

	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			return fmt.Errorf("%s: bundles may only contain regular files", path)
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == ManifestName {
			return nil
		}

		sum, err := archive.SHA256File(path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}

		mu.Lock()
		records = append(records, FileRecord{Path: rel, SHA256: sum, SizeBytes: info.Size()})
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("inventory walk: %w", err)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Path < records[j].Path })
	return records, nil
}
