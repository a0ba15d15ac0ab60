// Package archive packs a staging directory into the bundle tarball and
// unpacks it on the target host.
//
// Entries are written in lexical walk order with owner fields cleared and
// times truncated to seconds, so packing an unchanged staging tree twice
// yields byte-identical archives.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrUnsafePath is returned when an archive entry would land outside the
// unpack destination.
var ErrUnsafePath = errors.New("archive entry escapes destination")

// Info describes a packed archive.
type Info struct {
	Path      string `json:"path"`
	SHA256    string `json:"sha256"`
	SizeBytes int64  `json:"size_bytes"`
	Files     int    `json:"files"`
}

// Pack writes a gzip-compressed tarball of srcDir to outPath. When prefix
// is non-empty every entry name is placed under it, so the archive unpacks
// into a single top-level directory. outPath must not live inside srcDir.
func Pack(srcDir, outPath, prefix string) (*Info, error) {
	if inside(srcDir, outPath) {
		return nil, fmt.Errorf("output %s is inside source tree %s", outPath, srcDir)
	}
	if prefix != "" && !filepath.IsLocal(prefix) {
		return nil, fmt.Errorf("archive prefix %q must be a local relative path", prefix)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return nil, fmt.Errorf("create archive: %w", err)
	}
	defer out.Close()

	digest := sha256.New()
	gz := gzip.NewWriter(io.MultiWriter(out, digest))
	tw := tar.NewWriter(gz)

	files := 0
	walk := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() && !info.IsDir() {
			return fmt.Errorf("unsupported file type in staging tree: %s", path)
		}

		h, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		h.Name = filepath.ToSlash(rel)
		if prefix != "" {
			h.Name = prefix + "/" + h.Name
		}
		if info.IsDir() {
			h.Name += "/"
		}
		h.ModTime = h.ModTime.Truncate(time.Second)
		h.Uid, h.Gid = 0, 0
		h.Uname, h.Gname = "", ""
		h.Format = tar.FormatPAX

		if err := tw.WriteHeader(h); err != nil {
			return fmt.Errorf("write header %s: %w", h.Name, err)
		}
		if info.IsDir() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if _, err := io.Copy(tw, f); err != nil {
			return fmt.Errorf("archive %s: %w", path, err)
		}
		files++
		return nil
	}
	if err := filepath.WalkDir(srcDir, walk); err != nil {
		return nil, fmt.Errorf("pack %s: %w", srcDir, err)
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("finalize tar: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("finalize gzip: %w", err)
	}
	if err := out.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}

	stat, err := os.Stat(outPath)
	if err != nil {
		return nil, err
	}
	return &Info{
		Path:      outPath,
		SHA256:    hex.EncodeToString(digest.Sum(nil)),
		SizeBytes: stat.Size(),
		Files:     files,
	}, nil
}

// Unpack extracts a Pack-produced tarball into destDir. Entry names are
// validated before anything touches the filesystem; symlinks and devices
// are rejected outright since Pack never emits them.
func Unpack(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("new gzip reader: %w", err)
	}
	defer gz.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	tr := tar.NewReader(gz)
	for {
		h, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read tarball: %w", err)
		}

		name := filepath.FromSlash(strings.TrimSuffix(h.Name, "/"))
		if name == "" || !filepath.IsLocal(name) {
			return fmt.Errorf("%w: %q", ErrUnsafePath, h.Name)
		}
		target := filepath.Join(destDir, name)

		switch h.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, h.FileInfo().Mode().Perm()); err != nil {
				return fmt.Errorf("create directory %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("create parent of %s: %w", target, err)
			}
			if err := writeEntry(target, tr, h.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unsupported entry type %q: %s", h.Typeflag, h.Name)
		}
	}
	return nil
}

func writeEntry(target string, r io.Reader, perm os.FileMode) error {
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("extract %s: %w", target, err)
	}
	return out.Close()
}

// SHA256File returns the hex digest of a file's contents.
func SHA256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("checksum %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func inside(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != "."
}
