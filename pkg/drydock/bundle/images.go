package bundle

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jamesainslie/drydock/pkg/drydock/archive"
	"github.com/jamesainslie/drydock/pkg/drydock/execx"
)

// exportImages saves every catalog image into dockerDir, reusing prior
// exports via the cache where the image is unchanged. Exports run
// concurrently up to the worker bound; results come back in catalog order
// and the first failure cancels the remaining work.
func (a *Assembler) exportImages(ctx context.Context, dockerDir string) ([]ImageExport, error) {
	refs := a.cat.Images()
	if len(refs) == 0 {
		return nil, nil
	}

	workers := a.opts.Workers
	if workers > len(refs) {
		workers = len(refs)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		exports  = make(map[string]ImageExport, len(refs))
		firstErr error
	)

	jobs := make(chan string)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ref := range jobs {
				if ctx.Err() != nil {
					continue
				}
				exp, err := a.exportImage(ctx, dockerDir, ref)
				mu.Lock()
				if err != nil {
					if firstErr == nil {
						firstErr = fmt.Errorf("export %s: %w", ref, err)
						cancel()
					}
				} else {
					exports[ref] = exp
				}
				mu.Unlock()
			}
		}()
	}

	for _, ref := range refs {
		jobs <- ref
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	out := make([]ImageExport, 0, len(refs))
	for _, ref := range refs {
		out = append(out, exports[ref])
	}
	return out, nil
}

// exportImage saves one image, or reuses the existing tarball when the
// cache proves the image is unchanged and the tarball still verifies.
func (a *Assembler) exportImage(ctx context.Context, dockerDir, ref string) (ImageExport, error) {
	id, err := a.imageID(ctx, ref)
	if err != nil {
		return ImageExport{}, err
	}

	name := tarballName(ref)
	tarPath := filepath.Join(dockerDir, name)

	if a.cache != nil {
		fresh, err := a.cache.IsFresh(ref, id, tarPath)
		if err != nil {
			return ImageExport{}, fmt.Errorf("cache check: %w", err)
		}
		if fresh {
			a.log.Info("image unchanged, reusing export", "ref", ref)
			return a.describeTarball(ref, id, dockerDir, name, true)
		}
	}

	a.log.Info("exporting image", "ref", ref)
	if _, err := a.runner.Run(ctx, execx.Spec{
		Name:    a.opts.Engine,
		Args:    []string{"save", "-o", tarPath, ref},
		Timeout: a.opts.ImageTimeout,
	}); err != nil {
		return ImageExport{}, fmt.Errorf("save: %w", err)
	}

	if a.cache != nil {
		if _, err := a.cache.Record(ref, id, tarPath); err != nil {
			a.log.Warn("recording export in cache failed", "ref", ref, "error", err)
		}
	}
	return a.describeTarball(ref, id, dockerDir, name, false)
}

// imageID asks the engine for the image's content identifier, pulling the
// image first when it is not present locally.
func (a *Assembler) imageID(ctx context.Context, ref string) (string, error) {
	id, err := a.inspectImageID(ctx, ref)
	if err == nil {
		return id, nil
	}

	a.log.Info("image not local, pulling", "ref", ref)
	if _, err := a.runner.Run(ctx, execx.Spec{
		Name:    a.opts.Engine,
		Args:    []string{"pull", ref},
		Timeout: a.opts.ImageTimeout,
	}); err != nil {
		return "", fmt.Errorf("pull: %w", err)
	}
	return a.inspectImageID(ctx, ref)
}

func (a *Assembler) inspectImageID(ctx context.Context, ref string) (string, error) {
	res, err := a.runner.Run(ctx, execx.Spec{
		Name:    a.opts.Engine,
		Args:    []string{"image", "inspect", "--format", "{{.Id}}", ref},
		Timeout: a.opts.ImageTimeout,
	})
	if err != nil {
		return "", err
	}
	id := strings.TrimSpace(res.Stdout)
	if id == "" {
		return "", fmt.Errorf("engine returned empty image id for %s", ref)
	}
	return id, nil
}

func (a *Assembler) describeTarball(ref, id, dockerDir, name string, fromCache bool) (ImageExport, error) {
	tarPath := filepath.Join(dockerDir, name)
	info, err := os.Stat(tarPath)
	if err != nil {
		return ImageExport{}, fmt.Errorf("stat tarball: %w", err)
	}
	sum, err := archive.SHA256File(tarPath)
	if err != nil {
		return ImageExport{}, fmt.Errorf("digest tarball: %w", err)
	}
	return ImageExport{
		Ref:       ref,
		ImageID:   id,
		File:      path.Join(DirDocker, name),
		SHA256:    sum,
		SizeBytes: info.Size(),
		FromCache: fromCache,
	}, nil
}

// tarballName maps an image reference to a filesystem-safe tarball name:
// slashes, colons, and anything else exotic become underscores.
func tarballName(ref string) string {
	var b strings.Builder
	for _, r := range ref {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String() + ".tar"
}
