package bundle

import (
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jamesainslie/drydock/pkg/drydock/execx"
	"github.com/jamesainslie/drydock/pkg/drydock/hostinfo"
)

// RepoRootPlaceholder marks where the installer substitutes the absolute
// bundle path when it registers the local repository on the target. The
// extraction location is only known at install time.
const RepoRootPlaceholder = "${BUNDLE_ROOT}"

// downloadPackages fetches the catalog's host packages into pkgDir and
// builds the repository index the target's package manager reads.
func (a *Assembler) downloadPackages(ctx context.Context, pkgDir string) error {
	switch a.platform.Family {
	case hostinfo.FamilyDebian:
		return a.downloadDebianPackages(ctx, pkgDir)
	case hostinfo.FamilyRHEL:
		return a.downloadRHELPackages(ctx, pkgDir)
	default:
		return fmt.Errorf("%w: no package tooling for family %q", hostinfo.ErrUnsupportedPlatform, a.platform.Family)
	}
}

// downloadDebianPackages runs apt-get download in pkgDir, which drops the
// .deb files into its working directory, then indexes them. The index
// comes from dpkg-scanpackages stdout, compressed in-process: apt only
// reads Packages.gz, and scanning from the repo root keeps the Filename
// fields relative.
func (a *Assembler) downloadDebianPackages(ctx context.Context, pkgDir string) error {
	args := append([]string{"download"}, a.cat.Packages...)
	if _, err := a.runner.Run(ctx, execx.Spec{
		Name:    "apt-get",
		Args:    args,
		Dir:     pkgDir,
		Timeout: a.opts.PackageTimeout,
	}); err != nil {
		return fmt.Errorf("download packages: %w", err)
	}

	res, err := a.runner.Run(ctx, execx.Spec{
		Name:    "dpkg-scanpackages",
		Args:    []string{"--multiversion", "."},
		Dir:     pkgDir,
		Timeout: a.opts.PackageTimeout,
	})
	if err != nil {
		return fmt.Errorf("index packages: %w", err)
	}
	if err := writeGzip(filepath.Join(pkgDir, "Packages.gz"), []byte(res.Stdout)); err != nil {
		return fmt.Errorf("index packages: %w", err)
	}
	return nil
}

// downloadRHELPackages resolves the package set with dependencies into
// pkgDir and indexes it with createrepo_c.
func (a *Assembler) downloadRHELPackages(ctx context.Context, pkgDir string) error {
	args := append([]string{"download", "--resolve", "--destdir", pkgDir}, a.cat.Packages...)
	if _, err := a.runner.Run(ctx, execx.Spec{
		Name:    "dnf",
		Args:    args,
		Timeout: a.opts.PackageTimeout,
	}); err != nil {
		return fmt.Errorf("download packages: %w", err)
	}

	if _, err := a.runner.Run(ctx, execx.Spec{
		Name:    "createrepo_c",
		Args:    []string{pkgDir},
		Timeout: a.opts.PackageTimeout,
	}); err != nil {
		return fmt.Errorf("index packages: %w", err)
	}
	return nil
}

// writeRepoDefinition writes the repo file the installer copies into the
// target's package manager configuration, with the bundle path left as a
// placeholder.
func (a *Assembler) writeRepoDefinition(repoDir string) error {
	name, err := RepoDefinitionName(a.cat.Name, a.platform.Family)
	if err != nil {
		return err
	}

	var content string
	switch a.platform.Family {
	case hostinfo.FamilyDebian:
		content = fmt.Sprintf("deb [trusted=yes] file://%s/%s ./\n", RepoRootPlaceholder, DirPackages)
	case hostinfo.FamilyRHEL:
		content = fmt.Sprintf("[%s-local]\nname=%s offline bundle\nbaseurl=file://%s/%s\nenabled=1\ngpgcheck=0\n",
			a.cat.Name, a.cat.Name, RepoRootPlaceholder, DirPackages)
	}

	path := filepath.Join(repoDir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write repo definition: %w", err)
	}
	return nil
}

// RepoDefinitionName returns the repo file name for a platform family, as
// written under repos/ by the assembler.
func RepoDefinitionName(catalogName string, family hostinfo.Family) (string, error) {
	switch family {
	case hostinfo.FamilyDebian:
		return catalogName + ".list", nil
	case hostinfo.FamilyRHEL:
		return catalogName + ".repo", nil
	default:
		return "", fmt.Errorf("%w: no repo format for family %q", hostinfo.ErrUnsupportedPlatform, family)
	}
}

func writeGzip(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	gz := gzip.NewWriter(f)
	if _, err := gz.Write(data); err != nil {
		gz.Close()
		f.Close()
		return err
	}
	if err := gz.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
