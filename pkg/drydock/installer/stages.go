package installer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jamesainslie/drydock/pkg/drydock/archive"
	"github.com/jamesainslie/drydock/pkg/drydock/bundle"
	"github.com/jamesainslie/drydock/pkg/drydock/execx"
	"github.com/jamesainslie/drydock/pkg/drydock/hostinfo"
	"github.com/jamesainslie/drydock/pkg/drydock/secrets"
)

// detectHost measures the machine the stack will actually run on. The
// bundle's build-host figures are never reused: tuning must reflect where
// the stack runs, not where it was packed.
func (ins *Installer) detectHost(_ context.Context) (string, error) {
	platform, err := hostinfo.DetectPlatform(ins.opts.OSReleasePath)
	if err != nil {
		return "", err
	}
	profile, err := ins.opts.Detect()
	if err != nil {
		return "", err
	}
	ins.platform = platform
	ins.profile = profile
	return fmt.Sprintf("%s %s, %d cores, %d MB",
		platform.ID, platform.VersionID, profile.CPUCores, profile.TotalMemoryMB), nil
}

func (ins *Installer) computeBudget(_ context.Context) (string, error) {
	ins.budget = hostinfo.DeriveBudget(ins.profile)

	if ins.manifest.BuildHost.DivergesFrom(ins.profile) {
		ins.warn(fmt.Sprintf(
			"target host (%d cores, %d MB) differs from build host (%d cores, %d MB) by more than half; tuning follows the target",
			ins.profile.CPUCores, ins.profile.TotalMemoryMB,
			ins.manifest.BuildHost.CPUCores, ins.manifest.BuildHost.TotalMemoryMB))
	}

	return fmt.Sprintf("db %d MB, cache %d MB, app %d MB, %d workers",
		ins.budget.DBMemoryMB, ins.budget.RedisMemoryMB,
		ins.budget.AppMemoryMB, ins.budget.WorkerProcesses), nil
}

// installPackages registers the bundle's repository with the host package
// manager and installs the catalog set from it. Tool resolution happens
// here, before the first side effect of the whole pipeline.
func (ins *Installer) installPackages(ctx context.Context) (string, error) {
	tools, err := RequiredTools(ins.platform.Family, ins.opts.Engine)
	if err != nil {
		return "", err
	}
	if err := execx.Preflight(ins.runner, tools...); err != nil {
		return "", err
	}

	repoPath, err := ins.registerRepo()
	if err != nil {
		return "", err
	}
	if err := ins.refreshRepo(ctx, repoPath); err != nil {
		return "", err
	}
	if err := ins.installPackageSet(ctx); err != nil {
		return "", err
	}
	return fmt.Sprintf("%d packages installed from the bundle repository", len(ins.manifest.Packages)), nil
}

// registerRepo copies the bundle's repo definition into the host package
// manager's drop-in directory, resolving the bundle-path placeholder to
// wherever the bundle actually sits.
func (ins *Installer) registerRepo() (string, error) {
	name, err := bundle.RepoDefinitionName(ins.manifest.CatalogName, ins.platform.Family)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(filepath.Join(ins.opts.BundleDir, bundle.DirRepos, name))
	if err != nil {
		return "", fmt.Errorf("read repo definition: %w", err)
	}

	bundleAbs, err := filepath.Abs(ins.opts.BundleDir)
	if err != nil {
		return "", err
	}
	content := strings.ReplaceAll(string(data), bundle.RepoRootPlaceholder, bundleAbs)

	var destDir string
	switch ins.platform.Family {
	case hostinfo.FamilyDebian:
		destDir = ins.opts.AptSourcesDir
	case hostinfo.FamilyRHEL:
		destDir = ins.opts.YumReposDir
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("register repo: %w", err)
	}

	dest := filepath.Join(destDir, name)
	if err := os.WriteFile(dest, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("register repo: %w", err)
	}
	ins.log.Info("registered bundle repository", "path", dest)
	return dest, nil
}

// refreshRepo updates package metadata from the bundle repository only;
// the host is offline, so a full index refresh would stall on unreachable
// mirrors.
func (ins *Installer) refreshRepo(ctx context.Context, repoPath string) error {
	var spec execx.Spec
	switch ins.platform.Family {
	case hostinfo.FamilyDebian:
		spec = execx.Spec{
			Name: "apt-get",
			Args: []string{
				"update",
				"-o", "Dir::Etc::sourcelist=" + repoPath,
				"-o", "Dir::Etc::sourceparts=-",
				"-o", "APT::Get::List-Cleanup=0",
			},
			Timeout: ins.opts.PackageTimeout,
		}
	case hostinfo.FamilyRHEL:
		spec = execx.Spec{
			Name: "dnf",
			Args: []string{
				"makecache",
				"--disablerepo=*",
				"--enablerepo=" + ins.manifest.CatalogName + "-local",
			},
			Timeout: ins.opts.PackageTimeout,
		}
	}
	if _, err := ins.runner.Run(ctx, spec); err != nil {
		return fmt.Errorf("refresh repo metadata: %w", err)
	}
	return nil
}

// installPackageSet installs the manifest's package list. Both package
// managers treat already-installed packages as satisfied, which is what
// makes a re-run a no-op rather than an error.
func (ins *Installer) installPackageSet(ctx context.Context) error {
	var spec execx.Spec
	switch ins.platform.Family {
	case hostinfo.FamilyDebian:
		spec = execx.Spec{
			Name:    "apt-get",
			Args:    append([]string{"install", "-y", "--no-install-recommends"}, ins.manifest.Packages...),
			Env:     []string{"DEBIAN_FRONTEND=noninteractive"},
			Timeout: ins.opts.PackageTimeout,
		}
	case hostinfo.FamilyRHEL:
		spec = execx.Spec{
			Name:    "dnf",
			Args:    append([]string{"install", "-y"}, ins.manifest.Packages...),
			Timeout: ins.opts.PackageTimeout,
		}
	}
	if _, err := ins.runner.Run(ctx, spec); err != nil {
		return fmt.Errorf("install packages: %w", err)
	}
	return nil
}

// loadImages verifies each tarball against the manifest digest, then
// imports it. Any failure is fatal: a single missing image breaks the
// compose stack, so there is nothing useful to continue toward.
func (ins *Installer) loadImages(ctx context.Context) (string, error) {
	for _, img := range ins.manifest.Images {
		path := filepath.Join(ins.opts.BundleDir, filepath.FromSlash(img.File))

		sum, err := archive.SHA256File(path)
		if err != nil {
			return "", fmt.Errorf("verify %s: %w", img.Ref, err)
		}
		if sum != img.SHA256 {
			return "", fmt.Errorf("verify %s: %s does not match the manifest digest", img.Ref, img.File)
		}

		ins.log.Info("loading image", "ref", img.Ref)
		if _, err := ins.runner.Run(ctx, execx.Spec{
			Name:    ins.opts.Engine,
			Args:    []string{"load", "-i", path},
			Timeout: ins.opts.ImageTimeout,
		}); err != nil {
			return "", fmt.Errorf("load %s: %w", img.Ref, err)
		}
	}
	return fmt.Sprintf("%d images loaded", len(ins.manifest.Images)), nil
}

// configureHost materializes the install root from the bundle, retires
// conflicting host services, opens the firewall, and persists the kernel
// tuning. The service and firewall steps degrade to warnings: a host
// without ufw still runs the stack, just less guarded.
func (ins *Installer) configureHost(ctx context.Context) (string, error) {
	if err := ins.materializeInstallRoot(); err != nil {
		return "", err
	}
	ins.disableConflictingUnits(ctx)
	ins.openFirewallPorts(ctx)
	if err := ins.persistSysctl(ctx); err != nil {
		return "", err
	}
	return fmt.Sprintf("install root ready, %d firewall rules", len(ins.cat.FirewallPorts)), nil
}

// materializeInstallRoot copies configs, certs, the compose spec, and the
// empty data roots under the install root. Config files are refreshed on
// every run; data directories are only created, never touched when they
// already exist, so reinstalling keeps live service data.
func (ins *Installer) materializeInstallRoot() error {
	for _, dir := range []string{bundle.DirConfig, bundle.DirCerts, bundle.DirCompose, bundle.DirData} {
		src := filepath.Join(ins.opts.BundleDir, dir)
		dst := filepath.Join(ins.opts.InstallRoot, dir)
		if err := copyTree(src, dst); err != nil {
			return fmt.Errorf("materialize %s: %w", dir, err)
		}
	}
	return nil
}

func (ins *Installer) disableConflictingUnits(ctx context.Context) {
	for _, unit := range ins.cat.ConflictingUnits {
		if _, err := ins.runner.Run(ctx, execx.Spec{
			Name:    "systemctl",
			Args:    []string{"disable", "--now", unit},
			Timeout: hostCommandTimeout,
		}); err != nil {
			ins.warn(fmt.Sprintf("could not disable conflicting unit %s: %v", unit, err))
		}
	}
}

func (ins *Installer) openFirewallPorts(ctx context.Context) {
	switch ins.platform.Family {
	case hostinfo.FamilyDebian:
		for _, rule := range ins.cat.FirewallPorts {
			if _, err := ins.runner.Run(ctx, execx.Spec{
				Name:    "ufw",
				Args:    []string{"allow", fmt.Sprintf("%d/%s", rule.Port, rule.Protocol())},
				Timeout: hostCommandTimeout,
			}); err != nil {
				ins.warn(fmt.Sprintf("could not open port %d/%s: %v", rule.Port, rule.Protocol(), err))
			}
		}
	case hostinfo.FamilyRHEL:
		opened := false
		for _, rule := range ins.cat.FirewallPorts {
			if _, err := ins.runner.Run(ctx, execx.Spec{
				Name:    "firewall-cmd",
				Args:    []string{"--permanent", fmt.Sprintf("--add-port=%d/%s", rule.Port, rule.Protocol())},
				Timeout: hostCommandTimeout,
			}); err != nil {
				ins.warn(fmt.Sprintf("could not open port %d/%s: %v", rule.Port, rule.Protocol(), err))
				continue
			}
			opened = true
		}
		if opened {
			if _, err := ins.runner.Run(ctx, execx.Spec{
				Name:    "firewall-cmd",
				Args:    []string{"--reload"},
				Timeout: hostCommandTimeout,
			}); err != nil {
				ins.warn(fmt.Sprintf("firewall rules staged but not reloaded: %v", err))
			}
		}
	}
}

// persistSysctl writes the bundle's kernel tuning fragment into the
// sysctl drop-in directory, then applies it. Persisting must succeed (the
// file is what survives a reboot); the immediate apply only warns.
func (ins *Installer) persistSysctl(ctx context.Context) error {
	data, err := os.ReadFile(filepath.Join(ins.opts.BundleDir, bundle.DirConfig, bundle.SysctlConfName))
	if err != nil {
		return fmt.Errorf("read sysctl fragment: %w", err)
	}
	if err := os.MkdirAll(ins.opts.SysctlDir, 0o755); err != nil {
		return fmt.Errorf("persist sysctl: %w", err)
	}
	dest := filepath.Join(ins.opts.SysctlDir, "99-"+ins.manifest.CatalogName+".conf")
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return fmt.Errorf("persist sysctl: %w", err)
	}

	if _, err := ins.runner.Run(ctx, execx.Spec{
		Name:    "sysctl",
		Args:    []string{"--system"},
		Timeout: hostCommandTimeout,
	}); err != nil {
		ins.warn(fmt.Sprintf("sysctl values persisted but not applied: %v", err))
	}
	return nil
}

// generateSecrets creates the stack credentials once. When the files
// already exist their values are reused untouched; invalidating a running
// database's password is never the installer's call to make.
func (ins *Installer) generateSecrets(_ context.Context) (string, error) {
	creds, created, err := secrets.Ensure(secrets.Files{
		EnvPath:  filepath.Join(ins.opts.InstallRoot, bundle.DirCompose, bundle.EnvFileName),
		NotePath: filepath.Join(ins.opts.InstallRoot, bundle.SecretsNoteName),
	})
	if err != nil {
		return "", err
	}
	ins.creds = creds
	ins.secretsReused = !created

	if created {
		return "credentials generated", nil
	}
	return "existing secrets reused", nil
}

// applyTuning rewrites the budget-derived keys in the installed configs
// with the target host's values.
func (ins *Installer) applyTuning(_ context.Context) (string, error) {
	changed, err := bundle.Retune(filepath.Join(ins.opts.InstallRoot, bundle.DirConfig), ins.budget)
	if err != nil {
		return "", err
	}
	if len(changed) == 0 {
		return "configuration already tuned", nil
	}
	return fmt.Sprintf("%d files retuned: %s", len(changed), strings.Join(changed, ", ")), nil
}

// startStack brings the compose stack up from the install root, then
// enables the auxiliary host units. Stack startup is fatal; auxiliary
// units warn.
func (ins *Installer) startStack(ctx context.Context) (string, error) {
	composeFile := filepath.Join(ins.opts.InstallRoot, bundle.DirCompose, bundle.ComposeFileName)
	envFile := filepath.Join(ins.opts.InstallRoot, bundle.DirCompose, bundle.EnvFileName)

	if _, err := ins.runner.Run(ctx, execx.Spec{
		Name:    ins.opts.Engine,
		Args:    []string{"compose", "-f", composeFile, "--env-file", envFile, "up", "-d"},
		Timeout: ins.opts.StackTimeout,
	}); err != nil {
		return "", fmt.Errorf("compose up: %w", err)
	}

	for _, unit := range ins.cat.AuxiliaryUnits {
		if _, err := ins.runner.Run(ctx, execx.Spec{
			Name:    "systemctl",
			Args:    []string{"enable", "--now", unit},
			Timeout: hostCommandTimeout,
		}); err != nil {
			ins.warn(fmt.Sprintf("auxiliary unit %s not started: %v", unit, err))
		}
	}
	return fmt.Sprintf("%d services up", len(ins.cat.Services)), nil
}

// postInstallReport assembles the service summary callers render for the
// operator.
func (ins *Installer) postInstallReport(_ context.Context) (string, error) {
	for _, svc := range ins.cat.Services {
		status := ServiceStatus{Name: svc.Name, Image: svc.Image, State: "started"}
		if svc.Route != nil {
			status.URL = fmt.Sprintf("https://%s%s", svc.Route.Host, svc.Route.Path)
		}
		ins.services = append(ins.services, status)
	}
	return "report ready", nil
}

// copyTree copies src into dst, preserving file modes. Existing files are
// overwritten; existing directories are left alone.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return fmt.Errorf("%s: only regular files can be installed", path)
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, info.Mode().Perm())
	})
}
