// Package bundle assembles self-contained deployment bundles: host
// packages with a local repository index, exported container images,
// rendered service configuration, TLS material, operator documentation,
// the compose spec, and a copy of the installer, packed into one versioned
// tar.gz whose manifest inventories every file.
//
// Assembly is a linear sequence of stages. Every external tool is resolved
// before the first artifact is written, and any stage failure aborts the
// run before an archive exists, so a produced archive is always complete.
package bundle

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jamesainslie/drydock/pkg/drydock/archive"
	"github.com/jamesainslie/drydock/pkg/drydock/catalog"
	"github.com/jamesainslie/drydock/pkg/drydock/certs"
	"github.com/jamesainslie/drydock/pkg/drydock/compose"
	"github.com/jamesainslie/drydock/pkg/drydock/config"
	"github.com/jamesainslie/drydock/pkg/drydock/execx"
	"github.com/jamesainslie/drydock/pkg/drydock/exportcache"
	"github.com/jamesainslie/drydock/pkg/drydock/hostinfo"
	"github.com/jamesainslie/drydock/pkg/drydock/logging"
)

// Options configures one assembly run.
type Options struct {
	// OutputDir receives the staging tree and the final archive.
	OutputDir string

	// Version stamps the archive name and the manifest.
	Version string

	// Engine is the container engine binary (docker or podman).
	Engine string

	// InstallRoot is where the installer will materialize the bundle on
	// the target; compose volume paths are rendered against it.
	InstallRoot string

	// Workers bounds parallel image export. Zero derives the bound from
	// the budget's worker count.
	Workers int

	// PackageTimeout and ImageTimeout bound each external invocation.
	PackageTimeout time.Duration
	ImageTimeout   time.Duration
}

// Validate fills unset options with their defaults.
func (o *Options) Validate() error {
	if o.OutputDir == "" {
		o.OutputDir = config.DefaultOutputDir
	}
	if o.Version == "" {
		o.Version = "dev"
	}
	if o.Engine == "" {
		o.Engine = config.DefaultEngine
	}
	if o.InstallRoot == "" {
		o.InstallRoot = config.DefaultInstallRoot
	}
	if o.PackageTimeout <= 0 {
		o.PackageTimeout = config.DefaultPackageTimeout
	}
	if o.ImageTimeout <= 0 {
		o.ImageTimeout = config.DefaultImageTimeout
	}
	return nil
}

// Result summarizes one completed assembly.
type Result struct {
	ArchivePath string
	SHA256      string
	SizeBytes   int64
	Files       int

	// StagingDir is the unpacked bundle tree, kept next to the archive.
	// Keeping it lets the next run reuse unchanged image exports.
	StagingDir string

	Packages       int
	ImagesExported int
	ImagesCached   int

	Manifest *Manifest
}

// Assembler builds bundles for one catalog on one build host.
type Assembler struct {
	cat      *catalog.Catalog
	profile  hostinfo.Profile
	platform hostinfo.Platform
	budget   hostinfo.Budget
	runner   execx.Runner
	cache    *exportcache.Cache
	opts     Options
	log      *logging.Logger
}

// New creates an Assembler. cache may be nil to disable export reuse.
func New(cat *catalog.Catalog, profile hostinfo.Profile, platform hostinfo.Platform, runner execx.Runner, cache *exportcache.Cache, opts Options) (*Assembler, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	budget := hostinfo.DeriveBudget(profile)
	if opts.Workers < 1 {
		opts.Workers = budget.WorkerProcesses
	}

	return &Assembler{
		cat:      cat,
		profile:  profile,
		platform: platform,
		budget:   budget,
		runner:   runner,
		cache:    cache,
		opts:     opts,
		log:      logging.Get("bundle"),
	}, nil
}

// Budget returns the budget derived from the build host profile.
func (a *Assembler) Budget() hostinfo.Budget { return a.budget }

// BaseName is the archive base name: <catalog>-<version>-<os>-<arch>.
func (a *Assembler) BaseName() string {
	return fmt.Sprintf("%s-%s-%s-%s", a.cat.Name, a.opts.Version, runtime.GOOS, runtime.GOARCH)
}

// RequiredTools returns the external tools assembly needs on a platform
// family with a given container engine.
func RequiredTools(family hostinfo.Family, engine string) ([]string, error) {
	switch family {
	case hostinfo.FamilyDebian:
		return []string{engine, "apt-get", "dpkg-scanpackages"}, nil
	case hostinfo.FamilyRHEL:
		return []string{engine, "dnf", "createrepo_c"}, nil
	default:
		return nil, fmt.Errorf("%w: %q", hostinfo.ErrUnsupportedPlatform, family)
	}
}

// Assemble runs every assembly stage and packs the archive. On error no
// archive is produced; the staging tree is left behind for inspection and
// for export reuse on the next run.
func (a *Assembler) Assemble(ctx context.Context) (*Result, error) {
	tools, err := RequiredTools(a.platform.Family, a.opts.Engine)
	if err != nil {
		return nil, err
	}
	if err := execx.Preflight(a.runner, tools...); err != nil {
		return nil, err
	}

	base := a.BaseName()
	staging := filepath.Join(a.opts.OutputDir, base)
	a.log.Info("assembling bundle", "name", a.cat.Name, "version", a.opts.Version, "staging", staging)

	if err := a.createLayout(staging); err != nil {
		return nil, err
	}

	a.log.Info("downloading packages", "count", len(a.cat.Packages), "family", a.platform.Family)
	if err := a.downloadPackages(ctx, filepath.Join(staging, DirPackages)); err != nil {
		return nil, err
	}
	if err := a.writeRepoDefinition(filepath.Join(staging, DirRepos)); err != nil {
		return nil, err
	}

	a.log.Info("exporting images", "count", len(a.cat.Images()), "workers", a.opts.Workers)
	exports, err := a.exportImages(ctx, filepath.Join(staging, DirDocker))
	if err != nil {
		return nil, err
	}

	a.log.Info("generating certificates", "domain", a.cat.Domain)
	certRecords, err := a.writeCerts(filepath.Join(staging, DirCerts))
	if err != nil {
		return nil, err
	}

	a.log.Info("rendering configuration")
	if err := a.renderConfigs(staging); err != nil {
		return nil, err
	}
	if err := a.writeCompose(staging); err != nil {
		return nil, err
	}
	if err := a.writeDocs(staging); err != nil {
		return nil, err
	}

	a.log.Info("embedding installer")
	if err := a.embedInstaller(staging); err != nil {
		return nil, err
	}

	a.log.Info("writing manifest")
	man, err := a.buildManifest(staging, exports, certRecords)
	if err != nil {
		return nil, err
	}
	if err := man.Write(filepath.Join(staging, ManifestName)); err != nil {
		return nil, err
	}

	archivePath := filepath.Join(a.opts.OutputDir, base+".tar.gz")
	a.log.Info("packing archive", "path", archivePath)
	info, err := archive.Pack(staging, archivePath, base)
	if err != nil {
		return nil, fmt.Errorf("pack archive: %w", err)
	}

	exported, cached := 0, 0
	for _, e := range exports {
		if e.FromCache {
			cached++
		} else {
			exported++
		}
	}

	a.log.Info("bundle assembled", "archive", info.Path, "bytes", info.SizeBytes, "files", info.Files)

	return &Result{
		ArchivePath:    info.Path,
		SHA256:         info.SHA256,
		SizeBytes:      info.SizeBytes,
		Files:          info.Files,
		StagingDir:     staging,
		Packages:       len(a.cat.Packages),
		ImagesExported: exported,
		ImagesCached:   cached,
		Manifest:       man,
	}, nil
}

// createLayout makes every bundle directory plus the empty data roots the
// compose services mount.
func (a *Assembler) createLayout(staging string) error {
	for _, dir := range layoutDirs {
		if err := os.MkdirAll(filepath.Join(staging, dir), 0o755); err != nil {
			return fmt.Errorf("create layout: %w", err)
		}
	}
	for _, svc := range a.cat.Services {
		for _, m := range svc.Mounts {
			if !strings.HasPrefix(m.Source, DirData+"/") {
				continue
			}
			if err := os.MkdirAll(filepath.Join(staging, filepath.FromSlash(m.Source)), 0o755); err != nil {
				return fmt.Errorf("create data root %s: %w", m.Source, err)
			}
		}
	}
	return nil
}

func (a *Assembler) writeCerts(certDir string) ([]CertRecord, error) {
	material, err := certs.Generate(a.cat.Domain)
	if err != nil {
		return nil, fmt.Errorf("generate certificates: %w", err)
	}

	pairs := []struct {
		name string
		pair certs.Pair
	}{
		{"general", material.General},
		{"wildcard", material.Wildcard},
	}

	records := make([]CertRecord, 0, len(pairs))
	for _, p := range pairs {
		certPath := filepath.Join(certDir, p.name+".crt")
		keyPath := filepath.Join(certDir, p.name+".key")
		if err := p.pair.Write(certPath, keyPath); err != nil {
			return nil, err
		}
		records = append(records, CertRecord{
			Name:        p.name,
			File:        DirCerts + "/" + p.name + ".crt",
			Fingerprint: p.pair.Fingerprint,
		})
	}
	return records, nil
}

// renderConfigs writes the service configuration files plus the resolved
// catalog itself, so the installer works from the exact catalog this
// bundle was assembled with.
func (a *Assembler) renderConfigs(staging string) error {
	catalogYAML, err := a.cat.Marshal()
	if err != nil {
		return err
	}

	files := []struct {
		name string
		data []byte
	}{
		{CatalogFileName, catalogYAML},
		{NginxConfName, renderNginxConf(a.cat, a.budget)},
		{PostgresConfName, renderPostgresConf(a.budget)},
		{RedisConfName, renderRedisConf(a.budget)},
		{SysctlConfName, renderSysctlConf(a.cat)},
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(staging, DirConfig, f.name), f.data, 0o644); err != nil {
			return fmt.Errorf("write config %s: %w", f.name, err)
		}
	}
	return nil
}

func (a *Assembler) writeCompose(staging string) error {
	data, err := compose.Build(a.cat, a.budget, a.opts.InstallRoot).Marshal()
	if err != nil {
		return fmt.Errorf("render compose spec: %w", err)
	}
	path := filepath.Join(staging, DirCompose, ComposeFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write compose spec: %w", err)
	}
	return nil
}

func (a *Assembler) writeDocs(staging string) error {
	docs := []struct {
		name string
		data []byte
	}{
		{AdminGuideName, renderAdminGuide(a.cat, a.profile, a.budget, a.opts.Engine, a.opts.InstallRoot)},
		{UserGuideName, renderUserGuide(a.cat)},
	}
	for _, d := range docs {
		if err := os.WriteFile(filepath.Join(staging, DirDocs, d.name), d.data, 0o644); err != nil {
			return fmt.Errorf("write doc %s: %w", d.name, err)
		}
	}
	return nil
}

// embedInstaller copies the running executable into the bundle, so the
// disconnected target needs no separate drydock install, plus a shell
// wrapper that runs it in offline mode against the bundle root.
func (a *Assembler) embedInstaller(staging string) error {
	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate own executable: %w", err)
	}
	src, err := os.Open(self)
	if err != nil {
		return fmt.Errorf("open own executable: %w", err)
	}
	defer src.Close()

	dst := filepath.Join(staging, DirScripts, InstallerName)
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o755)
	if err != nil {
		return fmt.Errorf("embed installer: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return fmt.Errorf("embed installer: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("embed installer: %w", err)
	}

	script := "#!/bin/sh\n" +
		"# Installs this bundle onto the local host.\n" +
		"set -eu\n" +
		"here=\"$(cd \"$(dirname \"$0\")\" && pwd)\"\n" +
		"exec \"$here/" + InstallerName + "\" --offline \"$here/..\"\n"
	scriptPath := filepath.Join(staging, DirScripts, InstallScript)
	if err := os.WriteFile(scriptPath, []byte(script), 0o755); err != nil {
		return fmt.Errorf("write install script: %w", err)
	}
	return nil
}

func (a *Assembler) buildManifest(staging string, exports []ImageExport, certRecords []CertRecord) (*Manifest, error) {
	digest, err := a.cat.Digest()
	if err != nil {
		return nil, fmt.Errorf("catalog digest: %w", err)
	}
	inventory, err := BuildInventory(staging)
	if err != nil {
		return nil, err
	}

	return &Manifest{
		ID:            uuid.NewString(),
		Tool:          "drydock",
		Version:       a.opts.Version,
		CreatedAt:     time.Now().UTC(),
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
		BuildHost:     a.profile,
		BuildPlatform: a.platform,
		Budget:        a.budget,
		CatalogName:   a.cat.Name,
		CatalogDigest: digest,
		Packages:      append([]string(nil), a.cat.Packages...),
		Images:        exports,
		Certificates:  certRecords,
		Inventory:     inventory,
	}, nil
}
