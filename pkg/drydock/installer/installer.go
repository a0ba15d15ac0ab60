// Package installer turns an extracted bundle into a running stack on a
// disconnected host. It re-measures the target machine, installs the
// bundled packages from the local repository, loads the container images,
// prepares the install root, and starts the compose stack.
//
// The work is a strict linear pipeline. Every stage requires the previous
// one to have succeeded; the first failure halts the run, and whatever the
// earlier stages produced is left in place for manual recovery. There is
// no rollback: on an offline host, half-installed state plus logs beats an
// automated attempt to undo package and image operations.
package installer

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/jamesainslie/drydock/pkg/drydock/bundle"
	"github.com/jamesainslie/drydock/pkg/drydock/catalog"
	"github.com/jamesainslie/drydock/pkg/drydock/config"
	"github.com/jamesainslie/drydock/pkg/drydock/execx"
	"github.com/jamesainslie/drydock/pkg/drydock/hostinfo"
	"github.com/jamesainslie/drydock/pkg/drydock/logging"
	"github.com/jamesainslie/drydock/pkg/drydock/secrets"
)

// Stage names, in pipeline order.
const (
	StageDetectHost        = "detect_host"
	StageComputeBudget     = "compute_budget"
	StageInstallPackages   = "install_system_packages"
	StageLoadImages        = "load_container_images"
	StageConfigureHost     = "configure_host_services"
	StageGenerateSecrets   = "generate_secrets"
	StageApplyTuning       = "apply_tuning"
	StageStartStack        = "start_stack"
	StagePostInstallReport = "post_install_report"
)

// hostCommandTimeout bounds the small host utilities (systemctl, ufw,
// sysctl); the heavyweight invocations carry their own configured limits.
const hostCommandTimeout = time.Minute

// LockFileName guards the install root against concurrent runs.
const LockFileName = ".drydock.lock"

// Options configures one installation run.
type Options struct {
	// BundleDir is the extracted bundle root.
	BundleDir string

	// InstallRoot is where configs, certs, and data live for the running
	// stack.
	InstallRoot string

	// Engine is the container engine binary (docker or podman).
	Engine string

	// OSReleasePath and Detect exist so tests can install against a
	// simulated host. Both default to the real host.
	OSReleasePath string
	Detect        func() (hostinfo.Profile, error)

	// AptSourcesDir, YumReposDir, and SysctlDir are the host drop-in
	// directories the installer writes to.
	AptSourcesDir string
	YumReposDir   string
	SysctlDir     string

	// PackageTimeout, ImageTimeout, and StackTimeout bound the package
	// manager, each image load, and compose startup.
	PackageTimeout time.Duration
	ImageTimeout   time.Duration
	StackTimeout   time.Duration
}

// Validate fills unset options with their defaults.
func (o *Options) Validate() error {
	if o.BundleDir == "" {
		o.BundleDir = "."
	}
	if o.InstallRoot == "" {
		o.InstallRoot = config.DefaultInstallRoot
	}
	if o.Engine == "" {
		o.Engine = config.DefaultEngine
	}
	if o.OSReleasePath == "" {
		o.OSReleasePath = hostinfo.DefaultOSReleasePath
	}
	if o.Detect == nil {
		o.Detect = hostinfo.Detect
	}
	if o.AptSourcesDir == "" {
		o.AptSourcesDir = "/etc/apt/sources.list.d"
	}
	if o.YumReposDir == "" {
		o.YumReposDir = "/etc/yum.repos.d"
	}
	if o.SysctlDir == "" {
		o.SysctlDir = "/etc/sysctl.d"
	}
	if o.PackageTimeout <= 0 {
		o.PackageTimeout = config.DefaultPackageTimeout
	}
	if o.ImageTimeout <= 0 {
		o.ImageTimeout = config.DefaultImageTimeout
	}
	if o.StackTimeout <= 0 {
		o.StackTimeout = config.DefaultStackTimeout
	}
	return nil
}

// StageResult records one pipeline stage's outcome.
type StageResult struct {
	Name     string
	Detail   string
	Err      error
	Duration time.Duration
}

// ServiceStatus is one compose service as started by the installer.
type ServiceStatus struct {
	Name  string
	Image string
	State string
	URL   string
}

// Result describes an installation run, complete or aborted. On abort it
// carries every stage that ran, including the failed one.
type Result struct {
	BundleDir   string
	InstallRoot string

	Manifest *bundle.Manifest

	Profile  hostinfo.Profile
	Platform hostinfo.Platform
	Budget   hostinfo.Budget

	Stages   []StageResult
	Services []ServiceStatus
	Warnings []string

	// SecretsPath is the operator-readable credentials file.
	SecretsPath string

	// AdminPassword is surfaced once, in the post-install report.
	AdminPassword string

	// SecretsReused reports whether an earlier run's credentials were
	// kept instead of generating new ones.
	SecretsReused bool

	Failed bool
}

// Installer runs the offline installation pipeline for one bundle.
type Installer struct {
	opts   Options
	runner execx.Runner
	log    *logging.Logger

	manifest *bundle.Manifest
	cat      *catalog.Catalog
	profile  hostinfo.Profile
	platform hostinfo.Platform
	budget   hostinfo.Budget

	creds         secrets.Secrets
	secretsReused bool
	services      []ServiceStatus
	warnings      []string
}

// New creates an Installer for the bundle at opts.BundleDir.
func New(runner execx.Runner, opts Options) (*Installer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Installer{
		opts:   opts,
		runner: runner,
		log:    logging.Get("installer"),
	}, nil
}

// RequiredTools returns the tools whose absence aborts an install before
// any side effect. The cosmetic helpers (systemctl, ufw, firewall-cmd,
// sysctl) degrade to warnings instead.
func RequiredTools(family hostinfo.Family, engine string) ([]string, error) {
	switch family {
	case hostinfo.FamilyDebian:
		return []string{engine, "apt-get"}, nil
	case hostinfo.FamilyRHEL:
		return []string{engine, "dnf"}, nil
	default:
		return nil, fmt.Errorf("%w: %q", hostinfo.ErrUnsupportedPlatform, family)
	}
}

type stage struct {
	name string
	run  func(ctx context.Context) (string, error)
}

func (ins *Installer) stages() []stage {
	return []stage{
		{StageDetectHost, ins.detectHost},
		{StageComputeBudget, ins.computeBudget},
		{StageInstallPackages, ins.installPackages},
		{StageLoadImages, ins.loadImages},
		{StageConfigureHost, ins.configureHost},
		{StageGenerateSecrets, ins.generateSecrets},
		{StageApplyTuning, ins.applyTuning},
		{StageStartStack, ins.startStack},
		{StagePostInstallReport, ins.postInstallReport},
	}
}

// Run executes the pipeline. The returned Result is populated even when
// the run aborts, so callers can journal and report the partial outcome.
func (ins *Installer) Run(ctx context.Context) (*Result, error) {
	res := &Result{BundleDir: ins.opts.BundleDir, InstallRoot: ins.opts.InstallRoot}

	man, err := bundle.LoadManifest(ins.opts.BundleDir)
	if err != nil {
		res.Failed = true
		return res, fmt.Errorf("%s does not hold an extracted bundle: %w", ins.opts.BundleDir, err)
	}
	ins.manifest = man
	res.Manifest = man

	cat, err := ins.loadCatalog()
	if err != nil {
		res.Failed = true
		return res, err
	}
	ins.cat = cat

	unlock, err := lockInstallRoot(ins.opts.InstallRoot)
	if err != nil {
		res.Failed = true
		return res, err
	}
	defer unlock()

	ins.log.Info("installing bundle",
		"name", man.CatalogName, "version", man.Version, "root", ins.opts.InstallRoot)

	var runErr error
	for _, st := range ins.stages() {
		start := time.Now()
		ins.log.Info("stage starting", "stage", st.name)

		detail, err := st.run(ctx)
		rec := StageResult{Name: st.name, Detail: detail, Duration: time.Since(start)}
		if err != nil {
			rec.Err = err
			res.Stages = append(res.Stages, rec)
			ins.log.Error("stage failed", "stage", st.name, "error", err)
			runErr = fmt.Errorf("stage %s: %w", st.name, err)
			break
		}

		res.Stages = append(res.Stages, rec)
		ins.log.Info("stage complete", "stage", st.name, "detail", detail)
	}

	ins.finish(res)
	if runErr != nil {
		res.Failed = true
		return res, runErr
	}

	ins.log.Info("install complete", "stages", len(res.Stages))
	return res, nil
}

func (ins *Installer) finish(res *Result) {
	res.Profile = ins.profile
	res.Platform = ins.platform
	res.Budget = ins.budget
	res.Services = ins.services
	res.Warnings = ins.warnings
	res.SecretsPath = filepath.Join(ins.opts.InstallRoot, bundle.SecretsNoteName)
	res.AdminPassword = ins.creds.AdminPassword
	res.SecretsReused = ins.secretsReused
}

// loadCatalog reads the catalog shipped inside the bundle and checks it
// against the manifest digest: the installer must act on exactly the
// catalog the bundle was assembled from.
func (ins *Installer) loadCatalog() (*catalog.Catalog, error) {
	path := filepath.Join(ins.opts.BundleDir, bundle.DirConfig, bundle.CatalogFileName)
	cat, err := catalog.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load bundle catalog: %w", err)
	}
	digest, err := cat.Digest()
	if err != nil {
		return nil, err
	}
	if digest != ins.manifest.CatalogDigest {
		return nil, fmt.Errorf("bundle catalog digest %.12s does not match manifest digest %.12s: bundle was modified after assembly",
			digest, ins.manifest.CatalogDigest)
	}
	return cat, nil
}

func (ins *Installer) warn(msg string) {
	ins.warnings = append(ins.warnings, msg)
	ins.log.Warn(msg)
}
