package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/jamesainslie/drydock/pkg/drydock/bundle"
	"github.com/jamesainslie/drydock/pkg/drydock/catalog"
	"github.com/jamesainslie/drydock/pkg/drydock/config"
	"github.com/jamesainslie/drydock/pkg/drydock/execx"
	"github.com/jamesainslie/drydock/pkg/drydock/exportcache"
	"github.com/jamesainslie/drydock/pkg/drydock/hostinfo"
	"github.com/jamesainslie/drydock/pkg/drydock/journal"
	"github.com/jamesainslie/drydock/pkg/drydock/report"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// runBundle is the --online handler: it assembles a bundle for this host's
// platform into the output directory.
func runBundle(_ *cobra.Command, args []string) error {
	// Determine output directory
	outputDir := viper.GetString("output_dir")
	if len(args) > 0 {
		outputDir = args[0]
	}

	expandedDir, err := config.ExpandPath(outputDir)
	if err != nil {
		return fmt.Errorf("failed to expand path: %w", err)
	}
	absDir, err := filepath.Abs(expandedDir)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	cat, err := loadCatalog()
	if err != nil {
		return err
	}

	// Profile the build host. Tuning baked into the bundle reflects this
	// machine; the installer re-profiles the target and retunes.
	profile, err := hostinfo.Detect()
	if err != nil {
		return fmt.Errorf("detect host resources: %w", err)
	}
	platform, err := hostinfo.DetectPlatform("")
	if err != nil {
		return err
	}

	cache := openExportCache()
	if cache != nil {
		defer cache.Close()
	}

	opts := bundle.Options{
		OutputDir:      absDir,
		Version:        bundleVersion(),
		Engine:         viper.GetString("engine"),
		InstallRoot:    viper.GetString("install_root"),
		Workers:        viper.GetInt("workers"),
		PackageTimeout: viper.GetDuration("timeouts.package_manager"),
		ImageTimeout:   viper.GetDuration("timeouts.image_transfer"),
	}

	asm, err := bundle.New(cat, profile, platform, execx.NewSystem(), cache, opts)
	if err != nil {
		return err
	}

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		printInfo("\nInterrupted, aborting assembly...")
		cancel()
	}()

	printInfo("Assembling %s %s for %s/%s...", cat.Name, opts.Version, runtime.GOOS, runtime.GOARCH)

	start := time.Now()
	res, runErr := asm.Assemble(ctx)
	elapsed := time.Since(start)

	recordBundleRun(cat, res, runErr, elapsed)

	if runErr != nil {
		return fmt.Errorf("bundle assembly failed: %w", runErr)
	}

	return renderBundleReport(cat, profile, platform, asm.Budget(), res, elapsed)
}

// loadCatalog reads the catalog named by --catalog or the config file,
// falling back to the built-in one.
func loadCatalog() (*catalog.Catalog, error) {
	path := viper.GetString("catalog")
	if path == "" {
		return catalog.Default(), nil
	}

	expanded, err := config.ExpandPath(path)
	if err != nil {
		return nil, err
	}
	cat, err := catalog.Load(expanded)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", expanded, err)
	}
	return cat, nil
}

// bundleVersion returns the version stamped into an assembled bundle: the
// --bundle-version flag when given, the binary's build version otherwise.
func bundleVersion() string {
	if v := viper.GetString("bundle_version"); v != "" {
		return v
	}
	return version
}

// recordBundleRun journals the run. Journal failures only warn: history is
// not worth failing a finished build over.
func recordBundleRun(cat *catalog.Catalog, res *bundle.Result, runErr error, elapsed time.Duration) {
	if !viper.GetBool("journal.enabled") {
		return
	}

	j, err := journal.New(journalDir())
	if err == nil {
		err = j.EnsureDir()
	}
	if err != nil {
		printVerbose("journal unavailable: %v", err)
		return
	}

	ref := journal.BundleRef{
		Name:     cat.Name,
		Version:  bundleVersion(),
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
	}
	outcome := journal.OutcomeSucceeded
	errMsg := ""
	if runErr != nil {
		outcome = journal.OutcomeFailed
		errMsg = runErr.Error()
	}
	if res != nil {
		ref.SHA256 = res.SHA256
		ref.SizeBytes = res.SizeBytes
	}

	if _, err := j.LogBundle(ref, outcome, errMsg, elapsed); err != nil {
		printVerbose("journal write failed: %v", err)
	}
}

// renderBundleReport converts a completed assembly for the selected
// formatter.
func renderBundleReport(cat *catalog.Catalog, profile hostinfo.Profile, platform hostinfo.Platform, budget hostinfo.Budget, res *bundle.Result, elapsed time.Duration) error {
	r := &report.Result{
		Operation: report.OpBundle,
		BuildHost: profileInfo(profile, platform),
		Budget:    budgetInfo(budget),
		Bundle: &report.BundleInfo{
			Name:           cat.Name,
			Version:        res.Manifest.Version,
			Platform:       res.Manifest.OS + "/" + res.Manifest.Arch,
			ArtifactPath:   res.ArchivePath,
			SHA256:         res.SHA256,
			SizeBytes:      res.SizeBytes,
			Packages:       res.Packages,
			ImagesExported: res.ImagesExported,
			ImagesCached:   res.ImagesCached,
			Files:          res.Files,
		},
		Duration: elapsed,
	}
	return renderReport(r)
}

// openExportCache opens the image export cache when enabled. A cache that
// cannot be opened only warns: assembly works without it, it just
// re-exports every image.
func openExportCache() *exportcache.Cache {
	if !viper.GetBool("cache.enabled") || viper.GetBool("no_cache") {
		return nil
	}

	cache, err := exportcache.Open(cachePath())
	if err != nil {
		printVerbose("export cache unavailable: %v", err)
		return nil
	}
	return cache
}
