package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jamesainslie/drydock/pkg/drydock/config"
	"github.com/jamesainslie/drydock/pkg/drydock/execx"
	"github.com/jamesainslie/drydock/pkg/drydock/installer"
	"github.com/jamesainslie/drydock/pkg/drydock/journal"
	"github.com/jamesainslie/drydock/pkg/drydock/report"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// runInstall is the --offline handler: it installs an extracted bundle
// onto the current host.
func runInstall(_ *cobra.Command, args []string) error {
	// Determine bundle directory
	bundleDir := "."
	if len(args) > 0 {
		bundleDir = args[0]
	}

	expandedDir, err := config.ExpandPath(bundleDir)
	if err != nil {
		return fmt.Errorf("failed to expand path: %w", err)
	}
	absDir, err := filepath.Abs(expandedDir)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	// Verify the bundle directory exists before touching the host
	info, err := os.Stat(absDir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("bundle directory does not exist: %s", absDir)
		}
		return fmt.Errorf("cannot access bundle directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", absDir)
	}

	opts := installer.Options{
		BundleDir:      absDir,
		InstallRoot:    viper.GetString("install_root"),
		Engine:         viper.GetString("engine"),
		PackageTimeout: viper.GetDuration("timeouts.package_manager"),
		ImageTimeout:   viper.GetDuration("timeouts.image_transfer"),
		StackTimeout:   viper.GetDuration("timeouts.stack_start"),
	}

	ins, err := installer.New(execx.NewSystem(), opts)
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
		printInfo("\nInterrupted, stopping install...")
		cancel()
	}()

	printInfo("Installing bundle from %s...", absDir)

	start := time.Now()
	res, runErr := ins.Run(ctx)
	elapsed := time.Since(start)

	recordInstallRun(res, runErr, elapsed)

	if err := renderInstallReport(res, runErr, elapsed); err != nil {
		return err
	}

	// Surface the generated admin password once. Reinstalls reuse the
	// existing secrets file and never reprint it.
	if runErr == nil && !res.SecretsReused && res.AdminPassword != "" {
		printInfo("\nAdmin password (also in %s): %s", res.SecretsPath, res.AdminPassword)
	}

	if runErr != nil {
		return fmt.Errorf("install failed: %w", runErr)
	}
	return nil
}

// recordInstallRun journals the run with one record per executed stage.
func recordInstallRun(res *installer.Result, runErr error, elapsed time.Duration) {
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

	ref := journal.BundleRef{}
	if res.Manifest != nil {
		ref.Name = res.Manifest.CatalogName
		ref.Version = res.Manifest.Version
		ref.Platform = res.Manifest.OS + "/" + res.Manifest.Arch
	}

	stages := make([]journal.StageRecord, 0, len(res.Stages))
	for _, st := range res.Stages {
		rec := journal.StageRecord{
			Name:       st.Name,
			Outcome:    journal.OutcomeSucceeded,
			Detail:     st.Detail,
			DurationMS: st.Duration.Milliseconds(),
		}
		if st.Err != nil {
			rec.Outcome = journal.OutcomeFailed
			rec.Error = st.Err.Error()
		}
		stages = append(stages, rec)
	}

	outcome := journal.OutcomeSucceeded
	errMsg := ""
	if runErr != nil {
		outcome = journal.OutcomeFailed
		errMsg = runErr.Error()
	}

	if _, err := j.LogInstall(ref, stages, outcome, errMsg, elapsed); err != nil {
		printVerbose("journal write failed: %v", err)
	}
}

// renderInstallReport converts the install result for the selected
// formatter. The build host comes from the manifest; the target host is
// this run's own detection.
func renderInstallReport(res *installer.Result, runErr error, elapsed time.Duration) error {
	r := &report.Result{
		Operation: report.OpInstall,
		Warnings:  res.Warnings,
		Failed:    res.Failed,
		Duration:  elapsed,
	}
	if runErr != nil {
		r.Error = runErr.Error()
	}

	if res.Manifest != nil {
		r.BuildHost = profileInfo(res.Manifest.BuildHost, res.Manifest.BuildPlatform)
		r.Bundle = &report.BundleInfo{
			Name:     res.Manifest.CatalogName,
			Version:  res.Manifest.Version,
			Platform: res.Manifest.OS + "/" + res.Manifest.Arch,
			Packages: len(res.Manifest.Packages),
		}
	}

	// Target profile exists only once detect_host has run
	if res.Profile.CPUCores > 0 || res.Profile.TotalMemoryMB > 0 {
		r.TargetHost = profileInfo(res.Profile, res.Platform)
		r.Budget = budgetInfo(res.Budget)
	}

	for _, st := range res.Stages {
		status := report.StageStatus{
			Name:     st.Name,
			Outcome:  "succeeded",
			Detail:   st.Detail,
			Duration: st.Duration,
		}
		if st.Err != nil {
			status.Outcome = "failed"
			status.Detail = st.Err.Error()
		}
		r.Stages = append(r.Stages, status)
	}

	for _, svc := range res.Services {
		r.Services = append(r.Services, report.ServiceStatus{
			Name:  svc.Name,
			Image: svc.Image,
			State: svc.State,
			URL:   svc.URL,
		})
	}

	if !res.Failed {
		r.SecretsPath = res.SecretsPath
	}

	return renderReport(r)
}
