package main

import (
	"fmt"

	"github.com/jamesainslie/drydock/pkg/drydock/hostinfo"
	"github.com/jamesainslie/drydock/pkg/drydock/report"
	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show this host's resource profile and budget",
	Long: `Detect this machine's resources and show the derived service budget.

The same derivation runs at the start of bundle assembly and again during
install, so this is a dry look at what either phase would compute here.`,
	RunE: runProfile,
}

func init() {
	rootCmd.AddCommand(profileCmd)
}

// runProfile detects the host and prints its profile and budget.
func runProfile(_ *cobra.Command, _ []string) error {
	profile, err := hostinfo.Detect()
	if err != nil {
		return fmt.Errorf("detect host resources: %w", err)
	}

	// Platform detection can fail on hosts drydock cannot install to
	// (no os-release, unknown distro); profiling still works there.
	platform, err := hostinfo.DetectPlatform("")
	if err != nil {
		printVerbose("platform detection skipped: %v", err)
		platform = hostinfo.Platform{}
	}

	r := &report.Result{
		Operation:  report.OpProfile,
		TargetHost: profileInfo(profile, platform),
		Budget:     budgetInfo(hostinfo.DeriveBudget(profile)),
	}
	return renderReport(r)
}
