// Package config provides configuration management for the drydock
// deployment bundler.
package config

import "time"

// Default configuration values for drydock.
const (
	// DefaultInstallRoot is where extracted bundles are installed.
	DefaultInstallRoot = "/opt/lanstack"

	// DefaultOutputDir is where bundle archives are written.
	DefaultOutputDir = "."

	// DefaultEngine is the container engine binary driven for image
	// export, import, and compose.
	DefaultEngine = "docker"

	// DefaultPackageTimeout bounds each package-manager invocation.
	DefaultPackageTimeout = 10 * time.Minute

	// DefaultImageTimeout bounds each image pull, save, or load.
	DefaultImageTimeout = 10 * time.Minute

	// DefaultStackTimeout bounds compose stack startup.
	DefaultStackTimeout = 5 * time.Minute

	// DefaultRetentionDays is how long journal entries are kept.
	DefaultRetentionDays = 90
)
