package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jamesainslie/drydock/pkg/drydock/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "drydock [dir]",
		Short: "Build and install self-contained deployment bundles",
		Long: `Drydock packages a service stack for hosts without internet access.

An online run profiles the build machine, downloads its system packages,
exports its container images, and packs everything into one versioned
tarball. An offline run takes that tarball, extracted onto a disconnected
target, and installs the stack retuned for the target's resources.

Examples:
  drydock --online .                    # Assemble a bundle into the current directory
  drydock --online -V 1.4.0 /srv/out    # Assemble with an explicit bundle version
  drydock --offline /mnt/usb/lanstack   # Install an extracted bundle onto this host
  drydock profile                       # Show this host's profile and budget
  drydock history                       # View past bundle and install runs`,
		Args:              cobra.MaximumNArgs(1),
		PersistentPreRunE: initializeLogging,
		RunE:              runRoot,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/drydock/config.yaml)")
	rootCmd.PersistentFlags().StringP("catalog", "c", "", "catalog file (default: built-in catalog)")
	rootCmd.PersistentFlags().String("engine", "", "container engine binary (docker or podman)")
	rootCmd.PersistentFlags().String("install-root", "", "directory the stack runs under on the target")
	rootCmd.PersistentFlags().IntP("workers", "w", 0, "parallel image exports (0=derive from host)")
	rootCmd.PersistentFlags().StringP("output", "o", "pretty", "output format (pretty, plain, json, yaml)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output")
	rootCmd.PersistentFlags().Bool("no-cache", false, "bypass the image export cache")

	// Mode flags (root command only)
	rootCmd.Flags().Bool("online", false, "assemble a bundle on a connected host")
	rootCmd.Flags().Bool("offline", false, "install an extracted bundle onto this host")
	rootCmd.Flags().StringP("bundle-version", "V", "", "version stamped into the bundle (default: build version)")
	rootCmd.MarkFlagsMutuallyExclusive("online", "offline")
	rootCmd.MarkFlagsOneRequired("online", "offline")

	// Bind flags to viper
	_ = viper.BindPFlag("catalog", rootCmd.PersistentFlags().Lookup("catalog"))
	_ = viper.BindPFlag("engine", rootCmd.PersistentFlags().Lookup("engine"))
	_ = viper.BindPFlag("install_root", rootCmd.PersistentFlags().Lookup("install-root"))
	_ = viper.BindPFlag("workers", rootCmd.PersistentFlags().Lookup("workers"))
	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("no_cache", rootCmd.PersistentFlags().Lookup("no-cache"))
	_ = viper.BindPFlag("bundle_version", rootCmd.Flags().Lookup("bundle-version"))
}

// initConfig reads in config file and environment variables.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Set config name and type
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")

		// Add config paths in order of precedence
		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			viper.AddConfigPath(filepath.Join(xdgConfigHome, "drydock"))
		}

		homeDir, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(homeDir, ".config", "drydock"))
		}
	}

	// Set environment variable prefix and enable auto env binding
	viper.SetEnvPrefix("DRYDOCK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// Set defaults from config package
	viper.SetDefault("install_root", config.DefaultInstallRoot)
	viper.SetDefault("output_dir", config.DefaultOutputDir)
	viper.SetDefault("engine", config.DefaultEngine)
	viper.SetDefault("timeouts.package_manager", config.DefaultPackageTimeout)
	viper.SetDefault("timeouts.image_transfer", config.DefaultImageTimeout)
	viper.SetDefault("timeouts.stack_start", config.DefaultStackTimeout)
	viper.SetDefault("journal.enabled", true)
	viper.SetDefault("journal.retention_days", config.DefaultRetentionDays)
	viper.SetDefault("cache.enabled", true)

	// Read config file (ignore if not found)
	_ = viper.ReadInConfig()
}

// runRoot dispatches to the assembler or the installer depending on the
// mode flag. Cobra has already enforced that exactly one mode is set.
func runRoot(cmd *cobra.Command, args []string) error {
	if online, _ := cmd.Flags().GetBool("online"); online {
		return runBundle(cmd, args)
	}
	return runInstall(cmd, args)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// getVerbose returns true if verbose mode is enabled.
func getVerbose() bool {
	return viper.GetBool("verbose")
}

// getQuiet returns true if quiet mode is enabled.
func getQuiet() bool {
	return viper.GetBool("quiet")
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...interface{}) {
	if getVerbose() && !getQuiet() {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message if quiet mode is not enabled.
func printInfo(format string, args ...interface{}) {
	if !getQuiet() {
		fmt.Printf(format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
