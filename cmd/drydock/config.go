package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/jamesainslie/drydock/pkg/drydock/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage drydock configuration settings.

Configuration is loaded from:
  1. $XDG_CONFIG_HOME/drydock/config.yaml (if set)
  2. ~/.config/drydock/config.yaml

Environment variables can override config file settings using the DRYDOCK_ prefix:
  DRYDOCK_ENGINE=podman
  DRYDOCK_INSTALL_ROOT=/srv/lanstack
  DRYDOCK_LOGGING_LEVEL=debug`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current configuration settings from all sources.`,
	RunE:  runConfigShow,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration file",
	Long: `Open the configuration file in your default editor.

The editor is determined by:
  1. $VISUAL environment variable
  2. $EDITOR environment variable
  3. Falls back to 'vi'

If the config file doesn't exist, a default one will be created first.`,
	RunE: runConfigEdit,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default configuration file",
	Long:  `Create a default configuration file if one doesn't exist.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Long:  `Display the path to the configuration file.`,
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

// runConfigShow displays the current configuration.
func runConfigShow(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		printError("Failed to load configuration: %v", err)
		// Show defaults anyway
		cfg = &config.Config{
			InstallRoot: config.DefaultInstallRoot,
			OutputDir:   config.DefaultOutputDir,
			Engine:      config.DefaultEngine,
		}
		cfg.Timeouts.PackageManager = config.DefaultPackageTimeout
		cfg.Timeouts.ImageTransfer = config.DefaultImageTimeout
		cfg.Timeouts.StackStart = config.DefaultStackTimeout
		cfg.Journal.Enabled = true
		cfg.Journal.RetentionDays = config.DefaultRetentionDays
		cfg.Cache.Enabled = true
	}

	// Show config file being used
	if configFile := viper.ConfigFileUsed(); configFile != "" {
		fmt.Printf("Config file: %s\n\n", configFile)
	} else {
		fmt.Println("Config file: (using defaults, no file found)")
		fmt.Println()
	}

	catalogPath := cfg.Catalog
	if catalogPath == "" {
		catalogPath = "(built-in)"
	}

	// Display configuration
	fmt.Println("Current Configuration:")
	fmt.Println("----------------------")
	fmt.Printf("install_root:             %s\n", cfg.InstallRoot)
	fmt.Printf("catalog:                  %s\n", catalogPath)
	fmt.Printf("output_dir:               %s\n", cfg.OutputDir)
	fmt.Printf("engine:                   %s\n", cfg.Engine)
	fmt.Printf("workers:                  %d\n", cfg.Workers)
	fmt.Printf("timeouts.package_manager: %s\n", cfg.Timeouts.PackageManager)
	fmt.Printf("timeouts.image_transfer:  %s\n", cfg.Timeouts.ImageTransfer)
	fmt.Printf("timeouts.stack_start:     %s\n", cfg.Timeouts.StackStart)
	fmt.Printf("journal.enabled:          %t\n", cfg.Journal.Enabled)
	fmt.Printf("journal.retention:        %d days\n", cfg.Journal.RetentionDays)
	fmt.Printf("cache.enabled:            %t\n", cfg.Cache.Enabled)
	fmt.Printf("logging.level:            %s\n", cfg.Logging.Level)

	// Show any environment overrides
	fmt.Println("\nEnvironment Overrides:")
	fmt.Println("----------------------")
	envVars := []struct {
		name string
		key  string
	}{
		{"DRYDOCK_INSTALL_ROOT", "install_root"},
		{"DRYDOCK_CATALOG", "catalog"},
		{"DRYDOCK_OUTPUT_DIR", "output_dir"},
		{"DRYDOCK_ENGINE", "engine"},
		{"DRYDOCK_WORKERS", "workers"},
		{"DRYDOCK_JOURNAL_ENABLED", "journal.enabled"},
		{"DRYDOCK_CACHE_ENABLED", "cache.enabled"},
		{"DRYDOCK_LOGGING_LEVEL", "logging.level"},
	}

	anyOverrides := false
	for _, ev := range envVars {
		if val := os.Getenv(ev.name); val != "" {
			fmt.Printf("%s=%s\n", ev.name, val)
			anyOverrides = true
		}
	}
	if !anyOverrides {
		fmt.Println("(none)")
	}

	return nil
}

// runConfigEdit opens the config file in an editor.
func runConfigEdit(cmd *cobra.Command, args []string) error {
	// Ensure config file exists
	if err := config.WriteDefault(); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	// Get config file path
	configDir, err := config.ConfigDir()
	if err != nil {
		return fmt.Errorf("failed to get config directory: %w", err)
	}
	configPath := filepath.Join(configDir, "config.yaml")

	// Determine editor
	editor := os.Getenv("VISUAL")
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = "vi"
	}

	printVerbose("Opening %s with %s", configPath, editor)

	// Open editor
	editorCmd := exec.Command(editor, configPath)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("editor command failed: %w", err)
	}

	return nil
}

// runConfigInit creates a default config file.
func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir, err := config.ConfigDir()
	if err != nil {
		return fmt.Errorf("failed to get config directory: %w", err)
	}
	configPath := filepath.Join(configDir, "config.yaml")

	// Check if config already exists
	if _, err := os.Stat(configPath); err == nil {
		printInfo("Config file already exists: %s", configPath)
		printInfo("Use 'drydock config edit' to modify it.")
		return nil
	}

	// Create default config
	if err := config.WriteDefault(); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	printInfo("Created default config file: %s", configPath)
	return nil
}

// runConfigPath shows the config file path.
func runConfigPath(cmd *cobra.Command, args []string) error {
	configDir, err := config.ConfigDir()
	if err != nil {
		return fmt.Errorf("failed to get config directory: %w", err)
	}
	configPath := filepath.Join(configDir, "config.yaml")

	fmt.Println(configPath)

	// Show if file exists
	if _, err := os.Stat(configPath); err == nil {
		printVerbose("File exists")
	} else if os.IsNotExist(err) {
		printVerbose("File does not exist (will use defaults)")
	}

	return nil
}
