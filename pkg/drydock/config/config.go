package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Daily      bool   `mapstructure:"daily"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level"`
	Path       string            `mapstructure:"path"`
	Rotation   RotationConfig    `mapstructure:"rotation"`
	Components map[string]string `mapstructure:"components"`
}

// TimeoutConfig bounds every external-process invocation. The spawned
// tools (package manager, container engine) have no liveness guarantee of
// their own, so each call runs under one of these deadlines.
type TimeoutConfig struct {
	PackageManager time.Duration `mapstructure:"package_manager"`
	ImageTransfer  time.Duration `mapstructure:"image_transfer"`
	StackStart     time.Duration `mapstructure:"stack_start"`
}

// Config represents the application configuration.
type Config struct {
	InstallRoot string `mapstructure:"install_root"`
	Catalog     string `mapstructure:"catalog"`
	OutputDir   string `mapstructure:"output_dir"`
	Engine      string `mapstructure:"engine"`
	// Workers overrides the budget-derived export parallelism when > 0.
	Workers  int           `mapstructure:"workers"`
	Timeouts TimeoutConfig `mapstructure:"timeouts"`
	Journal  struct {
		Enabled       bool   `mapstructure:"enabled"`
		Path          string `mapstructure:"path"`
		RetentionDays int    `mapstructure:"retention_days"`
	} `mapstructure:"journal"`
	Cache struct {
		Enabled bool   `mapstructure:"enabled"`
		Path    string `mapstructure:"path"`
	} `mapstructure:"cache"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// Load loads configuration from file and environment variables.
// Config file locations (in order of precedence):
//   - $XDG_CONFIG_HOME/drydock/config.yaml
//   - $HOME/.config/drydock/config.yaml
//
// Environment variables are prefixed with DRYDOCK_ (e.g., DRYDOCK_ENGINE).
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		v.AddConfigPath(filepath.Join(xdgConfigHome, "drydock"))
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}
	v.AddConfigPath(filepath.Join(homeDir, ".config", "drydock"))

	v.SetEnvPrefix("DRYDOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("install_root", DefaultInstallRoot)
	v.SetDefault("catalog", "")
	v.SetDefault("output_dir", DefaultOutputDir)
	v.SetDefault("engine", DefaultEngine)
	v.SetDefault("workers", 0)

	v.SetDefault("timeouts.package_manager", DefaultPackageTimeout)
	v.SetDefault("timeouts.image_transfer", DefaultImageTimeout)
	v.SetDefault("timeouts.stack_start", DefaultStackTimeout)

	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.path", "") // Empty means use StateDir
	v.SetDefault("journal.retention_days", DefaultRetentionDays)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.path", "") // Empty means use CacheDir

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "") // Empty means use DefaultLogPath
	v.SetDefault("logging.rotation.max_size", "10MB")
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 5)
	v.SetDefault("logging.rotation.daily", true)
	v.SetDefault("logging.components", map[string]string{
		"bundle":    "info",
		"installer": "info",
		"exec":      "warn",
		"cache":     "warn",
	})

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for _, p := range []*string{&cfg.InstallRoot, &cfg.Catalog, &cfg.OutputDir, &cfg.Journal.Path, &cfg.Cache.Path} {
		expanded, err := ExpandPath(*p)
		if err != nil {
			return nil, err
		}
		*p = expanded
	}

	return &cfg, nil
}

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, "drydock"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", "drydock"), nil
}

// EnsureConfigDir creates the config directory if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return nil
}

// WriteDefault writes a default config file if none exists.
// Returns nil if a config file already exists.
func WriteDefault() error {
	if err := EnsureConfigDir(); err != nil {
		return err
	}

	configDir, err := ConfigDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(configDir, "config.yaml")

	if _, err := os.Stat(configPath); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to check config file: %w", err)
	}

	defaultConfig := fmt.Sprintf(`# Drydock Deployment Bundler Configuration

# Base directory the stack is installed under on the target host
install_root: %s

# Catalog file describing packages, services, and tuning
# (empty means use the built-in catalog)
catalog: ""

# Directory bundle archives are written to
output_dir: %s

# Container engine binary (docker or podman)
engine: %s

# Parallel image exports (0 means derive from the host's CPU count)
workers: 0

# Timeouts for external tool invocations
timeouts:
  package_manager: %s
  image_transfer: %s
  stack_start: %s

# Run history settings
journal:
  enabled: true
  # Journal path (empty means use default: $XDG_STATE_HOME/drydock/journal)
  path: ""
  retention_days: %d

# Image export cache
cache:
  enabled: true
  # Cache path (empty means use default: $XDG_CACHE_HOME/drydock/exports)
  path: ""

# Logging configuration
logging:
  # Log level: debug, info, warn, error
  level: info
  # Log file path (empty means use default: $XDG_STATE_HOME/drydock/drydock.log)
  path: ""
  # Log rotation settings
  rotation:
    max_size: 10MB
    max_age: 30       # days
    max_backups: 5
    daily: true
  # Per-component log levels
  components:
    bundle: info
    installer: info
    exec: warn
    cache: warn
`, DefaultInstallRoot, DefaultOutputDir, DefaultEngine,
		DefaultPackageTimeout, DefaultImageTimeout, DefaultStackTimeout,
		DefaultRetentionDays)

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}

	return nil
}

// ExpandPath expands ~ in a path to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, path[1:]), nil
}

// StateDir returns $XDG_STATE_HOME/drydock/ for log and journal files.
func StateDir() string {
	return filepath.Join(xdg.StateHome, "drydock")
}

// CacheDir returns $XDG_CACHE_HOME/drydock/ for the image export cache.
func CacheDir() string {
	return filepath.Join(xdg.CacheHome, "drydock")
}

// DefaultJournalPath returns the default journal directory.
func DefaultJournalPath() string {
	return filepath.Join(StateDir(), "journal")
}

// DefaultCachePath returns the default export cache directory.
func DefaultCachePath() string {
	return filepath.Join(CacheDir(), "exports")
}
