package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/jamesainslie/drydock/pkg/drydock/config"
	"github.com/jamesainslie/drydock/pkg/drydock/exportcache"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the image export cache",
	Long: `Commands for managing the container image export cache.

The cache remembers completed image exports so repeat bundle assemblies can
skip re-exporting images that have not changed. Cache data is stored in the
XDG cache directory (typically ~/.cache/drydock/exports).`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	Long:  `Displays the cache location and the exports it currently covers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cachePath()

		if _, err := os.Stat(path); os.IsNotExist(err) {
			fmt.Println("Cache: empty (no cache directory)")
			fmt.Printf("Cache location: %s\n", path)
			return nil
		}

		cache, err := exportcache.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open cache: %w", err)
		}
		defer cache.Close()

		stats, err := cache.CollectStats()
		if err != nil {
			return fmt.Errorf("failed to collect cache stats: %w", err)
		}

		fmt.Printf("Cache location: %s\n", path)
		fmt.Printf("Recorded exports: %d\n", stats.Entries)
		fmt.Printf("Tarball bytes covered: %s\n", humanize.IBytes(uint64(stats.TarballBytes)))

		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear all recorded exports",
	Long:  `Removes all export records. The next assembly will re-export every image.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cachePath()

		// Check if cache exists
		if _, err := os.Stat(path); os.IsNotExist(err) {
			fmt.Println("Cache is already empty.")
			return nil
		}

		cache, err := exportcache.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open cache: %w", err)
		}
		defer cache.Close()

		if err := cache.Clear(); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}

		fmt.Println("Cache cleared.")
		return nil
	},
}

var cachePathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show cache location",
	Long:  `Prints the path to the export cache directory.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(cachePath())
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cachePathCmd)
	rootCmd.AddCommand(cacheCmd)
}

// cachePath returns the export cache directory from config, falling back
// to the default under the XDG cache directory.
func cachePath() string {
	if p := viper.GetString("cache.path"); p != "" {
		if expanded, err := config.ExpandPath(p); err == nil {
			return expanded
		}
	}
	return config.DefaultCachePath()
}
