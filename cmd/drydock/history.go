package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jamesainslie/drydock/pkg/drydock/config"
	"github.com/jamesainslie/drydock/pkg/drydock/journal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View run history",
	Long: `View the history of bundle assembly and install runs.

The journal stores one record per run, including the bundle identity and,
for installs, per-stage outcomes.`,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show details of a specific run",
	Long:  `Display detailed information about a specific run by its ID.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean up old history entries",
	Long:  `Remove history entries older than the retention period.`,
	RunE:  runHistoryClean,
}

var (
	historyLimit int
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum number of entries to show")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyCleanCmd)
	rootCmd.AddCommand(historyCmd)
}

// journalDir returns the journal directory from config, falling back to
// the default under the XDG state directory.
func journalDir() string {
	if p := viper.GetString("journal.path"); p != "" {
		if expanded, err := config.ExpandPath(p); err == nil {
			return expanded
		}
	}
	return config.DefaultJournalPath()
}

// openJournal returns a journal rooted at the configured directory.
func openJournal() (*journal.Journal, error) {
	return journal.New(journalDir())
}

// runHistory lists recent runs.
func runHistory(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return fmt.Errorf("failed to initialize journal: %w", err)
	}

	entries, err := j.List(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}

	if len(entries) == 0 {
		printInfo("No history entries found.")
		printInfo("Run 'drydock --online <dir>' to assemble a bundle.")
		return nil
	}

	// Print header
	fmt.Printf("\n%-40s  %-8s  %-10s  %-24s  %s\n", "ID", "TYPE", "OUTCOME", "BUNDLE", "DURATION")
	fmt.Println(strings.Repeat("-", 100))

	for _, entry := range entries {
		fmt.Printf("%-40s  %-8s  %-10s  %-24s  %s\n",
			truncateString(entry.ID, 40),
			entry.Operation,
			entry.Outcome,
			truncateString(bundleLabel(entry.Bundle), 24),
			formatRunDuration(entry.Summary.DurationMS),
		)
	}

	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("\nShowing %d entries. Use --limit to see more.\n", len(entries))
	fmt.Println("Use 'drydock history show <id>' for details on a specific entry.")

	return nil
}

// runHistoryShow displays details of a specific run.
func runHistoryShow(cmd *cobra.Command, args []string) error {
	id := args[0]

	j, err := openJournal()
	if err != nil {
		return fmt.Errorf("failed to initialize journal: %w", err)
	}

	entry, err := j.Get(id)
	if err != nil {
		return fmt.Errorf("failed to get entry: %w", err)
	}

	// Display entry details
	fmt.Println("\nRun Details")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("ID:         %s\n", entry.ID)
	fmt.Printf("Timestamp:  %s\n", entry.Timestamp.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("Operation:  %s\n", entry.Operation)
	if entry.Host != "" {
		fmt.Printf("Host:       %s\n", entry.Host)
	}
	if entry.Bundle.Name != "" {
		fmt.Printf("Bundle:     %s\n", bundleLabel(entry.Bundle))
	}
	if entry.Bundle.SizeBytes > 0 {
		fmt.Printf("Size:       %s\n", humanize.IBytes(uint64(entry.Bundle.SizeBytes)))
	}
	if entry.Bundle.SHA256 != "" {
		fmt.Printf("SHA256:     %s\n", entry.Bundle.SHA256)
	}
	fmt.Printf("Outcome:    %s\n", entry.Outcome)
	if entry.Error != "" {
		fmt.Printf("Error:      %s\n", entry.Error)
	}
	fmt.Printf("Duration:   %s\n", formatRunDuration(entry.Summary.DurationMS))

	if len(entry.Stages) > 0 {
		fmt.Println("\nStages:")
		fmt.Println(strings.Repeat("-", 60))
		fmt.Printf("%-26s  %-10s  %s\n", "STAGE", "OUTCOME", "DETAIL")
		fmt.Println(strings.Repeat("-", 60))

		for _, st := range entry.Stages {
			detail := st.Detail
			if st.Error != "" {
				detail = st.Error
			}
			fmt.Printf("%-26s  %-10s  %s\n", st.Name, st.Outcome, detail)
		}
	}

	return nil
}

// runHistoryClean removes old history entries.
func runHistoryClean(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return fmt.Errorf("failed to initialize journal: %w", err)
	}

	retentionDays := viper.GetInt("journal.retention_days")
	if retentionDays <= 0 {
		retentionDays = config.DefaultRetentionDays
	}

	printInfo("Cleaning history entries older than %d days...", retentionDays)

	if err := j.Cleanup(retentionDays); err != nil {
		return fmt.Errorf("failed to clean history: %w", err)
	}

	printInfo("History cleanup complete.")
	return nil
}

// bundleLabel renders a bundle reference as "name version".
func bundleLabel(ref journal.BundleRef) string {
	if ref.Name == "" {
		return "-"
	}
	if ref.Version == "" {
		return ref.Name
	}
	return ref.Name + " " + ref.Version
}

// formatRunDuration renders recorded milliseconds as a short duration.
func formatRunDuration(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	if d >= time.Minute {
		return d.Round(time.Second).String()
	}
	return d.Round(time.Millisecond).String()
}

// truncateString truncates a string to maxLen, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
