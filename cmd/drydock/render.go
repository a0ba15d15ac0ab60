package main

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jamesainslie/drydock/pkg/drydock/hostinfo"
	"github.com/jamesainslie/drydock/pkg/drydock/report"
	"github.com/spf13/viper"
)

// renderReport formats r with the selected formatter and prints it. Quiet
// mode degrades the styled default to the plain formatter; explicit
// machine formats (json, yaml) are honored as given.
func renderReport(r *report.Result) error {
	name := viper.GetString("output")
	if name == "" {
		name = "pretty"
	}
	if name == "pretty" && getQuiet() {
		name = "plain"
	}

	formatter, err := report.Get(name)
	if err != nil {
		return fmt.Errorf("unknown output format %q: available formats are %v", name, report.Available())
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, r); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	fmt.Print(buf.String())

	return nil
}

// profileInfo converts a detected profile and platform for the report.
func profileInfo(p hostinfo.Profile, plat hostinfo.Platform) *report.ProfileInfo {
	info := &report.ProfileInfo{
		CPUCores:      p.CPUCores,
		TotalMemoryMB: p.TotalMemoryMB,
	}
	if plat.ID != "" {
		info.Platform = strings.TrimSpace(plat.ID + " " + plat.VersionID)
	}
	return info
}

// budgetInfo converts a derived budget for the report.
func budgetInfo(b hostinfo.Budget) *report.BudgetInfo {
	return &report.BudgetInfo{
		DBMemoryMB:        b.DBMemoryMB,
		DBSharedBuffersMB: b.DBSharedBuffersMB,
		DBWorkMemMB:       b.DBWorkMemMB,
		RedisMemoryMB:     b.RedisMemoryMB,
		AppMemoryMB:       b.AppMemoryMB,
		WorkerProcesses:   b.WorkerProcesses,
	}
}
