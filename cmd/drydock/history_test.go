package main

import (
	"errors"
	"testing"
	"time"

	"github.com/jamesainslie/drydock/pkg/drydock/bundle"
	"github.com/jamesainslie/drydock/pkg/drydock/catalog"
	"github.com/jamesainslie/drydock/pkg/drydock/installer"
	"github.com/jamesainslie/drydock/pkg/drydock/journal"
	"github.com/spf13/viper"
)

func TestBundleLabel(t *testing.T) {
	tests := []struct {
		name string
		ref  journal.BundleRef
		want string
	}{
		{
			name: "name and version",
			ref:  journal.BundleRef{Name: "lanstack", Version: "1.2.0"},
			want: "lanstack 1.2.0",
		},
		{
			name: "name only",
			ref:  journal.BundleRef{Name: "lanstack"},
			want: "lanstack",
		},
		{
			name: "empty",
			ref:  journal.BundleRef{},
			want: "-",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := bundleLabel(tt.ref); got != tt.want {
				t.Errorf("bundleLabel() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatRunDuration(t *testing.T) {
	tests := []struct {
		name string
		ms   int64
		want string
	}{
		{name: "sub-second", ms: 420, want: "420ms"},
		{name: "seconds", ms: 12340, want: "12.34s"},
		{name: "minutes round to seconds", ms: 92500, want: "1m33s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatRunDuration(tt.ms); got != tt.want {
				t.Errorf("formatRunDuration(%d) = %q, want %q", tt.ms, got, tt.want)
			}
		})
	}
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{name: "shorter than max", input: "short", maxLen: 10, want: "short"},
		{name: "exactly max", input: "exact", maxLen: 5, want: "exact"},
		{name: "truncated", input: "much-too-long", maxLen: 10, want: "much-to..."},
		{name: "tiny max", input: "abcdef", maxLen: 2, want: "ab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncateString(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("truncateString(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestRecordBundleRunWritesJournalEntry(t *testing.T) {
	dir := t.TempDir()
	viper.Reset()
	viper.Set("journal.enabled", true)
	viper.Set("journal.path", dir)

	res := &bundle.Result{SHA256: "abc123", SizeBytes: 4096}
	recordBundleRun(catalog.Default(), res, nil, 1500*time.Millisecond)

	j, err := journal.New(dir)
	if err != nil {
		t.Fatalf("journal.New() error = %v", err)
	}
	entries, err := j.List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("List() returned %d entries, want 1", len(entries))
	}

	entry := entries[0]
	if entry.Operation != journal.OpBundle {
		t.Errorf("Operation = %q, want %q", entry.Operation, journal.OpBundle)
	}
	if entry.Outcome != journal.OutcomeSucceeded {
		t.Errorf("Outcome = %q, want %q", entry.Outcome, journal.OutcomeSucceeded)
	}
	if entry.Bundle.Name != "lanstack" {
		t.Errorf("Bundle.Name = %q, want %q", entry.Bundle.Name, "lanstack")
	}
	if entry.Bundle.SHA256 != "abc123" {
		t.Errorf("Bundle.SHA256 = %q, want %q", entry.Bundle.SHA256, "abc123")
	}
	if entry.Summary.DurationMS != 1500 {
		t.Errorf("Summary.DurationMS = %d, want 1500", entry.Summary.DurationMS)
	}
}

func TestRecordInstallRunWritesStageRecords(t *testing.T) {
	dir := t.TempDir()
	viper.Reset()
	viper.Set("journal.enabled", true)
	viper.Set("journal.path", dir)

	res := &installer.Result{
		Manifest: &bundle.Manifest{
			CatalogName: "lanstack",
			Version:     "2.0.0",
			OS:          "linux",
			Arch:        "amd64",
		},
		Stages: []installer.StageResult{
			{Name: "detect_host", Detail: "ubuntu 24.04, 4 cores, 8192 MB", Duration: 20 * time.Millisecond},
			{Name: "compute_budget", Err: errors.New("boom"), Duration: time.Millisecond},
		},
	}
	runErr := errors.New("stage compute_budget: boom")
	recordInstallRun(res, runErr, 2*time.Second)

	j, err := journal.New(dir)
	if err != nil {
		t.Fatalf("journal.New() error = %v", err)
	}
	entries, err := j.List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("List() returned %d entries, want 1", len(entries))
	}

	entry := entries[0]
	if entry.Operation != journal.OpInstall {
		t.Errorf("Operation = %q, want %q", entry.Operation, journal.OpInstall)
	}
	if entry.Outcome != journal.OutcomeFailed {
		t.Errorf("Outcome = %q, want %q", entry.Outcome, journal.OutcomeFailed)
	}
	if entry.Error != runErr.Error() {
		t.Errorf("Error = %q, want %q", entry.Error, runErr.Error())
	}
	if entry.Bundle.Platform != "linux/amd64" {
		t.Errorf("Bundle.Platform = %q, want %q", entry.Bundle.Platform, "linux/amd64")
	}

	if len(entry.Stages) != 2 {
		t.Fatalf("entry has %d stages, want 2", len(entry.Stages))
	}
	if entry.Stages[0].Outcome != journal.OutcomeSucceeded {
		t.Errorf("stage 0 Outcome = %q, want %q", entry.Stages[0].Outcome, journal.OutcomeSucceeded)
	}
	if entry.Stages[0].Detail != "ubuntu 24.04, 4 cores, 8192 MB" {
		t.Errorf("stage 0 Detail = %q", entry.Stages[0].Detail)
	}
	if entry.Stages[1].Outcome != journal.OutcomeFailed {
		t.Errorf("stage 1 Outcome = %q, want %q", entry.Stages[1].Outcome, journal.OutcomeFailed)
	}
	if entry.Stages[1].Error != "boom" {
		t.Errorf("stage 1 Error = %q, want %q", entry.Stages[1].Error, "boom")
	}
}

func TestRecordRunsDisabledJournal(t *testing.T) {
	dir := t.TempDir()
	viper.Reset()
	viper.Set("journal.enabled", false)
	viper.Set("journal.path", dir)

	recordBundleRun(catalog.Default(), nil, errors.New("failed"), time.Second)
	recordInstallRun(&installer.Result{}, nil, time.Second)

	j, err := journal.New(dir)
	if err != nil {
		t.Fatalf("journal.New() error = %v", err)
	}
	entries, err := j.List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("disabled journal recorded %d entries, want 0", len(entries))
	}
}
