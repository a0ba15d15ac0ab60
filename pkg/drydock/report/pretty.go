package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// PrettyFormatter formats output with colors and styling using lipgloss.
// It produces a visually appealing output suitable for terminal display.
type PrettyFormatter struct{}

var opTitles = map[string]string{
	OpProfile: "Host profile",
	OpBundle:  "Bundle assembly",
	OpInstall: "Offline install",
}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Result) error {
	w.WriteString(f.formatHeader(r))
	w.WriteString("\n")

	if len(r.Stages) > 0 {
		w.WriteString(f.formatStages(r.Stages))
	}
	if len(r.Services) > 0 {
		w.WriteString("\n")
		w.WriteString(f.formatServices(r.Services))
	}
	if r.Budget != nil {
		w.WriteString("\n")
		w.WriteString(f.formatBudget(r.Budget))
	}
	if r.Bundle != nil && r.Bundle.ArtifactPath != "" {
		w.WriteString("\n")
		w.WriteString(f.formatArtifact(r.Bundle))
	}
	if len(r.Warnings) > 0 {
		w.WriteString("\n")
		w.WriteString(f.formatWarnings(r.Warnings))
	}
	if r.Failed {
		w.WriteString(f.formatFailure(r.Error))
		w.WriteString("\n")
	}

	w.WriteString(f.formatFooter(r))
	return nil
}

// formatHeader builds the header box with run metadata.
func (f *PrettyFormatter) formatHeader(r *Result) string {
	var lines []string

	title := opTitles[r.Operation]
	if title == "" {
		title = r.Operation
	}
	if r.Bundle != nil {
		title = fmt.Sprintf("%s: %s %s (%s)", title, r.Bundle.Name, r.Bundle.Version, r.Bundle.Platform)
	}
	lines = append(lines, TitleStyle.Render(title))

	if r.TargetHost != nil {
		lines = append(lines, f.formatHost("Target:", r.TargetHost))
	}
	if r.BuildHost != nil {
		lines = append(lines, f.formatHost("Built on:", r.BuildHost))
	}

	return HeaderBox.Render(strings.Join(lines, "\n"))
}

// formatHost returns one labeled host description line.
func (f *PrettyFormatter) formatHost(label string, p *ProfileInfo) string {
	desc := fmt.Sprintf("%d cores, %d MB", p.CPUCores, p.TotalMemoryMB)
	if p.Platform != "" {
		desc += "  " + p.Platform
	}
	return fmt.Sprintf("%s %s", LabelStyle.Render(label), ValueStyle.Render(desc))
}

// formatStages builds the stage checklist.
func (f *PrettyFormatter) formatStages(stages []StageStatus) string {
	var sb strings.Builder
	sb.WriteString("  " + TableHeaderStyle.Render("STAGES") + "\n")

	nameWidth := 0
	for _, s := range stages {
		if len(s.Name) > nameWidth {
			nameWidth = len(s.Name)
		}
	}

	for _, s := range stages {
		mark := RunningStyle.Render("+")
		if s.Outcome != "succeeded" {
			mark = FailedStyle.Render("x")
		}
		line := fmt.Sprintf("  %s %s  %s", mark, padRight(s.Name, nameWidth), MutedStyle.Render(formatDuration(s.Duration)))
		if s.Detail != "" {
			detailStyle := MutedStyle
			if s.Outcome != "succeeded" {
				detailStyle = FailedStyle
			}
			line += "  " + detailStyle.Render(s.Detail)
		}
		sb.WriteString(line + "\n")
	}

	return sb.String()
}

// formatServices builds the service table with NAME, STATE, IMAGE and URL
// columns.
func (f *PrettyFormatter) formatServices(services []ServiceStatus) string {
	var sb strings.Builder

	nameWidth, stateWidth, imageWidth := len("SERVICE"), len("STATE"), len("IMAGE")
	for _, s := range services {
		nameWidth = max(nameWidth, len(s.Name))
		stateWidth = max(stateWidth, len(s.State))
		imageWidth = max(imageWidth, len(s.Image))
	}

	sb.WriteString(fmt.Sprintf("  %s  %s  %s  %s\n",
		TableHeaderStyle.Render(padRight("SERVICE", nameWidth)),
		TableHeaderStyle.Render(padRight("STATE", stateWidth)),
		TableHeaderStyle.Render(padRight("IMAGE", imageWidth)),
		TableHeaderStyle.Render("URL")))

	for _, s := range services {
		stateStyle := FailedStyle
		if s.State == "running" || s.State == "started" {
			stateStyle = RunningStyle
		}
		sb.WriteString(fmt.Sprintf("  %s  %s  %s  %s\n",
			ValueStyle.Render(padRight(s.Name, nameWidth)),
			stateStyle.Render(padRight(s.State, stateWidth)),
			MutedStyle.Render(padRight(s.Image, imageWidth)),
			ValueStyle.Render(s.URL)))
	}

	return sb.String()
}

// formatBudget builds the resource budget block.
func (f *PrettyFormatter) formatBudget(b *BudgetInfo) string {
	rows := []struct {
		label string
		value string
	}{
		{"database memory", fmt.Sprintf("%d MB", b.DBMemoryMB)},
		{"shared buffers", fmt.Sprintf("%d MB", b.DBSharedBuffersMB)},
		{"work mem", fmt.Sprintf("%d MB", b.DBWorkMemMB)},
		{"redis memory", fmt.Sprintf("%d MB", b.RedisMemoryMB)},
		{"app memory", fmt.Sprintf("%d MB", b.AppMemoryMB)},
		{"worker processes", fmt.Sprintf("%d", b.WorkerProcesses)},
	}

	var sb strings.Builder
	sb.WriteString("  " + TableHeaderStyle.Render("BUDGET") + "\n")
	for _, row := range rows {
		sb.WriteString(fmt.Sprintf("  %s %s\n",
			LabelStyle.Render(padRight(row.label, 18)),
			NumberStyle.Render(row.value)))
	}

	return sb.String()
}

// formatArtifact builds the bundle artifact block.
func (f *PrettyFormatter) formatArtifact(b *BundleInfo) string {
	rows := []struct {
		label string
		value string
	}{
		{"artifact", b.ArtifactPath},
		{"size", humanize.IBytes(uint64(b.SizeBytes))},
		{"sha256", b.SHA256},
		{"packages", fmt.Sprintf("%d", b.Packages)},
		{"images", fmt.Sprintf("%d exported, %d cached", b.ImagesExported, b.ImagesCached)},
		{"files", fmt.Sprintf("%d", b.Files)},
	}

	var sb strings.Builder
	sb.WriteString("  " + TableHeaderStyle.Render("ARTIFACT") + "\n")
	for _, row := range rows {
		sb.WriteString(fmt.Sprintf("  %s %s\n",
			LabelStyle.Render(padRight(row.label, 10)),
			ValueStyle.Render(row.value)))
	}

	return sb.String()
}

// formatWarnings builds a warning block.
func (f *PrettyFormatter) formatWarnings(warnings []string) string {
	var sb strings.Builder

	titleStyle := WarningStyle.Bold(true)
	sb.WriteString(titleStyle.Render("Warnings:"))
	sb.WriteString("\n")

	for _, warning := range warnings {
		sb.WriteString(WarningStyle.Render("  " + warning))
		sb.WriteString("\n")
	}

	return sb.String()
}

// formatFailure wraps the abort cause in a red box.
func (f *PrettyFormatter) formatFailure(cause string) string {
	label := FailedStyle.Bold(true).Render("Aborted:")
	return FailureBox.Render(label + " " + ValueStyle.Render(cause))
}

// formatFooter builds the footer box with summary information.
func (f *PrettyFormatter) formatFooter(r *Result) string {
	var parts []string

	status := RunningStyle.Render("completed")
	if r.Failed {
		status = FailedStyle.Render("aborted")
	}
	parts = append(parts, fmt.Sprintf("%s %s %s",
		LabelStyle.Render("Run:"), status,
		MutedStyle.Render("in "+formatDuration(r.Duration))))

	if r.SecretsPath != "" {
		parts = append(parts, fmt.Sprintf("%s %s",
			LabelStyle.Render("Secrets:"), ValueStyle.Render(r.SecretsPath)))
	}

	parts = append(parts, MutedStyle.Render("Use -o plain for unformatted output"))

	return FooterBox.Render(strings.Join(parts, "  "))
}

// padRight pads a string with spaces on the right to achieve the desired
// width.
func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	sec := d.Seconds()
	if sec < 1 {
		return fmt.Sprintf("%.0fms", sec*1000)
	}
	if sec < 60 {
		return fmt.Sprintf("%.1fs", sec)
	}
	minutes := int(sec) / 60
	seconds := int(sec) % 60
	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	hours := minutes / 60
	minutes = minutes % 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

// Ensure PrettyFormatter implements Formatter.
var _ Formatter = (*PrettyFormatter)(nil)
