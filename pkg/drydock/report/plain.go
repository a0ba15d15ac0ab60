package report

import (
	"bytes"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
)

// PlainFormatter formats output as tab-separated key/value rows.
// It produces plain text output suitable for scripting and piping.
// No colors or styling are applied.
type PlainFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)

	fmt.Fprintf(tw, "operation\t%s\n", r.Operation)

	if r.Bundle != nil {
		fmt.Fprintf(tw, "bundle\t%s %s %s\n", r.Bundle.Name, r.Bundle.Version, r.Bundle.Platform)
		if r.Bundle.ArtifactPath != "" {
			fmt.Fprintf(tw, "artifact\t%s\n", r.Bundle.ArtifactPath)
			fmt.Fprintf(tw, "size\t%d\t%s\n", r.Bundle.SizeBytes, humanize.IBytes(uint64(r.Bundle.SizeBytes)))
			fmt.Fprintf(tw, "sha256\t%s\n", r.Bundle.SHA256)
			fmt.Fprintf(tw, "packages\t%d\n", r.Bundle.Packages)
			fmt.Fprintf(tw, "images\t%d exported\t%d cached\n", r.Bundle.ImagesExported, r.Bundle.ImagesCached)
			fmt.Fprintf(tw, "files\t%d\n", r.Bundle.Files)
		}
	}

	if r.TargetHost != nil {
		f.writeHost(tw, "target", r.TargetHost)
	}
	if r.BuildHost != nil {
		f.writeHost(tw, "build", r.BuildHost)
	}

	if r.Budget != nil {
		fmt.Fprintf(tw, "budget.db_memory_mb\t%d\n", r.Budget.DBMemoryMB)
		fmt.Fprintf(tw, "budget.db_shared_buffers_mb\t%d\n", r.Budget.DBSharedBuffersMB)
		fmt.Fprintf(tw, "budget.db_work_mem_mb\t%d\n", r.Budget.DBWorkMemMB)
		fmt.Fprintf(tw, "budget.redis_memory_mb\t%d\n", r.Budget.RedisMemoryMB)
		fmt.Fprintf(tw, "budget.app_memory_mb\t%d\n", r.Budget.AppMemoryMB)
		fmt.Fprintf(tw, "budget.worker_processes\t%d\n", r.Budget.WorkerProcesses)
	}

	for _, s := range r.Stages {
		fmt.Fprintf(tw, "stage\t%s\t%s\t%s", s.Name, s.Outcome, formatDuration(s.Duration))
		if s.Detail != "" {
			fmt.Fprintf(tw, "\t%s", s.Detail)
		}
		fmt.Fprintln(tw)
	}

	for _, s := range r.Services {
		fmt.Fprintf(tw, "service\t%s\t%s\t%s\t%s\n", s.Name, s.State, s.Image, s.URL)
	}

	for _, warning := range r.Warnings {
		fmt.Fprintf(tw, "warning\t%s\n", warning)
	}

	if r.SecretsPath != "" {
		fmt.Fprintf(tw, "secrets\t%s\n", r.SecretsPath)
	}

	outcome := "completed"
	if r.Failed {
		outcome = "aborted"
	}
	fmt.Fprintf(tw, "result\t%s\t%s\n", outcome, formatDuration(r.Duration))
	if r.Error != "" {
		fmt.Fprintf(tw, "error\t%s\n", r.Error)
	}

	return tw.Flush()
}

func (f *PlainFormatter) writeHost(tw *tabwriter.Writer, label string, p *ProfileInfo) {
	fmt.Fprintf(tw, "%s.cpu_cores\t%d\n", label, p.CPUCores)
	fmt.Fprintf(tw, "%s.total_memory_mb\t%d\n", label, p.TotalMemoryMB)
	if p.Platform != "" {
		fmt.Fprintf(tw, "%s.platform\t%s\n", label, p.Platform)
	}
}

func init() {
	Register("plain", func() Formatter {
		return &PlainFormatter{}
	})
}

// Ensure PlainFormatter implements Formatter.
var _ Formatter = (*PlainFormatter)(nil)
