package bundle

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/jamesainslie/drydock/pkg/drydock/hostinfo"
)

// Budget-derived config lines. The renderers emit these and the installer
// rewrites them in place, so both sides share one formatting function per
// key: a retune with an unchanged budget is then byte-identical to a fresh
// render.

func workerProcessesLine(b hostinfo.Budget) string {
	return fmt.Sprintf("worker_processes %d;", b.WorkerProcesses)
}

func sharedBuffersLine(b hostinfo.Budget) string {
	return fmt.Sprintf("shared_buffers = %dMB", b.DBSharedBuffersMB)
}

func workMemLine(b hostinfo.Budget) string {
	return fmt.Sprintf("work_mem = %dMB", b.DBWorkMemMB)
}

func maxmemoryLine(b hostinfo.Budget) string {
	return fmt.Sprintf("maxmemory %dmb", b.RedisMemoryMB)
}

// tuningTarget binds one rendered config file to the rewrite rules that
// retarget it for a new budget.
type tuningTarget struct {
	file  string
	rules []tuningRule
}

type tuningRule struct {
	pattern *regexp.Regexp
	line    func(hostinfo.Budget) string
}

// The maxmemory pattern requires whitespace after the key so it cannot
// swallow maxmemory-policy.
var tuningTargets = []tuningTarget{
	{
		file: NginxConfName,
		rules: []tuningRule{
			{regexp.MustCompile(`(?m)^worker_processes\s+\d+;`), workerProcessesLine},
		},
	},
	{
		file: PostgresConfName,
		rules: []tuningRule{
			{regexp.MustCompile(`(?m)^shared_buffers\s*=\s*\S+`), sharedBuffersLine},
			{regexp.MustCompile(`(?m)^work_mem\s*=\s*\S+`), workMemLine},
		},
	},
	{
		file: RedisConfName,
		rules: []tuningRule{
			{regexp.MustCompile(`(?m)^maxmemory\s+\S+`), maxmemoryLine},
		},
	},
}

// Retune rewrites the budget-derived keys in the rendered config files
// under configDir and returns the names of files whose content changed.
// Retuning with the budget the files already carry changes nothing.
func Retune(configDir string, budget hostinfo.Budget) ([]string, error) {
	var changed []string
	for _, t := range tuningTargets {
		path := filepath.Join(configDir, t.file)
		orig, err := os.ReadFile(path)
		if err != nil {
			return changed, fmt.Errorf("retune %s: %w", t.file, err)
		}

		next := orig
		for _, rule := range t.rules {
			if !rule.pattern.Match(next) {
				return changed, fmt.Errorf("retune %s: no line matches %s", t.file, rule.pattern)
			}
			next = rule.pattern.ReplaceAll(next, []byte(rule.line(budget)))
		}

		if bytes.Equal(orig, next) {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			return changed, fmt.Errorf("retune %s: %w", t.file, err)
		}
		if err := os.WriteFile(path, next, info.Mode().Perm()); err != nil {
			return changed, fmt.Errorf("retune %s: %w", t.file, err)
		}
		changed = append(changed, t.file)
	}
	return changed, nil
}
