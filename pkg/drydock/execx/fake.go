package execx

import (
	"context"
	"strings"
	"sync"
)

// Fake is a Runner for tests. Tools listed in Missing fail LookPath; every
// Run is recorded and answered by OnRun when set, or succeeds empty.
type Fake struct {
	mu sync.Mutex

	// Missing tools fail LookPath with ErrToolMissing.
	Missing map[string]bool

	// OnRun, when non-nil, decides each Run result.
	OnRun func(spec Spec) (Result, error)

	calls []Spec
}

var _ Runner = (*Fake)(nil)

// LookPath resolves every tool except those marked missing.
func (f *Fake) LookPath(tool string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Missing[tool] {
		return "", &CommandError{Name: tool, Err: ErrToolMissing}
	}
	return "/usr/bin/" + tool, nil
}

// Run records the invocation and delegates to OnRun.
func (f *Fake) Run(_ context.Context, spec Spec) (Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, spec)
	onRun := f.OnRun
	f.mu.Unlock()

	if onRun != nil {
		return onRun(spec)
	}
	return Result{}, nil
}

// Calls returns a copy of every recorded invocation.
func (f *Fake) Calls() []Spec {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Spec, len(f.calls))
	copy(out, f.calls)
	return out
}

// CommandLines renders recorded invocations as "name arg arg" strings,
// convenient for order and content assertions.
func (f *Fake) CommandLines() []string {
	calls := f.Calls()
	lines := make([]string, len(calls))
	for i, c := range calls {
		lines[i] = strings.Join(append([]string{c.Name}, c.Args...), " ")
	}
	return lines
}

// CalledWith reports whether any recorded command line starts with the
// given prefix words.
func (f *Fake) CalledWith(words ...string) bool {
	prefix := strings.Join(words, " ")
	for _, line := range f.CommandLines() {
		if line == prefix || strings.HasPrefix(line, prefix+" ") {
			return true
		}
	}
	return false
}
