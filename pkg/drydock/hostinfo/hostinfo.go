// Package hostinfo provides host resource detection and resource budget
// derivation for the drydock deployment bundler. It reads the kernel-reported
// total physical memory and logical CPU count, then derives proportional
// per-service budgets used to parameterize every generated artifact.
//
// Detection is performed once per invocation and the resulting Profile is
// treated as immutable. Both the bundling phase and the installation phase
// call Detect independently, because the machine a bundle is built on and
// the machine it is installed on may have very different resources.
package hostinfo

// Profile contains the detected resource characteristics of a host.
type Profile struct {
	// TotalMemoryMB is the total physical memory in mebibytes.
	TotalMemoryMB int `json:"total_memory_mb" yaml:"total_memory_mb"`

	// CPUCores is the number of logical CPU cores available.
	CPUCores int `json:"cpu_cores" yaml:"cpu_cores"`
}

// DivergesFrom reports whether p differs from other by more than half in
// either dimension. The installer uses this to warn when a bundle built on
// one class of machine is installed on a much smaller or larger one.
func (p Profile) DivergesFrom(other Profile) bool {
	return diverges(p.TotalMemoryMB, other.TotalMemoryMB) ||
		diverges(p.CPUCores, other.CPUCores)
}

func diverges(a, b int) bool {
	if a == 0 || b == 0 {
		return a != b
	}
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo*2 < hi
}
