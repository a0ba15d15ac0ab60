//go:build linux

package hostinfo

import (
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// Detect reads the host's total physical memory and logical CPU count.
// On linux it uses the sysinfo syscall for memory and runtime.NumCPU for
// the core count. Detection failures are returned as errors rather than
// papered over with defaults: every derived tuning value depends on these
// numbers being real.
func Detect() (Profile, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return Profile{}, fmt.Errorf("read sysinfo: %w", err)
	}

	totalBytes := uint64(info.Totalram) * uint64(info.Unit)
	if totalBytes == 0 {
		return Profile{}, errors.New("sysinfo reported zero total memory")
	}

	cores := runtime.NumCPU()
	if cores <= 0 {
		return Profile{}, errors.New("could not determine logical CPU count")
	}

	return Profile{
		TotalMemoryMB: int(totalBytes / (1024 * 1024)),
		CPUCores:      cores,
	}, nil
}
