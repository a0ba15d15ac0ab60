//go:build darwin

package hostinfo

import (
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// Detect reads the host's total physical memory and logical CPU count.
// On darwin it uses sysctl hw.memsize for memory and runtime.NumCPU for
// the core count. Bundles can be assembled on a mac; installation still
// requires a supported linux target (see DetectPlatform).
func Detect() (Profile, error) {
	memsize, err := unix.SysctlUint64("hw.memsize")
	if err != nil {
		return Profile{}, fmt.Errorf("sysctl hw.memsize: %w", err)
	}
	if memsize == 0 {
		return Profile{}, errors.New("sysctl reported zero total memory")
	}

	cores := runtime.NumCPU()
	if cores <= 0 {
		return Profile{}, errors.New("could not determine logical CPU count")
	}

	return Profile{
		TotalMemoryMB: int(memsize / (1024 * 1024)),
		CPUCores:      cores,
	}, nil
}
