//go:build !linux && !darwin

package hostinfo

import (
	"fmt"
	"runtime"
)

// Detect fails on platforms without a supported memory probe. Budget
// derivation depends on an accurate memory reading, so guessing here
// would produce a bundle tuned for hardware that does not exist.
func Detect() (Profile, error) {
	return Profile{}, fmt.Errorf("host detection not supported on %s/%s", runtime.GOOS, runtime.GOARCH)
}
