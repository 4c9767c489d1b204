package serverline

import (
	"fmt"
	"runtime"
	"strings"

	gv "github.com/hashicorp/go-version"
)

// MinimumGoVersion is the oldest Go runtime the session is supported on.
const MinimumGoVersion = "1.21.0"

// IsCompatible reports whether the running Go runtime satisfies MinimumGoVersion.
func IsCompatible() bool {
	return CheckCompatibility() == nil
}

// CheckCompatibility returns ErrIncompatibleRuntime when the running Go
// runtime is older than MinimumGoVersion.
func CheckCompatibility() error {
	return checkVersion(runtime.Version())
}

func checkVersion(runtimeVersion string) error {
	// Development toolchains report "devel go1.x-..." and are always accepted.
	if strings.HasPrefix(runtimeVersion, "devel") {
		return nil
	}
	raw := strings.TrimPrefix(runtimeVersion, "go")
	if i := strings.IndexAny(raw, " -+"); i >= 0 {
		raw = raw[:i]
	}
	minV, err := gv.NewVersion(MinimumGoVersion)
	if err != nil {
		return fmt.Errorf("invalid minimum version: %w", err)
	}
	curV, err := gv.NewVersion(raw)
	if err != nil {
		return fmt.Errorf("%w: cannot parse %q: %v", ErrIncompatibleRuntime, runtimeVersion, err)
	}
	if curV.LessThan(minV) {
		return fmt.Errorf("%w: %s is older than %s", ErrIncompatibleRuntime, curV, minV)
	}
	return nil
}
