package inspect

import (
	"context"
	"runtime/debug"
)

// GoToolchain names the Go toolchain the binary was built with.
const GoToolchain = "go"

// BuildInfo reports versions of Go modules compiled into the running binary.
type BuildInfo struct {
	read func() (*debug.BuildInfo, bool)
}

// NewBuildInfo creates a BuildInfo source reading the running binary.
func NewBuildInfo() *BuildInfo {
	return &BuildInfo{read: debug.ReadBuildInfo}
}

// Version implements Source. name is a module path, or "go" for the
// toolchain. Replaced modules report the replacement version.
func (b *BuildInfo) Version(_ context.Context, name string) (string, bool) {
	bi, ok := b.read()
	if !ok || bi == nil {
		return "", false
	}

	if name == GoToolchain {
		return bi.GoVersion, bi.GoVersion != ""
	}
	if bi.Main.Path == name {
		return bi.Main.Version, bi.Main.Version != ""
	}
	for _, dep := range bi.Deps {
		if dep.Path != name {
			continue
		}
		if dep.Replace != nil && dep.Replace.Version != "" {
			return dep.Replace.Version, true
		}
		return dep.Version, dep.Version != ""
	}
	return "", false
}
