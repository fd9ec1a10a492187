// Package inspect looks up the versions of libraries and tools present on
// the host.
package inspect

import (
	"context"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Source reports the version of a named component.
type Source interface {
	Version(ctx context.Context, name string) (string, bool)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, name string) (string, bool)

// Version implements Source.
func (f SourceFunc) Version(ctx context.Context, name string) (string, bool) {
	return f(ctx, name)
}

// Inspector consults sources in order and returns the first version found.
type Inspector struct {
	sources []Source
}

// New creates an Inspector over sources.
func New(sources ...Source) *Inspector {
	return &Inspector{sources: sources}
}

// Inspect returns the normalized version of name. Absent components
// return false.
func (i *Inspector) Inspect(ctx context.Context, name string) (string, bool) {
	for _, s := range i.sources {
		if v, ok := s.Version(ctx, name); ok {
			return Normalize(v), true
		}
	}
	return "", false
}

// Normalize renders v as a canonical semantic version. Versions that do not
// parse are returned unchanged.
func Normalize(v string) string {
	v = strings.TrimSpace(v)
	parsed, err := semver.NewVersion(strings.TrimPrefix(v, "go"))
	if err != nil {
		return v
	}
	return parsed.String()
}
