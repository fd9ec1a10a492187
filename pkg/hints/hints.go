// Package hints resolves operator-supplied provider hint files.
//
// A hint file named <provider>.json in any configured candidate directory
// asserts that the host runs under that provider, bypassing heuristic and
// network detection. File existence alone is the signal: an empty file
// parses to an empty mapping. Content is a JSON object; comments and
// trailing commas are tolerated.
package hints

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"

	cnserrors "github.com/NVIDIA/cns-facts/pkg/errors"
)

// Extension is appended to the provider name to form the hint file name.
const Extension = ".json"

// DefaultPaths are the candidate hint directories, checked in order.
var DefaultPaths = []string{
	"/etc/chef/ohai/hints",
	`C:\chef\ohai\hints`,
}

// Hint is a parsed hint file.
type Hint struct {
	Provider string
	Path     string
	Data     map[string]any
}

// Decision is the outcome of classifying hints for a provider.
type Decision int

const (
	// None means no relevant hint exists; detection falls back to heuristics.
	None Decision = iota
	// Self means a hint for the provider under test exists.
	Self
	// Other means a hint for a mutually exclusive provider exists.
	Other
)

// String implements fmt.Stringer.
func (d Decision) String() string {
	switch d {
	case Self:
		return "self"
	case Other:
		return "other"
	default:
		return "none"
	}
}

// Resolver locates hint files in an ordered list of directories.
type Resolver struct {
	paths []string
}

// NewResolver creates a resolver over paths. With no paths, DefaultPaths
// are used.
func NewResolver(paths ...string) *Resolver {
	if len(paths) == 0 {
		paths = DefaultPaths
	}
	return &Resolver{paths: append([]string(nil), paths...)}
}

// Paths returns the candidate directories in evaluation order.
func (r *Resolver) Paths() []string {
	return append([]string(nil), r.paths...)
}

// Resolve returns the first hint file found for provider, or nil when no
// candidate exists. A file that exists but cannot be parsed yields an
// error with code ErrCodeInvalidHint.
func (r *Resolver) Resolve(provider string) (*Hint, error) {
	for _, dir := range r.paths {
		path := filepath.Join(dir, provider+Extension)

		info, err := os.Stat(path)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				slog.Debug("skipping unreadable hint candidate",
					slog.String("path", path),
					slog.String("error", err.Error()))
			}
			continue
		}
		if info.IsDir() {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, cnserrors.WrapWithContext(cnserrors.ErrCodeInvalidHint,
				"failed to read hint file", err, map[string]any{"path": path})
		}

		parsed, err := parse(data)
		if err != nil {
			return nil, cnserrors.WrapWithContext(cnserrors.ErrCodeInvalidHint,
				fmt.Sprintf("malformed hint file %s", path), err, map[string]any{"path": path})
		}

		slog.Debug("found hint file",
			slog.String("provider", provider),
			slog.String("path", path))

		return &Hint{Provider: provider, Path: path, Data: parsed}, nil
	}
	return nil, nil
}

// Classify checks the provider's own hint first, then the hints of the
// mutually exclusive providers in order. The returned hint is the one that
// decided the outcome.
func (r *Resolver) Classify(provider string, exclusive ...string) (Decision, *Hint, error) {
	h, err := r.Resolve(provider)
	if err != nil {
		return None, nil, err
	}
	if h != nil {
		return Self, h, nil
	}

	for _, other := range exclusive {
		oh, err := r.Resolve(other)
		if err != nil {
			return None, nil, err
		}
		if oh != nil {
			return Other, oh, nil
		}
	}
	return None, nil, nil
}

func parse(data []byte) (map[string]any, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return map[string]any{}, nil
	}

	var m map[string]any
	if err := json.Unmarshal(jsonc.ToJSON(data), &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}
