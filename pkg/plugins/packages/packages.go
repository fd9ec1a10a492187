// Package packages records the versions of configured libraries and tools
// under packages.<key>.version. Components that are not present are
// omitted.
//
// The key is the component name with "." and "/" replaced by "_", so module
// paths stay addressable by dotted attribute paths:
// github.com/coreos/go-systemd/v22 is stored as
// packages.github_com_coreos_go-systemd_v22 with its original name under
// "name".
package packages

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/NVIDIA/cns-facts/pkg/attribute"
	"github.com/NVIDIA/cns-facts/pkg/inspect"
	"github.com/NVIDIA/cns-facts/pkg/plugin"
)

// Name is the plugin name.
const Name = "packages"

var keyReplacer = strings.NewReplacer(".", "_", "/", "_")

// Key returns the store key for a library or tool name.
func Key(name string) string {
	return keyReplacer.Replace(name)
}

// Collector inspects libraries compiled into the binary and tools on PATH.
type Collector struct {
	libraries []string
	tools     []string
	libInfo   *inspect.Inspector
	toolInfo  *inspect.Inspector
}

// Option configures a Collector.
type Option func(*Collector)

// WithLibraries sets the module paths to inspect.
func WithLibraries(names ...string) Option {
	return func(c *Collector) {
		c.libraries = names
	}
}

// WithTools sets the executables to inspect.
func WithTools(names ...string) Option {
	return func(c *Collector) {
		c.tools = names
	}
}

// WithLibrarySource overrides the source used for libraries.
func WithLibrarySource(s inspect.Source) Option {
	return func(c *Collector) {
		c.libInfo = inspect.New(s)
	}
}

// WithToolSource overrides the source used for tools.
func WithToolSource(s inspect.Source) Option {
	return func(c *Collector) {
		c.toolInfo = inspect.New(s)
	}
}

// New creates the packages plugin.
func New(opts ...Option) *Collector {
	c := &Collector{
		libraries: []string{inspect.GoToolchain},
		libInfo:   inspect.New(inspect.NewBuildInfo()),
		toolInfo:  inspect.New(inspect.NewCommand()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements plugin.Plugin.
func (c *Collector) Name() string { return Name }

// Collect implements plugin.Plugin.
func (c *Collector) Collect(ctx context.Context, env *plugin.Env) error {
	found := make(map[string]any)

	record := func(in *inspect.Inspector, source string, names []string) error {
		for _, name := range names {
			if err := ctx.Err(); err != nil {
				return err
			}
			v, ok := in.Inspect(ctx, name)
			if !ok {
				env.Logger().Debug("package not present", slog.String("package", name))
				continue
			}
			found[Key(name)] = map[string]any{"name": name, "version": v, "source": source}
		}
		return nil
	}

	if err := record(c.libInfo, "buildinfo", c.libraries); err != nil {
		return err
	}
	if err := record(c.toolInfo, "path", c.tools); err != nil {
		return err
	}

	if len(found) == 0 {
		return nil
	}
	if err := env.Attrs().Merge(attribute.P(Name), found); err != nil {
		return fmt.Errorf("failed to store package versions: %w", err)
	}
	return nil
}
