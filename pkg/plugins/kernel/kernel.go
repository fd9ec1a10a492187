package kernel

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/NVIDIA/cns-facts/pkg/attribute"
	"github.com/NVIDIA/cns-facts/pkg/plugin"
)

// Name is the plugin name.
const Name = "kernel"

const maxFileSize = 1 << 20

// Collector reads kernel facts below a filesystem root.
type Collector struct {
	root        string
	sysctl      bool
	cmdlineOmit []string
	sysctlOmit  []string
}

// Option configures a Collector.
type Option func(*Collector)

// WithRoot reads procfs below root instead of "/".
func WithRoot(root string) Option {
	return func(c *Collector) {
		if root != "" {
			c.root = root
		}
	}
}

// WithSysctl toggles the /proc/sys walk.
func WithSysctl(enabled bool) Option {
	return func(c *Collector) {
		c.sysctl = enabled
	}
}

// New creates the kernel plugin.
func New(opts ...Option) *Collector {
	c := &Collector{
		root:        "/",
		sysctl:      true,
		cmdlineOmit: []string{"root"},
		sysctlOmit:  []string{"dev.cdrom.*"},
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
	if err := ctx.Err(); err != nil {
		return err
	}

	facts := make(map[string]any)

	for key, file := range map[string]string{
		"name":    "proc/sys/kernel/ostype",
		"release": "proc/sys/kernel/osrelease",
		"version": "proc/sys/kernel/version",
	} {
		content, err := c.read(file)
		if err != nil {
			continue
		}
		facts[key] = strings.TrimSpace(content)
	}

	cmdline, err := c.cmdline()
	if err != nil {
		env.Logger().Debug("boot parameters unavailable", slog.String("error", err.Error()))
	} else {
		facts["cmdline"] = cmdline
	}

	modules, err := c.modules()
	if err != nil {
		env.Logger().Debug("kernel modules unavailable", slog.String("error", err.Error()))
	} else {
		facts["modules"] = modules
	}

	if c.sysctl {
		params, err := c.sysctls(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			env.Logger().Debug("sysctl parameters unavailable", slog.String("error", err.Error()))
		} else {
			facts["sysctl"] = params
		}
	}

	return env.Attrs().Merge(attribute.P(Name), facts)
}

func (c *Collector) path(rel string) string {
	return filepath.Join(c.root, rel)
}

func (c *Collector) read(rel string) (string, error) {
	content, err := os.ReadFile(c.path(rel))
	if err != nil {
		return "", err
	}
	if len(content) > maxFileSize {
		return "", fmt.Errorf("%s exceeds maximum size of %d bytes", rel, maxFileSize)
	}
	return string(content), nil
}

// cmdline parses /proc/cmdline into key/value boot parameters. Flags
// without a value map to the empty string.
func (c *Collector) cmdline() (map[string]any, error) {
	content, err := c.read("proc/cmdline")
	if err != nil {
		return nil, fmt.Errorf("failed to read boot parameters: %w", err)
	}

	params := make(map[string]any)
	for _, p := range strings.Fields(content) {
		// Split on the first '=' only: "root=PARTUUID=xyz".
		key, val, _ := strings.Cut(p, "=")
		params[key] = val
	}
	return attribute.FilterOut(params, c.cmdlineOmit), nil
}

func (c *Collector) modules() (map[string]any, error) {
	content, err := c.read("proc/modules")
	if err != nil {
		return nil, fmt.Errorf("failed to read kernel modules: %w", err)
	}

	loaded := make(map[string]any)
	for _, line := range strings.Split(content, "\n") {
		// Module name is the first field.
		if fields := strings.Fields(line); len(fields) > 0 {
			loaded[fields[0]] = true
		}
	}
	return loaded, nil
}

// sysctls walks /proc/sys, skipping the net subtree, and returns
// parameters keyed by their dotted sysctl name.
func (c *Collector) sysctls(ctx context.Context) (map[string]any, error) {
	root := c.path("proc/sys")
	params := make(map[string]any)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrPermission) {
				return nil
			}
			return fmt.Errorf("failed to walk directory %s: %w", path, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// Skip symlinks to prevent directory traversal
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil || strings.HasPrefix(rel, "..") {
			return fmt.Errorf("path traversal detected: %s", path)
		}
		if d.IsDir() {
			if rel == "net" {
				return filepath.SkipDir
			}
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			// Some proc files are write-only or restricted
			return nil
		}

		params[strings.ReplaceAll(filepath.ToSlash(rel), "/", ".")] = strings.TrimSpace(string(content))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to collect sysctl parameters: %w", err)
	}
	return attribute.FilterOut(params, c.sysctlOmit), nil
}
