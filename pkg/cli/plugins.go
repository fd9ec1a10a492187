package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/cns-facts/pkg/plugin"
	"github.com/NVIDIA/cns-facts/pkg/plugins"
	"github.com/NVIDIA/cns-facts/pkg/serializer"
	"github.com/NVIDIA/cns-facts/pkg/snapshotter"
)

// PluginStatus describes a registered plugin.
type PluginStatus struct {
	Name    string `json:"name" yaml:"name"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

func pluginsCmd() *cli.Command {
	return &cli.Command{
		Name:                  "plugins",
		EnableShellCompletion: true,
		Usage:                 "List plugins or report their outcome",
		ArgsUsage:             "[plugin ...]",
		Description: `Lists the built-in plugins and whether configuration enables them.

With --run the named plugins (default: all enabled) are executed and a
per-plugin report is written instead: state, duration, the plugins it
required, and the failure if any.

# Examples

  cnsfacts plugins
  cnsfacts plugins --run cloud
  cnsfacts plugins --run -t json`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "run",
				Usage: "run the plugins and report their outcome",
			},
			hintsFlag(),
			disableFlag(),
			configFlag(),
			kubeconfigFlag(),
			outputFlag(),
			formatFlag(serializer.FormatTable),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			names := cmd.Args().Slice()

			var data any
			if cmd.Bool("run") {
				n := &snapshotter.NodeSnapshotter{Version: version, Config: cfg, Plugins: names}
				facts, err := n.Collect(ctx)
				if facts == nil {
					return err
				}
				data = facts.Plugins
			} else {
				statuses, err := listPlugins(plugins.NewDefaultFactory(cfg), cfg.Plugins.Disabled, names)
				if err != nil {
					return err
				}
				data = statuses
			}

			ser, closeFn, err := newSerializer(cmd)
			if err != nil {
				return err
			}
			defer closeFn()
			return ser.Serialize(ctx, data)
		},
	}
}

// listPlugins reports every registered plugin, or only the named ones.
func listPlugins(f plugins.Factory, disabled, names []string) ([]PluginStatus, error) {
	all := plugins.NewRegistry(f)
	if len(names) == 0 {
		names = all.List()
	}

	out := make([]PluginStatus, 0, len(names))
	for _, n := range names {
		if _, ok := all.Get(n); !ok {
			return nil, unknownPluginError(all, n)
		}
		out = append(out, PluginStatus{Name: n, Enabled: !slices.Contains(disabled, n)})
	}
	return out, nil
}

func unknownPluginError(r *plugin.Registry, name string) error {
	if s, ok := r.Suggest(name); ok {
		return fmt.Errorf("unknown plugin %q, did you mean %q?", name, s)
	}
	return fmt.Errorf("unknown plugin %q, available plugins: %v", name, r.List())
}
