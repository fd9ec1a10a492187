package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/cns-facts/pkg/serializer"
	"github.com/NVIDIA/cns-facts/pkg/snapshotter"
)

func hintsFlag() cli.Flag {
	return &cli.StringSliceFlag{
		Name:  "hints",
		Usage: "directory searched for <provider>.json hint files (repeatable, overrides config)",
	}
}

func disableFlag() cli.Flag {
	return &cli.StringSliceFlag{
		Name:  "disable",
		Usage: "plugin to disable for this run (repeatable)",
	}
}

func collectCmd() *cli.Command {
	return &cli.Command{
		Name:                  "collect",
		EnableShellCompletion: true,
		Usage:                 "Collect facts about this host",
		ArgsUsage:             "[attribute.path ...]",
		Description: `Runs the fact plugins against a fresh attribute store and writes the
resulting document. Plugins pull in the plugins they depend on, so
--plugin cloud also runs the ec2 and network plugins.

Positional arguments select dotted attribute paths to export; without
them every collected fact is written.

# Examples

Collect everything as YAML:
  cnsfacts collect

Collect only cloud facts as JSON:
  cnsfacts collect --plugin cloud --format json

Print selected attributes as a table:
  cnsfacts collect -t table kernel.release cloud.public_ipv4

Store facts in a ConfigMap:
  cnsfacts collect -o cm://gpu-operator/node-facts

Filter a previously written document:
  cnsfacts collect --from facts.yaml packages

Collect on a GPU node through a Kubernetes Job:
  cnsfacts collect --deploy-agent --namespace gpu-operator \
    --node-selector nodeGroup=gpu --toleration nvidia.com/gpu:NoSchedule`,
		Flags: append([]cli.Flag{
			&cli.StringSliceFlag{
				Name:    "plugin",
				Aliases: []string{"p"},
				Usage:   "plugin to run (repeatable, default: all enabled plugins)",
			},
			&cli.StringFlag{
				Name:  "from",
				Usage: "read facts from a previously written JSON or YAML file instead of collecting",
			},
			hintsFlag(),
			disableFlag(),
			configFlag(),
			kubeconfigFlag(),
			outputFlag(),
			formatFlag(serializer.FormatYAML),
		}, agentFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			attrs := cmd.Args().Slice()

			if cmd.Bool("deploy-agent") && cmd.String("from") != "" {
				return fmt.Errorf("--deploy-agent and --from are mutually exclusive")
			}

			if cmd.Bool("deploy-agent") {
				kc, err := kubeClient(cmd)
				if err != nil {
					return fmt.Errorf("failed to build kubernetes client: %w", err)
				}
				facts, err := collectWithAgent(ctx, cmd, kc)
				if err != nil {
					return err
				}
				ser, closeFn, err := newSerializer(cmd)
				if err != nil {
					return err
				}
				defer closeFn()
				return ser.Serialize(ctx, facts.Select(attrs...))
			}

			if from := cmd.String("from"); from != "" {
				facts, err := snapshotter.FactsFromFile(from)
				if err != nil {
					return err
				}
				ser, closeFn, err := newSerializer(cmd)
				if err != nil {
					return err
				}
				defer closeFn()
				return ser.Serialize(ctx, facts.Select(attrs...))
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ser, closeFn, err := newSerializer(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			n := &snapshotter.NodeSnapshotter{
				Version:    version,
				Config:     cfg,
				Serializer: ser,
				Plugins:    cmd.StringSlice("plugin"),
				Attributes: attrs,
			}

			slog.Debug("collecting facts",
				slog.Any("plugins", n.Plugins),
				slog.Any("attributes", attrs))

			if err := n.Measure(ctx); err != nil {
				return fmt.Errorf("fact collection failed: %w", err)
			}
			return nil
		},
	}
}
