package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/urfave/cli/v3"
	"k8s.io/client-go/kubernetes"

	"github.com/NVIDIA/cns-facts/pkg/k8s/agent"
	"github.com/NVIDIA/cns-facts/pkg/k8s/client"
	"github.com/NVIDIA/cns-facts/pkg/snapshotter"
)

func agentFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:     "deploy-agent",
			Usage:    "run the collection as a Kubernetes Job on a cluster node and read back its facts",
			Category: "Agent",
		},
		&cli.StringFlag{
			Name:     "namespace",
			Aliases:  []string{"n"},
			Value:    agent.DefaultNamespace,
			Usage:    "namespace for the agent Job, its RBAC and its ConfigMap",
			Category: "Agent",
		},
		&cli.StringFlag{
			Name:     "image",
			Value:    agent.DefaultImage,
			Usage:    "cnsfacts container image run by the agent",
			Category: "Agent",
		},
		&cli.StringSliceFlag{
			Name:     "node-selector",
			Usage:    "node selector for the agent Job as key=value (repeatable)",
			Category: "Agent",
		},
		&cli.StringSliceFlag{
			Name:     "toleration",
			Usage:    "toleration for the agent Job as key=value:effect or key:effect (repeatable)",
			Category: "Agent",
		},
		&cli.DurationFlag{
			Name:     "timeout",
			Value:    agent.DefaultTimeout,
			Usage:    "how long to wait for the agent Job",
			Category: "Agent",
		},
		&cli.BoolFlag{
			Name:     "cleanup-rbac",
			Usage:    "remove the agent RBAC resources after the run",
			Category: "Agent",
		},
	}
}

// kubeClient returns a client for --kubeconfig, or the default client.
func kubeClient(cmd *cli.Command) (kubernetes.Interface, error) {
	if kc := cmd.String("kubeconfig"); kc != "" {
		return client.BuildKubeClient(kc)
	}
	return client.GetKubeClient()
}

// agentConfig builds the agent configuration from the collect flags.
func agentConfig(cmd *cli.Command) (agent.Config, error) {
	selectors, err := agent.ParseNodeSelectors(cmd.StringSlice("node-selector"))
	if err != nil {
		return agent.Config{}, err
	}
	tolerations, err := agent.ParseTolerations(cmd.StringSlice("toleration"))
	if err != nil {
		return agent.Config{}, err
	}

	ns := cmd.String("namespace")
	return agent.Config{
		Namespace:    ns,
		Image:        cmd.String("image"),
		Output:       fmt.Sprintf("cm://%s/%s-facts", ns, agent.DefaultName),
		Plugins:      cmd.StringSlice("plugin"),
		NodeSelector: selectors,
		Tolerations:  tolerations,
		Debug:        cmd.Bool("debug"),
	}, nil
}

// collectWithAgent runs collection in a cluster Job and returns the facts
// the agent stored.
func collectWithAgent(ctx context.Context, cmd *cli.Command, kc kubernetes.Interface) (*snapshotter.Facts, error) {
	cfg, err := agentConfig(cmd)
	if err != nil {
		return nil, err
	}

	d := agent.NewDeployer(kc, cfg)
	slog.Info("deploying agent",
		slog.String("namespace", cfg.Namespace),
		slog.String("image", cfg.Image))

	if err := d.Deploy(ctx); err != nil {
		return nil, fmt.Errorf("failed to deploy agent: %w", err)
	}
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := d.Cleanup(cleanupCtx, agent.CleanupOptions{RemoveRBAC: cmd.Bool("cleanup-rbac")}); err != nil {
			slog.Warn("failed to clean up agent", slog.String("error", err.Error()))
		}
	}()

	if err := d.WaitForCompletion(ctx, cmd.Duration("timeout")); err != nil {
		return nil, err
	}

	data, err := d.GetFacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read agent facts: %w", err)
	}
	return snapshotter.FactsFromBytes(data)
}
