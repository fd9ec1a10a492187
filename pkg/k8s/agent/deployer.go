package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

type step struct {
	resource string
	run      func(context.Context) error
}

// Deploy creates the agent RBAC, reusing existing resources, and a fresh
// collection Job.
func (d *Deployer) Deploy(ctx context.Context) error {
	steps := []step{
		{"ServiceAccount", d.ensureServiceAccount},
		{"Role", d.ensureRole},
		{"RoleBinding", d.ensureRoleBinding},
		{"ClusterRole", d.ensureClusterRole},
		{"ClusterRoleBinding", d.ensureClusterRoleBinding},
		{"Job", d.ensureJob},
	}
	for _, s := range steps {
		if err := s.run(ctx); err != nil {
			return fmt.Errorf("failed to create %s: %w", s.resource, err)
		}
		slog.Debug("agent resource ready",
			slog.String("resource", s.resource),
			slog.String("namespace", d.config.Namespace))
	}
	return nil
}

// WaitForCompletion waits for the agent Job to succeed. It fails when the
// Job fails or timeout elapses.
func (d *Deployer) WaitForCompletion(ctx context.Context, timeout time.Duration) error {
	return d.waitForJobCompletion(ctx, timeout)
}

// GetFacts returns the YAML document the agent wrote to its ConfigMap.
func (d *Deployer) GetFacts(ctx context.Context) ([]byte, error) {
	return d.getFactsFromConfigMap(ctx)
}

// Cleanup removes the agent Job and, with RemoveRBAC, its RBAC resources.
// The output ConfigMap is left in place.
func (d *Deployer) Cleanup(ctx context.Context, opts CleanupOptions) error {
	steps := []step{{"Job", d.deleteJob}}
	if opts.RemoveRBAC {
		steps = append(steps,
			step{"ClusterRoleBinding", d.deleteClusterRoleBinding},
			step{"ClusterRole", d.deleteClusterRole},
			step{"RoleBinding", d.deleteRoleBinding},
			step{"Role", d.deleteRole},
			step{"ServiceAccount", d.deleteServiceAccount},
		)
	}
	for _, s := range steps {
		if err := s.run(ctx); err != nil {
			return fmt.Errorf("failed to delete %s: %w", s.resource, err)
		}
	}
	return nil
}

func ignoreAlreadyExists(err error) error {
	if apierrors.IsAlreadyExists(err) {
		return nil
	}
	return err
}

func ignoreNotFound(err error) error {
	if apierrors.IsNotFound(err) {
		return nil
	}
	return err
}
