/*
Package agent runs cnsfacts collection as a Kubernetes Job on a target node.

The Job runs "cnsfacts collect" with host PID, network and IPC namespaces so
the node's facts are collected rather than the container's. The agent writes
its document to a ConfigMap, which the caller reads back with GetFacts.

# Deployment

RBAC resources (ServiceAccount, Role, RoleBinding, ClusterRole and
ClusterRoleBinding) are created once and reused. The Job is deleted and
recreated on every Deploy.

# Usage

	clientset, err := client.GetKubeClient()
	if err != nil {
		return err
	}

	d := agent.NewDeployer(clientset, agent.Config{
		Namespace:    "gpu-operator",
		Output:       "cm://gpu-operator/cnsfacts-facts",
		NodeSelector: map[string]string{"nodeGroup": "gpu"},
	})

	if err := d.Deploy(ctx); err != nil {
		return err
	}
	defer d.Cleanup(ctx, agent.CleanupOptions{})

	if err := d.WaitForCompletion(ctx, 5*time.Minute); err != nil {
		return err
	}

	data, err := d.GetFacts(ctx)
*/
package agent
