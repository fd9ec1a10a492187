package agent

import (
	"time"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/kubernetes"
)

const (
	// DefaultNamespace is where agent resources are created.
	DefaultNamespace = "default"

	// DefaultName names the ServiceAccount, Role, RoleBinding and Job.
	DefaultName = "cnsfacts"

	// DefaultImage is the container image the Job runs.
	DefaultImage = "ghcr.io/nvidia/cnsfacts:latest"

	// DefaultTimeout bounds WaitForCompletion in the CLI.
	DefaultTimeout = 5 * time.Minute

	clusterRoleName     = "cnsfacts-node-reader"
	defaultPollInterval = 2 * time.Second
	managedByLabel      = "app.kubernetes.io/managed-by"
	nameLabel           = "app.kubernetes.io/name"
)

// Config describes the agent Job.
type Config struct {
	// Namespace holds the Job, its RBAC and the output ConfigMap.
	Namespace string

	// ServiceAccountName is used for the ServiceAccount, Role and RoleBinding.
	ServiceAccountName string

	// JobName is the name of the collection Job.
	JobName string

	// Image is the cnsfacts container image.
	Image string

	// Output is the ConfigMap URI (cm://namespace/name) the agent writes to.
	Output string

	// Plugins limits the run to the named plugins.
	Plugins []string

	// NodeSelector selects the node the Job runs on.
	NodeSelector map[string]string

	// Tolerations let the Job schedule onto tainted nodes.
	Tolerations []corev1.Toleration

	// Debug enables debug logging in the agent.
	Debug bool
}

// CleanupOptions controls what Cleanup removes.
type CleanupOptions struct {
	// RemoveRBAC also deletes the ServiceAccount, roles and bindings.
	RemoveRBAC bool
}

// Deployer manages the agent Job and its RBAC.
type Deployer struct {
	clientset    kubernetes.Interface
	config       Config
	pollInterval time.Duration
}

// NewDeployer creates a Deployer. Empty names fall back to DefaultName.
func NewDeployer(clientset kubernetes.Interface, config Config) *Deployer {
	if config.Namespace == "" {
		config.Namespace = DefaultNamespace
	}
	if config.ServiceAccountName == "" {
		config.ServiceAccountName = DefaultName
	}
	if config.JobName == "" {
		config.JobName = DefaultName
	}
	if config.Image == "" {
		config.Image = DefaultImage
	}
	if config.Output == "" {
		config.Output = "cm://" + config.Namespace + "/" + config.JobName + "-facts"
	}
	return &Deployer{
		clientset:    clientset,
		config:       config,
		pollInterval: defaultPollInterval,
	}
}

func (d *Deployer) labels() map[string]string {
	return map[string]string{
		managedByLabel: DefaultName,
		nameLabel:      d.config.JobName,
	}
}
