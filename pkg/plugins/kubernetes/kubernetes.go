// Package kubernetes collects facts about the Kubernetes cluster the host
// belongs to: API server version, this host's Node object, and the
// container images scheduled onto it.
//
// Hosts without a kubeconfig that are not running in a cluster produce
// no kubernetes facts.
package kubernetes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/fields"
	"k8s.io/apimachinery/pkg/version"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/kubernetes"

	"github.com/NVIDIA/cns-facts/pkg/attribute"
	"github.com/NVIDIA/cns-facts/pkg/k8s/client"
	"github.com/NVIDIA/cns-facts/pkg/plugin"
)

// Name is the plugin name.
const Name = "kubernetes"

// NodeNameEnv names the environment variable holding the node name,
// typically set through the downward API.
const NodeNameEnv = "NODE_NAME"

// DefaultTimeout bounds all API calls of one Collect.
const DefaultTimeout = 30 * time.Second

// Collector gathers cluster facts.
type Collector struct {
	client     kubernetes.Interface
	kubeconfig string
	nodeName   string
	timeout    time.Duration
}

// Option configures a Collector.
type Option func(*Collector)

// WithClient uses an existing clientset.
func WithClient(c kubernetes.Interface) Option {
	return func(k *Collector) {
		k.client = c
	}
}

// WithKubeconfig sets the kubeconfig path.
func WithKubeconfig(path string) Option {
	return func(k *Collector) {
		k.kubeconfig = path
	}
}

// WithNodeName sets the Node object describing this host.
func WithNodeName(name string) Option {
	return func(k *Collector) {
		k.nodeName = name
	}
}

// WithTimeout bounds the API calls of one Collect. Non-positive values
// keep DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(k *Collector) {
		if d > 0 {
			k.timeout = d
		}
	}
}

// New creates the kubernetes plugin.
func New(opts ...Option) *Collector {
	k := &Collector{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(k)
	}
	if k.nodeName == "" {
		k.nodeName = os.Getenv(NodeNameEnv)
	}
	if k.nodeName == "" {
		if h, err := os.Hostname(); err == nil {
			k.nodeName = h
		}
	}
	return k
}

// Name implements plugin.Plugin.
func (k *Collector) Name() string { return Name }

// Collect implements plugin.Plugin.
func (k *Collector) Collect(ctx context.Context, env *plugin.Env) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	kc := k.client
	if kc == nil {
		var err error
		kc, err = client.BuildKubeClient(k.kubeconfig)
		if errors.Is(err, client.ErrNoCluster) {
			env.Logger().Debug("no kubernetes cluster configured")
			return nil
		}
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	facts := make(map[string]any)

	server, err := collectServer(ctx, kc)
	if err != nil {
		return fmt.Errorf("failed to collect server version: %w", err)
	}
	facts["server"] = server

	if k.nodeName != "" {
		node, err := collectNode(ctx, kc, k.nodeName)
		switch {
		case apierrors.IsNotFound(err):
			env.Logger().Debug("host is not a cluster node", slog.String("node", k.nodeName))
		case err != nil:
			return fmt.Errorf("failed to collect node %s: %w", k.nodeName, err)
		default:
			facts["node"] = node

			images, err := collectImages(ctx, kc, k.nodeName)
			if err != nil {
				return fmt.Errorf("failed to collect container images: %w", err)
			}
			facts["images"] = images
		}
	}

	return env.Attrs().Merge(attribute.P(Name), facts)
}

func collectServer(ctx context.Context, kc kubernetes.Interface) (map[string]any, error) {
	v, err := serverVersion(ctx, kc.Discovery())
	if err != nil {
		return nil, err
	}

	slog.Debug("collected kubernetes version", slog.String("version", v.GitVersion))

	return map[string]any{
		"version":    v.GitVersion,
		"platform":   v.Platform,
		"go_version": v.GoVersion,
	}, nil
}

// serverVersion fetches /version with ctx. Discovery clients without a
// REST client, such as fakes, answer from memory.
func serverVersion(ctx context.Context, d discovery.DiscoveryInterface) (*version.Info, error) {
	rc := d.RESTClient()
	if rc == nil {
		return d.ServerVersion()
	}

	body, err := rc.Get().AbsPath("/version").Do(ctx).Raw()
	if err != nil {
		return nil, err
	}

	var info version.Info
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to decode server version: %w", err)
	}
	return &info, nil
}

func collectNode(ctx context.Context, kc kubernetes.Interface, name string) (map[string]any, error) {
	node, err := kc.CoreV1().Nodes().Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, err
	}

	info := node.Status.NodeInfo
	out := map[string]any{
		"name":              node.Name,
		"labels":            node.Labels,
		"kubelet_version":   info.KubeletVersion,
		"container_runtime": info.ContainerRuntimeVersion,
		"os_image":          info.OSImage,
		"architecture":      info.Architecture,
		"kernel_version":    info.KernelVersion,
	}
	if node.Spec.ProviderID != "" {
		out["provider_id"] = node.Spec.ProviderID
	}

	allocatable := make(map[string]any, len(node.Status.Allocatable))
	for res, q := range node.Status.Allocatable {
		allocatable[string(res)] = q.String()
	}
	out["allocatable"] = allocatable

	var conditions []string
	for _, c := range node.Status.Conditions {
		if c.Status == corev1.ConditionTrue {
			conditions = append(conditions, string(c.Type))
		}
	}
	sort.Strings(conditions)
	out["conditions"] = conditions

	return out, nil
}

// collectImages lists images of pods scheduled on node, mapped to the
// namespace/pod:container locations using them.
func collectImages(ctx context.Context, kc kubernetes.Interface, node string) (map[string]any, error) {
	pods, err := kc.CoreV1().Pods("").List(ctx, metav1.ListOptions{
		FieldSelector: fields.OneTermEqualSelector("spec.nodeName", node).String(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pods: %w", err)
	}

	locations := make(map[string][]string)
	record := func(image, location string) {
		if image == "" {
			return
		}
		locations[image] = append(locations[image], location)
	}

	for _, pod := range pods.Items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// Some clients ignore field selectors.
		if pod.Spec.NodeName != node {
			continue
		}

		prefix := pod.Namespace + "/" + pod.Name
		for _, c := range pod.Spec.InitContainers {
			record(c.Image, prefix+":init-"+c.Name)
		}
		for _, c := range pod.Spec.Containers {
			record(c.Image, prefix+":"+c.Name)
		}
		for _, c := range pod.Spec.EphemeralContainers {
			record(c.Image, prefix+":ephemeral-"+c.Name)
		}
	}

	images := make(map[string]any, len(locations))
	for image, locs := range locations {
		sort.Strings(locs)
		images[image] = locs
	}

	slog.Debug("collected container images", slog.Int("count", len(images)))
	return images, nil
}
