// Package plugins assembles the built-in plugins from configuration.
package plugins

import (
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/NVIDIA/cns-facts/pkg/config"
	"github.com/NVIDIA/cns-facts/pkg/hints"
	"github.com/NVIDIA/cns-facts/pkg/plugin"
	"github.com/NVIDIA/cns-facts/pkg/plugins/cloud"
	"github.com/NVIDIA/cns-facts/pkg/plugins/kernel"
	"github.com/NVIDIA/cns-facts/pkg/plugins/kubernetes"
	"github.com/NVIDIA/cns-facts/pkg/plugins/network"
	"github.com/NVIDIA/cns-facts/pkg/plugins/packages"
	"github.com/NVIDIA/cns-facts/pkg/plugins/systemd"
	"github.com/NVIDIA/cns-facts/pkg/transport"
)

const metadataBurst = 10

// Factory creates plugins with their dependencies.
// This interface enables dependency injection for testing.
type Factory interface {
	CreateNetworkPlugin() plugin.Plugin
	CreateEC2Plugin() plugin.Plugin
	CreateEucalyptusPlugin() plugin.Plugin
	CreateCloudPlugin() plugin.Plugin
	CreatePackagesPlugin() plugin.Plugin
	CreateKernelPlugin() plugin.Plugin
	CreateKubernetesPlugin() plugin.Plugin
	CreateSystemDPlugin() plugin.Plugin
}

// DefaultFactory creates plugins with production dependencies.
type DefaultFactory struct {
	Config    *config.Config
	Transport transport.Transport
	Hints     *hints.Resolver

	// MetadataAddress is dialed by the cloud reachability probes. It names
	// the same host as Config.Cloud.MetadataURL.
	MetadataAddress string
}

// NewDefaultFactory creates a factory from cfg. A nil cfg uses defaults.
// The metadata transport and hint resolver are shared by all cloud probes.
func NewDefaultFactory(cfg *config.Config) *DefaultFactory {
	if cfg == nil {
		cfg = config.Default()
	}
	addr, err := cloud.AddressFromURL(cfg.Cloud.MetadataURL)
	if err != nil {
		slog.Warn("using default metadata address",
			slog.String("address", cloud.MetadataAddress),
			slog.String("error", err.Error()))
		addr = cloud.MetadataAddress
	}
	t := transport.NewHTTP(cfg.Cloud.MetadataURL,
		transport.WithRateLimit(rate.Limit(cfg.Cloud.RequestsPerSecond), metadataBurst))
	return &DefaultFactory{
		Config:          cfg,
		Transport:       t,
		Hints:           hints.NewResolver(cfg.Hints.Paths...),
		MetadataAddress: addr,
	}
}

func (f *DefaultFactory) probeOptions() []cloud.Option {
	return []cloud.Option{
		cloud.WithTimeout(f.Config.Cloud.ProbeTimeout),
		cloud.WithAddress(f.MetadataAddress),
	}
}

// CreateNetworkPlugin creates the network plugin.
func (f *DefaultFactory) CreateNetworkPlugin() plugin.Plugin {
	return network.New(network.WithARPPath(f.Config.Network.ARPPath))
}

// CreateEC2Plugin creates the EC2 probe.
func (f *DefaultFactory) CreateEC2Plugin() plugin.Plugin {
	return cloud.NewEC2(f.Transport, f.Hints, f.probeOptions()...)
}

// CreateEucalyptusPlugin creates the Eucalyptus probe.
func (f *DefaultFactory) CreateEucalyptusPlugin() plugin.Plugin {
	return cloud.NewEucalyptus(f.Transport, f.Hints, f.probeOptions()...)
}

// CreateCloudPlugin creates the cloud summary plugin.
func (f *DefaultFactory) CreateCloudPlugin() plugin.Plugin {
	return cloud.NewSummary(cloud.EC2.Name, cloud.Eucalyptus.Name)
}

// CreatePackagesPlugin creates the package version plugin.
func (f *DefaultFactory) CreatePackagesPlugin() plugin.Plugin {
	return packages.New(
		packages.WithLibraries(f.Config.Packages.Libraries...),
		packages.WithTools(f.Config.Packages.Tools...),
	)
}

// CreateKernelPlugin creates the kernel plugin.
func (f *DefaultFactory) CreateKernelPlugin() plugin.Plugin {
	return kernel.New(
		kernel.WithRoot(f.Config.Kernel.Root),
		kernel.WithSysctl(f.Config.Kernel.Sysctl),
	)
}

// CreateKubernetesPlugin creates the Kubernetes plugin.
func (f *DefaultFactory) CreateKubernetesPlugin() plugin.Plugin {
	return kubernetes.New(
		kubernetes.WithKubeconfig(f.Config.Kubernetes.Kubeconfig),
		kubernetes.WithTimeout(f.Config.Kubernetes.Timeout),
		kubernetes.WithNodeName(f.Config.Kubernetes.NodeName),
	)
}

// CreateSystemDPlugin creates the systemd plugin.
func (f *DefaultFactory) CreateSystemDPlugin() plugin.Plugin {
	return systemd.New(systemd.WithServices(f.Config.Systemd.Services...))
}

// NewRegistry registers every plugin the factory creates, then disables
// the named plugins.
func NewRegistry(f Factory, disabled ...string) *plugin.Registry {
	r := plugin.NewRegistry(
		f.CreateNetworkPlugin(),
		f.CreateEC2Plugin(),
		f.CreateEucalyptusPlugin(),
		f.CreateCloudPlugin(),
		f.CreatePackagesPlugin(),
		f.CreateKernelPlugin(),
		f.CreateKubernetesPlugin(),
		f.CreateSystemDPlugin(),
	)
	r.Disable(disabled...)
	return r
}
