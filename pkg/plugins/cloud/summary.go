package cloud

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/NVIDIA/cns-facts/pkg/attribute"
	"github.com/NVIDIA/cns-facts/pkg/plugin"
)

// SummaryName is the name of the cloud summary plugin.
const SummaryName = "cloud"

// summaryKeys are copied from the provider metadata when present.
var summaryKeys = []string{
	"public_ipv4",
	"local_ipv4",
	"public_hostname",
	"local_hostname",
}

// Summary writes provider independent facts for the first detected
// provider.
type Summary struct {
	providers []string
}

// NewSummary creates the cloud summary plugin consulting providers in order.
func NewSummary(providers ...string) *Summary {
	if len(providers) == 0 {
		providers = []string{EC2.Name, Eucalyptus.Name}
	}
	return &Summary{providers: providers}
}

// Name implements plugin.Plugin.
func (s *Summary) Name() string { return SummaryName }

// Collect implements plugin.Plugin.
func (s *Summary) Collect(ctx context.Context, env *plugin.Env) error {
	for _, name := range s.providers {
		if err := env.Require(ctx, name); err != nil {
			if plugin.Unavailable(err) {
				continue
			}
			return err
		}

		meta, ok := env.Attrs().GetMap(attribute.P(name))
		if !ok {
			continue
		}

		summary := map[string]any{"provider": name}
		for _, key := range summaryKeys {
			if v, ok := meta[key]; ok {
				summary[key] = v
			}
		}
		if err := env.Attrs().Merge(attribute.P(SummaryName), summary); err != nil {
			return fmt.Errorf("failed to store cloud summary: %w", err)
		}
		env.Logger().Debug("cloud summary written", slog.String("provider", name))
		return nil
	}
	return nil
}
