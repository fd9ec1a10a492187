package cloud

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/NVIDIA/cns-facts/pkg/attribute"
	cnserrors "github.com/NVIDIA/cns-facts/pkg/errors"
	"github.com/NVIDIA/cns-facts/pkg/hints"
	"github.com/NVIDIA/cns-facts/pkg/plugin"
	"github.com/NVIDIA/cns-facts/pkg/plugins/network"
	"github.com/NVIDIA/cns-facts/pkg/transport"
)

// Probe is the plugin detecting a single Provider.
type Probe struct {
	provider  Provider
	transport transport.Transport
	hints     *hints.Resolver
	timeout   time.Duration
}

// Option configures a Probe.
type Option func(*Probe)

// WithTimeout overrides the reachability probe timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Probe) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithAddress overrides the address dialed by the reachability probe.
func WithAddress(addr string) Option {
	return func(p *Probe) {
		if addr != "" {
			p.provider.Address = addr
		}
	}
}

// NewProbe creates a probe plugin for provider.
func NewProbe(provider Provider, t transport.Transport, r *hints.Resolver, opts ...Option) *Probe {
	if r == nil {
		r = hints.NewResolver()
	}
	p := &Probe{
		provider:  provider,
		transport: t,
		hints:     r,
		timeout:   DefaultProbeTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewEC2 creates the ec2 plugin.
func NewEC2(t transport.Transport, r *hints.Resolver, opts ...Option) *Probe {
	return NewProbe(EC2, t, r, opts...)
}

// NewEucalyptus creates the eucalyptus plugin.
func NewEucalyptus(t transport.Transport, r *hints.Resolver, opts ...Option) *Probe {
	return NewProbe(Eucalyptus, t, r, opts...)
}

// Name implements plugin.Plugin.
func (p *Probe) Name() string { return p.provider.Name }

// Collect implements plugin.Plugin. A provider that is not detected leaves
// the store untouched and is not an error.
func (p *Probe) Collect(ctx context.Context, env *plugin.Env) error {
	log := env.Logger()

	decision, hint, err := p.hints.Classify(p.provider.Name, p.provider.Exclusive...)
	if err != nil {
		probeOutcomeTotal.WithLabelValues(p.provider.Name, outcomeFailed).Inc()
		return err
	}

	switch decision {
	case hints.Other:
		log.Debug("exclusive provider hinted", slog.String("hint", hint.Path))
		probeOutcomeTotal.WithLabelValues(p.provider.Name, outcomeAbsent).Inc()
		return nil
	case hints.Self:
		log.Debug("provider hinted", slog.String("hint", hint.Path))
	default:
		detected, err := p.looksLike(ctx, env)
		if err != nil {
			return err
		}
		if !detected {
			probeOutcomeTotal.WithLabelValues(p.provider.Name, outcomeAbsent).Inc()
			return nil
		}
		if !p.transport.Probe(ctx, p.provider.Address, p.timeout) {
			log.Debug("metadata endpoint unreachable",
				slog.String("address", p.provider.Address),
				slog.Duration("timeout", p.timeout))
			probeOutcomeTotal.WithLabelValues(p.provider.Name, outcomeAbsent).Inc()
			return nil
		}
	}

	tree, err := newFetcher(p.transport).directory(ctx, p.provider.MetadataRoot)
	if err != nil {
		probeOutcomeTotal.WithLabelValues(p.provider.Name, outcomeFailed).Inc()
		return cnserrors.WrapWithContext(cnserrors.ErrCodeMetadataFetchFailed,
			fmt.Sprintf("failed to fetch %s metadata", p.provider.Name), err,
			map[string]any{"provider": p.provider.Name})
	}

	if data, ok := p.userData(ctx); ok {
		tree[UserDataKey] = data
	}

	if err := env.Attrs().Merge(attribute.P(p.provider.Name), tree); err != nil {
		return fmt.Errorf("failed to store %s metadata: %w", p.provider.Name, err)
	}

	probeOutcomeTotal.WithLabelValues(p.provider.Name, outcomeDetected).Inc()
	log.Info("cloud provider detected",
		slog.String("provider", p.provider.Name),
		slog.Int("keys", len(tree)))
	return nil
}

// looksLike scans the neighbor cache for a provider signature. An
// unavailable network plugin counts as no match.
func (p *Probe) looksLike(ctx context.Context, env *plugin.Env) (bool, error) {
	if err := env.Require(ctx, network.Name); err != nil {
		if plugin.Unavailable(err) {
			return false, nil
		}
		return false, err
	}

	ifacesPath := attribute.P(network.Name, "interfaces")
	for _, dev := range env.Attrs().Keys(ifacesPath) {
		arp, ok := env.Attrs().GetMap(ifacesPath.Child(dev, "arp"))
		if !ok {
			continue
		}
		for _, mac := range arp {
			if s, ok := mac.(string); ok && p.provider.Matches(s) {
				return true, nil
			}
		}
	}
	return false, nil
}

func (p *Probe) userData(ctx context.Context) (string, bool) {
	if p.provider.UserDataPath == "" {
		return "", false
	}
	body, status, err := p.transport.Get(ctx, p.provider.UserDataPath)
	if err != nil || status != 200 {
		return "", false
	}
	return string(body), true
}
