// Package systemd reports the state of selected systemd units over D-Bus.
package systemd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/coreos/go-systemd/v22/dbus"

	"github.com/NVIDIA/cns-facts/pkg/attribute"
	"github.com/NVIDIA/cns-facts/pkg/plugin"
)

// Name is the plugin name.
const Name = "systemd"

// DefaultServices are inspected when none are configured.
var DefaultServices = []string{
	"containerd.service",
	"docker.service",
	"kubelet.service",
}

// Conn is the subset of a systemd D-Bus connection used by the plugin.
type Conn interface {
	ListUnitsByNamesContext(ctx context.Context, units []string) ([]dbus.UnitStatus, error)
	Close()
}

// Dialer opens a systemd connection.
type Dialer func(ctx context.Context) (Conn, error)

func systemBus(ctx context.Context) (Conn, error) {
	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Collector reports unit states.
type Collector struct {
	services []string
	dial     Dialer
}

// Option configures a Collector.
type Option func(*Collector)

// WithServices sets the units to inspect.
func WithServices(units ...string) Option {
	return func(c *Collector) {
		if len(units) > 0 {
			c.services = units
		}
	}
}

// WithDialer overrides the D-Bus connection.
func WithDialer(d Dialer) Option {
	return func(c *Collector) {
		c.dial = d
	}
}

// New creates the systemd plugin.
func New(opts ...Option) *Collector {
	c := &Collector{
		services: DefaultServices,
		dial:     systemBus,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements plugin.Plugin.
func (c *Collector) Name() string { return Name }

// Collect implements plugin.Plugin. Hosts without a reachable system bus
// produce no systemd facts.
func (c *Collector) Collect(ctx context.Context, env *plugin.Env) error {
	conn, err := c.dial(ctx)
	if err != nil {
		env.Logger().Debug("systemd unavailable", slog.String("error", err.Error()))
		return nil
	}
	defer conn.Close()

	units, err := conn.ListUnitsByNamesContext(ctx, c.services)
	if err != nil {
		return fmt.Errorf("failed to list systemd units: %w", err)
	}

	services := make(map[string]any, len(units))
	for _, u := range units {
		// Units systemd has never heard of report load state "not-found".
		if u.LoadState == "not-found" {
			continue
		}
		services[strings.TrimSuffix(u.Name, ".service")] = map[string]any{
			"unit":         u.Name,
			"description":  u.Description,
			"load_state":   u.LoadState,
			"active_state": u.ActiveState,
			"sub_state":    u.SubState,
		}
	}

	return env.Attrs().Merge(attribute.P(Name, "services"), services)
}
