// Package network collects network interface facts, including each
// interface's neighbor (ARP) cache.
//
// Facts are written under:
//
//	network.interfaces.<device>.arp.<ip>   = <mac>
//	network.interfaces.<device>.mac        = <hardware address>
//	network.interfaces.<device>.mtu        = <mtu>
//	network.interfaces.<device>.flags      = [up, broadcast, ...]
//	network.interfaces.<device>.addresses  = [cidr, ...]
//
// Cloud provider probes use the ARP entries as a cheap signature check
// before touching the network.
package network

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"

	netutils "k8s.io/utils/net"

	"github.com/NVIDIA/cns-facts/pkg/attribute"
	"github.com/NVIDIA/cns-facts/pkg/plugin"
)

// Name is the plugin name.
const Name = "network"

// DefaultARPPath is the kernel neighbor table.
const DefaultARPPath = "/proc/net/arp"

const (
	maxARPSize = 1 << 20
	// Incomplete neighbor entries carry the zero address.
	incompleteMAC = "00:00:00:00:00:00"
)

// InterfacesFunc lists the host's network interfaces.
type InterfacesFunc func() ([]net.Interface, error)

// Collector gathers interface and neighbor facts.
type Collector struct {
	arpPath    string
	interfaces InterfacesFunc
}

// Option configures a Collector.
type Option func(*Collector)

// WithARPPath overrides the neighbor table location.
func WithARPPath(path string) Option {
	return func(c *Collector) {
		if path != "" {
			c.arpPath = path
		}
	}
}

// WithInterfaces overrides interface enumeration. A nil func disables it.
func WithInterfaces(fn InterfacesFunc) Option {
	return func(c *Collector) {
		c.interfaces = fn
	}
}

// New creates the network plugin.
func New(opts ...Option) *Collector {
	c := &Collector{
		arpPath:    DefaultARPPath,
		interfaces: net.Interfaces,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements plugin.Plugin.
func (c *Collector) Name() string { return Name }

// Collect implements plugin.Plugin.
func (c *Collector) Collect(ctx context.Context, env *plugin.Env) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ifaces := make(map[string]any)

	if c.interfaces != nil {
		list, err := c.interfaces()
		if err != nil {
			return fmt.Errorf("failed to list network interfaces: %w", err)
		}
		for _, iface := range list {
			ifaces[iface.Name] = describe(iface)
		}
	}

	neighbors, err := c.readARP()
	if err != nil {
		// Hosts without procfs still report interfaces.
		env.Logger().Debug("neighbor table unavailable",
			slog.String("path", c.arpPath),
			slog.String("error", err.Error()))
	}
	for dev, arp := range neighbors {
		entry, ok := ifaces[dev].(map[string]any)
		if !ok {
			entry = make(map[string]any)
			ifaces[dev] = entry
		}
		entry["arp"] = arp
	}

	return env.Attrs().Merge(attribute.P(Name, "interfaces"), ifaces)
}

func (c *Collector) readARP() (map[string]map[string]any, error) {
	f, err := os.Open(c.arpPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open neighbor table: %w", err)
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, maxARPSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read neighbor table: %w", err)
	}
	return ParseARP(content), nil
}

// ParseARP parses the /proc/net/arp format into device -> ip -> mac.
// Malformed and incomplete entries are skipped.
func ParseARP(content []byte) map[string]map[string]any {
	out := make(map[string]map[string]any)
	sc := bufio.NewScanner(bytes.NewReader(content))

	header := true
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if header {
			header = false
			if strings.HasPrefix(line, "IP address") {
				continue
			}
		}
		fields := strings.Fields(line)
		if len(fields) < 6 {
			continue
		}

		ip := netutils.ParseIPSloppy(fields[0])
		if ip == nil {
			continue
		}
		mac := strings.ToLower(fields[3])
		if mac == incompleteMAC {
			continue
		}
		if _, err := net.ParseMAC(mac); err != nil {
			continue
		}

		dev := fields[5]
		if out[dev] == nil {
			out[dev] = make(map[string]any)
		}
		out[dev][ip.String()] = mac
	}
	return out
}

func describe(iface net.Interface) map[string]any {
	entry := map[string]any{
		"mtu":   iface.MTU,
		"flags": strings.Split(iface.Flags.String(), "|"),
	}
	if len(iface.HardwareAddr) > 0 {
		entry["mac"] = iface.HardwareAddr.String()
	}
	if iface.Flags == 0 {
		entry["flags"] = []string{}
	}

	addrs, err := iface.Addrs()
	if err == nil && len(addrs) > 0 {
		list := make([]string, 0, len(addrs))
		for _, a := range addrs {
			list = append(list, a.String())
		}
		entry["addresses"] = list
	}
	return entry
}
