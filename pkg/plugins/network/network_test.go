package network

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/cns-facts/pkg/attribute"
	"github.com/NVIDIA/cns-facts/pkg/plugin"
)

const arpTable = `IP address       HW type     Flags       HW address            Mask     Device
10.0.0.1         0x1         0x2         FE:FF:FF:FF:FF:FF     *        eth0
10.0.0.9         0x1         0x0         00:00:00:00:00:00     *        eth0
172.17.0.2       0x1         0x2         02:42:ac:11:00:02     *        docker0
not-an-ip        0x1         0x2         02:42:ac:11:00:03     *        docker0
10.0.0.7         0x1         0x2         zz:zz                 *        eth0
short line
`

func TestParseARP(t *testing.T) {
	got := ParseARP([]byte(arpTable))

	assert.Equal(t, map[string]map[string]any{
		"eth0":    {"10.0.0.1": "fe:ff:ff:ff:ff:ff"},
		"docker0": {"172.17.0.2": "02:42:ac:11:00:02"},
	}, got)
}

func TestParseARP_Empty(t *testing.T) {
	assert.Empty(t, ParseARP(nil))
	assert.Empty(t, ParseARP([]byte("IP address HW type Flags HW address Mask Device\n")))
}

func writeARP(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "arp")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func run(t *testing.T, p plugin.Plugin) (*plugin.Engine, *attribute.Store) {
	t.Helper()
	store := attribute.NewStore()
	e := plugin.NewEngine(plugin.NewRegistry(p), store)
	require.NoError(t, e.Run(context.Background()))
	return e, store
}

func TestCollect(t *testing.T) {
	p := New(
		WithARPPath(writeARP(t, arpTable)),
		WithInterfaces(func() ([]net.Interface, error) {
			return []net.Interface{{
				Name:         "eth0",
				MTU:          9001,
				Flags:        net.FlagUp | net.FlagBroadcast,
				HardwareAddr: net.HardwareAddr{0x0a, 0x1b, 0x2c, 0x3d, 0x4e, 0x5f},
			}}, nil
		}),
	)
	e, store := run(t, p)
	assert.Equal(t, plugin.StateCompleted, e.State(Name))

	mac, ok := store.GetString(attribute.P("network", "interfaces", "eth0", "arp", "10.0.0.1"))
	require.True(t, ok)
	assert.Equal(t, "fe:ff:ff:ff:ff:ff", mac)

	hw, ok := store.GetString(attribute.P("network", "interfaces", "eth0", "mac"))
	require.True(t, ok)
	assert.Equal(t, "0a:1b:2c:3d:4e:5f", hw)

	mtu, ok := store.Get(attribute.P("network", "interfaces", "eth0", "mtu"))
	require.True(t, ok)
	assert.Equal(t, 9001, mtu)

	flags, ok := store.Get(attribute.P("network", "interfaces", "eth0", "flags"))
	require.True(t, ok)
	assert.Equal(t, []any{"up", "broadcast"}, flags)

	assert.True(t, store.Has(attribute.P("network", "interfaces", "docker0", "arp", "172.17.0.2")))
}

func TestCollect_MissingARP(t *testing.T) {
	p := New(
		WithARPPath(filepath.Join(t.TempDir(), "absent")),
		WithInterfaces(nil),
	)
	e, store := run(t, p)

	assert.Equal(t, plugin.StateCompleted, e.State(Name))
	m, ok := store.GetMap(attribute.P("network", "interfaces"))
	require.True(t, ok)
	assert.Empty(t, m)
}

func TestCollect_InterfaceError(t *testing.T) {
	p := New(
		WithARPPath(writeARP(t, arpTable)),
		WithInterfaces(func() ([]net.Interface, error) {
			return nil, errors.New("netlink denied")
		}),
	)
	e, store := run(t, p)

	assert.Equal(t, plugin.StateFailed, e.State(Name))
	assert.False(t, store.Has(attribute.P("network")))
}
