package packages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/cns-facts/pkg/attribute"
	"github.com/NVIDIA/cns-facts/pkg/inspect"
	"github.com/NVIDIA/cns-facts/pkg/plugin"
)

func versions(m map[string]string) inspect.Source {
	return inspect.SourceFunc(func(_ context.Context, name string) (string, bool) {
		v, ok := m[name]
		return v, ok
	})
}

func collect(t *testing.T, c *Collector) *attribute.Store {
	t.Helper()
	store := attribute.NewStore()
	e := plugin.NewEngine(plugin.NewRegistry(c), store)
	require.NoError(t, e.Run(context.Background()))
	require.Equal(t, plugin.StateCompleted, e.State(Name))
	return store
}

func TestCollect_Present(t *testing.T) {
	store := collect(t, New(
		WithLibraries("chef"),
		WithLibrarySource(versions(map[string]string{"chef": "v0.10.8"})),
		WithTools("containerd"),
		WithToolSource(versions(map[string]string{"containerd": "1.7.2"})),
	))

	v, ok := store.GetString(attribute.P("packages", "chef", "version"))
	require.True(t, ok)
	assert.Equal(t, "0.10.8", v)

	src, ok := store.GetString(attribute.P("packages", "chef", "source"))
	require.True(t, ok)
	assert.Equal(t, "buildinfo", src)

	v, ok = store.GetString(attribute.P("packages", "containerd", "version"))
	require.True(t, ok)
	assert.Equal(t, "1.7.2", v)
}

func TestCollect_Absent(t *testing.T) {
	store := collect(t, New(
		WithLibraries("chef"),
		WithLibrarySource(versions(nil)),
		WithTools(),
	))

	assert.False(t, store.Has(attribute.P("packages", "chef", "version")))
	assert.False(t, store.Has(attribute.P("packages")))
}

func TestCollect_PartialPresence(t *testing.T) {
	store := collect(t, New(
		WithLibraries("chef", "ohai"),
		WithLibrarySource(versions(map[string]string{"ohai": "0.6.12"})),
		WithTools(),
	))

	assert.False(t, store.Has(attribute.P("packages", "chef")))
	assert.True(t, store.Has(attribute.P("packages", "ohai", "version")))
}

func TestCollect_ModulePathKey(t *testing.T) {
	const module = "github.com/coreos/go-systemd/v22"
	store := collect(t, New(
		WithLibraries(module),
		WithLibrarySource(versions(map[string]string{module: "v22.6.0"})),
		WithTools("python3.12"),
		WithToolSource(versions(map[string]string{"python3.12": "3.12.3"})),
	))

	assert.Equal(t, []string{"github_com_coreos_go-systemd_v22", "python3_12"}, store.Keys(attribute.P("packages")))

	v, ok := store.GetString(attribute.P("packages", "github_com_coreos_go-systemd_v22", "version"))
	require.True(t, ok)
	assert.Equal(t, "22.6.0", v)

	name, ok := store.GetString(attribute.P("packages", "github_com_coreos_go-systemd_v22", "name"))
	require.True(t, ok)
	assert.Equal(t, module, name)
}

func TestKey(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"go", "go"},
		{"nvidia-smi", "nvidia-smi"},
		{"github.com/foo/bar", "github_com_foo_bar"},
		{"k8s.io/client-go", "k8s_io_client-go"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Key(tt.in), tt.in)
	}
}
