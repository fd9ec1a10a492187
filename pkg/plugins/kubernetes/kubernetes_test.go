package kubernetes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/version"
	fakediscovery "k8s.io/client-go/discovery/fake"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/fake"
	"k8s.io/client-go/rest"

	"github.com/NVIDIA/cns-facts/pkg/attribute"
	"github.com/NVIDIA/cns-facts/pkg/plugin"
)

func fakeClient(objects ...runtime.Object) *fake.Clientset {
	c := fake.NewClientset(objects...)
	c.Discovery().(*fakediscovery.FakeDiscovery).FakedServerVersion = &version.Info{
		GitVersion: "v1.33.2",
		Platform:   "linux/amd64",
		GoVersion:  "go1.24.4",
	}
	return c
}

func collect(t *testing.T, k *Collector) (*plugin.Engine, *attribute.Store) {
	t.Helper()
	store := attribute.NewStore()
	e := plugin.NewEngine(plugin.NewRegistry(k), store)
	require.NoError(t, e.Run(context.Background()))
	return e, store
}

func gpuNode() *corev1.Node {
	return &corev1.Node{
		ObjectMeta: metav1.ObjectMeta{
			Name:   "gpu-node-1",
			Labels: map[string]string{"nvidia.com/gpu.present": "true"},
		},
		Spec: corev1.NodeSpec{ProviderID: "aws:///us-east-1a/i-0123456789"},
		Status: corev1.NodeStatus{
			NodeInfo: corev1.NodeSystemInfo{
				KubeletVersion:          "v1.33.2",
				ContainerRuntimeVersion: "containerd://1.7.27",
				OSImage:                 "Ubuntu 24.04.2 LTS",
				Architecture:            "amd64",
				KernelVersion:           "6.8.0-1015-aws",
			},
			Allocatable: corev1.ResourceList{
				"nvidia.com/gpu": resource.MustParse("8"),
			},
			Conditions: []corev1.NodeCondition{
				{Type: corev1.NodeReady, Status: corev1.ConditionTrue},
				{Type: corev1.NodeDiskPressure, Status: corev1.ConditionFalse},
			},
		},
	}
}

func pod(name, node string, containers ...corev1.Container) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "gpu-operator"},
		Spec:       corev1.PodSpec{NodeName: node, Containers: containers},
	}
}

func TestCollect_Node(t *testing.T) {
	client := fakeClient(
		gpuNode(),
		pod("driver", "gpu-node-1", corev1.Container{Name: "driver", Image: "nvcr.io/nvidia/driver:570"}),
		pod("elsewhere", "cpu-node-1", corev1.Container{Name: "app", Image: "busybox:1.36"}),
	)
	e, store := collect(t, New(WithClient(client), WithNodeName("gpu-node-1")))
	require.Equal(t, plugin.StateCompleted, e.State(Name))

	v, ok := store.GetString(attribute.P("kubernetes", "server", "version"))
	require.True(t, ok)
	assert.Equal(t, "v1.33.2", v)

	rt, ok := store.GetString(attribute.P("kubernetes", "node", "container_runtime"))
	require.True(t, ok)
	assert.Equal(t, "containerd://1.7.27", rt)

	gpus, ok := store.GetString(attribute.P("kubernetes", "node", "allocatable", "nvidia.com/gpu"))
	require.True(t, ok)
	assert.Equal(t, "8", gpus)

	conditions, ok := store.Get(attribute.P("kubernetes", "node", "conditions"))
	require.True(t, ok)
	assert.Equal(t, []any{"Ready"}, conditions)

	images, ok := store.GetMap(attribute.P("kubernetes", "images"))
	require.True(t, ok)
	assert.Equal(t, map[string]any{
		"nvcr.io/nvidia/driver:570": []any{"gpu-operator/driver:driver"},
	}, images)
}

func TestCollect_NotANode(t *testing.T) {
	e, store := collect(t, New(WithClient(fakeClient()), WithNodeName("laptop")))

	assert.Equal(t, plugin.StateCompleted, e.State(Name))
	assert.True(t, store.Has(attribute.P("kubernetes", "server", "version")))
	assert.False(t, store.Has(attribute.P("kubernetes", "node")))
	assert.False(t, store.Has(attribute.P("kubernetes", "images")))
}

func TestCollect_NoCluster(t *testing.T) {
	t.Setenv("KUBECONFIG", "")
	t.Setenv("HOME", t.TempDir())
	t.Setenv("KUBERNETES_SERVICE_HOST", "")
	t.Setenv("KUBERNETES_SERVICE_PORT", "")

	e, store := collect(t, New(WithNodeName("laptop")))

	assert.Equal(t, plugin.StateCompleted, e.State(Name))
	assert.False(t, store.Has(attribute.P("kubernetes")))
}

// hangingClient returns a client whose API server never answers until the
// request is abandoned.
func hangingClient(t *testing.T) kubernetes.Interface {
	t.Helper()
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	kc, err := kubernetes.NewForConfig(&rest.Config{Host: srv.URL})
	require.NoError(t, err)
	return kc
}

func TestCollect_HungAPIServer(t *testing.T) {
	t.Run("plugin timeout", func(t *testing.T) {
		k := New(WithClient(hangingClient(t)), WithNodeName("gpu-node-1"), WithTimeout(200*time.Millisecond))
		e := plugin.NewEngine(plugin.NewRegistry(k), attribute.NewStore())

		start := time.Now()
		require.NoError(t, e.Run(context.Background()))
		assert.Less(t, time.Since(start), 2*time.Second)
		assert.Equal(t, plugin.StateFailed, e.State(Name))
	})

	t.Run("caller deadline", func(t *testing.T) {
		k := New(WithClient(hangingClient(t)), WithNodeName("gpu-node-1"))
		e := plugin.NewEngine(plugin.NewRegistry(k), attribute.NewStore())

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		start := time.Now()
		err := e.Run(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), 2*time.Second)
		assert.Equal(t, plugin.StateFailed, e.State(Name))
	})
}

func TestNew_Timeout(t *testing.T) {
	assert.Equal(t, DefaultTimeout, New(WithNodeName("n")).timeout)
	assert.Equal(t, time.Second, New(WithNodeName("n"), WithTimeout(time.Second)).timeout)
	assert.Equal(t, DefaultTimeout, New(WithNodeName("n"), WithTimeout(0)).timeout)
}
