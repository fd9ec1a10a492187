package serializer

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

type document struct {
	Name    string            `json:"name" yaml:"name"`
	Count   int               `json:"count" yaml:"count"`
	Labels  map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
	Nested  *document         `json:"nested,omitempty" yaml:"nested,omitempty"`
	Ignored string            `json:"-" yaml:"-"`
}

func TestWriter_Serialize(t *testing.T) {
	doc := document{Name: "node-1", Count: 3, Labels: map[string]string{"zone": "a"}}

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewWriter(FormatJSON, &buf).Serialize(context.Background(), doc))

		var got document
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, doc, got)
		assert.Contains(t, buf.String(), "\n  \"name\"")
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewWriter(FormatYAML, &buf).Serialize(context.Background(), doc))

		var got document
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, doc, got)
	})

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewWriter(FormatTable, &buf).Serialize(context.Background(), doc))

		out := buf.String()
		assert.Contains(t, out, "FIELD")
		assert.Contains(t, out, "labels.zone")
		assert.Contains(t, out, "node-1")
		assert.Contains(t, out, "<nil>")
	})
}

func TestWriter_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	err := NewWriter(FormatJSON, &buf).Serialize(ctx, document{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, buf.Len())
}

func TestNewWriter_Defaults(t *testing.T) {
	w := NewWriter(Format("xml"), nil)
	assert.Equal(t, FormatJSON, w.Format())
	assert.Equal(t, os.Stdout, w.output)
}

func TestWriter_Close(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facts.json")
	s, err := NewFileWriterOrStdout(FormatJSON, path)
	require.NoError(t, err)

	w, ok := s.(*Writer)
	require.True(t, ok)
	require.NoError(t, w.Serialize(context.Background(), document{Name: "a"}))
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	err = w.Serialize(context.Background(), document{Name: "b"})
	require.Error(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"a"`)
}

func TestNewFileWriterOrStdout(t *testing.T) {
	for _, path := range []string{"", "-", "  "} {
		s, err := NewFileWriterOrStdout(FormatYAML, path)
		require.NoError(t, err)
		w, ok := s.(*Writer)
		require.True(t, ok)
		assert.Equal(t, os.Stdout, w.output)
	}

	_, err := NewFileWriterOrStdout(FormatJSON, filepath.Join(t.TempDir(), "missing", "out.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create output file")

	s, err := NewFileWriterOrStdout(FormatYAML, "cm://gpu-operator/node-facts")
	require.NoError(t, err)
	cm, ok := s.(*ConfigMapWriter)
	require.True(t, ok)
	assert.Equal(t, "facts.yaml", cm.DataKey())
}

func TestParseConfigMapURI(t *testing.T) {
	tests := []struct {
		uri       string
		namespace string
		name      string
		wantErr   bool
	}{
		{uri: "cm://default/facts", namespace: "default", name: "facts"},
		{uri: "cm://kube-system/node.facts", namespace: "kube-system", name: "node.facts"},
		{uri: "cm://", wantErr: true},
		{uri: "cm://namespace", wantErr: true},
		{uri: "cm:///name", wantErr: true},
		{uri: "cm://namespace/", wantErr: true},
		{uri: "cm://a/b/c", wantErr: true},
		{uri: "cm://Upper/name", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			ns, name, err := ParseConfigMapURI(tt.uri)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid ConfigMap URI")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.namespace, ns)
			assert.Equal(t, tt.name, name)
		})
	}
}

func TestConfigMapWriter(t *testing.T) {
	ctx := context.Background()
	kc := fake.NewClientset()
	w := NewConfigMapWriter(FormatJSON, "default", "facts").WithKubeClient(kc)

	require.NoError(t, w.Serialize(ctx, document{Name: "first"}))
	cm, err := kc.CoreV1().ConfigMaps("default").Get(ctx, "facts", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Contains(t, cm.Data["facts.json"], "first")
	assert.Equal(t, "cnsfacts", cm.Labels["app.kubernetes.io/managed-by"])

	require.NoError(t, w.Serialize(ctx, document{Name: "second"}))
	cm, err = kc.CoreV1().ConfigMaps("default").Get(ctx, "facts", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Contains(t, cm.Data["facts.json"], "second")
}

func TestConfigMapWriter_PreservesOtherKeys(t *testing.T) {
	ctx := context.Background()
	kc := fake.NewClientset(&corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{Name: "facts", Namespace: "ops"},
		Data:       map[string]string{"notes": "keep"},
	})

	w := NewConfigMapWriter(FormatYAML, "ops", "facts").WithKubeClient(kc)
	require.NoError(t, w.Serialize(ctx, document{Name: "n"}))

	cm, err := kc.CoreV1().ConfigMaps("ops").Get(ctx, "facts", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "keep", cm.Data["notes"])
	assert.Contains(t, cm.Data["facts.yaml"], "name: n")
}

func TestMarshalTable(t *testing.T) {
	tests := []struct {
		name     string
		data     any
		contains []string
	}{
		{name: "empty map", data: map[string]any{}, contains: []string{"<empty>"}},
		{name: "nested maps", data: map[string]any{"a": map[string]any{"b": 1}}, contains: []string{"a.b", "1"}},
		{name: "slices", data: map[string]any{"list": []any{"x", "y"}, "none": []any{}}, contains: []string{"list[0]", "list[1]", "none", "[]"}},
		{name: "nil value", data: map[string]any{"gone": nil}, contains: []string{"gone", "<nil>"}},
		{name: "nested struct", data: document{Nested: &document{Name: "inner"}}, contains: []string{"nested.name", "inner"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Marshal(FormatTable, tt.data)
			require.NoError(t, err)
			for _, c := range tt.contains {
				assert.Contains(t, string(out), c)
			}
		})
	}

	out, err := Marshal(FormatTable, document{Ignored: "secret"})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "secret")
}

func TestFormat(t *testing.T) {
	assert.False(t, FormatJSON.IsUnknown())
	assert.False(t, FormatTable.IsUnknown())
	assert.True(t, Format("xml").IsUnknown())
	assert.True(t, Format("").IsUnknown())

	assert.Equal(t, []string{"json", "yaml", "table"}, SupportedFormats())
	assert.Equal(t, "txt", FormatTable.Extension())
	assert.Equal(t, "json", Format("xml").Extension())

	assert.Equal(t, FormatYAML, FormatFromPath("/tmp/out.YML"))
	assert.Equal(t, FormatTable, FormatFromPath("out.txt"))
	assert.Equal(t, FormatJSON, FormatFromPath("out"))
}

func TestFileReader(t *testing.T) {
	dir := t.TempDir()
	for _, format := range []Format{FormatJSON, FormatYAML} {
		path := filepath.Join(dir, "doc."+format.Extension())
		content, err := Marshal(format, document{Name: "round", Count: 2})
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, content, 0o600))

		r, err := NewFileReader(format, path)
		require.NoError(t, err)
		var got document
		require.NoError(t, r.Deserialize(&got))
		require.NoError(t, r.Close())
		assert.Equal(t, "round", got.Name)
		assert.Equal(t, 2, got.Count)
	}

	_, err := NewFileReader(FormatTable, filepath.Join(dir, "doc.txt"))
	require.Error(t, err)

	_, err = NewFileReader(FormatJSON, filepath.Join(dir, "missing.json"))
	require.Error(t, err)
}
