package serializer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/validation"
	"k8s.io/client-go/kubernetes"

	"github.com/NVIDIA/cns-facts/pkg/k8s/client"
)

// ConfigMapDataKeyPrefix prefixes the ConfigMap data key ("facts.json").
const ConfigMapDataKeyPrefix = "facts"

// ConfigMapWriter stores serialized documents in a Kubernetes ConfigMap,
// creating it when absent.
type ConfigMapWriter struct {
	format    Format
	namespace string
	name      string
	client    kubernetes.Interface
}

// NewConfigMapWriter creates a writer for namespace/name. The client is
// resolved on first use unless set with WithKubeClient.
func NewConfigMapWriter(format Format, namespace, name string) *ConfigMapWriter {
	if format.IsUnknown() {
		format = FormatJSON
	}
	return &ConfigMapWriter{format: format, namespace: namespace, name: name}
}

// WithKubeClient sets the client and returns the writer.
func (c *ConfigMapWriter) WithKubeClient(kc kubernetes.Interface) *ConfigMapWriter {
	c.client = kc
	return c
}

// DataKey is the ConfigMap data key the document is stored under.
func (c *ConfigMapWriter) DataKey() string {
	return ConfigMapDataKeyPrefix + "." + c.format.Extension()
}

// Serialize implements Serializer.
func (c *ConfigMapWriter) Serialize(ctx context.Context, data any) error {
	content, err := Marshal(c.format, data)
	if err != nil {
		return err
	}

	if c.client == nil {
		c.client, err = client.GetKubeClient()
		if err != nil {
			return fmt.Errorf("failed to get kubernetes client: %w", err)
		}
	}

	cms := c.client.CoreV1().ConfigMaps(c.namespace)
	existing, err := cms.Get(ctx, c.name, metav1.GetOptions{})
	switch {
	case apierrors.IsNotFound(err):
		cm := &corev1.ConfigMap{
			ObjectMeta: metav1.ObjectMeta{
				Name:      c.name,
				Namespace: c.namespace,
				Labels: map[string]string{
					"app.kubernetes.io/managed-by": "cnsfacts",
				},
			},
			Data: map[string]string{c.DataKey(): string(content)},
		}
		if _, err := cms.Create(ctx, cm, metav1.CreateOptions{}); err != nil {
			return fmt.Errorf("failed to create configmap %s/%s: %w", c.namespace, c.name, err)
		}
	case err != nil:
		return fmt.Errorf("failed to get configmap %s/%s: %w", c.namespace, c.name, err)
	default:
		if existing.Data == nil {
			existing.Data = make(map[string]string)
		}
		existing.Data[c.DataKey()] = string(content)
		if _, err := cms.Update(ctx, existing, metav1.UpdateOptions{}); err != nil {
			return fmt.Errorf("failed to update configmap %s/%s: %w", c.namespace, c.name, err)
		}
	}

	slog.Debug("wrote configmap",
		slog.String("namespace", c.namespace),
		slog.String("name", c.name),
		slog.Int("bytes", len(content)))
	return nil
}

// ParseConfigMapURI splits cm://namespace/name into its parts.
func ParseConfigMapURI(uri string) (string, string, error) {
	rest := strings.TrimPrefix(uri, ConfigMapURIScheme)
	namespace, name, ok := strings.Cut(rest, "/")
	if !ok || namespace == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("invalid ConfigMap URI %q, expected %snamespace/name", uri, ConfigMapURIScheme)
	}
	for _, part := range []string{namespace, name} {
		if errs := validation.IsDNS1123Subdomain(part); len(errs) > 0 {
			return "", "", fmt.Errorf("invalid ConfigMap URI %q: %s", uri, strings.Join(errs, "; "))
		}
	}
	return namespace, name, nil
}
