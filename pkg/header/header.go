// Package header provides the Kubernetes-style envelope shared by every
// document cnsfacts emits.
package header

import (
	"fmt"
	"strings"
	"time"
)

const (
	// APIDomain is the API group domain of cnsfacts documents.
	APIDomain = "cnsfacts.nvidia.com"

	// APIVersionV1 is the current schema version.
	APIVersionV1 = "v1alpha1"

	// TimestampKey is the metadata key holding the creation time.
	TimestampKey = "timestamp"
)

// Header contains the kind, schema version and metadata of a document.
type Header struct {
	// Kind is the type of the document.
	Kind string `json:"kind,omitempty" yaml:"kind,omitempty"`

	// APIVersion identifies the document schema.
	APIVersion string `json:"apiVersion,omitempty" yaml:"apiVersion,omitempty"`

	// Metadata contains key-value pairs describing how the document was produced.
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Option is a functional option for configuring Header instances.
type Option func(*Header)

// WithKind sets the kind and derives the matching API version.
func WithKind(kind string) Option {
	return func(h *Header) {
		h.Kind = kind
		h.APIVersion = APIVersionFor(kind)
	}
}

// WithAPIVersion overrides the API version.
func WithAPIVersion(version string) Option {
	return func(h *Header) {
		h.APIVersion = version
	}
}

// WithMetadata adds a metadata key-value pair. Empty values are skipped.
func WithMetadata(key, value string) Option {
	return func(h *Header) {
		if value == "" {
			return
		}
		h.Metadata[key] = value
	}
}

// WithTimestamp records t in UTC RFC 3339 form.
func WithTimestamp(t time.Time) Option {
	return func(h *Header) {
		h.Metadata[TimestampKey] = t.UTC().Format(time.RFC3339)
	}
}

// New creates a Header with the provided options applied in order.
func New(opts ...Option) *Header {
	h := &Header{
		Metadata: make(map[string]string),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// APIVersionFor returns "<kind>.<domain>/<version>" for kind.
func APIVersionFor(kind string) string {
	return fmt.Sprintf("%s.%s/%s", strings.ToLower(kind), APIDomain, APIVersionV1)
}

// Get returns the metadata value for key.
func (h *Header) Get(key string) (string, bool) {
	v, ok := h.Metadata[key]
	return v, ok
}
