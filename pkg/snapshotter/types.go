package snapshotter

import (
	"context"
	"log/slog"

	"github.com/NVIDIA/cns-facts/pkg/attribute"
	"github.com/NVIDIA/cns-facts/pkg/header"
	"github.com/NVIDIA/cns-facts/pkg/plugin"
)

// Snapshotter is the interface that wraps the Measure method.
// Measure performs a collection run and writes the resulting document.
type Snapshotter interface {
	Measure(ctx context.Context) error
}

// Facts is the document produced by one collection run.
type Facts struct {
	header.Header `json:",inline" yaml:",inline"`

	// Facts is the collected attribute tree.
	Facts map[string]any `json:"facts" yaml:"facts"`

	// Plugins reports the outcome of every plugin that ran.
	Plugins []plugin.Report `json:"plugins,omitempty" yaml:"plugins,omitempty"`
}

// Failed returns the names of plugins that failed during the run.
func (f *Facts) Failed() []string {
	var out []string
	for _, r := range f.Plugins {
		if r.State == plugin.StateFailed.String() {
			out = append(out, r.Name)
		}
	}
	return out
}

// Select returns a copy of f whose facts are limited to the given dotted
// paths. With no paths the copy holds every fact.
func (f *Facts) Select(paths ...string) *Facts {
	store := attribute.NewStore()
	if err := store.Set(nil, f.Facts); err != nil {
		slog.Warn("failed to load facts", slog.String("error", err.Error()))
	}
	out := *f
	out.Facts = selectAttributes(store, paths)
	return &out
}
