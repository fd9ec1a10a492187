package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/NVIDIA/cns-facts/pkg/config"
	cnserrors "github.com/NVIDIA/cns-facts/pkg/errors"
	"github.com/NVIDIA/cns-facts/pkg/plugin"
	"github.com/NVIDIA/cns-facts/pkg/plugins"
	"github.com/NVIDIA/cns-facts/pkg/serializer"
	"github.com/NVIDIA/cns-facts/pkg/server"
	"github.com/NVIDIA/cns-facts/pkg/snapshotter"
)

// FactsHandler serves GET /v1/facts. Every request performs its own
// collection run against a fresh attribute store.
//
// Query parameters:
//
//	plugin     plugin to run, repeatable or comma-separated (default: all)
//	attribute  dotted attribute path to export, repeatable or comma-separated
//	format     json, yaml or table (overrides Accept)
type FactsHandler struct {
	Version string
	Config  *config.Config
	Factory plugins.Factory
}

// NewFactsHandler creates a handler sharing one plugin factory across runs.
func NewFactsHandler(version string, cfg *config.Config) *FactsHandler {
	if cfg == nil {
		cfg = config.Default()
	}
	return &FactsHandler{
		Version: version,
		Config:  cfg,
		Factory: plugins.NewDefaultFactory(cfg),
	}
}

// ServeHTTP implements http.Handler.
func (h *FactsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		server.WriteError(w, r, http.StatusMethodNotAllowed, cnserrors.ErrCodeMethodNotAllowed,
			"method not allowed", false, map[string]any{"method": r.Method})
		return
	}

	q := r.URL.Query()
	n := &snapshotter.NodeSnapshotter{
		Version:    h.Version,
		Config:     h.Config,
		Factory:    h.Factory,
		Plugins:    splitValues(q["plugin"]),
		Attributes: splitValues(q["attribute"]),
	}

	facts, err := n.Collect(r.Context())
	if err != nil {
		var ce *plugin.CycleError
		if facts == nil || errors.As(err, &ce) {
			server.WriteErrorFromErr(w, r, err, "fact collection failed", nil)
			return
		}
		slog.Warn("collection run finished with errors", slog.String("error", err.Error()))
	}

	w.Header().Set("Cache-Control", "no-store")
	serializer.Respond(w, r, http.StatusOK, facts)
}

// splitValues flattens repeated and comma-separated query values.
func splitValues(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
