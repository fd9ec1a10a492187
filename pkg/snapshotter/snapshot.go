package snapshotter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	"k8s.io/utils/clock"

	"github.com/NVIDIA/cns-facts/pkg/attribute"
	"github.com/NVIDIA/cns-facts/pkg/config"
	cnserrors "github.com/NVIDIA/cns-facts/pkg/errors"
	"github.com/NVIDIA/cns-facts/pkg/header"
	"github.com/NVIDIA/cns-facts/pkg/plugin"
	"github.com/NVIDIA/cns-facts/pkg/plugins"
	"github.com/NVIDIA/cns-facts/pkg/plugins/kubernetes"
	"github.com/NVIDIA/cns-facts/pkg/serializer"
)

// NodeSnapshotter performs a collection run on the current node and
// serializes the resulting Facts document. Every call to Collect or
// Measure starts from an empty attribute store.
type NodeSnapshotter struct {
	// Version is the cnsfacts version recorded in the document.
	Version string

	// Config is the run configuration. If nil, config.Default() is used.
	Config *config.Config

	// Factory creates the plugins. If nil, a DefaultFactory built from
	// Config is used.
	Factory plugins.Factory

	// Serializer writes the document. If nil, JSON is written to stdout.
	Serializer serializer.Serializer

	// Plugins limits the run to the named plugins and their dependencies.
	Plugins []string

	// Attributes limits the exported facts to the given dotted paths.
	Attributes []string

	// Clock is used for timing and timestamps. If nil, the real clock is used.
	Clock clock.PassiveClock
}

// Collect runs the plugins and returns the resulting document. A
// dependency cycle still yields the facts collected so far together with
// the cycle error. Unknown plugin names are rejected before anything runs.
func (n *NodeSnapshotter) Collect(ctx context.Context) (*Facts, error) {
	cfg := n.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if n.Factory == nil {
		n.Factory = plugins.NewDefaultFactory(cfg)
	}
	clk := n.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}

	registry := plugins.NewRegistry(n.Factory, cfg.Plugins.Disabled...)
	if err := checkPlugins(registry, n.Plugins); err != nil {
		runTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	start := clk.Now()
	defer func() {
		runDuration.Observe(clk.Since(start).Seconds())
	}()

	slog.Debug("starting collection run",
		slog.Int("plugins", len(n.Plugins)),
		slog.Int("attributes", len(n.Attributes)))

	engine := plugin.NewEngine(registry, attribute.NewStore(), plugin.WithClock(clk))
	runErr := engine.Run(ctx, n.Plugins...)
	if runErr != nil && ctx.Err() != nil {
		runTotal.WithLabelValues("error").Inc()
		return nil, runErr
	}

	facts := &Facts{
		Header: *header.New(
			header.WithKind(Kind),
			header.WithMetadata(MetadataRunID, uuid.NewString()),
			header.WithMetadata(MetadataVersion, n.Version),
			header.WithMetadata(MetadataSourceNode, nodeName(engine.Store())),
			header.WithTimestamp(start),
		),
		Facts:   selectAttributes(engine.Store(), n.Attributes),
		Plugins: engine.Reports(),
	}

	failed := facts.Failed()
	runFailedPlugins.Set(float64(len(failed)))
	runFacts.Set(float64(engine.Store().Len()))

	if runErr != nil {
		var ce *plugin.CycleError
		if errors.As(runErr, &ce) {
			runTotal.WithLabelValues("error").Inc()
			return facts, cnserrors.WrapWithContext(cnserrors.ErrCodeCyclicDependency,
				"collection run aborted", runErr, map[string]any{"cycle": ce.Cycle})
		}
		runTotal.WithLabelValues("error").Inc()
		return facts, cnserrors.Wrap(cnserrors.ErrCodePluginFailed, "collection run failed", runErr)
	}

	runTotal.WithLabelValues("success").Inc()
	slog.Debug("collection run complete",
		slog.Int("plugins", len(facts.Plugins)),
		slog.Int("failed", len(failed)))
	return facts, nil
}

// Measure collects facts and serializes the document. When the run ends
// with a dependency cycle the partial document is still written.
func (n *NodeSnapshotter) Measure(ctx context.Context) error {
	facts, err := n.Collect(ctx)
	if facts == nil {
		return err
	}

	if n.Serializer == nil {
		n.Serializer = serializer.NewStdoutWriter(serializer.FormatJSON)
	}

	if serr := n.Serializer.Serialize(ctx, facts); serr != nil {
		slog.Error("failed to serialize", slog.String("error", serr.Error()))
		return fmt.Errorf("failed to serialize: %w", serr)
	}
	return err
}

// checkPlugins rejects names the registry cannot run, suggesting the
// closest known name.
func checkPlugins(registry *plugin.Registry, names []string) error {
	for _, name := range names {
		if _, ok := registry.Get(name); ok {
			continue
		}
		msg := fmt.Sprintf("unknown or disabled plugin %q", name)
		if s, ok := registry.Suggest(name); ok {
			msg += fmt.Sprintf(", did you mean %q?", s)
		}
		return cnserrors.WrapWithContext(cnserrors.ErrCodeNotFound, msg, plugin.ErrPluginNotFound,
			map[string]any{"plugin": name, "available": registry.List()})
	}
	return nil
}

// selectAttributes exports the whole tree, or only the subtrees at the
// given dotted paths nested under their original keys. Missing paths are
// skipped.
func selectAttributes(store *attribute.Store, paths []string) map[string]any {
	if len(paths) == 0 {
		return store.Map()
	}

	out := attribute.NewStore()
	for _, p := range paths {
		path := ParsePath(p)
		if len(path) == 0 {
			continue
		}
		v, ok := store.Get(path)
		if !ok {
			slog.Debug("attribute not found", slog.String("path", p))
			continue
		}
		if err := out.Set(path, v); err != nil {
			slog.Warn("failed to select attribute",
				slog.String("path", p),
				slog.String("error", err.Error()))
		}
	}
	return out.Map()
}

// ParsePath splits a dotted attribute path. Empty segments are dropped.
func ParsePath(s string) attribute.Path {
	var segs []any
	for _, seg := range strings.Split(s, ".") {
		if seg = strings.TrimSpace(seg); seg != "" {
			segs = append(segs, seg)
		}
	}
	return attribute.P(segs...)
}

// nodeName prefers the Kubernetes node name collected during the run,
// then the NODE_NAME environment variable, then the hostname.
func nodeName(store *attribute.Store) string {
	if name, ok := store.GetString(attribute.P(kubernetes.Name, "node", "name")); ok && name != "" {
		return name
	}
	if name := os.Getenv(kubernetes.NodeNameEnv); name != "" {
		return name
	}
	host, err := os.Hostname()
	if err != nil {
		slog.Debug("failed to resolve hostname", slog.String("error", err.Error()))
		return ""
	}
	return host
}

// FactsFromFile loads a Facts document from path. The format follows the
// file extension.
func FactsFromFile(path string) (*Facts, error) {
	format := serializer.FormatFromPath(path)
	slog.Debug("determined facts file format",
		slog.String("path", path),
		slog.String("format", string(format)))

	r, err := serializer.NewFileReader(format, path)
	if err != nil {
		return nil, fmt.Errorf("failed to create reader for %q: %w", path, err)
	}
	defer func() {
		if closeErr := r.Close(); closeErr != nil {
			slog.Warn("failed to close reader", slog.String("error", closeErr.Error()))
		}
	}()

	var facts Facts
	if err := r.Deserialize(&facts); err != nil {
		return nil, fmt.Errorf("failed to deserialize facts from %q: %w", path, err)
	}
	if facts.Kind != Kind {
		return nil, fmt.Errorf("unexpected document kind %q in %q, expected %q", facts.Kind, path, Kind)
	}

	slog.Debug("loaded facts from file",
		slog.String("path", path),
		slog.String("apiVersion", facts.APIVersion),
		slog.Int("facts", len(facts.Facts)))
	return &facts, nil
}

// FactsFromBytes decodes a YAML or JSON Facts document.
func FactsFromBytes(data []byte) (*Facts, error) {
	var facts Facts
	if err := yaml.Unmarshal(data, &facts); err != nil {
		return nil, fmt.Errorf("failed to decode facts: %w", err)
	}
	if facts.Kind != Kind {
		return nil, fmt.Errorf("unexpected document kind %q, expected %q", facts.Kind, Kind)
	}
	return &facts, nil
}
