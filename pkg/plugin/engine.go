package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"time"

	"k8s.io/utils/clock"

	"github.com/NVIDIA/cns-facts/pkg/attribute"
)

// Engine executes plugins against one attribute store. Dependencies pulled
// with Env.Require run depth-first, each plugin at most once per engine.
//
// An Engine is single-threaded: Run and Require must not be called
// concurrently.
type Engine struct {
	registry *Registry
	store    *attribute.Store
	clock    clock.PassiveClock
	logger   *slog.Logger

	states   map[string]State
	errs     map[string]error
	reports  map[string]*Report
	order    []string
	inFlight []string
	cycle    *CycleError
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used for plugin timing.
func WithClock(c clock.PassiveClock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// NewEngine creates an engine running plugins from registry into store.
// A nil store is replaced with an empty one.
func NewEngine(registry *Registry, store *attribute.Store, opts ...Option) *Engine {
	if store == nil {
		store = attribute.NewStore()
	}
	e := &Engine{
		registry: registry,
		store:    store,
		clock:    clock.RealClock{},
		logger:   slog.Default().With("component", "engine"),
		states:   make(map[string]State),
		errs:     make(map[string]error),
		reports:  make(map[string]*Report),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store returns the attribute store the engine writes into.
func (e *Engine) Store() *attribute.Store {
	return e.store
}

// Run executes the named plugins, or every enabled plugin when names is
// empty. Individual plugin failures are isolated and recorded in Reports.
// Run returns an error only for dependency cycles and context cancellation.
// A cycle fails its members and the plugins requiring them; the remaining
// names still run and the cycle is returned afterwards.
// Plugins that already completed are not executed again.
func (e *Engine) Run(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		names = e.registry.List()
	}

	e.logger.Debug("running plugins", slog.Int("count", len(names)))

	for _, name := range names {
		err := e.require(ctx, "", name)
		if err == nil || Unavailable(err) {
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		var ce *CycleError
		if errors.As(err, &ce) {
			// Plugins outside the cycle still run.
			continue
		}
		return err
	}
	if e.cycle != nil {
		return e.cycle
	}
	return nil
}

// State returns the state of the named plugin.
func (e *Engine) State(name string) State {
	return e.states[name]
}

// Err returns the failure recorded for the named plugin, if any.
func (e *Engine) Err(name string) error {
	return e.errs[name]
}

// Reports returns per-plugin outcomes in execution start order.
func (e *Engine) Reports() []Report {
	out := make([]Report, 0, len(e.order))
	for _, name := range e.order {
		out = append(out, *e.reports[name])
	}
	return out
}

func (e *Engine) require(ctx context.Context, from, name string) error {
	if from != "" {
		if r := e.reports[from]; r != nil && !slices.Contains(r.Requires, name) {
			r.Requires = append(r.Requires, name)
		}
	}

	switch e.states[name] {
	case StateCompleted:
		return nil
	case StateFailed:
		var ce *CycleError
		if errors.As(e.errs[name], &ce) {
			return ce
		}
		return fmt.Errorf("%w: %s", ErrDependencyFailed, name)
	case StateRunning:
		idx := slices.Index(e.inFlight, name)
		cycle := append(slices.Clone(e.inFlight[idx:]), name)
		ce := &CycleError{Cycle: cycle}
		if e.cycle == nil {
			e.cycle = ce
		}
		e.logger.Error("dependency cycle detected", slog.String("cycle", ce.Error()))
		return ce
	}

	p, ok := e.registry.Get(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	report := &Report{Name: name}
	e.reports[name] = report
	e.order = append(e.order, name)
	e.states[name] = StateRunning
	e.inFlight = append(e.inFlight, name)

	start := e.clock.Now()
	err := e.invoke(ctx, p)
	report.Duration = e.clock.Since(start)

	e.inFlight = e.inFlight[:len(e.inFlight)-1]
	pluginDuration.WithLabelValues(name).Observe(report.Duration.Seconds())

	if err == nil && e.cycle != nil && slices.Contains(e.cycle.Cycle, name) {
		// Members of a cycle fail even when their body swallowed the error.
		err = e.cycle
	}

	if err != nil {
		e.states[name] = StateFailed
		e.errs[name] = err
		report.State = StateFailed.String()
		report.Error = err.Error()
		pluginRunTotal.WithLabelValues(name, report.State).Inc()

		var ce *CycleError
		if errors.As(err, &ce) {
			return ce
		}
		e.logger.Warn("plugin failed",
			slog.String("plugin", name),
			slog.String("error", err.Error()),
			slog.Duration("duration", report.Duration))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %s: %w", ErrDependencyFailed, name, err)
	}

	e.states[name] = StateCompleted
	report.State = StateCompleted.String()
	pluginRunTotal.WithLabelValues(name, report.State).Inc()
	e.logger.Debug("plugin completed",
		slog.String("plugin", name),
		slog.Duration("duration", report.Duration))
	return nil
}

func (e *Engine) invoke(ctx context.Context, p Plugin) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("plugin panicked",
				slog.String("plugin", p.Name()),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			err = fmt.Errorf("plugin %s panicked: %v", p.Name(), r)
		}
	}()
	return p.Collect(ctx, &Env{engine: e, name: p.Name()})
}

// Env is the environment a plugin executes in.
type Env struct {
	engine *Engine
	name   string
}

// Attrs returns the run's attribute store.
func (env *Env) Attrs() *attribute.Store {
	return env.engine.store
}

// Name returns the name of the executing plugin.
func (env *Env) Name() string {
	return env.name
}

// Logger returns a logger tagged with the executing plugin.
func (env *Env) Logger() *slog.Logger {
	return env.engine.logger.With(slog.String("plugin", env.name))
}

// Now returns the engine clock's current time.
func (env *Env) Now() time.Time {
	return env.engine.clock.Now()
}

// Require ensures each named plugin has executed, running it first if
// necessary. It returns the first error encountered: ErrDependencyFailed
// or ErrPluginNotFound when a dependency cannot provide facts (see
// Unavailable), or *CycleError when a plugin transitively requires itself.
func (env *Env) Require(ctx context.Context, names ...string) error {
	for _, n := range names {
		if err := env.engine.require(ctx, env.name, n); err != nil {
			return err
		}
	}
	return nil
}
