package plugin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrDependencyFailed is returned by Require when the requested plugin
	// failed. Dependents treat it as "not applicable" and skip.
	ErrDependencyFailed = errors.New("dependency failed")

	// ErrPluginNotFound is returned by Require for unknown or disabled plugins.
	ErrPluginNotFound = errors.New("plugin not found")
)

// Plugin is a unit of detection logic that writes facts into the store.
// Collect receives the run environment explicitly; plugins must not reach
// the store through any other route.
type Plugin interface {
	Name() string
	Collect(ctx context.Context, env *Env) error
}

// CollectFunc is the body of a plugin built with New.
type CollectFunc func(ctx context.Context, env *Env) error

type funcPlugin struct {
	name string
	fn   CollectFunc
}

func (p *funcPlugin) Name() string { return p.name }

func (p *funcPlugin) Collect(ctx context.Context, env *Env) error { return p.fn(ctx, env) }

// New creates a plugin from a function.
func New(name string, fn CollectFunc) Plugin {
	return &funcPlugin{name: name, fn: fn}
}

// State is the execution state of a plugin within one run.
type State int

const (
	StatePending State = iota
	StateRunning
	StateCompleted
	StateFailed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "pending"
	}
}

// CycleError reports a dependency cycle. Cycle lists the plugin names from
// the first repeated plugin back to itself.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cyclic plugin dependency: %s", strings.Join(e.Cycle, " -> "))
}

// Report describes the outcome of one plugin in a run.
type Report struct {
	Name     string        `json:"name" yaml:"name"`
	State    string        `json:"state" yaml:"state"`
	Duration time.Duration `json:"duration" yaml:"duration"`
	Requires []string      `json:"requires,omitempty" yaml:"requires,omitempty"`
	Error    string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// Unavailable reports whether err from Require means the dependency cannot
// provide facts (failed, unknown or disabled). Such dependents skip their
// own detection. Cycle and context errors are not "unavailable".
func Unavailable(err error) bool {
	return errors.Is(err, ErrDependencyFailed) || errors.Is(err, ErrPluginNotFound)
}
