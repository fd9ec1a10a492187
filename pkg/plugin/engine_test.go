package plugin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/NVIDIA/cns-facts/pkg/attribute"
)

// counting returns a plugin that records how often it ran and requires deps.
func counting(name string, runs map[string]int, deps ...string) Plugin {
	return New(name, func(ctx context.Context, env *Env) error {
		runs[name]++
		if err := env.Require(ctx, deps...); err != nil {
			return err
		}
		return env.Attrs().Set(attribute.P(name, "ran"), true)
	})
}

func TestEngine_DependencyRunsOnce(t *testing.T) {
	runs := map[string]int{}
	reg := NewRegistry(
		counting("network", runs),
		counting("ec2", runs, "network"),
		counting("eucalyptus", runs, "network"),
		counting("cloud", runs, "ec2", "eucalyptus"),
	)
	e := NewEngine(reg, nil)

	require.NoError(t, e.Run(context.Background(), "cloud"))

	assert.Equal(t, 1, runs["network"])
	assert.Equal(t, 1, runs["ec2"])
	assert.Equal(t, 1, runs["eucalyptus"])
	assert.Equal(t, 1, runs["cloud"])
	assert.Equal(t, StateCompleted, e.State("network"))
	assert.True(t, e.Store().Has(attribute.P("cloud", "ran")))
}

func TestEngine_RerunIsNoop(t *testing.T) {
	runs := map[string]int{}
	reg := NewRegistry(counting("network", runs), counting("ec2", runs, "network"))
	e := NewEngine(reg, nil)
	ctx := context.Background()

	require.NoError(t, e.Run(ctx))
	require.NoError(t, e.Run(ctx))
	require.NoError(t, e.Run(ctx, "ec2"))

	assert.Equal(t, 1, runs["network"])
	assert.Equal(t, 1, runs["ec2"])
	assert.Len(t, e.Reports(), 2)
}

func TestEngine_Cycle(t *testing.T) {
	runs := map[string]int{}
	reg := NewRegistry(
		counting("a", runs, "b"),
		counting("b", runs, "c"),
		counting("c", runs, "a"),
	)
	e := NewEngine(reg, nil)

	err := e.Run(context.Background(), "a")
	require.Error(t, err)

	var ce *CycleError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, []string{"a", "b", "c", "a"}, ce.Cycle)
	assert.Contains(t, err.Error(), "a -> b -> c -> a")

	for _, n := range []string{"a", "b", "c"} {
		assert.Equal(t, 1, runs[n], n)
		assert.Equal(t, StateFailed, e.State(n), n)
	}
}

func TestEngine_CycleDoesNotStopUnrelatedPlugins(t *testing.T) {
	runs := map[string]int{}
	reg := NewRegistry(
		counting("a", runs, "b"),
		counting("b", runs, "a"),
		counting("needs_a", runs, "a"),
		counting("z", runs),
	)

	tests := []struct {
		name  string
		names []string
	}{
		{name: "all enabled", names: nil},
		{name: "cycle listed first", names: []string{"a", "z"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clear(runs)
			e := NewEngine(reg, nil)

			err := e.Run(context.Background(), tt.names...)
			var ce *CycleError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, []string{"a", "b", "a"}, ce.Cycle)

			assert.Equal(t, StateCompleted, e.State("z"))
			assert.True(t, e.Store().Has(attribute.P("z", "ran")))
			assert.Equal(t, StateFailed, e.State("a"))
			assert.Equal(t, StateFailed, e.State("b"))
		})
	}

	e := NewEngine(reg, nil)
	require.Error(t, e.Run(context.Background()))
	assert.Equal(t, StateFailed, e.State("needs_a"))
	assert.False(t, e.Store().Has(attribute.P("needs_a", "ran")))
}

func TestEngine_CycleSwallowedByPlugin(t *testing.T) {
	reg := NewRegistry(
		New("a", func(ctx context.Context, env *Env) error {
			_ = env.Require(ctx, "b")
			return nil
		}),
		New("b", func(ctx context.Context, env *Env) error {
			_ = env.Require(ctx, "a")
			return nil
		}),
	)
	e := NewEngine(reg, nil)

	err := e.Run(context.Background(), "a")
	var ce *CycleError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, []string{"a", "b", "a"}, ce.Cycle)
	assert.Equal(t, StateFailed, e.State("a"))
	assert.Equal(t, StateFailed, e.State("b"))
}

func TestEngine_SelfCycle(t *testing.T) {
	runs := map[string]int{}
	e := NewEngine(NewRegistry(counting("loop", runs, "loop")), nil)

	err := e.Run(context.Background(), "loop")
	var ce *CycleError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, []string{"loop", "loop"}, ce.Cycle)
}

func TestEngine_FailureIsolation(t *testing.T) {
	runs := map[string]int{}
	boom := errors.New("boom")
	reg := NewRegistry(
		New("broken", func(context.Context, *Env) error { return boom }),
		New("dependent", func(ctx context.Context, env *Env) error {
			if err := env.Require(ctx, "broken"); err != nil {
				if Unavailable(err) {
					return nil
				}
				return err
			}
			return env.Attrs().Set(attribute.P("dependent"), "unexpected")
		}),
		counting("healthy", runs),
	)
	e := NewEngine(reg, nil)

	require.NoError(t, e.Run(context.Background()))

	assert.Equal(t, StateFailed, e.State("broken"))
	assert.ErrorIs(t, e.Err("broken"), boom)
	assert.Equal(t, StateCompleted, e.State("dependent"))
	assert.False(t, e.Store().Has(attribute.P("dependent")))
	assert.Equal(t, StateCompleted, e.State("healthy"))
	assert.Equal(t, 1, runs["healthy"])
}

func TestEngine_FailedDependencyPropagates(t *testing.T) {
	reg := NewRegistry(
		New("broken", func(context.Context, *Env) error { return errors.New("boom") }),
		New("strict", func(ctx context.Context, env *Env) error {
			return env.Require(ctx, "broken")
		}),
	)
	e := NewEngine(reg, nil)

	require.NoError(t, e.Run(context.Background(), "strict"))
	assert.Equal(t, StateFailed, e.State("strict"))
	assert.ErrorIs(t, e.Err("strict"), ErrDependencyFailed)
}

func TestEngine_PanicRecovered(t *testing.T) {
	runs := map[string]int{}
	reg := NewRegistry(
		New("panics", func(context.Context, *Env) error { panic("kaboom") }),
		counting("after", runs),
	)
	e := NewEngine(reg, nil)

	require.NoError(t, e.Run(context.Background(), "panics", "after"))
	assert.Equal(t, StateFailed, e.State("panics"))
	assert.Contains(t, e.Err("panics").Error(), "kaboom")
	assert.Equal(t, 1, runs["after"])
}

func TestEngine_UnknownAndDisabled(t *testing.T) {
	runs := map[string]int{}
	reg := NewRegistry(counting("off", runs))
	reg.Disable("off")

	var got error
	reg.Register(New("probe", func(ctx context.Context, env *Env) error {
		got = env.Require(ctx, "off")
		return nil
	}))
	e := NewEngine(reg, nil)

	require.NoError(t, e.Run(context.Background(), "missing", "probe"))
	assert.ErrorIs(t, got, ErrPluginNotFound)
	assert.True(t, Unavailable(got))
	assert.Zero(t, runs["off"])
	assert.Equal(t, StatePending, e.State("missing"))
}

func TestEngine_CancelledContext(t *testing.T) {
	runs := map[string]int{}
	e := NewEngine(NewRegistry(counting("a", runs)), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := e.Run(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, runs["a"])
}

func TestEngine_Reports(t *testing.T) {
	fc := clocktesting.NewFakePassiveClock(time.Unix(0, 0))
	reg := NewRegistry(
		New("dep", func(context.Context, *Env) error { return nil }),
		New("slow", func(ctx context.Context, env *Env) error {
			if err := env.Require(ctx, "dep"); err != nil {
				return err
			}
			fc.SetTime(fc.Now().Add(2 * time.Second))
			return nil
		}),
	)
	e := NewEngine(reg, nil, WithClock(fc))

	require.NoError(t, e.Run(context.Background(), "slow"))

	reports := e.Reports()
	require.Len(t, reports, 2)
	assert.Equal(t, "slow", reports[0].Name)
	assert.Equal(t, "completed", reports[0].State)
	assert.Equal(t, 2*time.Second, reports[0].Duration)
	assert.Equal(t, []string{"dep"}, reports[0].Requires)
	assert.Equal(t, "dep", reports[1].Name)
	assert.Zero(t, reports[1].Duration)
}
