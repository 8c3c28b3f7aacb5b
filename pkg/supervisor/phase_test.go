package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netboot-tools/pxe-supervisor/pkg/logging"
)

func TestPhaseMachineHappyPath(t *testing.T) {
	pm := NewPhaseMachine(logging.NopLogger{})
	assert.Equal(t, PhaseInitializing, pm.Current())

	steps := []Phase{PhaseRendering, PhaseLaunching, PhaseMonitoring, PhaseShuttingDown, PhaseStopped}
	for _, step := range steps {
		require.NoError(t, pm.Transition(step, "test", nil))
		assert.Equal(t, step, pm.Current())
	}

	assert.Len(t, pm.History(), len(steps))
}

func TestPhaseMachineRejectsInvalidTransitions(t *testing.T) {
	tests := []struct {
		name string
		path []Phase
		to   Phase
	}{
		{
			name: "initializing cannot jump to monitoring",
			to:   PhaseMonitoring,
		},
		{
			name: "rendering cannot jump to monitoring",
			path: []Phase{PhaseRendering},
			to:   PhaseMonitoring,
		},
		{
			name: "monitoring cannot go back to launching",
			path: []Phase{PhaseRendering, PhaseLaunching, PhaseMonitoring},
			to:   PhaseLaunching,
		},
		{
			name: "stopped is terminal",
			path: []Phase{PhaseRendering, PhaseStopped},
			to:   PhaseRendering,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pm := NewPhaseMachine(logging.NopLogger{})
			for _, step := range tt.path {
				require.NoError(t, pm.Transition(step, "setup", nil))
			}
			from := pm.Current()

			assert.False(t, pm.CanTransition(tt.to))
			err := pm.Transition(tt.to, "test", nil)
			assert.Error(t, err)
			assert.Equal(t, from, pm.Current())
		})
	}
}

func TestPhaseMachineFailurePaths(t *testing.T) {
	pm := NewPhaseMachine(logging.NopLogger{})
	require.NoError(t, pm.Transition(PhaseRendering, "startup", nil))
	require.NoError(t, pm.Transition(PhaseStopped, "render failure", assert.AnError))

	history := pm.History()
	require.Len(t, history, 2)
	assert.Equal(t, assert.AnError, history[1].Error)

	pm = NewPhaseMachine(logging.NopLogger{})
	require.NoError(t, pm.Transition(PhaseRendering, "startup", nil))
	require.NoError(t, pm.Transition(PhaseLaunching, "configs committed", nil))
	require.NoError(t, pm.Transition(PhaseShuttingDown, "launch failure", assert.AnError))
	require.NoError(t, pm.Transition(PhaseStopped, "teardown complete", nil))
}
