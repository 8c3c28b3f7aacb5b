package supervisor

import (
	"fmt"
	"sync"
	"time"

	"github.com/netboot-tools/pxe-supervisor/pkg/errors"
	"github.com/netboot-tools/pxe-supervisor/pkg/logging"
)

// Phase represents the supervisor's position in its lifecycle
type Phase string

const (
	// PhaseInitializing means configuration is being loaded and validated
	PhaseInitializing Phase = "initializing"

	// PhaseRendering means daemon configurations are being rendered and committed
	PhaseRendering Phase = "rendering"

	// PhaseLaunching means daemons are being started in dependency order
	PhaseLaunching Phase = "launching"

	// PhaseMonitoring means all daemons are up and periodic health checks run
	PhaseMonitoring Phase = "monitoring"

	// PhaseShuttingDown means daemons are being stopped in reverse order
	PhaseShuttingDown Phase = "shutting_down"

	// PhaseStopped is terminal: all daemons are stopped or were never started
	PhaseStopped Phase = "stopped"
)

// PhaseTransition records a single phase change with metadata
type PhaseTransition struct {
	From      Phase
	To        Phase
	Operation string
	Timestamp time.Time
	Error     error
}

// PhaseMachine manages supervisor phase transitions with validation
type PhaseMachine struct {
	currentPhase     Phase
	transitions      []PhaseTransition
	validTransitions map[Phase][]Phase
	mutex            sync.RWMutex
	logger           logging.Logger
}

// NewPhaseMachine creates a phase machine starting at PhaseInitializing
func NewPhaseMachine(logger logging.Logger) *PhaseMachine {
	pm := &PhaseMachine{
		currentPhase: PhaseInitializing,
		transitions:  make([]PhaseTransition, 0),
		logger:       logger,
	}

	pm.validTransitions = map[Phase][]Phase{
		PhaseInitializing: {
			PhaseRendering, // configuration accepted
			PhaseStopped,   // configuration rejected
		},
		PhaseRendering: {
			PhaseLaunching, // all configs committed
			PhaseStopped,   // render or validation failure
		},
		PhaseLaunching: {
			PhaseMonitoring,   // all daemons confirmed running
			PhaseShuttingDown, // launch failure, tear down partial set
		},
		PhaseMonitoring: {
			PhaseShuttingDown, // termination signal
		},
		PhaseShuttingDown: {
			PhaseStopped, // always terminal, even on stop errors
		},
	}

	return pm
}

// Current returns the current phase (thread-safe)
func (pm *PhaseMachine) Current() Phase {
	pm.mutex.RLock()
	defer pm.mutex.RUnlock()
	return pm.currentPhase
}

// CanTransition checks if a phase transition is valid
func (pm *PhaseMachine) CanTransition(to Phase) bool {
	pm.mutex.RLock()
	defer pm.mutex.RUnlock()
	return pm.canTransitionUnsafe(to)
}

// Transition attempts to move to a new phase with validation. The err
// argument records why the transition happened, not a transition failure.
func (pm *PhaseMachine) Transition(to Phase, operation string, err error) error {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	from := pm.currentPhase

	if !pm.canTransitionUnsafe(to) {
		return errors.NewInternalError(
			fmt.Sprintf("invalid phase transition from %s to %s for operation %s", from, to, operation),
			nil,
		).WithContext("current_phase", string(from)).WithContext("target_phase", string(to))
	}

	pm.transitions = append(pm.transitions, PhaseTransition{
		From:      from,
		To:        to,
		Operation: operation,
		Timestamp: time.Now(),
		Error:     err,
	})
	pm.currentPhase = to

	if err != nil {
		pm.logger.Warnf("Supervisor phase transition, %s->%s, operation: %s, cause: %v", from, to, operation, err)
	} else {
		pm.logger.Infof("Supervisor phase transition, %s->%s, operation: %s", from, to, operation)
	}

	return nil
}

// History returns a copy of all recorded transitions
func (pm *PhaseMachine) History() []PhaseTransition {
	pm.mutex.RLock()
	defer pm.mutex.RUnlock()

	history := make([]PhaseTransition, len(pm.transitions))
	copy(history, pm.transitions)
	return history
}

func (pm *PhaseMachine) canTransitionUnsafe(to Phase) bool {
	validPhases, exists := pm.validTransitions[pm.currentPhase]
	if !exists {
		return false
	}
	for _, valid := range validPhases {
		if valid == to {
			return true
		}
	}
	return false
}
