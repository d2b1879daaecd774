package tss

import (
	"sync"

	"github.com/tsswallet/tss-wallet/model/tss"
)

// stateManager tracks the PhaseState of every phase of one key-set. It is
// in-memory only: after a restart every phase reads as NotStarted until the
// checkpoint store says otherwise.
type stateManager struct {
	mu     sync.RWMutex
	states map[tss.Phase]tss.PhaseState
}

func newStateManager() *stateManager {
	return &stateManager{
		states: make(map[tss.Phase]tss.PhaseState, len(tss.Phases)),
	}
}

// Get returns the current state of phase.
func (m *stateManager) Get(phase tss.Phase) tss.PhaseState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.states[phase]
}

// All returns a snapshot of the state of every phase.
func (m *stateManager) All() map[tss.Phase]tss.PhaseState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := make(map[tss.Phase]tss.PhaseState, len(tss.Phases))
	for _, phase := range tss.Phases {
		all[phase] = m.states[phase]
	}
	return all
}

// Start transitions phase to InProgress. Completed phases may be re-entered
// (Presign and Sign run once per signature); an InProgress phase may not.
func (m *stateManager) Start(phase tss.Phase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	from := m.states[phase].Status
	if from == tss.InProgress {
		return NewInvalidStateTransitionError(phase, from, tss.InProgress)
	}
	m.states[phase] = tss.PhaseState{Status: tss.InProgress}
	return nil
}

// Complete transitions phase from InProgress to Completed.
func (m *stateManager) Complete(phase tss.Phase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	from := m.states[phase].Status
	if from != tss.InProgress {
		return NewInvalidStateTransitionError(phase, from, tss.Completed)
	}
	m.states[phase] = tss.PhaseState{Status: tss.Completed}
	return nil
}

// Restore marks phase Completed because its checkpoint was found in the store.
func (m *stateManager) Restore(phase tss.Phase) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.states[phase].Status == tss.InProgress {
		return
	}
	m.states[phase] = tss.PhaseState{Status: tss.Completed}
}

// Abort transitions phase from InProgress to Aborted, recording the culprit
// carried by err, if any.
func (m *stateManager) Abort(phase tss.Phase, err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	from := m.states[phase].Status
	if from != tss.InProgress {
		return NewInvalidStateTransitionError(phase, from, tss.Aborted)
	}
	state := tss.PhaseState{Status: tss.Aborted, Reason: err.Error()}
	if abort, ok := AsIdentifiableAbort(err); ok {
		culprit := abort.Participant
		state.Culprit = &culprit
		if abort.Reason != nil {
			state.Reason = abort.Reason.Error()
		}
	}
	m.states[phase] = state
	return nil
}

// Reset moves every phase back to NotStarted.
func (m *stateManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = make(map[tss.Phase]tss.PhaseState, len(tss.Phases))
}
