package sync

import (
	"fmt"
	"sync"
	"time"
)

const stateEventBufferSize = 16

// Phase is the sync session's lifecycle state.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseChecking     Phase = "checking"
	PhasePlanning     Phase = "planning"
	PhaseTransferring Phase = "transferring"
	PhaseSettling     Phase = "settling"
)

// Trigger distinguishes who started a pass. It only affects settling
// visibility and error surfacing, never reconciliation behavior.
type Trigger string

const (
	TriggerManual Trigger = "manual"
	TriggerAuto   Trigger = "auto"
)

// Outcome is the terminal result of one sync pass.
type Outcome string

const (
	OutcomeUpToDate Outcome = "up_to_date"
	OutcomeUpdated  Outcome = "updated"
	OutcomeFailed   Outcome = "failed"
)

// SessionState is the observable snapshot of the sync session the UI
// collaborator consumes. It is published explicitly on every transition.
type SessionState struct {
	PassID    string    `json:"pass_id,omitempty"`
	Phase     Phase     `json:"phase"`
	Trigger   Trigger   `json:"trigger,omitempty"`
	Message   string    `json:"message,omitempty"`
	Fraction  float64   `json:"fraction"` // in [0,1], meaningful while transferring
	StepIndex int       `json:"step_index,omitempty"`
	StepTotal int       `json:"step_total,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InProgress reports whether a pass is actively running.
func (s SessionState) InProgress() bool {
	return s.Phase == PhaseChecking || s.Phase == PhasePlanning || s.Phase == PhaseTransferring
}

// Transferring reports whether files are currently being moved, as opposed to
// just checking or planning.
func (s SessionState) Transferring() bool {
	return s.Phase == PhaseTransferring
}

// Counter returns the "x of y" step counter, or "" outside transfers.
func (s SessionState) Counter() string {
	if s.StepTotal == 0 {
		return ""
	}
	return fmt.Sprintf("%d of %d", s.StepIndex, s.StepTotal)
}

// Status holds the current session state and broadcasts transitions to
// subscribers over buffered channels. Slow subscribers miss events rather
// than block the session.
type Status struct {
	mu    sync.RWMutex
	state SessionState

	subMu sync.RWMutex
	subs  []chan SessionState
}

func NewStatus() *Status {
	return &Status{
		state: SessionState{Phase: PhaseIdle, UpdatedAt: time.Now()},
	}
}

// Get returns the current session state.
func (s *Status) Get() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Subscribe returns a channel receiving every state transition.
func (s *Status) Subscribe() <-chan SessionState {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	ch := make(chan SessionState, stateEventBufferSize)
	s.subs = append(s.subs, ch)
	return ch
}

// Unsubscribe removes a subscription channel and closes it.
func (s *Status) Unsubscribe(ch <-chan SessionState) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for i, sub := range s.subs {
		if sub == ch {
			close(sub)
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			break
		}
	}
}

// set stores a new state and broadcasts it.
func (s *Status) set(state SessionState) {
	state.UpdatedAt = time.Now()

	s.mu.Lock()
	s.state = state
	s.mu.Unlock()

	s.subMu.RLock()
	defer s.subMu.RUnlock()
	for _, sub := range s.subs {
		select {
		case sub <- state:
		default:
			// subscriber is full, skip to avoid blocking the pass
		}
	}
}

// Close terminates all subscriptions.
func (s *Status) Close() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for _, sub := range s.subs {
		close(sub)
	}
	s.subs = nil
}
