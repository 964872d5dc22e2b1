// Package authstatus tracks, per battery, the three-phase authentication
// state machine and its derived global state.
package authstatus

import (
	"sync"
	"time"
)

// PhaseState is the state of a single authentication phase.
type PhaseState string

const (
	NotStarted PhaseState = "not_started"
	InProgress PhaseState = "in_progress"
	Success    PhaseState = "success"
	Failed     PhaseState = "failed"
)

// GlobalState is the derived rollup of a battery's three phases.
type GlobalState string

const (
	Waiting        GlobalState = "waiting"
	GlobalProgress GlobalState = "in_progress"
	GlobalSuccess  GlobalState = "success"
	GlobalFailed   GlobalState = "failed"
)

// Phase names, used both as map keys and in transition history entries.
const (
	PhaseWakeUp       = "wake_up"
	PhaseAuthenticate = "authenticate"
	PhaseReadInfo     = "read_info"
)

// maxHistory bounds the number of retained transition messages per battery.
const maxHistory = 50

// Phase is the state of one authentication phase.
type Phase struct {
	State     PhaseState
	Message   string
	Timestamp time.Time
}

// Transition is one recorded phase-state change.
type Transition struct {
	Phase     string
	State     PhaseState
	Message   string
	Timestamp time.Time
}

// Record is one battery's full authentication status.
type Record struct {
	GlobalState GlobalState
	Phases      map[string]Phase
	History     []Transition
}

// clone returns a deep-enough copy of r safe to hand to callers outside the
// registry's lock.
func (r Record) clone() Record {
	phases := make(map[string]Phase, len(r.Phases))
	for k, v := range r.Phases {
		phases[k] = v
	}
	history := make([]Transition, len(r.History))
	copy(history, r.History)
	return Record{GlobalState: r.GlobalState, Phases: phases, History: history}
}

// Registry is the thread-safe, process-wide table of per-battery
// authentication records, replacing the source's module-level dict.
type Registry struct {
	mu      sync.RWMutex
	records map[byte]*Record
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{records: make(map[byte]*Record)}
}

// Initialize creates a fresh record for id with all phases NOT_STARTED.
func (r *Registry) Initialize(id byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.initializeLocked(id)
}

func (r *Registry) initializeLocked(id byte) {
	now := time.Now()
	r.records[id] = &Record{
		GlobalState: Waiting,
		Phases: map[string]Phase{
			PhaseWakeUp:       {State: NotStarted, Message: "waiting to start", Timestamp: now},
			PhaseAuthenticate: {State: NotStarted, Message: "waiting to start", Timestamp: now},
			PhaseReadInfo:     {State: NotStarted, Message: "waiting to start", Timestamp: now},
		},
	}
}

// UpdatePhase transitions phase for id to state, appending a bounded
// transition entry and recomputing global state.
func (r *Registry) UpdatePhase(id byte, phase string, state PhaseState, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		r.initializeLocked(id)
		rec = r.records[id]
	}

	now := time.Now()
	rec.Phases[phase] = Phase{State: state, Message: message, Timestamp: now}
	rec.History = append(rec.History, Transition{Phase: phase, State: state, Message: message, Timestamp: now})
	if len(rec.History) > maxHistory {
		rec.History = rec.History[len(rec.History)-maxHistory:]
	}
	rec.GlobalState = deriveGlobalState(rec.Phases)
}

// deriveGlobalState applies the precedence order: FAILED dominates, then
// all-SUCCESS, then any-IN_PROGRESS, then any-SUCCESS (mixed counts as
// IN_PROGRESS), else WAITING.
func deriveGlobalState(phases map[string]Phase) GlobalState {
	allSuccess := true
	anyFailed := false
	anyInProgress := false
	anySuccess := false

	for _, p := range phases {
		switch p.State {
		case Failed:
			anyFailed = true
		case InProgress:
			anyInProgress = true
			allSuccess = false
		case Success:
			anySuccess = true
		default:
			allSuccess = false
		}
	}

	switch {
	case anyFailed:
		return GlobalFailed
	case allSuccess:
		return GlobalSuccess
	case anyInProgress:
		return GlobalProgress
	case anySuccess:
		return GlobalProgress
	default:
		return Waiting
	}
}

// Get returns a copy of id's record, or false if unknown.
func (r *Registry) Get(id byte) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return Record{}, false
	}
	return rec.clone(), true
}

// GetAll returns copies of every tracked record.
func (r *Registry) GetAll() map[byte]Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[byte]Record, len(r.records))
	for id, rec := range r.records {
		out[id] = rec.clone()
	}
	return out
}

// Reset reinitializes id's record.
func (r *Registry) Reset(id byte) {
	r.Initialize(id)
}

// ResetAll reinitializes every currently tracked record.
func (r *Registry) ResetAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id := range r.records {
		r.initializeLocked(id)
		n++
	}
	return n
}

// AllAuthenticated reports whether the set of known ids equals fleet and
// every one of them has global state SUCCESS.
func (r *Registry) AllAuthenticated(fleet []byte) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inFleet := make(map[byte]bool, len(fleet))
	for _, id := range fleet {
		rec, ok := r.records[id]
		if !ok || rec.GlobalState != GlobalSuccess {
			return false
		}
		inFleet[id] = true
	}
	return len(inFleet) == len(r.records)
}

// FailedIDs returns the subset of fleet that is not currently SUCCESS.
func (r *Registry) FailedIDs(fleet []byte) []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []byte
	for _, id := range fleet {
		rec, ok := r.records[id]
		if !ok || rec.GlobalState != GlobalSuccess {
			out = append(out, id)
		}
	}
	return out
}

// RecentHistory returns the last n transition entries for id, most recent
// last, mirroring the API formatter's last-5 display convention while the
// registry itself retains up to maxHistory.
func (r *Registry) RecentHistory(id byte, n int) []Transition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil
	}
	if n >= len(rec.History) {
		out := make([]Transition, len(rec.History))
		copy(out, rec.History)
		return out
	}
	out := make([]Transition, n)
	copy(out, rec.History[len(rec.History)-n:])
	return out
}
