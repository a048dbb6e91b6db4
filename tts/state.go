package tts

import "time"

// StateType represents the playback controller's state.
type StateType int

const (
	// StateIdle indicates nothing is speaking and the queue head, if any,
	// has not been looked at yet.
	StateIdle StateType = iota
	// StateWaitingForLoad indicates the queue head is still loading.
	StateWaitingForLoad
	// StateSpeaking indicates a clip occupies the speaking slot.
	StateSpeaking
	// StatePaused indicates the speaking clip is held by the player.
	StatePaused
)

// String returns the string representation of the state.
func (s StateType) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaitingForLoad:
		return "waiting"
	case StateSpeaking:
		return "speaking"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Status is a snapshot of the speaker for hosts and status lines.
type Status struct {
	CurrentState   StateType     // Controller state
	Initialized    bool          // Init has run and Shutdown has not
	Paused         bool          // Pause flag, independent of the slot
	QueueLength    int           // Requests waiting behind the slot
	SpeakingText   string        // Text of the speaking request, if any
	Elapsed        time.Duration // Unpaused time since the clip started
	ElapsedSamples int           // Monotonic sample position in the clip
	TotalSamples   int           // Samples in the clip stream so far
	LastError      error         // Error of the most recently retired request
}

// IsActive returns true if a request is speaking or paused.
func (s *Status) IsActive() bool {
	return s.CurrentState == StateSpeaking || s.CurrentState == StatePaused
}

// IsBusy returns true if anything is speaking or queued.
func (s *Status) IsBusy() bool {
	return s.IsActive() || s.QueueLength > 0
}

// Progress returns the fraction of the clip played, 0 when unknown.
func (s *Status) Progress() float64 {
	if s.TotalSamples <= 0 {
		return 0
	}
	p := float64(s.ElapsedSamples) / float64(s.TotalSamples)
	if p > 1 {
		p = 1
	}
	return p
}

// StateMachine manages state transitions for the playback controller.
type StateMachine struct {
	current     StateType
	transitions map[StateType][]StateType
	onEnter     map[StateType]func()
	onExit      map[StateType]func()
}

// NewStateMachine creates a new state machine with valid transitions.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		current: StateIdle,
		transitions: map[StateType][]StateType{
			StateIdle:           {StateWaitingForLoad, StateSpeaking, StatePaused},
			StateWaitingForLoad: {StateIdle, StateSpeaking, StatePaused},
			StateSpeaking:       {StateIdle, StatePaused},
			StatePaused:         {StateIdle, StateSpeaking},
		},
		onEnter: make(map[StateType]func()),
		onExit:  make(map[StateType]func()),
	}
}

// Transition attempts to transition to the specified state. Moving to the
// current state is accepted and runs no callbacks.
func (sm *StateMachine) Transition(to StateType) bool {
	if sm.current == to {
		return true
	}

	if !sm.CanTransition(to) {
		return false
	}

	if exitFn, ok := sm.onExit[sm.current]; ok && exitFn != nil {
		exitFn()
	}

	sm.current = to

	if enterFn, ok := sm.onEnter[to]; ok && enterFn != nil {
		enterFn()
	}

	return true
}

// CanTransition reports whether the move from the current state is allowed.
func (sm *StateMachine) CanTransition(to StateType) bool {
	for _, state := range sm.transitions[sm.current] {
		if state == to {
			return true
		}
	}
	return false
}

// Current returns the current state.
func (sm *StateMachine) Current() StateType {
	return sm.current
}

// OnEnter registers a callback for entering a state.
func (sm *StateMachine) OnEnter(state StateType, fn func()) {
	sm.onEnter[state] = fn
}

// OnExit registers a callback for exiting a state.
func (sm *StateMachine) OnExit(state StateType, fn func()) {
	sm.onExit[state] = fn
}
