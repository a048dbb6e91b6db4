package tts

import (
	"testing"
	"time"
)

func TestStateMachineTransitions(t *testing.T) {
	tests := []struct {
		name  string
		from  StateType
		to    StateType
		valid bool
	}{
		{"idle to waiting", StateIdle, StateWaitingForLoad, true},
		{"idle to speaking", StateIdle, StateSpeaking, true},
		{"idle to paused", StateIdle, StatePaused, true},
		{"waiting to speaking", StateWaitingForLoad, StateSpeaking, true},
		{"waiting to idle", StateWaitingForLoad, StateIdle, true},
		{"speaking to paused", StateSpeaking, StatePaused, true},
		{"speaking to idle", StateSpeaking, StateIdle, true},
		{"speaking to waiting", StateSpeaking, StateWaitingForLoad, false},
		{"paused to speaking", StatePaused, StateSpeaking, true},
		{"paused to waiting", StatePaused, StateWaitingForLoad, false},
		{"same state", StateSpeaking, StateSpeaking, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm := NewStateMachine()
			sm.current = tt.from

			if got := sm.Transition(tt.to); got != tt.valid {
				t.Errorf("Transition(%v -> %v) = %v, want %v", tt.from, tt.to, got, tt.valid)
			}
			want := tt.from
			if tt.valid {
				want = tt.to
			}
			if sm.Current() != want {
				t.Errorf("Current() = %v, want %v", sm.Current(), want)
			}
		})
	}
}

func TestStateMachineCallbacks(t *testing.T) {
	sm := NewStateMachine()
	var calls []string
	sm.OnExit(StateIdle, func() { calls = append(calls, "exit idle") })
	sm.OnEnter(StateSpeaking, func() { calls = append(calls, "enter speaking") })

	sm.Transition(StateSpeaking)
	sm.Transition(StateSpeaking)

	if len(calls) != 2 || calls[0] != "exit idle" || calls[1] != "enter speaking" {
		t.Errorf("callbacks = %v", calls)
	}
}

func TestStateTypeString(t *testing.T) {
	tests := map[StateType]string{
		StateIdle:           "idle",
		StateWaitingForLoad: "waiting",
		StateSpeaking:       "speaking",
		StatePaused:         "paused",
		StateType(42):       "unknown",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(state), got, want)
		}
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name     string
		status   Status
		active   bool
		busy     bool
		progress float64
	}{
		{name: "idle", status: Status{CurrentState: StateIdle}},
		{name: "waiting with queue", status: Status{CurrentState: StateWaitingForLoad, QueueLength: 2}, busy: true},
		{
			name:     "speaking halfway",
			status:   Status{CurrentState: StateSpeaking, ElapsedSamples: 50, TotalSamples: 100, Elapsed: time.Second},
			active:   true,
			busy:     true,
			progress: 0.5,
		},
		{
			name:     "paused past the end",
			status:   Status{CurrentState: StatePaused, ElapsedSamples: 120, TotalSamples: 100},
			active:   true,
			busy:     true,
			progress: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.IsActive(); got != tt.active {
				t.Errorf("IsActive() = %v, want %v", got, tt.active)
			}
			if got := tt.status.IsBusy(); got != tt.busy {
				t.Errorf("IsBusy() = %v, want %v", got, tt.busy)
			}
			if got := tt.status.Progress(); got != tt.progress {
				t.Errorf("Progress() = %v, want %v", got, tt.progress)
			}
		})
	}
}
