package match

import "time"

// Timings configures the timed transitions and room reclamation.
type Timings struct {
	Countdown  time.Duration
	RoundEnd   time.Duration
	EmptyGrace time.Duration
}

// DefaultTimings returns the standard match pacing.
func DefaultTimings() Timings {
	return Timings{
		Countdown:  5 * time.Second,
		RoundEnd:   2 * time.Second,
		EmptyGrace: 2 * time.Minute,
	}
}

// Machine applies game transitions with a fixed set of timings.
type Machine struct {
	Timings Timings
}

// NewMachine creates a Machine. Zero durations fall back to the defaults.
func NewMachine(t Timings) Machine {
	def := DefaultTimings()
	if t.Countdown <= 0 {
		t.Countdown = def.Countdown
	}
	if t.RoundEnd <= 0 {
		t.RoundEnd = def.RoundEnd
	}
	if t.EmptyGrace <= 0 {
		t.EmptyGrace = def.EmptyGrace
	}
	return Machine{Timings: t}
}
