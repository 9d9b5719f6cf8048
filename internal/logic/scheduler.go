package logic

import "github.com/sweeney/hydro-controller/internal/clock"

// Scheduler arbitrates the shared pump between the misting and flushing
// cycles. Flushing takes precedence: once it claims the pump, misting cannot
// start until flushing completes.
type Scheduler struct {
	timing     Timing
	misting    CycleState
	flushing   CycleState
	precedence bool
	pending    bool // FLUSHING_PENDING already emitted for the current claim
}

// NewScheduler creates a scheduler with both cycles idle and their countdowns
// starting at now.
func NewScheduler(timing Timing, now clock.Millis) *Scheduler {
	return &Scheduler{
		timing:   timing,
		misting:  CycleState{Start: now},
		flushing: CycleState{Start: now},
	}
}

// Step evaluates cycle transitions for one tick. Flushing is evaluated before
// misting. While halted both cycles are forced idle without touching their
// start times.
func (s *Scheduler) Step(now clock.Millis, halted bool) []Event {
	if halted {
		return s.forceIdle(now)
	}

	var events []Event
	events = append(events, s.stepFlushing(now)...)
	events = append(events, s.stepMisting(now)...)
	return events
}

func (s *Scheduler) stepFlushing(now clock.Millis) []Event {
	var events []Event

	if !s.flushing.Active && clock.Since(now, s.flushing.Start) >= s.timing.FlushingInterval {
		s.precedence = true
		if s.misting.Active {
			// Claim the pump; start once misting releases it.
			if !s.pending {
				s.pending = true
				events = append(events, Event{At: now, Type: EventFlushPending, Cycle: CycleFlushing, Trigger: TriggerAuto})
			}
		} else {
			events = append(events, s.startFlushing(now, TriggerAuto))
		}
	}

	if s.flushing.Active && clock.Since(now, s.flushing.Start) >= s.timing.FlushingDuration {
		s.flushing.Active = false
		s.precedence = false
		events = append(events, Event{At: now, Type: EventFlushingStop, Cycle: CycleFlushing, Trigger: TriggerComplete})
	}

	return events
}

func (s *Scheduler) stepMisting(now clock.Millis) []Event {
	var events []Event

	if !s.misting.Active && !s.flushing.Active && !s.precedence &&
		clock.Since(now, s.misting.Start) >= s.timing.MistingInterval {
		s.misting.Active = true
		s.misting.Start = now
		s.misting.Runs++
		events = append(events, Event{At: now, Type: EventMistingStart, Cycle: CycleMisting, Trigger: TriggerAuto})
	}

	if s.misting.Active && clock.Since(now, s.misting.Start) >= s.timing.MistingDuration {
		s.misting.Active = false
		events = append(events, Event{At: now, Type: EventMistingStop, Cycle: CycleMisting, Trigger: TriggerComplete})
	}

	return events
}

func (s *Scheduler) startFlushing(now clock.Millis, trigger Trigger) Event {
	s.flushing.Active = true
	s.flushing.Start = now
	s.flushing.Runs++
	s.precedence = true
	s.pending = false
	return Event{At: now, Type: EventFlushingStart, Cycle: CycleFlushing, Trigger: trigger}
}

func (s *Scheduler) forceIdle(now clock.Millis) []Event {
	var events []Event
	if s.flushing.Active {
		s.flushing.Active = false
		events = append(events, Event{At: now, Type: EventFlushingStop, Cycle: CycleFlushing, Trigger: TriggerHalt})
	}
	if s.misting.Active {
		s.misting.Active = false
		events = append(events, Event{At: now, Type: EventMistingStop, Cycle: CycleMisting, Trigger: TriggerHalt})
	}
	s.precedence = false
	s.pending = false
	return events
}

// RequestFlush starts a manual flush. It is rejected with no state change
// when halted or when either cycle already holds the pump.
func (s *Scheduler) RequestFlush(now clock.Millis, halted bool) (Outcome, []Event) {
	if halted {
		return OutcomeRejectedHalted, nil
	}
	if s.misting.Active || s.flushing.Active {
		return OutcomeRejectedBusy, nil
	}
	return OutcomeApplied, []Event{s.startFlushing(now, TriggerManual)}
}

// Output returns which claimants want the pump right now.
func (s *Scheduler) Output() Output {
	return Output{Misting: s.misting.Active, Flushing: s.flushing.Active}
}

// Misting returns a copy of the misting cycle state.
func (s *Scheduler) Misting() CycleState {
	return s.misting
}

// Flushing returns a copy of the flushing cycle state.
func (s *Scheduler) Flushing() CycleState {
	return s.flushing
}

// Precedence reports whether flushing holds or has claimed the pump.
func (s *Scheduler) Precedence() bool {
	return s.precedence
}

// Timing returns the configured cycle timing.
func (s *Scheduler) Timing() Timing {
	return s.timing
}
