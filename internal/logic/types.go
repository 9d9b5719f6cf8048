// Package logic contains the pure scheduling logic for the misting and
// flushing cycles.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injected as clock.Millis parameters.
package logic

import (
	"errors"
	"fmt"

	"github.com/sweeney/hydro-controller/internal/clock"
)

// Cycle names one of the two pump claimants.
type Cycle string

const (
	CycleMisting  Cycle = "misting"
	CycleFlushing Cycle = "flushing"
)

// EventType represents a cycle or system transition.
type EventType string

const (
	EventMistingStart  EventType = "MISTING_START"
	EventMistingStop   EventType = "MISTING_STOP"
	EventFlushingStart EventType = "FLUSHING_START"
	EventFlushingStop  EventType = "FLUSHING_STOP"
	EventFlushPending  EventType = "FLUSHING_PENDING"
	EventFlushRejected EventType = "FLUSH_REJECTED"
	EventHalt          EventType = "HALT"
	EventResume        EventType = "RESUME"
)

// Trigger records why a transition happened.
type Trigger string

const (
	TriggerAuto     Trigger = "auto"
	TriggerManual   Trigger = "manual"
	TriggerComplete Trigger = "complete"
	TriggerHalt     Trigger = "halt"
	TriggerOperator Trigger = "operator"
)

// Event represents a transition to be logged and published.
type Event struct {
	At      clock.Millis
	Type    EventType
	Cycle   Cycle // empty for system events
	Trigger Trigger
}

// CycleState tracks one cycle.
type CycleState struct {
	// Active is true while the cycle energizes the pump.
	Active bool
	// Start is the reading at the most recent entry into Active, or the
	// scheduler's creation time before the first run.
	Start clock.Millis
	// Runs counts entries into Active.
	Runs uint64
}

// Output is the scheduler's actuator intent for one tick.
type Output struct {
	Misting  bool
	Flushing bool
}

// Pump reports whether either claimant wants the shared pump line energized.
func (o Output) Pump() bool {
	return o.Misting || o.Flushing
}

// Outcome is the result of an operator command.
type Outcome int

const (
	OutcomeApplied Outcome = iota
	OutcomeRejectedBusy
	OutcomeRejectedHalted
	OutcomeInvalid // not a known command; nothing changed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeRejectedBusy:
		return "rejected_busy"
	case OutcomeRejectedHalted:
		return "rejected_halted"
	case OutcomeInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Timing holds cycle intervals and durations.
type Timing struct {
	MistingInterval  clock.Millis
	MistingDuration  clock.Millis
	FlushingInterval clock.Millis
	FlushingDuration clock.Millis
}

// DefaultTiming returns the stock rig timing: mist 30s every 7m, flush 5m
// every 7 days.
func DefaultTiming() Timing {
	return Timing{
		MistingInterval:  7 * clock.Minute,
		MistingDuration:  30 * clock.Second,
		FlushingInterval: 7 * clock.Day,
		FlushingDuration: 5 * clock.Minute,
	}
}

// Validate checks that every span is set and each duration fits inside its
// interval.
func (t Timing) Validate() error {
	var errs []error
	if t.MistingInterval == 0 || t.MistingDuration == 0 {
		errs = append(errs, errors.New("misting interval and duration must be > 0"))
	} else if t.MistingDuration >= t.MistingInterval {
		errs = append(errs, fmt.Errorf("misting duration %d ms must be shorter than interval %d ms", t.MistingDuration, t.MistingInterval))
	}
	if t.FlushingInterval == 0 || t.FlushingDuration == 0 {
		errs = append(errs, errors.New("flushing interval and duration must be > 0"))
	} else if t.FlushingDuration >= t.FlushingInterval {
		errs = append(errs, fmt.Errorf("flushing duration %d ms must be shorter than interval %d ms", t.FlushingDuration, t.FlushingInterval))
	}
	return errors.Join(errs...)
}
