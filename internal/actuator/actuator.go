// Package actuator maps scheduler intent and light readings onto the relay
// lines.
package actuator

import (
	"errors"
	"fmt"

	"github.com/sweeney/hydro-controller/internal/gpio"
	"github.com/sweeney/hydro-controller/internal/logic"
)

// LightThreshold is the lux reading below which the grow light turns on.
const LightThreshold = 300.0

// Polarity selects the physical level that energizes a relay.
type Polarity string

const (
	ActiveHigh Polarity = "active_high"
	ActiveLow  Polarity = "active_low"
)

// ParsePolarity validates a config value.
func ParsePolarity(s string) (Polarity, error) {
	switch p := Polarity(s); p {
	case ActiveHigh, ActiveLow:
		return p, nil
	default:
		return "", fmt.Errorf("unknown relay polarity %q", s)
	}
}

// Level returns the physical level for the logical state on.
func (p Polarity) Level(on bool) int {
	if on == (p != ActiveLow) {
		return 1
	}
	return 0
}

// Signals is the logical state of both relays.
type Signals struct {
	Pump  bool
	Light bool
}

// Decide computes relay states. Nothing is energized while halted.
func Decide(out logic.Output, lux float64, halted bool) Signals {
	if halted {
		return Signals{}
	}
	return Signals{
		Pump:  out.Pump(),
		Light: lux < LightThreshold,
	}
}

// Driver writes relay states every tick.
// Not safe for concurrent use; the control loop owns it.
type Driver struct {
	w          gpio.Writer
	polarity   Polarity
	wasHalted  bool
	lastSignal Signals
}

// NewDriver returns a Driver writing through w.
func NewDriver(w gpio.Writer, polarity Polarity) *Driver {
	return &Driver{w: w, polarity: polarity}
}

// Apply decides and writes both lines. On the tick halt is first observed
// both lines are forced off before the regular write. Every failed write is
// reported; the remaining writes still happen.
func (d *Driver) Apply(out logic.Output, lux float64, halted bool) (Signals, error) {
	var errs []error
	if halted && !d.wasHalted {
		if err := d.ForceOff(); err != nil {
			errs = append(errs, err)
		}
	}
	d.wasHalted = halted

	sig := Decide(out, lux, halted)
	if err := d.w.Write(gpio.LinePump, d.polarity.Level(sig.Pump)); err != nil {
		errs = append(errs, err)
	}
	if err := d.w.Write(gpio.LineLight, d.polarity.Level(sig.Light)); err != nil {
		errs = append(errs, err)
	}
	d.lastSignal = sig
	return sig, errors.Join(errs...)
}

// ForceOff writes the off level to both lines regardless of state.
func (d *Driver) ForceOff() error {
	off := d.polarity.Level(false)
	return errors.Join(
		d.w.Write(gpio.LinePump, off),
		d.w.Write(gpio.LineLight, off),
	)
}

// Last returns the signals written by the most recent Apply.
func (d *Driver) Last() Signals {
	return d.lastSignal
}
