//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealWriter drives relays from actual hardware using Linux GPIO character device.
type RealWriter struct {
	chip  *gpiocdev.Chip
	lines map[Line]*gpiocdev.Line
	idle  int
}

// NewRealWriter requests the pump and light pins as outputs, initially at
// the idle (relay off) level.
func NewRealWriter(chipName string, pinPump, pinLight, idle int) (*RealWriter, error) {
	if chipName == "" {
		chipName = "gpiochip0"
	}
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	pump, err := chip.RequestLine(pinPump, gpiocdev.AsOutput(idle))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request pump pin %d: %w", pinPump, err)
	}

	light, err := chip.RequestLine(pinLight, gpiocdev.AsOutput(idle))
	if err != nil {
		pump.Close()
		chip.Close()
		return nil, fmt.Errorf("request light pin %d: %w", pinLight, err)
	}

	return &RealWriter{
		chip:  chip,
		lines: map[Line]*gpiocdev.Line{LinePump: pump, LineLight: light},
		idle:  idle,
	}, nil
}

// Write sets the physical level of a line.
func (w *RealWriter) Write(line Line, value int) error {
	l, ok := w.lines[line]
	if !ok {
		return fmt.Errorf("write %s: unknown line", line)
	}
	if err := l.SetValue(value); err != nil {
		return fmt.Errorf("write %s: %w", line, err)
	}
	return nil
}

// releaseBias returns the pull that holds a released line at the idle level,
// so an active-low relay board stays off once the pins become inputs.
func releaseBias(idle int) gpiocdev.LineBias {
	if idle == 1 {
		return gpiocdev.WithPullUp
	}
	return gpiocdev.WithPullDown
}

// Close drives every line to the idle level, then returns them to inputs
// biased toward that level before releasing the chip.
func (w *RealWriter) Close() error {
	var errs []error

	for _, line := range []Line{LinePump, LineLight} {
		l := w.lines[line]
		if l == nil {
			continue
		}
		if err := l.SetValue(w.idle); err != nil {
			errs = append(errs, fmt.Errorf("idle %s pin: %w", line, err))
		}
		if err := l.Reconfigure(gpiocdev.AsInput, releaseBias(w.idle)); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s pin: %w", line, err))
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pin: %w", line, err))
		}
	}
	if w.chip != nil {
		if err := w.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	return errors.Join(errs...)
}
