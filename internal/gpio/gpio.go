// Package gpio provides relay output lines with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "fmt"

// Line identifies one relay output.
type Line int

const (
	LinePump  Line = iota // shared by misting and flushing
	LineLight             // grow light
)

func (l Line) String() string {
	switch l {
	case LinePump:
		return "pump"
	case LineLight:
		return "light"
	default:
		return fmt.Sprintf("line(%d)", int(l))
	}
}

// Writer drives relay output lines.
type Writer interface {
	// Write sets the physical level (0 or 1) of a line.
	Write(line Line, value int) error

	// Close releases GPIO resources.
	Close() error
}

// Default pin definitions (BCM numbering)
const (
	DefaultPinPump  = 16
	DefaultPinLight = 17
)
