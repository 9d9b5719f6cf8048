// Package status provides a thread-safe view of controller state for the
// dashboard, MQTT system events and metrics.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/hydro-controller/internal/actuator"
	"github.com/sweeney/hydro-controller/internal/clock"
	"github.com/sweeney/hydro-controller/internal/nutrient"
	"github.com/sweeney/hydro-controller/internal/sensor"
)

// Config contains controller configuration for display.
type Config struct {
	TickMs      int64
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
	Device      string
}

// State is what the controller publishes after each tick.
type State struct {
	Sample     sensor.Sample
	HaveSample bool
	Advice     nutrient.Advice
	Misting    CycleView
	Flushing   CycleView
	Halted     bool
	Precedence bool
	Signals    actuator.Signals
	Uptime     clock.Millis
}

// Snapshot is a point-in-time view of controller state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	State
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Tracker holds the latest controller state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
			State: State{
				Misting:  CycleView{Status: MsgPumpOff, Next: "--", Last: MsgNotYet},
				Flushing: CycleView{Status: MsgPumpOff, Next: "--", Last: MsgNotYet},
				Advice: nutrient.Advice{
					PH: nutrient.DoseAdvice{Status: nutrient.StatusOK},
					EC: nutrient.DoseAdvice{Status: nutrient.StatusOK},
				},
			},
		},
		now: time.Now,
	}
}

// Update replaces the controller state. Called once per tick.
func (t *Tracker) Update(s State) {
	t.mu.Lock()
	t.snap.State = s
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the controller state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
