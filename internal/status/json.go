package status

import (
	"encoding/json"
	"strconv"
	"time"
)

// Decimal is a float rendered with a fixed number of fractional digits.
type Decimal struct {
	Value  float64
	Places int
}

// MarshalJSON writes the value as a bare JSON number.
func (d Decimal) MarshalJSON() ([]byte, error) {
	return strconv.AppendFloat(nil, d.Value, 'f', d.Places, 64), nil
}

// UnmarshalJSON reads a JSON number.
func (d *Decimal) UnmarshalJSON(b []byte) error {
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	d.Value = v
	return nil
}

// Readings is the dashboard polling document.
type Readings struct {
	PH        Decimal `json:"pH"`
	EC        Decimal `json:"EC"`
	TDS       Decimal `json:"TDS"`
	Light     Decimal `json:"light"`
	PHStatus  string  `json:"ph_status"`
	PHDoseMsg string  `json:"ph_dose_msg"`
	ECStatus  string  `json:"ec_status"`
	ECDoseMsg string  `json:"ec_dose_msg"`

	MistingStatusMsg  string `json:"misting_status_msg"`
	NextMistingMsg    string `json:"next_misting_msg"`
	LastMistingMsg    string `json:"last_misting_msg"`
	FlushingStatusMsg string `json:"flushing_status_msg"`
	NextFlushingMsg   string `json:"next_flushing_msg"`
	LastFlushingMsg   string `json:"last_flushing_msg"`

	IsMisting       bool   `json:"is_misting"`
	IsFlushing      bool   `json:"is_flushing"`
	SystemHalted    bool   `json:"system_halted"`
	FlushPrecedence bool   `json:"flush_precedence"`
	PumpOn          bool   `json:"pump_on"`
	LightOn         bool   `json:"light_on"`
	UptimeMs        uint64 `json:"uptime_ms"`
}

// BuildReadings converts a snapshot into the polling document.
func BuildReadings(snap Snapshot) Readings {
	return Readings{
		PH:        Decimal{Value: snap.Sample.PH, Places: 2},
		EC:        Decimal{Value: snap.Sample.EC, Places: 1},
		TDS:       Decimal{Value: snap.Sample.TDS, Places: 1},
		Light:     Decimal{Value: snap.Sample.Lux, Places: 1},
		PHStatus:  string(snap.Advice.PH.Status),
		PHDoseMsg: snap.Advice.PH.Message,
		ECStatus:  string(snap.Advice.EC.Status),
		ECDoseMsg: snap.Advice.EC.Message,

		MistingStatusMsg:  snap.Misting.Status,
		NextMistingMsg:    snap.Misting.Next,
		LastMistingMsg:    snap.Misting.Last,
		FlushingStatusMsg: snap.Flushing.Status,
		NextFlushingMsg:   snap.Flushing.Next,
		LastFlushingMsg:   snap.Flushing.Last,

		IsMisting:       snap.Misting.Active,
		IsFlushing:      snap.Flushing.Active,
		SystemHalted:    snap.Halted,
		FlushPrecedence: snap.Precedence,
		PumpOn:          snap.Signals.Pump,
		LightOn:         snap.Signals.Light,
		UptimeMs:        uint64(snap.Uptime),
	}
}

// FormatReadings returns the polling document as JSON.
func FormatReadings(snap Snapshot) []byte {
	data, _ := json.Marshal(BuildReadings(snap))
	return data
}

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Device        string       `json:"device,omitempty"`
	Halted        bool         `json:"halted"`
	Precedence    bool         `json:"flush_precedence"`
	Pump          bool         `json:"pump"`
	Light         bool         `json:"light"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Sensors       *SensorsJSON `json:"sensors,omitempty"`
	Misting       CycleJSON    `json:"misting"`
	Flushing      CycleJSON    `json:"flushing"`
	Config        ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// SensorsJSON is the JSON representation of the latest sample and advice.
type SensorsJSON struct {
	PH       Decimal `json:"ph"`
	EC       Decimal `json:"ec"`
	TDS      Decimal `json:"tds"`
	Lux      Decimal `json:"lux"`
	PHStatus string  `json:"ph_status"`
	ECStatus string  `json:"ec_status"`
}

// CycleJSON is the JSON representation of one cycle.
type CycleJSON struct {
	Active bool   `json:"active"`
	Runs   uint64 `json:"runs"`
	Status string `json:"status"`
	Next   string `json:"next"`
	Last   string `json:"last"`
}

// ConfigJSON is the JSON representation of controller config.
type ConfigJSON struct {
	TickMs      int64  `json:"tick_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
}

func cycleJSON(v CycleView) CycleJSON {
	return CycleJSON{Active: v.Active, Runs: v.Runs, Status: v.Status, Next: v.Next, Last: v.Last}
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Device:        snap.Config.Device,
		Halted:        snap.Halted,
		Precedence:    snap.Precedence,
		Pump:          snap.Signals.Pump,
		Light:         snap.Signals.Light,
		UptimeSeconds: int64(snap.Uptime / 1000),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Misting:       cycleJSON(snap.Misting),
		Flushing:      cycleJSON(snap.Flushing),
		Config: ConfigJSON{
			TickMs:      snap.Config.TickMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}
	if snap.HaveSample {
		inner.Sensors = &SensorsJSON{
			PH:       Decimal{Value: snap.Sample.PH, Places: 2},
			EC:       Decimal{Value: snap.Sample.EC, Places: 1},
			TDS:      Decimal{Value: snap.Sample.TDS, Places: 1},
			Lux:      Decimal{Value: snap.Sample.Lux, Places: 1},
			PHStatus: string(snap.Advice.PH.Status),
			ECStatus: string(snap.Advice.EC.Status),
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
