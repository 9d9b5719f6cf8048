package status

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/hydro-controller/internal/actuator"
	"github.com/sweeney/hydro-controller/internal/clock"
	"github.com/sweeney/hydro-controller/internal/nutrient"
	"github.com/sweeney/hydro-controller/internal/sensor"
)

func sampleState() State {
	return State{
		Sample:     sensor.Sample{PH: 5.0, EC: 1700, TDS: 1088, Lux: 120.04},
		HaveSample: true,
		Advice:     nutrient.Advise(5.0, 1700),
		Misting:    CycleView{Active: true, Runs: 3, Status: "Pump ON, 0 m 12 s left", Next: MsgInProgress, Last: "00:21:00"},
		Flushing:   CycleView{Status: MsgPumpOff, Next: "06:23:38:00", Last: MsgNotYet},
		Signals:    actuator.Signals{Pump: true, Light: true},
		Uptime:     15 * clock.Minute,
	}
}

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{TickMs: 100, HeartbeatMs: 900000, Broker: "tcp://localhost:1883", HTTPAddr: ":80"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.TickMs != 100 {
		t.Errorf("Config.TickMs: got %d, want 100", snap.Config.TickMs)
	}
	if snap.Config.HTTPAddr != ":80" {
		t.Errorf("Config.HTTPAddr: got %q, want %q", snap.Config.HTTPAddr, ":80")
	}
	if snap.HaveSample {
		t.Error("expected HaveSample=false initially")
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
	if snap.Misting.Status != MsgPumpOff || snap.Misting.Last != MsgNotYet {
		t.Errorf("Misting: got %+v, want pump off and N/A", snap.Misting)
	}
	if snap.Advice.PH.Status != nutrient.StatusOK {
		t.Errorf("Advice.PH.Status: got %q, want ok", snap.Advice.PH.Status)
	}
}

func TestUpdateAndSnapshot(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.Update(sampleState())

	snap := tr.Snapshot()
	if !snap.Misting.Active {
		t.Error("expected Misting.Active=true")
	}
	if snap.Misting.Runs != 3 {
		t.Errorf("Misting.Runs: got %d, want 3", snap.Misting.Runs)
	}
	if !snap.Signals.Pump {
		t.Error("expected Signals.Pump=true")
	}
	if snap.Advice.EC.Status != nutrient.StatusHigh {
		t.Errorf("Advice.EC.Status: got %q, want high", snap.Advice.EC.Status)
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}

	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestUpdateKeepsConnectionState(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.SetMQTTConnected(true)

	tr.Update(sampleState())

	if !tr.Snapshot().MQTTConnected {
		t.Error("Update should not reset MQTTConnected")
	}
}

func TestSnapshotNowIsSet(t *testing.T) {
	tr := NewTracker(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Config{})

	before := time.Now()
	snap := tr.Snapshot()
	after := time.Now()

	if snap.Now.Before(before) || snap.Now.After(after) {
		t.Errorf("Now (%v) not between %v and %v", snap.Now, before, after)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.Update(sampleState())

	snap1 := tr.Snapshot()

	tr.Update(State{Halted: true})

	// snap1 should still reflect old state
	if !snap1.Misting.Active {
		t.Error("snapshot should be a copy; Misting was modified")
	}
	if snap1.Halted {
		t.Error("snapshot should be a copy; Halted was modified")
	}
}

func TestFormatReadings(t *testing.T) {
	snap := Snapshot{State: sampleState()}
	data := FormatReadings(snap)

	var parsed map[string]interface{}
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	for _, key := range []string{
		"pH", "EC", "TDS", "light", "ph_status", "ph_dose_msg", "ec_status", "ec_dose_msg",
		"misting_status_msg", "next_misting_msg", "last_misting_msg",
		"flushing_status_msg", "next_flushing_msg", "last_flushing_msg",
		"is_misting", "is_flushing", "system_halted", "flush_precedence",
		"pump_on", "light_on", "uptime_ms",
	} {
		if _, ok := parsed[key]; !ok {
			t.Errorf("missing key %q", key)
		}
	}

	if parsed["ph_status"] != "low" {
		t.Errorf("ph_status: got %v, want low", parsed["ph_status"])
	}
	if parsed["ec_dose_msg"] != "ALERT: EC is too high! Dilute with fresh water." {
		t.Errorf("ec_dose_msg: got %v", parsed["ec_dose_msg"])
	}
	if parsed["next_flushing_msg"] != "06:23:38:00" {
		t.Errorf("next_flushing_msg: got %v", parsed["next_flushing_msg"])
	}
	if parsed["is_misting"] != true {
		t.Errorf("is_misting: got %v, want true", parsed["is_misting"])
	}
	if parsed["uptime_ms"] != float64(900000) {
		t.Errorf("uptime_ms: got %v, want 900000", parsed["uptime_ms"])
	}
}

func TestFormatReadingsPrecision(t *testing.T) {
	snap := Snapshot{State: State{Sample: sensor.Sample{PH: 6.123456, EC: 1234.5678, TDS: 790.1234, Lux: 120.04}}}
	data := string(FormatReadings(snap))

	for _, want := range []string{`"pH":6.12`, `"EC":1234.6`, `"TDS":790.1`, `"light":120.0`} {
		if !strings.Contains(data, want) {
			t.Errorf("expected %s in %s", want, data)
		}
	}
}

func TestDecimalRoundTrip(t *testing.T) {
	var r Readings
	if err := json.Unmarshal(FormatReadings(Snapshot{State: sampleState()}), &r); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if r.PH.Value != 5.0 {
		t.Errorf("PH: got %v, want 5", r.PH.Value)
	}
	if r.Light.Value != 120.0 {
		t.Errorf("Light: got %v, want 120.0", r.Light.Value)
	}
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		State:         sampleState(),
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
		Config:        Config{TickMs: 100, HeartbeatMs: 900000, Broker: "tcp://localhost:1883", HTTPAddr: ":80", Device: "rig-1"},
	}

	data := FormatJSON(snap)

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", parsed.Status.UptimeSeconds)
	}
	if !parsed.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if parsed.Status.Device != "rig-1" {
		t.Errorf("Device: got %q, want rig-1", parsed.Status.Device)
	}
	if parsed.Status.Sensors == nil {
		t.Fatal("expected sensors block")
	}
	if parsed.Status.Sensors.PHStatus != "low" {
		t.Errorf("Sensors.PHStatus: got %q, want low", parsed.Status.Sensors.PHStatus)
	}
	if parsed.Status.Misting.Runs != 3 {
		t.Errorf("Misting.Runs: got %d, want 3", parsed.Status.Misting.Runs)
	}
	// Event and Reason should be omitted
	if parsed.Status.Event != "" {
		t.Errorf("expected empty Event for web format, got %q", parsed.Status.Event)
	}
	if parsed.Status.Reason != "" {
		t.Errorf("expected empty Reason for web format, got %q", parsed.Status.Reason)
	}
}

func TestFormatJSONBeforeFirstSample(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}

	var parsed StatusJSON
	json.Unmarshal(FormatJSON(snap), &parsed)

	if parsed.Status.Sensors != nil {
		t.Errorf("expected no sensors block before first sample, got %+v", parsed.Status.Sensors)
	}
}

func TestFormatStatusEventShutdown(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		State:     State{Halted: true, Uptime: 30 * clock.Minute},
		StartTime: start,
		Now:       start.Add(30 * time.Minute),
		Config:    Config{Broker: "tcp://localhost:1883"},
	}

	data := FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Event != "SHUTDOWN" {
		t.Errorf("Event: got %q, want SHUTDOWN", parsed.Status.Event)
	}
	if parsed.Status.Reason != "SIGTERM" {
		t.Errorf("Reason: got %q, want SIGTERM", parsed.Status.Reason)
	}
	if !parsed.Status.Halted {
		t.Error("expected Halted=true")
	}
	if parsed.Status.UptimeSeconds != 1800 {
		t.Errorf("UptimeSeconds: got %d, want 1800", parsed.Status.UptimeSeconds)
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}

	data := FormatStatusEvent(snap, "STARTUP", "")

	// Verify "reason" is not in the raw JSON output
	var raw map[string]interface{}
	json.Unmarshal(data, &raw)
	status := raw["status"].(map[string]interface{})
	if _, exists := status["reason"]; exists {
		t.Error("reason should be omitted when empty")
	}
	if status["event"] != "STARTUP" {
		t.Errorf("event: got %v, want STARTUP", status["event"])
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup

	// Writer
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			s := sampleState()
			s.Uptime = clock.Millis(i)
			tr.Update(s)
			tr.SetMQTTConnected(i%2 == 0)
		}
	}()

	// Reader
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			_ = FormatReadings(tr.Snapshot())
		}
	}()

	wg.Wait()
}
