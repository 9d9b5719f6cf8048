package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/hydro-controller/internal/actuator"
	"github.com/sweeney/hydro-controller/internal/controller"
	"github.com/sweeney/hydro-controller/internal/logic"
	"github.com/sweeney/hydro-controller/internal/nutrient"
	"github.com/sweeney/hydro-controller/internal/sensor"
	"github.com/sweeney/hydro-controller/internal/status"
)

func TestObserveStateSetsGauges(t *testing.T) {
	m := New()

	m.ObserveState(status.State{
		Sample:     sensor.Sample{PH: 6.1, EC: 1200, TDS: 768, Lux: 120},
		HaveSample: true,
		Misting:    status.CycleView{Active: true},
		Precedence: true,
		Signals:    actuator.Signals{Pump: true, Light: true},
	})

	assert.InDelta(t, 6.1, testutil.ToFloat64(m.ph), 1e-9)
	assert.InDelta(t, 1200, testutil.ToFloat64(m.ec), 1e-9)
	assert.InDelta(t, 768, testutil.ToFloat64(m.tds), 1e-9)
	assert.InDelta(t, 120, testutil.ToFloat64(m.lux), 1e-9)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pumpOn))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lightOn))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.halted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.precedence))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cycle.WithLabelValues("misting")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.cycle.WithLabelValues("flushing")))
}

func TestObserveStateWithoutSampleLeavesReadings(t *testing.T) {
	m := New()
	m.ObserveState(status.State{Sample: sensor.Sample{PH: 6.0}, HaveSample: true})
	m.ObserveState(status.State{Halted: true})

	assert.InDelta(t, 6.0, testutil.ToFloat64(m.ph), 1e-9)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.halted))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.pumpOn))
}

func TestObserveCountsReport(t *testing.T) {
	m := New()

	m.Observe(controller.Report{
		Results: []controller.Result{
			{Kind: controller.CommandFlush, Outcome: logic.OutcomeApplied},
			{Kind: controller.CommandFlush, Outcome: logic.OutcomeRejectedBusy},
			{Kind: controller.CommandHalt, Outcome: logic.OutcomeApplied},
		},
		Events: []logic.Event{
			{Type: logic.EventFlushingStart, Cycle: logic.CycleFlushing, Trigger: logic.TriggerManual},
			{Type: logic.EventFlushRejected, Cycle: logic.CycleFlushing, Trigger: logic.TriggerManual},
			{Type: logic.EventMistingStart, Cycle: logic.CycleMisting, Trigger: logic.TriggerAuto},
			{Type: logic.EventMistingStop, Cycle: logic.CycleMisting, Trigger: logic.TriggerComplete},
		},
		Alerts: []nutrient.Alert{
			{Channel: nutrient.ChannelPH, Advice: nutrient.DoseAdvice{Status: nutrient.StatusLow}},
		},
		SensorErr:   errors.New("read adc: bus error"),
		ActuatorErr: errors.New("write pump: busy"),
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.commands.WithLabelValues("flush", "applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commands.WithLabelValues("flush", "rejected_busy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commands.WithLabelValues("halt", "applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cycleStarts.WithLabelValues("flushing", "manual")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cycleStarts.WithLabelValues("misting", "auto")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.cycleStarts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.alerts.WithLabelValues("ph", "low")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sensorErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.actuatorErrors))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveState(status.State{Signals: actuator.Signals{Pump: true}})

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(body)

	assert.True(t, strings.Contains(text, "hydro_pump_on 1"), "pump gauge missing:\n%s", text)
	assert.Contains(t, text, "hydro_cycle_active")
	assert.Contains(t, text, "go_goroutines")
}
