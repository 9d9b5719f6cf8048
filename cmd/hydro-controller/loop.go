package main

import (
	"context"
	"os"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/hydro-controller/internal/actuator"
	"github.com/sweeney/hydro-controller/internal/controller"
	"github.com/sweeney/hydro-controller/internal/metrics"
	"github.com/sweeney/hydro-controller/internal/mqtt"
	"github.com/sweeney/hydro-controller/internal/status"
	"github.com/sweeney/hydro-controller/internal/telemetry"
	"github.com/sweeney/hydro-controller/internal/web"
)

// loop is the control goroutine. It ticks the controller and forwards what
// each tick produced to MQTT, metrics and telemetry. The publisher must not
// block; run puts an mqtt.Queue in front of the broker.
type loop struct {
	ctrl       *controller.Controller
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	metrics    *metrics.Metrics
	recorder   telemetry.Recorder
	heartbeat  time.Duration // 0 disables
	now        func() time.Time
	log        zerolog.Logger
}

// run blocks until a signal arrives, then forces the relays off and
// publishes SHUTDOWN.
func (l *loop) run(tick <-chan time.Time, sig <-chan os.Signal, results <-chan mqtt.CommandResult) error {
	lastHeartbeat := l.now()

	for {
		select {
		case s := <-sig:
			l.shutdown(s)
			return nil

		case r := <-results:
			if err := l.publisher.PublishResult(r); err != nil {
				l.log.Warn().Err(err).Str("id", r.ID).Msg("result publish error")
			}

		case <-tick:
			t := l.now()
			rep := l.ctrl.Tick()
			l.handle(rep, t)

			if l.heartbeat > 0 && t.Sub(lastHeartbeat) >= l.heartbeat {
				lastHeartbeat = t
				l.publishHeartbeat(t)
			}
		}
	}
}

func (l *loop) handle(rep controller.Report, t time.Time) {
	if rep.SensorErr != nil {
		l.log.Warn().Err(rep.SensorErr).Msg("sensor read error, keeping last sample")
	}
	if rep.ActuatorErr != nil {
		l.log.Error().Err(rep.ActuatorErr).Msg("relay write error")
	}

	for _, r := range rep.Results {
		l.log.Info().Str("command", string(r.Kind)).Stringer("outcome", r.Outcome).Msg("command")
	}

	for _, event := range rep.Events {
		l.log.Info().
			Str("type", string(event.Type)).
			Str("cycle", string(event.Cycle)).
			Str("trigger", string(event.Trigger)).
			Msg("event")
		if err := l.publisher.Publish(event); err != nil {
			// Don't crash on publish failure
			l.log.Warn().Err(err).Msg("publish error")
		}
	}

	for _, alert := range rep.Alerts {
		ev := l.log.Warn()
		if alert.Cleared() {
			ev = l.log.Info()
		}
		ev.Str("channel", string(alert.Channel)).
			Str("status", string(alert.Advice.Status)).
			Str("previous", string(alert.Previous)).
			Msg(alertMessage(alert.Advice.Message))
		if err := l.publisher.PublishAlert(alert); err != nil {
			l.log.Warn().Err(err).Msg("alert publish error")
		}
	}

	if l.metrics != nil {
		l.metrics.Observe(rep)
	}
	if rep.Sampled && l.recorder != nil {
		l.recorder.Record(rep.State, t)
	}
	if l.mqttStatus != nil {
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
	}
}

func alertMessage(msg string) string {
	if msg == "" {
		return "reading back in band"
	}
	return msg
}

func (l *loop) publishHeartbeat(t time.Time) {
	snap := l.tracker.Snapshot()
	l.log.Info().
		Uint64("uptime_ms", uint64(snap.Uptime)).
		Uint64("mist_runs", snap.Misting.Runs).
		Uint64("flush_runs", snap.Flushing.Runs).
		Bool("halted", snap.Halted).
		Msg("heartbeat")

	hb := mqtt.SystemEvent{
		Timestamp:  t,
		Event:      "HEARTBEAT",
		RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
	}
	if err := l.publisher.PublishSystem(hb); err != nil {
		l.log.Warn().Err(err).Msg("heartbeat publish error")
	}
}

func (l *loop) shutdown(s os.Signal) {
	l.log.Info().Stringer("signal", s).Msg("shutting down")

	off := true
	if err := l.ctrl.Shutdown(); err != nil {
		off = false
		l.log.Error().Err(err).Msg("failed to switch relays off")
	}

	signalName := "UNKNOWN"
	if s == syscall.SIGINT {
		signalName = "SIGINT"
	} else if s == syscall.SIGTERM {
		signalName = "SIGTERM"
	}

	if l.mqttStatus != nil {
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
	}
	snap := l.tracker.Snapshot()
	if off {
		snap.Signals = actuator.Signals{}
	}
	event := mqtt.SystemEvent{
		Timestamp:  l.now(),
		Event:      "SHUTDOWN",
		Reason:     signalName,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", signalName),
	}
	if err := l.publisher.PublishSystem(event); err != nil {
		l.log.Warn().Err(err).Msg("failed to publish shutdown event")
	} else {
		l.log.Info().Msg("published shutdown event")
	}
}

// commandHandler submits MQTT commands to the controller and queues the
// outcome for the loop to publish.
func commandHandler(cmd web.Commander, timeout time.Duration, now func() time.Time, out chan<- mqtt.CommandResult, log zerolog.Logger) mqtt.CommandHandler {
	return func(req mqtt.CommandRequest) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		outcome := "timeout"
		res, err := cmd.Submit(ctx, req.Command)
		if err == nil {
			outcome = res.Outcome.String()
		}
		log.Info().Str("id", req.ID).Str("command", string(req.Command)).Str("outcome", outcome).Msg("mqtt command")

		select {
		case out <- mqtt.NewCommandResult(req, outcome, now()):
		default:
			log.Warn().Str("id", req.ID).Msg("result queue full, dropping")
		}
	}
}
