// Package controller runs one control tick at a time: commands, sensors,
// advice, scheduling, relays and status, in that order. It owns all mutable
// controller state; other goroutines only submit commands.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sweeney/hydro-controller/internal/actuator"
	"github.com/sweeney/hydro-controller/internal/clock"
	"github.com/sweeney/hydro-controller/internal/logic"
	"github.com/sweeney/hydro-controller/internal/nutrient"
	"github.com/sweeney/hydro-controller/internal/sensor"
	"github.com/sweeney/hydro-controller/internal/status"
)

// CommandKind names an operator command.
type CommandKind string

const (
	CommandFlush  CommandKind = "flush"
	CommandHalt   CommandKind = "halt"
	CommandResume CommandKind = "resume"
)

// ErrUnknownCommand is returned for command names other than flush, halt
// and resume.
var ErrUnknownCommand = errors.New("unknown command")

// ParseCommand validates a command name.
func ParseCommand(s string) (CommandKind, error) {
	switch k := CommandKind(s); k {
	case CommandFlush, CommandHalt, CommandResume:
		return k, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownCommand, s)
	}
}

// Result is the outcome of one command.
type Result struct {
	Kind    CommandKind
	Outcome logic.Outcome
	At      clock.Millis
}

// Config holds controller settings.
type Config struct {
	Timing        logic.Timing
	AlertInterval time.Duration
}

// Report describes what one tick did.
type Report struct {
	Now         clock.Millis
	Results     []Result
	Events      []logic.Event
	Alerts      []nutrient.Alert
	Sampled     bool
	State       status.State
	SensorErr   error
	ActuatorErr error
}

type request struct {
	kind  CommandKind
	reply chan Result
}

// Controller owns the scheduler, halt flag, last sample and last advice.
type Controller struct {
	clock     clock.Clock
	reader    *sensor.Reader
	scheduler *logic.Scheduler
	driver    *actuator.Driver
	alerts    *nutrient.AlertTracker
	tracker   *status.Tracker

	halted     bool
	sample     sensor.Sample
	haveSample bool
	advice     nutrient.Advice

	mu      sync.Mutex
	pending []request
}

// New creates a controller whose cycle countdowns start now.
func New(clk clock.Clock, reader *sensor.Reader, driver *actuator.Driver, tracker *status.Tracker, cfg Config) *Controller {
	return &Controller{
		clock:     clk,
		reader:    reader,
		scheduler: logic.NewScheduler(cfg.Timing, clk.Now()),
		driver:    driver,
		alerts:    nutrient.NewAlertTracker(cfg.AlertInterval),
		tracker:   tracker,
		advice:    nutrient.Advice{PH: nutrient.DoseAdvice{Status: nutrient.StatusOK}, EC: nutrient.DoseAdvice{Status: nutrient.StatusOK}},
	}
}

// Submit queues a command for the next tick and waits for its result.
// Unknown kinds fail at once with ErrUnknownCommand. If ctx ends first the command is still evaluated, but its result is
// discarded and ctx.Err() is returned.
func (c *Controller) Submit(ctx context.Context, kind CommandKind) (Result, error) {
	if _, err := ParseCommand(string(kind)); err != nil {
		return Result{}, err
	}
	req := request{kind: kind, reply: make(chan Result, 1)}

	c.mu.Lock()
	c.pending = append(c.pending, req)
	c.mu.Unlock()

	select {
	case r := <-req.reply:
		return r, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Tick runs one control cycle. Called only from the control goroutine.
func (c *Controller) Tick() Report {
	now := c.clock.Now()
	rep := Report{Now: now}

	// 1. Commands. Halts go first so nothing queued alongside them can
	// energize the pump.
	for _, req := range c.drain() {
		res, events := c.apply(req.kind, now)
		rep.Results = append(rep.Results, res)
		rep.Events = append(rep.Events, events...)
		req.reply <- res
	}

	// 2. Sensors.
	s, fresh, err := c.reader.Sample(now)
	if err != nil {
		rep.SensorErr = err
	}
	if fresh {
		c.sample = s
		c.haveSample = true
		rep.Sampled = true
	}

	// 3. Advice.
	if c.haveSample {
		c.advice = nutrient.Advise(c.sample.PH, c.sample.EC)
		rep.Alerts = c.alerts.Observe(c.advice, now)
	}

	// 4. Scheduler.
	rep.Events = append(rep.Events, c.scheduler.Step(now, c.halted)...)

	// 5. Relays. Without a sample the light is left off.
	lux := actuator.LightThreshold
	if c.haveSample {
		lux = c.sample.Lux
	}
	signals, err := c.driver.Apply(c.scheduler.Output(), lux, c.halted)
	if err != nil {
		rep.ActuatorErr = err
	}

	// 6. Status.
	rep.State = c.render(now, signals)
	if c.tracker != nil {
		c.tracker.Update(rep.State)
	}
	return rep
}

func (c *Controller) drain() []request {
	c.mu.Lock()
	reqs := c.pending
	c.pending = nil
	c.mu.Unlock()

	sort.SliceStable(reqs, func(i, j int) bool {
		return reqs[i].kind == CommandHalt && reqs[j].kind != CommandHalt
	})
	return reqs
}

func (c *Controller) apply(kind CommandKind, now clock.Millis) (Result, []logic.Event) {
	res := Result{Kind: kind, Outcome: logic.OutcomeApplied, At: now}

	switch kind {
	case CommandHalt:
		wasHalted := c.halted
		c.halted = true
		// Force the scheduler idle now, not at step 4, so its stop events
		// sit next to the HALT that caused them.
		events := c.scheduler.Step(now, true)
		if !wasHalted {
			events = append([]logic.Event{{At: now, Type: logic.EventHalt, Trigger: logic.TriggerOperator}}, events...)
		}
		return res, events

	case CommandResume:
		if !c.halted {
			return res, nil
		}
		c.halted = false
		return res, []logic.Event{{At: now, Type: logic.EventResume, Trigger: logic.TriggerOperator}}

	case CommandFlush:
		outcome, events := c.scheduler.RequestFlush(now, c.halted)
		res.Outcome = outcome
		if outcome != logic.OutcomeApplied {
			events = append(events, logic.Event{At: now, Type: logic.EventFlushRejected, Cycle: logic.CycleFlushing, Trigger: logic.TriggerManual})
		}
		return res, events
	}

	// Submit keeps unknown kinds out.
	res.Outcome = logic.OutcomeInvalid
	return res, nil
}

func (c *Controller) render(now clock.Millis, signals actuator.Signals) status.State {
	timing := c.scheduler.Timing()
	return status.State{
		Sample:     c.sample,
		HaveSample: c.haveSample,
		Advice:     c.advice,
		Misting:    status.DescribeMisting(c.scheduler.Misting(), timing, now),
		Flushing:   status.DescribeFlushing(c.scheduler.Flushing(), timing, now),
		Halted:     c.halted,
		Precedence: c.scheduler.Precedence(),
		Signals:    signals,
		Uptime:     now,
	}
}

// Shutdown forces both relays off. Called once the control loop has stopped.
func (c *Controller) Shutdown() error {
	return c.driver.ForceOff()
}
