// Package mqtt provides MQTT publishing and command intake with abstraction
// for testing.
package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/hydro-controller/internal/controller"
	"github.com/sweeney/hydro-controller/internal/logic"
	"github.com/sweeney/hydro-controller/internal/nutrient"
)

// DefaultPrefix is the topic root used when none is configured.
const DefaultPrefix = "hydro/controller"

// Topics holds every topic the controller uses.
type Topics struct {
	Events  string
	Alerts  string
	System  string
	Command string
	Result  string
}

// NewTopics derives the topic set from prefix.
func NewTopics(prefix string) Topics {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Topics{
		Events:  prefix + "/events",
		Alerts:  prefix + "/alerts",
		System:  prefix + "/system",
		Command: prefix + "/command",
		Result:  prefix + "/command/result",
	}
}

// Publisher publishes controller output to MQTT.
type Publisher interface {
	// Publish sends a cycle or halt/resume event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishAlert sends a dose-advice status change.
	PublishAlert(alert nutrient.Alert) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// PublishResult sends the outcome of an operator command.
	PublishResult(result CommandResult) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// CommandHandler receives operator commands arriving on the command topic.
type CommandHandler func(req CommandRequest)

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload for a cycle event.
type Payload struct {
	Event EventPayload `json:"event"`
}

// EventPayload contains the event details.
type EventPayload struct {
	Timestamp string `json:"timestamp"`
	UptimeMs  uint64 `json:"uptime_ms"`
	Type      string `json:"type"`
	Cycle     string `json:"cycle,omitempty"`
	Trigger   string `json:"trigger"`
}

// FormatPayload creates the JSON payload for an event observed at wall time ts.
func FormatPayload(event logic.Event, ts time.Time) ([]byte, error) {
	payload := Payload{
		Event: EventPayload{
			Timestamp: ts.UTC().Format(time.RFC3339),
			UptimeMs:  uint64(event.At),
			Type:      string(event.Type),
			Cycle:     string(event.Cycle),
			Trigger:   string(event.Trigger),
		},
	}
	return json.Marshal(payload)
}

// AlertPayload represents the MQTT message payload for a dosing alert.
type AlertPayload struct {
	Alert AlertInner `json:"alert"`
}

// AlertInner contains the alert details.
type AlertInner struct {
	Timestamp string  `json:"timestamp"`
	Channel   string  `json:"channel"`
	Status    string  `json:"status"`
	Previous  string  `json:"previous"`
	Cleared   bool    `json:"cleared"`
	DoseML    float64 `json:"dose_ml"`
	Message   string  `json:"message,omitempty"`
}

// FormatAlertPayload creates the JSON payload for an alert.
func FormatAlertPayload(alert nutrient.Alert, ts time.Time) ([]byte, error) {
	payload := AlertPayload{
		Alert: AlertInner{
			Timestamp: ts.UTC().Format(time.RFC3339),
			Channel:   string(alert.Channel),
			Status:    string(alert.Advice.Status),
			Previous:  string(alert.Previous),
			Cleared:   alert.Cleared(),
			DoseML:    alert.Advice.DoseML,
			Message:   alert.Advice.Message,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// ErrBadCommand is returned for command messages that cannot be parsed.
var ErrBadCommand = errors.New("mqtt: bad command")

// CommandRequest is an operator command received over MQTT.
type CommandRequest struct {
	ID      string                 `json:"id"`
	Command controller.CommandKind `json:"command"`
}

// ParseCommandRequest decodes a command message. A missing id is replaced
// with a random UUID so the result can still be correlated.
func ParseCommandRequest(data []byte) (CommandRequest, error) {
	var raw struct {
		ID      string `json:"id"`
		Command string `json:"command"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return CommandRequest{}, fmt.Errorf("%w: %v", ErrBadCommand, err)
	}
	kind, err := controller.ParseCommand(strings.ToLower(strings.TrimSpace(raw.Command)))
	if err != nil {
		return CommandRequest{ID: raw.ID}, fmt.Errorf("%w: %v", ErrBadCommand, err)
	}
	if raw.ID == "" {
		raw.ID = uuid.NewString()
	}
	return CommandRequest{ID: raw.ID, Command: kind}, nil
}

// CommandResult is published after a command has been evaluated.
type CommandResult struct {
	ID        string `json:"id"`
	Command   string `json:"command"`
	Outcome   string `json:"outcome"`
	Timestamp string `json:"timestamp"`
}

// NewCommandResult builds the result message for req.
func NewCommandResult(req CommandRequest, outcome string, ts time.Time) CommandResult {
	return CommandResult{
		ID:        req.ID,
		Command:   string(req.Command),
		Outcome:   outcome,
		Timestamp: ts.UTC().Format(time.RFC3339),
	}
}
