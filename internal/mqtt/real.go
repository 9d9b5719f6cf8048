package mqtt

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/sweeney/hydro-controller/internal/logic"
	"github.com/sweeney/hydro-controller/internal/nutrient"
)

// Options configures a RealPublisher.
type Options struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	Topics         Topics
	BufferSize     int
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
	OnCommand      CommandHandler
	Logger         zerolog.Logger
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are buffered and replayed after reconnecting.
type RealPublisher struct {
	client  paho.Client
	topics  Topics
	timeout time.Duration
	log     zerolog.Logger
	now     func() time.Time

	mu     sync.Mutex
	buffer *ringBuffer
}

// NewRealPublisher creates a publisher for the given broker. It waits up to
// ConnectTimeout for the first connection; if the broker is not reachable
// yet, connecting continues in the background and messages are buffered.
func NewRealPublisher(o Options) *RealPublisher {
	if o.ClientID == "" {
		o.ClientID = "hydro-controller"
	}
	if o.Topics == (Topics{}) {
		o.Topics = NewTopics(DefaultPrefix)
	}
	if o.BufferSize <= 0 {
		o.BufferSize = 256
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 10 * time.Second
	}
	if o.PublishTimeout <= 0 {
		o.PublishTimeout = 5 * time.Second
	}

	p := &RealPublisher{
		topics:  o.Topics,
		timeout: o.PublishTimeout,
		log:     o.Logger.With().Str("component", "mqtt").Logger(),
		now:     time.Now,
		buffer:  newRingBuffer(o.BufferSize),
	}

	will, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE", Reason: "LWT"})

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetUsername(o.Username).
		SetPassword(o.Password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetOrderMatters(false).
		SetBinaryWill(o.Topics.System, will, 1, true).
		SetOnConnectHandler(func(c paho.Client) {
			p.onConnect(c, o.OnCommand)
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.log.Warn().Err(err).Msg("connection lost")
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(o.ConnectTimeout) {
		p.log.Warn().Str("broker", o.Broker).Msg("broker not reachable yet, buffering until connected")
	} else if err := token.Error(); err != nil {
		p.log.Error().Err(err).Str("broker", o.Broker).Msg("connect to broker")
	}
	return p
}

func (p *RealPublisher) onConnect(c paho.Client, handler CommandHandler) {
	p.log.Info().Msg("connected")

	if handler != nil {
		c.Subscribe(p.topics.Command, 1, func(_ paho.Client, msg paho.Message) {
			req, err := ParseCommandRequest(msg.Payload())
			if err != nil {
				p.log.Warn().Err(err).Str("payload", string(msg.Payload())).Msg("ignoring command")
				if req.ID != "" {
					p.PublishResult(NewCommandResult(req, "invalid", p.now()))
				}
				return
			}
			handler(req)
		})
	}

	p.mu.Lock()
	msgs := p.buffer.drainAll()
	p.mu.Unlock()
	if len(msgs) > 0 {
		p.log.Info().Int("count", len(msgs)).Msg("replaying buffered messages")
	}
	for _, m := range msgs {
		token := c.Publish(m.topic, m.qos, m.retained, m.payload)
		if !token.WaitTimeout(p.timeout) || token.Error() != nil {
			p.log.Warn().Str("topic", m.topic).Msg("replay failed, message dropped")
		}
	}
}

func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		firstDrop := p.buffer.push(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		p.mu.Unlock()
		if firstDrop {
			p.log.Warn().Int("capacity", p.buffer.capacity).Msg("buffer full, dropping oldest")
		}
		return nil
	}

	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Publish sends a cycle event. QoS 0 (at-most-once), not retained.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event, p.now())
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return p.publish(p.topics.Events, 0, false, payload)
}

// PublishAlert sends a dosing alert. QoS 1 so operators do not miss it.
func (p *RealPublisher) PublishAlert(alert nutrient.Alert) error {
	payload, err := FormatAlertPayload(alert, p.now())
	if err != nil {
		return fmt.Errorf("format alert payload: %w", err)
	}
	return p.publish(p.topics.Alerts, 1, false, payload)
}

// PublishSystem sends a system lifecycle event.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(p.topics.System, 1, event.Retained, payload)
}

// PublishResult sends a command outcome.
func (p *RealPublisher) PublishResult(result CommandResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("format result payload: %w", err)
	}
	return p.publish(p.topics.Result, 1, false, payload)
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffer.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
