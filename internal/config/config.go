// Package config loads controller settings from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/hydro-controller/internal/actuator"
	"github.com/sweeney/hydro-controller/internal/clock"
	"github.com/sweeney/hydro-controller/internal/gpio"
	"github.com/sweeney/hydro-controller/internal/logic"
	"github.com/sweeney/hydro-controller/internal/mqtt"
	"github.com/sweeney/hydro-controller/internal/sensor"
)

// DefaultPath is where the service looks for its config file.
const DefaultPath = "/etc/hydro-controller.yaml"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Driver names.
const (
	RelayGPIO        = "gpio"
	RelayFake        = "fake"
	SensorADS1115    = "ads1115"
	SensorSimulated  = "simulated"
	LogFormatConsole = "console"
	LogFormatJSON    = "json"
)

// Config is the complete process configuration.
type Config struct {
	Device  string        `yaml:"device"`
	HTTP    HTTPConfig    `yaml:"http"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Control ControlConfig `yaml:"control"`
	Relays  RelayConfig   `yaml:"relays"`
	Sensors SensorConfig  `yaml:"sensors"`
	Alerts  AlertConfig   `yaml:"alerts"`
	Influx  InfluxConfig  `yaml:"influx"`
	Log     LogConfig     `yaml:"log"`
}

// HTTPConfig configures the dashboard and control endpoints.
type HTTPConfig struct {
	Addr           string        `yaml:"addr"` // empty disables the server
	CommandTimeout time.Duration `yaml:"command_timeout"`
}

// MQTTConfig configures the broker connection. An empty broker disables MQTT.
type MQTTConfig struct {
	Broker     string `yaml:"broker"`
	ClientID   string `yaml:"client_id"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	Prefix     string `yaml:"prefix"`
	BufferSize int    `yaml:"buffer_size"`
}

// ControlConfig holds loop and cycle timing.
type ControlConfig struct {
	Tick             time.Duration `yaml:"tick"`
	Heartbeat        time.Duration `yaml:"heartbeat"` // 0 disables
	MistingInterval  time.Duration `yaml:"misting_interval"`
	MistingDuration  time.Duration `yaml:"misting_duration"`
	FlushingInterval time.Duration `yaml:"flushing_interval"`
	FlushingDuration time.Duration `yaml:"flushing_duration"`
}

// RelayConfig selects and wires the relay outputs.
type RelayConfig struct {
	Driver   string `yaml:"driver"`
	Chip     string `yaml:"chip"`
	PinPump  int    `yaml:"pin_pump"`
	PinLight int    `yaml:"pin_light"`
	Polarity string `yaml:"polarity"`
}

// SensorConfig selects the ADC.
type SensorConfig struct {
	Driver       string `yaml:"driver"`
	Address      int    `yaml:"address"`
	RawMax       int    `yaml:"raw_max"`
	ChannelPH    int    `yaml:"channel_ph"`
	ChannelEC    int    `yaml:"channel_ec"`
	ChannelLight int    `yaml:"channel_light"`
}

// AlertConfig configures dosing alerts.
type AlertConfig struct {
	MinInterval time.Duration `yaml:"min_interval"`
}

// InfluxConfig configures sample export. An empty URL disables it.
type InfluxConfig struct {
	URL           string        `yaml:"url"`
	Token         string        `yaml:"token"`
	Org           string        `yaml:"org"`
	Bucket        string        `yaml:"bucket"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the stock configuration.
func Default() Config {
	timing := logic.DefaultTiming()
	return Config{
		Device: "hydro-controller",
		HTTP: HTTPConfig{
			Addr:           ":80",
			CommandTimeout: 2 * time.Second,
		},
		MQTT: MQTTConfig{
			Broker:     "tcp://192.168.1.200:1883",
			ClientID:   "hydro-controller",
			Prefix:     mqtt.DefaultPrefix,
			BufferSize: 256,
		},
		Control: ControlConfig{
			Tick:             100 * time.Millisecond,
			Heartbeat:        15 * time.Minute,
			MistingInterval:  timing.MistingInterval.Duration(),
			MistingDuration:  timing.MistingDuration.Duration(),
			FlushingInterval: timing.FlushingInterval.Duration(),
			FlushingDuration: timing.FlushingDuration.Duration(),
		},
		Relays: RelayConfig{
			Driver:   RelayGPIO,
			Chip:     "gpiochip0",
			PinPump:  gpio.DefaultPinPump,
			PinLight: gpio.DefaultPinLight,
			Polarity: string(actuator.ActiveHigh),
		},
		Sensors: SensorConfig{
			Driver:       SensorADS1115,
			Address:      sensor.DefaultAddress,
			RawMax:       sensor.DefaultRawMax,
			ChannelPH:    sensor.DefaultChannels.PH,
			ChannelEC:    sensor.DefaultChannels.EC,
			ChannelLight: sensor.DefaultChannels.Light,
		},
		Alerts: AlertConfig{
			MinInterval: time.Minute,
		},
		Influx: InfluxConfig{
			Org:           "home",
			Bucket:        "hydroponics",
			FlushInterval: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: LogFormatConsole,
		},
	}
}

// Load reads path over the defaults, then applies environment overrides and
// validates the result. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from HYDRO_* environment variables.
func (c *Config) ApplyEnv() {
	c.HTTP.Addr = getEnv("HYDRO_HTTP_ADDR", c.HTTP.Addr)
	c.MQTT.Broker = getEnv("HYDRO_MQTT_BROKER", c.MQTT.Broker)
	c.Log.Level = getEnv("HYDRO_LOG_LEVEL", c.Log.Level)
	c.Influx.URL = getEnv("HYDRO_INFLUX_URL", c.Influx.URL)
	c.Influx.Token = getEnv("HYDRO_INFLUX_TOKEN", c.Influx.Token)
}

// Validate reports every problem found, wrapped in ErrInvalid.
func (c Config) Validate() error {
	var errs []error

	if c.Control.Tick <= 0 {
		errs = append(errs, fmt.Errorf("control.tick must be > 0, got %v", c.Control.Tick))
	}
	if c.Control.Heartbeat < 0 {
		errs = append(errs, fmt.Errorf("control.heartbeat must be >= 0, got %v", c.Control.Heartbeat))
	}
	if err := c.Timing().Validate(); err != nil {
		errs = append(errs, err)
	}
	if _, err := actuator.ParsePolarity(c.Relays.Polarity); err != nil {
		errs = append(errs, err)
	}
	switch c.Relays.Driver {
	case RelayGPIO, RelayFake:
	default:
		errs = append(errs, fmt.Errorf("unknown relay driver %q", c.Relays.Driver))
	}
	switch c.Sensors.Driver {
	case SensorADS1115, SensorSimulated:
	default:
		errs = append(errs, fmt.Errorf("unknown sensor driver %q", c.Sensors.Driver))
	}
	if c.Sensors.RawMax <= 0 {
		errs = append(errs, fmt.Errorf("sensors.raw_max must be > 0, got %d", c.Sensors.RawMax))
	}
	for name, ch := range map[string]int{
		"channel_ph":    c.Sensors.ChannelPH,
		"channel_ec":    c.Sensors.ChannelEC,
		"channel_light": c.Sensors.ChannelLight,
	} {
		if ch < 0 || ch > 3 {
			errs = append(errs, fmt.Errorf("sensors.%s must be 0-3, got %d", name, ch))
		}
	}
	if c.HTTP.CommandTimeout <= 0 {
		errs = append(errs, fmt.Errorf("http.command_timeout must be > 0, got %v", c.HTTP.CommandTimeout))
	}
	switch strings.ToLower(c.Log.Format) {
	case LogFormatConsole, LogFormatJSON:
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// Timing converts the control durations to scheduler timing.
func (c Config) Timing() logic.Timing {
	return logic.Timing{
		MistingInterval:  clock.FromDuration(c.Control.MistingInterval),
		MistingDuration:  clock.FromDuration(c.Control.MistingDuration),
		FlushingInterval: clock.FromDuration(c.Control.FlushingInterval),
		FlushingDuration: clock.FromDuration(c.Control.FlushingDuration),
	}
}

// Polarity returns the parsed relay polarity. Call after Validate.
func (c Config) Polarity() actuator.Polarity {
	p, _ := actuator.ParsePolarity(c.Relays.Polarity)
	return p
}

// Channels returns the ADS1115 input mapping.
func (c Config) Channels() sensor.Channels {
	return sensor.Channels{PH: c.Sensors.ChannelPH, EC: c.Sensors.ChannelEC, Light: c.Sensors.ChannelLight}
}

// Marshal renders c as YAML. Secrets are masked.
func (c Config) Marshal() ([]byte, error) {
	if c.MQTT.Password != "" {
		c.MQTT.Password = "********"
	}
	if c.Influx.Token != "" {
		c.Influx.Token = "********"
	}
	return yaml.Marshal(c)
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}
