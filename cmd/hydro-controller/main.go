// Command hydro-controller runs the misting/flushing schedule, reads the
// nutrient sensors and serves the dashboard and MQTT control surface.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sweeney/hydro-controller/internal/actuator"
	"github.com/sweeney/hydro-controller/internal/clock"
	"github.com/sweeney/hydro-controller/internal/config"
	"github.com/sweeney/hydro-controller/internal/controller"
	"github.com/sweeney/hydro-controller/internal/gpio"
	"github.com/sweeney/hydro-controller/internal/logging"
	"github.com/sweeney/hydro-controller/internal/logic"
	"github.com/sweeney/hydro-controller/internal/metrics"
	"github.com/sweeney/hydro-controller/internal/mqtt"
	"github.com/sweeney/hydro-controller/internal/nutrient"
	"github.com/sweeney/hydro-controller/internal/sensor"
	"github.com/sweeney/hydro-controller/internal/status"
	"github.com/sweeney/hydro-controller/internal/telemetry"
	"github.com/sweeney/hydro-controller/internal/web"
)

var (
	configPath string
	httpAddr   string
	broker     string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "hydro-controller",
	Short: "Hydroponic misting and flushing controller",
	Long: `hydro-controller drives the pump and grow light relays on a fixed
misting/flushing schedule, samples pH, EC and light through an ADS1115 and
suggests nutrient doses. State is served over HTTP and MQTT.`,
	SilenceUsage: true,
	RunE:         runCmd,
}

var runCommand = &cobra.Command{
	Use:          "run",
	Short:        "Run the controller (default)",
	SilenceUsage: true,
	RunE:         runCmd,
}

var printStateCmd = &cobra.Command{
	Use:          "print-state",
	Short:        "Read the sensors once, print the sample and dosing advice, and exit",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		adc, err := openADC(cfg)
		if err != nil {
			return err
		}
		defer adc.Close()
		return printState(cmd.OutOrStdout(), sensor.NewReader(adc, cfg.Sensors.RawMax))
	},
}

var configCmd = &cobra.Command{
	Use:          "config",
	Short:        "Print the effective configuration as YAML",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		out, err := cfg.Marshal()
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Config file (missing file means defaults)")
	for _, c := range []*cobra.Command{rootCmd, runCommand, configCmd} {
		c.Flags().StringVar(&httpAddr, "http", "", "HTTP listen address, overrides http.addr")
		c.Flags().StringVar(&broker, "broker", "", "MQTT broker URL, overrides mqtt.broker")
		c.Flags().StringVar(&logLevel, "log-level", "", "Log level, overrides log.level")
	}
	rootCmd.AddCommand(runCommand, printStateCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if httpAddr != "" {
		cfg.HTTP.Addr = httpAddr
	}
	if broker != "" {
		cfg.MQTT.Broker = broker
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

func runCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := logging.Setup(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	return run(cfg, logger)
}

func openADC(cfg config.Config) (sensor.ADC, error) {
	if cfg.Sensors.Driver == config.SensorSimulated {
		return sensor.DefaultSimulated(), nil
	}
	adc, err := sensor.NewADS1115(byte(cfg.Sensors.Address), cfg.Channels())
	if err != nil {
		return nil, fmt.Errorf("init adc: %w", err)
	}
	return adc, nil
}

func openRelays(cfg config.Config) (gpio.Writer, error) {
	if cfg.Relays.Driver == config.RelayFake {
		return gpio.NewFakeWriter(), nil
	}
	idle := cfg.Polarity().Level(false)
	w, err := gpio.NewRealWriter(cfg.Relays.Chip, cfg.Relays.PinPump, cfg.Relays.PinLight, idle)
	if err != nil {
		return nil, fmt.Errorf("init gpio: %w", err)
	}
	return w, nil
}

func printState(w io.Writer, reader *sensor.Reader) error {
	s, _, err := reader.Sample(0)
	if err != nil {
		return err
	}
	advice := nutrient.Advise(s.PH, s.EC)
	fmt.Fprintf(w, "pH: %.2f (%s), EC: %.1f µS/cm (%s), TDS: %.1f ppm, Light: %.1f lux\n",
		s.PH, advice.PH.Status, s.EC, advice.EC.Status, s.TDS, s.Lux)
	for _, msg := range []string{advice.PH.Message, advice.EC.Message} {
		if msg != "" {
			fmt.Fprintln(w, msg)
		}
	}
	return nil
}

func run(cfg config.Config, logger zerolog.Logger) error {
	log := logger.With().Str("component", "main").Logger()

	adc, err := openADC(cfg)
	if err != nil {
		return err
	}
	defer adc.Close()

	relays, err := openRelays(cfg)
	if err != nil {
		return err
	}
	defer relays.Close()

	clk := clock.NewReal()
	tracker := status.NewTracker(clk.Started(), status.Config{
		TickMs:      cfg.Control.Tick.Milliseconds(),
		HeartbeatMs: cfg.Control.Heartbeat.Milliseconds(),
		Broker:      cfg.MQTT.Broker,
		HTTPAddr:    cfg.HTTP.Addr,
		Device:      cfg.Device,
	})

	ctrl := controller.New(
		clk,
		sensor.NewReader(adc, cfg.Sensors.RawMax),
		actuator.NewDriver(relays, cfg.Polarity()),
		tracker,
		controller.Config{Timing: cfg.Timing(), AlertInterval: cfg.Alerts.MinInterval},
	)

	m := metrics.New()

	var recorder telemetry.Recorder = telemetry.Nop{}
	if cfg.Influx.URL != "" {
		recorder = telemetry.NewInflux(telemetry.Options{
			URL:           cfg.Influx.URL,
			Token:         cfg.Influx.Token,
			Org:           cfg.Influx.Org,
			Bucket:        cfg.Influx.Bucket,
			Device:        cfg.Device,
			FlushInterval: cfg.Influx.FlushInterval,
			Logger:        logger,
		})
		log.Info().Str("url", cfg.Influx.URL).Str("bucket", cfg.Influx.Bucket).Msg("influx export enabled")
	}
	defer recorder.Close()

	results := make(chan mqtt.CommandResult, 16)
	var (
		publisher  mqtt.Publisher        = nopPublisher{}
		mqttStatus mqtt.ConnectionStatus = nopPublisher{}
	)
	if cfg.MQTT.Broker != "" {
		rp := mqtt.NewRealPublisher(mqtt.Options{
			Broker:     cfg.MQTT.Broker,
			ClientID:   cfg.MQTT.ClientID,
			Username:   cfg.MQTT.Username,
			Password:   cfg.MQTT.Password,
			Topics:     mqtt.NewTopics(cfg.MQTT.Prefix),
			BufferSize: cfg.MQTT.BufferSize,
			OnCommand:  commandHandler(ctrl, cfg.HTTP.CommandTimeout, time.Now, results, log),
			Logger:     logger,
		})
		// Broker round trips happen on the queue's goroutine, never in a tick.
		publisher, mqttStatus = mqtt.NewQueue(rp, mqtt.DefaultQueueSize, logger), rp
	}
	defer publisher.Close()

	// Publish startup event with full status snapshot
	tracker.SetMQTTConnected(mqttStatus.IsConnected())
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Warn().Err(err).Msg("failed to publish startup event")
	} else {
		log.Info().Msg("published startup event")
	}

	if cfg.HTTP.Addr != "" {
		srv := web.New(web.Options{
			Addr:           cfg.HTTP.Addr,
			Tracker:        tracker,
			Commander:      ctrl,
			Metrics:        m.Handler(),
			CommandTimeout: cfg.HTTP.CommandTimeout,
			Logger:         logger,
		})
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("http server error")
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}()
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("http server listening")
	}

	log.Info().
		Dur("tick", cfg.Control.Tick).
		Dur("heartbeat", cfg.Control.Heartbeat).
		Str("broker", cfg.MQTT.Broker).
		Str("sensors", cfg.Sensors.Driver).
		Str("relays", cfg.Relays.Driver).
		Msg("started")

	ticker := time.NewTicker(cfg.Control.Tick)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	l := &loop{
		ctrl:       ctrl,
		publisher:  publisher,
		mqttStatus: mqttStatus,
		tracker:    tracker,
		metrics:    m,
		recorder:   recorder,
		heartbeat:  cfg.Control.Heartbeat,
		now:        time.Now,
		log:        log,
	}
	return l.run(ticker.C, sigCh, results)
}

// nopPublisher stands in when no broker is configured.
type nopPublisher struct{}

func (nopPublisher) Publish(logic.Event) error              { return nil }
func (nopPublisher) PublishAlert(nutrient.Alert) error      { return nil }
func (nopPublisher) PublishSystem(mqtt.SystemEvent) error   { return nil }
func (nopPublisher) PublishResult(mqtt.CommandResult) error { return nil }
func (nopPublisher) Close() error                           { return nil }
func (nopPublisher) IsConnected() bool                      { return false }
