// Package telemetry exports sensor samples to a time-series store.
package telemetry

import (
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"

	"github.com/sweeney/hydro-controller/internal/status"
)

// Measurement is the InfluxDB measurement samples are written to.
const Measurement = "hydroponics"

// Recorder receives one state per fresh sensor sample.
type Recorder interface {
	Record(s status.State, ts time.Time)
	Close() error
}

// Nop discards everything. Used when no export is configured.
type Nop struct{}

// Record does nothing.
func (Nop) Record(status.State, time.Time) {}

// Close does nothing.
func (Nop) Close() error { return nil }

// Options configures an Influx recorder.
type Options struct {
	URL           string
	Token         string
	Org           string
	Bucket        string
	Device        string
	BatchSize     uint
	FlushInterval time.Duration
	Logger        zerolog.Logger
}

// pointWriter is the part of the InfluxDB async write API the recorder uses.
type pointWriter interface {
	WritePoint(p *write.Point)
	Flush()
	Errors() <-chan error
}

// Influx writes samples through the client's non-blocking write API.
// Failed writes are logged and otherwise ignored.
type Influx struct {
	writer pointWriter
	close  func()
	device string
	log    zerolog.Logger
	done   chan struct{}
	once   sync.Once
}

// NewInflux connects a recorder to the server at o.URL. The client buffers
// points and sends them in batches from its own goroutine.
func NewInflux(o Options) *Influx {
	opts := influxdb2.DefaultOptions()
	if o.BatchSize > 0 {
		opts.SetBatchSize(o.BatchSize)
	}
	if o.FlushInterval > 0 {
		opts.SetFlushInterval(uint(o.FlushInterval.Milliseconds()))
	}
	client := influxdb2.NewClientWithOptions(o.URL, o.Token, opts)
	return newInflux(client.WriteAPI(o.Org, o.Bucket), client.Close, o.Device, o.Logger)
}

func newInflux(w pointWriter, closeFn func(), device string, log zerolog.Logger) *Influx {
	r := &Influx{
		writer: w,
		close:  closeFn,
		device: device,
		log:    log.With().Str("component", "influx").Logger(),
		done:   make(chan struct{}),
	}
	go r.drainErrors()
	return r
}

func (r *Influx) drainErrors() {
	errs := r.writer.Errors()
	for {
		select {
		case err, ok := <-errs:
			if !ok {
				return
			}
			r.log.Warn().Err(err).Msg("write failed")
		case <-r.done:
			return
		}
	}
}

// Record queues one point. Does nothing until a sample has been taken.
func (r *Influx) Record(s status.State, ts time.Time) {
	if !s.HaveSample {
		return
	}
	r.writer.WritePoint(NewPoint(r.device, s, ts))
}

// Close flushes pending points and releases the client.
func (r *Influx) Close() error {
	r.once.Do(func() {
		r.writer.Flush()
		close(r.done)
		if r.close != nil {
			r.close()
		}
	})
	return nil
}

// NewPoint builds the point written for state s.
func NewPoint(device string, s status.State, ts time.Time) *write.Point {
	return influxdb2.NewPoint(
		Measurement,
		map[string]string{
			"device": device,
		},
		map[string]interface{}{
			"ph":     s.Sample.PH,
			"ec":     s.Sample.EC,
			"tds":    s.Sample.TDS,
			"lux":    s.Sample.Lux,
			"pump":   s.Signals.Pump,
			"light":  s.Signals.Light,
			"halted": s.Halted,
		},
		ts,
	)
}
