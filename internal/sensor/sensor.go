// Package sensor converts raw ADC counts into pH, EC, TDS and light readings.
// The real ADC is an ADS1115 on I²C. The fake allows testing without hardware.
package sensor

import (
	"errors"
	"fmt"

	"github.com/sweeney/hydro-controller/internal/clock"
)

// Cadence is the minimum spacing between ADC reads.
const Cadence clock.Millis = 500

// DefaultRawMax is the full-scale count of a 12-bit converter.
const DefaultRawMax = 4095

// Conversion scales.
const (
	PHScale  = 14.0   // pH at full scale
	ECScale  = 3000.0 // µS/cm at full scale
	TDSRatio = 0.64   // ppm per µS/cm
	LuxScale = 1000.0 // lux at zero counts
)

// ErrNoSamples is returned by fakes with nothing scripted.
var ErrNoSamples = errors.New("sensor: no samples configured")

// Raw holds one set of ADC counts.
type Raw struct {
	PH    int
	EC    int
	Light int
}

// ADC reads the three analog channels.
type ADC interface {
	// Read returns raw counts for the pH, EC and light channels.
	Read() (Raw, error)

	// Close releases bus resources.
	Close() error
}

// Sample is one converted reading.
type Sample struct {
	PH  float64
	EC  float64 // µS/cm
	TDS float64 // ppm
	Lux float64
	At  clock.Millis
}

// Convert maps raw counts onto engineering units. Counts outside
// [0, rawMax] are clamped.
func Convert(raw Raw, rawMax int) Sample {
	if rawMax <= 0 {
		rawMax = DefaultRawMax
	}
	full := float64(rawMax)
	ph := float64(clamp(raw.PH, rawMax)) / full * PHScale
	ec := float64(clamp(raw.EC, rawMax)) / full * ECScale
	light := float64(rawMax-clamp(raw.Light, rawMax)) / full * LuxScale
	return Sample{
		PH:  ph,
		EC:  ec,
		TDS: ec * TDSRatio,
		Lux: light,
	}
}

func clamp(v, max int) int {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}

// Reader samples an ADC no faster than Cadence.
// Not safe for concurrent use; the control loop owns it.
type Reader struct {
	adc     ADC
	rawMax  int
	last    Sample
	sampled bool
	tried   bool
	lastTry clock.Millis
}

// NewReader wraps adc. rawMax of 0 selects DefaultRawMax.
func NewReader(adc ADC, rawMax int) *Reader {
	if rawMax <= 0 {
		rawMax = DefaultRawMax
	}
	return &Reader{adc: adc, rawMax: rawMax}
}

// Sample reads the ADC on the first call and then whenever Cadence has
// elapsed since the previous attempt. Between reads it returns the previous
// sample with fresh=false. On error the previous sample is kept and the read
// is retried at the next cadence.
func (r *Reader) Sample(now clock.Millis) (s Sample, fresh bool, err error) {
	if r.tried && clock.Since(now, r.lastTry) < Cadence {
		return r.last, false, nil
	}
	r.tried = true
	r.lastTry = now

	raw, err := r.adc.Read()
	if err != nil {
		return r.last, false, fmt.Errorf("read adc: %w", err)
	}
	r.last = Convert(raw, r.rawMax)
	r.last.At = now
	r.sampled = true
	return r.last, true, nil
}

// Last returns the most recent sample and whether one exists.
func (r *Reader) Last() (Sample, bool) {
	return r.last, r.sampled
}

// RawMax returns the full-scale count used for conversion.
func (r *Reader) RawMax() int {
	return r.rawMax
}
