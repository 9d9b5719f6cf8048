package sensor

import "math/rand"

// Simulated is an ADC for running the controller without hardware. It
// returns Base with up to Jitter counts of noise on each channel.
type Simulated struct {
	Base   Raw
	Jitter int
	rng    *rand.Rand
}

// NewSimulated returns a Simulated ADC seeded deterministically.
func NewSimulated(base Raw, jitter int) *Simulated {
	return &Simulated{Base: base, Jitter: jitter, rng: rand.New(rand.NewSource(1))}
}

// DefaultSimulated reads mid-band pH and EC under bright light.
func DefaultSimulated() *Simulated {
	// pH 6.0, EC 1200 µS/cm, ~900 lux at 12-bit full scale.
	return NewSimulated(Raw{PH: 1755, EC: 1638, Light: 410}, 8)
}

// Read returns the base counts with noise.
func (s *Simulated) Read() (Raw, error) {
	return Raw{
		PH:    s.Base.PH + s.noise(),
		EC:    s.Base.EC + s.noise(),
		Light: s.Base.Light + s.noise(),
	}, nil
}

func (s *Simulated) noise() int {
	if s.Jitter <= 0 {
		return 0
	}
	return s.rng.Intn(2*s.Jitter+1) - s.Jitter
}

// Close does nothing.
func (s *Simulated) Close() error {
	return nil
}
