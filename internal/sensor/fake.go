package sensor

// FakeADC is a test double that returns scripted raw counts.
type FakeADC struct {
	// Samples contains scripted readings. Each call to Read consumes the
	// next one; once exhausted the last is repeated.
	Samples []Raw

	// index tracks current position in Samples
	index int

	// Reads counts calls to Read, including failed ones.
	Reads int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// NewFakeADC creates a FakeADC with the given samples.
func NewFakeADC(samples ...Raw) *FakeADC {
	return &FakeADC{Samples: samples}
}

// Read returns the next scripted sample.
func (f *FakeADC) Read() (Raw, error) {
	f.Reads++
	if f.ReadError != nil {
		return Raw{}, f.ReadError
	}
	if len(f.Samples) == 0 {
		return Raw{}, ErrNoSamples
	}

	raw := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return raw, nil
}

// Close marks the ADC as closed.
func (f *FakeADC) Close() error {
	f.Closed = true
	return nil
}

// Reset rewinds to the first sample.
func (f *FakeADC) Reset() {
	f.index = 0
	f.Reads = 0
	f.Closed = false
}
