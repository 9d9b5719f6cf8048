package clock

// Fake is a manually advanced Clock for tests.
// Not safe for concurrent use.
type Fake struct {
	now Millis
}

// NewFake returns a Fake reading start.
func NewFake(start Millis) *Fake {
	return &Fake{now: start}
}

// Now returns the current fake reading.
func (f *Fake) Now() Millis {
	return f.now
}

// Advance moves the clock forward by d. It wraps like the real counter would.
func (f *Fake) Advance(d Millis) {
	f.now += d
}

// Set jumps the clock to m.
func (f *Fake) Set(m Millis) {
	f.now = m
}
