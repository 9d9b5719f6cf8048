package gpio

import "fmt"

// Write records one call to FakeWriter.Write.
type Write struct {
	Line  Line
	Value int
}

// FakeWriter is a test double that records line writes.
type FakeWriter struct {
	// Writes contains every successful write in order.
	Writes []Write

	// Levels holds the last level written to each line.
	Levels map[Line]int

	// Closed tracks if Close was called
	Closed bool

	// WriteError, if set, will be returned by Write() for every line.
	WriteError error

	// FailLine, if set, limits WriteError to a single line.
	FailLine *Line
}

// NewFakeWriter creates a FakeWriter with no recorded writes.
func NewFakeWriter() *FakeWriter {
	return &FakeWriter{Levels: make(map[Line]int)}
}

// Write records the level, or returns the scripted error.
func (f *FakeWriter) Write(line Line, value int) error {
	if f.WriteError != nil && (f.FailLine == nil || *f.FailLine == line) {
		return fmt.Errorf("write %s: %w", line, f.WriteError)
	}
	if f.Levels == nil {
		f.Levels = make(map[Line]int)
	}
	f.Writes = append(f.Writes, Write{Line: line, Value: value})
	f.Levels[line] = value
	return nil
}

// Level returns the last level written to line and whether it was written.
func (f *FakeWriter) Level(line Line) (int, bool) {
	v, ok := f.Levels[line]
	return v, ok
}

// Close marks the writer as closed.
func (f *FakeWriter) Close() error {
	f.Closed = true
	return nil
}

// Reset clears recorded writes.
func (f *FakeWriter) Reset() {
	f.Writes = nil
	f.Levels = make(map[Line]int)
	f.Closed = false
	f.WriteError = nil
	f.FailLine = nil
}
