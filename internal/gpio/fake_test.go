package gpio

import (
	"errors"
	"testing"
)

func TestFakeWriterRecordsWrites(t *testing.T) {
	f := NewFakeWriter()

	if err := f.Write(LinePump, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.Write(LineLight, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.Write(LinePump, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.Writes) != 3 {
		t.Fatalf("writes: got %d, want 3", len(f.Writes))
	}
	if f.Writes[0] != (Write{Line: LinePump, Value: 1}) {
		t.Errorf("write 0: got %+v, want pump=1", f.Writes[0])
	}
	if v, ok := f.Level(LinePump); !ok || v != 0 {
		t.Errorf("pump level: got (%d, %v), want (0, true)", v, ok)
	}
	if v, ok := f.Level(LineLight); !ok || v != 0 {
		t.Errorf("light level: got (%d, %v), want (0, true)", v, ok)
	}
}

func TestFakeWriterUnwrittenLine(t *testing.T) {
	f := NewFakeWriter()

	if _, ok := f.Level(LineLight); ok {
		t.Error("expected no level before first write")
	}
}

func TestFakeWriterError(t *testing.T) {
	f := NewFakeWriter()
	f.WriteError = errors.New("simulated error")

	err := f.Write(LinePump, 1)
	if err == nil {
		t.Fatal("expected error to be returned")
	}
	if !errors.Is(err, f.WriteError) {
		t.Errorf("unexpected error: %v", err)
	}
	if len(f.Writes) != 0 {
		t.Errorf("failed write recorded: %+v", f.Writes)
	}
}

func TestFakeWriterFailSingleLine(t *testing.T) {
	f := NewFakeWriter()
	f.WriteError = errors.New("stuck relay")
	pump := LinePump
	f.FailLine = &pump

	if err := f.Write(LinePump, 0); err == nil {
		t.Error("expected pump write to fail")
	}
	if err := f.Write(LineLight, 0); err != nil {
		t.Errorf("light write: unexpected error: %v", err)
	}
}

func TestFakeWriterClose(t *testing.T) {
	f := NewFakeWriter()

	if f.Closed {
		t.Error("should not be closed initially")
	}

	err := f.Close()
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if !f.Closed {
		t.Error("should be closed after Close()")
	}
}

func TestFakeWriterReset(t *testing.T) {
	f := NewFakeWriter()
	f.Write(LinePump, 1)
	f.WriteError = errors.New("x")
	f.Close()

	f.Reset()

	if len(f.Writes) != 0 || f.Closed || f.WriteError != nil {
		t.Errorf("after reset: got %+v", f)
	}
	if _, ok := f.Level(LinePump); ok {
		t.Error("after reset: expected no pump level")
	}
}

func TestLineString(t *testing.T) {
	if LinePump.String() != "pump" {
		t.Errorf("LinePump: got %q, want pump", LinePump.String())
	}
	if LineLight.String() != "light" {
		t.Errorf("LineLight: got %q, want light", LineLight.String())
	}
}
