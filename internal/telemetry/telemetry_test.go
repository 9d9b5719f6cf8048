package telemetry

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/hydro-controller/internal/actuator"
	"github.com/sweeney/hydro-controller/internal/sensor"
	"github.com/sweeney/hydro-controller/internal/status"
)

type fakeWriter struct {
	mu      sync.Mutex
	points  []*write.Point
	flushed int
	errs    chan error
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{errs: make(chan error, 4)}
}

func (f *fakeWriter) WritePoint(p *write.Point) {
	f.mu.Lock()
	f.points = append(f.points, p)
	f.mu.Unlock()
}

func (f *fakeWriter) Flush() {
	f.mu.Lock()
	f.flushed++
	f.mu.Unlock()
}

func (f *fakeWriter) Errors() <-chan error { return f.errs }

func sampleState() status.State {
	return status.State{
		Sample:     sensor.Sample{PH: 6.2, EC: 1100, TDS: 704, Lux: 250},
		HaveSample: true,
		Signals:    actuator.Signals{Pump: true, Light: true},
	}
}

func TestNewPointLineProtocol(t *testing.T) {
	ts := time.Date(2026, 2, 3, 10, 30, 45, 0, time.UTC)
	p := NewPoint("rack1", sampleState(), ts)

	line := write.PointToLineProtocol(p, time.Second)

	assert.True(t, strings.HasPrefix(line, "hydroponics,device=rack1 "), line)
	for _, field := range []string{"ph=6.2", "ec=1100", "tds=704", "lux=250", "pump=true", "light=true", "halted=false"} {
		assert.Contains(t, line, field)
	}
	assert.Contains(t, line, " 1770114645")
}

func TestRecordSkipsWithoutSample(t *testing.T) {
	w := newFakeWriter()
	r := newInflux(w, nil, "rack1", zerolog.Nop())
	defer r.Close()

	r.Record(status.State{}, time.Now())
	r.Record(sampleState(), time.Now())

	w.mu.Lock()
	defer w.mu.Unlock()
	assert.Len(t, w.points, 1)
}

func TestCloseFlushesOnce(t *testing.T) {
	w := newFakeWriter()
	closed := 0
	r := newInflux(w, func() { closed++ }, "rack1", zerolog.Nop())

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	assert.Equal(t, 1, w.flushed)
	assert.Equal(t, 1, closed)
}

func TestWriteErrorsAreLogged(t *testing.T) {
	var buf syncBuffer
	w := newFakeWriter()
	r := newInflux(w, nil, "rack1", zerolog.New(&buf))
	defer r.Close()

	w.errs <- errors.New("bucket not found")

	require.Eventually(t, func() bool {
		return strings.Contains(buf.String(), "bucket not found")
	}, time.Second, 10*time.Millisecond)
	assert.Contains(t, buf.String(), `"component":"influx"`)
}

func TestNewInfluxWritesToServer(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies []string
		query  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/api/v2/write" {
			http.NotFound(w, req)
			return
		}
		body, _ := io.ReadAll(req.Body)
		mu.Lock()
		bodies = append(bodies, string(body))
		query = req.URL.RawQuery
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	r := NewInflux(Options{
		URL:    srv.URL,
		Token:  "secret",
		Org:    "home",
		Bucket: "garden",
		Device: "rack1",
		Logger: zerolog.Nop(),
	})
	r.Record(sampleState(), time.Date(2026, 2, 3, 10, 30, 45, 0, time.UTC))
	require.NoError(t, r.Close())

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, bodies)
	assert.Contains(t, bodies[0], "hydroponics,device=rack1")
	assert.Contains(t, query, "bucket=garden")
	assert.Contains(t, query, "org=home")
}

func TestNopRecorder(t *testing.T) {
	var r Recorder = Nop{}
	r.Record(sampleState(), time.Now())
	assert.NoError(t, r.Close())
}

type syncBuffer struct {
	mu sync.Mutex
	sb strings.Builder
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.String()
}

var _ Recorder = (*Influx)(nil)
