package midi

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/leandrodaf/midirec/internal/logger"
	"github.com/leandrodaf/midirec/internal/smffile"
	"github.com/leandrodaf/midirec/sdk/contracts"
)

// fakeClient replays a fixed list of events when capture starts.
type fakeClient struct {
	mu      sync.Mutex
	events  []contracts.RawEvent
	started chan struct{}
	stops   int
}

func (c *fakeClient) ListDevices() ([]contracts.DeviceInfo, error) {
	return []contracts.DeviceInfo{{Index: 0, Name: "fake"}}, nil
}

func (c *fakeClient) SelectDevice(deviceID int) error { return nil }

func (c *fakeClient) StartCapture(eventChannel chan contracts.RawEvent) {
	for _, ev := range c.events {
		eventChannel <- ev
	}
	close(c.started)
}

func (c *fakeClient) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stops++
	return nil
}

func mustEvent(t *testing.T, status byte, data ...byte) contracts.RawEvent {
	t.Helper()
	ev, ok := contracts.NewRawEvent(0, status, data...)
	if !ok {
		t.Fatalf("invalid event %02X % X", status, data)
	}
	return ev
}

func TestRecordOneShot(t *testing.T) {
	base := filepath.Join(t.TempDir(), "song")
	rec, err := NewRecorder(
		contracts.WithRecorderLogger(logger.NewNopLogger()),
		contracts.WithBaseName(base),
		contracts.WithRecorderClock(func() time.Duration { return 0 }),
	)
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}

	client := &fakeClient{
		events: []contracts.RawEvent{
			mustEvent(t, 0x90, 60, 100),
			mustEvent(t, 0x80, 60, 0),
		},
		started: make(chan struct{}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rec.Record(ctx, client) }()

	<-client.started
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if client.stops != 1 {
		t.Errorf("client stopped %d times, want 1", client.stops)
	}

	data, err := os.ReadFile(base + ".mid")
	if err != nil {
		t.Fatalf("reading recording: %v", err)
	}
	s, err := smffile.Summarize(data)
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if s.Events != 2 {
		t.Errorf("recording holds %d events, want 2", s.Events)
	}
	if s.TempoBPM != DefaultTempoBPM {
		t.Errorf("tempo = %v, want %v", s.TempoBPM, DefaultTempoBPM)
	}
}

func TestRecordAutoModeNamesFilesByTimestamp(t *testing.T) {
	dir := t.TempDir()
	rec, err := NewRecorder(
		contracts.WithRecorderLogger(logger.NewNopLogger()),
		contracts.WithBaseName(filepath.Join(dir, "jam")),
		contracts.WithSilenceTimeout(time.Hour),
	)
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}
	if rec.SilenceTimeout() != time.Hour {
		t.Errorf("SilenceTimeout() = %v, want 1h", rec.SilenceTimeout())
	}

	events := make(chan contracts.RawEvent, 1)
	events <- mustEvent(t, 0xC0, 5)
	close(events)
	if err := rec.Run(context.Background(), events); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "jam_*.mid"))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Fatalf("found %v, want one timestamped file", files)
	}
	if rec.Written() != 1 {
		t.Errorf("Written() = %d, want 1", rec.Written())
	}
}

func TestRecordReportsWriteErrors(t *testing.T) {
	base := filepath.Join(t.TempDir(), "missing", "song")
	rec, err := NewRecorder(
		contracts.WithRecorderLogger(logger.NewNopLogger()),
		contracts.WithBaseName(base),
	)
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}

	events := make(chan contracts.RawEvent, 1)
	events <- mustEvent(t, 0x90, 60, 100)
	close(events)

	err = rec.Run(context.Background(), events)
	if !errors.Is(err, contracts.ErrIO) {
		t.Fatalf("Run() error = %v, want ErrIO", err)
	}
	var werr *smffile.WriteError
	if !errors.As(err, &werr) || werr.Take == nil {
		t.Errorf("Run() error %v does not carry the take", err)
	}
}

func TestNewRecorderRejectsInvalidTempo(t *testing.T) {
	_, err := NewRecorder(
		contracts.WithRecorderLogger(logger.NewNopLogger()),
		contracts.WithTempo(-10),
	)
	if err == nil {
		t.Error("NewRecorder() with a negative tempo succeeded")
	}
}

func TestApplyRecordDefaults(t *testing.T) {
	options := applyRecordDefaults(contracts.WithRecorderLogger(logger.NewNopLogger()))
	if options.BaseName != DefaultBaseName {
		t.Errorf("BaseName = %q, want %q", options.BaseName, DefaultBaseName)
	}
	if options.TempoBPM != DefaultTempoBPM {
		t.Errorf("TempoBPM = %v, want %v", options.TempoBPM, DefaultTempoBPM)
	}
	if options.Clock == nil {
		t.Error("Clock was not defaulted")
	}
	if options.SilenceTimeout != 0 || options.Overwrite {
		t.Error("auto mode and overwrite must be off by default")
	}
}

func TestTrackName(t *testing.T) {
	tests := map[string]string{
		"track":            "track",
		"takes/piano":      "piano",
		"/tmp/rec/session": "session",
	}
	for in, want := range tests {
		if got := trackName(in); got != want {
			t.Errorf("trackName(%q) = %q, want %q", in, got, want)
		}
	}
}
