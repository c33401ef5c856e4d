package smffile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leandrodaf/midirec/internal/logger"
	"github.com/leandrodaf/midirec/internal/session"
	"github.com/leandrodaf/midirec/sdk/contracts"
)

func newTestWriter(t *testing.T, base string, timestamp, overwrite bool) *Writer {
	t.Helper()
	return NewWriter(NewEncoder(testConverter(t), "midirec"), base, timestamp, overwrite, logger.NewNopLogger())
}

func readVerified(t *testing.T, path string) *Summary {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	s, err := Summarize(data)
	if err != nil {
		t.Fatalf("Summarize(%s) error = %v", path, err)
	}
	return s
}

func TestPathFor(t *testing.T) {
	take := sampleTake()

	tests := []struct {
		name      string
		timestamp bool
		want      string
	}{
		{"one shot", false, "rec/track.mid"},
		{"auto", true, "rec/track_20240102-030405.mid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newTestWriter(t, "rec/track", tt.timestamp, false)
			if got := w.PathFor(take); got != tt.want {
				t.Errorf("PathFor() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWriteTake(t *testing.T) {
	base := filepath.Join(t.TempDir(), "track")
	w := newTestWriter(t, base, true, false)

	path, err := w.WriteTake(sampleTake())
	if err != nil {
		t.Fatalf("WriteTake() error = %v", err)
	}
	if want := base + "_20240102-030405.mid"; path != want {
		t.Errorf("WriteTake() path = %q, want %q", path, want)
	}
	if s := readVerified(t, path); s.Events != len(sampleTake().Events) {
		t.Errorf("file holds %d events, want %d", s.Events, len(sampleTake().Events))
	}
}

func TestWriteTakeNeverOverwritesByDefault(t *testing.T) {
	base := filepath.Join(t.TempDir(), "track")
	w := newTestWriter(t, base, false, false)

	var paths []string
	for i := 0; i < 3; i++ {
		path, err := w.WriteTake(sampleTake())
		if err != nil {
			t.Fatalf("WriteTake() #%d error = %v", i, err)
		}
		paths = append(paths, path)
	}

	want := []string{base + ".mid", base + "_1.mid", base + "_2.mid"}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("path #%d = %q, want %q", i, paths[i], want[i])
		}
	}
}

func TestWriteTakeOverwrite(t *testing.T) {
	base := filepath.Join(t.TempDir(), "track")
	if err := os.WriteFile(base+".mid", []byte("stale content that is longer than nothing"), 0o644); err != nil {
		t.Fatal(err)
	}
	w := newTestWriter(t, base, false, true)

	path, err := w.WriteTake(sampleTake())
	if err != nil {
		t.Fatalf("WriteTake() error = %v", err)
	}
	if path != base+".mid" {
		t.Errorf("WriteTake() path = %q, want %q", path, base+".mid")
	}
	readVerified(t, path)
}

func TestWriteTakeReportsIOError(t *testing.T) {
	base := filepath.Join(t.TempDir(), "missing", "dir", "track")
	w := newTestWriter(t, base, false, false)
	take := sampleTake()

	path, err := w.WriteTake(take)
	if err == nil {
		t.Fatalf("WriteTake() into a missing directory succeeded with %q", path)
	}
	if !errors.Is(err, contracts.ErrIO) {
		t.Errorf("error %v does not wrap ErrIO", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error %v does not wrap the cause", err)
	}
	var werr *WriteError
	if !errors.As(err, &werr) {
		t.Fatalf("error %T is not a *WriteError", err)
	}
	if werr.Take != take {
		t.Error("WriteError should keep the take for a retry")
	}

	// The caller may retry once the directory exists.
	if err := os.MkdirAll(filepath.Dir(base), 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := w.WriteTake(werr.Take); err != nil {
		t.Errorf("retry WriteTake() error = %v", err)
	}
}

func TestRecorderWritesOneFilePerTake(t *testing.T) {
	dir := t.TempDir()
	clock := contracts.NewMonotonicClock()
	conv := testConverter(t)
	wall := time.Date(2024, 5, 6, 7, 8, 9, 0, time.Local)

	rec, err := session.NewRecorder(session.Config{
		Converter:      conv,
		Sink:           NewWriter(NewEncoder(conv, "midirec"), filepath.Join(dir, "take"), true, false, logger.NewNopLogger()),
		SilenceTimeout: 50 * time.Millisecond,
		Clock:          clock,
		Logger:         logger.NewNopLogger(),
		Now: func() time.Time {
			wall = wall.Add(time.Second)
			return wall
		},
	})
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}

	events := make(chan contracts.RawEvent, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rec.Run(ctx, events) }()

	send := func(status byte, data ...byte) {
		ev, _ := contracts.NewRawEvent(clock(), status, data...)
		events <- ev
	}
	send(0x90, 60, 100)
	send(0x80, 60, 0)
	time.Sleep(150 * time.Millisecond)
	send(0x90, 67, 80)

	deadline := time.Now().Add(time.Second)
	for rec.Written() < 1 {
		if time.Now().After(deadline) {
			t.Fatal("first take was not written")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "take_*.mid"))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("found %d files %v, want 2", len(files), files)
	}
	// Glob sorts names, and names follow capture start.
	if s := readVerified(t, files[0]); s.Events != 2 {
		t.Errorf("%s holds %d events, want 2", files[0], s.Events)
	}
	if s := readVerified(t, files[1]); s.Events != 1 {
		t.Errorf("%s holds %d events, want 1", files[1], s.Events)
	}
}
