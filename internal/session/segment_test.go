package session

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leandrodaf/midirec/internal/timing"
	"github.com/leandrodaf/midirec/sdk/contracts"
)

func testConverter(t *testing.T) *timing.Converter {
	t.Helper()
	c, err := timing.NewConverter(timing.DefaultResolution, timing.DefaultTempoBPM)
	if err != nil {
		t.Fatalf("NewConverter() error = %v", err)
	}
	return c
}

func rawEvent(t *testing.T, ts time.Duration, status byte, data ...byte) contracts.RawEvent {
	t.Helper()
	ev, ok := contracts.NewRawEvent(ts, status, data...)
	if !ok {
		t.Fatalf("NewRawEvent(% X) rejected", append([]byte{status}, data...))
	}
	return ev
}

func TestSegmentDeltas(t *testing.T) {
	conv := testConverter(t)
	seg := NewSegment(conv, rawEvent(t, 10*time.Second, 0x90, 60, 100), time.Now())

	appends := []contracts.RawEvent{
		rawEvent(t, 10*time.Second+500*time.Millisecond, 0x80, 60, 0),
		rawEvent(t, 11*time.Second, 0xC0, 5),
		rawEvent(t, 11*time.Second, 0xB0, 64, 127),
	}
	for _, ev := range appends {
		if err := seg.Append(ev); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	take := seg.Seal()
	wantDeltas := []uint32{0, 480, 480, 0}
	if len(take.Events) != len(wantDeltas) {
		t.Fatalf("take has %d events, want %d", len(take.Events), len(wantDeltas))
	}
	for i, want := range wantDeltas {
		if take.Events[i].Delta != want {
			t.Errorf("event %d delta = %d, want %d", i, take.Events[i].Delta, want)
		}
	}
	if got := take.Events[2].Data; len(got) != 2 || got[0] != 0xC0 || got[1] != 5 {
		t.Errorf("program change bytes = % X, want C0 05", got)
	}
	if take.Length() != time.Second {
		t.Errorf("Length() = %v, want 1s", take.Length())
	}
}

func TestSegmentFirstEventHasZeroDelta(t *testing.T) {
	conv := testConverter(t)
	for _, ts := range []time.Duration{0, time.Millisecond, 37 * time.Minute} {
		seg := NewSegment(conv, rawEvent(t, ts, 0x90, 60, 100), time.Now())
		take := seg.Seal()
		if take.Events[0].Delta != 0 {
			t.Errorf("first delta at %v = %d, want 0", ts, take.Events[0].Delta)
		}
	}
}

func TestSegmentRejectsRegression(t *testing.T) {
	seg := NewSegment(testConverter(t), rawEvent(t, 2*time.Second, 0x90, 60, 100), time.Now())

	err := seg.Append(rawEvent(t, time.Second, 0x80, 60, 0))
	if !errors.Is(err, contracts.ErrTimestampRegression) {
		t.Errorf("Append() error = %v, want ErrTimestampRegression", err)
	}
	if seg.Len() != 1 {
		t.Errorf("Len() = %d, want 1", seg.Len())
	}
}

func TestSegmentLongTakeKeepsSmallDeltas(t *testing.T) {
	seg := NewSegment(testConverter(t), rawEvent(t, 0, 0x90, 60, 100), time.Now())

	// 80 hours at 480 PPQN and 120 BPM is past the largest delta time,
	// but each step is one hour.
	for h := 1; h <= 80; h++ {
		if err := seg.Append(rawEvent(t, time.Duration(h)*time.Hour, 0x80, 60, 0)); err != nil {
			t.Fatalf("Append() at %dh error = %v", h, err)
		}
	}
	take := seg.Seal()
	if got := take.Events[len(take.Events)-1].Delta; got != 3_456_000 {
		t.Errorf("last delta = %d, want 3456000", got)
	}
}

func TestSegmentRejectsOversizedGap(t *testing.T) {
	seg := NewSegment(testConverter(t), rawEvent(t, 0, 0x90, 60, 100), time.Now())

	err := seg.Append(rawEvent(t, 100*time.Hour, 0x80, 60, 0))
	if !errors.Is(err, timing.ErrDeltaTooLarge) {
		t.Errorf("Append() error = %v, want ErrDeltaTooLarge", err)
	}
}

func TestSegmentSealTwice(t *testing.T) {
	seg := NewSegment(testConverter(t), rawEvent(t, 0, 0x90, 60, 100), time.Now())

	if seg.Seal() == nil {
		t.Fatal("first Seal() returned nil")
	}
	if take := seg.Seal(); take != nil {
		t.Errorf("second Seal() = %+v, want nil", take)
	}
	if err := seg.Append(rawEvent(t, time.Second, 0x80, 60, 0)); !errors.Is(err, ErrSealed) {
		t.Errorf("Append() after Seal error = %v, want ErrSealed", err)
	}
}

func TestSealIsAtomicUnderConcurrentAppends(t *testing.T) {
	conv := testConverter(t)
	const writers, perWriter = 4, 128

	for run := 0; run < 25; run++ {
		seg := NewSegment(conv, rawEvent(t, 0, 0x90, 0, 1), time.Now())

		var accepted, rejected atomic.Int64
		var wg sync.WaitGroup
		start := make(chan struct{})
		for w := 0; w < writers; w++ {
			wg.Add(1)
			go func(channel byte) {
				defer wg.Done()
				<-start
				for note := 0; note < perWriter; note++ {
					ev, _ := contracts.NewRawEvent(time.Second, 0x90|channel, byte(note), 64)
					err := seg.Append(ev)
					switch {
					case err == nil:
						accepted.Add(1)
					case errors.Is(err, ErrSealed):
						rejected.Add(1)
					default:
						t.Errorf("Append() error = %v", err)
					}
				}
			}(byte(w + 1))
		}

		close(start)
		time.Sleep(time.Duration(run) * 20 * time.Microsecond)
		take := seg.Seal()
		wg.Wait()

		if got := accepted.Load() + rejected.Load(); got != writers*perWriter {
			t.Fatalf("run %d: %d appends accounted for, want %d", run, got, writers*perWriter)
		}
		if got, want := int64(len(take.Events)), accepted.Load()+1; got != want {
			t.Fatalf("run %d: sealed %d events, want %d", run, got, want)
		}
		seen := make(map[string]bool, len(take.Events))
		for _, ev := range take.Events {
			key := string(ev.Data)
			if seen[key] {
				t.Fatalf("run %d: duplicate event % X", run, ev.Data)
			}
			seen[key] = true
		}
	}
}
