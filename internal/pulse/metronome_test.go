package pulse

import (
	"testing"
	"time"
)

func TestInterval(t *testing.T) {
	if got := Interval(120); got != 500*time.Millisecond {
		t.Fatalf("Interval(120) = %v, want 500ms", got)
	}
	if got := Interval(60); got != time.Second {
		t.Fatalf("Interval(60) = %v, want 1s", got)
	}
	// Degenerate tempo clamps to the floor instead of dividing by zero.
	if got := Interval(0); got != Interval(minBPM) {
		t.Fatalf("Interval(0) = %v, want clamped %v", got, Interval(minBPM))
	}
	if got := Interval(-30); got != Interval(minBPM) {
		t.Fatalf("Interval(-30) = %v, want clamped %v", got, Interval(minBPM))
	}
}

func TestIntervalKeepsSubMillisecondPrecision(t *testing.T) {
	// 90 BPM is 666.67ms; whole-millisecond truncation would drift the
	// pulse by a full beat within half an hour.
	got := Interval(90)
	if got <= 666*time.Millisecond || got >= 667*time.Millisecond {
		t.Fatalf("Interval(90) = %v, want between 666ms and 667ms", got)
	}
}

func TestIntervalFloorsAtOneMillisecond(t *testing.T) {
	if got := Interval(100000); got != time.Millisecond {
		t.Fatalf("Interval(100000) = %v, want 1ms floor", got)
	}
	if got := Interval(1e9); got != time.Millisecond {
		t.Fatalf("Interval(1e9) = %v, want 1ms floor", got)
	}
}

func TestStartSurvivesExtremeTempo(t *testing.T) {
	m := New(nil)
	m.Start(100000, AccentAll) // must not arm a non-positive ticker
	defer m.Stop()
	if !m.Running() {
		t.Fatalf("not running after Start at extreme tempo")
	}
	m.SetTempo(1e9)
	if !m.Running() {
		t.Fatalf("not running after extreme SetTempo")
	}
}

func TestBeatSounds(t *testing.T) {
	for idx := 0; idx < 4; idx++ {
		if !beatSounds(AccentAll, idx) {
			t.Errorf("all mode silent at index %d", idx)
		}
		want := idx == 1 || idx == 3
		if got := beatSounds(AccentBackbeat, idx); got != want {
			t.Errorf("backbeat at index %d = %v, want %v", idx, got, want)
		}
	}
}

func TestTickSequenceAllMode(t *testing.T) {
	var beats []Beat
	m := New(func(b Beat) { beats = append(beats, b) })
	m.running = true
	m.accent = AccentAll
	for i := 0; i < 8; i++ {
		m.tick()
	}
	if len(beats) != 8 {
		t.Fatalf("beats = %d, want 8", len(beats))
	}
	for i, b := range beats {
		if b.Index != i%4 {
			t.Fatalf("beat %d index = %d, want %d", i, b.Index, i%4)
		}
		if !b.Sounded {
			t.Fatalf("beat %d silent in all mode", i)
		}
		if b.Accented != (b.Index == 0) {
			t.Fatalf("beat %d accent = %v at index %d", i, b.Accented, b.Index)
		}
	}
}

func TestTickSequenceBackbeat(t *testing.T) {
	var beats []Beat
	m := New(func(b Beat) { beats = append(beats, b) })
	m.running = true
	m.accent = AccentBackbeat
	for i := 0; i < 12; i++ {
		m.tick()
	}
	for i, b := range beats {
		want := b.Index == 1 || b.Index == 3
		if b.Sounded != want {
			t.Fatalf("beat %d (index %d) sounded = %v, want %v", i, b.Index, b.Sounded, want)
		}
		// Index 0 never sounds in backbeat mode, so nothing is accented.
		if b.Accented {
			t.Fatalf("beat %d accented in backbeat mode", i)
		}
	}
}

func TestStartFiresImmediateBeat(t *testing.T) {
	beats := make(chan Beat, 4)
	m := New(func(b Beat) { beats <- b })
	m.Start(30, AccentAll) // 2s interval: only the immediate tick lands
	defer m.Stop()

	select {
	case b := <-beats:
		if b.Index != 0 || !b.Accented {
			t.Fatalf("first beat = %+v, want accented index 0", b)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("no immediate beat on Start")
	}
	if got := m.BeatIndex(); got != 1 {
		t.Fatalf("beat index after first tick = %d, want 1", got)
	}
}

func TestStartWhileRunningIsNoop(t *testing.T) {
	m := New(nil)
	m.Start(30, AccentAll)
	defer m.Stop()
	m.Start(200, AccentBackbeat)
	if got := m.BPM(); got != 30 {
		t.Fatalf("second Start changed tempo to %v", got)
	}
	if got := m.AccentModeValue(); got != AccentAll {
		t.Fatalf("second Start changed accent to %v", got)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	m := New(nil)
	m.Stop()
	m.Start(30, AccentAll)
	m.Stop()
	m.Stop()
	if m.Running() {
		t.Fatalf("running after Stop")
	}
}

func TestSetTempoKeepsBeatIndex(t *testing.T) {
	m := New(nil)
	m.Start(30, AccentAll)
	defer m.Stop()

	before := m.BeatIndex()
	// Rearming restarts the interval from zero; phase continuity across a
	// tempo change is intentionally not preserved.
	m.SetTempo(90)
	if got := m.BPM(); got != 90 {
		t.Fatalf("tempo = %v, want 90", got)
	}
	if got := m.BeatIndex(); got != before {
		t.Fatalf("tempo change moved beat index %d -> %d", before, got)
	}
}

func TestSetTempoClampsFloor(t *testing.T) {
	m := New(nil)
	m.SetTempo(-10)
	if got := m.BPM(); got != minBPM {
		t.Fatalf("tempo = %v, want clamped %v", got, float64(minBPM))
	}
}
