package chordpad

import (
	"testing"

	intchord "github.com/cbegin/chordpad-go/internal/chord"
	intpulse "github.com/cbegin/chordpad-go/internal/pulse"
	intvoice "github.com/cbegin/chordpad-go/internal/voice"
)

func newTestInstrument(t *testing.T) *Instrument {
	t.Helper()
	inst, err := New(48000, WithoutAudio(), WithoutMIDI())
	if err != nil {
		t.Fatalf("new instrument: %v", err)
	}
	t.Cleanup(func() { inst.Close() })
	return inst
}

func TestPlayChordCreatesOneVoicePerChordTone(t *testing.T) {
	inst := newTestInstrument(t)
	ids := inst.PlayChord() // defaults: C4 major
	if len(ids) != 3 {
		t.Fatalf("voices = %d, want 3", len(ids))
	}
	if n := inst.ActiveVoiceCount(); n != 3 {
		t.Fatalf("active voices = %d, want 3", n)
	}

	inst.SetChordMode(intchord.ModeMajor7)
	if got := inst.PlayChord(); len(got) != 4 {
		t.Fatalf("major7 voices = %d, want 4", len(got))
	}
}

func TestHoldLatchesSubsequentVoicesOnly(t *testing.T) {
	inst := newTestInstrument(t)

	inst.SetHold(true)
	inst.PlayChord()
	if st := inst.Status(); !st.Hold || st.HeldVoices != 3 {
		t.Fatalf("status = %+v, want hold with 3 held", st)
	}

	// Turning hold off empties the latch set and releases its members.
	inst.SetHold(false)
	if st := inst.Status(); st.Hold || st.HeldVoices != 0 {
		t.Fatalf("status after hold off = %+v, want empty latch", st)
	}

	// New voices are unlatched even while old ones are still releasing.
	ids := inst.PlayChord()
	if st := inst.Status(); st.HeldVoices != 0 {
		t.Fatalf("held after hold off = %d, want 0", st.HeldVoices)
	}
	state, _, ok := inst.engine.VoiceState(ids[0])
	if !ok || state == intvoice.StateReleasing {
		t.Fatalf("fresh voice state = %v (ok=%v), want unreleased", state, ok)
	}
}

func TestNoteOnResolvesChordAtRoot(t *testing.T) {
	inst := newTestInstrument(t)
	inst.NoteOn(57, 100) // A3 root, major mode
	if n := inst.ActiveVoiceCount(); n != 3 {
		t.Fatalf("active voices = %d, want 3", n)
	}
	inst.NoteOff(57)
	for note, ids := range inst.triggered {
		t.Fatalf("note %d still tracked with %v after NoteOff", note, ids)
	}
	// Releasing an unknown note is a no-op.
	inst.NoteOff(40)
}

func TestNoteOffLeavesLatchedVoicesAlone(t *testing.T) {
	inst := newTestInstrument(t)
	inst.SetHold(true)
	inst.NoteOn(60, 100)
	inst.NoteOff(60)
	if st := inst.Status(); st.HeldVoices != 3 {
		t.Fatalf("held after NoteOff = %d, want 3", st.HeldVoices)
	}
	inst.ReleaseHeld()
	if st := inst.Status(); st.HeldVoices != 0 {
		t.Fatalf("held after ReleaseHeld = %d, want 0", st.HeldVoices)
	}
}

func TestProgressionAdvanceRetriggersAtNewRoot(t *testing.T) {
	inst := newTestInstrument(t)
	events := inst.Watch()
	inst.SetAccentMode(intpulse.AccentBackbeat) // keep clicks out of the voice count
	inst.SetStepBeats(8)
	inst.EnableProgression()
	inst.SetTempo(10) // slow enough that the timer never fires mid-test
	inst.StartMetronome() // immediate first beat counts as beat 1
	defer inst.StopMetronome()

	for i := 0; i < 7; i++ {
		inst.onBeat(intpulse.Beat{Index: i % 4, Sounded: false})
	}
	if sel := inst.CurrentSelection(); sel.Root != "F" {
		t.Fatalf("root after 8 beats = %s, want F", sel.Root)
	}
	if n := inst.ActiveVoiceCount(); n != 3 {
		t.Fatalf("retriggered voices = %d, want 3", n)
	}

	var sawAdvance bool
	for drained := false; !drained; {
		select {
		case ev := <-events:
			if ev.Kind == EventProgressionAdvance && ev.Root == "F" {
				sawAdvance = true
			}
		default:
			drained = true
		}
	}
	if !sawAdvance {
		t.Fatalf("no progression advance event observed")
	}
}

func TestBeatsCountTowardProgressionEvenWhenSilent(t *testing.T) {
	inst := newTestInstrument(t)
	inst.SetAccentMode(intpulse.AccentBackbeat)
	inst.SetStepBeats(4)
	inst.EnableProgression()
	inst.SetTempo(10)
	inst.StartMetronome()
	defer inst.StopMetronome()

	// Backbeat silences beats 0 and 2, but every beat advances the step
	// counter: 1 immediate + 3 injected silent beats completes a step.
	for i := 1; i < 4; i++ {
		inst.onBeat(intpulse.Beat{Index: i, Sounded: false})
	}
	if sel := inst.CurrentSelection(); sel.Root != "F" {
		t.Fatalf("root = %s, want F after 4 counted beats", sel.Root)
	}
}

func TestVolumeClamping(t *testing.T) {
	inst := newTestInstrument(t)
	if got := inst.Volume(); got != 1 {
		t.Fatalf("default volume = %v, want 1", got)
	}
	inst.SetVolume(0.35)
	if got := inst.Volume(); got != 0.35 {
		t.Fatalf("volume = %v, want 0.35", got)
	}
	inst.SetVolume(-2)
	if got := inst.Volume(); got != 0 {
		t.Fatalf("volume should clamp to 0, got %v", got)
	}
}

func TestParameterClamping(t *testing.T) {
	inst := newTestInstrument(t)

	inst.SetDuration(0.001)
	if got := inst.Duration(); got != minDurationSec {
		t.Fatalf("duration = %v, want floor %v", got, minDurationSec)
	}

	inst.SetEnvelope(intvoice.Envelope{AttackSec: -1, DecaySec: -1, SustainLvl: 2, ReleaseSec: -1})
	env := inst.Envelope()
	if env.AttackSec != 0 || env.SustainLvl != 1 {
		t.Fatalf("envelope not clamped: %+v", env)
	}

	inst.SetOctave(12)
	if sel := inst.CurrentSelection(); sel.Octave != 8 {
		t.Fatalf("octave = %d, want 8", sel.Octave)
	}

	inst.SetRoot("Bb")
	if sel := inst.CurrentSelection(); sel.Root != "A#" {
		t.Fatalf("root = %s, want A# (normalized)", sel.Root)
	}
	inst.SetRoot("garbage")
	if sel := inst.CurrentSelection(); sel.Root != "A#" {
		t.Fatalf("unknown root mutated selection to %s", sel.Root)
	}
}

func TestStatusReportsDegradedSurfaces(t *testing.T) {
	inst := newTestInstrument(t)
	st := inst.Status()
	if st.AudioReady {
		t.Fatalf("audio reported ready without a device")
	}
	if st.MIDIInput != "" || st.MIDIOutput {
		t.Fatalf("midi reported available: %+v", st)
	}
	if st.MetronomeRunning {
		t.Fatalf("metronome reported running")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	inst, err := New(48000, WithoutAudio(), WithoutMIDI())
	if err != nil {
		t.Fatalf("new instrument: %v", err)
	}
	if err := inst.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := inst.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestInvalidSampleRateRejected(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Fatalf("expected error for zero sample rate")
	}
}
