package chordpad

import (
	"errors"
	"sync"

	intaudio "github.com/cbegin/chordpad-go/internal/audio"
	intchord "github.com/cbegin/chordpad-go/internal/chord"
	intmidi "github.com/cbegin/chordpad-go/internal/midi"
	intprog "github.com/cbegin/chordpad-go/internal/progression"
	intpulse "github.com/cbegin/chordpad-go/internal/pulse"
	intvoice "github.com/cbegin/chordpad-go/internal/voice"
)

// Event carries instrument events from Watch().
type Event struct {
	Kind      EventKind
	BeatIndex int
	Sounded   bool
	Accented  bool
	Root      string
	VoiceID   int
}

type EventKind int

const (
	EventBeat EventKind = iota
	EventProgressionAdvance
	EventVoiceEnded
)

const minDurationSec = 0.05

// Selection is the chord the instrument triggers: a root pitch class, an
// octave, and a harmonic mode.
type Selection struct {
	Root   string
	Octave int
	Mode   intchord.Mode
}

// Status is the observable surface state: device availability, hold, and
// scheduler state. Purely informational.
type Status struct {
	AudioReady       bool
	MIDIInput        string
	MIDIOutput       bool
	Hold             bool
	HeldVoices       int
	ActiveVoices     int
	MetronomeRunning bool
	BeatIndex        int
	ProgressionOn    bool
	Tempo            float64
}

type Option func(*instrumentConfig)

type instrumentConfig struct {
	polyphony   int
	enableAudio bool
	enableMIDI  bool
}

func defaultInstrumentConfig() instrumentConfig {
	return instrumentConfig{polyphony: 32, enableAudio: true, enableMIDI: true}
}

func WithPolyphony(n int) Option {
	return func(cfg *instrumentConfig) {
		cfg.polyphony = n
	}
}

// WithoutAudio skips the output device; the engine still renders for
// offline use. Intended for headless environments and tests.
func WithoutAudio() Option {
	return func(cfg *instrumentConfig) {
		cfg.enableAudio = false
	}
}

// WithoutMIDI skips the control-surface ports.
func WithoutMIDI() Option {
	return func(cfg *instrumentConfig) {
		cfg.enableMIDI = false
	}
}

// Instrument is the engine object owning every piece of instrument state:
// the voice engine, the sustain latch, the metronome, the progression
// driver, and the optional audio and MIDI surfaces. All mutation of shared
// state funnels through its mutex; timer ticks and note events arrive on
// different goroutines.
type Instrument struct {
	mu         sync.Mutex
	sampleRate int
	baseGain   float64
	engine     *intvoice.Engine
	hold       *intvoice.Hold
	metro      *intpulse.Metronome
	prog       *intprog.Driver
	midiPort   *intmidi.Port
	audio      *intaudio.Player
	audioErr   error
	midiErr    error

	selection Selection
	wave      intvoice.Waveform
	env       intvoice.Envelope
	duration  float64
	volume    float64
	accent    intpulse.AccentMode
	tempo     float64
	triggered map[uint8][]int

	eventCh   chan Event
	eventChMu sync.Mutex
	midiDone  chan struct{}
	closed    bool
}

func New(sampleRate int, opts ...Option) (*Instrument, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	cfg := defaultInstrumentConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	params := intvoice.DefaultParams()
	params.Polyphony = cfg.polyphony
	engine := intvoice.New(sampleRate, params)
	inst := &Instrument{
		sampleRate: sampleRate,
		baseGain:   params.MasterGain,
		engine:     engine,
		hold:       intvoice.NewHold(engine),
		selection:  Selection{Root: "C", Octave: 4, Mode: intchord.ModeMajor},
		wave:       intvoice.WaveSine,
		env:        intvoice.Envelope{AttackSec: 0.02, DecaySec: 0.1, SustainLvl: 0.7, ReleaseSec: 0.3},
		duration:   1.0,
		volume:     1,
		accent:     intpulse.AccentAll,
		tempo:      120,
		triggered:  make(map[uint8][]int),
		midiDone:   make(chan struct{}),
	}
	engine.SetOnEnded(inst.voiceEnded)
	inst.metro = intpulse.New(inst.onBeat)
	inst.prog = intprog.NewDriver(inst.advanceRoot)
	if cfg.enableAudio {
		backend, err := intaudio.NewPlayer(sampleRate, engine)
		if err != nil {
			inst.audioErr = err
		} else {
			inst.audio = backend
			backend.Play()
		}
	}
	if cfg.enableMIDI {
		port, err := intmidi.Open()
		if err != nil {
			inst.midiErr = err
		} else {
			inst.midiPort = port
			go inst.pumpMIDI(port)
		}
	}
	return inst, nil
}

// PlayChord triggers the current selection, honoring hold mode.
func (inst *Instrument) PlayChord() []int {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	root := intchord.MIDIPitch(inst.selection.Root, inst.selection.Octave)
	return inst.triggerChordLocked(root, 1)
}

// NoteOn handles an inbound control-surface note: the note is the chord
// root and velocity scales the triggered-chord headroom.
func (inst *Instrument) NoteOn(note uint8, velocity uint8) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	vel := float64(velocity) / 127
	ids := inst.triggerChordLocked(int(note), vel)
	if !inst.hold.Enabled() {
		inst.triggered[note] = ids
	}
}

// NoteOff releases the voices a NoteOn with the same root created.
// Latched voices are untouched; releasing an unknown note is a no-op.
func (inst *Instrument) NoteOff(note uint8) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	ids := inst.triggered[note]
	delete(inst.triggered, note)
	for _, id := range ids {
		inst.engine.Release(id)
	}
}

func (inst *Instrument) triggerChordLocked(root int, velocity float64) []int {
	pitches := intchord.Pitches(root, inst.selection.Mode)
	latched := inst.hold.Enabled()
	ids := inst.engine.TriggerChord(pitches, inst.wave, inst.env, inst.duration, latched, velocity)
	inst.hold.Track(ids...)
	return ids
}

// SetHold toggles latch mode for subsequently created voices. Turning hold
// off releases everything currently held.
func (inst *Instrument) SetHold(on bool) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	inst.hold.SetEnabled(on)
}

func (inst *Instrument) Hold() bool {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.hold.Enabled()
}

// ReleaseHeld releases every latched voice without changing hold mode.
func (inst *Instrument) ReleaseHeld() {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	inst.hold.ReleaseAll()
}

// StopAll force-releases every voice with the engine's short fade.
func (inst *Instrument) StopAll() {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	inst.engine.StopAll()
	inst.triggered = make(map[uint8][]int)
}

// StartMetronome arms the pulse scheduler at the stored tempo and accent
// mode. The first beat fires before this returns.
func (inst *Instrument) StartMetronome() {
	inst.mu.Lock()
	tempo, accent := inst.tempo, inst.accent
	inst.mu.Unlock()
	inst.metro.Start(tempo, accent)
}

func (inst *Instrument) StopMetronome() {
	inst.metro.Stop()
}

// SetTempo updates the tempo, rearming the running timer at the new
// interval. The beat index is not corrected.
func (inst *Instrument) SetTempo(bpm float64) {
	inst.mu.Lock()
	inst.tempo = bpm
	inst.mu.Unlock()
	inst.metro.SetTempo(bpm)
}

func (inst *Instrument) SetAccentMode(accent intpulse.AccentMode) {
	inst.mu.Lock()
	inst.accent = accent
	inst.mu.Unlock()
	inst.metro.SetAccentMode(accent)
}

// EnableProgression turns on the automatic root advance, synchronized to
// the current selection root.
func (inst *Instrument) EnableProgression() {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	inst.prog.Enable(inst.selection.Root)
}

func (inst *Instrument) DisableProgression() {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	inst.prog.Disable()
}

func (inst *Instrument) SetStepBeats(n int) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	inst.prog.SetStepBeats(n)
}

// onBeat is the metronome callback. Within one tick the order is fixed:
// click voice, outbound MIDI tick, progression notification. The
// progression's stop-all and retrigger happen synchronously here.
func (inst *Instrument) onBeat(b intpulse.Beat) {
	inst.mu.Lock()
	if b.Sounded {
		inst.engine.TriggerClick(b.Accented)
		if inst.midiPort != nil {
			inst.midiPort.SendTick(b.Accented)
		}
	}
	inst.prog.OnBeat(inst.metro.Running())
	inst.mu.Unlock()
	inst.sendEvent(Event{Kind: EventBeat, BeatIndex: b.Index, Sounded: b.Sounded, Accented: b.Accented})
}

// advanceRoot is the progression callback; it runs with the instrument
// lock held, inside the beat that crossed the step boundary.
func (inst *Instrument) advanceRoot(root string) {
	inst.engine.StopAll()
	inst.triggered = make(map[uint8][]int)
	inst.selection.Root = root
	pitch := intchord.MIDIPitch(root, inst.selection.Octave)
	inst.triggerChordLocked(pitch, 1)
	inst.sendEvent(Event{Kind: EventProgressionAdvance, Root: root})
}

// voiceEnded is the engine's pruning callback, invoked once per voice on
// natural completion.
func (inst *Instrument) voiceEnded(id int) {
	inst.mu.Lock()
	inst.hold.Forget(id)
	for note, ids := range inst.triggered {
		inst.triggered[note] = removeID(ids, id)
		if len(inst.triggered[note]) == 0 {
			delete(inst.triggered, note)
		}
	}
	inst.mu.Unlock()
	inst.sendEvent(Event{Kind: EventVoiceEnded, VoiceID: id})
}

func removeID(ids []int, id int) []int {
	j := 0
	for _, v := range ids {
		if v != id {
			ids[j] = v
			j++
		}
	}
	return ids[:j]
}

func (inst *Instrument) pumpMIDI(port *intmidi.Port) {
	for {
		select {
		case <-inst.midiDone:
			return
		case ev := <-port.Events():
			if ev.On {
				inst.NoteOn(ev.Note, ev.Velocity)
			} else {
				inst.NoteOff(ev.Note)
			}
		}
	}
}

// SetEnvelope stores the ADSR shape for subsequently created voices,
// clamped to its valid domain.
func (inst *Instrument) SetEnvelope(env intvoice.Envelope) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	inst.env = env.Clamped()
}

func (inst *Instrument) Envelope() intvoice.Envelope {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.env
}

func (inst *Instrument) SetWaveform(w intvoice.Waveform) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	inst.wave = w
}

func (inst *Instrument) Waveform() intvoice.Waveform {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.wave
}

// SetDuration sets the intended sounding length for unlatched voices,
// floored at 50ms.
func (inst *Instrument) SetDuration(seconds float64) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if seconds < minDurationSec {
		seconds = minDurationSec
	}
	inst.duration = seconds
}

func (inst *Instrument) Duration() float64 {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.duration
}

// SetVolume sets the runtime volume scalar. 1.0 is default.
func (inst *Instrument) SetVolume(volume float64) {
	if volume < 0 {
		volume = 0
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	inst.volume = volume
	inst.engine.SetMasterGain(inst.baseGain * inst.volume)
}

func (inst *Instrument) Volume() float64 {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.volume
}

// SetRoot changes the selection root. Unrecognized names are ignored.
func (inst *Instrument) SetRoot(name string) {
	pc, ok := intchord.PitchClass(name)
	if !ok {
		return
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	inst.selection.Root = intchord.PitchClasses[pc]
}

func (inst *Instrument) SetOctave(octave int) {
	if octave < 0 {
		octave = 0
	}
	if octave > 8 {
		octave = 8
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	inst.selection.Octave = octave
}

func (inst *Instrument) SetChordMode(mode intchord.Mode) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	inst.selection.Mode = mode
}

func (inst *Instrument) CurrentSelection() Selection {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.selection
}

func (inst *Instrument) ActiveVoiceCount() int {
	return inst.engine.ActiveVoiceCount()
}

// Status reports device availability and surface state.
func (inst *Instrument) Status() Status {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	st := Status{
		AudioReady:       inst.audio != nil,
		Hold:             inst.hold.Enabled(),
		HeldVoices:       inst.hold.Size(),
		ActiveVoices:     inst.engine.ActiveVoiceCount(),
		MetronomeRunning: inst.metro.Running(),
		BeatIndex:        inst.metro.BeatIndex(),
		ProgressionOn:    inst.prog.Enabled(),
		Tempo:            inst.metro.BPM(),
	}
	if inst.midiPort != nil {
		st.MIDIInput = inst.midiPort.InName()
		st.MIDIOutput = inst.midiPort.HasOutput()
	}
	return st
}

// Watch returns a buffered channel of instrument events (beats,
// progression advances, voice endings). Events are dropped when the
// channel is full; only the most recent Watch channel receives events.
func (inst *Instrument) Watch() <-chan Event {
	ch := make(chan Event, 8)
	inst.eventChMu.Lock()
	inst.eventCh = ch
	inst.eventChMu.Unlock()
	return ch
}

func (inst *Instrument) sendEvent(ev Event) {
	inst.eventChMu.Lock()
	ch := inst.eventCh
	inst.eventChMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
			// Channel full; drop event
		}
	}
}

// Close stops the scheduler, silences the engine, and releases the audio
// and MIDI surfaces.
func (inst *Instrument) Close() error {
	inst.metro.Stop()
	inst.mu.Lock()
	if inst.closed {
		inst.mu.Unlock()
		return nil
	}
	inst.closed = true
	inst.mu.Unlock()
	close(inst.midiDone)
	inst.mu.Lock()
	inst.engine.StopAll()
	port := inst.midiPort
	inst.midiPort = nil
	backend := inst.audio
	inst.audio = nil
	inst.mu.Unlock()
	if port != nil {
		port.Close()
	}
	if backend != nil {
		return backend.Stop()
	}
	return nil
}
