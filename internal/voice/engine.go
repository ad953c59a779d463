package voice

import (
	"math"
	"sync"
	"sync/atomic"
)

const twoPi = math.Pi * 2

// Fixed stop timings. Release guard keeps the oscillator alive slightly
// past the end of a ramp so the tail is not truncated. StopAll uses its
// own short fade instead of each voice's release time.
const (
	releaseGuardSec = 0.020
	stopAllFadeSec  = 0.030
	stopAllGuardSec = 0.020
)

// Waveform selects the oscillator shape for a voice.
type Waveform int

const (
	WaveSine Waveform = iota
	WaveSquare
	WaveSawtooth
	WaveTriangle
)

// ParseWaveform maps a name to a Waveform. Unknown names fall back to sine.
func ParseWaveform(name string) Waveform {
	switch name {
	case "square":
		return WaveSquare
	case "sawtooth", "saw":
		return WaveSawtooth
	case "triangle":
		return WaveTriangle
	default:
		return WaveSine
	}
}

func (w Waveform) String() string {
	switch w {
	case WaveSquare:
		return "square"
	case WaveSawtooth:
		return "sawtooth"
	case WaveTriangle:
		return "triangle"
	default:
		return "sine"
	}
}

// Envelope holds ADSR shaping parameters for one voice.
type Envelope struct {
	AttackSec  float64
	DecaySec   float64
	SustainLvl float64
	ReleaseSec float64
}

// Clamped returns the envelope with every field forced into its valid
// domain (times non-negative, sustain level 0-1).
func (env Envelope) Clamped() Envelope {
	return Envelope{
		AttackSec:  math.Max(env.AttackSec, 0),
		DecaySec:   math.Max(env.DecaySec, 0),
		SustainLvl: clamp(env.SustainLvl, 0, 1),
		ReleaseSec: math.Max(env.ReleaseSec, 0),
	}
}

// State is the lifecycle stage of a voice. Releasing is reachable from
// any earlier stage; Ended is terminal and removes the voice.
type State int

const (
	StateAttack State = iota
	StateDecay
	StateSustain
	StateReleasing
	StateEnded
)

type Params struct {
	Polyphony  int
	MasterGain float64
}

func DefaultParams() Params {
	return Params{
		Polyphony:  32,
		MasterGain: 0.5,
	}
}

type voice struct {
	active        bool
	id            int
	pitch         int
	wave          Waveform
	env           Envelope
	state         State
	level         float64
	gain          float64
	phase         float64
	freq          float64
	latched       bool
	frames        int
	autoReleaseAt int // frame at which the auto-release ramp begins; -1 = latched, none
	releaseStep   float64
	guardFrames   int
}

// Engine owns every currently sounding voice and renders them against the
// sample clock. Triggers and releases arrive from other goroutines while
// the audio thread renders, so the voice collection is mutex-guarded;
// the ended callback is always invoked outside the lock.
type Engine struct {
	mu         sync.Mutex
	sampleRate float64
	params     Params
	voices     []voice
	nextID     int
	masterGain uint64
	onEnded    func(id int)

	frame        int
	busGain      float64
	busTarget    float64
	busAlpha     float64
	busRestoreAt int // frame at which the bus returns to unity; -1 = none
}

func New(sampleRate int, params Params) *Engine {
	if params.Polyphony <= 0 {
		params.Polyphony = 32
	}
	// ~10ms smoothing time constant for bus gain moves.
	dt := 1.0 / float64(sampleRate)
	return &Engine{
		sampleRate:   float64(sampleRate),
		params:       params,
		voices:       make([]voice, params.Polyphony),
		masterGain:   math.Float64bits(params.MasterGain),
		busGain:      1,
		busTarget:    1,
		busAlpha:     dt / (0.010 + dt),
		busRestoreAt: -1,
	}
}

// SetOnEnded installs the callback invoked once per voice when it reaches
// its terminal silence and is removed from the active collection.
func (e *Engine) SetOnEnded(fn func(id int)) {
	e.mu.Lock()
	e.onEnded = fn
	e.mu.Unlock()
}

// HeadroomGain returns the bus gain applied when n voices are triggered
// together: unity for a single voice, 0.9/sqrt(n) otherwise.
func HeadroomGain(n int) float64 {
	if n <= 1 {
		return 1
	}
	return 0.9 / math.Sqrt(float64(n))
}

// Trigger starts one voice and returns its handle.
func (e *Engine) Trigger(pitch int, wave Waveform, env Envelope, durationSec float64, latched bool) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.trigger(pitch, wave, env, durationSec, latched, 1)
}

// TriggerChord starts one voice per pitch and scales the output bus for
// headroom. velocity (0-1) scales the bus target multiplicatively. For
// unlatched chords the bus returns to unity once the longest voice has
// finished its duration and release.
func (e *Engine) TriggerChord(pitches []int, wave Waveform, env Envelope, durationSec float64, latched bool, velocity float64) []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]int, 0, len(pitches))
	for _, p := range pitches {
		ids = append(ids, e.trigger(p, wave, env, durationSec, latched, 1))
	}
	e.busTarget = HeadroomGain(len(pitches)) * clamp(velocity, 0, 1)
	if latched {
		e.busRestoreAt = -1
	} else {
		env = env.Clamped()
		tail := durationSec + env.ReleaseSec + releaseGuardSec
		e.busRestoreAt = e.frame + int(tail*e.sampleRate)
	}
	return ids
}

// TriggerClick produces the metronome's short percussive burst. It lives
// in the active collection like any voice but has a fixed shape outside
// the pitched-note parameter model.
func (e *Engine) TriggerClick(accented bool) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	pitch := 93 // A6
	gain := 0.5
	if accented {
		pitch = 105 // A7
		gain = 0.85
	}
	env := Envelope{AttackSec: 0.001, DecaySec: 0.020, SustainLvl: 0, ReleaseSec: 0.015}
	id := e.trigger(pitch, WaveSquare, env, 0.030, false, gain)
	return id
}

func (e *Engine) trigger(pitch int, wave Waveform, env Envelope, durationSec float64, latched bool, gain float64) int {
	slot := e.stealVoice()
	if e.voices[slot].active {
		// The displaced voice still ends: report it so latch sets and
		// trigger maps never hold a stale handle. Callers may hold their
		// own lock across trigger, so the callback runs on its own
		// goroutine.
		if fn := e.onEnded; fn != nil {
			stolen := e.voices[slot].id
			go fn(stolen)
		}
	}
	id := e.nextID
	e.nextID++
	env = env.Clamped()
	autoAt := -1
	if !latched {
		if durationSec < 0 {
			durationSec = 0
		}
		autoAt = int(durationSec * e.sampleRate)
	}
	e.voices[slot] = voice{
		active:        true,
		id:            id,
		pitch:         pitch,
		wave:          wave,
		env:           env,
		state:         StateAttack,
		gain:          gain,
		freq:          midiToFreq(pitch),
		latched:       latched,
		autoReleaseAt: autoAt,
	}
	return id
}

// Release is idempotent: a voice already releasing or gone is left alone.
// The release ramp starts from the voice's current amplitude, not its
// nominal sustain level, so an early release has no discontinuity.
func (e *Engine) Release(id int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.voices {
		v := &e.voices[i]
		if v.active && v.id == id && v.state < StateReleasing {
			beginRelease(v, v.env.ReleaseSec, releaseGuardSec, e.sampleRate)
		}
	}
}

// StopAll force-releases every voice, latched or not, over a short fixed
// fade. Responsiveness wins over musicality here.
func (e *Engine) StopAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.voices {
		v := &e.voices[i]
		if v.active && v.state < StateReleasing {
			beginRelease(v, stopAllFadeSec, stopAllGuardSec, e.sampleRate)
		}
	}
	e.busTarget = 1
	e.busRestoreAt = -1
}

func beginRelease(v *voice, fadeSec, guardSec, sampleRate float64) {
	step := v.level / (fadeSec * sampleRate)
	if !(step > 0) { // catches zero, negative and NaN ramps
		step = 1
	}
	v.releaseStep = step
	v.guardFrames = int(guardSec * sampleRate)
	v.state = StateReleasing
	v.autoReleaseAt = -1
}

// RenderFrame advances every voice by one sample and returns the stereo
// output. Ended voices are pruned here and reported through the ended
// callback after the lock is dropped.
func (e *Engine) RenderFrame() (float32, float32) {
	e.mu.Lock()
	var ended []int
	e.busGain += e.busAlpha * (e.busTarget - e.busGain)
	if e.busRestoreAt >= 0 && e.frame >= e.busRestoreAt {
		e.busTarget = 1
		e.busRestoreAt = -1
	}
	e.frame++
	var sum float64
	for i := range e.voices {
		v := &e.voices[i]
		if !v.active {
			continue
		}
		e.advanceEnvelope(v)
		if v.state == StateEnded {
			v.active = false
			ended = append(ended, v.id)
			continue
		}
		sum += waveformSample(v.phase, v.wave) * v.level * v.gain
		v.phase += twoPi * v.freq / e.sampleRate
		if v.phase > twoPi {
			v.phase -= twoPi
		}
		v.frames++
	}
	out := float32(clamp(sum*e.busGain*e.masterGainValue(), -1, 1))
	onEnded := e.onEnded
	e.mu.Unlock()
	if onEnded != nil {
		for _, id := range ended {
			onEnded(id)
		}
	}
	return out, out
}

func (e *Engine) advanceEnvelope(v *voice) {
	if v.state < StateReleasing && v.autoReleaseAt >= 0 && v.frames >= v.autoReleaseAt {
		beginRelease(v, v.env.ReleaseSec, releaseGuardSec, e.sampleRate)
	}
	switch v.state {
	case StateAttack:
		step := 1.0 / (v.env.AttackSec * e.sampleRate)
		if !(step > 0) {
			step = 1
		}
		v.level += step
		if v.level >= 1 {
			v.level = 1
			v.state = StateDecay
		}
	case StateDecay:
		// 0/0 here (instant decay to full sustain) must not poison the level.
		step := (1 - v.env.SustainLvl) / (v.env.DecaySec * e.sampleRate)
		if !(step > 0) {
			step = 1
		}
		v.level -= step
		if v.level <= v.env.SustainLvl {
			v.level = v.env.SustainLvl
			v.state = StateSustain
		}
	case StateSustain:
		// Latched voices hold here indefinitely; unlatched ones leave via
		// the auto-release check above.
	case StateReleasing:
		if v.level > 0 {
			v.level -= v.releaseStep
		}
		if v.level <= 0 {
			v.level = 0
			if v.guardFrames > 0 {
				v.guardFrames--
			} else {
				v.state = StateEnded
			}
		}
	}
}

// Process renders interleaved stereo frames into dst. This is the
// audio.SampleSource contract.
func (e *Engine) Process(dst []float32) {
	for f := 0; f+1 < len(dst); f += 2 {
		l, r := e.RenderFrame()
		dst[f] = l
		dst[f+1] = r
	}
}

func (e *Engine) ActiveVoiceCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for i := range e.voices {
		if e.voices[i].active {
			n++
		}
	}
	return n
}

// VoiceState reports the lifecycle stage and current amplitude of a voice.
// The second return is false once the voice has ended.
func (e *Engine) VoiceState(id int) (State, float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.voices {
		v := &e.voices[i]
		if v.active && v.id == id {
			return v.state, v.level, true
		}
	}
	return StateEnded, 0, false
}

// BusGain returns the current smoothed headroom gain.
func (e *Engine) BusGain() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.busGain
}

func (e *Engine) SetMasterGain(gain float64) {
	if gain < 0 {
		gain = 0
	}
	atomic.StoreUint64(&e.masterGain, math.Float64bits(gain))
}

func (e *Engine) masterGainValue() float64 {
	return math.Float64frombits(atomic.LoadUint64(&e.masterGain))
}

func (e *Engine) stealVoice() int {
	for i := range e.voices {
		if !e.voices[i].active {
			return i
		}
	}
	// Steal the quietest voice.
	quiet := 0
	minLevel := e.voices[0].level
	for i := 1; i < len(e.voices); i++ {
		if e.voices[i].level < minLevel {
			minLevel = e.voices[i].level
			quiet = i
		}
	}
	return quiet
}

func waveformSample(phase float64, wave Waveform) float64 {
	p := math.Mod(phase, twoPi)
	switch wave {
	case WaveSquare:
		if p < math.Pi {
			return 1.0
		}
		return -1.0
	case WaveSawtooth:
		return 1.0 - 2.0*p/twoPi
	case WaveTriangle:
		return 2.0*math.Abs(2.0*p/twoPi-1.0) - 1.0
	default:
		return math.Sin(phase)
	}
}

func midiToFreq(note int) float64 {
	return 440 * math.Pow(2, float64(note-69)/12)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
