package pulse

import (
	"sync"
	"time"
)

// AccentMode selects which beats of the bar audibly click.
type AccentMode string

const (
	AccentAll      AccentMode = "all"
	AccentBackbeat AccentMode = "backbeat"
)

const (
	beatsPerBar = 4
	minBPM      = 10
)

// Beat describes one metronome tick. Sounded is false for beats filtered
// out by the accent mode; such beats still reach the callback because the
// progression counts every beat, clicked or not.
type Beat struct {
	Index    int
	Sounded  bool
	Accented bool
}

// Metronome is a wall-clock periodic beat source. It runs on its own
// time.Ticker, deliberately independent of the engine's sample clock; the
// two are allowed to drift. There is no catch-up for missed ticks - a
// stalled host clock skips real time rather than queueing a backlog.
type Metronome struct {
	mu        sync.Mutex
	onBeat    func(Beat)
	bpm       float64
	accent    AccentMode
	beatIndex int
	running   bool
	ticker    *time.Ticker
	done      chan struct{}
}

func New(onBeat func(Beat)) *Metronome {
	return &Metronome{
		onBeat: onBeat,
		bpm:    120,
		accent: AccentAll,
	}
}

// Interval returns the tick period for a tempo (120 BPM = 500ms), keeping
// sub-millisecond precision. The period is floored at 1ms so an absurd
// tempo can never arm a non-positive ticker.
func Interval(bpm float64) time.Duration {
	d := time.Duration(60000 / clampBPM(bpm) * float64(time.Millisecond))
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return d
}

// Start arms the periodic timer and fires the first beat immediately so
// there is no silent lead-in. No-op when already running.
func (m *Metronome) Start(bpm float64, accent AccentMode) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.bpm = clampBPM(bpm)
	if accent == AccentBackbeat {
		m.accent = AccentBackbeat
	} else {
		m.accent = AccentAll
	}
	m.beatIndex = 0
	m.running = true
	m.ticker = time.NewTicker(Interval(m.bpm))
	m.done = make(chan struct{})
	go m.run(m.ticker, m.done)
	m.mu.Unlock()
	m.tick()
}

func (m *Metronome) run(ticker *time.Ticker, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			m.tick()
		}
	}
}

// tick decides whether this beat sounds, snapshots it, advances the beat
// index, and hands the beat to the callback outside the lock (the callback
// re-enters the metronome through the owning instrument).
func (m *Metronome) tick() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	b := Beat{
		Index:   m.beatIndex,
		Sounded: beatSounds(m.accent, m.beatIndex),
	}
	b.Accented = b.Sounded && b.Index == 0
	m.beatIndex = (m.beatIndex + 1) % beatsPerBar
	fn := m.onBeat
	m.mu.Unlock()
	if fn != nil {
		fn(b)
	}
}

// Stop cancels the periodic timer. In-flight voice envelopes are not
// touched. Idempotent.
func (m *Metronome) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.running = false
	m.ticker.Stop()
	close(m.done)
	m.ticker = nil
	m.done = nil
}

// SetTempo rearms the timer at the new interval when running. The period
// restarts from now; the already-elapsed beat index and phase are not
// corrected, matching the instrument's observable behavior.
func (m *Metronome) SetTempo(bpm float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bpm = clampBPM(bpm)
	if m.running {
		m.ticker.Reset(Interval(m.bpm))
	}
}

// SetAccentMode changes the click filter. Takes effect on the next beat.
func (m *Metronome) SetAccentMode(accent AccentMode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if accent == AccentBackbeat {
		m.accent = AccentBackbeat
	} else {
		m.accent = AccentAll
	}
}

func (m *Metronome) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Metronome) BPM() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bpm
}

func (m *Metronome) BeatIndex() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.beatIndex
}

func (m *Metronome) AccentModeValue() AccentMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accent
}

// beatSounds applies the accent filter: "all" clicks every beat,
// "backbeat" clicks only beats 2 and 4 of the bar.
func beatSounds(accent AccentMode, index int) bool {
	if accent == AccentBackbeat {
		return index == 1 || index == 3
	}
	return true
}

func clampBPM(bpm float64) float64 {
	if bpm < minBPM {
		return minBPM
	}
	return bpm
}
