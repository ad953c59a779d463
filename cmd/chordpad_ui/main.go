package main

import (
	"fmt"
	"log"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	chordpad "github.com/cbegin/chordpad-go"
	"github.com/cbegin/chordpad-go/internal/chord"
	"github.com/cbegin/chordpad-go/internal/config"
	"github.com/cbegin/chordpad-go/internal/pulse"
	"github.com/cbegin/chordpad-go/internal/voice"
)

// Piano-style note row: key -> semitone above the current octave's C.
var noteKeys = map[string]int{
	"a": 0, "w": 1, "s": 2, "e": 3, "d": 4, "f": 5,
	"t": 6, "g": 7, "y": 8, "h": 9, "u": 10, "j": 11, "k": 12,
}

var chordModes = []chord.Mode{
	chord.ModeMajor, chord.ModeMinor, chord.ModeMajor7,
	chord.ModeMinor7, chord.ModeDiminished, chord.ModeUnison,
}

var waveforms = []voice.Waveform{
	voice.WaveSine, voice.WaveSquare, voice.WaveSawtooth, voice.WaveTriangle,
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	activeStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("84"))
	beatStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

type eventMsg chordpad.Event

type model struct {
	inst        *chordpad.Instrument
	events      <-chan chordpad.Event
	modeIdx     int
	waveIdx     int
	tempo       float64
	volume      float64
	backbeat    bool
	progression bool
	lastBeat    int
	flash       bool
	quitting    bool
}

func newModel(inst *chordpad.Instrument, cfg *config.Config) model {
	m := model{
		inst:     inst,
		events:   inst.Watch(),
		tempo:    cfg.Tempo,
		volume:   cfg.Volume,
		lastBeat: -1,
	}
	for i, md := range chordModes {
		if string(md) == cfg.ChordMode {
			m.modeIdx = i
		}
	}
	for i, w := range waveforms {
		if w.String() == cfg.Waveform {
			m.waveIdx = i
		}
	}
	m.backbeat = cfg.AccentMode == string(pulse.AccentBackbeat)
	return m
}

func listenForEvents(events <-chan chordpad.Event) tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-events)
	}
}

func (m model) Init() tea.Cmd {
	return listenForEvents(m.events)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg.String())
	case eventMsg:
		ev := chordpad.Event(msg)
		if ev.Kind == chordpad.EventBeat {
			m.lastBeat = ev.BeatIndex
			m.flash = ev.Sounded
		}
		return m, listenForEvents(m.events)
	}
	return m, nil
}

func (m model) handleKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "q", "ctrl+c":
		m.quitting = true
		m.inst.Close()
		return m, tea.Quit

	case " ":
		m.inst.PlayChord()

	case "tab":
		m.modeIdx = (m.modeIdx + 1) % len(chordModes)
		m.inst.SetChordMode(chordModes[m.modeIdx])

	case "v":
		m.waveIdx = (m.waveIdx + 1) % len(waveforms)
		m.inst.SetWaveform(waveforms[m.waveIdx])

	case ".":
		m.inst.SetHold(!m.inst.Hold())

	case "o":
		m.inst.ReleaseHeld()

	case "x":
		m.inst.StopAll()

	case "m":
		if m.inst.Status().MetronomeRunning {
			m.inst.StopMetronome()
		} else {
			m.inst.StartMetronome()
		}

	case "b":
		mode := pulse.AccentBackbeat
		if m.backbeat {
			mode = pulse.AccentAll
		}
		m.inst.SetAccentMode(mode)
		m.backbeat = mode == pulse.AccentBackbeat

	case "p":
		if m.progression {
			m.inst.DisableProgression()
		} else {
			m.inst.EnableProgression()
		}
		m.progression = !m.progression

	case "[":
		m.tempo -= 5
		if m.tempo < 10 {
			m.tempo = 10
		}
		m.inst.SetTempo(m.tempo)

	case "]":
		m.tempo += 5
		m.inst.SetTempo(m.tempo)

	case "z":
		m.octaveShift(-1)

	case "c":
		m.octaveShift(1)

	case "-":
		m.volume -= 0.05
		if m.volume < 0 {
			m.volume = 0
		}
		m.inst.SetVolume(m.volume)

	case "=":
		m.volume += 0.05
		m.inst.SetVolume(m.volume)

	default:
		if offset, ok := noteKeys[key]; ok {
			sel := m.inst.CurrentSelection()
			note := (sel.Octave+1)*12 + offset
			m.inst.NoteOn(uint8(note), 100)
		}
	}
	return m, nil
}

func (m model) octaveShift(delta int) {
	sel := m.inst.CurrentSelection()
	m.inst.SetOctave(sel.Octave + delta)
}

func (m model) View() string {
	if m.quitting {
		return "bye\n"
	}
	st := m.inst.Status()
	sel := m.inst.CurrentSelection()

	var b strings.Builder
	b.WriteString(titleStyle.Render("chordpad") + "\n\n")

	b.WriteString(fmt.Sprintf("%s %s%d %s   %s %s\n",
		labelStyle.Render("chord"),
		valueStyle.Render(sel.Root), sel.Octave,
		valueStyle.Render(string(sel.Mode)),
		labelStyle.Render("wave"),
		valueStyle.Render(waveforms[m.waveIdx].String()),
	))

	hold := "off"
	if st.Hold {
		hold = activeStyle.Render(fmt.Sprintf("on (%d held)", st.HeldVoices))
	}
	b.WriteString(fmt.Sprintf("%s %s   %s %d\n",
		labelStyle.Render("hold"), hold,
		labelStyle.Render("voices"), st.ActiveVoices,
	))

	b.WriteString(m.beatLine(st))
	b.WriteString(m.deviceLine(st))

	b.WriteString("\n" + helpStyle.Render(
		"a-k notes  space chord  tab mode  v wave  . hold  o release  x stop\n"+
			"m metronome  b backbeat  p progression  [ ] tempo  z c octave  - = volume  q quit") + "\n")
	return b.String()
}

func (m model) beatLine(st chordpad.Status) string {
	marks := make([]string, 4)
	for i := range marks {
		marks[i] = "."
	}
	if st.MetronomeRunning && m.lastBeat >= 0 && m.lastBeat < 4 {
		mark := "o"
		if m.flash {
			mark = beatStyle.Render("#")
		}
		marks[m.lastBeat] = mark
	}
	metro := "stopped"
	if st.MetronomeRunning {
		metro = fmt.Sprintf("%.0f bpm", st.Tempo)
	}
	prog := ""
	if st.ProgressionOn {
		prog = "   " + activeStyle.Render("progression")
	}
	return fmt.Sprintf("%s %s  %s%s\n",
		labelStyle.Render("pulse"), metro, strings.Join(marks, " "), prog)
}

func (m model) deviceLine(st chordpad.Status) string {
	audio := "ok"
	if !st.AudioReady {
		audio = "unavailable"
	}
	midiIn := "none"
	if st.MIDIInput != "" {
		midiIn = st.MIDIInput
	}
	return fmt.Sprintf("%s %s   %s %s\n",
		labelStyle.Render("audio"), audio,
		labelStyle.Render("midi"), midiIn,
	)
}

func main() {
	cfg := loadDefaults()
	inst, err := chordpad.New(cfg.SampleRate)
	if err != nil {
		log.Fatal(err)
	}
	defer inst.Close()

	inst.SetRoot(cfg.Root)
	inst.SetOctave(cfg.Octave)
	inst.SetChordMode(chord.Mode(cfg.ChordMode))
	inst.SetWaveform(voice.ParseWaveform(cfg.Waveform))
	inst.SetEnvelope(voice.Envelope{
		AttackSec:  cfg.Envelope.Attack,
		DecaySec:   cfg.Envelope.Decay,
		SustainLvl: cfg.Envelope.Sustain,
		ReleaseSec: cfg.Envelope.Release,
	})
	inst.SetDuration(cfg.Duration)
	inst.SetVolume(cfg.Volume)
	inst.SetTempo(cfg.Tempo)
	inst.SetAccentMode(pulse.AccentMode(cfg.AccentMode))
	inst.SetStepBeats(cfg.StepBeats)

	p := tea.NewProgram(newModel(inst, cfg))
	if _, err := p.Run(); err != nil {
		log.Fatal(err)
	}
}

func loadDefaults() *config.Config {
	path, err := config.DefaultPath()
	if err != nil {
		return config.DefaultConfig()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.DefaultConfig()
	}
	return cfg
}
