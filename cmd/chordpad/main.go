package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	chordpad "github.com/cbegin/chordpad-go"
	"github.com/cbegin/chordpad-go/internal/chord"
	"github.com/cbegin/chordpad-go/internal/config"
	"github.com/cbegin/chordpad-go/internal/pulse"
	"github.com/cbegin/chordpad-go/internal/voice"
)

func main() {
	defaults := loadDefaults()

	var (
		sampleRate  = flag.Int("sample-rate", defaults.SampleRate, "output sample rate")
		root        = flag.String("root", defaults.Root, "chord root pitch class (C, C#, Db, ...)")
		octave      = flag.Int("octave", defaults.Octave, "chord root octave (0-8)")
		mode        = flag.String("mode", defaults.ChordMode, "chord mode: major|minor|major7|minor7|diminished|unison")
		wave        = flag.String("wave", defaults.Waveform, "waveform: sine|square|sawtooth|triangle")
		attack      = flag.Float64("attack", defaults.Envelope.Attack, "envelope attack seconds")
		decay       = flag.Float64("decay", defaults.Envelope.Decay, "envelope decay seconds")
		sustain     = flag.Float64("sustain", defaults.Envelope.Sustain, "envelope sustain level (0-1)")
		release     = flag.Float64("release", defaults.Envelope.Release, "envelope release seconds")
		duration    = flag.Float64("duration", defaults.Duration, "note duration seconds before auto-release")
		volume      = flag.Float64("volume", defaults.Volume, "master volume scalar")
		tempo       = flag.Float64("tempo", defaults.Tempo, "metronome tempo in BPM")
		accent      = flag.String("accent", defaults.AccentMode, "metronome accent mode: all|backbeat")
		metronome   = flag.Bool("metronome", false, "run the metronome")
		progression = flag.Bool("progression", false, "advance the root around the cycle of fourths")
		stepBeats   = flag.Int("step-beats", defaults.StepBeats, "beats per progression step")
		hold        = flag.Bool("hold", false, "latch voices until interrupted")
		seconds     = flag.Float64("seconds", 0, "play time in seconds (0 = until interrupted)")
		wavPath     = flag.String("wav", "", "render offline to a WAV file instead of playing")
		saveConfig  = flag.Bool("save-config", false, "persist these settings as defaults")
	)
	flag.Parse()

	if *saveConfig {
		cfg := &config.Config{
			Root:      *root,
			Octave:    *octave,
			ChordMode: *mode,
			Waveform:  *wave,
			Envelope: config.EnvelopeConfig{
				Attack:  *attack,
				Decay:   *decay,
				Sustain: *sustain,
				Release: *release,
			},
			Duration:   *duration,
			Volume:     *volume,
			Tempo:      *tempo,
			AccentMode: *accent,
			StepBeats:  *stepBeats,
			SampleRate: *sampleRate,
		}
		path, err := config.DefaultPath()
		if err == nil {
			err = cfg.Save(path)
		}
		if err != nil {
			log.Fatalf("save config: %v", err)
		}
		fmt.Printf("saved defaults to %s\n", path)
	}

	env := voice.Envelope{
		AttackSec:  *attack,
		DecaySec:   *decay,
		SustainLvl: *sustain,
		ReleaseSec: *release,
	}

	if *wavPath != "" {
		samples := chordpad.RenderChordSamples(chordpad.RenderOptions{
			Root:     *root,
			Octave:   *octave,
			Mode:     chord.Mode(*mode),
			Waveform: voice.ParseWaveform(*wave),
			Envelope: env,
			Duration: *duration,
			Volume:   *volume,
		}, *sampleRate, renderSeconds(*seconds, *duration, *release))
		data := chordpad.EncodeWAVFloat32LE(samples, *sampleRate, 2)
		if err := os.WriteFile(*wavPath, data, 0o644); err != nil {
			log.Fatalf("write wav: %v", err)
		}
		fmt.Printf("wrote %s (%d frames)\n", *wavPath, len(samples)/2)
		return
	}

	inst, err := chordpad.New(*sampleRate)
	if err != nil {
		log.Fatal(err)
	}
	defer inst.Close()

	inst.SetRoot(*root)
	inst.SetOctave(*octave)
	inst.SetChordMode(chord.Mode(*mode))
	inst.SetWaveform(voice.ParseWaveform(*wave))
	inst.SetEnvelope(env)
	inst.SetDuration(*duration)
	inst.SetVolume(*volume)
	inst.SetTempo(*tempo)
	inst.SetAccentMode(pulse.AccentMode(*accent))
	inst.SetStepBeats(*stepBeats)
	inst.SetHold(*hold)

	st := inst.Status()
	if !st.AudioReady {
		fmt.Fprintln(os.Stderr, "audio device unavailable; running silent")
	}
	if st.MIDIInput != "" {
		fmt.Printf("midi input: %s\n", st.MIDIInput)
	}

	events := inst.Watch()
	if *progression {
		inst.EnableProgression()
	}
	if *metronome || *progression {
		inst.StartMetronome()
	}
	inst.PlayChord()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	var deadline <-chan time.Time
	if *seconds > 0 {
		deadline = time.After(time.Duration(*seconds * float64(time.Second)))
	}
	for {
		select {
		case ev := <-events:
			switch ev.Kind {
			case chordpad.EventProgressionAdvance:
				fmt.Printf("root -> %s\n", ev.Root)
			case chordpad.EventBeat:
				if ev.Accented {
					fmt.Println("beat *")
				}
			}
		case <-interrupt:
			return
		case <-deadline:
			return
		}
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

// renderSeconds picks an offline render length long enough to cover the
// chord's duration and release tail when none was requested.
func renderSeconds(requested, duration, release float64) float64 {
	if requested > 0 {
		return requested
	}
	return duration + release + 0.1
}
