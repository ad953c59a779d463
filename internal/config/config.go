package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// EnvelopeConfig stores ADSR defaults in seconds (sustain is a level).
type EnvelopeConfig struct {
	Attack  float64 `json:"attack"`
	Decay   float64 `json:"decay"`
	Sustain float64 `json:"sustain"`
	Release float64 `json:"release"`
}

// Config is the persisted instrument setup loaded by the binaries.
type Config struct {
	Root       string         `json:"root"`
	Octave     int            `json:"octave"`
	ChordMode  string         `json:"chordMode"`
	Waveform   string         `json:"waveform"`
	Envelope   EnvelopeConfig `json:"envelope"`
	Duration   float64        `json:"duration"`
	Volume     float64        `json:"volume"`
	Tempo      float64        `json:"tempo"`
	AccentMode string         `json:"accentMode"`
	StepBeats  int            `json:"stepBeats"`
	SampleRate int            `json:"sampleRate,omitempty"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Root:      "C",
		Octave:    4,
		ChordMode: "major",
		Waveform:  "sine",
		Envelope: EnvelopeConfig{
			Attack:  0.02,
			Decay:   0.1,
			Sustain: 0.7,
			Release: 0.3,
		},
		Duration:   1.0,
		Volume:     0.8,
		Tempo:      120,
		AccentMode: "all",
		StepBeats:  4,
		SampleRate: 48000,
	}
}

// DefaultPath returns the per-user config file location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "chordpad", "config.json"), nil
}

// Load reads a config file, returning defaults when the file is absent.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config, creating the directory as needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
