package chordpad

import (
	"encoding/binary"
	"math"

	intchord "github.com/cbegin/chordpad-go/internal/chord"
	intvoice "github.com/cbegin/chordpad-go/internal/voice"
)

// RenderOptions describes one offline chord render.
type RenderOptions struct {
	Root     string
	Octave   int
	Mode     intchord.Mode
	Waveform intvoice.Waveform
	Envelope intvoice.Envelope
	Duration float64
	Volume   float64
}

// RenderChordSamples renders a single triggered chord through the real
// voice engine without an audio device, returning interleaved stereo
// samples covering seconds of output.
func RenderChordSamples(opts RenderOptions, sampleRate int, seconds float64) []float32 {
	params := intvoice.DefaultParams()
	engine := intvoice.New(sampleRate, params)
	vol := opts.Volume
	if vol < 0 {
		vol = 0
	}
	engine.SetMasterGain(params.MasterGain * vol)
	root := intchord.MIDIPitch(opts.Root, opts.Octave)
	pitches := intchord.Pitches(root, opts.Mode)
	engine.TriggerChord(pitches, opts.Waveform, opts.Envelope, opts.Duration, false, 1)
	frames := int(float64(sampleRate) * seconds)
	out := make([]float32, frames*2)
	engine.Process(out)
	return out
}

// EncodeWAVFloat32LE wraps interleaved float32 samples in a WAV container
// (format 3, 32-bit float PCM).
func EncodeWAVFloat32LE(samples []float32, sampleRate int, channels int) []byte {
	dataSize := len(samples) * 4
	byteRate := sampleRate * channels * 4
	blockAlign := channels * 4
	chunkSize := 36 + dataSize
	out := make([]byte, 44+dataSize)
	copy(out[0:], []byte("RIFF"))
	binary.LittleEndian.PutUint32(out[4:], uint32(chunkSize))
	copy(out[8:], []byte("WAVE"))
	copy(out[12:], []byte("fmt "))
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 3)
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], 32)
	copy(out[36:], []byte("data"))
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[44+i*4:], math.Float32bits(s))
	}
	return out
}
