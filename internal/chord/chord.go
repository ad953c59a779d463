package chord

// Mode identifies a harmonic chord quality.
type Mode string

const (
	ModeUnison     Mode = "unison"
	ModeMajor      Mode = "major"
	ModeMinor      Mode = "minor"
	ModeMajor7     Mode = "major7"
	ModeMinor7     Mode = "minor7"
	ModeDiminished Mode = "diminished"
)

// offsets maps each mode to its semitone offsets above the root.
// Every entry is ascending and starts at 0.
var offsets = map[Mode][]int{
	ModeUnison:     {0},
	ModeMajor:      {0, 4, 7},
	ModeMinor:      {0, 3, 7},
	ModeMajor7:     {0, 4, 7, 11},
	ModeMinor7:     {0, 3, 7, 10},
	ModeDiminished: {0, 3, 6},
}

// Resolve returns the semitone offsets for mode. An unknown mode resolves
// to unison rather than failing.
func Resolve(mode Mode) []int {
	table, ok := offsets[mode]
	if !ok {
		table = offsets[ModeUnison]
	}
	out := make([]int, len(table))
	copy(out, table)
	return out
}

// Pitches returns the absolute semitone pitches of the chord rooted at root.
func Pitches(root int, mode Mode) []int {
	out := Resolve(mode)
	for i := range out {
		out[i] += root
	}
	return out
}

// PitchClasses lists the twelve pitch-class names in sharp spelling,
// indexed by semitone above C.
var PitchClasses = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// flatAliases maps flat spellings to their sharp equivalents.
var flatAliases = map[string]string{
	"DB": "C#",
	"EB": "D#",
	"GB": "F#",
	"AB": "G#",
	"BB": "A#",
}

// PitchClass returns the semitone index (0-11) of a note name such as "C",
// "F#" or "Bb". The second return is false for unrecognized names.
func PitchClass(name string) (int, bool) {
	n := normalizeName(name)
	if alias, ok := flatAliases[n]; ok {
		n = alias
	}
	for i, pc := range PitchClasses {
		if pc == n {
			return i, true
		}
	}
	return 0, false
}

// MIDIPitch converts a note name and octave to a MIDI semitone number
// (C4 = 60, A4 = 69). Unknown names are treated as C.
func MIDIPitch(name string, octave int) int {
	pc, _ := PitchClass(name)
	return (octave+1)*12 + pc
}

func normalizeName(name string) string {
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z':
			out = append(out, c-'a'+'A')
		case c == ' ' || c == '\t':
		default:
			out = append(out, c)
		}
	}
	return string(out)
}
