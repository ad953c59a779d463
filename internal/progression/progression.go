package progression

import "github.com/cbegin/chordpad-go/internal/chord"

// CycleOfFourths is the fixed 12-step root sequence, each entry a fourth
// above the previous, starting at C.
var CycleOfFourths = [12]string{
	"C", "F", "A#", "D#", "G#", "C#", "F#", "B", "E", "A", "D", "G",
}

// Driver advances the harmonic root around the cycle of fourths, counting
// every metronome beat whether or not it audibly clicked. It holds no
// locks: the owning instrument serializes OnBeat with its other state.
type Driver struct {
	enabled     bool
	stepBeats   int
	cycleIndex  int
	beatCounter int
	advance     func(root string)
}

// NewDriver creates a driver that calls advance with the new root name
// every time the cycle steps.
func NewDriver(advance func(root string)) *Driver {
	return &Driver{
		stepBeats: 4,
		advance:   advance,
	}
}

// OnBeat consumes one beat event. No-op unless the driver is enabled and
// the pulse source reports itself running. When the counter reaches the
// step size it resets, the cycle advances, and the advance callback fires
// synchronously within the same beat.
func (d *Driver) OnBeat(pulseRunning bool) {
	if !d.enabled || !pulseRunning {
		return
	}
	d.beatCounter++
	if d.beatCounter < d.stepBeats {
		return
	}
	d.beatCounter = 0
	d.cycleIndex = (d.cycleIndex + 1) % len(CycleOfFourths)
	if d.advance != nil {
		d.advance(CycleOfFourths[d.cycleIndex])
	}
}

// Enable turns the driver on, synchronizing the cycle position to the
// given root name (index 0 when the name is not in the cycle) and
// resetting the beat counter.
func (d *Driver) Enable(currentRoot string) {
	d.cycleIndex = indexOf(currentRoot)
	d.beatCounter = 0
	d.enabled = true
}

func (d *Driver) Disable() {
	d.enabled = false
}

func (d *Driver) Enabled() bool {
	return d.enabled
}

// SetStepBeats changes how many beats elapse per cycle step. The counter
// resets so a stale count can never trigger an immediate advance.
func (d *Driver) SetStepBeats(n int) {
	if n < 1 {
		n = 1
	}
	d.stepBeats = n
	d.beatCounter = 0
}

func (d *Driver) StepBeats() int {
	return d.stepBeats
}

func (d *Driver) CycleIndex() int {
	return d.cycleIndex
}

// indexOf locates a root name in the cycle, accepting flat spellings
// (Bb, Eb, ...) via the pitch-class table. Unknown names map to 0.
func indexOf(root string) int {
	pc, ok := chord.PitchClass(root)
	if !ok {
		return 0
	}
	name := chord.PitchClasses[pc]
	for i, entry := range CycleOfFourths {
		if entry == name {
			return i
		}
	}
	return 0
}
