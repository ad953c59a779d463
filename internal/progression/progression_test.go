package progression

import "testing"

func TestAdvanceEveryStepBeats(t *testing.T) {
	var roots []string
	d := NewDriver(func(root string) { roots = append(roots, root) })
	d.SetStepBeats(8)
	d.Enable("C")

	for i := 0; i < 8; i++ {
		d.OnBeat(true)
	}
	if len(roots) != 1 || roots[0] != "F" {
		t.Fatalf("after 8 beats roots = %v, want [F]", roots)
	}
	if d.CycleIndex() != 1 {
		t.Fatalf("cycle index = %d, want 1", d.CycleIndex())
	}

	for i := 0; i < 8; i++ {
		d.OnBeat(true)
	}
	if len(roots) != 2 || roots[1] != "A#" {
		t.Fatalf("after 16 beats roots = %v, want [F A#]", roots)
	}
	if d.CycleIndex() != 2 {
		t.Fatalf("cycle index = %d, want 2", d.CycleIndex())
	}
}

func TestNoAdvanceWhenDisabledOrStopped(t *testing.T) {
	advances := 0
	d := NewDriver(func(string) { advances++ })
	d.SetStepBeats(1)

	// Disabled: beats are ignored entirely.
	d.OnBeat(true)
	if advances != 0 {
		t.Fatalf("advanced while disabled")
	}

	// Enabled but pulse stopped: still ignored.
	d.Enable("C")
	d.OnBeat(false)
	if advances != 0 {
		t.Fatalf("advanced while pulse stopped")
	}

	d.OnBeat(true)
	if advances != 1 {
		t.Fatalf("advances = %d, want 1", advances)
	}

	d.Disable()
	d.OnBeat(true)
	if advances != 1 {
		t.Fatalf("advanced after Disable")
	}
}

func TestEnableSynchronizesCycleIndex(t *testing.T) {
	d := NewDriver(nil)
	cases := []struct {
		root string
		want int
	}{
		{"C", 0},
		{"F", 1},
		{"G#", 4},
		{"Ab", 4}, // flat spelling
		{"G", 11},
		{"nonsense", 0},
	}
	for _, tc := range cases {
		d.Enable(tc.root)
		if got := d.CycleIndex(); got != tc.want {
			t.Errorf("Enable(%q) index = %d, want %d", tc.root, got, tc.want)
		}
	}
}

func TestCycleWrapsAfterG(t *testing.T) {
	var roots []string
	d := NewDriver(func(root string) { roots = append(roots, root) })
	d.SetStepBeats(1)
	d.Enable("G") // index 11, last entry
	d.OnBeat(true)
	if len(roots) != 1 || roots[0] != "C" {
		t.Fatalf("wrap produced %v, want [C]", roots)
	}
	if d.CycleIndex() != 0 {
		t.Fatalf("cycle index = %d, want 0", d.CycleIndex())
	}
}

func TestSetStepBeatsResetsCounter(t *testing.T) {
	advances := 0
	d := NewDriver(func(string) { advances++ })
	d.SetStepBeats(4)
	d.Enable("C")

	d.OnBeat(true)
	d.OnBeat(true)
	d.OnBeat(true)
	d.SetStepBeats(4) // stale count must not trigger an immediate advance
	d.OnBeat(true)
	if advances != 0 {
		t.Fatalf("advanced on stale counter")
	}
	d.OnBeat(true)
	d.OnBeat(true)
	d.OnBeat(true)
	if advances != 1 {
		t.Fatalf("advances = %d, want 1", advances)
	}
}

func TestSetStepBeatsFloorsAtOne(t *testing.T) {
	d := NewDriver(nil)
	d.SetStepBeats(0)
	if d.StepBeats() != 1 {
		t.Fatalf("step beats = %d, want 1", d.StepBeats())
	}
}

func TestCycleTableIsFourths(t *testing.T) {
	want := [12]string{"C", "F", "A#", "D#", "G#", "C#", "F#", "B", "E", "A", "D", "G"}
	if CycleOfFourths != want {
		t.Fatalf("cycle table = %v", CycleOfFourths)
	}
}
