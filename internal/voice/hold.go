package voice

// Hold tracks which active voices are latched open by the global sustain
// mode. It references voices by handle; the engine stays the owner. Hold
// performs no locking of its own: the caller serializes access alongside
// its other instrument state (the engine's ended callback included).
type Hold struct {
	engine  *Engine
	enabled bool
	held    map[int]struct{}
}

func NewHold(engine *Engine) *Hold {
	return &Hold{
		engine: engine,
		held:   make(map[int]struct{}),
	}
}

// SetEnabled toggles latch mode for subsequently created voices. Existing
// voices keep whatever latch state they were created with; turning hold
// off releases everything currently held.
func (h *Hold) SetEnabled(on bool) {
	h.enabled = on
	if !on {
		h.ReleaseAll()
	}
}

func (h *Hold) Enabled() bool {
	return h.enabled
}

// Track records latched voice handles. No-op while hold is off.
func (h *Hold) Track(ids ...int) {
	if !h.enabled {
		return
	}
	for _, id := range ids {
		h.held[id] = struct{}{}
	}
}

// ReleaseAll releases every held voice. The set is snapshotted and cleared
// before any release call so voices ending concurrently and re-entering
// the pruning path never observe a stale membership.
func (h *Hold) ReleaseAll() {
	snapshot := make([]int, 0, len(h.held))
	for id := range h.held {
		snapshot = append(snapshot, id)
	}
	h.held = make(map[int]struct{})
	for _, id := range snapshot {
		h.engine.Release(id)
	}
}

// Forget drops a handle from the latch set. Wired to the engine's ended
// callback so membership never outlives the voice.
func (h *Hold) Forget(id int) {
	delete(h.held, id)
}

// Size returns the number of currently latched voices.
func (h *Hold) Size() int {
	return len(h.held)
}

// Held reports whether a handle is in the latch set.
func (h *Hold) Held(id int) bool {
	_, ok := h.held[id]
	return ok
}
