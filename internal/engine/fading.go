package engine

import "github.com/proteus-audio/proteus/internal/ring"

// fadeState tracks one key's linear fade progress during a shuffle
// crossfade. The outgoing key's gain at frame index i of total is
// (total-i)/total and the incoming key's is i/total, so the pair always
// sums to one across the crossfade window.
type fadeState struct {
	framesRemaining int
	totalFrames     int
	fadeIn          bool
}

func (f fadeState) gain() float32 {
	if f.totalFrames <= 0 {
		return 0
	}
	return float32(f.framesRemaining) / float32(f.totalFrames)
}

// fadingSet is the shared map of keys currently crossfading out.
type fadingSet struct {
	entries map[ring.Key]fadeState
}

func newFadingSet() *fadingSet {
	return &fadingSet{entries: make(map[ring.Key]fadeState)}
}

func (s *fadingSet) Start(k ring.Key, frames int) {
	s.entries[k] = fadeState{framesRemaining: frames, totalFrames: frames}
}

// StartIn begins the complementary fade-in for a freshly spawned key.
func (s *fadingSet) StartIn(k ring.Key, frames int) {
	s.entries[k] = fadeState{framesRemaining: frames, totalFrames: frames, fadeIn: true}
}

func (s *fadingSet) Advance(k ring.Key, frames int) (gain float32, expired bool) {
	st, ok := s.entries[k]
	if !ok {
		return 1, false
	}
	g := st.gain()
	st.framesRemaining -= frames
	if st.framesRemaining <= 0 {
		delete(s.entries, k)
		return g, true
	}
	s.entries[k] = st
	return g, false
}

// State returns the remaining/total frame counts and direction for a
// fading key without advancing it, used by the mixer's per-frame gain
// computation.
func (s *fadingSet) State(k ring.Key) (remaining, total int, fadeIn, ok bool) {
	st, found := s.entries[k]
	if !found {
		return 0, 0, false, false
	}
	return st.framesRemaining, st.totalFrames, st.fadeIn, true
}

// Drop discards a fade entry without letting it run to expiry, used when
// the faded key's buffer exhausts before the crossfade window does.
func (s *fadingSet) Drop(k ring.Key) {
	delete(s.entries, k)
}

func (s *fadingSet) Active(k ring.Key) bool {
	_, ok := s.entries[k]
	return ok
}
