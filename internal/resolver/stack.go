package resolver

// Stack tracks the instances currently being built by one session. It is
// owned by a single goroutine and is not synchronized.
//
// Each frame is pushed with the identity of what it builds; two frames are
// the same when their identities are equal, whatever their names.
type Stack struct {
	frames []Frame
	owners []any
}

// Push appends a frame built by owner. It reports the index of a frame with
// the same owner already on the stack, or -1.
func (s *Stack) Push(f Frame, owner any) int {
	idx := s.IndexOf(owner)
	s.frames = append(s.frames, f)
	s.owners = append(s.owners, owner)
	return idx
}

// Pop removes the innermost frame.
func (s *Stack) Pop() {
	if n := len(s.frames); n > 0 {
		s.frames = s.frames[:n-1]
		s.owners = s.owners[:n-1]
	}
}

// IndexOf returns the position of the frame built by owner or -1.
func (s *Stack) IndexOf(owner any) int {
	for i, o := range s.owners {
		if o == owner {
			return i
		}
	}
	return -1
}

// Frames returns a copy of the current chain, outermost first.
func (s *Stack) Frames() []Frame {
	out := make([]Frame, len(s.frames))
	copy(out, s.frames)
	return out
}
