package reticle

import "github.com/golang/geo/r3"

// PoseSmoother turns noisy per-frame hits into a stable position and a
// debounced alignment. Histories are never cleared for the lifetime of the
// indicator.
type PoseSmoother struct {
	positions  *history[r3.Vector]
	alignments *history[SurfaceAlignment]
	reported   *SurfaceAlignment
}

// NewPoseSmoother creates a smoother averaging the last positionWindow
// positions and voting over the last alignmentWindow alignments
func NewPoseSmoother(positionWindow, alignmentWindow int) *PoseSmoother {
	return &PoseSmoother{
		positions:  newHistory[r3.Vector](positionWindow),
		alignments: newHistory[SurfaceAlignment](alignmentWindow),
	}
}

// AddSample records a hit. The alignment is only recorded when the hit
// carries one.
func (s *PoseSmoother) AddSample(position r3.Vector, alignment *SurfaceAlignment) {
	s.positions.push(position)
	if alignment != nil {
		s.alignments.push(*alignment)
	}
}

// HasPosition reports whether StabilizedPosition may be called
func (s *PoseSmoother) HasPosition() bool {
	return s.positions.len() > 0
}

// HasAlignment reports whether StabilizedAlignment may be called
func (s *PoseSmoother) HasAlignment() bool {
	return s.alignments.len() > 0
}

// StabilizedPosition returns the mean of the recorded positions.
// It panics if no sample has been added.
func (s *PoseSmoother) StabilizedPosition() r3.Vector {
	n := s.positions.len()
	if n == 0 {
		panic("reticle: StabilizedPosition called before any sample was added")
	}
	var sum r3.Vector
	s.positions.each(func(p r3.Vector) { sum = sum.Add(p) })
	return sum.Mul(1 / float64(n))
}

// StabilizedAlignment returns the majority alignment of the recent history.
// A tie keeps the previously reported alignment; the first report with a tie
// takes the newest sample. It panics if no alignment has been added.
func (s *PoseSmoother) StabilizedAlignment() SurfaceAlignment {
	newest, ok := s.alignments.newest()
	if !ok {
		panic("reticle: StabilizedAlignment called before any alignment was added")
	}

	var horizontal, vertical int
	s.alignments.each(func(a SurfaceAlignment) {
		if a == AlignmentVertical {
			vertical++
		} else {
			horizontal++
		}
	})

	var result SurfaceAlignment
	switch {
	case horizontal > vertical:
		result = AlignmentHorizontal
	case vertical > horizontal:
		result = AlignmentVertical
	case s.reported != nil:
		result = *s.reported
	default:
		result = newest
	}
	s.reported = &result
	return result
}

// RecentAlignments returns the alignment history, oldest first
func (s *PoseSmoother) RecentAlignments() []SurfaceAlignment {
	return s.alignments.slice()
}

// PositionWindow returns K, the position history capacity
func (s *PoseSmoother) PositionWindow() int {
	return s.positions.capacity()
}

// AlignmentWindow returns M, the alignment history capacity
func (s *PoseSmoother) AlignmentWindow() int {
	return s.alignments.capacity()
}
