package reticle

import "fmt"

// positionTolerance is how far apart two stabilized positions may be and
// still denote the same detection
const positionTolerance = 1e-6

// StateKind discriminates State
type StateKind int

const (
	StateInitializing StateKind = iota
	StateDetecting
)

func (k StateKind) String() string {
	if k == StateDetecting {
		return "detecting"
	}
	return "initializing"
}

// State is the indicator's visual state: Initializing (no stable surface) or
// Detecting with the stabilized sample. Sample is only meaningful when
// Kind is StateDetecting.
type State struct {
	Kind   StateKind
	Sample Sample
}

// Initializing returns the initial state
func Initializing() State {
	return State{Kind: StateInitializing}
}

// Detecting returns the state for a stabilized sample
func Detecting(s Sample) State {
	return State{Kind: StateDetecting, Sample: s}
}

// Equal compares states by their semantic fields: two Detecting states are
// equal when they denote the same position, surface and alignment.
func (s State) Equal(o State) bool {
	if s.Kind != o.Kind {
		return false
	}
	if s.Kind == StateInitializing {
		return true
	}
	a, b := s.Sample, o.Sample
	if a.SurfaceID != b.SurfaceID || a.HasPlane != b.HasPlane {
		return false
	}
	if (a.Alignment == nil) != (b.Alignment == nil) {
		return false
	}
	if a.Alignment != nil && *a.Alignment != *b.Alignment {
		return false
	}
	return a.Position.Sub(b.Position).Norm() <= positionTolerance
}

func (s State) String() string {
	if s.Kind == StateInitializing {
		return "initializing"
	}
	align := "none"
	if s.Sample.Alignment != nil {
		align = s.Sample.Alignment.String()
	}
	return fmt.Sprintf("detecting(surface=%q plane=%t alignment=%s position=(%.3f, %.3f, %.3f))",
		s.Sample.SurfaceID, s.Sample.HasPlane, align,
		s.Sample.Position.X, s.Sample.Position.Y, s.Sample.Position.Z)
}
