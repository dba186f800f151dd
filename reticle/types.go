// Package reticle implements the focus reticle: a square surface-detection
// indicator for augmented-reality views that stabilizes noisy per-frame hits
// into a smooth pose and a small set of open/closed/alignment transitions.
package reticle

import (
	"encoding/json"
	"fmt"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// SurfaceAlignment is the orientation class of a detected surface
type SurfaceAlignment int

const (
	AlignmentHorizontal SurfaceAlignment = iota
	AlignmentVertical
)

func (a SurfaceAlignment) String() string {
	switch a {
	case AlignmentHorizontal:
		return "horizontal"
	case AlignmentVertical:
		return "vertical"
	}
	return fmt.Sprintf("SurfaceAlignment(%d)", int(a))
}

// MarshalText encodes the alignment as "horizontal" or "vertical"
func (a SurfaceAlignment) MarshalText() ([]byte, error) {
	switch a {
	case AlignmentHorizontal, AlignmentVertical:
		return []byte(a.String()), nil
	}
	return nil, fmt.Errorf("invalid surface alignment %d", int(a))
}

// UnmarshalText decodes "horizontal" or "vertical"
func (a *SurfaceAlignment) UnmarshalText(text []byte) error {
	switch string(text) {
	case "horizontal":
		*a = AlignmentHorizontal
	case "vertical":
		*a = AlignmentVertical
	default:
		return fmt.Errorf("unknown surface alignment %q", string(text))
	}
	return nil
}

// Alignment returns a pointer to a, for building samples inline
func Alignment(a SurfaceAlignment) *SurfaceAlignment {
	return &a
}

// SurfaceID is the stable identifier the detection subsystem assigns to a plane.
// The empty string means no surface.
type SurfaceID string

// Sample is one per-frame surface hit-test result
type Sample struct {
	Position  r3.Vector
	Alignment *SurfaceAlignment // nil when the hit carries no classification
	SurfaceID SurfaceID
	HasPlane  bool
	Normal    r3.Vector // zero when unknown
}

// OnPlane reports whether the sample resolves to a detected plane anchor
func (s Sample) OnPlane() bool {
	return s.HasPlane && s.SurfaceID != ""
}

// CameraPose is a snapshot of the viewing camera. The camera looks along its
// local -Z axis with +Y up.
type CameraPose struct {
	Position    r3.Vector
	Orientation quat.Number
}

// Transform is the node transform handed to the renderer each frame
type Transform struct {
	Position r3.Vector
	Rotation quat.Number
	Scale    float64
}

// transformJSON is the wire form of Transform: position [x,y,z], rotation
// [w,x,y,z]
type transformJSON struct {
	Position [3]float64 `json:"position"`
	Rotation [4]float64 `json:"rotation"`
	Scale    float64    `json:"scale"`
}

// MarshalJSON encodes the transform with array-valued position and rotation
func (t Transform) MarshalJSON() ([]byte, error) {
	return json.Marshal(transformJSON{
		Position: vecArray(t.Position),
		Rotation: [4]float64{t.Rotation.Real, t.Rotation.Imag, t.Rotation.Jmag, t.Rotation.Kmag},
		Scale:    t.Scale,
	})
}

// UnmarshalJSON decodes the form written by MarshalJSON
func (t *Transform) UnmarshalJSON(data []byte) error {
	var w transformJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	t.Position = arrayVec(w.Position)
	t.Rotation = quat.Number{Real: w.Rotation[0], Imag: w.Rotation[1], Jmag: w.Rotation[2], Kmag: w.Rotation[3]}
	t.Scale = w.Scale
	return nil
}

func vecArray(v r3.Vector) [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}

func arrayVec(a [3]float64) r3.Vector {
	return r3.Vector{X: a[0], Y: a[1], Z: a[2]}
}

// IdentityTransform has no translation or rotation and unit scale
func IdentityTransform() Transform {
	return Transform{Rotation: quat.Number{Real: 1}, Scale: 1}
}

// Corner of the square a segment belongs to
type Corner int

const (
	TopLeft Corner = iota
	TopRight
	BottomRight
	BottomLeft
)

func (c Corner) String() string {
	switch c {
	case TopLeft:
		return "topLeft"
	case TopRight:
		return "topRight"
	case BottomRight:
		return "bottomRight"
	case BottomLeft:
		return "bottomLeft"
	}
	return fmt.Sprintf("Corner(%d)", int(c))
}

// SegmentAlignment is the segment's own orientation within the square
type SegmentAlignment int

const (
	SegmentHorizontal SegmentAlignment = iota
	SegmentVertical
)

func (a SegmentAlignment) String() string {
	if a == SegmentVertical {
		return "vertical"
	}
	return "horizontal"
}

// Direction a segment moves in square-local coordinates (x right, y up)
type Direction int

const (
	Up Direction = iota
	Down
	Left
	Right
)

// Reversed returns the opposite direction
func (d Direction) Reversed() Direction {
	switch d {
	case Up:
		return Down
	case Down:
		return Up
	case Left:
		return Right
	default:
		return Left
	}
}

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	default:
		return "right"
	}
}
