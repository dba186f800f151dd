package reticle

import (
	"fmt"

	"github.com/paulmach/orb"
)

// openDirections is the direction the open end of each segment moves toward
var openDirections = map[Corner][2]Direction{
	TopLeft:     {SegmentHorizontal: Left, SegmentVertical: Up},
	TopRight:    {SegmentHorizontal: Right, SegmentVertical: Up},
	BottomLeft:  {SegmentHorizontal: Left, SegmentVertical: Down},
	BottomRight: {SegmentHorizontal: Right, SegmentVertical: Down},
}

// SegmentGeometry is the rectangle a renderer draws for one segment, in
// square-local units (unit square centered on the origin, x right, y up)
type SegmentGeometry struct {
	Name   string    `json:"name"`
	Center orb.Point `json:"center"`
	Width  float64   `json:"width"`
	Height float64   `json:"height"`
}

// Bound returns the axis-aligned rectangle of the segment
func (g SegmentGeometry) Bound() orb.Bound {
	hw, hh := g.Width/2, g.Height/2
	return orb.Bound{
		Min: orb.Point{g.Center[0] - hw, g.Center[1] - hh},
		Max: orb.Point{g.Center[0] + hw, g.Center[1] + hh},
	}
}

// lerp blends a toward b; t is clamped to [0, 1]
func (g SegmentGeometry) lerp(b SegmentGeometry, t float64) SegmentGeometry {
	t = clamp01(t)
	return SegmentGeometry{
		Name:   b.Name,
		Center: orb.Point{lerp(g.Center[0], b.Center[0], t), lerp(g.Center[1], b.Center[1], t)},
		Width:  lerp(g.Width, b.Width, t),
		Height: lerp(g.Height, b.Height, t),
	}
}

// Segment is one of the eight strips that make up the square outline
type Segment struct {
	name          string
	corner        Corner
	alignment     SegmentAlignment
	openDirection Direction

	fullLength float64
	openLength float64
	thickness  float64

	length   float64
	position orb.Point
	isOpen   bool

	// geometry before the most recent open/close, for interpolation
	from SegmentGeometry
}

// NewSegment creates a closed segment at its place in the unit square
func NewSegment(corner Corner, alignment SegmentAlignment, cfg IndicatorConfig) *Segment {
	s := &Segment{
		name:          fmt.Sprintf("%s-%s", corner, alignment),
		corner:        corner,
		alignment:     alignment,
		openDirection: openDirections[corner][alignment],
		fullLength:    cfg.SegmentLength,
		openLength:    cfg.OpenSegmentLength,
		thickness:     cfg.Thickness,
		length:        cfg.SegmentLength,
		position:      initialSegmentPosition(corner, alignment, cfg.SegmentLength, cfg.Thickness),
	}
	s.from = s.Geometry()
	return s
}

// initialSegmentPosition lays the closed segments out so that together they
// trace the unit square; horizontal strips are pulled in by half a
// thickness so the corners meet cleanly.
func initialSegmentPosition(corner Corner, alignment SegmentAlignment, sl, thickness float64) orb.Point {
	c := thickness / 2
	sx, sy := 1.0, 1.0
	if corner == TopLeft || corner == BottomLeft {
		sx = -1
	}
	if corner == BottomLeft || corner == BottomRight {
		sy = -1
	}
	if alignment == SegmentHorizontal {
		return orb.Point{sx * (sl/2 - c), sy * (sl - c)}
	}
	return orb.Point{sx * sl, sy * sl / 2}
}

func (s *Segment) Name() string                { return s.name }
func (s *Segment) Corner() Corner              { return s.corner }
func (s *Segment) Alignment() SegmentAlignment { return s.alignment }
func (s *Segment) OpenDirection() Direction    { return s.openDirection }
func (s *Segment) IsOpen() bool                { return s.isOpen }
func (s *Segment) Length() float64             { return s.length }
func (s *Segment) Position() orb.Point         { return s.position }

// Open shortens the segment and slides it toward its corner, leaving a gap in
// the middle of the side. No-op if already open.
func (s *Segment) Open() {
	if s.isOpen {
		return
	}
	s.from = s.Geometry()
	s.length = s.openLength
	s.move(s.fullLength/2-s.openLength/2, s.openDirection)
	s.isOpen = true
}

// Close restores the full length and undoes the offset applied by Open.
// No-op if already closed.
func (s *Segment) Close() {
	if !s.isOpen {
		return
	}
	s.from = s.Geometry()
	oldLength := s.length
	s.length = s.fullLength
	s.move(s.fullLength/2-oldLength/2, s.openDirection.Reversed())
	s.isOpen = false
}

func (s *Segment) move(offset float64, d Direction) {
	switch d {
	case Left:
		s.position[0] -= offset
	case Right:
		s.position[0] += offset
	case Up:
		s.position[1] += offset
	case Down:
		s.position[1] -= offset
	}
}

// Geometry returns the settled rectangle of the segment
func (s *Segment) Geometry() SegmentGeometry {
	g := SegmentGeometry{Name: s.name, Center: s.position}
	if s.alignment == SegmentHorizontal {
		g.Width, g.Height = s.length, s.thickness
	} else {
		g.Width, g.Height = s.thickness, s.length
	}
	return g
}

// Interpolated returns the rectangle t of the way from the geometry before
// the last open/close to the current one
func (s *Segment) Interpolated(t float64) SegmentGeometry {
	return s.from.lerp(s.Geometry(), t)
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func clamp01(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}
